package widgets

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"lympho-lens/internal/models"
)

func TestOptionTargetRoundTrip(t *testing.T) {
	for _, target := range []models.Target{models.OriginalTarget, models.ArtifactTarget(0), models.ArtifactTarget(4)} {
		if got := OptionTarget(TargetOption(target)); got != target {
			t.Errorf("OptionTarget(TargetOption(%v)) = %v", target, got)
		}
	}
	if got := OptionTarget(-1); !got.IsOriginal() {
		t.Errorf("OptionTarget(-1) = %v, want original", got)
	}
}

func TestArtifactOptions(t *testing.T) {
	got := ArtifactOptions([]string{"Grayscale Analysis", "Red Channel"})
	want := []string{OriginalOption, "Grayscale Analysis", "Red Channel"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ArtifactOptions() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"stage", StageTitle(models.StageAnalyzing), "Analyzing"},
		{"empty stage", StageTitle(""), ""},
		{"high confidence", FormatConfidence(0.934), "93.4% (high)"},
		{"low confidence", FormatConfidence(0.55), "55.0% (low)"},
		{"scores", ScoreSummary([]string{"CLL", "FL"}, []float32{0.1, 0.7, 0.2}), "CLL 0.100  FL 0.700  #2 0.200"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
