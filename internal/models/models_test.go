package models

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewCanonicalImageValidation(t *testing.T) {
	tests := []struct {
		name    string
		side    int
		pixels  []float32
		wantErr bool
	}{
		{"valid 1x1", 1, []float32{0, 0.5, 1}, false},
		{"zero side", 0, nil, true},
		{"short data", 2, make([]float32, 11), true},
		{"out of range", 1, []float32{0, 1.5, 1}, true},
		{"negative", 1, []float32{-0.1, 0, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCanonicalImage(tt.side, tt.pixels)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCanonicalImage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCanonicalImageIsImmutable(t *testing.T) {
	pixels := []float32{0.1, 0.2, 0.3}
	img, err := NewCanonicalImage(1, pixels)
	if err != nil {
		t.Fatalf("NewCanonicalImage() error = %v", err)
	}

	pixels[0] = 0.9
	got := img.Pixels()
	got[1] = 0.9

	if img.At(0, 0, 0) != 0.1 || img.At(0, 0, 1) != 0.2 {
		t.Errorf("canonical image mutated through caller slices: %v", img.Pixels())
	}
}

func TestCanonicalImageChannelsAndGrayscale(t *testing.T) {
	img, err := NewCanonicalImage(2, []float32{
		0.0, 0.3, 0.6, 0.3, 0.3, 0.3,
		1.0, 1.0, 1.0, 0.0, 0.0, 0.9,
	})
	if err != nil {
		t.Fatalf("NewCanonicalImage() error = %v", err)
	}

	if diff := cmp.Diff([]float32{0.0, 0.3, 1.0, 0.0}, img.Channel(0)); diff != "" {
		t.Errorf("Channel(0) mismatch (-want +got):\n%s", diff)
	}

	gray := img.Grayscale()
	want := []float32{0.3, 0.3, 1.0, 0.3}
	for i := range want {
		if d := gray[i] - want[i]; d > 1e-6 || d < -1e-6 {
			t.Errorf("Grayscale()[%d] = %v, want %v", i, gray[i], want[i])
		}
	}
}

func TestCanonicalImageToImage(t *testing.T) {
	img, err := UniformCanonicalImage(4, 1, 0.5, 0)
	if err != nil {
		t.Fatalf("UniformCanonicalImage() error = %v", err)
	}

	rgba := img.Image()
	if rgba.Bounds().Dx() != 4 || rgba.Bounds().Dy() != 4 {
		t.Fatalf("Image() bounds = %v, want 4x4", rgba.Bounds())
	}

	px := rgba.NRGBAAt(3, 3)
	if px.R != 255 || px.G != 128 || px.B != 0 || px.A != 255 {
		t.Errorf("Image() pixel = %+v, want {255 128 0 255}", px)
	}
}

func TestFeatureArtifactSide(t *testing.T) {
	tests := []struct {
		length   int
		wantSide int
		wantOK   bool
	}{
		{0, 0, false},
		{1, 1, true},
		{10, 3, false},
		{16, 4, true},
		{65536, 256, true},
	}

	for _, tt := range tests {
		side, ok := FeatureArtifact{Data: make([]float32, tt.length)}.Side()
		if side != tt.wantSide || ok != tt.wantOK {
			t.Errorf("Side() for length %d = (%d, %v), want (%d, %v)",
				tt.length, side, ok, tt.wantSide, tt.wantOK)
		}
	}
}

func TestStageOrder(t *testing.T) {
	stages := []Stage{StagePreprocessing, StageAnalyzing, StageClassifying, StageComplete}
	for i, s := range stages {
		if s.Order() != i {
			t.Errorf("%s.Order() = %d, want %d", s, s.Order(), i)
		}
	}
	if Stage("bogus").Order() != -1 {
		t.Error("unknown stage should have order -1")
	}
}

func TestLevelOf(t *testing.T) {
	tests := []struct {
		confidence float64
		want       ConfidenceLevel
	}{
		{0.95, ConfidenceHigh},
		{0.9, ConfidenceHigh},
		{0.75, ConfidenceModerate},
		{0.5, ConfidenceLow},
		{0.1, ConfidenceVeryLow},
	}
	for _, tt := range tests {
		if got := LevelOf(tt.confidence); got != tt.want {
			t.Errorf("LevelOf(%v) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}

func TestLookupClass(t *testing.T) {
	if got := LookupClass("FL").Name; got != "Follicular Lymphoma" {
		t.Errorf("LookupClass(FL).Name = %q", got)
	}
	if got := LookupClass("XYZ").Name; got != "XYZ" {
		t.Errorf("LookupClass(XYZ).Name = %q, want XYZ", got)
	}
	if diff := cmp.Diff([]string{"CLL", "FL", "MCL"}, DefaultClassLabels()); diff != "" {
		t.Errorf("DefaultClassLabels() mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStateRepositorySerializesRuns(t *testing.T) {
	repo := NewRunStateRepository()

	if !repo.TryStart("a") {
		t.Fatal("first TryStart should succeed")
	}
	if repo.TryStart("b") {
		t.Fatal("second TryStart should fail while a run is active")
	}

	repo.UpdateProgress(StageAnalyzing, 30)
	if s := repo.GetState(); s.Stage != StageAnalyzing || s.Percent != 30 || s.RunID != "a" {
		t.Errorf("GetState() = %+v", s)
	}

	repo.Fail(errors.New("boom"))
	if repo.IsProcessing() {
		t.Error("IsProcessing() = true after Fail")
	}
	if s := repo.GetState(); s.LastError != "boom" {
		t.Errorf("LastError = %q, want boom", s.LastError)
	}

	if !repo.TryStart("c") {
		t.Fatal("TryStart should succeed after the previous run ended")
	}
	repo.Complete()
	if s := repo.GetState(); s.Stage != StageComplete || s.Percent != 100 {
		t.Errorf("GetState() after Complete = %+v", s)
	}
}

func TestAnalysisRepositoryDiscardsOnNewImage(t *testing.T) {
	repo := NewAnalysisRepository()
	img, _ := UniformCanonicalImage(1, 0, 0, 0)

	repo.SetImage("a.png", img)
	repo.StoreEvent(ProgressEvent{Stage: StageAnalyzing, Percent: 10})
	repo.StoreResult(&PredictionResult{PredictedClass: "FL"})

	if _, ok := repo.LatestEvent(); !ok {
		t.Fatal("LatestEvent() missing after StoreEvent")
	}

	repo.SetImage("b.png", img)
	if _, ok := repo.LatestEvent(); ok {
		t.Error("LatestEvent() should be cleared by SetImage")
	}
	if repo.Result() != nil {
		t.Error("Result() should be cleared by SetImage")
	}
	if got := len(repo.History()); got != 1 {
		t.Errorf("History() length = %d, want 1", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	root := errors.New("session died")
	err := NewAnalysisError(StageClassifying, "forward pass failed", &InferenceError{Err: root})

	var inf *InferenceError
	if !errors.As(err, &inf) {
		t.Fatal("AnalysisError should unwrap to InferenceError")
	}
	if !errors.Is(err, root) {
		t.Error("AnalysisError should unwrap to the root cause")
	}
}
