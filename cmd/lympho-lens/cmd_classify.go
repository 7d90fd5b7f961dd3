package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"lympho-lens/internal/heatmap"
	"lympho-lens/internal/imaging"
	"lympho-lens/internal/models"
	"lympho-lens/internal/pipeline"
)

var classifyFlags struct {
	outDir      string
	interactive bool
	quiet       bool
	timings     bool
}

var classifyCmd = &cobra.Command{
	Use:   "classify IMAGE",
	Short: "Classify one image and export its feature heatmaps",
	Long: `Run the staged analysis on IMAGE and print the predicted lymphoma subtype.

With --out, every feature artifact is written as a heatmap PNG named
NN-artifact-name.png next to original.png, the normalized input.

Examples:
  lympho-lens classify slide.tif
  lympho-lens classify slide.png --out results/ --model https://host/lymphoma.onnx.zst`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVarP(&classifyFlags.outDir, "out", "o", "", "Directory to write heatmap PNGs into")
	f.BoolVar(&classifyFlags.interactive, "interactive", false, "Use the viewer's stage pacing")
	f.BoolVarP(&classifyFlags.quiet, "quiet", "q", false, "Print only the summary")
	f.BoolVar(&classifyFlags.timings, "timings", false, "Print the time spent in each stage")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(classifyFlags.interactive)
	if err != nil {
		return err
	}
	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	svc.shutdown.Listen()
	defer svc.shutdown.Shutdown()

	ctx := svc.shutdown.Context()
	out := cmd.OutOrStdout()

	src, canonical, err := imaging.LoadCanonical(svc.source, svc.normalizer, args[0])
	if err != nil {
		return err
	}

	if err := loadModel(ctx, svc, out, classifyFlags.quiet); err != nil {
		return err
	}

	timing := pipeline.NewTimingObserver()
	obs := pipeline.Observers{pipeline.NewLoggingObserver(svc.log), timing}
	if !classifyFlags.quiet {
		obs = append(obs, pipeline.ObserverFunc(func(e models.ProgressEvent) {
			fmt.Fprintln(out, formatEvent(e))
		}))
	}

	result, err := svc.pipeline.Run(ctx, canonical, obs)
	if err != nil {
		return err
	}

	if classifyFlags.outDir != "" {
		written, err := writeHeatmaps(classifyFlags.outDir, canonical, result.Artifacts, svc.cfg.Render.CanvasWidth,
			svc.cfg.Render.CanvasHeight, svc.cfg.Render.OverlayOpacity)
		if err != nil {
			return err
		}
		if !classifyFlags.quiet {
			fmt.Fprintf(out, "Wrote %d files to %s\n", len(written), classifyFlags.outDir)
		}
	}

	var classes []string
	if m, ok := svc.gateway.Loaded(); ok {
		classes = m.Classes()
	}
	printSummary(out, src.Name, result, classes)
	if classifyFlags.timings {
		printTimings(out, timing)
	}
	return nil
}

// loadModel fetches the model up front so download progress is visible
// separately from the analysis stages.
func loadModel(ctx context.Context, svc *services, out io.Writer, quiet bool) error {
	last := -1
	_, err := svc.gateway.Load(ctx, func(f float64) {
		pct := int(f * 100)
		if quiet || pct == last {
			return
		}
		last = pct
		fmt.Fprintf(out, "\rLoading model %3d%%", pct)
	})
	if !quiet && last >= 0 {
		fmt.Fprintln(out)
	}
	return err
}

func formatEvent(e models.ProgressEvent) string {
	line := fmt.Sprintf("[%3d%%] %-13s %s", e.Percent, e.Stage, e.Label)
	if e.Partial != nil && e.Partial.HasPrediction && e.Stage != models.StageComplete {
		line += fmt.Sprintf("  -> %s %.1f%%", e.Partial.PredictedClass, e.Partial.Confidence*100)
	}
	return line
}

func printSummary(w io.Writer, name string, result *models.PredictionResult, classes []string) {
	info := models.LookupClass(result.PredictedClass)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Image:       %s\n", name)
	fmt.Fprintf(w, "Prediction:  %s (%s)\n", info.Name, info.Label)
	fmt.Fprintf(w, "Confidence:  %.1f%% (%s)\n", result.Confidence*100, models.LevelOf(result.Confidence))
	fmt.Fprintf(w, "About:       %s\n", info.Description)

	scores := make([]string, len(result.Scores))
	for i, s := range result.Scores {
		label := fmt.Sprintf("#%d", i)
		if i < len(classes) {
			label = classes[i]
		}
		scores[i] = fmt.Sprintf("%s=%.3f", label, s)
	}
	fmt.Fprintf(w, "Scores:      %s\n", strings.Join(scores, " "))

	names := make([]string, len(result.Artifacts))
	for i, a := range result.Artifacts {
		names[i] = a.Name
	}
	fmt.Fprintf(w, "Artifacts:   %s\n", strings.Join(names, ", "))
}

// printTimings lists the time attributed to each stage after the first.
func printTimings(w io.Writer, timing *pipeline.TimingObserver) {
	fmt.Fprintln(w, "Timings:")
	for _, stage := range []models.Stage{
		models.StageAnalyzing,
		models.StageClassifying,
		models.StageComplete,
	} {
		fmt.Fprintf(w, "  %-13s %s\n", stage, timing.Total(stage).Round(time.Millisecond))
	}
}

// writeHeatmaps renders original.png and one NN-name.png per artifact into
// dir and returns the written paths.
func writeHeatmaps(dir string, canonical *models.CanonicalImage, artifacts []models.FeatureArtifact, width, height int, overlay float64) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	renderer := heatmap.NewRenderer(heatmap.DefaultRamp, overlay)
	var written []string

	original, err := renderer.RenderOriginal(canonical, heatmap.DefaultOptions(width, height))
	if err != nil {
		return nil, err
	}
	p := filepath.Join(dir, "original.png")
	if err := writePNG(p, original); err != nil {
		return nil, err
	}
	written = append(written, p)

	for i, a := range artifacts {
		opts := heatmap.DefaultOptions(width, height)
		opts.Overlay = canonical
		opts.OverlayOpacity = overlay

		img, err := renderer.Render(a, opts)
		if err != nil {
			return written, fmt.Errorf("artifact %q: %w", a.Name, err)
		}

		p := filepath.Join(dir, artifactFileName(i, a.Name))
		if err := writePNG(p, img); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := heatmap.EncodePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// artifactFileName gives "03-green-channel.png" for index 2.
func artifactFileName(index int, name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "artifact"
	}
	return fmt.Sprintf("%02d-%s.png", index+1, slug)
}
