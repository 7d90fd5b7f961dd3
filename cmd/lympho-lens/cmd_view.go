package main

import (
	"errors"
	"fmt"

	"github.com/ncruces/zenity"
	"github.com/spf13/cobra"

	"lympho-lens/internal/gui"
	"lympho-lens/internal/models"
)

var viewFlags struct {
	noPicker bool
}

var viewCmd = &cobra.Command{
	Use:   "view [IMAGE]",
	Short: "Open the desktop viewer",
	Long: `Open the interactive viewer. Without IMAGE a file picker is shown first;
cancel it to start with an empty viewer.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().BoolVar(&viewFlags.noPicker, "no-picker", false, "Start without asking for an image")
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.shutdown.Shutdown()

	path := ""
	if len(args) > 0 {
		path = args[0]
	} else if !viewFlags.noPicker {
		path, err = pickImage()
		if err != nil {
			return err
		}
	}

	app := gui.NewApplication(gui.Dependencies{
		Pipeline:   svc.pipeline,
		Gateway:    svc.gateway,
		Source:     svc.source,
		Normalizer: svc.normalizer,
		Repository: models.NewAnalysisRepository(),
		Render:     cfg.Render,
		Logger:     svc.log,
	})
	svc.shutdown.Register("viewer", app)
	svc.shutdown.Listen()

	app.Run(path)
	return nil
}

// pickImage asks for an image with the native file dialog. A cancelled
// dialog yields an empty path.
func pickImage() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select a microscopy image"),
		zenity.FileFilters{
			{
				Name: "Images",
				Patterns: []string{
					"*.png", "*.jpg", "*.jpeg", "*.gif",
					"*.tif", "*.tiff", "*.bmp", "*.webp",
				},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", nil
		}
		return "", fmt.Errorf("file picker failed: %w", err)
	}
	return path, nil
}
