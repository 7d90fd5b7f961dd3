package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	runtime    string
	modelURL   string
}

var rootCmd = &cobra.Command{
	Use:   "lympho-lens",
	Short: "Lymphoma subtype classification for microscopy images",
	Long: "lympho-lens classifies a microscopy image as CLL, FL or MCL with a local\n" +
		"model and renders the intermediate feature maps as heatmaps.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&rootFlags.runtime, "runtime", "", "Inference runtime: onnx or opencv (overrides config)")
	pf.StringVar(&rootFlags.modelURL, "model", "", "Model path or URL (overrides config)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
