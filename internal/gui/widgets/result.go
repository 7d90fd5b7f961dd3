package widgets

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"lympho-lens/internal/models"
)

type ResultPanel struct {
	container        *fyne.Container
	classLabel       *widget.Label
	confidenceLabel  *widget.Label
	descriptionLabel *widget.Label
	scoresLabel      *widget.Label
}

func NewResultPanel() *ResultPanel {
	r := &ResultPanel{
		classLabel:       widget.NewLabel("Prediction: --"),
		confidenceLabel:  widget.NewLabel("Confidence: --"),
		descriptionLabel: widget.NewLabel(""),
		scoresLabel:      widget.NewLabel(""),
	}
	r.classLabel.TextStyle = fyne.TextStyle{Bold: true}
	r.descriptionLabel.Wrapping = fyne.TextWrapWord

	r.container = container.NewVBox(
		widget.NewRichTextFromMarkdown("**Classification**"),
		r.classLabel,
		r.confidenceLabel,
		r.descriptionLabel,
		r.scoresLabel,
	)
	return r
}

func (r *ResultPanel) GetContainer() *fyne.Container {
	return r.container
}

// ShowPartial displays a prediction before the run has completed.
func (r *ResultPanel) ShowPartial(partial *models.PartialResult) {
	if partial == nil || !partial.HasPrediction {
		return
	}
	r.setPrediction(partial.PredictedClass, partial.Confidence)
}

// ShowResult displays the final prediction. classes names the entries of
// result.Scores in order.
func (r *ResultPanel) ShowResult(result *models.PredictionResult, classes []string) {
	r.setPrediction(result.PredictedClass, result.Confidence)
	r.scoresLabel.SetText(ScoreSummary(classes, result.Scores))
}

func (r *ResultPanel) setPrediction(label string, confidence float64) {
	info := models.LookupClass(label)
	r.classLabel.SetText(fmt.Sprintf("Prediction: %s (%s)", info.Name, info.Label))
	r.confidenceLabel.SetText("Confidence: " + FormatConfidence(confidence))
	r.descriptionLabel.SetText(info.Description)
}

func (r *ResultPanel) Clear() {
	r.classLabel.SetText("Prediction: --")
	r.confidenceLabel.SetText("Confidence: --")
	r.descriptionLabel.SetText("")
	r.scoresLabel.SetText("")
}

// ScoreSummary lists raw scores by class label. Scores past the end of
// labels are shown by index.
func ScoreSummary(labels []string, scores []float32) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		label := fmt.Sprintf("#%d", i)
		if i < len(labels) {
			label = labels[i]
		}
		parts[i] = fmt.Sprintf("%s %.3f", label, s)
	}
	return strings.Join(parts, "  ")
}
