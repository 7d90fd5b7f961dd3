package widgets

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"lympho-lens/internal/models"
)

// ProgressPanel mirrors the latest progress event of a run.
type ProgressPanel struct {
	container  *fyne.Container
	bar        *widget.ProgressBar
	stageLabel *widget.Label
	stepLabel  *widget.Label
}

func NewProgressPanel() *ProgressPanel {
	p := &ProgressPanel{
		bar:        widget.NewProgressBar(),
		stageLabel: widget.NewLabel(""),
		stepLabel:  widget.NewLabel(""),
	}
	p.stageLabel.TextStyle = fyne.TextStyle{Bold: true}

	p.container = container.NewVBox(
		container.NewHBox(p.stageLabel, p.stepLabel),
		p.bar,
	)
	p.container.Hide()
	return p
}

func (p *ProgressPanel) GetContainer() *fyne.Container {
	return p.container
}

func (p *ProgressPanel) Update(event models.ProgressEvent) {
	p.container.Show()
	p.bar.SetValue(float64(event.Percent) / 100)
	p.stageLabel.SetText(StageTitle(event.Stage))
	p.stepLabel.SetText(event.Label)
}

func (p *ProgressPanel) Reset() {
	p.bar.SetValue(0)
	p.stageLabel.SetText("")
	p.stepLabel.SetText("")
	p.container.Hide()
}

// StageTitle is the display form of a stage, e.g. "Analyzing".
func StageTitle(stage models.Stage) string {
	s := string(stage)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatConfidence renders a confidence as a percentage with its band.
func FormatConfidence(confidence float64) string {
	return fmt.Sprintf("%.1f%% (%s)", confidence*100, models.LevelOf(confidence))
}
