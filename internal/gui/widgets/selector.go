package widgets

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"lympho-lens/internal/models"
)

const OriginalOption = "Original Image"

// ArtifactSelector lists the original image followed by the artifacts of
// the current run.
type ArtifactSelector struct {
	container *fyne.Container
	selector  *widget.Select
	names     []string
	updating  bool

	changeHandler func(models.Target)
}

func NewArtifactSelector() *ArtifactSelector {
	s := &ArtifactSelector{}
	s.selector = widget.NewSelect([]string{OriginalOption}, s.onChanged)
	s.selector.SetSelectedIndex(0)

	s.container = container.NewBorder(nil, nil, widget.NewLabel("Show"), nil, s.selector)
	return s
}

func (s *ArtifactSelector) GetContainer() *fyne.Container {
	return s.container
}

func (s *ArtifactSelector) SetChangeHandler(handler func(models.Target)) {
	s.changeHandler = handler
}

func (s *ArtifactSelector) onChanged(string) {
	if s.updating || s.changeHandler == nil {
		return
	}
	s.changeHandler(OptionTarget(s.selector.SelectedIndex()))
}

// SetArtifacts replaces the option list and shows target as selected
// without firing the change handler.
func (s *ArtifactSelector) SetArtifacts(artifacts []models.FeatureArtifact, target models.Target) {
	s.names = s.names[:0]
	for _, a := range artifacts {
		s.names = append(s.names, a.Name)
	}

	s.updating = true
	defer func() { s.updating = false }()

	s.selector.Options = ArtifactOptions(s.names)
	s.selector.Refresh()
	s.selector.SetSelectedIndex(TargetOption(target))
}

// ArtifactOptions is the option list for the given artifact names.
func ArtifactOptions(names []string) []string {
	return append([]string{OriginalOption}, names...)
}

// OptionTarget maps a selector index to a render target. Index 0 and
// anything out of range select the original image.
func OptionTarget(index int) models.Target {
	if index <= 0 {
		return models.OriginalTarget
	}
	return models.ArtifactTarget(index - 1)
}

func TargetOption(target models.Target) int {
	if target.IsOriginal() {
		return 0
	}
	return target.Index() + 1
}
