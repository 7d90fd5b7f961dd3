package widgets

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

type Toolbar struct {
	container     *fyne.Container
	loadButton    *widget.Button
	analyzeButton *widget.Button
	resetButton   *widget.Button
	statusLabel   *widget.Label
	modelLabel    *widget.Label
	modelProgress *widget.ProgressBar

	loadHandler    func()
	analyzeHandler func()
	resetHandler   func()
}

func NewToolbar() *Toolbar {
	toolbar := &Toolbar{}
	toolbar.createComponents()
	toolbar.buildLayout()
	return toolbar
}

func (t *Toolbar) createComponents() {
	t.loadButton = widget.NewButton("Load Image", t.onLoadClicked)
	t.loadButton.Importance = widget.HighImportance

	t.analyzeButton = widget.NewButton("Analyze", t.onAnalyzeClicked)
	t.analyzeButton.Importance = widget.HighImportance
	t.analyzeButton.Disable() // until an image and the model are ready

	t.resetButton = widget.NewButton("Reset", t.onResetClicked)
	t.resetButton.Importance = widget.MediumImportance
	t.resetButton.Disable()

	t.statusLabel = widget.NewLabel("Ready")
	t.modelLabel = widget.NewLabel("Model: loading")
	t.modelProgress = widget.NewProgressBar()
}

func (t *Toolbar) buildLayout() {
	background := canvas.NewRectangle(color.RGBA{R: 248, G: 249, B: 250, A: 255})

	actionSection := container.NewHBox(
		t.loadButton,
		widget.NewSeparator(),
		t.analyzeButton,
		t.resetButton,
	)

	statusGroup := container.NewVBox(
		widget.NewLabel("Status"),
		t.statusLabel,
	)

	modelGroup := container.NewVBox(
		t.modelLabel,
		t.modelProgress,
	)

	content := container.NewBorder(
		nil, nil,
		container.NewHBox(actionSection, widget.NewSeparator(), statusGroup),
		nil,
		modelGroup,
	)

	t.container = container.NewStack(
		background,
		container.NewPadded(content),
	)
}

func (t *Toolbar) onLoadClicked() {
	if t.loadHandler != nil {
		t.loadHandler()
	}
}

func (t *Toolbar) onAnalyzeClicked() {
	if t.analyzeHandler != nil {
		t.analyzeHandler()
	}
}

func (t *Toolbar) onResetClicked() {
	if t.resetHandler != nil {
		t.resetHandler()
	}
}

func (t *Toolbar) GetContainer() *fyne.Container {
	return t.container
}

func (t *Toolbar) SetLoadHandler(handler func()) {
	t.loadHandler = handler
}

func (t *Toolbar) SetAnalyzeHandler(handler func()) {
	t.analyzeHandler = handler
}

func (t *Toolbar) SetResetHandler(handler func()) {
	t.resetHandler = handler
}

// The setters below must run on the fyne goroutine.

func (t *Toolbar) SetStatus(status string) {
	t.statusLabel.SetText(status)
}

// SetModelProgress shows load progress; 1 marks the model ready.
func (t *Toolbar) SetModelProgress(fraction float64) {
	t.modelProgress.SetValue(fraction)
	if fraction >= 1 {
		t.modelLabel.SetText("Model: ready")
		t.modelProgress.Hide()
	}
}

func (t *Toolbar) SetModelFailed() {
	t.modelLabel.SetText("Model: unavailable")
	t.modelProgress.Hide()
}

// SetBusy locks the actions while a run is in flight, so runs never
// overlap.
func (t *Toolbar) SetBusy(busy bool) {
	if busy {
		t.loadButton.Disable()
		t.analyzeButton.Disable()
		t.resetButton.Disable()
		return
	}
	t.loadButton.Enable()
	t.resetButton.Enable()
}

func (t *Toolbar) SetAnalyzeEnabled(enabled bool) {
	if enabled {
		t.analyzeButton.Enable()
	} else {
		t.analyzeButton.Disable()
	}
}
