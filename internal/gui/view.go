package gui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"lympho-lens/internal/gui/widgets"
	"lympho-lens/internal/models"
)

// View handles all UI components and their layout. Its methods must run on
// the fyne goroutine.
type View struct {
	window     fyne.Window
	controller *Controller

	toolbar       *widgets.Toolbar
	imageDisplay  *widgets.ImageDisplay
	progressPanel *widgets.ProgressPanel
	selector      *widgets.ArtifactSelector
	resultPanel   *widgets.ResultPanel
	errorLabel    *widget.Label
	mainContainer *fyne.Container
}

func NewView(window fyne.Window) *View {
	view := &View{
		window: window,
	}

	view.setupComponents()
	view.setupLayout()

	return view
}

func (v *View) SetController(controller *Controller) {
	v.controller = controller
	v.setupEventHandlers()
}

func (v *View) setupComponents() {
	v.toolbar = widgets.NewToolbar()
	v.imageDisplay = widgets.NewImageDisplay()
	v.progressPanel = widgets.NewProgressPanel()
	v.selector = widgets.NewArtifactSelector()
	v.resultPanel = widgets.NewResultPanel()

	v.errorLabel = widget.NewLabel("")
	v.errorLabel.Importance = widget.DangerImportance
	v.errorLabel.Wrapping = fyne.TextWrapWord
	v.errorLabel.Hide()
}

func (v *View) setupLayout() {
	side := container.NewVBox(
		v.selector.GetContainer(),
		widget.NewSeparator(),
		v.resultPanel.GetContainer(),
	)

	v.mainContainer = container.NewBorder(
		v.toolbar.GetContainer(),
		container.NewVBox(v.progressPanel.GetContainer(), v.errorLabel),
		nil,
		container.NewPadded(side),
		v.imageDisplay.GetContainer(),
	)
}

func (v *View) setupEventHandlers() {
	if v.controller == nil {
		return
	}

	v.toolbar.SetLoadHandler(v.controller.LoadImage)
	v.toolbar.SetAnalyzeHandler(v.controller.Analyze)
	v.toolbar.SetResetHandler(v.controller.Reset)
	v.selector.SetChangeHandler(v.controller.SelectTarget)
}

func (v *View) GetMainContainer() *fyne.Container {
	return v.mainContainer
}

func (v *View) HeatmapDisplay() *widgets.ImageDisplay {
	return v.imageDisplay
}

func (v *View) SetSourceImage(img image.Image) {
	v.imageDisplay.SetSourceImage(img)
}

func (v *View) SetStatus(status string) {
	v.toolbar.SetStatus(status)
}

func (v *View) SetModelProgress(fraction float64) {
	v.toolbar.SetModelProgress(fraction)
}

func (v *View) SetModelFailed(err error) {
	v.toolbar.SetModelFailed()
	v.ShowError(err)
}

func (v *View) SetBusy(busy bool) {
	v.toolbar.SetBusy(busy)
}

func (v *View) SetAnalyzeEnabled(enabled bool) {
	v.toolbar.SetAnalyzeEnabled(enabled)
}

// ShowProgress applies one pipeline event. target is what the engine is
// now fading in.
func (v *View) ShowProgress(event models.ProgressEvent, target models.Target) {
	v.progressPanel.Update(event)
	v.SetStatus(event.Label)

	if event.Partial == nil {
		return
	}
	v.selector.SetArtifacts(event.Partial.Artifacts, target)
	v.SetTargetTitle(target, event.Partial.Artifacts)
	v.resultPanel.ShowPartial(event.Partial)
}

func (v *View) ShowResult(result *models.PredictionResult, classes []string) {
	v.resultPanel.ShowResult(result, classes)
	v.SetStatus("Analysis complete")
}

func (v *View) SetTargetTitle(target models.Target, artifacts []models.FeatureArtifact) {
	title := widgets.OriginalOption
	if !target.IsOriginal() && target.Index() < len(artifacts) {
		title = artifacts[target.Index()].Name
	}
	v.imageDisplay.SetHeatmapTitle(title)
}

// ShowError replaces the analysis output with a single message. Loading a
// new image or resetting clears it.
func (v *View) ShowError(err error) {
	v.progressPanel.Reset()
	v.resultPanel.Clear()
	v.errorLabel.SetText(err.Error())
	v.errorLabel.Show()
	dialog.ShowError(err, v.window)
}

func (v *View) ClearError() {
	v.errorLabel.SetText("")
	v.errorLabel.Hide()
}

func (v *View) Clear() {
	v.ClearError()
	v.progressPanel.Reset()
	v.resultPanel.Clear()
	v.selector.SetArtifacts(nil, models.OriginalTarget)
	v.imageDisplay.Clear()
	v.SetStatus("Ready")
}

func (v *View) ShowFileDialog(callback func(fyne.URIReadCloser, error)) {
	dialog.ShowFileOpen(callback, v.window)
}

func (v *View) GetWindow() fyne.Window {
	return v.window
}

func (v *View) Show() {
	v.window.SetContent(v.mainContainer)
	v.window.Show()
}
