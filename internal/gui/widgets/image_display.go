package widgets

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	ImageAreaWidth  = 420
	ImageAreaHeight = 420
)

// ImageDisplay shows the source image beside the heatmap canvas.
type ImageDisplay struct {
	container     fyne.CanvasObject
	sourceImage   *canvas.Image
	heatmapImage  *canvas.Image
	heatmapHeader *widget.Label
	splitView     *container.Split
}

func NewImageDisplay() *ImageDisplay {
	display := &ImageDisplay{}
	display.createComponents()
	display.setupLayout()
	return display
}

func (id *ImageDisplay) createComponents() {
	id.sourceImage = canvas.NewImageFromImage(nil)
	id.sourceImage.FillMode = canvas.ImageFillContain
	id.sourceImage.ScaleMode = canvas.ImageScaleSmooth
	id.sourceImage.SetMinSize(fyne.NewSize(ImageAreaWidth, ImageAreaHeight))

	// Heatmap cells must stay crisp when the canvas is scaled up.
	id.heatmapImage = canvas.NewImageFromImage(nil)
	id.heatmapImage.FillMode = canvas.ImageFillContain
	id.heatmapImage.ScaleMode = canvas.ImageScalePixels
	id.heatmapImage.SetMinSize(fyne.NewSize(ImageAreaWidth, ImageAreaHeight))

	id.heatmapHeader = widget.NewLabel("Original Image")
	id.heatmapHeader.TextStyle = fyne.TextStyle{Bold: true}
}

func (id *ImageDisplay) setupLayout() {
	sourceContainer := container.NewBorder(
		widget.NewRichTextFromMarkdown("**Source**"),
		nil, nil, nil,
		id.sourceImage,
	)

	heatmapContainer := container.NewBorder(
		id.heatmapHeader,
		nil, nil, nil,
		id.heatmapImage,
	)

	id.splitView = container.NewHSplit(sourceContainer, heatmapContainer)
	id.splitView.SetOffset(0.5)
	id.container = id.splitView
}

func (id *ImageDisplay) GetContainer() fyne.CanvasObject {
	return id.container
}

// HeatmapCanvas is the image the canvas surface presents frames into.
func (id *ImageDisplay) HeatmapCanvas() *canvas.Image {
	return id.heatmapImage
}

func (id *ImageDisplay) SetSourceImage(img image.Image) {
	id.sourceImage.Image = img
	id.sourceImage.Refresh()
}

func (id *ImageDisplay) SetHeatmapTitle(title string) {
	id.heatmapHeader.SetText(title)
}

func (id *ImageDisplay) Clear() {
	id.sourceImage.Image = nil
	id.sourceImage.Refresh()
	id.heatmapImage.Image = nil
	id.heatmapImage.Refresh()
	id.heatmapHeader.SetText("Original Image")
}
