package gui

import (
	"sync"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"lympho-lens/internal/logger"
)

const (
	AppName    = "Lympho Lens"
	AppID      = "com.lympholens.viewer"
	AppVersion = "1.0.0"
)

// Application is the desktop viewer.
type Application struct {
	fyneApp    fyne.App
	window     fyne.Window
	view       *View
	controller *Controller
	logger     logger.Logger

	quitOnce sync.Once
	stopped  atomic.Bool
}

func NewApplication(deps Dependencies) *Application {
	app.SetMetadata(fyne.AppMetadata{
		ID:      AppID,
		Name:    AppName,
		Version: AppVersion,
	})
	fyneApp := app.NewWithID(AppID)

	window := fyneApp.NewWindow(AppName)
	window.Resize(fyne.NewSize(1200, 760))
	window.CenterOnScreen()

	view := NewView(window)
	controller := NewController(deps)
	controller.SetView(view)
	view.SetController(controller)

	a := &Application{
		fyneApp:    fyneApp,
		window:     window,
		view:       view,
		controller: controller,
		logger:     controller.log,
	}

	window.SetCloseIntercept(func() {
		a.logger.Info("Application", "window close requested", nil)
		a.Quit()
	})

	return a
}

// Run shows the window and blocks until the app quits. A non-empty
// initialPath is opened once the window is up.
func (a *Application) Run(initialPath string) {
	a.view.Show()
	a.controller.PreloadModel()
	if initialPath != "" {
		a.controller.OpenPath(initialPath)
	}

	a.logger.Info("Application", "viewer started", map[string]interface{}{
		"version": AppVersion,
	})
	a.fyneApp.Run()
	a.stopped.Store(true)
}

// Quit stops the controller and ends the event loop. Safe from any
// goroutine and idempotent.
func (a *Application) Quit() {
	a.quitOnce.Do(func() {
		a.controller.Shutdown()
		if a.stopped.Load() {
			return
		}
		fyne.Do(func() {
			a.fyneApp.Quit()
		})
	})
}

// Shutdown satisfies shutdown.Shutdownable.
func (a *Application) Shutdown() {
	a.Quit()
}
