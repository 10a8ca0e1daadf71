package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/life-progress/internal/config"
	"github.com/tartampluch/life-progress/internal/engine"
	"github.com/tartampluch/life-progress/internal/server"
)

// LifeProgressApp encapsulates the display state, preferences and the refresh schedule.
type LifeProgressApp struct {
	App         fyne.App
	Window      fyne.Window
	Preferences fyne.Preferences
	I18nBundle  *i18n.Bundle
	Localizer   *i18n.Localizer
	LocMut      sync.RWMutex // Guards Localizer; the refresher reads it off the main thread.
	Ctx         context.Context

	Server    *server.FeedServer
	Refresher *engine.Refresher // Drives the rings; started and stopped with the app lifecycle.

	Tray desktop.App
	Menu *fyne.Menu

	TrayStatusItem   *fyne.MenuItem
	TrayShowItem     *fyne.MenuItem
	TraySettingsItem *fyne.MenuItem

	// Display State, owned by the main thread.
	YearRing   *ProgressRing
	MonthRing  *ProgressRing
	DayRing    *ProgressRing
	YearValue  *widget.Label
	MonthValue *widget.Label
	DayValue   *widget.Label
	Snapshot   engine.Snapshot

	headline   *widget.Label
	yearTitle  *widget.Label
	monthTitle *widget.Label
	dayTitle   *widget.Label

	SupportedLanguages []string
	settingsWindow     fyne.Window

	refreshMut  sync.Mutex
	stopRefresh func()
}

// NewLifeProgressApp constructs the application and wires dependencies.
// The display subscribes itself to refresher.
func NewLifeProgressApp(a fyne.App, ctx context.Context, srv *server.FeedServer, refresher *engine.Refresher) *LifeProgressApp {
	a.SetIcon(theme.HistoryIcon())

	app := &LifeProgressApp{
		App:                a,
		Preferences:        a.Preferences(),
		Ctx:                ctx,
		Server:             srv,
		Refresher:          refresher,
		SupportedLanguages: config.SupportedLanguages,
		YearRing:           NewProgressRing(config.ColorYear, config.RingDiameterYear),
		MonthRing:          NewProgressRing(config.ColorMonth, config.RingDiameterMonth),
		DayRing:            NewProgressRing(config.ColorDay, config.RingDiameterDay),
		headline:           newCenteredLabel(config.AppName),
		yearTitle:          newCenteredLabel(""),
		monthTitle:         newCenteredLabel(""),
		dayTitle:           newCenteredLabel(""),
		YearValue:          newCenteredLabel(formatPercent(0)),
		MonthValue:         newCenteredLabel(formatPercent(0)),
		DayValue:           newCenteredLabel(formatPercent(0)),
	}

	if srv != nil {
		if srv.Calendar == nil {
			srv.Calendar = &engine.BoundaryCalendar{}
		}
		srv.Calendar.FormatSummary = app.buildBoundarySummaryFormatter()
	}
	if refresher != nil {
		refresher.Publishers = append(refresher.Publishers, engine.PublisherFunc(app.publish))
	}
	return app
}

// Run launches the feed server, the refresh schedule and the main UI loop.
func (app *LifeProgressApp) Run() {
	app.SetupI18n()
	app.buildMainWindow()

	if app.Server != nil {
		go func() {
			if err := app.Server.Start(app.Ctx); err != nil {
				slog.Error(config.ErrServerStartup,
					config.LogKeyError, err,
					config.LogKeyComponent, config.CompUI)

				app.App.SendNotification(fyne.NewNotification(
					config.TitleStartupError,
					fmt.Sprintf(config.MsgPortBusy, app.Server.Port)))
			}
		}()
	}

	if desk, ok := app.App.(desktop.App); ok {
		app.Tray = desk
		app.Tray.SetSystemTrayIcon(app.App.Icon())
		app.setupTrayMenu()
	} else {
		slog.Warn(config.ErrTrayNotSupported,
			config.LogKeyComponent, config.CompUI)
	}

	// The display refreshes only while the app is running.
	app.App.Lifecycle().SetOnStarted(app.Activate)
	app.App.Lifecycle().SetOnStopped(app.Deactivate)

	app.Window.Show()
	app.App.Run()
	app.Deactivate()
}

// Activate starts the refresh schedule. The first snapshot is published immediately.
// Calling it while already active is a no-op.
func (app *LifeProgressApp) Activate() {
	app.refreshMut.Lock()
	defer app.refreshMut.Unlock()

	if app.stopRefresh != nil || app.Refresher == nil {
		return
	}
	app.stopRefresh = app.Refresher.Start(app.Ctx)
}

// Deactivate tears the refresh schedule down.
func (app *LifeProgressApp) Deactivate() {
	app.refreshMut.Lock()
	defer app.refreshMut.Unlock()

	if app.stopRefresh == nil {
		return
	}
	app.stopRefresh()
	app.stopRefresh = nil
}

// publish hands a snapshot computed on the refresher goroutine to the main thread.
func (app *LifeProgressApp) publish(s engine.Snapshot) {
	fyne.Do(func() {
		app.ApplySnapshot(s)
	})
}

// ApplySnapshot overwrites the displayed progress wholesale. Main thread only.
func (app *LifeProgressApp) ApplySnapshot(s engine.Snapshot) {
	app.Snapshot = s

	app.YearRing.SetProgress(s.Year)
	app.MonthRing.SetProgress(s.Month)
	app.DayRing.SetProgress(s.Day)

	app.YearValue.SetText(formatPercent(s.Year))
	app.MonthValue.SetText(formatPercent(s.Month))
	app.DayValue.SetText(formatPercent(s.Day))

	app.updateTrayStatus()
}

// buildMainWindow lays out the concentric rings above the percentage legend.
func (app *LifeProgressApp) buildMainWindow() {
	w := app.App.NewWindow(app.GetMsg(config.TKeyWinTitle))
	app.Window = w

	rings := container.NewStack(
		container.NewCenter(app.YearRing),
		container.NewCenter(app.MonthRing),
		container.NewCenter(app.DayRing),
	)

	legend := container.NewGridWithColumns(config.LayoutColumnsTriple,
		container.NewVBox(app.yearTitle, app.YearValue),
		container.NewVBox(app.monthTitle, app.MonthValue),
		container.NewVBox(app.dayTitle, app.DayValue),
	)

	w.SetContent(container.NewPadded(container.NewVBox(
		layout.NewSpacer(),
		rings,
		app.headline,
		legend,
		layout.NewSpacer(),
	)))
	w.Resize(fyne.NewSize(config.MainWindowWidth, config.MainWindowHeight))
	w.SetMaster()

	app.RefreshLabels()
}

// RefreshLabels re-applies localized titles after a language change.
func (app *LifeProgressApp) RefreshLabels() {
	app.headline.SetText(app.GetMsg(config.TKeyLblHeadline))
	app.yearTitle.SetText(app.GetMsg(config.TKeyLblYear))
	app.monthTitle.SetText(app.GetMsg(config.TKeyLblMonth))
	app.dayTitle.SetText(app.GetMsg(config.TKeyLblDay))

	if app.Window != nil {
		app.Window.SetTitle(app.GetMsg(config.TKeyWinTitle))
	}
	app.RefreshTrayMenu()
}

// setupTrayMenu constructs the system tray menu.
func (app *LifeProgressApp) setupTrayMenu() {
	app.TrayStatusItem = fyne.NewMenuItem(config.FallbackTrayLabel, nil)
	app.TrayStatusItem.Disabled = true

	app.TrayShowItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuShow), func() {
		if app.Window != nil {
			app.Window.Show()
			app.Window.RequestFocus()
		}
	})

	app.TraySettingsItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuSettings), func() {
		app.ShowSettingsWindow()
	})

	app.Menu = fyne.NewMenu(config.AppName,
		app.TrayStatusItem,
		fyne.NewMenuItemSeparator(),
		app.TrayShowItem,
		app.TraySettingsItem,
	)

	if app.Tray != nil {
		app.Tray.SetSystemTrayMenu(app.Menu)
	}
}

// RefreshTrayMenu updates localized labels in the tray menu.
func (app *LifeProgressApp) RefreshTrayMenu() {
	if app.Menu == nil {
		return
	}
	app.TrayShowItem.Label = app.GetMsg(config.TKeyMenuShow)
	app.TraySettingsItem.Label = app.GetMsg(config.TKeyMenuSettings)
	app.updateTrayStatus()
}

// updateTrayStatus summarizes the current snapshot in the first tray item.
func (app *LifeProgressApp) updateTrayStatus() {
	if app.Menu == nil || app.TrayStatusItem == nil {
		return
	}

	s := app.Snapshot
	label := app.Localize(config.TKeyTrayStatus, map[string]interface{}{
		"Year":  formatPercent(s.Year),
		"Month": formatPercent(s.Month),
		"Day":   formatPercent(s.Day),
	})
	if label == "" {
		label = fmt.Sprintf(config.FallbackTrayStatus, s.Year*100, s.Month*100, s.Day*100)
	}

	app.TrayStatusItem.Label = label
	app.Menu.Refresh()
}

// buildBoundarySummaryFormatter returns a closure that localizes boundary event titles.
// It runs on the refresher goroutine.
func (app *LifeProgressApp) buildBoundarySummaryFormatter() func(kind string) string {
	keys := map[string]string{
		config.BoundaryDay:   config.TKeyEvtDayStart,
		config.BoundaryMonth: config.TKeyEvtMonthStart,
		config.BoundaryYear:  config.TKeyEvtYearStart,
	}
	return func(kind string) string {
		key, ok := keys[kind]
		if !ok {
			return ""
		}
		return app.Localize(key, nil)
	}
}

func formatPercent(fraction float64) string {
	return fmt.Sprintf(config.FormatPercent, engine.Clamp(fraction)*100)
}

func newCenteredLabel(text string) *widget.Label {
	l := widget.NewLabel(text)
	l.Alignment = fyne.TextAlignCenter
	return l
}
