package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/life-progress/internal/config"
	"github.com/tartampluch/life-progress/internal/engine"
	"github.com/tartampluch/life-progress/internal/server"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockTray implements minimal system tray functionality for headless testing.
type MockTray struct {
	Menu *fyne.Menu
}

func (m *MockTray) SetSystemTrayMenu(menu *fyne.Menu) {
	m.Menu = menu
}

func (m *MockTray) SetSystemTrayIcon(icon fyne.Resource) {}
func (m *MockTray) SetSystemTrayWindow(w fyne.Window)    {}

// -----------------------------------------------------------------------------
// Test Setup Helper
// -----------------------------------------------------------------------------

var leapMarchNoon = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestApp initializes a headless Fyne app with a fake clock frozen at noon
// on 2024-03-01 UTC.
func setupTestApp(t *testing.T) (*LifeProgressApp, *clockwork.FakeClock, *MockTray) {
	a := test.NewApp()
	t.Cleanup(a.Quit)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	fc := clockwork.NewFakeClockAt(leapMarchNoon)
	srv := server.NewFeedServer("0")
	refresher := engine.NewRefresher(fc, engine.NewCalculator(time.UTC), srv)
	mockTray := &MockTray{}

	app := NewLifeProgressApp(a, ctx, srv, refresher)
	app.Tray = mockTray

	// Manually load I18n as Run() is skipped.
	app.Preferences.SetString(config.PrefLanguage, "en")
	app.SetupI18n()

	return app, fc, mockTray
}

// -----------------------------------------------------------------------------
// Localization Tests
// -----------------------------------------------------------------------------

func TestLocalization_Switching(t *testing.T) {
	app, _, _ := setupTestApp(t)

	assert.Equal(t, "Settings...", app.GetMsg(config.TKeyMenuSettings))
	assert.Equal(t, "The Progress of", app.GetMsg(config.TKeyLblHeadline))

	app.Preferences.SetString(config.PrefLanguage, "fr")
	app.UpdateLocalizer()
	assert.Equal(t, "Paramètres...", app.GetMsg(config.TKeyMenuSettings))
	assert.Equal(t, "Année", app.GetMsg(config.TKeyLblYear))
}

func TestLocalization_MissingKeyFallsBack(t *testing.T) {
	app, _, _ := setupTestApp(t)

	assert.Equal(t, "no_such_key", app.GetMsg("no_such_key"))
	assert.Empty(t, app.Localize("no_such_key", nil))

	app.LocMut.Lock()
	app.Localizer = nil
	app.LocMut.Unlock()
	assert.Equal(t, config.TKeyLblDay, app.GetMsg(config.TKeyLblDay), "Nil localizer returns the key")
}

func TestLocalization_DetectsLanguages(t *testing.T) {
	app, _, _ := setupTestApp(t)
	assert.ElementsMatch(t, config.SupportedLanguages, app.SupportedLanguages)
}

func TestBoundarySummaryFormatter(t *testing.T) {
	app, _, _ := setupTestApp(t)
	format := app.buildBoundarySummaryFormatter()

	assert.Equal(t, "New year", format(config.BoundaryYear))
	assert.Empty(t, format("fortnight"), "Unknown kinds defer to the engine fallback")

	app.Preferences.SetString(config.PrefLanguage, "fr")
	app.UpdateLocalizer()
	assert.Equal(t, "Nouveau mois", format(config.BoundaryMonth))
}

// -----------------------------------------------------------------------------
// Display Tests
// -----------------------------------------------------------------------------

func TestApplySnapshot_UpdatesRingsAndLabels(t *testing.T) {
	app, _, mockTray := setupTestApp(t)
	app.buildMainWindow()
	app.setupTrayMenu()

	snap := engine.NewCalculator(time.UTC).SnapshotAt(leapMarchNoon)
	app.ApplySnapshot(snap)

	assert.InDelta(t, 60.0/366, app.YearRing.Progress(), 1e-12)
	assert.Equal(t, 0.0, app.MonthRing.Progress())
	assert.Equal(t, 0.5, app.DayRing.Progress())

	assert.Equal(t, "16.4%", app.YearValue.Text)
	assert.Equal(t, "0.0%", app.MonthValue.Text)
	assert.Equal(t, "50.0%", app.DayValue.Text)

	require.NotNil(t, mockTray.Menu)
	assert.Equal(t, "Y 16.4% · M 0.0% · D 50.0%", app.TrayStatusItem.Label)
}

func TestRefreshLabels_FollowsLanguage(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.buildMainWindow()

	assert.Equal(t, "The Progress of", app.headline.Text)
	assert.Equal(t, "Progress Tracker", app.Window.Title())

	app.Preferences.SetString(config.PrefLanguage, "fr")
	app.UpdateLocalizer()
	app.RefreshLabels()

	assert.Equal(t, "La progression de", app.headline.Text)
	assert.Equal(t, "Jour", app.dayTitle.Text)
	assert.Equal(t, "Suivi de progression", app.Window.Title())
}

func TestTrayStatus_FallbackWithoutLocalizer(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.setupTrayMenu()

	app.LocMut.Lock()
	app.Localizer = nil
	app.LocMut.Unlock()

	app.ApplySnapshot(engine.Snapshot{Year: 0.25, Month: 0.5, Day: 0.75})
	assert.Equal(t, "Y 25.0% · M 50.0% · D 75.0%", app.TrayStatusItem.Label)
}

// -----------------------------------------------------------------------------
// Refresh Lifecycle Tests
// -----------------------------------------------------------------------------

// TestActivate_PublishesToFeed checks activation publishes immediately and
// deactivation stops the schedule.
func TestActivate_PublishesToFeed(t *testing.T) {
	app, fc, _ := setupTestApp(t)
	handler := app.Server.Handler()

	get := func() int {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, config.RouteProgress, nil))
		return w.Code
	}
	assert.Equal(t, http.StatusServiceUnavailable, get())

	app.Activate()
	app.Activate() // no-op while active

	require.Eventually(t, func() bool { return get() == http.StatusOK },
		2*time.Second, 10*time.Millisecond, "activation must publish without waiting for a tick")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1), "exactly one ticker must be armed")

	app.Deactivate()
	require.NoError(t, fc.BlockUntilContext(ctx, 0), "deactivation must stop the ticker")
	app.Deactivate() // no-op while inactive

	snap, ok := app.Refresher.Current()
	require.True(t, ok)
	assert.Equal(t, 0.5, snap.Day)
}

func TestNewLifeProgressApp_SubscribesDisplay(t *testing.T) {
	app, _, _ := setupTestApp(t)

	require.Len(t, app.Refresher.Publishers, 2, "feed server plus the display")
	assert.Same(t, app.Server, app.Refresher.Publishers[0])

	// Without a refresher activation is inert.
	app.Refresher = nil
	app.Activate()
	app.Deactivate()
}
