package app

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/AreteDriver/EVE-Overview/internal/config"
	"github.com/AreteDriver/EVE-Overview/internal/hotkey"
	"github.com/AreteDriver/EVE-Overview/internal/preview"
	"github.com/AreteDriver/EVE-Overview/internal/window"
)

type fakeBackend struct {
	mu           sync.Mutex
	windows      []window.Info
	captureErr   error
	captureDelay time.Duration
	activated    []string
	activateCh   chan string
}

func newFakeBackend(windows ...window.Info) *fakeBackend {
	return &fakeBackend{windows: windows, activateCh: make(chan string, 8)}
}

func (f *fakeBackend) ListWindows(ctx context.Context) []window.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]window.Info, len(f.windows))
	copy(out, f.windows)
	return out
}

func (f *fakeBackend) Capture(ctx context.Context, windowID string, scale float64) (image.Image, error) {
	f.mu.Lock()
	delay := f.captureDelay
	err := f.captureErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (f *fakeBackend) Activate(ctx context.Context, windowID string) error {
	f.mu.Lock()
	f.activated = append(f.activated, windowID)
	f.mu.Unlock()
	select {
	case f.activateCh <- windowID:
	default:
	}
	return nil
}

func (f *fakeBackend) Name() string    { return "fake" }
func (f *fakeBackend) Available() bool { return true }

type fakeListener struct {
	mu        sync.Mutex
	onTrigger func(name string)
}

func (f *fakeListener) Start(bindings []hotkey.Binding, onTrigger func(name string)) error {
	f.mu.Lock()
	f.onTrigger = onTrigger
	f.mu.Unlock()
	return nil
}

func (f *fakeListener) Stop() {
	f.mu.Lock()
	f.onTrigger = nil
	f.mu.Unlock()
}

func (f *fakeListener) trigger(name string) {
	f.mu.Lock()
	fn := f.onTrigger
	f.mu.Unlock()
	if fn != nil {
		fn(name)
	}
}

func newTestController(t *testing.T, backend window.Backend, listener hotkey.Listener) *Controller {
	t.Helper()
	store, err := config.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if backend == nil {
		backend = newFakeBackend()
	}
	if listener == nil {
		listener = &fakeListener{}
	}
	c := NewController(store, backend, listener, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestListWindowsFiltersOwnWindows(t *testing.T) {
	backend := newFakeBackend(
		window.Info{ID: "0x1", Title: "EVE - Pilot One"},
		window.Info{ID: "0x2", Title: "EVE Overview"},
		window.Info{ID: "0x3", Title: "Preview: EVE - Pilot Two"},
		window.Info{ID: "0x4", Title: "Terminal"},
	)
	c := newTestController(t, backend, nil)

	got := c.ListWindows(context.Background())
	if len(got) != 2 {
		t.Fatalf("got %d windows, want 2: %v", len(got), got)
	}
	if got[0].ID != "0x1" || got[1].ID != "0x4" {
		t.Errorf("unexpected windows survived the filter: %v", got)
	}
}

func TestAddPanelReplacesExisting(t *testing.T) {
	c := newTestController(t, nil, nil)

	first, err := c.AddPanel(config.WindowConfig{WindowID: "0x1", WindowTitle: "a", Scale: 0.5, Enabled: true})
	if err != nil {
		t.Fatalf("AddPanel: %v", err)
	}
	second, err := c.AddPanel(config.WindowConfig{WindowID: "0x1", WindowTitle: "a", Scale: 0.8, Enabled: true})
	if err != nil {
		t.Fatalf("AddPanel: %v", err)
	}

	if first == second {
		t.Fatal("second AddPanel returned the original panel")
	}
	if first.Running() {
		t.Error("replaced panel still running")
	}
	if panels := c.Panels(); len(panels) != 1 || panels[0] != second {
		t.Errorf("panels = %v", panels)
	}
}

func TestAddPanelRequiresWindowID(t *testing.T) {
	c := newTestController(t, nil, nil)
	if _, err := c.AddPanel(config.WindowConfig{WindowTitle: "no id"}); err == nil {
		t.Fatal("expected error for empty window id")
	}
}

func TestClosePanelReleasesHotkey(t *testing.T) {
	c := newTestController(t, nil, &fakeListener{})

	if _, err := c.AddPanel(config.WindowConfig{WindowID: "0x1", Enabled: true, Hotkey: "Ctrl+Alt+1"}); err != nil {
		t.Fatalf("AddPanel: %v", err)
	}
	if _, ok := c.Hotkeys()["preview_0x1"]; !ok {
		t.Fatal("hotkey not registered on panel creation")
	}

	if !c.ClosePanel("0x1") {
		t.Fatal("ClosePanel returned false")
	}
	if _, ok := c.Hotkeys()["preview_0x1"]; ok {
		t.Error("hotkey survived panel close")
	}
	if c.ClosePanel("0x1") {
		t.Error("second ClosePanel should return false")
	}
}

func TestPanelClosedEventFiresOnce(t *testing.T) {
	c := newTestController(t, nil, nil)

	var mu sync.Mutex
	closed := 0
	c.Subscribe(func(ev Event) {
		if ev.Type == "panel_closed" && ev.WindowID == "0x1" {
			mu.Lock()
			closed++
			mu.Unlock()
		}
	})

	p, err := c.AddPanel(config.WindowConfig{WindowID: "0x1", Enabled: true})
	if err != nil {
		t.Fatalf("AddPanel: %v", err)
	}
	c.ClosePanel("0x1")
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	if closed != 1 {
		t.Errorf("panel_closed fired %d times, want 1", closed)
	}
}

func TestHotkeyTriggerActivatesSource(t *testing.T) {
	backend := newFakeBackend()
	listener := &fakeListener{}
	c := newTestController(t, backend, listener)

	if _, err := c.AddPanel(config.WindowConfig{WindowID: "0x2a", Enabled: true, Hotkey: "Ctrl+Alt+2"}); err != nil {
		t.Fatalf("AddPanel: %v", err)
	}

	listener.trigger("preview_0x2a")
	select {
	case id := <-backend.activateCh:
		if id != "0x2a" {
			t.Errorf("activated %q, want 0x2a", id)
		}
	case <-time.After(time.Second):
		t.Fatal("hotkey trigger never reached the backend")
	}
}

func TestSetPanelHotkeyUnbindsOnEmpty(t *testing.T) {
	c := newTestController(t, nil, &fakeListener{})
	c.AddPanel(config.WindowConfig{WindowID: "0x1", Enabled: true})

	if err := c.SetPanelHotkey("0x1", "Super+E"); err != nil {
		t.Fatalf("SetPanelHotkey: %v", err)
	}
	if err := c.SetPanelHotkey("0x1", ""); err != nil {
		t.Fatalf("SetPanelHotkey(empty): %v", err)
	}
	if _, ok := c.Hotkeys()["preview_0x1"]; ok {
		t.Error("binding survived unbind")
	}
	if p, _ := c.Panel("0x1"); p.Hotkey() != "" {
		t.Errorf("panel hotkey = %q, want empty", p.Hotkey())
	}
}

func TestSaveProfileCapturesLiveState(t *testing.T) {
	c := newTestController(t, nil, &fakeListener{})

	c.AddPanel(config.WindowConfig{
		WindowID:    "0x1",
		WindowTitle: "EVE - Pilot One",
		Scale:       0.5,
		Hotkey:      "Ctrl+Alt+1",
		Enabled:     true,
	})
	c.SetPanelGeometry("0x1", preview.Geometry{X: 5, Y: 6, Width: 320, Height: 240})
	c.SetRefreshRate(15)

	if err := c.SaveProfile("combat"); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	store, _ := config.NewStore(c.store.ConfigDir())
	p, err := store.LoadProfile("combat")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.RefreshRate != 15 {
		t.Errorf("refresh rate = %d, want 15", p.RefreshRate)
	}
	if len(p.Windows) != 1 {
		t.Fatalf("saved %d windows, want 1", len(p.Windows))
	}
	w := p.Windows[0]
	if w.WindowID != "0x1" || w.X != 5 || w.Y != 6 || w.Width != 320 || w.Height != 240 {
		t.Errorf("saved window = %+v", w)
	}
	if w.Scale != 0.5 || w.Hotkey != "Ctrl+Alt+1" || !w.Enabled {
		t.Errorf("saved window = %+v", w)
	}
}

func TestLoadProfileRebuildsPanels(t *testing.T) {
	c := newTestController(t, nil, &fakeListener{})

	profile := config.NewProfile("mining")
	profile.RefreshRate = 5
	profile.ClickThrough = true
	profile.Windows = []config.WindowConfig{
		{WindowID: "0x10", WindowTitle: "a", Scale: 0.3, Enabled: true},
		{WindowID: "0x11", WindowTitle: "b", Scale: 0.3, Enabled: false},
	}
	if err := c.store.SaveProfile(profile); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	stale, _ := c.AddPanel(config.WindowConfig{WindowID: "0xff", Enabled: true})
	if err := c.LoadProfile("mining"); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}

	if stale.Running() {
		t.Error("stale panel still running after profile load")
	}
	panels := c.Panels()
	if len(panels) != 2 || panels[0].WindowID() != "0x10" || panels[1].WindowID() != "0x11" {
		t.Fatalf("panels after load = %v", panels)
	}
	if !panels[0].Visible() {
		t.Error("enabled profile entry loaded hidden")
	}
	if panels[1].Visible() {
		t.Error("disabled profile entry loaded visible")
	}
	if c.RefreshRate() != 5 {
		t.Errorf("refresh rate = %d, want 5", c.RefreshRate())
	}
	if c.CurrentProfileName() != "mining" {
		t.Errorf("current profile = %q", c.CurrentProfileName())
	}

	// Display flags survive a load-then-save round trip.
	if err := c.SaveProfile(""); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	saved, err := c.store.LoadProfile("mining")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if !saved.ClickThrough {
		t.Error("click_through lost on save")
	}
	if len(saved.Windows) != 2 || saved.Windows[1].Enabled {
		t.Errorf("saved windows = %+v", saved.Windows)
	}
}

func TestLoadProfileUnknownName(t *testing.T) {
	c := newTestController(t, nil, nil)
	if err := c.LoadProfile("nope"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestSwitchProfilePersistsCurrent(t *testing.T) {
	c := newTestController(t, nil, nil)

	if err := c.store.SaveProfile(config.NewProfile("pvp")); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if err := c.SwitchProfile("pvp"); err != nil {
		t.Fatalf("SwitchProfile: %v", err)
	}
	if got := c.store.CurrentProfile().Name; got != "pvp" {
		t.Errorf("current profile = %q, want pvp", got)
	}
}

func TestSlowCaptureStillDeliversFrames(t *testing.T) {
	// A subprocess capture routinely takes longer than a 30 FPS frame
	// interval; the capture budget must not shrink with the rate.
	backend := newFakeBackend()
	backend.captureDelay = 100 * time.Millisecond
	c := newTestController(t, backend, nil)

	frames := make(chan struct{}, 1)
	c.SubscribeFrames(func(string, image.Image) {
		select {
		case frames <- struct{}{}:
		default:
		}
	})

	c.AddPanel(config.WindowConfig{WindowID: "0x1", Scale: 1.0, Enabled: true})
	c.SetRefreshRate(30)

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered from slow capture")
	}
}

func TestSetPanelVisible(t *testing.T) {
	c := newTestController(t, nil, nil)
	c.AddPanel(config.WindowConfig{WindowID: "0x1", WindowTitle: "a", Scale: 0.5, Enabled: true})

	var mu sync.Mutex
	events := 0
	c.Subscribe(func(ev Event) {
		if ev.Type == "panel_visibility" && ev.WindowID == "0x1" {
			mu.Lock()
			events++
			mu.Unlock()
		}
	})

	if err := c.SetPanelVisible("0x1", false); err != nil {
		t.Fatalf("SetPanelVisible: %v", err)
	}
	p, _ := c.Panel("0x1")
	if p.Visible() {
		t.Error("panel still visible after hide")
	}
	if !p.Running() {
		t.Error("hidden panel lost its ticker")
	}
	mu.Lock()
	if events != 1 {
		t.Errorf("panel_visibility fired %d times, want 1", events)
	}
	mu.Unlock()

	// The next save records the hidden panel as disabled.
	if err := c.SaveProfile("hidden"); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	saved, err := c.store.LoadProfile("hidden")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if len(saved.Windows) != 1 || saved.Windows[0].Enabled {
		t.Errorf("saved windows = %+v", saved.Windows)
	}

	if err := c.SetPanelVisible("0x1", true); err != nil {
		t.Fatalf("SetPanelVisible: %v", err)
	}
	if !p.Visible() {
		t.Error("panel still hidden after show")
	}

	if err := c.SetPanelVisible("0xnope", false); err == nil {
		t.Error("expected error for unknown panel")
	}
}

func TestCaptureFeedsFrameSubscribers(t *testing.T) {
	backend := newFakeBackend()
	c := newTestController(t, backend, nil)

	frames := make(chan string, 8)
	c.SubscribeFrames(func(windowID string, img image.Image) {
		select {
		case frames <- windowID:
		default:
		}
	})

	c.AddPanel(config.WindowConfig{WindowID: "0x1", Scale: 1.0, Enabled: true})
	c.SetRefreshRate(60)

	select {
	case id := <-frames:
		if id != "0x1" {
			t.Errorf("frame for %q, want 0x1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
}
