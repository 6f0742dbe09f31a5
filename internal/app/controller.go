package app

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AreteDriver/EVE-Overview/internal/config"
	"github.com/AreteDriver/EVE-Overview/internal/hotkey"
	"github.com/AreteDriver/EVE-Overview/internal/logger"
	"github.com/AreteDriver/EVE-Overview/internal/preview"
	"github.com/AreteDriver/EVE-Overview/internal/window"
)

// selfTitleMarkers identify this application's own windows, which are
// excluded from enumeration so a panel never previews another panel.
var selfTitleMarkers = []string{"EVE Overview", "Preview"}

const (
	activateTimeout = 2 * time.Second

	// captureBudget bounds one capture attempt. The tool backends
	// enforce tighter per-subprocess timeouts underneath it.
	captureBudget = 2 * time.Second
)

// Event is a state-change notification fanned out to subscribers (the
// websocket event stream, primarily).
type Event struct {
	Type     string `json:"type"`
	WindowID string `json:"window_id,omitempty"`
	Profile  string `json:"profile,omitempty"`
	Combo    string `json:"combo,omitempty"`
}

// Notifier shows a best-effort desktop notification.
type Notifier interface {
	Notify(summary, body string)
}

// Controller owns all mutable application state. Every mutation runs on
// a single dispatch loop; capture ticks and hotkey triggers from other
// goroutines are marshaled onto it.
type Controller struct {
	store    *config.Store
	backend  window.Backend
	hotkeys  *hotkey.Registry
	notifier Notifier

	panels       map[string]*preview.Panel
	profileName  string
	refreshRate  int
	alwaysOnTop  bool
	clickThrough bool

	ops  chan func()
	quit chan struct{}
	wg   sync.WaitGroup

	subMu     sync.RWMutex
	eventSubs []func(Event)
	frameSubs []func(windowID string, img image.Image)
}

// NewController wires the store, the window backend, and the hotkey
// listener together. notifier may be nil.
func NewController(store *config.Store, backend window.Backend, listener hotkey.Listener, notifier Notifier) *Controller {
	c := &Controller{
		store:       store,
		backend:     backend,
		notifier:    notifier,
		panels:      make(map[string]*preview.Panel),
		refreshRate: config.ClampRefreshRate(30),
		ops:         make(chan func(), 64),
		quit:        make(chan struct{}),
	}
	c.hotkeys = hotkey.NewRegistry(listener, c.Dispatch)
	return c
}

// Start runs the dispatch loop, starts the hotkey listener, and loads
// the current profile.
func (c *Controller) Start() error {
	c.wg.Add(1)
	go c.loop()

	c.hotkeys.Start()

	return c.LoadProfile(c.store.CurrentProfile().Name)
}

// Stop persists the live panel state into the current profile, tears
// everything down, and halts the dispatch loop.
func (c *Controller) Stop() {
	c.do(func() {
		if err := c.saveProfileLocked(c.profileName); err != nil {
			logger.WithComponent("app").Error().Err(err).Msg("Failed to save profile on exit")
		}
		c.teardownPanelsLocked()
	})
	c.hotkeys.Stop()
	close(c.quit)
	c.wg.Wait()
}

func (c *Controller) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.quit:
			return
		case fn := <-c.ops:
			fn()
		}
	}
}

// Dispatch enqueues fn onto the event loop without waiting for it.
func (c *Controller) Dispatch(fn func()) {
	select {
	case c.ops <- fn:
	case <-c.quit:
	}
}

// do runs fn on the event loop and waits for it to finish.
func (c *Controller) do(fn func()) {
	done := make(chan struct{})
	c.Dispatch(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-c.quit:
	}
}

// Subscribe registers an observer for state-change events.
func (c *Controller) Subscribe(fn func(Event)) {
	c.subMu.Lock()
	c.eventSubs = append(c.eventSubs, fn)
	c.subMu.Unlock()
}

// SubscribeFrames registers an observer for freshly captured frames.
func (c *Controller) SubscribeFrames(fn func(windowID string, img image.Image)) {
	c.subMu.Lock()
	c.frameSubs = append(c.frameSubs, fn)
	c.subMu.Unlock()
}

func (c *Controller) emit(ev Event) {
	c.subMu.RLock()
	subs := make([]func(Event), len(c.eventSubs))
	copy(subs, c.eventSubs)
	c.subMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (c *Controller) emitFrame(windowID string, img image.Image) {
	c.subMu.RLock()
	subs := make([]func(string, image.Image), len(c.frameSubs))
	copy(subs, c.frameSubs)
	c.subMu.RUnlock()
	for _, fn := range subs {
		fn(windowID, img)
	}
}

// ListWindows enumerates desktop windows, excluding this application's
// own.
func (c *Controller) ListWindows(ctx context.Context) []window.Info {
	all := c.backend.ListWindows(ctx)
	out := make([]window.Info, 0, len(all))
	for _, w := range all {
		if isSelfWindow(w.Title) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func isSelfWindow(title string) bool {
	for _, marker := range selfTitleMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// AddPanel creates and starts a preview panel for the given window. An
// existing panel for the same window is torn down first.
func (c *Controller) AddPanel(cfg config.WindowConfig) (panel *preview.Panel, err error) {
	c.do(func() {
		panel, err = c.addPanelLocked(cfg)
	})
	return panel, err
}

func (c *Controller) addPanelLocked(cfg config.WindowConfig) (*preview.Panel, error) {
	if cfg.WindowID == "" {
		return nil, fmt.Errorf("window id is required")
	}
	if old, ok := c.panels[cfg.WindowID]; ok {
		c.closePanelLocked(old)
	}

	p := preview.NewPanel(cfg.WindowID, cfg.WindowTitle, preview.Callbacks{
		Refresh: c.refreshPanel,
		GeometryChanged: func(p *preview.Panel) {
			c.emit(Event{Type: "panel_geometry", WindowID: p.WindowID()})
		},
		Closed: func(windowID string) {
			c.emit(Event{Type: "panel_closed", WindowID: windowID})
		},
	})
	p.SetGeometry(preview.Geometry{X: cfg.X, Y: cfg.Y, Width: cfg.Width, Height: cfg.Height})
	p.SetScale(cfg.Scale)
	p.SetVisible(cfg.Enabled)
	c.panels[cfg.WindowID] = p

	if cfg.Hotkey != "" {
		if err := c.bindHotkeyLocked(p, cfg.Hotkey); err != nil {
			logger.WithComponent("app").Warn().
				Err(err).
				Str("window", cfg.WindowID).
				Str("combo", cfg.Hotkey).
				Msg("Failed to bind panel hotkey")
			c.notify("Hotkey unavailable", fmt.Sprintf("Could not bind %s: %v", cfg.Hotkey, err))
		}
	}

	p.Start(c.refreshRate)
	c.emit(Event{Type: "panel_created", WindowID: cfg.WindowID})
	logger.WithComponent("app").Info().
		Str("window", cfg.WindowID).
		Str("title", cfg.WindowTitle).
		Msg("Panel created")
	return p, nil
}

// refreshPanel runs on the panel's ticker goroutine. Captures are
// best-effort: a missed frame is logged and skipped, the previous frame
// stays up. The capture budget is independent of the frame rate; a
// subprocess capture routinely outlives a 30 FPS tick, and the ticker
// simply drops ticks while one is in flight.
func (c *Controller) refreshPanel(p *preview.Panel) {
	if !p.Visible() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), captureBudget)
	defer cancel()

	img, err := c.backend.Capture(ctx, p.WindowID(), p.Scale())
	if err != nil {
		logger.WithComponent("app").Debug().
			Err(err).
			Str("window", p.WindowID()).
			Msg("Capture miss")
		return
	}
	p.SetFrame(img)
	c.emitFrame(p.WindowID(), img)
}

// ClosePanel tears down the panel for the given window and releases its
// hotkey. Returns false when no such panel exists.
func (c *Controller) ClosePanel(windowID string) (ok bool) {
	c.do(func() {
		p, exists := c.panels[windowID]
		if !exists {
			return
		}
		c.closePanelLocked(p)
		ok = true
	})
	return ok
}

func (c *Controller) closePanelLocked(p *preview.Panel) {
	c.hotkeys.Unregister(hotkeyName(p.WindowID()))
	delete(c.panels, p.WindowID())
	p.Close()
}

func (c *Controller) teardownPanelsLocked() {
	for _, p := range c.panels {
		c.closePanelLocked(p)
	}
}

// Panel returns the live panel for a window id.
func (c *Controller) Panel(windowID string) (panel *preview.Panel, ok bool) {
	c.do(func() {
		panel, ok = c.panels[windowID]
	})
	return panel, ok
}

// Panels returns the live panels sorted by window id.
func (c *Controller) Panels() []*preview.Panel {
	var out []*preview.Panel
	c.do(func() {
		for _, p := range c.panels {
			out = append(out, p)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].WindowID() < out[j].WindowID() })
	return out
}

// SetPanelHotkey binds combo to the panel's source window, replacing
// any previous binding. An empty combo unbinds.
func (c *Controller) SetPanelHotkey(windowID, combo string) (err error) {
	c.do(func() {
		p, ok := c.panels[windowID]
		if !ok {
			err = fmt.Errorf("no panel for window %s", windowID)
			return
		}
		if combo == "" {
			c.hotkeys.Unregister(hotkeyName(windowID))
			p.SetHotkey("")
			return
		}
		err = c.bindHotkeyLocked(p, combo)
	})
	return err
}

func (c *Controller) bindHotkeyLocked(p *preview.Panel, combo string) error {
	parsed := hotkey.Parse(combo)
	windowID := p.WindowID()
	err := c.hotkeys.Register(hotkeyName(windowID), parsed, func() {
		c.emit(Event{Type: "hotkey_triggered", WindowID: windowID, Combo: parsed.String()})
		c.activate(windowID)
	})
	if err != nil {
		return err
	}
	p.SetHotkey(parsed.String())
	return nil
}

func (c *Controller) activate(windowID string) {
	ctx, cancel := context.WithTimeout(context.Background(), activateTimeout)
	defer cancel()
	if err := c.backend.Activate(ctx, windowID); err != nil {
		logger.WithComponent("app").Warn().
			Err(err).
			Str("window", windowID).
			Msg("Failed to activate window")
	}
}

// Activate raises and focuses a source window directly.
func (c *Controller) Activate(ctx context.Context, windowID string) error {
	return c.backend.Activate(ctx, windowID)
}

// SetPanelGeometry moves or resizes a panel.
func (c *Controller) SetPanelGeometry(windowID string, g preview.Geometry) (err error) {
	c.do(func() {
		p, ok := c.panels[windowID]
		if !ok {
			err = fmt.Errorf("no panel for window %s", windowID)
			return
		}
		p.SetGeometry(g)
	})
	return err
}

// SetPanelVisible shows or hides a panel. A hidden panel keeps its
// ticker and hotkey but skips captures; the next save records it as
// disabled.
func (c *Controller) SetPanelVisible(windowID string, visible bool) (err error) {
	c.do(func() {
		p, ok := c.panels[windowID]
		if !ok {
			err = fmt.Errorf("no panel for window %s", windowID)
			return
		}
		p.SetVisible(visible)
		c.emit(Event{Type: "panel_visibility", WindowID: windowID})
	})
	return err
}

// SetPanelScale changes a panel's capture scale.
func (c *Controller) SetPanelScale(windowID string, scale float64) (err error) {
	c.do(func() {
		p, ok := c.panels[windowID]
		if !ok {
			err = fmt.Errorf("no panel for window %s", windowID)
			return
		}
		p.SetScale(scale)
	})
	return err
}

// SetRefreshRate changes the capture rate for every panel.
func (c *Controller) SetRefreshRate(fps int) {
	c.do(func() {
		c.refreshRate = config.ClampRefreshRate(fps)
		for _, p := range c.panels {
			p.SetRefreshRate(c.refreshRate)
		}
	})
}

// RefreshRate returns the current capture rate.
func (c *Controller) RefreshRate() (fps int) {
	c.do(func() { fps = c.refreshRate })
	return fps
}

// CurrentProfileName returns the name of the loaded profile.
func (c *Controller) CurrentProfileName() (name string) {
	c.do(func() { name = c.profileName })
	return name
}

// LoadProfile tears down every live panel, then recreates panels from
// the named profile. Teardown always completes before creation begins.
func (c *Controller) LoadProfile(name string) (err error) {
	c.do(func() {
		var profile *config.Profile
		profile, err = c.store.LoadProfile(name)
		if err != nil {
			return
		}

		c.teardownPanelsLocked()

		c.profileName = profile.Name
		c.refreshRate = profile.RefreshRate
		c.alwaysOnTop = profile.AlwaysOnTop
		c.clickThrough = profile.ClickThrough

		// Disabled entries still get a panel, hidden, so toggling
		// them back on and the next save both see them.
		for _, wcfg := range profile.Windows {
			if _, perr := c.addPanelLocked(wcfg); perr != nil {
				logger.WithComponent("app").Warn().
					Err(perr).
					Str("window", wcfg.WindowID).
					Msg("Skipping panel from profile")
			}
		}

		c.emit(Event{Type: "profile_loaded", Profile: profile.Name})
		logger.WithComponent("app").Info().
			Str("profile", profile.Name).
			Int("panels", len(c.panels)).
			Msg("Profile loaded")
	})
	return err
}

// SaveProfile persists the live panel state under the given name, or
// under the loaded profile's name when empty.
func (c *Controller) SaveProfile(name string) (err error) {
	c.do(func() {
		err = c.saveProfileLocked(name)
	})
	return err
}

func (c *Controller) saveProfileLocked(name string) error {
	if name == "" {
		name = c.profileName
	}
	if name == "" {
		name = config.DefaultProfileName
	}

	profile := config.NewProfile(name)
	profile.RefreshRate = c.refreshRate
	profile.AlwaysOnTop = c.alwaysOnTop
	profile.ClickThrough = c.clickThrough

	ids := make([]string, 0, len(c.panels))
	for id := range c.panels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := c.panels[id]
		g := p.Geometry()
		profile.Windows = append(profile.Windows, config.WindowConfig{
			WindowID:    p.WindowID(),
			WindowTitle: p.Title(),
			X:           g.X,
			Y:           g.Y,
			Width:       g.Width,
			Height:      g.Height,
			Scale:       p.Scale(),
			Hotkey:      p.Hotkey(),
			Enabled:     p.Visible(),
		})
	}

	return c.store.SaveProfile(profile)
}

// SwitchProfile saves the loaded profile, loads the named one, and
// records it as current.
func (c *Controller) SwitchProfile(name string) error {
	if err := c.SaveProfile(""); err != nil {
		return fmt.Errorf("saving current profile: %w", err)
	}
	if err := c.LoadProfile(name); err != nil {
		return err
	}
	c.store.SetCurrentProfile(name)
	return nil
}

// Hotkeys returns the binding name to combo map.
func (c *Controller) Hotkeys() map[string]string {
	return c.hotkeys.Bindings()
}

func (c *Controller) notify(summary, body string) {
	if c.notifier != nil {
		c.notifier.Notify(summary, body)
	}
}

func hotkeyName(windowID string) string {
	return "preview_" + windowID
}
