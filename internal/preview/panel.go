package preview

import (
	"image"
	"sync"
	"time"

	"github.com/AreteDriver/EVE-Overview/internal/config"
	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

// Geometry is a panel's position and size on the desktop.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Callbacks connect a panel to its owner. The panel never captures or
// persists anything itself; it only keeps state and a refresh clock.
type Callbacks struct {
	// Refresh is invoked on every tick while the panel is running.
	Refresh func(p *Panel)
	// GeometryChanged is invoked after SetGeometry.
	GeometryChanged func(p *Panel)
	// Closed is invoked exactly once with the source window id,
	// regardless of how many times Close is called.
	Closed func(windowID string)
}

// Panel is one live preview of a source window: its latest frame, its
// on-screen geometry, and the ticker driving refreshes.
type Panel struct {
	windowID string
	title    string

	mu       sync.RWMutex
	geometry Geometry
	scale    float64
	hotkey   string
	visible  bool
	frame    image.Image
	interval time.Duration

	cb Callbacks

	running   bool
	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewPanel creates a stopped panel for the given source window.
func NewPanel(windowID, title string, cb Callbacks) *Panel {
	return &Panel{
		windowID: windowID,
		title:    title,
		scale:    config.MaxScale,
		visible:  true,
		interval: time.Second / time.Duration(config.ClampRefreshRate(30)),
		cb:       cb,
	}
}

// WindowID returns the source window id.
func (p *Panel) WindowID() string { return p.windowID }

// Title returns the source window title at panel creation.
func (p *Panel) Title() string { return p.title }

// Start begins the refresh clock at the given frames per second. A
// running panel is left untouched.
func (p *Panel) Start(fps int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	p.interval = fpsInterval(fps)
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})
	p.running = true

	go p.loop(p.ticker, p.done)
	logger.WithComponent("preview").Debug().
		Str("window", p.windowID).
		Dur("interval", p.interval).
		Msg("Panel started")
}

func (p *Panel) loop(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if p.cb.Refresh != nil {
				p.cb.Refresh(p)
			}
		}
	}
}

// Stop halts the refresh clock. The panel keeps its last frame and can
// be started again.
func (p *Panel) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Panel) stopLocked() {
	if !p.running {
		return
	}
	p.ticker.Stop()
	close(p.done)
	p.running = false
}

// Running reports whether the refresh clock is active.
func (p *Panel) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// SetRefreshRate changes the tick rate, re-arming the clock in place
// when the panel is running.
func (p *Panel) SetRefreshRate(fps int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = fpsInterval(fps)
	if p.running {
		p.ticker.Reset(p.interval)
	}
}

// RefreshInterval returns the current tick interval.
func (p *Panel) RefreshInterval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.interval
}

// SetFrame stores the latest captured image.
func (p *Panel) SetFrame(img image.Image) {
	p.mu.Lock()
	p.frame = img
	p.mu.Unlock()
}

// Frame returns the latest captured image, nil before the first
// successful capture.
func (p *Panel) Frame() image.Image {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame
}

// SetGeometry moves or resizes the panel and notifies the owner.
func (p *Panel) SetGeometry(g Geometry) {
	p.mu.Lock()
	p.geometry = g
	p.mu.Unlock()
	if p.cb.GeometryChanged != nil {
		p.cb.GeometryChanged(p)
	}
}

// Geometry returns the current panel geometry.
func (p *Panel) Geometry() Geometry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.geometry
}

// SetScale sets the capture downsampling factor, clamped to the valid
// range.
func (p *Panel) SetScale(scale float64) {
	p.mu.Lock()
	p.scale = config.ClampScale(scale)
	p.mu.Unlock()
}

// Scale returns the capture downsampling factor.
func (p *Panel) Scale() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scale
}

// SetHotkey records the combo bound to this panel, empty for none.
func (p *Panel) SetHotkey(combo string) {
	p.mu.Lock()
	p.hotkey = combo
	p.mu.Unlock()
}

// Hotkey returns the combo bound to this panel.
func (p *Panel) Hotkey() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hotkey
}

// SetVisible toggles whether the panel is shown.
func (p *Panel) SetVisible(v bool) {
	p.mu.Lock()
	p.visible = v
	p.mu.Unlock()
}

// Visible reports whether the panel is shown.
func (p *Panel) Visible() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visible
}

// Close stops the panel and fires the closed notification. Safe to
// call from any origin any number of times; the notification fires
// once.
func (p *Panel) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.stopLocked()
		p.mu.Unlock()
		if p.cb.Closed != nil {
			p.cb.Closed(p.windowID)
		}
		logger.WithComponent("preview").Debug().
			Str("window", p.windowID).
			Msg("Panel closed")
	})
}

func fpsInterval(fps int) time.Duration {
	return time.Second / time.Duration(config.ClampRefreshRate(fps))
}
