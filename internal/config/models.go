package config

// DefaultProfileName is the profile that always exists and cannot be deleted.
const DefaultProfileName = "Default"

// Scale and refresh-rate bounds enforced on every persisted profile.
const (
	MinScale       = 0.1
	MaxScale       = 1.0
	MinRefreshRate = 1
	MaxRefreshRate = 60
)

// WindowConfig describes one tracked window: its last-known panel
// geometry, preview scale, hotkey binding and enabled flag.
type WindowConfig struct {
	WindowID    string  `json:"window_id"`
	WindowTitle string  `json:"window_title"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Scale       float64 `json:"scale"`
	Hotkey      string  `json:"hotkey"`
	Enabled     bool    `json:"enabled"`
}

// Profile is a named collection of window configurations plus the
// display settings shared by all previews in it.
type Profile struct {
	Name         string         `json:"name"`
	Windows      []WindowConfig `json:"windows"`
	RefreshRate  int            `json:"refresh_rate"`
	AlwaysOnTop  bool           `json:"always_on_top"`
	ClickThrough bool           `json:"click_through"`
}

// NewProfile returns an empty profile with the original defaults.
func NewProfile(name string) *Profile {
	return &Profile{
		Name:         name,
		Windows:      []WindowConfig{},
		RefreshRate:  30,
		AlwaysOnTop:  true,
		ClickThrough: false,
	}
}

// Normalize clamps scale and refresh rate into their valid ranges and
// initializes a nil window list.
func (p *Profile) Normalize() {
	p.RefreshRate = ClampRefreshRate(p.RefreshRate)
	if p.Windows == nil {
		p.Windows = []WindowConfig{}
	}
	for i := range p.Windows {
		p.Windows[i].Scale = ClampScale(p.Windows[i].Scale)
	}
}

// ClampScale bounds a preview scale factor into [0.1, 1.0].
func ClampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// ClampRefreshRate bounds a refresh rate into [1, 60] FPS.
func ClampRefreshRate(fps int) int {
	if fps < MinRefreshRate {
		return MinRefreshRate
	}
	if fps > MaxRefreshRate {
		return MaxRefreshRate
	}
	return fps
}

func defaultSettings() map[string]interface{} {
	return map[string]interface{}{
		"current_profile": DefaultProfileName,
		"last_profile":    DefaultProfileName,
		"window_geometry": nil,
		"theme":           "dark",
	}
}
