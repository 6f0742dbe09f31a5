package window

import (
	"context"
	"errors"
	"image"

	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

// ErrNoImage is returned when every capture path failed; callers treat
// it as a missed refresh cycle, never as fatal.
var ErrNoImage = errors.New("no image captured")

// Info identifies one open window on the desktop.
type Info struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Backend defines the window-management operations delegated to the
// desktop: enumerate, capture and activate.
type Backend interface {
	// ListWindows returns all visible windows. Enumeration is
	// best-effort: failures yield an empty list, not an error.
	ListWindows(ctx context.Context) []Info

	// Capture grabs a bitmap of the window, downsampled by scale.
	// Returns ErrNoImage when every capture path failed.
	Capture(ctx context.Context, windowID string, scale float64) (image.Image, error)

	// Activate brings the window to the foreground.
	Activate(ctx context.Context, windowID string) error

	// Name returns the backend name (e.g. "tools", "x11").
	Name() string

	// Available checks whether the backend can operate in this
	// environment.
	Available() bool
}

// Detect returns the first usable backend, preferring the external-tool
// backend and falling back to the native X11 connection.
func Detect() Backend {
	log := logger.WithComponent("window")

	tools := NewToolsBackend()
	if tools.Available() {
		log.Info().Str("backend", tools.Name()).Msg("Window backend selected")
		return tools
	}

	x11, err := NewX11Backend()
	if err != nil {
		log.Warn().Err(err).Msg("X11 backend not available")
	} else {
		log.Info().Str("backend", x11.Name()).Msg("Window backend selected")
		return x11
	}

	// Degraded: the tools backend still answers every call, it just
	// returns empty results until the tools appear on PATH.
	log.Warn().Msg("No capture tools found, window operations will be no-ops")
	return tools
}
