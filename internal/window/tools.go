package window

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os/exec"
	"strings"
	"time"

	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

// Per-call timeouts. Enumeration tolerates a slower window manager;
// capture and activation must not stall a refresh cycle.
const (
	listTimeout     = 2 * time.Second
	captureTimeout  = time.Second
	activateTimeout = time.Second
)

// runFunc executes an external tool and returns its stdout. The seam
// exists so tests can substitute canned output for real processes.
type runFunc func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// recoverable reports whether a tool failure may be handled by a
// fallback: tool missing, timeout, or non-zero exit. Anything else
// (a programming error, a bad pipe) surfaces to the caller's log.
func recoverable(err error) bool {
	var exitErr *exec.ExitError
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &exitErr)
}

// ToolsBackend drives external window-manager utilities (wmctrl,
// xdotool, ImageMagick, xwd) with primary/fallback pairs and bounded
// timeouts for every invocation.
type ToolsBackend struct {
	run runFunc
}

// NewToolsBackend creates a backend using the real system tools.
func NewToolsBackend() *ToolsBackend {
	return &ToolsBackend{run: runCommand}
}

// Name returns the backend name.
func (b *ToolsBackend) Name() string {
	return "tools"
}

// Available reports whether at least one enumeration tool is on PATH.
func (b *ToolsBackend) Available() bool {
	for _, tool := range []string{"wmctrl", "xdotool"} {
		if _, err := exec.LookPath(tool); err == nil {
			return true
		}
	}
	return false
}

// ListWindows enumerates open windows via wmctrl, falling back to
// xdotool with a per-window title lookup. Any failure degrades to an
// empty list.
func (b *ToolsBackend) ListWindows(ctx context.Context) []Info {
	log := logger.WithComponent("window-tools")

	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	out, err := b.run(listCtx, nil, "wmctrl", "-l")
	if err == nil {
		return parseWmctrlList(out)
	}
	if !recoverable(err) {
		log.Error().Err(err).Msg("wmctrl failed unrecoverably")
		return []Info{}
	}
	log.Debug().Err(err).Msg("wmctrl unavailable, trying xdotool")

	return b.listWindowsXdotool(ctx)
}

// parseWmctrlList parses `wmctrl -l` output: one window per line,
// "<id> <desktop> <host> <title...>".
func parseWmctrlList(out []byte) []Info {
	windows := []Info{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		// Title is everything after the third field. Scan past the
		// fields by offset so the title keeps its internal spacing
		// and a host string that also occurs inside the window id
		// cannot mis-split the line.
		i := 0
		for field := 0; field < 3; field++ {
			for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
				i++
			}
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
		}
		title := strings.TrimSpace(line[i:])
		windows = append(windows, Info{ID: parts[0], Title: title})
	}
	return windows
}

func (b *ToolsBackend) listWindowsXdotool(ctx context.Context) []Info {
	log := logger.WithComponent("window-tools")

	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	out, err := b.run(listCtx, nil, "xdotool", "search", "--onlyvisible", "--name", "")
	if err != nil {
		log.Debug().Err(err).Msg("xdotool search failed, returning empty window list")
		return []Info{}
	}

	windows := []Info{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			continue
		}
		windows = append(windows, Info{ID: id, Title: b.windowTitle(ctx, id)})
	}
	return windows
}

// windowTitle looks up a title by id via xdotool; "Unknown" on failure.
func (b *ToolsBackend) windowTitle(ctx context.Context, windowID string) string {
	titleCtx, cancel := context.WithTimeout(ctx, activateTimeout)
	defer cancel()

	out, err := b.run(titleCtx, nil, "xdotool", "getwindowname", windowID)
	if err != nil {
		return "Unknown"
	}
	title := strings.TrimSpace(string(out))
	if title == "" {
		return "Unknown"
	}
	return title
}

// Capture grabs a window bitmap via ImageMagick's import, falling back
// to xwd piped through convert. The decoded image is downsampled by
// scale. Returns ErrNoImage when both chains fail.
func (b *ToolsBackend) Capture(ctx context.Context, windowID string, scale float64) (image.Image, error) {
	log := logger.WithComponent("window-tools")

	capCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	out, err := b.run(capCtx, nil, "import", "-window", windowID, "-silent", "png:-")
	cancel()
	if err == nil && len(out) > 0 {
		if img, decErr := decodeAndScale(out, scale); decErr == nil {
			return img, nil
		} else {
			log.Debug().Err(decErr).Str("window", windowID).Msg("import output undecodable, trying xwd")
		}
	} else if err != nil && !recoverable(err) {
		log.Error().Err(err).Str("window", windowID).Msg("import failed unrecoverably")
		return nil, fmt.Errorf("capture %s: %w", windowID, ErrNoImage)
	}

	return b.captureXwd(ctx, windowID, scale)
}

// captureXwd is the fallback chain: raw xwd dump converted to PNG.
func (b *ToolsBackend) captureXwd(ctx context.Context, windowID string, scale float64) (image.Image, error) {
	log := logger.WithComponent("window-tools")

	xwdCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	raw, err := b.run(xwdCtx, nil, "xwd", "-id", windowID, "-silent")
	cancel()
	if err != nil {
		log.Debug().Err(err).Str("window", windowID).Msg("xwd capture failed")
		return nil, fmt.Errorf("capture %s: %w", windowID, ErrNoImage)
	}

	convCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()
	out, err := b.run(convCtx, raw, "convert", "xwd:-", "png:-")
	if err != nil || len(out) == 0 {
		log.Debug().Err(err).Str("window", windowID).Msg("xwd conversion failed")
		return nil, fmt.Errorf("capture %s: %w", windowID, ErrNoImage)
	}

	img, err := decodeAndScale(out, scale)
	if err != nil {
		log.Debug().Err(err).Str("window", windowID).Msg("xwd output undecodable")
		return nil, fmt.Errorf("capture %s: %w", windowID, ErrNoImage)
	}
	return img, nil
}

func decodeAndScale(data []byte, scale float64) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	return Scale(img, scale), nil
}

// Activate raises a window via wmctrl, falling back to xdotool. The
// result is boolean-like: an error means neither tool succeeded.
func (b *ToolsBackend) Activate(ctx context.Context, windowID string) error {
	actCtx, cancel := context.WithTimeout(ctx, activateTimeout)
	_, err := b.run(actCtx, nil, "wmctrl", "-i", "-a", windowID)
	cancel()
	if err == nil {
		return nil
	}

	fbCtx, cancel := context.WithTimeout(ctx, activateTimeout)
	defer cancel()
	if _, err := b.run(fbCtx, nil, "xdotool", "windowactivate", windowID); err != nil {
		return fmt.Errorf("activate %s: %w", windowID, err)
	}
	return nil
}
