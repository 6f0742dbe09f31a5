package window

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

// X11Backend talks to the X server directly instead of shelling out.
// It is the fallback when none of the external tools are installed.
type X11Backend struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	root   xproto.Window
}

// NewX11Backend connects to the X server.
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	return &X11Backend{
		conn:   conn,
		screen: screen,
		root:   screen.Root,
	}, nil
}

// Name returns the backend name.
func (b *X11Backend) Name() string {
	return "x11"
}

// Available reports whether the X connection is open.
func (b *X11Backend) Available() bool {
	return b.conn != nil
}

// Close closes the X connection.
func (b *X11Backend) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// ListWindows walks the root window's children and returns every window
// with a title. Failures degrade to an empty list.
func (b *X11Backend) ListWindows(ctx context.Context) []Info {
	log := logger.WithComponent("window-x11")

	tree, err := xproto.QueryTree(b.conn, b.root).Reply()
	if err != nil {
		log.Debug().Err(err).Msg("QueryTree failed, returning empty window list")
		return []Info{}
	}

	windows := []Info{}
	for _, child := range tree.Children {
		title := b.windowTitle(child)
		if title == "" {
			continue
		}
		windows = append(windows, Info{
			ID:    fmt.Sprintf("0x%x", uint32(child)),
			Title: title,
		})
	}
	return windows
}

// windowTitle reads _NET_WM_NAME, falling back to WM_NAME.
func (b *X11Backend) windowTitle(win xproto.Window) string {
	for _, name := range []string{"_NET_WM_NAME", "WM_NAME"} {
		atom, err := b.atom(name)
		if err != nil {
			continue
		}
		if title, err := b.property(win, atom); err == nil && title != "" {
			return title
		}
	}
	return ""
}

func (b *X11Backend) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

func (b *X11Backend) property(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}
	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}
	return string(reply.Value), nil
}

func parseWindowID(windowID string) (xproto.Window, error) {
	id, err := strconv.ParseUint(windowID, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad window id %q: %w", windowID, err)
	}
	return xproto.Window(id), nil
}

// Capture grabs the window contents via GetImage and downsamples by
// scale. Any failure yields ErrNoImage.
func (b *X11Backend) Capture(ctx context.Context, windowID string, scale float64) (image.Image, error) {
	log := logger.WithComponent("window-x11")

	win, err := parseWindowID(windowID)
	if err != nil {
		log.Debug().Err(err).Msg("Capture skipped")
		return nil, fmt.Errorf("capture %s: %w", windowID, ErrNoImage)
	}

	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		log.Debug().Err(err).Str("window", windowID).Msg("GetGeometry failed")
		return nil, fmt.Errorf("capture %s: %w", windowID, ErrNoImage)
	}

	reply, err := xproto.GetImage(
		b.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(win),
		0, 0,
		geom.Width, geom.Height,
		0xffffffff,
	).Reply()
	if err != nil {
		log.Debug().Err(err).Str("window", windowID).Msg("GetImage failed")
		return nil, fmt.Errorf("capture %s: %w", windowID, ErrNoImage)
	}

	img := b.convertImageData(reply.Data, int(geom.Width), int(geom.Height))
	return Scale(img, scale), nil
}

// convertImageData converts X11 ZPixmap data (BGRA) to RGBA.
func (b *X11Backend) convertImageData(data []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	depth := int(b.screen.RootDepth)

	if depth == 24 || depth == 32 {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := (y*width + x) * 4
				if i+3 < len(data) {
					img.Set(x, y, color.RGBA{
						R: data[i+2],
						G: data[i+1],
						B: data[i],
						A: 255,
					})
				}
			}
		}
	}

	return img
}

// Activate raises the window by sending a _NET_ACTIVE_WINDOW client
// message to the root window.
func (b *X11Backend) Activate(ctx context.Context, windowID string) error {
	win, err := parseWindowID(windowID)
	if err != nil {
		return err
	}

	atom, err := b.atom("_NET_ACTIVE_WINDOW")
	if err != nil {
		return fmt.Errorf("activate %s: %w", windowID, err)
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{1, 0, 0, 0, 0}),
	}

	err = xproto.SendEventChecked(
		b.conn,
		false,
		b.root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
	if err != nil {
		return fmt.Errorf("activate %s: %w", windowID, err)
	}
	return nil
}
