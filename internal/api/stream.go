package api

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"

	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

const jpegQuality = 90

// streamHub fans captured frames out to MJPEG clients, one client set
// per source window. Frames are encoded once per capture; slow clients
// drop frames rather than stall the capture loop.
type streamHub struct {
	mu      sync.RWMutex
	clients map[string]map[chan []byte]struct{}
}

func newStreamHub() *streamHub {
	return &streamHub{clients: make(map[string]map[chan []byte]struct{})}
}

// Publish encodes the frame and broadcasts it to every client watching
// the window. Wired to the controller's frame subscription.
func (h *streamHub) Publish(windowID string, img image.Image) {
	h.mu.RLock()
	watchers := len(h.clients[windowID])
	h.mu.RUnlock()
	if watchers == 0 {
		return
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		logger.WithComponent("api").Warn().Err(err).Str("window", windowID).Msg("Failed to encode frame")
		return
	}
	data := buf.Bytes()

	h.mu.RLock()
	for ch := range h.clients[windowID] {
		select {
		case ch <- data:
		default:
			// Client is slow, skip this frame
		}
	}
	h.mu.RUnlock()
}

func (h *streamHub) subscribe(windowID string) chan []byte {
	ch := make(chan []byte, 2)
	h.mu.Lock()
	if h.clients[windowID] == nil {
		h.clients[windowID] = make(map[chan []byte]struct{})
	}
	h.clients[windowID][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *streamHub) unsubscribe(windowID string, ch chan []byte) {
	h.mu.Lock()
	delete(h.clients[windowID], ch)
	if len(h.clients[windowID]) == 0 {
		delete(h.clients, windowID)
	}
	h.mu.Unlock()
}

// close tears every client connection down.
func (h *streamHub) close() {
	h.mu.Lock()
	for _, set := range h.clients {
		for ch := range set {
			close(ch)
		}
	}
	h.clients = make(map[string]map[chan []byte]struct{})
	h.mu.Unlock()
}

// serveStream writes a multipart/x-mixed-replace MJPEG stream for one
// window until the client disconnects.
func (h *streamHub) serveStream(w http.ResponseWriter, r *http.Request, windowID string) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "close")

	frameChan := h.subscribe(windowID)
	defer h.unsubscribe(windowID, frameChan)

	log := logger.WithComponent("api")
	log.Info().Str("window", windowID).Msg("Stream client connected")
	defer log.Info().Str("window", windowID).Msg("Stream client disconnected")

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-frameChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
