package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/AreteDriver/EVE-Overview/internal/app"
	"github.com/AreteDriver/EVE-Overview/internal/config"
	"github.com/AreteDriver/EVE-Overview/internal/logger"
	"github.com/AreteDriver/EVE-Overview/internal/preview"
)

// Server exposes the panel surface over HTTP: a REST API, per-panel
// MJPEG streams, and a websocket event feed.
type Server struct {
	router   *mux.Router
	ctrl     *app.Controller
	store    *config.Store
	hub      *streamHub
	upgrader websocket.Upgrader

	httpSrv *http.Server

	eventMu      sync.RWMutex
	eventClients map[chan app.Event]struct{}
}

// NewServer wires the API over the controller and store.
func NewServer(ctrl *app.Controller, store *config.Store) *Server {
	s := &Server{
		router: mux.NewRouter(),
		ctrl:   ctrl,
		store:  store,
		hub:    newStreamHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		eventClients: make(map[chan app.Event]struct{}),
	}

	ctrl.SubscribeFrames(s.hub.Publish)
	ctrl.Subscribe(s.broadcastEvent)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/windows", s.handleListWindows).Methods("GET")

	api.HandleFunc("/profiles", s.handleListProfiles).Methods("GET")
	api.HandleFunc("/profiles", s.handleCreateProfile).Methods("POST")
	api.HandleFunc("/profiles/{name}", s.handleGetProfile).Methods("GET")
	api.HandleFunc("/profiles/{name}", s.handleDeleteProfile).Methods("DELETE")
	api.HandleFunc("/profiles/{name}/activate", s.handleActivateProfile).Methods("POST")

	api.HandleFunc("/panels", s.handleListPanels).Methods("GET")
	api.HandleFunc("/panels", s.handleCreatePanel).Methods("POST")
	api.HandleFunc("/panels/{id}", s.handleClosePanel).Methods("DELETE")
	api.HandleFunc("/panels/{id}/geometry", s.handleSetGeometry).Methods("PUT")
	api.HandleFunc("/panels/{id}/scale", s.handleSetScale).Methods("PUT")
	api.HandleFunc("/panels/{id}/hotkey", s.handleSetHotkey).Methods("PUT")
	api.HandleFunc("/panels/{id}/visible", s.handleSetVisible).Methods("PUT")
	api.HandleFunc("/panels/{id}/activate", s.handleActivateWindow).Methods("POST")
	api.HandleFunc("/panels/{id}/stream", s.handleStream).Methods("GET")

	api.HandleFunc("/events", s.handleEvents)
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Start serves HTTP on the given port and blocks until Shutdown or a
// listen failure.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.enableCORS(s.router)}

	logger.WithComponent("api").Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes every stream and event
// client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()

	s.eventMu.Lock()
	for ch := range s.eventClients {
		close(ch)
	}
	s.eventClients = make(map[chan app.Event]struct{})
	s.eventMu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int) {
	writeJSON(w, status, map[string]string{"status": "success"})
}

// panelView is the JSON shape of a live panel.
type panelView struct {
	WindowID    string  `json:"window_id"`
	WindowTitle string  `json:"window_title"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Scale       float64 `json:"scale"`
	Hotkey      string  `json:"hotkey,omitempty"`
	Enabled     bool    `json:"enabled"`
	Running     bool    `json:"running"`
}

func viewOf(p *preview.Panel) panelView {
	g := p.Geometry()
	return panelView{
		WindowID:    p.WindowID(),
		WindowTitle: p.Title(),
		X:           g.X,
		Y:           g.Y,
		Width:       g.Width,
		Height:      g.Height,
		Scale:       p.Scale(),
		Hotkey:      p.Hotkey(),
		Enabled:     p.Visible(),
		Running:     p.Running(),
	}
}

func (s *Server) handleListWindows(w http.ResponseWriter, r *http.Request) {
	windows := s.ctrl.ListWindows(r.Context())
	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": s.store.ListProfiles(),
		"current":  s.ctrl.CurrentProfileName(),
	})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.SaveProfile(config.NewProfile(req.Name)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalidName) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeStatus(w, http.StatusCreated)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.LoadProfile(mux.Vars(r)["name"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteProfile(mux.Vars(r)["name"])
	switch {
	case errors.Is(err, config.ErrProtectedProfile):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, config.ErrProfileNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		writeStatus(w, http.StatusOK)
	}
}

func (s *Server) handleActivateProfile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.ctrl.SwitchProfile(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrProfileNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeStatus(w, http.StatusOK)
}

func (s *Server) handleListPanels(w http.ResponseWriter, r *http.Request) {
	panels := s.ctrl.Panels()
	views := make([]panelView, 0, len(panels))
	for _, p := range panels {
		views = append(views, viewOf(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreatePanel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		config.WindowConfig
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg := req.WindowConfig
	// Panels are created visible unless the request says otherwise.
	cfg.Enabled = req.Enabled == nil || *req.Enabled

	p, err := s.ctrl.AddPanel(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(p))
}

func (s *Server) handleClosePanel(w http.ResponseWriter, r *http.Request) {
	if !s.ctrl.ClosePanel(mux.Vars(r)["id"]) {
		http.Error(w, "no such panel", http.StatusNotFound)
		return
	}
	writeStatus(w, http.StatusOK)
}

func (s *Server) handleSetGeometry(w http.ResponseWriter, r *http.Request) {
	var g preview.Geometry
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.ctrl.SetPanelGeometry(mux.Vars(r)["id"], g); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeStatus(w, http.StatusOK)
}

func (s *Server) handleSetScale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scale float64 `json:"scale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.ctrl.SetPanelScale(mux.Vars(r)["id"], req.Scale); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeStatus(w, http.StatusOK)
}

func (s *Server) handleSetHotkey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hotkey string `json:"hotkey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.ctrl.SetPanelHotkey(mux.Vars(r)["id"], req.Hotkey); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeStatus(w, http.StatusOK)
}

func (s *Server) handleSetVisible(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.ctrl.SetPanelVisible(mux.Vars(r)["id"], req.Visible); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeStatus(w, http.StatusOK)
}

func (s *Server) handleActivateWindow(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Activate(r.Context(), mux.Vars(r)["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeStatus(w, http.StatusOK)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.ctrl.Panel(id); !ok {
		http.Error(w, "no such panel", http.StatusNotFound)
		return
	}
	s.hub.serveStream(w, r, id)
}

func (s *Server) broadcastEvent(ev app.Event) {
	s.eventMu.RLock()
	defer s.eventMu.RUnlock()
	for ch := range s.eventClients {
		select {
		case ch <- ev:
		default:
			// Client is slow, drop the event
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := make(chan app.Event, 16)
	s.eventMu.Lock()
	s.eventClients[ch] = struct{}{}
	s.eventMu.Unlock()
	defer func() {
		s.eventMu.Lock()
		delete(s.eventClients, ch)
		s.eventMu.Unlock()
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"panels": len(s.ctrl.Panels()),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>EVE Overview</title>
    <style>
        body { font-family: sans-serif; background: #111; color: #ddd; margin: 2em; }
        .panel { display: inline-block; margin: 8px; border: 1px solid #333; }
        .panel img { display: block; }
        .panel .title { padding: 4px 8px; font-size: 12px; background: #222; }
    </style>
</head>
<body>
    <h1>EVE Overview</h1>
    <p>Panel previews are served at <code>/api/panels/{id}/stream</code>.</p>
    <div id="panels"></div>
    <script>
        fetch('/api/panels').then(r => r.json()).then(panels => {
            const root = document.getElementById('panels');
            for (const p of panels) {
                const div = document.createElement('div');
                div.className = 'panel';
                div.innerHTML = '<div class="title">' + p.window_title + '</div>' +
                    '<img src="/api/panels/' + p.window_id + '/stream" alt="">';
                root.appendChild(div);
            }
        });
    </script>
</body>
</html>`
	w.Write([]byte(html))
}
