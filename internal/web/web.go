package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"timetable/internal/acquire"
	"timetable/internal/config"
	appLog "timetable/internal/log"
	"timetable/internal/model"
	"timetable/internal/portal"
	"timetable/internal/session"
)

// Refresher forces a refresh of the session's lessons.
type Refresher interface {
	RunOnce(ctx context.Context) error
}

// Server exposes the session of the logged-in user as a small JSON API.
type Server struct {
	cfg       *config.Config
	sess      *session.Session
	refresher Refresher
	mux       *http.ServeMux
}

// NewServer constructs a new Server. refresher may be nil, which disables
// POST /api/refresh.
func NewServer(cfg *config.Config, sess *session.Session, refresher Refresher) *Server {
	s := &Server{
		cfg:       cfg,
		sess:      sess,
		refresher: refresher,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. An empty
// username or password disables it.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Stundenplan", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, sess *session.Session, refresher Refresher) error {
	s := NewServer(cfg, sess, refresher)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("POST /api/week/navigate", s.handleNavigate)
	s.mux.HandleFunc("POST /api/color", s.handleColor)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleWeek returns the week at ?offset=N, or the session's current week
// when offset is absent.
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("offset")
	if raw == "" {
		writeJSON(w, http.StatusOK, s.buildWeek(s.sess.Current()))
		return
	}
	offset, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, s.buildWeek(s.sess.Week(offset)))
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.buildWeek(s.sess.Navigate(req.Delta)))
}

func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
		Color       string `json:"color"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}
	c, err := model.ParseRGB(req.Color)
	if err != nil {
		writeError(w, http.StatusBadRequest, "color must be #rrggbb or a decimal ARGB integer")
		return
	}

	if err := s.sess.SetColor(req.DisplayName, c); err != nil {
		appLog.Error("set colour failed", err, "display_name", req.DisplayName)
		writeError(w, http.StatusInternalServerError, "failed to save colour")
		return
	}
	appLog.Info("colour override saved", "user", s.sess.Username(), "display_name", req.DisplayName, "color", c.Hex())
	writeJSON(w, http.StatusOK, s.buildWeek(s.sess.Current()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusNotImplemented, "refresh is not configured")
		return
	}

	err := s.refresher.RunOnce(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.buildWeek(s.sess.Current()))
	case errors.Is(err, acquire.ErrOffline):
		writeError(w, http.StatusServiceUnavailable, "offline")
	case errors.Is(err, acquire.ErrNoStoredCredentials), errors.Is(err, portal.ErrAuthentication):
		writeError(w, http.StatusConflict, "stored credentials are missing or rejected; log in again")
	default:
		writeError(w, http.StatusBadGateway, "refresh failed")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
