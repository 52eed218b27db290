package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"groupfeed/internal/config"
	"groupfeed/internal/feed"
	appLog "groupfeed/internal/log"
	"groupfeed/internal/model"
)

// Directory is the group metadata the server lists alongside built feeds.
type Directory interface {
	feed.GroupLookup
	IDs() []string
}

// RefreshFunc rebuilds the feeds and returns the new result.
type RefreshFunc func(ctx context.Context) (feed.Result, error)

// Server serves the feeds of the last successful build.
type Server struct {
	cfg    *config.Config
	groups Directory
	router chi.Router

	// refresh is optional; without it POST /api/refresh is not routed.
	refresh RefreshFunc
	// refreshMu serializes manual refreshes.
	refreshMu sync.Mutex

	mu     sync.RWMutex
	result *feed.Result
}

// NewServer constructs a new Server. refresh may be nil.
func NewServer(cfg *config.Config, groups Directory, refresh RefreshFunc) *Server {
	s := &Server{
		cfg:     cfg,
		groups:  groups,
		refresh: refresh,
	}
	s.router = s.routes()
	return s
}

// Update replaces the served build.
func (s *Server) Update(res feed.Result) {
	s.mu.Lock()
	s.result = &res
	s.mu.Unlock()
}

func (s *Server) current() (feed.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return feed.Result{}, false
	}
	return *s.result, true
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled")
			r.Use(s.basicAuthMiddleware)
		}
		r.Get("/api/events", s.handleEvents)
		r.Get("/api/groups", s.handleGroups)
		r.Get("/api/groups/{group}/events", s.handleGroupEvents)
		if s.refresh != nil {
			r.Post("/api/refresh", s.handleRefresh)
		}
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="groupfeed", charset="UTF-8"`)
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents returns the combined feed.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "feeds not built yet")
		return
	}
	writeFeed(w, res, res.Combined)
}

// groupDTO is one entry of GET /api/groups.
type groupDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Web      string `json:"web,omitempty"`
	File     string `json:"file,omitempty"`
	Events   int    `json:"events"`
	Skipped  int    `json:"skipped"`
	Stale    int    `json:"stale"`
	Listed   bool   `json:"listed"`
	FeedPath string `json:"feed"`
}

func (s *Server) handleGroups(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "feeds not built yet")
		return
	}

	out := make([]groupDTO, 0, len(res.Groups))
	for _, g := range res.Groups {
		dto := groupDTO{
			ID:       g.Group,
			File:     g.File,
			Events:   len(g.Events),
			Skipped:  len(g.Problems),
			Stale:    g.Stale,
			FeedPath: "/api/groups/" + g.Group + "/events",
		}
		if s.groups != nil {
			if meta, found := s.groups.Lookup(g.Group); found {
				dto.Name, dto.Web, dto.Listed = meta.Name, meta.Web, true
			}
		}
		out = append(out, dto)
	}
	// Listed groups with no calendar file still show up, with no events.
	if s.groups != nil {
		for _, id := range s.groups.IDs() {
			if _, built := res.Group(id); built {
				continue
			}
			meta, _ := s.groups.Lookup(id)
			out = append(out, groupDTO{
				ID:       id,
				Name:     meta.Name,
				Web:      meta.Web,
				Listed:   true,
				FeedPath: "/api/groups/" + id + "/events",
			})
		}
	}
	setBuiltAt(w, res)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGroupEvents(w http.ResponseWriter, r *http.Request) {
	res, ok := s.current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "feeds not built yet")
		return
	}
	id := chi.URLParam(r, "group")
	g, found := res.Group(id)
	if !found {
		if s.listed(id) {
			writeFeed(w, res, nil)
			return
		}
		writeError(w, http.StatusNotFound, "unknown group "+id)
		return
	}
	writeFeed(w, res, g.Events)
}

func (s *Server) listed(id string) bool {
	if s.groups == nil {
		return false
	}
	_, ok := s.groups.Lookup(id)
	return ok
}

// handleRefresh rebuilds synchronously and swaps in the new result.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.refreshMu.TryLock() {
		writeError(w, http.StatusConflict, "refresh already running")
		return
	}
	defer s.refreshMu.Unlock()

	res, err := s.refresh(r.Context())
	if err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Update(res)
	writeJSON(w, http.StatusOK, map[string]any{
		"built_at": res.BuiltAt.UTC().Format(time.RFC3339),
		"events":   len(res.Combined),
		"skipped":  len(res.Problems),
	})
}

func setBuiltAt(w http.ResponseWriter, res feed.Result) {
	if !res.BuiltAt.IsZero() {
		w.Header().Set("Last-Modified", res.BuiltAt.UTC().Format(http.TimeFormat))
	}
}

func writeFeed(w http.ResponseWriter, res feed.Result, events []model.NormalizedEvent) {
	if events == nil {
		events = []model.NormalizedEvent{}
	}
	setBuiltAt(w, res)
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
