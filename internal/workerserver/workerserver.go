// Package workerserver exposes a cache worker's LRU over plain HTTP: the
// RPC surface the router's workerclient talks to.
package workerserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tternquist/districache/internal/logging"
	"github.com/tternquist/districache/internal/lrucache"
)

// Server wraps a worker-local Cache behind an http.Handler.
type Server struct {
	cache lrucache.Cache
	log   *slog.Logger
}

// New creates a Server over cache. A nil logger discards log output.
func New(cache lrucache.Cache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Server{cache: cache, log: logger}
}

// Handler returns the mux serving every worker endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/get/", s.handleGet)
	mux.HandleFunc("/put", s.handlePut)
	mux.HandleFunc("/delete/", s.handleDelete)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/clear", s.handleClear)
	mux.HandleFunc("/debug/keys", s.handleDebugKeys)
	mux.HandleFunc("/cleanup", s.handleCleanup)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/get/")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing key"})
		return
	}
	value, ok := s.cache.Get(key)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "value": value})
}

type putRequest struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	TTLSecond *int   `json:"ttl_seconds,omitempty"`
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid body"})
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing key"})
		return
	}
	var ttl time.Duration
	if req.TTLSecond != nil {
		ttl = time.Duration(*req.TTLSecond) * time.Second
	}
	s.cache.Put(req.Key, req.Value, ttl)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/delete/")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing key"})
		return
	}
	existed := s.cache.Delete(key)
	writeJSON(w, http.StatusOK, map[string]any{"existed": existed})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.cache.Clear()
	s.log.Info("cache cleared")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type wireEntry struct {
	Key       string   `json:"key"`
	Value     string   `json:"value"`
	TTLRemain *float64 `json:"ttl_remaining,omitempty"`
}

func (s *Server) handleDebugKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entries := s.cache.ListWithTTL()
	out := make([]wireEntry, len(entries))
	for i, e := range entries {
		out[i] = wireEntry{Key: e.Key, Value: e.Value, TTLRemain: e.TTLRemain}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	removed := s.cache.CleanupExpired()
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
