// Package routerserver exposes a Router over plain HTTP: the coordinator's
// data, cluster, observability, chaos, and partition RPC surface.
package routerserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/tternquist/districache/internal/apperr"
	"github.com/tternquist/districache/internal/logging"
	"github.com/tternquist/districache/internal/metrics"
	"github.com/tternquist/districache/internal/router"
)

// Server wraps a Router behind an http.Handler.
type Server struct {
	router *router.Router
	log    *slog.Logger
}

// New creates a Server over r. A nil logger discards log output. Init is
// idempotent, so constructing a Server always guarantees a live metrics
// registry for /metrics even if the caller's main forgot to call it.
func New(r *router.Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	metrics.Init()
	return &Server{router: r, log: logger}
}

// Handler returns the mux serving every router endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/data", s.handleData)
	mux.HandleFunc("/data/", s.handleData)
	mux.HandleFunc("/cluster/add-node", rateLimitHandler(s.handleAddNode, rate.Every(time.Second), 3))
	mux.HandleFunc("/cluster/remove-node/", s.handleRemoveNode)
	mux.HandleFunc("/cluster/stats", s.handleClusterStats)
	mux.HandleFunc("/cluster/map", s.handleClusterMap)
	mux.HandleFunc("/stats/global", s.handleGlobalStats)
	mux.HandleFunc("/debug/keys", s.handleDebugKeys)
	mux.HandleFunc("/chaos/start", rateLimitHandler(s.handleChaosStart, rate.Every(5*time.Second), 1))
	mux.HandleFunc("/chaos/stop", s.handleChaosStop)
	mux.HandleFunc("/chaos/status", s.handleChaosStatus)
	mux.HandleFunc("/partition/create", rateLimitHandler(s.handlePartitionCreate, rate.Every(time.Second), 3))
	mux.HandleFunc("/partition/remove", s.handlePartitionRemove)
	mux.HandleFunc("/partition/list", s.handlePartitionList)
	mux.HandleFunc("/partition/clear", s.handlePartitionClear)
	mux.Handle("/metrics", s.handleMetrics())
	return mux
}

// rateLimitHandler wraps h with a rate limiter. Allows burst requests, refills at refill interval.
func rateLimitHandler(h http.HandlerFunc, refill rate.Limit, burst int) http.HandlerFunc {
	limiter := rate.NewLimiter(refill, burst)
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limit exceeded"})
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.NotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.InvalidArgument), errors.Is(err, apperr.BadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ServiceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, apperr.Internal):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleDataGet(w, r)
	case http.MethodPost:
		s.handleDataPost(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDataGet(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/data/")
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing key"})
		return
	}
	bypass, _ := strconv.ParseBool(r.URL.Query().Get("bypass_cache"))

	result, err := s.router.Get(r.Context(), key, bypass)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type dataPutRequest struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	TTLSecond *int   `json:"ttl,omitempty"`
}

func (s *Server) handleDataPost(w http.ResponseWriter, r *http.Request) {
	var req dataPutRequest
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
	result, err := s.router.Put(r.Context(), req.Key, req.Value, ttl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type addNodeRequest struct {
	Host string `json:"host"`
	Port string `json:"port"`
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req addNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid body"})
		return
	}
	if req.Port == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing port"})
		return
	}
	stats, err := s.router.AddNode(r.Context(), req.Host, req.Port)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	port := strings.TrimPrefix(r.URL.Path, "/cluster/remove-node/")
	if port == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing port"})
		return
	}
	host := r.URL.Query().Get("host")
	stats, err := s.router.RemoveNode(host, port)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClusterStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.router.RingStats())
}

func (s *Server) handleClusterMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.router.RingNodesMetadata())
}

func (s *Server) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.router.GlobalStats(r.Context()))
}

func (s *Server) handleDebugKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.router.AllKeys(r.Context()))
}

func (s *Server) handleChaosStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.router.ChaosStart(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.router.ChaosStatus())
}

func (s *Server) handleChaosStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.router.ChaosStop()
	writeJSON(w, http.StatusOK, s.router.ChaosStatus())
}

func (s *Server) handleChaosStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.router.ChaosStatus())
}

func (s *Server) handlePartitionCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a, b := r.URL.Query().Get("source_port"), r.URL.Query().Get("target_port")
	if a == "" || b == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "source_port and target_port required"})
		return
	}
	s.router.CreatePartition(a, b)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePartitionRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a, b := r.URL.Query().Get("source_port"), r.URL.Query().Get("target_port")
	if a == "" || b == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "source_port and target_port required"})
		return
	}
	s.router.RemovePartition(a, b)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePartitionList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partitions": s.router.PartitionList()})
}

func (s *Server) handlePartitionClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.router.PartitionClear()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// statsProvider adapts a Router snapshot to metrics.StatsProvider for a
// single scrape.
type statsProvider struct {
	hitRate        float64
	physicalNodes  int
	virtualNodes   int
	partitionCount int
}

func (p *statsProvider) CacheHitRate() float64  { return p.hitRate }
func (p *statsProvider) RingPhysicalNodes() int { return p.physicalNodes }
func (p *statsProvider) RingVirtualNodes() int  { return p.virtualNodes }
func (p *statsProvider) PartitionCount() int    { return p.partitionCount }

func (s *Server) handleMetrics() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := s.router.GlobalStats(r.Context())
		ringStats := s.router.RingStats()
		metrics.UpdateGauges(&statsProvider{
			hitRate:        stats.HitRate,
			physicalNodes:  ringStats.NumPhysicalNodes,
			virtualNodes:   ringStats.NumVirtualNodes,
			partitionCount: s.router.PartitionCount(),
		})
		promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
