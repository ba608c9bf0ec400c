package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
	"github.com/icecreamdb/chat-responder/internal/biz/usecase"
)

// Server provides the operator HTTP API: health, metrics, cache control and MCP
type Server struct {
	cache    *usecase.RuleCache
	gatherer prometheus.Gatherer
	mcp      http.Handler
	logger   *slog.Logger
	now      func() time.Time

	server *http.Server
	addr   string
}

// Channel is the JSON form of a cached channel
type Channel struct {
	BotID            string `json:"bot_id"`
	RoomID           string `json:"room_id"`
	Name             string `json:"name"`
	Enabled          bool   `json:"enabled"`
	MaxMessageLength int    `json:"max_message_length"`
}

// NewServer creates a new API server. A nil gatherer or mcp handler disables that route.
func NewServer(cache *usecase.RuleCache, gatherer prometheus.Gatherer, mcpHandler http.Handler, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cache:    cache,
		gatherer: gatherer,
		mcp:      mcpHandler,
		logger:   logger.With("component", "api"),
		now:      time.Now,
		addr:     addr,
	}
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
	mux.HandleFunc("/health", health)
	mux.HandleFunc("/healthz", health)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Rule cache
	mux.HandleFunc("/api/cache", s.handleCache)
	mux.HandleFunc("/api/cache/refresh", s.handleCacheRefresh)
	mux.HandleFunc("/api/channels", s.handleChannels)

	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}
	return mux
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GET /api/cache
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.cache.Status())
}

// POST /api/cache/refresh
func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := s.cache.Refresh(r.Context(), s.now())
	switch {
	case errors.Is(err, usecase.ErrRefreshInProgress):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case err != nil:
		s.logger.Warn("forced refresh failed", "error", err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.cache.Status())
}

// GET /api/channels
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"channels": ConvertChannels(s.cache.Channels()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// ConvertChannels converts domain.Channel to api.Channel
func ConvertChannels(channels []domain.Channel) []Channel {
	result := make([]Channel, len(channels))
	for i, c := range channels {
		result[i] = Channel{
			BotID:            c.BotID,
			RoomID:           c.RoomID,
			Name:             c.Name,
			Enabled:          c.Enabled,
			MaxMessageLength: c.MaxLength(),
		}
	}
	return result
}
