// Package web exposes the scheduler task endpoints and a read-only API over the bot state.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/jobs"
	"github.com/vadiminshakov/qrlbot/internal/metrics"
	"github.com/vadiminshakov/qrlbot/internal/storage/cache"
	"github.com/vadiminshakov/qrlbot/internal/storage/journal"
)

const (
	journalPollInterval = 2 * time.Second
	heartbeatInterval   = 30 * time.Second
	apiTimeout          = 30 * time.Second

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type taskRunner interface {
	Run(ctx context.Context, t jobs.Task, trig jobs.Trigger) domain.TaskResult
}

type stateReader interface {
	Ping(ctx context.Context) error
	LastRebalancePlan(ctx context.Context, symbol, strategy string) (domain.RebalancePlan, error)
	RebalanceHistory(ctx context.Context, symbol, strategy string, limit int) ([]domain.RebalancePlan, error)
	TradeHistory(ctx context.Context, symbol string, limit int) ([]domain.TradeRecord, error)
	Position(ctx context.Context, symbol string) (*domain.Position, error)
	Ticker24h(ctx context.Context, symbol string) (domain.Ticker24h, error)
}

type balanceReader interface {
	Current(ctx context.Context) (domain.BalanceSnapshot, error)
}

type journalReader interface {
	EntriesAfter(index uint64) ([]journal.Entry, error)
}

// Server serves task triggers under /tasks and state under /api.
type Server struct {
	addr     string
	l        *zap.Logger
	symbol   string
	runner   taskRunner
	tasks    []jobs.Task
	state    stateReader
	balances balanceReader
	journal  journalReader
}

// NewServer creates the server. jr may be nil, the journal stream then answers 503.
func NewServer(addr string, l *zap.Logger, pair domain.Pair, runner taskRunner, tasks []jobs.Task, state stateReader, balances balanceReader, jr journalReader) *Server {
	return &Server{
		addr:     addr,
		l:        l,
		symbol:   pair.Symbol(),
		runner:   runner,
		tasks:    tasks,
		state:    state,
		balances: balances,
		journal:  jr,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/tasks", func(r chi.Router) {
		r.Use(schedulerAuth)
		for _, t := range s.tasks {
			r.Post("/"+t.Name(), s.taskHandler(t))
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/journal/stream", s.handleJournalStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(apiTimeout))
			r.Get("/balance", s.handleBalance)
			r.Get("/position", s.handlePosition)
			r.Get("/ticker", s.handleTicker)
			r.Get("/trades", s.handleTrades)
			r.Get("/rebalance/last", s.handleRebalanceLast)
			r.Get("/rebalance/history", s.handleRebalanceHistory)
		})
	})

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("http server started", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type authMethodKey struct{}

// schedulerAuth admits requests carrying X-CloudScheduler or Authorization.
func schedulerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheduler := r.Header.Get("X-CloudScheduler")
		authorization := r.Header.Get("Authorization")
		if scheduler == "" && authorization == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Unauthorized - Cloud Scheduler only"})
			return
		}

		method := "X-CloudScheduler"
		if authorization != "" {
			method = "OIDC"
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authMethodKey{}, method)))
	})
}

func authMethod(ctx context.Context) string {
	m, _ := ctx.Value(authMethodKey{}).(string)
	return m
}

// taskHandler answers 200 with the task result whatever its status.
func (s *Server) taskHandler(t jobs.Task) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := s.runner.Run(r.Context(), t, jobs.Trigger{
			RequestID:  r.Header.Get(middleware.RequestIDHeader),
			AuthMethod: authMethod(r.Context()),
		})
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.state.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "cache": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "cache": "ok"})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	snap, err := s.balances.Current(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	pos, err := s.state.Position(r.Context(), s.symbol)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if pos == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "no position recorded"})
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	t, err := s.state.Ticker24h(r.Context(), s.symbol)
	if errors.Is(err, cache.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "no ticker cached"})
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	trades, err := s.state.TradeHistory(r.Context(), s.symbol, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": s.symbol, "trades": trades})
}

func (s *Server) handleRebalanceLast(w http.ResponseWriter, r *http.Request) {
	strategy, err := parseStrategy(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	plan, err := s.state.LastRebalancePlan(r.Context(), s.symbol, strategy)
	if errors.Is(err, cache.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "no plan recorded"})
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleRebalanceHistory(w http.ResponseWriter, r *http.Request) {
	strategy, err := parseStrategy(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	plans, err := s.state.RebalanceHistory(r.Context(), s.symbol, strategy, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategy": strategy, "plans": plans})
}

// handleJournalStream pushes journal entries as server-sent events.
func (s *Server) handleJournalStream(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "journal not available"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var lastIndex uint64
	if after := r.URL.Query().Get("after"); after != "" {
		n, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid 'after'"))
			return
		}
		lastIndex = n
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(journalPollInterval)
	defer poll.Stop()

	send := func() error {
		entries, err := s.journal.EntriesAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, e := range entries {
			payload, err := json.Marshal(e)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", e.Index)
			fmt.Fprintf(w, "event: %s\n", e.Kind)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			lastIndex = e.Index
		}
		flusher.Flush()
		return nil
	}

	if err := send(); err != nil {
		s.l.Error("journal stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-poll.C:
			if err := send(); err != nil {
				s.l.Warn("journal stream poll", zap.Error(err))
			}
		}
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.l.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.l.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseStrategy(r *http.Request) (string, error) {
	strategy := r.URL.Query().Get("strategy")
	switch strategy {
	case "":
		return domain.StrategySymmetric, nil
	case domain.StrategySymmetric, domain.StrategyIntelligent:
		return strategy, nil
	default:
		return "", errors.Errorf("unknown strategy %q", strategy)
	}
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.Errorf("invalid limit %q", raw)
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, nil
}
