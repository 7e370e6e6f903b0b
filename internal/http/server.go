// Package http exposes the REST API: transaction and budget lifecycles with
// synchronous spent reconciliation, reference-data reads, and the monthly
// dashboard summary.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// userIDHeader carries the authenticated user id, set by the upstream auth
// gateway. Authentication itself lives outside this service.
const userIDHeader = "X-User-ID"

type Server struct {
	http.Server

	transactions *services.TransactionService
	budgets      *services.BudgetService
	dashboard    *services.DashboardService
	store        *storage.Repository

	rateLimiter *rateLimiter
	secMetrics  *securityMetrics

	// summaryCache holds dashboard summaries keyed by user, epoch and
	// month. Any write for a user bumps that user's epoch, so every
	// cached month goes stale at once; old entries age out through the
	// TTL and LRU eviction.
	summaryCache  *cache.LRUCache[services.MonthSummary]
	epochMu       sync.Mutex
	summaryEpochs map[string]uint64

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// Options configures NewServer beyond its service dependencies.
type Options struct {
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, tx *services.TransactionService, b *services.BudgetService, d *services.DashboardService, store *storage.Repository, opts Options) *Server {
	if opts.SummaryCacheSize <= 0 {
		opts.SummaryCacheSize = 200
	}
	if opts.SummaryCacheTTL <= 0 {
		opts.SummaryCacheTTL = 2 * time.Minute
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		transactions:     tx,
		budgets:          b,
		dashboard:        d,
		store:            store,
		rateLimiter:      newRateLimiter(),
		secMetrics:       &securityMetrics{},
		summaryCache:     cache.NewLRUCache[services.MonthSummary](opts.SummaryCacheSize, opts.SummaryCacheTTL),
		summaryEpochs:    make(map[string]uint64),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.withMiddleware(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.withMiddleware(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withMiddleware(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/budgets", s.withMiddleware(s.handleCreateBudget))
	mux.HandleFunc("GET /api/budgets", s.withMiddleware(s.handleListBudgets))
	mux.HandleFunc("GET /api/budgets/{id}", s.withMiddleware(s.handleGetBudget))
	mux.HandleFunc("PUT /api/budgets/{id}", s.withMiddleware(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.withMiddleware(s.handleDeleteBudget))
	mux.HandleFunc("POST /api/budgets/{id}/recompute", s.withMiddleware(s.handleRecomputeBudget))

	mux.HandleFunc("GET /api/categories", s.withMiddleware(s.handleListCategories))

	mux.HandleFunc("GET /api/goals", s.withMiddleware(s.handleListGoals))
	mux.HandleFunc("POST /api/goals", s.withMiddleware(s.handleCreateGoal))
	mux.HandleFunc("DELETE /api/goals/{id}", s.withMiddleware(s.handleDeleteGoal))

	mux.HandleFunc("GET /api/dashboard", s.withMiddleware(s.handleDashboard))

	return s
}

// withMiddleware adds request tracing, security headers, user extraction
// and rate limiting on mutating methods.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.secMetrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
			return
		}

		setSecurityHeaders(w)

		if r.Header.Get(userIDHeader) == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user identity"})
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		level := slog.LevelInfo
		if rw.statusCode >= 500 {
			level = slog.LevelError
		} else if rw.statusCode >= 400 {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func userID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.summaryCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Summary cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutine and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) summaryCacheKey(userID string, year, month int) string {
	s.epochMu.Lock()
	epoch := s.summaryEpochs[userID]
	s.epochMu.Unlock()
	return userID + ":" + strconv.FormatUint(epoch, 10) + ":" + strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

// bumpSummaryEpoch invalidates every cached summary for the user. Called on
// every transaction, budget and goal mutation, since all three feed the
// dashboard.
func (s *Server) bumpSummaryEpoch(userID string) {
	s.epochMu.Lock()
	s.summaryEpochs[userID]++
	s.epochMu.Unlock()
}
