package http

import (
	"net/http"
	"strconv"
	"time"
)

// handleDashboard serves the monthly summary, defaulting to the current
// month. Summaries are cached per user and month and invalidated by
// transaction writes.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := userID(r)

	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())

	q := r.URL.Query()
	if y := q.Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil || parsed < 1970 || parsed > 9999 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid 'year'"})
			return
		}
		year = parsed
	}
	if m := q.Get("month"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil || parsed < 1 || parsed > 12 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid 'month', want 1-12"})
			return
		}
		month = parsed
	}

	key := s.summaryCacheKey(uid, year, month)
	if summary, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	summary, err := s.dashboard.MonthSummary(ctx, uid, year, month)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, summary)
}
