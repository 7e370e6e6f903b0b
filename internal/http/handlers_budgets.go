package http

import (
	"context"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// Budget request bodies carry the period either as top-level startDate and
// endDate keys or as a nested period object; responses always emit the
// nested form. The nested object wins when both are present.

type createBudgetRequest struct {
	Amount     core.Money           `json:"amount"`
	CategoryID string               `json:"category_id"`
	StartDate  core.Date            `json:"startDate"`
	EndDate    core.Date            `json:"endDate"`
	Period     *core.Period         `json:"period"`
	Type       core.TransactionType `json:"transaction_type"`
}

func (r createBudgetRequest) period() core.Period {
	if r.Period != nil {
		return *r.Period
	}
	return core.Period{StartDate: r.StartDate, EndDate: r.EndDate}
}

type periodPatch struct {
	StartDate *core.Date `json:"startDate"`
	EndDate   *core.Date `json:"endDate"`
}

type updateBudgetRequest struct {
	Amount     *core.Money  `json:"amount"`
	CategoryID *string      `json:"category_id"`
	StartDate  *core.Date   `json:"startDate"`
	EndDate    *core.Date   `json:"endDate"`
	Period     *periodPatch `json:"period"`
}

func (r updateBudgetRequest) datePatch() (start, end *core.Date) {
	if r.Period != nil {
		return r.Period.StartDate, r.Period.EndDate
	}
	return r.StartDate, r.EndDate
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	b, err := s.budgets.Create(ctx, core.Budget{
		UserID:     userID(r),
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
		Period:     req.period(),
		Type:       req.Type,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	s.bumpSummaryEpoch(b.UserID)
	writeJSON(w, http.StatusCreated, s.withCategoryName(ctx, b))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, err := s.budgets.Get(ctx, r.PathValue("id"))
	if err == nil && b.UserID != userID(r) {
		err = core.ErrNotFound
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.withCategoryName(ctx, b))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	existing, err := s.budgets.Get(ctx, id)
	if err == nil && existing.UserID != userID(r) {
		err = core.ErrNotFound
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req updateBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	patch := services.BudgetPatch{
		Amount:     req.Amount,
		CategoryID: req.CategoryID,
	}
	patch.StartDate, patch.EndDate = req.datePatch()

	b, err := s.budgets.Update(ctx, id, patch)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	s.bumpSummaryEpoch(b.UserID)
	writeJSON(w, http.StatusOK, s.withCategoryName(ctx, b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	b, err := s.budgets.Get(ctx, id)
	if err == nil && b.UserID != userID(r) {
		err = core.ErrNotFound
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := s.budgets.Delete(ctx, id); err != nil {
		writeError(ctx, w, err)
		return
	}

	s.bumpSummaryEpoch(b.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	budgets, err := s.budgets.List(ctx, userID(r))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

// handleRecomputeBudget rebuilds one budget's spent total from its matching
// transactions. It is the manual repair path; the worker runs the same
// operation for queued repairs.
func (s *Server) handleRecomputeBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	b, err := s.budgets.Get(ctx, id)
	if err == nil && b.UserID != userID(r) {
		err = core.ErrNotFound
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	spent, err := s.budgets.Recompute(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"_id": id, "spent": spent})
}

// withCategoryName attaches the category name for display. A failed lookup
// degrades to an empty name rather than failing the request.
func (s *Server) withCategoryName(ctx context.Context, b core.Budget) storage.BudgetWithCategory {
	out := storage.BudgetWithCategory{Budget: b}
	if cat, err := s.store.GetCategory(ctx, b.CategoryID); err == nil {
		out.CategoryName = cat.Name
	}
	return out
}
