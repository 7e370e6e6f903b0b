package http

import (
	"net/http"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := s.store.ListCategories(ctx, userID(r))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

type createGoalRequest struct {
	Name          string     `json:"name"`
	TargetAmount  core.Money `json:"targetAmount"`
	CurrentAmount core.Money `json:"currentAmount"`
	Deadline      core.Date  `json:"deadline"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	goal := core.Goal{
		ID:            uuid.NewString(),
		UserID:        userID(r),
		Name:          sanitizeInput(req.Name),
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		Deadline:      req.Deadline,
		Status:        "active",
	}
	if err := goal.Validate(); err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := s.store.CreateGoal(ctx, goal); err != nil {
		writeError(ctx, w, err)
		return
	}

	s.bumpSummaryEpoch(goal.UserID)
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	goals, err := s.store.ListGoals(ctx, userID(r))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	goal, err := s.store.GetGoal(ctx, id)
	if err == nil && goal.UserID != userID(r) {
		err = core.ErrNotFound
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := s.store.DeleteGoal(ctx, id); err != nil {
		writeError(ctx, w, err)
		return
	}

	s.bumpSummaryEpoch(goal.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
