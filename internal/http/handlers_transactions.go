package http

import (
	"context"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

type createTransactionRequest struct {
	Amount      core.Money           `json:"amount"`
	Date        core.Date            `json:"date"`
	Description string               `json:"description"`
	Type        core.TransactionType `json:"transaction_type"`
	CategoryID  string               `json:"category_id"`
}

type updateTransactionRequest struct {
	Amount      *core.Money           `json:"amount"`
	Date        *core.Date            `json:"date"`
	Description *string               `json:"description"`
	Type        *core.TransactionType `json:"transaction_type"`
	CategoryID  *string               `json:"category_id"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	tx, err := s.transactions.Create(ctx, core.Transaction{
		UserID:      userID(r),
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Date:        req.Date,
		Description: sanitizeInput(req.Description),
		Type:        req.Type,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	s.bumpSummaryEpoch(tx.UserID)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tx, err := s.transactions.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if tx.UserID != userID(r) {
		writeError(ctx, w, core.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	before, err := s.transactions.Get(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if before.UserID != userID(r) {
		writeError(ctx, w, core.ErrNotFound)
		return
	}

	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Description != nil {
		clean := sanitizeInput(*req.Description)
		req.Description = &clean
	}

	after, err := s.transactions.Update(ctx, id, services.TransactionPatch{
		Amount:      req.Amount,
		Date:        req.Date,
		Description: req.Description,
		Type:        req.Type,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	s.bumpSummaryEpoch(after.UserID)
	writeJSON(w, http.StatusOK, s.txWithCategoryName(ctx, after))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	tx, err := s.transactions.Get(ctx, id)
	if err == nil && tx.UserID != userID(r) {
		err = core.ErrNotFound
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	deleted, err := s.transactions.Delete(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	s.bumpSummaryEpoch(deleted.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// txWithCategoryName mirrors the list projection for single-entity
// responses. A failed lookup degrades to an empty name.
func (s *Server) txWithCategoryName(ctx context.Context, tx core.Transaction) storage.TransactionWithCategory {
	out := storage.TransactionWithCategory{Transaction: tx}
	if cat, err := s.store.GetCategory(ctx, tx.CategoryID); err == nil {
		out.CategoryName = cat.Name
	}
	return out
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	f, err := parseTransactionFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	txs, err := s.transactions.List(ctx, userID(r), f)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func parseTransactionFilter(r *http.Request) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter
	q := r.URL.Query()

	if from := q.Get("from"); from != "" {
		d, err := core.ParseDate(from)
		if err != nil {
			return f, errors.New("invalid 'from' date")
		}
		f.StartDate = d
	}
	if to := q.Get("to"); to != "" {
		d, err := core.ParseDate(to)
		if err != nil {
			return f, errors.New("invalid 'to' date")
		}
		f.EndDate = d
	}
	if t := q.Get("type"); t != "" {
		txType := core.TransactionType(t)
		if !txType.Valid() {
			return f, errors.New("invalid 'type', want income or expense")
		}
		f.Type = txType
	}
	f.CategoryID = q.Get("category_id")
	return f, nil
}
