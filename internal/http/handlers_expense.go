package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"expenso/internal/auth"
	"expenso/internal/services"
	"expenso/internal/storage"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	records, err := s.expenses.ListExpenses(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	NewResponse().JSON(records).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var in services.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	in.Name = sanitizeInput(in.Name)
	in.Category = sanitizeInput(in.Category)
	in.Date = sanitizeInput(in.Date)

	e, err := s.expenses.CreateExpense(r.Context(), userID, in)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.totalExpenses, 1)
	s.invalidateUser(r.Context(), userID)

	NewResponse().Status(http.StatusCreated).JSON(e).Write(w)
}

// handleReplaceExpenses stores the valid records of a full list and
// reports the skipped ones.
func (s *Server) handleReplaceExpenses(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	raws, err := parseReplaceBody(w, r)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	result, err := s.expenses.ReplaceExpenses(r.Context(), userID, raws)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	s.invalidateUser(r.Context(), userID)

	NewResponse().JSON(result).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	id := sanitizeInput(r.PathValue("id"))
	if id == "" {
		BadRequestError("Expense id is required").Write(w)
		return
	}

	err := s.expenses.DeleteExpense(r.Context(), userID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("Expense not found").Write(w)
		return
	case err != nil:
		errorFor(r.Context(), err).Write(w)
		return
	}
	s.invalidateUser(r.Context(), userID)

	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleClearExpenses removes every expense and resets income.
func (s *Server) handleClearExpenses(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if err := s.expenses.ClearAll(r.Context(), userID); err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	s.invalidateUser(r.Context(), userID)

	NewResponse().JSON(messageBody{Message: "All data cleared"}).Write(w)
}
