package http

import (
	"encoding/json"
	"net/http"

	"expenso/internal/auth"
	"expenso/internal/core"
)

type incomeBody struct {
	Income core.Money `json:"income"`
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	m, err := s.expenses.GetIncome(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	NewResponse().JSON(incomeBody{Income: m}).Write(w)
}

// handleSetIncome accepts {"amount": 1234.5} or {"amount": "1234.50"}.
func (s *Server) handleSetIncome(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var in struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	if len(in.Amount) == 0 || string(in.Amount) == "null" {
		BadRequestError("amount is required").Write(w)
		return
	}

	m, err := s.expenses.SetIncome(r.Context(), userID, in.Amount)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	s.invalidateUser(r.Context(), userID)

	NewResponse().JSON(incomeBody{Income: m}).Write(w)
}
