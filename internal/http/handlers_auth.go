package http

import (
	"errors"
	"net/http"
	"time"

	"expenso/internal/auth"
	applog "expenso/internal/log"
	"expenso/internal/users"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message   string     `json:"message"`
	User      users.User `json:"user"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in users.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	in.Name = sanitizeInput(in.Name)
	in.Email = sanitizeInput(in.Email)

	u, err := s.users.Signup(r.Context(), in)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(authResponse{Message: "Signup successful", User: u}).Write(w)
}

// handleLogin answers an unknown email with a 400 "User not found" and a
// wrong password with a 401.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	if sanitizeInput(in.Email) == "" || in.Password == "" {
		BadRequestError("Email and password are required").Write(w)
		return
	}

	u, err := s.users.Login(r.Context(), sanitizeInput(in.Email), in.Password)
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		BadRequestError("User not found").Write(w)
		return
	case err != nil:
		errorFor(r.Context(), err).Write(w)
		return
	}

	token, expiresAt, err := s.signer.Issue(u.ID)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	s.logger.InfoContext(r.Context(), "User logged in", applog.FieldUserID, u.ID, applog.FieldOperation, applog.OpLogin)
	NewResponse().JSON(authResponse{
		Message:   "Login successful",
		User:      u,
		Token:     token,
		ExpiresAt: &expiresAt,
	}).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	NewResponse().JSON(u).Write(w)
}
