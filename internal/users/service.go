package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	applog "expenso/internal/log"
)

type Service struct {
	store  Store
	logger *applog.Logger
	cost   int
	now    func() time.Time
}

func NewService(store Store, logger *applog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.WithComponent(applog.ComponentUsers),
		cost:   PasswordCost,
		now:    time.Now,
	}
}

// Signup creates an account after checking the email is free.
func (s *Service) Signup(ctx context.Context, in SignupInput) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	email := NormalizeEmail(in.Email)

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		s.logger.WarnContext(ctx, "Signup for existing user", applog.FieldOperation, applog.OpSignup)
		return User{}, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	// the store still enforces uniqueness when two signups race
	if err := s.store.Create(ctx, u); err != nil {
		return User{}, err
	}

	s.logger.InfoContext(ctx, "User created", applog.FieldUserID, u.ID, applog.FieldOperation, applog.OpSignup)
	return u, nil
}

// Login returns ErrUserNotFound for an unknown email and
// ErrInvalidCredentials for a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login with wrong password", applog.FieldUserID, u.ID, applog.FieldOperation, applog.OpLogin)
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
