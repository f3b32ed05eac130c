package users

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	applog "expenso/internal/log"
)

func newTestService() *Service {
	s := NewService(NewMemoryStore(), applog.Discard())
	s.cost = bcrypt.MinCost
	return s
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	u, err := s.Signup(ctx, SignupInput{Name: " Asha ", Email: "Asha@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Asha", u.Name)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	got, err := s.Login(ctx, "ASHA@example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Login(ctx, "asha@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSignupDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	_, err := s.Signup(ctx, SignupInput{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = s.Signup(ctx, SignupInput{Name: "B", Email: "A@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestSignupRace(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Signup(ctx, SignupInput{Name: "R", Email: "race@example.com", Password: "secret1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
		} else {
			assert.True(t, errors.Is(err, ErrUserExists), "unexpected error %v", err)
		}
	}
	assert.Equal(t, 1, created)
}

func TestSignupValidation(t *testing.T) {
	cases := []SignupInput{
		{Name: "", Email: "a@example.com", Password: "secret1"},
		{Name: "A", Email: "not-an-email", Password: "secret1"},
		{Name: "A", Email: "Bob <bob@example.com>", Password: "secret1"},
		{Name: "A", Email: "a@example.com", Password: "123"},
	}
	s := newTestService()
	for _, in := range cases {
		_, err := s.Signup(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidSignup, "input %+v", in)
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	u, err := s.Signup(ctx, SignupInput{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
