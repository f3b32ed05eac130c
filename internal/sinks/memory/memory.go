// Package memory is an in-process sink used when no external sink is
// configured and in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"expenso/internal/core"
	"expenso/internal/sinks"
)

var _ sinks.Sink = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	items map[string][]core.Expense
}

func New() *Store {
	return &Store{items: make(map[string][]core.Expense)}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Append(_ context.Context, userID string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.items[userID]
	// replays of the same event must not duplicate rows
	if i := slices.IndexFunc(list, func(x core.Expense) bool { return x.ID == e.ID }); i >= 0 {
		list[i] = e
		return nil
	}
	s.items[userID] = append(list, e)
	return nil
}

func (s *Store) Delete(_ context.Context, userID, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = slices.DeleteFunc(s.items[userID], func(x core.Expense) bool { return x.ID == expenseID })
	return nil
}

func (s *Store) Resync(_ context.Context, userID string, records []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(records) == 0 {
		delete(s.items, userID)
		return nil
	}
	s.items[userID] = slices.Clone(records)
	return nil
}

// Expenses returns a copy of what the sink holds for userID.
func (s *Store) Expenses(userID string) []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items[userID])
}
