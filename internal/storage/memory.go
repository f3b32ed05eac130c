package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"expenso/internal/core"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	expenses map[string][]core.Expense
	incomes  map[string]core.Money
	archives map[string]map[string]Archive
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expenses: make(map[string][]core.Expense),
		incomes:  make(map[string]core.Money),
		archives: make(map[string]map[string]Archive),
	}
}

func (s *MemoryStore) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.expenses[userID]), nil
}

func (s *MemoryStore) AddExpense(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.expenses[e.UserID] {
		if existing.ID == e.ID {
			return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
		}
	}
	s.expenses[e.UserID] = append(s.expenses[e.UserID], e)
	return nil
}

func (s *MemoryStore) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.expenses[userID]
	i := slices.IndexFunc(list, func(e core.Expense) bool { return e.ID == id })
	if i < 0 {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	s.expenses[userID] = slices.Delete(slices.Clone(list), i, i+1)
	return nil
}

func (s *MemoryStore) ReplaceExpenses(_ context.Context, userID string, expenses []core.Expense) error {
	seen := make(map[string]bool, len(expenses))
	list := make([]core.Expense, len(expenses))
	for i, e := range expenses {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expense %d: %w", i, err)
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
		}
		seen[e.ID] = true
		e.UserID = userID
		list[i] = e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[userID] = list
	return nil
}

func (s *MemoryStore) ClearExpenses(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expenses, userID)
	return nil
}

func (s *MemoryStore) UsersWithExpenses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.expenses))
	for u, list := range s.expenses {
		if len(list) > 0 {
			users = append(users, u)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (s *MemoryStore) GetIncome(_ context.Context, userID string) (core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.incomes[userID], nil
}

func (s *MemoryStore) SetIncome(_ context.Context, userID string, amount core.Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomes[userID] = amount
	return nil
}

func (s *MemoryStore) SaveArchive(_ context.Context, a Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMonth, ok := s.archives[a.UserID]
	if !ok {
		byMonth = make(map[string]Archive)
		s.archives[a.UserID] = byMonth
	}
	byMonth[a.Overview.Month] = a
	return nil
}

func (s *MemoryStore) GetArchive(_ context.Context, userID, month string) (Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.archives[userID][month]
	if !ok {
		return Archive{}, fmt.Errorf("archive %s for %s: %w", month, userID, ErrNotFound)
	}
	return a, nil
}

func (s *MemoryStore) ListArchives(_ context.Context, userID string) ([]Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Archive, 0, len(s.archives[userID]))
	for _, a := range s.archives[userID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Overview.Month < out[j].Overview.Month })
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
