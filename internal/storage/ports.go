// Package storage persists expenses, incomes and monthly archives.
//
// Three implementations share the Repository contract: an in-memory store
// for development and tests, SQLite for a single-node deployment and
// PostgreSQL. All of them are safe for concurrent use.
package storage

import (
	"context"
	"errors"
	"time"

	"expenso/internal/core"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate expense id")
)

type (
	// ExpenseRepository is the record source: it hands out a user's full
	// list and accepts single additions, removals or a full replacement.
	ExpenseRepository interface {
		ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
		AddExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, userID, id string) error
		ReplaceExpenses(ctx context.Context, userID string, expenses []core.Expense) error
		ClearExpenses(ctx context.Context, userID string) error
		// UsersWithExpenses lists users holding at least one expense.
		UsersWithExpenses(ctx context.Context) ([]string, error)
	}

	IncomeRepository interface {
		// GetIncome returns zero for users that never set one.
		GetIncome(ctx context.Context, userID string) (core.Money, error)
		SetIncome(ctx context.Context, userID string, amount core.Money) error
	}

	ArchiveRepository interface {
		SaveArchive(ctx context.Context, a Archive) error
		GetArchive(ctx context.Context, userID, month string) (Archive, error)
		ListArchives(ctx context.Context, userID string) ([]Archive, error)
	}

	Repository interface {
		ExpenseRepository
		IncomeRepository
		ArchiveRepository
		Ping(ctx context.Context) error
		Close() error
	}

	// Archive is a frozen monthly summary for one user.
	Archive struct {
		UserID    string             `json:"userId"`
		Overview  core.MonthOverview `json:"overview"`
		CreatedAt time.Time          `json:"createdAt"`
	}
)
