// Package sinks defines the downstream stores the worker mirrors expenses
// into and the flat document shape they share.
package sinks

import (
	"context"

	"expenso/internal/core"
)

// Sink receives expense changes for one user at a time. Delete of an
// unknown expense is not an error.
type Sink interface {
	Name() string
	Append(ctx context.Context, userID string, e core.Expense) error
	Delete(ctx context.Context, userID, expenseID string) error
	// Resync replaces everything the sink holds for userID with records.
	Resync(ctx context.Context, userID string, records []core.Expense) error
}

// Document is the flattened expense both search and spreadsheet sinks store.
type Document struct {
	UserID      string `json:"userId"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Month       string `json:"month"`
	AmountCents int64  `json:"amountCents"`
	Amount      string `json:"amount"`
}

func NewDocument(userID string, e core.Expense) Document {
	cat := e.Category
	if cat.IsBlank() {
		cat = core.Uncategorized
	}
	return Document{
		UserID:      userID,
		ID:          e.ID,
		Name:        e.Name,
		Category:    cat.String(),
		Date:        e.Date.DayKey(),
		Month:       e.Date.YearMonth(),
		AmountCents: e.Amount.Cents,
		Amount:      e.Amount.String(),
	}
}

// DocumentID is unique across users.
func DocumentID(userID, expenseID string) string {
	return userID + ":" + expenseID
}
