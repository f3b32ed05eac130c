package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expenso/internal/core"
)

type EventType string

const (
	EventExpenseCreated   EventType = "expense.created"
	EventExpenseDeleted   EventType = "expense.deleted"
	EventExpensesReplaced EventType = "expenses.replaced"
	EventExpensesCleared  EventType = "expenses.cleared"
)

var ErrMalformedEvent = errors.New("malformed event")

// ExpenseEvent tells downstream sinks that a user's expenses changed.
// Expense is only set for EventExpenseCreated.
type ExpenseEvent struct {
	Type      EventType     `json:"type"`
	UserID    string        `json:"userId"`
	ExpenseID string        `json:"expenseId,omitempty"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewExpenseCreated(userID string, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      EventExpenseCreated,
		UserID:    userID,
		ExpenseID: e.ID,
		Expense:   &e,
		Timestamp: time.Now().UTC(),
	}
}

func NewExpenseDeleted(userID, expenseID string) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      EventExpenseDeleted,
		UserID:    userID,
		ExpenseID: expenseID,
		Timestamp: time.Now().UTC(),
	}
}

func NewUserEvent(t EventType, userID string) *ExpenseEvent {
	return &ExpenseEvent{Type: t, UserID: userID, Timestamp: time.Now().UTC()}
}

func (m *ExpenseEvent) Validate() error {
	if m.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrMalformedEvent)
	}
	switch m.Type {
	case EventExpenseCreated:
		if m.Expense == nil {
			return fmt.Errorf("%w: %s without expense", ErrMalformedEvent, m.Type)
		}
		if err := m.Expense.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
	case EventExpenseDeleted:
		if m.ExpenseID == "" {
			return fmt.Errorf("%w: %s without expense id", ErrMalformedEvent, m.Type)
		}
	case EventExpensesReplaced, EventExpensesCleared:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, m.Type)
	}
	return nil
}

func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and validates a delivery body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
