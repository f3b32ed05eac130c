package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RawExpense is an expense as it arrives from outside: an import file, a
// replacement list or an old export where ids were numbers and amounts
// sometimes strings. NewExpense turns it into a checked Expense.
type RawExpense struct {
	ID       json.RawMessage `json:"id"`
	Name     string          `json:"name"`
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Date     string          `json:"date"`
}

// dateLayouts are tried in order when parsing RawExpense.Date.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// NewExpense validates raw once at the boundary. The returned error wraps
// one of the package sentinel errors.
func NewExpense(raw RawExpense) (Expense, error) {
	id, err := rawID(raw.ID)
	if err != nil {
		return Expense{}, err
	}

	var amount Money
	if len(bytes.TrimSpace(raw.Amount)) == 0 {
		return Expense{}, fmt.Errorf("%w: missing", ErrInvalidAmount)
	}
	if err := amount.UnmarshalJSON(raw.Amount); err != nil {
		return Expense{}, err
	}

	date, err := ParseDate(raw.Date)
	if err != nil {
		return Expense{}, err
	}

	e := Expense{
		ID:       id,
		Name:     strings.TrimSpace(raw.Name),
		Amount:   amount,
		Category: Category(strings.TrimSpace(raw.Category)),
		Date:     date,
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// ParseDate parses an RFC 3339 timestamp or a plain calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: missing", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func rawID(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", ErrMissingID
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMissingID, err)
		}
		if strings.TrimSpace(s) == "" {
			return "", ErrMissingID
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMissingID, data)
	}
	return n.String(), nil
}
