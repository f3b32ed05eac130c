package core

import (
	"errors"
	"strings"
	"time"
)

const (
	FoodDining     Category = "Food & Dining"
	Transportation Category = "Transportation"
	ShoppingRetail Category = "Shopping & Retail"
	Entertainment  Category = "Entertainment"
	BillsUtilities Category = "Bills & Utilities"
	HealthMedical  Category = "Health & Medical"
	Education      Category = "Education"
	Travel         Category = "Travel"
	HomeHousing    Category = "Home & Housing"
	Other          Category = "Other"
	Uncategorized  Category = "Uncategorized"
)

const maxNameLength = 200

type (
	// Category labels an expense. The fixed set is what the entry form
	// offers; stored records may carry any label.
	Category string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID       string   `json:"id"`
		UserID   string   `json:"userId,omitempty"`
		Name     string   `json:"name"`
		Amount   Money    `json:"amount"`
		Category Category `json:"category,omitempty"`
		Date     Date     `json:"date"`
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name too long (max 200 characters)")
	ErrMissingID       = errors.New("missing id")
	ErrUnknownCategory = errors.New("unknown category")
)

var categories = []Category{
	FoodDining,
	Transportation,
	ShoppingRetail,
	Entertainment,
	BillsUtilities,
	HealthMedical,
	Education,
	Travel,
	HomeHousing,
	Other,
}

// Categories returns the fixed category set in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory matches s against the fixed set, ignoring case and
// surrounding spaces.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

func (c Category) String() string {
	return string(c)
}

// IsBlank reports whether the label is empty after trimming.
func (c Category) IsBlank() bool {
	return strings.TrimSpace(string(c)) == ""
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// YearMonth returns the UTC year-month key, e.g. "2024-01".
func (d Date) YearMonth() string {
	return d.UTC().Format("2006-01")
}

// DayKey returns the calendar day in the date's own location.
func (d Date) DayKey() string {
	return d.Format(time.DateOnly)
}

// Validate accepts zero amounts; the entry form applies the stricter
// positive check through Money.ValidatePositive.
func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (m Money) ValidatePositive() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrMissingID
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Name)) == 0 {
		return ErrEmptyName
	}
	if len(e.Name) > maxNameLength {
		return ErrNameTooLong
	}
	return e.Amount.Validate()
}
