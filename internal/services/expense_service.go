// Package services holds the use cases behind the HTTP API: expense and
// income changes, the dashboard and reports views, and exports.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"expenso/internal/amqp"
	"expenso/internal/core"
	applog "expenso/internal/log"
	"expenso/internal/report"
	"expenso/internal/storage"
	"expenso/internal/users"
)

var ErrInvalidExpense = errors.New("invalid expense")

type (
	// Store is the part of storage.Repository the service needs.
	Store interface {
		storage.ExpenseRepository
		storage.IncomeRepository
		storage.ArchiveRepository
	}

	Publisher interface {
		Publish(ctx context.Context, ev *amqp.ExpenseEvent) error
	}

	// ExpenseInput is the body of a create request. Date defaults to today.
	ExpenseInput struct {
		Name     string          `json:"name"`
		Amount   json.RawMessage `json:"amount"`
		Category string          `json:"category"`
		Date     string          `json:"date"`
	}

	ReplaceResult struct {
		Saved   int            `json:"saved"`
		Skipped []report.Issue `json:"skipped,omitempty"`
	}

	Export struct {
		User       users.User     `json:"user"`
		Income     core.Money     `json:"income"`
		Expenses   []core.Expense `json:"expenses"`
		ExportDate time.Time      `json:"exportDate"`
	}
)

// ExpenseService writes to storage first and then publishes an event for
// the sinks. A failed publish is logged, never returned: the write already
// happened and the worker's startup sync repairs the sinks.
type ExpenseService struct {
	store     Store
	publisher Publisher
	resolver  report.CategoryResolver
	logger    *applog.Logger
	now       func() time.Time
	newID     func() string
}

// NewExpenseService accepts a nil publisher when no broker is configured.
func NewExpenseService(store Store, publisher Publisher, resolver report.CategoryResolver, logger *applog.Logger) *ExpenseService {
	if resolver == nil {
		resolver = report.FieldResolver{}
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		resolver:  resolver,
		logger:    logger.WithComponent(applog.ComponentExpense),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *ExpenseService) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	records, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if records == nil {
		records = []core.Expense{}
	}
	return records, nil
}

// CreateExpense validates the input against the entry form rules: a
// positive amount and one of the fixed categories.
func (s *ExpenseService) CreateExpense(ctx context.Context, userID string, in ExpenseInput) (core.Expense, error) {
	if strings.TrimSpace(in.Date) == "" {
		in.Date = s.now().UTC().Format(time.DateOnly)
	}
	e, err := core.NewExpense(core.RawExpense{
		ID:       json.RawMessage(strconv.Quote(s.newID())),
		Name:     in.Name,
		Amount:   in.Amount,
		Category: in.Category,
		Date:     in.Date,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %w", ErrInvalidExpense, err)
	}
	if err := e.Amount.ValidatePositive(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: amount must be greater than zero: %w", ErrInvalidExpense, err)
	}
	cat, err := core.ParseCategory(in.Category)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %q: %w", ErrInvalidExpense, in.Category, err)
	}
	e.Category = cat
	e.UserID = userID

	if err := s.store.AddExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	applog.NewStructuredLogger(s.logger).LogExpense(ctx, applog.OpCreate, userID, e.ID, e.Amount.Cents, string(e.Category))

	s.publish(ctx, amqp.NewExpenseCreated(userID, e))
	return e, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Expense deleted", applog.FieldUserID, userID, applog.FieldExpenseID, id)
	s.publish(ctx, amqp.NewExpenseDeleted(userID, id))
	return nil
}

// ReplaceExpenses stores the valid records and reports the rest.
func (s *ExpenseService) ReplaceExpenses(ctx context.Context, userID string, raws []core.RawExpense) (ReplaceResult, error) {
	valid, issues := report.FromRaw(raws)
	for i := range valid {
		valid[i].UserID = userID
	}
	if err := s.store.ReplaceExpenses(ctx, userID, valid); err != nil {
		return ReplaceResult{}, fmt.Errorf("replace expenses: %w", err)
	}
	for _, issue := range issues {
		s.logger.WarnContext(ctx, "Skipped record", applog.FieldUserID, userID, "issue", issue.String())
	}
	s.logger.InfoContext(ctx, "Expenses replaced",
		applog.FieldUserID, userID,
		applog.FieldCount, len(valid),
		applog.FieldOperation, applog.OpReplace)

	s.publish(ctx, amqp.NewUserEvent(amqp.EventExpensesReplaced, userID))
	return ReplaceResult{Saved: len(valid), Skipped: issues}, nil
}

// ClearAll removes every expense and resets income to zero.
func (s *ExpenseService) ClearAll(ctx context.Context, userID string) error {
	if err := s.store.ClearExpenses(ctx, userID); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	if err := s.store.SetIncome(ctx, userID, core.Money{}); err != nil {
		return fmt.Errorf("reset income: %w", err)
	}
	s.logger.InfoContext(ctx, "All data cleared", applog.FieldUserID, userID, applog.FieldOperation, applog.OpClear)
	s.publish(ctx, amqp.NewUserEvent(amqp.EventExpensesCleared, userID))
	return nil
}

func (s *ExpenseService) GetIncome(ctx context.Context, userID string) (core.Money, error) {
	return s.store.GetIncome(ctx, userID)
}

// SetIncome accepts a JSON number or numeric string; negatives are rejected.
func (s *ExpenseService) SetIncome(ctx context.Context, userID string, raw json.RawMessage) (core.Money, error) {
	var m core.Money
	if err := m.UnmarshalJSON(raw); err != nil {
		return core.Money{}, fmt.Errorf("%w: income: %w", ErrInvalidExpense, err)
	}
	if err := m.Validate(); err != nil {
		return core.Money{}, fmt.Errorf("%w: income: %w", ErrInvalidExpense, err)
	}
	if err := s.store.SetIncome(ctx, userID, m); err != nil {
		return core.Money{}, fmt.Errorf("save income: %w", err)
	}
	return m, nil
}

func (s *ExpenseService) Dashboard(ctx context.Context, userID string, p report.Params) (report.Dashboard, error) {
	records, income, err := s.load(ctx, userID)
	if err != nil {
		return report.Dashboard{}, err
	}
	return report.BuildDashboard(records, income, p, s.resolver)
}

func (s *ExpenseService) Trend(ctx context.Context, userID string, opts report.TrendOptions) (report.Trend, error) {
	records, income, err := s.load(ctx, userID)
	if err != nil {
		return report.Trend{}, err
	}
	if opts.Resolver == nil {
		opts.Resolver = s.resolver
	}
	return report.BuildTrend(records, income, opts, s.now())
}

func (s *ExpenseService) Export(ctx context.Context, u users.User) (Export, error) {
	records, income, err := s.load(ctx, u.ID)
	if err != nil {
		return Export{}, err
	}
	return Export{User: u, Income: income, Expenses: records, ExportDate: s.now().UTC()}, nil
}

// Archives lists the stored monthly archives, oldest month first.
func (s *ExpenseService) Archives(ctx context.Context, userID string) ([]storage.Archive, error) {
	archives, err := s.store.ListArchives(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	if archives == nil {
		archives = []storage.Archive{}
	}
	return archives, nil
}

// MonthReport builds a live overview of one month together with that
// month's records in date order, ready for RenderCSV.
func (s *ExpenseService) MonthReport(ctx context.Context, userID string, month report.YearMonth) (core.MonthOverview, []core.Expense, error) {
	records, income, err := s.load(ctx, userID)
	if err != nil {
		return core.MonthOverview{}, nil, err
	}
	ov, err := report.BuildMonthOverview(records, income, month, s.resolver)
	if err != nil {
		return core.MonthOverview{}, nil, err
	}

	p := report.DefaultParams()
	p.Month = month
	p.SortOrder = report.Ascending
	valid, _ := report.Sanitize(records)
	selected, err := report.FilterAndSort(valid, p)
	if err != nil {
		return core.MonthOverview{}, nil, err
	}
	return ov, selected, nil
}

func (s *ExpenseService) load(ctx context.Context, userID string) ([]core.Expense, core.Money, error) {
	records, err := s.ListExpenses(ctx, userID)
	if err != nil {
		return nil, core.Money{}, err
	}
	income, err := s.store.GetIncome(ctx, userID)
	if err != nil {
		return nil, core.Money{}, fmt.Errorf("get income: %w", err)
	}
	return records, income, nil
}

func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			applog.FieldError, err,
			applog.FieldEventType, string(ev.Type),
			applog.FieldUserID, ev.UserID)
	}
}
