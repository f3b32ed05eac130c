// Package archive freezes each user's previous month into a stored summary
// and sends the CSV report out, on a cron schedule.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"expenso/internal/core"
	applog "expenso/internal/log"
	"expenso/internal/report"
	"expenso/internal/storage"
)

// Store is what the archiver reads and writes.
type Store interface {
	storage.ExpenseRepository
	storage.IncomeRepository
	storage.ArchiveRepository
}

type Archiver struct {
	store    Store
	resolver report.CategoryResolver
	notifier Notifier
	logger   *applog.Logger
	now      func() time.Time
}

// NewArchiver accepts a nil notifier; archives are then only stored.
func NewArchiver(store Store, resolver report.CategoryResolver, notifier Notifier, logger *applog.Logger) *Archiver {
	return &Archiver{
		store:    store,
		resolver: resolver,
		notifier: notifier,
		logger:   logger.WithComponent(applog.ComponentArchive),
		now:      time.Now,
	}
}

// Run archives the month before now.
func (a *Archiver) Run(ctx context.Context) error {
	return a.ArchiveMonth(ctx, report.MonthOf(a.now()).Previous())
}

// ArchiveMonth stores one archive per user with expenses. Running it twice
// for the same month overwrites the earlier archives.
func (a *Archiver) ArchiveMonth(ctx context.Context, month report.YearMonth) error {
	userIDs, err := a.store.UsersWithExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var errs []error
	archived := 0
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := a.archiveUser(ctx, id, month)
		if err != nil {
			a.logger.ErrorContext(ctx, "Archive failed",
				applog.FieldUserID, id, applog.FieldMonth, month.String(), applog.FieldError, err)
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		if ok {
			archived++
		}
	}

	a.logger.InfoContext(ctx, "Monthly archive completed",
		applog.FieldMonth, month.String(),
		applog.FieldCount, archived,
		applog.FieldOperation, applog.OpArchive)
	return errors.Join(errs...)
}

// archiveUser reports false when the user spent nothing that month.
func (a *Archiver) archiveUser(ctx context.Context, userID string, month report.YearMonth) (bool, error) {
	records, err := a.store.ListExpenses(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list expenses: %w", err)
	}
	income, err := a.store.GetIncome(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get income: %w", err)
	}

	ov, err := report.BuildMonthOverview(records, income, month, a.resolver)
	if err != nil {
		return false, err
	}
	if ov.Count == 0 {
		return false, nil
	}

	if err := a.store.SaveArchive(ctx, storage.Archive{UserID: userID, Overview: ov, CreatedAt: a.now().UTC()}); err != nil {
		return false, fmt.Errorf("save archive: %w", err)
	}

	if a.notifier == nil {
		return true, nil
	}
	var buf bytes.Buffer
	if err := RenderCSV(&buf, ov, monthRecords(records, month)); err != nil {
		return true, err
	}
	// the archive is stored even if delivery fails
	if err := a.notifier.Notify(ctx, userID, ov, buf.Bytes()); err != nil {
		a.logger.WarnContext(ctx, "Archive notification failed", applog.FieldUserID, userID, applog.FieldError, err)
	}
	return true, nil
}

func monthRecords(records []core.Expense, month report.YearMonth) []core.Expense {
	valid, _ := report.Sanitize(records)
	p := report.DefaultParams()
	p.Month = month
	p.SortOrder = report.Ascending
	out, err := report.FilterAndSort(valid, p)
	if err != nil {
		return nil
	}
	return out
}
