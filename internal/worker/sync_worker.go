// Package worker applies expense events from the queue to every configured
// sink.
package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"expenso/internal/amqp"
	applog "expenso/internal/log"
	"expenso/internal/sinks"
	"expenso/internal/storage"
)

// SyncWorker fans each event out to the sinks concurrently. A failure in any
// sink fails the event so the broker redelivers it; sinks treat replays as
// idempotent.
type SyncWorker struct {
	store  storage.ExpenseRepository
	sinks  []sinks.Sink
	logger *applog.Logger
}

func NewSyncWorker(store storage.ExpenseRepository, targets []sinks.Sink, logger *applog.Logger) *SyncWorker {
	return &SyncWorker{
		store:  store,
		sinks:  targets,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent matches amqp.Handler.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing event",
		applog.FieldEventType, string(ev.Type),
		applog.FieldUserID, ev.UserID,
		applog.FieldExpenseID, ev.ExpenseID)

	switch ev.Type {
	case amqp.EventExpenseCreated:
		return w.each(ctx, func(ctx context.Context, s sinks.Sink) error {
			return s.Append(ctx, ev.UserID, *ev.Expense)
		})
	case amqp.EventExpenseDeleted:
		return w.each(ctx, func(ctx context.Context, s sinks.Sink) error {
			return s.Delete(ctx, ev.UserID, ev.ExpenseID)
		})
	case amqp.EventExpensesReplaced, amqp.EventExpensesCleared:
		return w.resyncUser(ctx, ev.UserID)
	default:
		return fmt.Errorf("unsupported event type %q", ev.Type)
	}
}

// resyncUser reads the current state from storage rather than trusting the
// event, so out-of-order replace/clear events converge.
func (w *SyncWorker) resyncUser(ctx context.Context, userID string) error {
	records, err := w.store.ListExpenses(ctx, userID)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	return w.each(ctx, func(ctx context.Context, s sinks.Sink) error {
		return s.Resync(ctx, userID, records)
	})
}

func (w *SyncWorker) each(ctx context.Context, fn func(context.Context, sinks.Sink) error) error {
	g, ctx := errgroup.WithContext(ctx)
	errs := make([]error, len(w.sinks))
	for i, s := range w.sinks {
		g.Go(func() error {
			if err := fn(ctx, s); err != nil {
				w.logger.ErrorContext(ctx, "Sink failed", applog.FieldSink, s.Name(), applog.FieldError, err)
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// StartupSync resyncs every user that has expenses. It recovers from events
// lost while the worker was down. Every user is attempted; the error joins
// the failures, one per user.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	userIDs, err := w.store.UsersWithExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var errs []error
	for _, id := range userIDs {
		if err := w.resyncUser(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
		}
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(userIDs),
		"synced", len(userIDs)-len(errs),
		"errors", len(errs))
	return errors.Join(errs...)
}
