package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"expenso/internal/core"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, amount_cents, category, created_at
		   FROM expenses WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		var (
			e         core.Expense
			cents     int64
			category  string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &cents, &category, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("expense %s: parse date %q: %w", e.ID, createdAt, err)
		}
		e.Amount = core.Cents(cents)
		e.Category = core.Category(category)
		e.Date = core.Date{Time: t}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertExpense(ctx context.Context, db execer, e core.Expense) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, name, amount_cents, category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Name, e.Amount.Cents, string(e.Category), e.Date.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
		}
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return insertExpense(ctx, r.db, e)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ReplaceExpenses(ctx context.Context, userID string, expenses []core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	for i, e := range expenses {
		e.UserID = userID
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expense %d: %w", i, err)
		}
		if err := insertExpense(ctx, tx, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ClearExpenses(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UsersWithExpenses(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM expenses ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, userID string) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `SELECT amount_cents FROM incomes WHERE user_id = ?`, userID).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get income: %w", err)
	}
	return core.Cents(cents), nil
}

func (r *SQLiteRepository) SetIncome(ctx context.Context, userID string, amount core.Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (user_id, amount_cents, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET amount_cents = excluded.amount_cents, updated_at = excluded.updated_at`,
		userID, amount.Cents, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set income: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SaveArchive(ctx context.Context, a Archive) error {
	payload, err := json.Marshal(a.Overview)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO monthly_archives (user_id, month, payload, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, month) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		a.UserID, a.Overview.Month, string(payload), a.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save archive: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetArchive(ctx context.Context, userID, month string) (Archive, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, payload, created_at FROM monthly_archives WHERE user_id = ? AND month = ?`, userID, month)
	a, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Archive{}, fmt.Errorf("archive %s for %s: %w", month, userID, ErrNotFound)
	}
	return a, err
}

func (r *SQLiteRepository) ListArchives(ctx context.Context, userID string) ([]Archive, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, payload, created_at FROM monthly_archives WHERE user_id = ? ORDER BY month`, userID)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	out := make([]Archive, 0)
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArchive(s scanner) (Archive, error) {
	var (
		a         Archive
		payload   string
		createdAt string
	)
	if err := s.Scan(&a.UserID, &payload, &createdAt); err != nil {
		return Archive{}, err
	}
	if err := json.Unmarshal([]byte(payload), &a.Overview); err != nil {
		return Archive{}, fmt.Errorf("decode archive: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Archive{}, fmt.Errorf("parse archive time: %w", err)
	}
	a.CreatedAt = t
	return a, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
