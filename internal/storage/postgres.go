package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"expenso/internal/core"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository migrates the schema at dsn and opens a pool.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	if err := RunPostgresMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, name, amount_cents, category, created_at, tz_offset_seconds
		   FROM expenses WHERE user_id = $1 ORDER BY seq`, userID)
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
			createdAt time.Time
			offset    int
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &cents, &category, &createdAt, &offset); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Amount = core.Cents(cents)
		e.Category = core.Category(category)
		e.Date = core.Date{Time: inOffset(createdAt, offset)}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// TIMESTAMPTZ keeps only the instant. The offset is stored beside it so
// records come back on the same local day they were entered.
func zoneOffset(t time.Time) int {
	_, offset := t.Zone()
	return offset
}

func inOffset(t time.Time, offset int) time.Time {
	if offset == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offset))
}

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func pgInsertExpense(ctx context.Context, db pgExecer, e core.Expense) error {
	_, err := db.Exec(ctx,
		`INSERT INTO expenses (id, user_id, name, amount_cents, category, created_at, tz_offset_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.UserID, e.Name, e.Amount.Cents, string(e.Category), e.Date.Time, zoneOffset(e.Date.Time))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
		}
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return pgInsertExpense(ctx, r.pool, e)
}

func (r *PostgresRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) ReplaceExpenses(ctx context.Context, userID string, expenses []core.Expense) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM expenses WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear expenses: %w", err)
		}
		for i, e := range expenses {
			e.UserID = userID
			if err := e.Validate(); err != nil {
				return fmt.Errorf("expense %d: %w", i, err)
			}
			if err := pgInsertExpense(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepository) ClearExpenses(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UsersWithExpenses(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT user_id FROM expenses ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

func (r *PostgresRepository) GetIncome(ctx context.Context, userID string) (core.Money, error) {
	var cents int64
	err := r.pool.QueryRow(ctx, `SELECT amount_cents FROM incomes WHERE user_id = $1`, userID).Scan(&cents)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get income: %w", err)
	}
	return core.Cents(cents), nil
}

func (r *PostgresRepository) SetIncome(ctx context.Context, userID string, amount core.Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO incomes (user_id, amount_cents, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET amount_cents = EXCLUDED.amount_cents, updated_at = now()`,
		userID, amount.Cents)
	if err != nil {
		return fmt.Errorf("set income: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveArchive(ctx context.Context, a Archive) error {
	payload, err := json.Marshal(a.Overview)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO monthly_archives (user_id, month, payload, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, month) DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
		a.UserID, a.Overview.Month, payload, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save archive: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetArchive(ctx context.Context, userID, month string) (Archive, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT user_id, payload, created_at FROM monthly_archives WHERE user_id = $1 AND month = $2`, userID, month)
	a, err := pgScanArchive(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Archive{}, fmt.Errorf("archive %s for %s: %w", month, userID, ErrNotFound)
	}
	return a, err
}

func (r *PostgresRepository) ListArchives(ctx context.Context, userID string) ([]Archive, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, payload, created_at FROM monthly_archives WHERE user_id = $1 ORDER BY month`, userID)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	out := make([]Archive, 0)
	for rows.Next() {
		a, err := pgScanArchive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func pgScanArchive(row pgx.Row) (Archive, error) {
	var (
		a       Archive
		payload []byte
	)
	if err := row.Scan(&a.UserID, &payload, &a.CreatedAt); err != nil {
		return Archive{}, err
	}
	if err := json.Unmarshal(payload, &a.Overview); err != nil {
		return Archive{}, fmt.Errorf("decode archive: %w", err)
	}
	return a, nil
}
