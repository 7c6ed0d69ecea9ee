package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"spendbot/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
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

// CreateExpense persists a new expense record. The category name, when
// present, is stored as the canonical name resolved by the caller.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}

	var category sql.NullString
	if e.Category != "" {
		category = sql.NullString{String: e.Category, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, chat_id, amount_cents, content, category_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ChatID, core.Cents(e.Amount), e.Content, category, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"chat_id", e.ChatID,
		"amount_cents", core.Cents(e.Amount),
		"category", e.Category)

	return nil
}

// CreateCategory persists a new per-chat category. The normalized name is
// stored alongside the display name and carries the uniqueness constraint.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, chat_id, name, name_norm) VALUES (?, ?, ?, ?)`,
		c.ID, c.ChatID, c.Name, core.NormalizeCategoryName(c.Name))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category saved", "id", c.ID, "chat_id", c.ChatID, "name", c.Name)
	return nil
}

// CategoryExists reports whether the chat has a category matching the given
// name after normalization.
func (r *SQLiteRepository) CategoryExists(ctx context.Context, chatID int64, name string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM categories WHERE chat_id = ? AND name_norm = ?`,
		chatID, core.NormalizeCategoryName(name)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return count > 0, nil
}

// ResolveCategoryName returns the canonical (as created) category name for
// the chat, or "" when no category matches.
func (r *SQLiteRepository) ResolveCategoryName(ctx context.Context, chatID int64, name string) (string, error) {
	var canonical string
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM categories WHERE chat_id = ? AND name_norm = ?`,
		chatID, core.NormalizeCategoryName(name)).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve category: %w", err)
	}
	return canonical, nil
}

// ListCategories returns the chat's category names in creation order.
func (r *SQLiteRepository) ListCategories(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM categories WHERE chat_id = ? ORDER BY rowid`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SumExpenses returns the total spent by the chat in [from, to].
func (r *SQLiteRepository) SumExpenses(ctx context.Context, chatID int64, from, to time.Time) (decimal.Decimal, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE chat_id = ? AND created_at >= ? AND created_at <= ?`,
		chatID, from.Unix(), to.Unix()).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return core.FromCents(cents), nil
}

// SumExpensesByCategory returns the total spent in [from, to] on expenses
// linked to the named category. A name that matches no category for the
// chat yields zero, not an error.
func (r *SQLiteRepository) SumExpensesByCategory(ctx context.Context, chatID int64, from, to time.Time, name string) (decimal.Decimal, error) {
	canonical, err := r.ResolveCategoryName(ctx, chatID, name)
	if err != nil {
		return decimal.Zero, err
	}
	if canonical == "" {
		return decimal.Zero, nil
	}

	var cents int64
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE chat_id = ? AND created_at >= ? AND created_at <= ? AND category_name = ?`,
		chatID, from.Unix(), to.Unix(), canonical).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses by category: %w", err)
	}
	return core.FromCents(cents), nil
}

// CategoryTotals returns per-category totals within [from, to]. Expenses
// without a category are grouped under the empty key.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, chatID int64, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT COALESCE(category_name, ''), SUM(amount_cents) FROM expenses
		 WHERE chat_id = ? AND created_at >= ? AND created_at <= ?
		 GROUP BY COALESCE(category_name, '')`,
		chatID, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var name string
		var cents int64
		if err := rows.Scan(&name, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals[name] = core.FromCents(cents)
	}
	return totals, rows.Err()
}

// ListRecentExpenses returns the chat's most recent expenses, newest first.
func (r *SQLiteRepository) ListRecentExpenses(ctx context.Context, chatID int64, count int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, chat_id, amount_cents, content, COALESCE(category_name, ''), created_at
		 FROM expenses WHERE chat_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		chatID, count)
	if err != nil {
		return nil, fmt.Errorf("list recent expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var e core.Expense
		var cents, createdAt int64
		if err := rows.Scan(&e.ID, &e.ChatID, &cents, &e.Content, &e.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Amount = core.FromCents(cents)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// GetLimit returns the chat's monthly limit; ok is false when none is set.
func (r *SQLiteRepository) GetLimit(ctx context.Context, chatID int64) (decimal.Decimal, bool, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT amount_cents FROM monthly_limits WHERE chat_id = ?`, chatID).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get limit: %w", err)
	}
	return core.FromCents(cents), true, nil
}

// SetLimit creates the chat's monthly limit or overwrites it in place.
func (r *SQLiteRepository) SetLimit(ctx context.Context, chatID int64, amount decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO monthly_limits (chat_id, amount_cents, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET amount_cents = excluded.amount_cents, created_at = excluded.created_at`,
		chatID, core.Cents(amount), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set limit: %w", err)
	}

	slog.InfoContext(ctx, "Limit set", "chat_id", chatID, "amount_cents", core.Cents(amount))
	return nil
}

// ClearLimit removes the chat's limit and reports whether one existed.
func (r *SQLiteRepository) ClearLimit(ctx context.Context, chatID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM monthly_limits WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, fmt.Errorf("clear limit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear limit result: %w", err)
	}
	return affected > 0, nil
}
