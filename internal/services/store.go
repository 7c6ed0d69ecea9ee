package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"spendbot/internal/core"
)

// Store is the persistence contract the services consume. The sqlite
// repository implements it; tests substitute fakes.
type Store interface {
	CreateExpense(ctx context.Context, e core.Expense) error
	CreateCategory(ctx context.Context, c core.Category) error
	CategoryExists(ctx context.Context, chatID int64, name string) (bool, error)
	ResolveCategoryName(ctx context.Context, chatID int64, name string) (string, error)
	ListCategories(ctx context.Context, chatID int64) ([]string, error)

	SumExpenses(ctx context.Context, chatID int64, from, to time.Time) (decimal.Decimal, error)
	SumExpensesByCategory(ctx context.Context, chatID int64, from, to time.Time, name string) (decimal.Decimal, error)
	CategoryTotals(ctx context.Context, chatID int64, from, to time.Time) (map[string]decimal.Decimal, error)
	ListRecentExpenses(ctx context.Context, chatID int64, count int) ([]core.Expense, error)

	GetLimit(ctx context.Context, chatID int64) (decimal.Decimal, bool, error)
	SetLimit(ctx context.Context, chatID int64, amount decimal.Decimal) error
	ClearLimit(ctx context.Context, chatID int64) (bool, error)
}

// EventPublisher pushes committed-expense events to interested consumers.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, expenseID string, chatID, amountCents int64, category string) error
}
