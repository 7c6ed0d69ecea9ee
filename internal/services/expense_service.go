package services

import (
	"context"
	"fmt"
	"log/slog"

	"spendbot/internal/core"
)

// ExpenseService owns the expense commit path: persist to the store, then
// publish a best-effort event. Publishing failures never fail the commit.
// Committing does not touch the aggregate cache; stale totals age out by
// TTL.
type ExpenseService struct {
	store     Store
	publisher EventPublisher
}

func NewExpenseService(store Store, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
	}
}

// CreateExpense saves an expense and announces it to downstream consumers
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) error {
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return fmt.Errorf("save expense: %w", err)
	}

	if s.publisher == nil {
		return nil
	}

	if err := s.publisher.PublishExpenseCreated(ctx, e.ID, e.ChatID, core.Cents(e.Amount), e.Category); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"expense_id", e.ID, "error", err)
		// Don't fail the commit - the expense is saved locally
	}

	return nil
}
