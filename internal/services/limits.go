package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"spendbot/internal/core"
)

var warningThreshold = decimal.RequireFromString("0.75")

// LimitService derives limit-exceeded/warning status for a chat. The
// decision itself is a pure function of the limit and the spent total;
// the service only fetches those two inputs.
type LimitService struct {
	store Store
	agg   *AggregationService
}

func NewLimitService(store Store, agg *AggregationService) *LimitService {
	return &LimitService{store: store, agg: agg}
}

// CheckAfterExpense evaluates the chat's limit assuming expenseAmount has
// just been (or is about to be) committed on top of the current calendar
// month's total. Without a configured limit it returns the zero result and
// never touches aggregates.
func (s *LimitService) CheckAfterExpense(ctx context.Context, chatID int64, expenseAmount decimal.Decimal) (core.LimitCheckResult, error) {
	limit, ok, err := s.store.GetLimit(ctx, chatID)
	if err != nil {
		return core.LimitCheckResult{}, fmt.Errorf("get limit: %w", err)
	}
	if !ok {
		return core.LimitCheckResult{}, nil
	}

	monthTotal, err := s.agg.CalendarMonthTotal(ctx, chatID, 0)
	if err != nil {
		return core.LimitCheckResult{}, fmt.Errorf("current month total: %w", err)
	}

	return Evaluate(limit, monthTotal.Add(expenseAmount)), nil
}

// Evaluate is the pure limit decision: exceeded at spent >= limit, warning
// at spent >= 0.75*limit. Both flags can be true at once; callers must
// check exceeded first.
func Evaluate(limit, spent decimal.Decimal) core.LimitCheckResult {
	return core.LimitCheckResult{
		HasLimit:      true,
		CurrentLimit:  limit,
		CurrentSpent:  spent,
		LimitExceeded: spent.GreaterThanOrEqual(limit),
		WarningNeeded: spent.GreaterThanOrEqual(limit.Mul(warningThreshold)),
	}
}
