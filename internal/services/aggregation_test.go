package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendbot/internal/cache"
	"spendbot/internal/core"
)

// fakeStore counts store reads so tests can observe cache behavior.
type fakeStore struct {
	sumFn       func(from, to time.Time) (decimal.Decimal, error)
	catTotalsFn func(from, to time.Time) map[string]decimal.Decimal

	sumResult decimal.Decimal
	catResult decimal.Decimal

	categories []string
	recent     []core.Expense

	limit    decimal.Decimal
	hasLimit bool

	created   []core.Expense
	setLimits []decimal.Decimal

	sumCalls      int
	sumByCatCalls int
	listCatCalls  int
	recentCalls   int
	getLimitCalls int
}

func (f *fakeStore) CreateExpense(ctx context.Context, e core.Expense) error {
	f.created = append(f.created, e)
	return nil
}

func (f *fakeStore) CreateCategory(ctx context.Context, c core.Category) error {
	f.categories = append(f.categories, c.Name)
	return nil
}

func (f *fakeStore) CategoryExists(ctx context.Context, chatID int64, name string) (bool, error) {
	norm := core.NormalizeCategoryName(name)
	for _, c := range f.categories {
		if core.NormalizeCategoryName(c) == norm {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ResolveCategoryName(ctx context.Context, chatID int64, name string) (string, error) {
	norm := core.NormalizeCategoryName(name)
	for _, c := range f.categories {
		if core.NormalizeCategoryName(c) == norm {
			return c, nil
		}
	}
	return "", nil
}

func (f *fakeStore) ListCategories(ctx context.Context, chatID int64) ([]string, error) {
	f.listCatCalls++
	return f.categories, nil
}

func (f *fakeStore) SumExpenses(ctx context.Context, chatID int64, from, to time.Time) (decimal.Decimal, error) {
	f.sumCalls++
	if f.sumFn != nil {
		return f.sumFn(from, to)
	}
	return f.sumResult, nil
}

func (f *fakeStore) SumExpensesByCategory(ctx context.Context, chatID int64, from, to time.Time, name string) (decimal.Decimal, error) {
	f.sumByCatCalls++
	return f.catResult, nil
}

func (f *fakeStore) CategoryTotals(ctx context.Context, chatID int64, from, to time.Time) (map[string]decimal.Decimal, error) {
	if f.catTotalsFn != nil {
		return f.catTotalsFn(from, to), nil
	}
	return map[string]decimal.Decimal{}, nil
}

func (f *fakeStore) ListRecentExpenses(ctx context.Context, chatID int64, count int) ([]core.Expense, error) {
	f.recentCalls++
	if count > len(f.recent) {
		count = len(f.recent)
	}
	return f.recent[:count], nil
}

func (f *fakeStore) GetLimit(ctx context.Context, chatID int64) (decimal.Decimal, bool, error) {
	f.getLimitCalls++
	return f.limit, f.hasLimit, nil
}

func (f *fakeStore) SetLimit(ctx context.Context, chatID int64, amount decimal.Decimal) error {
	f.setLimits = append(f.setLimits, amount)
	f.limit = amount
	f.hasLimit = true
	return nil
}

func (f *fakeStore) ClearLimit(ctx context.Context, chatID int64) (bool, error) {
	existed := f.hasLimit
	f.hasLimit = false
	return existed, nil
}

func newTestAggregation(store *fakeStore) *AggregationService {
	return NewAggregationService(store, cache.NewLRUCache[string](128))
}

func TestWeeklyTotal_SecondReadServedFromCache(t *testing.T) {
	store := &fakeStore{sumResult: decimal.RequireFromString("42.50")}
	svc := newTestAggregation(store)
	ctx := context.Background()

	first, err := svc.WeeklyTotal(ctx, 1)
	if err != nil {
		t.Fatalf("WeeklyTotal() error: %v", err)
	}
	second, err := svc.WeeklyTotal(ctx, 1)
	if err != nil {
		t.Fatalf("WeeklyTotal() error on repeat: %v", err)
	}

	if !first.Equal(second) {
		t.Errorf("repeat read = %s, want %s", second.String(), first.String())
	}
	if store.sumCalls != 1 {
		t.Errorf("store reads = %d, want 1 (second read must hit the cache)", store.sumCalls)
	}
}

func TestTotals_DistinctKeysPerMetricAndChat(t *testing.T) {
	store := &fakeStore{sumResult: decimal.RequireFromString("10")}
	svc := newTestAggregation(store)
	ctx := context.Background()

	svc.WeeklyTotal(ctx, 1)
	svc.MonthlyTotal(ctx, 1)
	svc.WeeklyTotal(ctx, 2)
	svc.CustomDaysTotal(ctx, 1, 3)
	svc.CustomDaysTotal(ctx, 1, 5)

	if store.sumCalls != 5 {
		t.Errorf("store reads = %d, want 5 (every metric/chat/days combination has its own key)", store.sumCalls)
	}

	// Each of them again: all cached now.
	svc.WeeklyTotal(ctx, 1)
	svc.MonthlyTotal(ctx, 1)
	svc.WeeklyTotal(ctx, 2)
	svc.CustomDaysTotal(ctx, 1, 3)
	svc.CustomDaysTotal(ctx, 1, 5)

	if store.sumCalls != 5 {
		t.Errorf("store reads after repeats = %d, want still 5", store.sumCalls)
	}
}

func TestCategoryTotals_KeyIncludesNormalizedName(t *testing.T) {
	store := &fakeStore{catResult: decimal.RequireFromString("7")}
	svc := newTestAggregation(store)
	ctx := context.Background()

	svc.CategoryWeeklyTotal(ctx, 1, "Food")
	svc.CategoryWeeklyTotal(ctx, 1, "Travel")

	if store.sumByCatCalls != 2 {
		t.Fatalf("store reads = %d, want 2 (different categories must not share a key)", store.sumByCatCalls)
	}

	// Spelling variants of the same category normalize to the same key.
	svc.CategoryWeeklyTotal(ctx, 1, " food, ")
	svc.CategoryWeeklyTotal(ctx, 1, "FOOD")

	if store.sumByCatCalls != 2 {
		t.Errorf("store reads after variants = %d, want still 2", store.sumByCatCalls)
	}

	// Weekly and monthly for the same category are separate metrics.
	svc.CategoryMonthlyTotal(ctx, 1, "Food")
	if store.sumByCatCalls != 3 {
		t.Errorf("store reads after monthly = %d, want 3", store.sumByCatCalls)
	}
}

func TestCreateExpense_DoesNotInvalidateCachedTotals(t *testing.T) {
	store := &fakeStore{sumResult: decimal.RequireFromString("100")}
	agg := newTestAggregation(store)
	expenses := NewExpenseService(store, nil)
	ctx := context.Background()

	before, err := agg.WeeklyTotal(ctx, 1)
	if err != nil {
		t.Fatalf("WeeklyTotal() error: %v", err)
	}

	// Commit a new expense; the store's ground truth moves on.
	e := core.NewExpense(1, decimal.RequireFromString("50"), "lunch", "", time.Now())
	if err := expenses.CreateExpense(ctx, e); err != nil {
		t.Fatalf("CreateExpense() error: %v", err)
	}
	store.sumResult = decimal.RequireFromString("150")

	after, err := agg.WeeklyTotal(ctx, 1)
	if err != nil {
		t.Fatalf("WeeklyTotal() error after commit: %v", err)
	}

	if !after.Equal(before) {
		t.Errorf("cached total after commit = %s, want the pre-commit %s (writes never purge cache entries)", after.String(), before.String())
	}
	if store.sumCalls != 1 {
		t.Errorf("store reads = %d, want 1", store.sumCalls)
	}
}

func TestCategoriesList(t *testing.T) {
	store := &fakeStore{categories: []string{"Food", "Travel"}}
	svc := newTestAggregation(store)
	ctx := context.Background()

	list, err := svc.CategoriesList(ctx, 1)
	if err != nil {
		t.Fatalf("CategoriesList() error: %v", err)
	}
	if list != "Food, Travel" {
		t.Errorf("CategoriesList() = %q, want %q", list, "Food, Travel")
	}

	svc.CategoriesList(ctx, 1)
	if store.listCatCalls != 1 {
		t.Errorf("store reads = %d, want 1", store.listCatCalls)
	}
}

func TestCategoriesList_EmptyChat(t *testing.T) {
	svc := newTestAggregation(&fakeStore{})

	list, err := svc.CategoriesList(context.Background(), 1)
	if err != nil {
		t.Fatalf("CategoriesList() error: %v", err)
	}
	if list != "" {
		t.Errorf("CategoriesList() = %q, want empty", list)
	}
}

func TestRecentExpensesFormatted_CountRange(t *testing.T) {
	svc := newTestAggregation(&fakeStore{})
	ctx := context.Background()

	for _, count := range []int{0, -1, 101} {
		if _, err := svc.RecentExpensesFormatted(ctx, 1, count); !errors.Is(err, core.ErrCountOutOfRange) {
			t.Errorf("RecentExpensesFormatted(count=%d) error = %v, want ErrCountOutOfRange", count, err)
		}
	}
}

func TestRecentExpensesFormatted_NoData(t *testing.T) {
	svc := newTestAggregation(&fakeStore{})

	got, err := svc.RecentExpensesFormatted(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RecentExpensesFormatted() error: %v", err)
	}
	if got != "No expense data yet" {
		t.Errorf("RecentExpensesFormatted() = %q, want the no-data notice", got)
	}
}

func TestRecentExpensesFormatted_RendersFields(t *testing.T) {
	store := &fakeStore{recent: []core.Expense{
		{
			ID:        "e1",
			ChatID:    1,
			Amount:    decimal.RequireFromString("12.50"),
			Content:   "lunch",
			Category:  "Food",
			CreatedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:        "e2",
			ChatID:    1,
			Amount:    decimal.RequireFromString("3"),
			CreatedAt: time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC),
		},
	}}
	svc := newTestAggregation(store)

	got, err := svc.RecentExpensesFormatted(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RecentExpensesFormatted() error: %v", err)
	}

	for _, want := range []string{
		"Amount: 12.50€",
		"Description: lunch",
		"Category: Food",
		"Amount: 3€",
		"Description: not specified",
		"Category: not specified",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted output missing %q:\n%s", want, got)
		}
	}
}

func TestMonthlyStatistics(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	currentWindow := func(from time.Time) bool { return from.Month() == time.June }

	t.Run("no previous month data", func(t *testing.T) {
		store := &fakeStore{
			sumFn: func(from, to time.Time) (decimal.Decimal, error) {
				if currentWindow(from) {
					return decimal.RequireFromString("150"), nil
				}
				return decimal.Zero, nil
			},
			catTotalsFn: func(from, to time.Time) map[string]decimal.Decimal {
				if currentWindow(from) {
					return map[string]decimal.Decimal{"Food": decimal.RequireFromString("150")}
				}
				return map[string]decimal.Decimal{}
			},
		}
		svc := newTestAggregation(store)
		svc.now = func() time.Time { return now }

		got, err := svc.MonthlyStatistics(context.Background(), 1)
		if err != nil {
			t.Fatalf("MonthlyStatistics() error: %v", err)
		}

		if !strings.Contains(got, "📊 This month you have spent: 150€") {
			t.Errorf("statistics missing absolute total line:\n%s", got)
		}
		if !strings.Contains(got, "💰 Spent on Food this month: 150€") {
			t.Errorf("statistics missing new-category line:\n%s", got)
		}
	})

	t.Run("with previous month data", func(t *testing.T) {
		store := &fakeStore{
			sumFn: func(from, to time.Time) (decimal.Decimal, error) {
				if currentWindow(from) {
					return decimal.RequireFromString("150"), nil
				}
				return decimal.RequireFromString("100"), nil
			},
			catTotalsFn: func(from, to time.Time) map[string]decimal.Decimal {
				if currentWindow(from) {
					return map[string]decimal.Decimal{"Food": decimal.RequireFromString("50")}
				}
				return map[string]decimal.Decimal{
					"Food":   decimal.RequireFromString("25"),
					"Travel": decimal.RequireFromString("30"),
				}
			},
		}
		svc := newTestAggregation(store)
		svc.now = func() time.Time { return now }

		got, err := svc.MonthlyStatistics(context.Background(), 1)
		if err != nil {
			t.Fatalf("MonthlyStatistics() error: %v", err)
		}

		for _, want := range []string{
			"📊 This month you spent 50% more than the last one!",
			"📌 On Food you spent 100% more this month",
			"💤 No spending on Travel this month",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("statistics missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("uncategorized spending is labeled", func(t *testing.T) {
		store := &fakeStore{
			sumFn: func(from, to time.Time) (decimal.Decimal, error) {
				if currentWindow(from) {
					return decimal.RequireFromString("10"), nil
				}
				return decimal.Zero, nil
			},
			catTotalsFn: func(from, to time.Time) map[string]decimal.Decimal {
				if currentWindow(from) {
					return map[string]decimal.Decimal{"": decimal.RequireFromString("10")}
				}
				return map[string]decimal.Decimal{}
			},
		}
		svc := newTestAggregation(store)
		svc.now = func() time.Time { return now }

		got, err := svc.MonthlyStatistics(context.Background(), 1)
		if err != nil {
			t.Fatalf("MonthlyStatistics() error: %v", err)
		}

		if !strings.Contains(got, "Spent on No category this month: 10€") {
			t.Errorf("statistics missing the uncategorized label:\n%s", got)
		}
	})
}

func TestCalendarMonthWindow(t *testing.T) {
	svc := newTestAggregation(&fakeStore{})
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC) }

	from, to := svc.calendarMonthWindow(0)
	if !from.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("current month from = %v, want March 1", from)
	}
	if !to.Equal(time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("current month to = %v, want last second of March", to)
	}

	prevFrom, prevTo := svc.calendarMonthWindow(-1)
	if !prevFrom.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("previous month from = %v, want February 1", prevFrom)
	}
	if !prevTo.Equal(time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("previous month to = %v, want last second of February", prevTo)
	}
}

func TestPercentDelta(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		previous string
		wantPct  string
		wantDir  string
	}{
		{name: "increase", current: "150", previous: "100", wantPct: "50", wantDir: "more"},
		{name: "decrease", current: "50", previous: "100", wantPct: "50", wantDir: "less"},
		{name: "unchanged", current: "100", previous: "100", wantPct: "0", wantDir: "more"},
		{name: "fractional", current: "110", previous: "90", wantPct: "22.22", wantDir: "more"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pct, dir := percentDelta(decimal.RequireFromString(tt.current), decimal.RequireFromString(tt.previous))
			if pct != tt.wantPct || dir != tt.wantDir {
				t.Errorf("percentDelta(%s, %s) = %s, %s; want %s, %s", tt.current, tt.previous, pct, dir, tt.wantPct, tt.wantDir)
			}
		})
	}
}
