package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"spendbot/internal/cache"
	"spendbot/internal/core"
)

// Per-metric cache TTLs. Short enough that a fresh expense shows up in
// aggregates within one window, long enough to absorb repeated queries in
// a session. Writes never purge entries; staleness is bounded by these.
const (
	ttlWeekly        = 10 * time.Minute
	ttlMonthly       = 10 * time.Minute
	ttlCustomDays    = time.Minute
	ttlCategory      = time.Minute
	ttlCategoryList  = time.Minute
	ttlCalendarMonth = time.Minute
	ttlStatistics    = 5 * time.Minute
	ttlRecent        = time.Minute
)

const uncategorizedLabel = "No category"

// AggregationService answers all read-side spending queries. Every read
// goes cache-first under a deterministic key; a miss computes from the
// store (collapsed per key via singleflight) and writes back with the
// metric's TTL. Cache failures degrade to store reads and are only logged.
type AggregationService struct {
	store Store
	cache cache.Cache[string]
	group singleflight.Group
	now   func() time.Time
}

func NewAggregationService(store Store, c cache.Cache[string]) *AggregationService {
	return &AggregationService{
		store: store,
		cache: c,
		now:   time.Now,
	}
}

// WeeklyTotal is the sum over the rolling [now-7d, now] window.
func (s *AggregationService) WeeklyTotal(ctx context.Context, chatID int64) (decimal.Decimal, error) {
	key := fmt.Sprintf("weekly:%d", chatID)
	return s.cachedTotal(ctx, key, ttlWeekly, func(ctx context.Context) (decimal.Decimal, error) {
		now := s.now().UTC()
		return s.store.SumExpenses(ctx, chatID, now.AddDate(0, 0, -7), now)
	})
}

// MonthlyTotal is the sum over the rolling [now-1mo, now] window. It is
// distinct from CalendarMonthTotal, which is calendar-aligned.
func (s *AggregationService) MonthlyTotal(ctx context.Context, chatID int64) (decimal.Decimal, error) {
	key := fmt.Sprintf("monthly:%d", chatID)
	return s.cachedTotal(ctx, key, ttlMonthly, func(ctx context.Context) (decimal.Decimal, error) {
		now := s.now().UTC()
		return s.store.SumExpenses(ctx, chatID, now.AddDate(0, -1, 0), now)
	})
}

// CustomDaysTotal is the sum over the rolling [now-days, now] window.
func (s *AggregationService) CustomDaysTotal(ctx context.Context, chatID int64, days int) (decimal.Decimal, error) {
	key := fmt.Sprintf("custom:%d:%d", chatID, days)
	return s.cachedTotal(ctx, key, ttlCustomDays, func(ctx context.Context) (decimal.Decimal, error) {
		now := s.now().UTC()
		return s.store.SumExpenses(ctx, chatID, now.AddDate(0, 0, -days), now)
	})
}

// CalendarMonthTotal is the sum within the calendar month offset from now:
// offset 0 is the current month, -1 the previous one.
func (s *AggregationService) CalendarMonthTotal(ctx context.Context, chatID int64, offsetMonths int) (decimal.Decimal, error) {
	key := fmt.Sprintf("calmonth:%d:%d", chatID, offsetMonths)
	return s.cachedTotal(ctx, key, ttlCalendarMonth, func(ctx context.Context) (decimal.Decimal, error) {
		from, to := s.calendarMonthWindow(offsetMonths)
		return s.store.SumExpenses(ctx, chatID, from, to)
	})
}

// CategoryWeeklyTotal is the rolling weekly sum filtered to the named
// category. An unknown category yields zero, not an error.
func (s *AggregationService) CategoryWeeklyTotal(ctx context.Context, chatID int64, name string) (decimal.Decimal, error) {
	key := fmt.Sprintf("weekly_cat:%d:%s", chatID, core.NormalizeCategoryName(name))
	return s.cachedTotal(ctx, key, ttlCategory, func(ctx context.Context) (decimal.Decimal, error) {
		now := s.now().UTC()
		return s.store.SumExpensesByCategory(ctx, chatID, now.AddDate(0, 0, -7), now, name)
	})
}

// CategoryMonthlyTotal is the rolling monthly sum filtered to the named
// category.
func (s *AggregationService) CategoryMonthlyTotal(ctx context.Context, chatID int64, name string) (decimal.Decimal, error) {
	key := fmt.Sprintf("monthly_cat:%d:%s", chatID, core.NormalizeCategoryName(name))
	return s.cachedTotal(ctx, key, ttlCategory, func(ctx context.Context) (decimal.Decimal, error) {
		now := s.now().UTC()
		return s.store.SumExpensesByCategory(ctx, chatID, now.AddDate(0, -1, 0), now, name)
	})
}

// CategoriesList returns the chat's categories as one comma-joined line,
// empty string when the chat has none.
func (s *AggregationService) CategoriesList(ctx context.Context, chatID int64) (string, error) {
	key := fmt.Sprintf("my_categories:%d", chatID)
	return s.cachedString(ctx, key, ttlCategoryList, func(ctx context.Context) (string, error) {
		names, err := s.store.ListCategories(ctx, chatID)
		if err != nil {
			return "", err
		}
		return strings.Join(names, ", "), nil
	})
}

// MonthlyStatistics composes the current-vs-previous calendar month
// narrative: total delta first, then a line per category present in either
// month. Categories with no spend in both months are omitted.
func (s *AggregationService) MonthlyStatistics(ctx context.Context, chatID int64) (string, error) {
	key := fmt.Sprintf("stats:%d", chatID)
	return s.cachedString(ctx, key, ttlStatistics, func(ctx context.Context) (string, error) {
		return s.buildStatistics(ctx, chatID)
	})
}

func (s *AggregationService) buildStatistics(ctx context.Context, chatID int64) (string, error) {
	curFrom, curTo := s.calendarMonthWindow(0)
	prevFrom, prevTo := s.calendarMonthWindow(-1)

	currentTotal, err := s.store.SumExpenses(ctx, chatID, curFrom, curTo)
	if err != nil {
		return "", fmt.Errorf("current month total: %w", err)
	}
	previousTotal, err := s.store.SumExpenses(ctx, chatID, prevFrom, prevTo)
	if err != nil {
		return "", fmt.Errorf("previous month total: %w", err)
	}
	currentByCat, err := s.store.CategoryTotals(ctx, chatID, curFrom, curTo)
	if err != nil {
		return "", fmt.Errorf("current month categories: %w", err)
	}
	previousByCat, err := s.store.CategoryTotals(ctx, chatID, prevFrom, prevTo)
	if err != nil {
		return "", fmt.Errorf("previous month categories: %w", err)
	}

	var sb strings.Builder

	if previousTotal.IsZero() {
		fmt.Fprintf(&sb, "📊 This month you have spent: %s€\n", core.FormatAmount(currentTotal))
	} else {
		pct, trend := percentDelta(currentTotal, previousTotal)
		fmt.Fprintf(&sb, "📊 This month you spent %s%% %s than the last one!\n", pct, trend)
	}
	sb.WriteString("\n")

	for _, category := range unionCategories(currentByCat, previousByCat) {
		current := currentByCat[category]
		previous := previousByCat[category]
		label := category
		if label == "" {
			label = uncategorizedLabel
		}

		switch {
		case previous.IsZero() && current.IsZero():
			// absent from both months
		case previous.IsZero():
			fmt.Fprintf(&sb, "💰 Spent on %s this month: %s€\n", label, core.FormatAmount(current))
		case current.IsZero():
			fmt.Fprintf(&sb, "💤 No spending on %s this month\n", label)
		default:
			pct, trend := percentDelta(current, previous)
			fmt.Fprintf(&sb, "📌 On %s you spent %s%% %s this month\n", label, pct, trend)
		}
	}

	return sb.String(), nil
}

// RecentExpensesFormatted renders the chat's most recent count expenses,
// newest first, or a fixed notice when the chat has none.
func (s *AggregationService) RecentExpensesFormatted(ctx context.Context, chatID int64, count int) (string, error) {
	if count <= 0 || count > 100 {
		return "", core.ErrCountOutOfRange
	}

	key := fmt.Sprintf("recent:%d:%d", chatID, count)
	return s.cachedString(ctx, key, ttlRecent, func(ctx context.Context) (string, error) {
		expenses, err := s.store.ListRecentExpenses(ctx, chatID, count)
		if err != nil {
			return "", err
		}
		if len(expenses) == 0 {
			return "No expense data yet", nil
		}

		var sb strings.Builder
		for _, e := range expenses {
			content := e.Content
			if content == "" {
				content = "not specified"
			}
			category := e.Category
			if category == "" {
				category = "not specified"
			}
			fmt.Fprintf(&sb, "Amount: %s€\n", core.FormatAmount(e.Amount))
			fmt.Fprintf(&sb, "Description: %s\n", content)
			fmt.Fprintf(&sb, "Category: %s\n", category)
			fmt.Fprintf(&sb, "Added: %s\n", e.CreatedAt.Local().Format("15:04, 02 January 2006"))
			sb.WriteString("--------------------------------------\n")
		}
		return sb.String(), nil
	})
}

// cachedTotal runs the cache-aside protocol for a decimal-valued metric.
func (s *AggregationService) cachedTotal(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	serialized, err := s.cachedString(ctx, key, ttl, func(ctx context.Context) (string, error) {
		total, err := compute(ctx)
		if err != nil {
			return "", err
		}
		return total.String(), nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	total, err := decimal.NewFromString(serialized)
	if err != nil {
		// A corrupt entry behaves like a miss: drop it and recompute.
		slog.WarnContext(ctx, "Dropping corrupt cache entry", "cache_key", key, "error", err)
		s.cache.Delete(key)
		return compute(ctx)
	}
	return total, nil
}

// cachedString probes the cache, and on a miss computes through
// singleflight so concurrent same-key reads share one store query.
func (s *AggregationService) cachedString(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (string, error)) (string, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, nil
	}

	value, err, _ := s.group.Do(key, func() (any, error) {
		// Re-probe: another flight may have populated the key.
		if value, ok := s.cache.Get(key); ok {
			return value, nil
		}
		value, err := compute(ctx)
		if err != nil {
			return "", err
		}
		s.cache.Set(key, value, ttl)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// calendarMonthWindow returns the inclusive bounds of the calendar month
// offset from now, in UTC.
func (s *AggregationService) calendarMonthWindow(offsetMonths int) (time.Time, time.Time) {
	now := s.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, offsetMonths, 0)
	last := first.AddDate(0, 1, 0).Add(-time.Second)
	return first, last
}

func percentDelta(current, previous decimal.Decimal) (string, string) {
	difference := current.Sub(previous)
	percent := difference.Div(previous).Mul(decimal.NewFromInt(100)).Round(2).Abs()
	trend := "more"
	if difference.IsNegative() {
		trend = "less"
	}
	return percent.String(), trend
}

func unionCategories(current, previous map[string]decimal.Decimal) []string {
	seen := make(map[string]struct{}, len(current)+len(previous))
	for name := range current {
		seen[name] = struct{}{}
	}
	for name := range previous {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
