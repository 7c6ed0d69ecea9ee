package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	// Expense is a single recorded spend for a chat. Category is the
	// linked category name, empty when the expense is uncategorized.
	Expense struct {
		ID        string
		ChatID    int64
		Amount    decimal.Decimal
		Content   string
		Category  string
		CreatedAt time.Time
	}

	// Category is a per-chat expense tag. Uniqueness is scoped to the
	// chat and checked on the normalized name.
	Category struct {
		ID     string
		ChatID int64
		Name   string
	}

	// MonthlyLimit is the at-most-one spending cap per chat.
	MonthlyLimit struct {
		ChatID    int64
		Amount    decimal.Decimal
		CreatedAt time.Time
	}

	// LimitCheckResult is the outcome of evaluating a candidate expense
	// against the chat's monthly limit. HasLimit is false when no limit
	// is configured; the flags must then be false too.
	LimitCheckResult struct {
		LimitExceeded bool
		WarningNeeded bool
		HasLimit      bool
		CurrentLimit  decimal.Decimal
		CurrentSpent  decimal.Decimal
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrDuplicateCategory = errors.New("category already exists")
	ErrEmptyCategoryName = errors.New("empty category name")
	ErrCountOutOfRange   = errors.New("count out of range")
	ErrNoLimit           = errors.New("no limit set")
)

// NewExpense builds an Expense with a fresh id and the write timestamp.
// CreatedAt is set once here and never mutated afterwards.
func NewExpense(chatID int64, amount decimal.Decimal, content, category string, now time.Time) Expense {
	return Expense{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Amount:    amount,
		Content:   content,
		Category:  category,
		CreatedAt: now.UTC(),
	}
}

func (e Expense) Validate() error {
	if e.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if e.ChatID == 0 {
		return errors.New("missing chat id")
	}
	return nil
}

// NormalizeCategoryName lowers the name and strips surrounding whitespace
// and commas. Both the uniqueness check on creation and the existence
// check on expense tagging compare normalized names.
func NormalizeCategoryName(name string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(name), ","))
}

// NewCategory builds a Category with a fresh id. Name keeps the casing
// the user typed; normalization only applies to comparisons.
func NewCategory(chatID int64, name string) Category {
	return Category{
		ID:     uuid.NewString(),
		ChatID: chatID,
		Name:   strings.TrimSpace(name),
	}
}

func (c Category) Validate() error {
	if NormalizeCategoryName(c.Name) == "" {
		return ErrEmptyCategoryName
	}
	if c.ChatID == 0 {
		return errors.New("missing chat id")
	}
	return nil
}
