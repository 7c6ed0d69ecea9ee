package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseCreatedMessage announces a committed expense to downstream
// consumers (reporting, plotting). It carries only identifiers and cents;
// consumers fetch anything else from the store.
type ExpenseCreatedMessage struct {
	ExpenseID   string    `json:"expense_id"`
	ChatID      int64     `json:"chat_id"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseCreatedMessage creates an event for a freshly committed expense
func NewExpenseCreatedMessage(expenseID string, chatID, amountCents int64, category string) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		ExpenseID:   expenseID,
		ChatID:      chatID,
		AmountCents: amountCents,
		Category:    category,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON creates a message from JSON bytes
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
