package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldChatID      = "chat_id"
	FieldFlow        = "flow"
	FieldStep        = "step"
	FieldCommand     = "command"
	FieldMetric      = "metric"
	FieldCacheKey    = "cache_key"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldExpenseID   = "expense_id"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldSuccess     = "success"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentBot       = "bot"
	ComponentTelegram  = "telegram"
	ComponentExpense   = "expense"
	ComponentAggregate = "aggregate"
	ComponentLimit     = "limit"
	ComponentStorage   = "storage"
	ComponentCache     = "cache"
	ComponentAMQP      = "amqp"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpDelete   = "delete"
	OpList     = "list"
	OpDispatch = "dispatch"
	OpCancel   = "cancel"
	OpPublish  = "publish"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
