package bot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendbot/internal/core"
	"spendbot/internal/log"
	"spendbot/internal/services"
)

// Reply is one outbound chat message plus its keyboard directive. The
// transport decides how to render the keyboard; the controller stays
// transport-neutral.
type Reply struct {
	Text           string
	SkipKeyboard   bool // offer the one-time Skip button
	RemoveKeyboard bool // remove any custom keyboard
}

func text(s string) Reply { return Reply{Text: s} }

// Controller routes inbound chat text: active-flow input goes to the
// flow's step handler, command tokens cancel any active flow and start a
// new one or run a one-shot query, everything else gets a hint.
type Controller struct {
	states   *StateStore
	store    services.Store
	expenses *services.ExpenseService
	agg      *services.AggregationService
	limits   *services.LimitService
	logger   *log.Logger

	now    func() time.Time
	pick   func(n int) int
	isSkip func(text string) bool
}

func NewController(states *StateStore, store services.Store, expenses *services.ExpenseService, agg *services.AggregationService, limits *services.LimitService, logger *log.Logger) *Controller {
	return &Controller{
		states:   states,
		store:    store,
		expenses: expenses,
		agg:      agg,
		limits:   limits,
		logger:   logger.WithComponent(log.ComponentBot),
		now:      time.Now,
		pick:     rand.IntN,
		isSkip:   func(text string) bool { return strings.EqualFold(strings.TrimSpace(text), Skip) },
	}
}

// commands is the recognized token set. A message is a command only when
// it matches one of these exactly; prefixes or embedded tokens are plain
// flow input.
var commands = map[string]struct{}{
	"/start":     {},
	"/commands":  {},
	"/create":    {},
	"/weekly":    {},
	"/monthly":   {},
	"/newcat":    {},
	"/mycat":     {},
	"/weeklyc":   {},
	"/monthlyc":  {},
	"/days":      {},
	"/myexp":     {},
	"/setlimit":  {},
	"/clear":     {},
	"/statistic": {},
	"/tips":      {},
}

// HandleText processes one inbound message for a chat and returns the
// outbound replies. Messages of the same chat are serialized: the call
// holds the chat's lock until the state transition has fully completed.
func (c *Controller) HandleText(ctx context.Context, chatID int64, input string) []Reply {
	unlock := c.states.LockChat(chatID)
	defer unlock()

	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	if _, ok := commands[trimmed]; ok {
		var replies []Reply
		if state, active := c.states.Get(chatID); active {
			c.states.Clear(chatID)
			c.logger.InfoContext(ctx, "Flow cancelled by new command",
				log.FieldChatID, chatID, log.FieldFlow, state.Flow.String(), log.FieldCommand, trimmed)
			replies = append(replies, Reply{Text: msgFlowCancelled, RemoveKeyboard: true})
		}
		return append(replies, c.runCommand(ctx, chatID, trimmed)...)
	}

	if state, active := c.states.Get(chatID); active {
		return c.handleFlowInput(ctx, chatID, state, trimmed)
	}

	return []Reply{text(msgUnknownInput)}
}

func (c *Controller) runCommand(ctx context.Context, chatID int64, command string) []Reply {
	c.logger.DebugContext(ctx, "Dispatching command", log.FieldChatID, chatID, log.FieldCommand, command)

	switch command {
	case "/start":
		return []Reply{{Text: msgWelcome, RemoveKeyboard: true}}
	case "/commands":
		return []Reply{{Text: msgCommands, RemoveKeyboard: true}}

	case "/create":
		c.states.Set(chatID, State{Flow: FlowExpenseCreation, Step: StepAwaitingAmount})
		return []Reply{text(msgAskAmount)}
	case "/newcat":
		c.states.Set(chatID, State{Flow: FlowCategoryCreation, Step: 1})
		return []Reply{text(msgAskNewCategory)}
	case "/setlimit":
		c.states.Set(chatID, State{Flow: FlowLimitSet, Step: 1})
		return []Reply{{Text: msgAskLimit, RemoveKeyboard: true}}
	case "/weeklyc":
		c.states.Set(chatID, State{Flow: FlowWeeklyByCategory, Step: 1})
		return []Reply{{Text: msgAskCategory, RemoveKeyboard: true}}
	case "/monthlyc":
		c.states.Set(chatID, State{Flow: FlowMonthlyByCategory, Step: 1})
		return []Reply{{Text: msgAskCategory, RemoveKeyboard: true}}
	case "/days":
		c.states.Set(chatID, State{Flow: FlowCustomDays, Step: 1})
		return []Reply{{Text: msgAskDays, RemoveKeyboard: true}}
	case "/myexp":
		c.states.Set(chatID, State{Flow: FlowRecentExpenses, Step: 1})
		return []Reply{{Text: msgAskRecentCount, RemoveKeyboard: true}}

	case "/weekly":
		total, err := c.agg.WeeklyTotal(ctx, chatID)
		if err != nil {
			return c.storeFailure(ctx, chatID, err)
		}
		return []Reply{{Text: fmt.Sprintf("Spent over the last week: %s€", core.FormatAmount(total)), RemoveKeyboard: true}}
	case "/monthly":
		total, err := c.agg.MonthlyTotal(ctx, chatID)
		if err != nil {
			return c.storeFailure(ctx, chatID, err)
		}
		return []Reply{{Text: fmt.Sprintf("Spent over the last month: %s€", core.FormatAmount(total)), RemoveKeyboard: true}}
	case "/statistic":
		stats, err := c.agg.MonthlyStatistics(ctx, chatID)
		if err != nil {
			return c.storeFailure(ctx, chatID, err)
		}
		return []Reply{{Text: stats, RemoveKeyboard: true}}
	case "/mycat":
		list, err := c.agg.CategoriesList(ctx, chatID)
		if err != nil {
			return c.storeFailure(ctx, chatID, err)
		}
		if list == "" {
			return []Reply{text(msgNoCategories)}
		}
		return []Reply{text("Your categories: " + list)}
	case "/clear":
		existed, err := c.store.ClearLimit(ctx, chatID)
		if err != nil {
			return c.storeFailure(ctx, chatID, err)
		}
		if existed {
			return []Reply{{Text: msgLimitCleared, RemoveKeyboard: true}}
		}
		return []Reply{{Text: msgNoLimitSet, RemoveKeyboard: true}}
	case "/tips":
		return []Reply{{Text: tips[c.pick(len(tips))], RemoveKeyboard: true}}
	}

	return []Reply{text(msgUnknownInput)}
}

func (c *Controller) handleFlowInput(ctx context.Context, chatID int64, state State, input string) []Reply {
	switch state.Flow {
	case FlowExpenseCreation:
		return c.handleExpenseStep(ctx, chatID, state, input)
	case FlowCategoryCreation:
		return c.handleNewCategory(ctx, chatID, input)
	case FlowLimitSet:
		return c.handleSetLimit(ctx, chatID, input)
	case FlowWeeklyByCategory, FlowMonthlyByCategory:
		return c.handleCategoryQuery(ctx, chatID, state.Flow, input)
	case FlowCustomDays:
		return c.handleCustomDays(ctx, chatID, input)
	case FlowRecentExpenses:
		return c.handleRecentExpenses(ctx, chatID, input)
	}

	// Unknown flow kind in the store: the state is stale, drop it.
	c.logger.WarnContext(ctx, "Discarding state with unknown flow",
		log.FieldChatID, chatID, log.FieldFlow, state.Flow.String())
	c.states.Clear(chatID)
	return []Reply{text(msgUnknownInput)}
}

func (c *Controller) handleExpenseStep(ctx context.Context, chatID int64, state State, input string) []Reply {
	switch state.Step {
	case StepAwaitingAmount:
		amount, err := core.ParseAmount(input)
		if err != nil {
			return []Reply{text(msgBadAmount)}
		}
		state.Amount = amount
		state.Step = StepAwaitingDescription
		c.states.Set(chatID, state)
		return []Reply{{Text: msgAskDescription, SkipKeyboard: true}}

	case StepAwaitingDescription:
		if c.isSkip(input) {
			state.Description = "not specified"
		} else {
			state.Description = input
		}
		state.Step = StepAwaitingCategory
		c.states.Set(chatID, state)
		ack := msgDescriptionSaved
		if c.isSkip(input) {
			ack = msgDescriptionSkipped
		}
		return []Reply{
			{Text: ack, RemoveKeyboard: true},
			{Text: msgAskCategory, SkipKeyboard: true},
		}

	case StepAwaitingCategory:
		if c.isSkip(input) {
			replies := []Reply{{Text: msgCategorySkipped, RemoveKeyboard: true}}
			return append(replies, c.commitExpense(ctx, chatID, state, "")...)
		}

		exists, err := c.store.CategoryExists(ctx, chatID, input)
		if err != nil {
			return c.storeFailure(ctx, chatID, err)
		}
		if !exists {
			// Unmatched name re-prompts without consuming the step.
			return []Reply{text(msgUnknownCategory)}
		}

		canonical, err := c.store.ResolveCategoryName(ctx, chatID, input)
		if err != nil {
			return c.storeFailure(ctx, chatID, err)
		}
		replies := []Reply{{Text: msgCategorySaved, RemoveKeyboard: true}}
		return append(replies, c.commitExpense(ctx, chatID, state, canonical)...)
	}

	c.states.Clear(chatID)
	return []Reply{text(msgUnknownInput)}
}

// commitExpense persists the collected expense, clears the flow state and
// runs the limit check. State is cleared only after the write succeeds so
// a failed commit stays retryable in place.
func (c *Controller) commitExpense(ctx context.Context, chatID int64, state State, category string) []Reply {
	expense := core.NewExpense(chatID, state.Amount, state.Description, category, c.now())
	if err := c.expenses.CreateExpense(ctx, expense); err != nil {
		return c.storeFailure(ctx, chatID, err)
	}

	c.states.Clear(chatID)
	c.logger.InfoContext(ctx, "Expense committed",
		log.FieldChatID, chatID,
		log.FieldExpenseID, expense.ID,
		log.FieldAmountCents, core.Cents(expense.Amount),
		log.FieldCategory, category)

	replies := []Reply{text(msgExpenseAdded)}

	check, err := c.limits.CheckAfterExpense(ctx, chatID, state.Amount)
	if err != nil {
		// The expense is committed; a failed limit check only costs the
		// warning message.
		c.logger.ErrorContext(ctx, "Limit check failed", log.FieldChatID, chatID, log.FieldError, err)
		return replies
	}

	switch {
	case !check.HasLimit:
	case check.LimitExceeded:
		replies = append(replies, text(msgLimitExceeded))
	case check.WarningNeeded:
		variants := warningVariants(check.CurrentLimit, check.CurrentSpent)
		replies = append(replies, text(variants[c.pick(len(variants))]))
	}

	return replies
}

func (c *Controller) handleNewCategory(ctx context.Context, chatID int64, input string) []Reply {
	name := strings.TrimSpace(input)
	if core.NormalizeCategoryName(name) == "" {
		return []Reply{text(msgEmptyCategoryName)}
	}

	exists, err := c.store.CategoryExists(ctx, chatID, name)
	if err != nil {
		return c.storeFailure(ctx, chatID, err)
	}
	if exists {
		return []Reply{text(msgCategoryExists)}
	}

	if err := c.store.CreateCategory(ctx, core.NewCategory(chatID, name)); err != nil {
		return c.storeFailure(ctx, chatID, err)
	}

	c.states.Clear(chatID)
	return []Reply{text(msgCategoryAdded)}
}

func (c *Controller) handleSetLimit(ctx context.Context, chatID int64, input string) []Reply {
	amount, err := core.ParseAmount(input)
	if err != nil {
		return []Reply{text(msgBadLimit)}
	}

	if err := c.store.SetLimit(ctx, chatID, amount); err != nil {
		return c.storeFailure(ctx, chatID, err)
	}

	c.states.Clear(chatID)
	return []Reply{text(fmt.Sprintf("✅ Limit set: %s€", core.FormatAmount(amount)))}
}

func (c *Controller) handleCategoryQuery(ctx context.Context, chatID int64, flow FlowKind, input string) []Reply {
	exists, err := c.store.CategoryExists(ctx, chatID, input)
	if err != nil {
		return c.storeFailure(ctx, chatID, err)
	}
	if !exists {
		return []Reply{text(msgUnknownCategory)}
	}

	var (
		total  decimal.Decimal
		window string
	)
	if flow == FlowWeeklyByCategory {
		total, err = c.agg.CategoryWeeklyTotal(ctx, chatID, input)
		window = "week"
	} else {
		total, err = c.agg.CategoryMonthlyTotal(ctx, chatID, input)
		window = "month"
	}
	if err != nil {
		return c.storeFailure(ctx, chatID, err)
	}

	c.states.Clear(chatID)
	return []Reply{text(fmt.Sprintf("Spent on %s over the last %s: %s€", strings.TrimSpace(input), window, core.FormatAmount(total)))}
}

func (c *Controller) handleCustomDays(ctx context.Context, chatID int64, input string) []Reply {
	days, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || days <= 0 {
		return []Reply{text(msgBadDays)}
	}

	total, err := c.agg.CustomDaysTotal(ctx, chatID, days)
	if err != nil {
		return c.storeFailure(ctx, chatID, err)
	}

	c.states.Clear(chatID)
	return []Reply{text(fmt.Sprintf("Spent over the last %d days: %s€", days, core.FormatAmount(total)))}
}

func (c *Controller) handleRecentExpenses(ctx context.Context, chatID int64, input string) []Reply {
	count, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return []Reply{text(msgBadRecentCount)}
	}
	// Out-of-range keeps the state so the user can retry in place.
	if count > 100 {
		return []Reply{text(msgCountTooHigh)}
	}
	if count <= 0 {
		return []Reply{text(msgCountTooLow)}
	}

	formatted, err := c.agg.RecentExpensesFormatted(ctx, chatID, count)
	if err != nil {
		return c.storeFailure(ctx, chatID, err)
	}

	c.states.Clear(chatID)
	return []Reply{text(formatted)}
}

// storeFailure logs a store/cache error and apologizes without touching
// the chat's state, so the same step can be retried.
func (c *Controller) storeFailure(ctx context.Context, chatID int64, err error) []Reply {
	c.logger.ErrorContext(ctx, "Store operation failed", log.FieldChatID, chatID, log.FieldError, err)
	return []Reply{text(msgStoreUnavailable)}
}
