package bot

import (
	"fmt"

	"github.com/shopspring/decimal"

	"spendbot/internal/core"
)

// Skip is the designated token that skips the description or category step
// of the expense creation flow.
const Skip = "Skip"

const (
	msgWelcome = "Hi! I'm a bot that keeps track of your spending.\n" +
		"Send /commands to see everything I can do."

	msgCommands = "Available commands:\n" +
		"/create - add an expense\n" +
		"/statistic - monthly statistics\n" +
		"/weekly - spending over the last week\n" +
		"/monthly - spending over the last month\n" +
		"/newcat - create an expense category\n" +
		"/mycat - list your categories\n" +
		"/weeklyc - weekly spending for one category\n" +
		"/monthlyc - monthly spending for one category\n" +
		"/days - spending over any number of days\n" +
		"/myexp - your most recent expenses\n" +
		"/setlimit - set a monthly spending limit\n" +
		"/clear - remove the limit\n" +
		"/tips - a money-saving tip"

	msgFlowCancelled = "❌ Previous command cancelled."

	msgAskAmount      = "Enter the expense amount:"
	msgAskDescription = "Enter a description for the expense (what, when, who for):"
	msgAskCategory    = "Enter the expense category:"
	msgBadAmount      = "That doesn't look like an amount, try again"

	msgDescriptionSaved   = "Description saved"
	msgDescriptionSkipped = "Description skipped"
	msgCategorySaved      = "Category saved"
	msgCategorySkipped    = "Category skipped"

	msgExpenseAdded  = "✅ Expense added!"
	msgLimitExceeded = "⚠ You've gone over your limit :("

	msgUnknownCategory = "That category isn't on your list.\n" +
		"Use /newcat to create it first."

	msgAskNewCategory    = "Enter the category name:"
	msgCategoryAdded     = "✅ Category added!"
	msgCategoryExists    = "A category with that name already exists."
	msgEmptyCategoryName = "The category name can't be empty, try again"
	msgNoCategories      = "You have no categories yet"

	msgAskLimit = "Enter the monthly spending limit you want to set:"
	msgBadLimit = "Invalid limit amount, try again"

	msgLimitCleared = "Limit cleared!"
	msgNoLimitSet   = "You have no limit set."

	msgAskDays = "Enter the number of days:"
	msgBadDays = "Enter a positive whole number of days"

	msgAskRecentCount = "How many recent expenses do you want to see? (no more than 100):"
	msgBadRecentCount = "Enter a whole number, try again"
	msgCountTooHigh   = "I did say no more than a hundred 😆"
	msgCountTooLow    = "You're asking for too few 😳"

	msgStoreUnavailable = "Something went wrong on my side, please try again"

	msgUnknownInput = "I don't know that one. Send /commands for the list."
)

// Warning variants shown when the current spend crosses 75% of the limit
// but stays below it. One is picked uniformly at random.
func warningVariants(limit, spent decimal.Decimal) []string {
	remaining := limit.Sub(spent)
	return []string{
		fmt.Sprintf("You're getting close to your limit! It's %s€, and you've already spent %s€ this month!😨", core.FormatAmount(limit), core.FormatAmount(spent)),
		fmt.Sprintf("Careful! You've passed 75%% of your limit (%s€ of %s€)🙀", core.FormatAmount(spent), core.FormatAmount(limit)),
		fmt.Sprintf("The limit is near! Only %s€ left before you hit it😱", core.FormatAmount(remaining)),
		"⚡The limit is within arm's reach! Ambition is great, but this might be the moment to slow down...🙅",
	}
}

var tips = []string{
	"Write down every expense, even the tiny ones - small leaks sink big budgets.",
	"Give every purchase over 50€ a 24-hour cooling-off period before buying.",
	"Set your monthly limit right after payday, not after the first splurge.",
	"Cook twice as much once instead of eating out twice.",
	"Review your subscriptions once a month - cancel the ones you forgot you had.",
	"Pay yourself first: move savings aside before spending anything else.",
	"Shop with a list and a full stomach.",
}
