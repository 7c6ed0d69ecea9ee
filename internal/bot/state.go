package bot

import (
	"sync"

	"github.com/shopspring/decimal"
)

// FlowKind tags the multi-step interaction a chat is currently inside.
type FlowKind int

const (
	FlowNone FlowKind = iota
	FlowExpenseCreation
	FlowCategoryCreation
	FlowLimitSet
	FlowWeeklyByCategory
	FlowMonthlyByCategory
	FlowCustomDays
	FlowRecentExpenses
)

func (k FlowKind) String() string {
	switch k {
	case FlowExpenseCreation:
		return "expense_creation"
	case FlowCategoryCreation:
		return "category_creation"
	case FlowLimitSet:
		return "limit_set"
	case FlowWeeklyByCategory:
		return "weekly_by_category"
	case FlowMonthlyByCategory:
		return "monthly_by_category"
	case FlowCustomDays:
		return "custom_days"
	case FlowRecentExpenses:
		return "recent_expenses"
	default:
		return "none"
	}
}

// Steps of the expense creation flow. Single-step flows are always at
// step 1.
const (
	StepAwaitingAmount      = 1
	StepAwaitingDescription = 2
	StepAwaitingCategory    = 3
)

// State is the in-flight flow for one chat: which flow, which step, and
// the fields collected so far. A chat holds at most one State at a time,
// whatever the flow kind.
type State struct {
	Flow        FlowKind
	Step        int
	Amount      decimal.Decimal
	Description string
}

// StateStore holds per-chat conversation state. It is process-local and
// unpersisted: a restart drops every in-flight flow and callers prompt
// from scratch. Access from different chats is concurrent; the per-chat
// lock from LockChat serializes messages of one chat.
type StateStore struct {
	mu     sync.RWMutex
	states map[int64]State

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[int64]State),
		locks:  make(map[int64]*sync.Mutex),
	}
}

// Set stores or replaces the chat's active flow state.
func (s *StateStore) Set(chatID int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = state
}

// Get returns the chat's active flow state, if any.
func (s *StateStore) Get(chatID int64) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[chatID]
	return state, ok
}

// Clear removes the chat's state. Clearing an absent chat is a no-op.
func (s *StateStore) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
}

// IsActive reports whether any flow is in progress for the chat.
func (s *StateStore) IsActive(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.states[chatID]
	return ok
}

// LockChat acquires the chat's serialization lock and returns its release
// function. Messages for one chat must be processed one at a time, each
// fully completing its state transition before the next begins.
func (s *StateStore) LockChat(chatID int64) func() {
	s.locksMu.Lock()
	lock, ok := s.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[chatID] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}
