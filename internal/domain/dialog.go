package domain

import "time"

// DialogState is where the user currently is in the conversation tree.
type DialogState string

const (
	StateIdle DialogState = "idle"

	// Deal creation branch.
	StateModeSelect         DialogState = "mode_select"
	StateDealClient         DialogState = "deal_client"
	StateDealClientConfirm  DialogState = "deal_client_confirm"
	StateDealProduct        DialogState = "deal_product"
	StateDealProductConfirm DialogState = "deal_product_confirm"
	StateDealQuantity       DialogState = "deal_quantity"
	StateDealStage          DialogState = "deal_stage"
	StateDealConfirm        DialogState = "deal_confirm"

	// Deal lookup / edit branch.
	StateDealSearch       DialogState = "deal_search"
	StateDealSearchResult DialogState = "deal_search_result"
	StateDealView         DialogState = "deal_view"
	StateDealEditSelect   DialogState = "deal_edit_select"
	StateDealEditField    DialogState = "deal_edit_field"
	StateDealEditConfirm  DialogState = "deal_edit_confirm"
	StateNeedDealContext  DialogState = "need_deal_context"

	// Task branch.
	StateTaskBriefing       DialogState = "task_briefing"
	StateTaskList           DialogState = "task_list"
	StateTaskView           DialogState = "task_view"
	StateTaskCreateTitle    DialogState = "task_create_title"
	StateTaskCreateDeadline DialogState = "task_create_deadline"
	StateTaskCreatePriority DialogState = "task_create_priority"
	StateTaskCompleteSelect DialogState = "task_complete_select"

	// Bulk operations.
	StateBulkConfirm DialogState = "bulk_confirm"
)

// AllDialogStates lists every state; used by tests and by the
// unrecognized-input fallback table.
var AllDialogStates = []DialogState{
	StateIdle,
	StateModeSelect, StateDealClient, StateDealClientConfirm,
	StateDealProduct, StateDealProductConfirm, StateDealQuantity,
	StateDealStage, StateDealConfirm,
	StateDealSearch, StateDealSearchResult, StateDealView,
	StateDealEditSelect, StateDealEditField, StateDealEditConfirm,
	StateNeedDealContext,
	StateTaskBriefing, StateTaskList, StateTaskView,
	StateTaskCreateTitle, StateTaskCreateDeadline, StateTaskCreatePriority,
	StateTaskCompleteSelect,
	StateBulkConfirm,
}

// DialogMode is how the user prefers to fill in a new deal.
type DialogMode string

const (
	ModeNone  DialogMode = "none"
	ModeText  DialogMode = "text"
	ModeSteps DialogMode = "steps"
	ModeForm  DialogMode = "form"
)

// HistoryEntry is one line of the bounded per-session message log.
type HistoryEntry struct {
	Role string    `json:"role"` // user | bot
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// DialogSession is the per-user dialog state. It is mutated exclusively
// by the state machine and persisted between messages by a SessionStore.
type DialogSession struct {
	UserID int64       `json:"user_id"`
	State  DialogState `json:"state"`
	Mode   DialogMode  `json:"mode"`

	DraftDeal *DealDraft `json:"draft_deal,omitempty"`
	DraftTask *TaskDraft `json:"draft_task,omitempty"`

	CurrentDeal *Deal  `json:"current_deal,omitempty"`
	CurrentTask *Task  `json:"current_task,omitempty"`
	EditField   string `json:"edit_field,omitempty"`
	// PendingValue holds a coerced edit value between the old→new
	// confirmation prompt and the confirm action.
	PendingValue string `json:"pending_value,omitempty"`

	SearchQuery   string `json:"search_query,omitempty"`
	SearchResults []Deal `json:"search_results,omitempty"`
	SearchTotal   int    `json:"search_total,omitempty"`
	Page          int    `json:"page,omitempty"`

	// Bulk preview: the confirm button carries BulkToken, and the
	// affected set is recomputed when it is pressed.
	BulkToken    string `json:"bulk_token,omitempty"`
	BulkStageKey string `json:"bulk_stage_key,omitempty"`

	History   []HistoryEntry `json:"history,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewDialogSession returns an idle session for the user.
func NewDialogSession(userID int64) *DialogSession {
	return &DialogSession{
		UserID: userID,
		State:  StateIdle,
		Mode:   ModeNone,
	}
}

// Remember appends a history entry, dropping the oldest beyond cap.
func (s *DialogSession) Remember(role, text string, at time.Time, cap int) {
	s.History = append(s.History, HistoryEntry{Role: role, Text: text, At: at})
	if len(s.History) > cap {
		s.History = s.History[len(s.History)-cap:]
	}
}

// ResetFlow drops all in-progress flow state but keeps history.
func (s *DialogSession) ResetFlow() {
	s.State = StateIdle
	s.Mode = ModeNone
	s.DraftDeal = nil
	s.DraftTask = nil
	s.CurrentTask = nil
	s.EditField = ""
	s.PendingValue = ""
	s.SearchQuery = ""
	s.SearchResults = nil
	s.SearchTotal = 0
	s.Page = 0
	s.BulkToken = ""
	s.BulkStageKey = ""
}
