// Package dialog implements the conversational engine: a per-user
// finite-state dialog session, the intent dispatch that drives it, and
// the response builder. The engine is transport-neutral; the Telegram
// layer only translates updates into Requests and Responses into
// messages with inline keyboards.
package dialog

import (
	"context"

	"github.com/vkarpekin/mebelbot/internal/domain"
)

// Request is one inbound turn. Exactly one of Message/Action is
// expected; Action carries a button press, with ActionData already
// serialized to text by the transport.
type Request struct {
	UserID     int64  `json:"userId"`
	Message    string `json:"message,omitempty"`
	Action     string `json:"action,omitempty"`
	ActionData string `json:"actionData,omitempty"`
}

// Button is a quick-reply offered with a response.
type Button struct {
	Text   string `json:"text"`
	Action string `json:"action"`
	Data   string `json:"data,omitempty"`
}

// Response is the rendered outcome of one turn. UsedAI is true exactly
// when the language-model fallback was consulted. Redirect, when set,
// tells the client to navigate to an in-app location instead of
// continuing the conversation.
type Response struct {
	Message  string             `json:"message"`
	Buttons  []Button           `json:"buttons,omitempty"`
	State    domain.DialogState `json:"state"`
	UsedAI   bool               `json:"usedAI"`
	Redirect string             `json:"redirect,omitempty"`
}

// DealAdapter is the contract the engine needs from the deal side of
// the CRM. Implementations live in internal/service.
type DealAdapter interface {
	SearchDeals(ctx context.Context, query string, page, pageSize int, filter *domain.DealFilter) ([]domain.Deal, int, error)
	GetDealByID(ctx context.Context, id int64) (*domain.Deal, error)
	CreateDeal(ctx context.Context, draft domain.DealDraft) (*domain.Deal, error)
	UpdateDeal(ctx context.Context, id int64, fields map[string]any) (*domain.Deal, error)
	DeleteDeal(ctx context.Context, id int64) error
	SearchClients(ctx context.Context, name string) ([]domain.Client, error)
	CountDealsNotInStage(ctx context.Context, stageKey string) (int, error)
	MoveAllToStage(ctx context.Context, stageKey string) (int, error)
	StageCounts(ctx context.Context) (map[string]int, error)
}

// TaskAdapter is the contract the engine needs from task persistence.
type TaskAdapter interface {
	CreateTask(ctx context.Context, draft domain.TaskDraft, userID int64) (*domain.Task, error)
	GetTaskByID(ctx context.Context, id int64) (*domain.Task, error)
	CompleteTask(ctx context.Context, id int64) (*domain.Task, error)
	GetMyTasks(ctx context.Context, userID int64) ([]domain.Task, error)
	GetUrgentTasks(ctx context.Context, userID int64) ([]domain.Task, error)
	GetTasksNeedingAttention(ctx context.Context, userID int64) (*domain.TaskAttention, error)
}

// StageProvider lists the configured production stages, in order.
type StageProvider interface {
	ListStages(ctx context.Context) ([]domain.Stage, error)
}

// IntentParser is the language-model collaborator. Implementations must
// fail soft: any failure comes back as an LLMParse with Type unknown,
// never as a panic or an error the engine has to handle.
type IntentParser interface {
	Parse(ctx context.Context, text string) domain.LLMParse
}
