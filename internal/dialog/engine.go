package dialog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/memory"
	"github.com/vkarpekin/mebelbot/internal/nlp"
)

// Deps contains everything the engine needs.
type Deps struct {
	Deals    DealAdapter
	Tasks    TaskAdapter
	Stages   StageProvider
	LLM      IntentParser
	Sessions SessionStore
	Contexts memory.Store

	// CRMBaseURL prefixes redirect locations (web form links).
	CRMBaseURL string

	// Now is swappable for tests.
	Now func() time.Time
}

// Engine processes one message or button press at a time per user. A
// turn runs to completion, including adapter and language-model calls,
// before its response is returned; there is no mid-transition
// suspension observable to the caller.
type Engine struct {
	deals    DealAdapter
	tasks    TaskAdapter
	stages   StageProvider
	llm      IntentParser
	sessions SessionStore
	contexts memory.Store

	crmBaseURL string
	now        func() time.Time
}

func New(deps Deps) *Engine {
	e := &Engine{
		deals:      deps.Deals,
		tasks:      deps.Tasks,
		stages:     deps.Stages,
		llm:        deps.LLM,
		sessions:   deps.Sessions,
		contexts:   deps.Contexts,
		crmBaseURL: deps.CRMBaseURL,
		now:        deps.Now,
	}
	if e.sessions == nil {
		e.sessions = NewMapSessionStore()
	}
	if e.contexts == nil {
		e.contexts = memory.NewMapStore()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// textConsumingStates are the states where free text is an answer to
// the current prompt, not a fresh command, so classification misses are
// handled locally instead of escalating to the language model.
var textConsumingStates = map[domain.DialogState]bool{
	domain.StateModeSelect:         true,
	domain.StateDealClient:         true,
	domain.StateDealClientConfirm:  true,
	domain.StateDealProduct:        true,
	domain.StateDealProductConfirm: true,
	domain.StateDealQuantity:       true,
	domain.StateDealStage:          true,
	domain.StateDealConfirm:        true,
	domain.StateDealSearch:         true,
	domain.StateDealSearchResult:   true,
	domain.StateDealEditSelect:     true,
	domain.StateDealEditField:      true,
	domain.StateDealEditConfirm:    true,
	domain.StateNeedDealContext:    true,
	domain.StateTaskCreateTitle:    true,
	domain.StateTaskCreateDeadline: true,
	domain.StateTaskCreatePriority: true,
	domain.StateTaskCompleteSelect: true,
	domain.StateBulkConfirm:        true,
}

// stateHandler consumes free text typed while the dialog sits in a
// particular state. The classified intent is passed along so handlers
// can honor overrides (cancel, confirm, number).
type stateHandler func(e *Engine, ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response

// stateHandlers is the transition table for text input, keyed by state.
var stateHandlers = map[domain.DialogState]stateHandler{
	domain.StateModeSelect:         (*Engine).textModeSelect,
	domain.StateDealClient:         (*Engine).textDealClient,
	domain.StateDealClientConfirm:  (*Engine).textDealClientConfirm,
	domain.StateDealProduct:        (*Engine).textDealProduct,
	domain.StateDealProductConfirm: (*Engine).textDealProductConfirm,
	domain.StateDealQuantity:       (*Engine).textDealQuantity,
	domain.StateDealStage:          (*Engine).textDealStage,
	domain.StateDealConfirm:        (*Engine).textDealConfirm,
	domain.StateDealSearch:         (*Engine).textDealSearch,
	domain.StateDealSearchResult:   (*Engine).textDealSearchResult,
	domain.StateDealEditSelect:     (*Engine).textDealEditSelect,
	domain.StateDealEditField:      (*Engine).textDealEditField,
	domain.StateDealEditConfirm:    (*Engine).textDealEditConfirm,
	domain.StateNeedDealContext:    (*Engine).textNeedDealContext,
	domain.StateTaskCreateTitle:    (*Engine).textTaskTitle,
	domain.StateTaskCreateDeadline: (*Engine).textTaskDeadline,
	domain.StateTaskCreatePriority: (*Engine).textTaskPriority,
	domain.StateTaskCompleteSelect: (*Engine).textTaskCompleteSelect,
	domain.StateBulkConfirm:        (*Engine).textBulkConfirm,
}

// Process handles one turn. Every branch terminates in a rendered
// response; engine faults degrade to an apologetic message, never to a
// panic crossing into the transport.
func (e *Engine) Process(ctx context.Context, req Request) Response {
	now := e.now()

	sess, err := e.sessions.Get(ctx, req.UserID)
	if err != nil {
		slog.Error("load session", "error", err, "user_id", req.UserID)
	}
	if sess == nil {
		sess = domain.NewDialogSession(req.UserID)
	}

	mem, err := memory.Touch(ctx, e.contexts, req.UserID, now)
	if err != nil {
		slog.Error("load context memory", "error", err, "user_id", req.UserID)
		mem = memory.New(req.UserID, now)
	}

	var resp Response
	if req.Action != "" {
		sess.Remember("user", "["+req.Action+"]", now, config.MaxHistoryEntries)
		resp = e.dispatchAction(ctx, sess, mem, req.Action, req.ActionData)
	} else {
		text := strings.TrimSpace(req.Message)
		sess.Remember("user", text, now, config.MaxHistoryEntries)
		resp = e.processText(ctx, sess, mem, text)
	}

	sess.UpdatedAt = now
	sess.Remember("bot", resp.Message, now, config.MaxHistoryEntries)
	resp.State = sess.State

	if err := e.sessions.Put(ctx, sess); err != nil {
		slog.Error("save session", "error", err, "user_id", req.UserID)
	}
	if err := e.contexts.Put(ctx, mem); err != nil {
		slog.Error("save context memory", "error", err, "user_id", req.UserID)
	}
	return resp
}

func (e *Engine) processText(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, text string) Response {
	intent := nlp.Classify(text, s)

	// Cancel wins everywhere.
	if intent.Action == domain.ActionCancel && intent.Confidence >= 90 {
		return e.cancelFlow(s, mem)
	}

	if textConsumingStates[s.State] {
		if h, ok := stateHandlers[s.State]; ok {
			return h(e, ctx, s, mem, intent, text)
		}
	}

	if intent.Confidence < config.MinLocalConfidence {
		parsed := e.llm.Parse(ctx, text)
		intent = llmToIntent(parsed)
		resp := e.handleIntent(ctx, s, mem, intent, text)
		resp.UsedAI = true
		return resp
	}

	return e.handleIntent(ctx, s, mem, intent, text)
}

// llmToIntent converts the language-model result into the same
// ParsedIntent shape local rules produce, so the state machine has one
// input regardless of origin.
func llmToIntent(p domain.LLMParse) *domain.ParsedIntent {
	data := map[string]string{}
	if p.ClientName != "" {
		data["client_name"] = p.ClientName
	}
	if p.ClientPhone != "" {
		data["client_phone"] = p.ClientPhone
	}
	if p.ProductName != "" {
		data["product"] = p.ProductName
	}
	if p.Quantity > 0 {
		data["quantity"] = strconv.Itoa(p.Quantity)
	}
	if p.Note != "" {
		data["note"] = p.Note
	}

	switch p.Type {
	case domain.LLMParseDeal:
		return &domain.ParsedIntent{
			Action: domain.ActionCreate, Target: domain.EntityDeal,
			Data: data, Confidence: 90,
		}
	case domain.LLMParseSearchClient:
		return &domain.ParsedIntent{
			Action: domain.ActionSearch, Target: domain.EntityDeal,
			Data: data, Confidence: 90,
		}
	case domain.LLMParseSearchProduct:
		return &domain.ParsedIntent{
			Action: domain.ActionSearch, Target: domain.EntityDeal,
			Data: data, Confidence: 90,
		}
	default:
		return &domain.ParsedIntent{Action: domain.ActionUnknown, Confidence: 0}
	}
}

// handleIntent dispatches a classified (or model-resolved) intent from
// a command position: idle, a view, or any other non-collecting state.
func (e *Engine) handleIntent(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	switch intent.Action {
	case domain.ActionGreeting:
		return e.greeting(s, mem)
	case domain.ActionHelp:
		return e.help(s)
	case domain.ActionCancel:
		return e.cancelFlow(s, mem)
	case domain.ActionCreate:
		mem.RecordAction("создание сделки")
		return e.startDealCreate(ctx, s, mem, intent)
	case domain.ActionSearch, domain.ActionNumber:
		mem.RecordAction("поиск сделки")
		return e.runDealSearch(ctx, s, mem, intent, text)
	case domain.ActionView:
		return e.viewWithContext(ctx, s, mem, intent)
	case domain.ActionEdit:
		mem.RecordAction("редактирование сделки")
		return e.startEdit(ctx, s, mem, intent)
	case domain.ActionDelete:
		return e.startDelete(ctx, s, mem, intent)
	case domain.ActionReport:
		mem.RecordAction("отчет")
		return e.stageReport(ctx, s)
	case domain.ActionBulk:
		mem.RecordAction("массовый перенос")
		return e.bulkPreview(ctx, s, mem, intent)
	case domain.ActionTaskBriefing:
		mem.RecordAction("брифинг задач")
		return e.taskBriefing(ctx, s, mem)
	case domain.ActionTaskList:
		mem.RecordAction("список задач")
		return e.taskList(ctx, s)
	case domain.ActionTaskCreate:
		mem.RecordAction("создание задачи")
		return e.startTaskCreate(ctx, s, mem, intent)
	case domain.ActionTaskComplete:
		return e.taskCompletePrompt(ctx, s)
	case domain.ActionTaskView:
		return e.taskList(ctx, s)
	case domain.ActionConfirm:
		// Nothing pending to confirm from a command position.
		return e.fallback(s, mem)
	default:
		return e.fallback(s, mem)
	}
}

// isSkip recognizes a typed skip ("пропусти") in stepwise flows; the
// same transition is reachable through the skip button.
func isSkip(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "пропусти" || t == "пропустить" || t == "далее" || t == "skip" || t == "-"
}

func isYes(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "да" || t == "ага" || t == "ок" || t == "окей" || t == "верно" || t == "подтверждаю" || t == "yes"
}

func isNo(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "нет" || t == "не" || t == "no"
}
