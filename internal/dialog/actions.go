package dialog

import (
	"context"
	"strconv"

	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/memory"
	"github.com/vkarpekin/mebelbot/internal/nlp"
)

// Button action names. A button press arrives as (action, data) and is
// dispatched here; after this point action handling and free-text
// handling share the state machine.
const (
	ActionMainMenu     = "main_menu"
	ActionCancel       = "cancel"
	ActionHelp         = "help"
	ActionReset        = "reset"
	ActionCreateDeal   = "create_deal"
	ActionModeText     = "mode_text"
	ActionModeSteps    = "mode_steps"
	ActionModeForm     = "mode_form"
	ActionSkip         = "skip"
	ActionConfirm      = "confirm"
	ActionSearchDeals  = "search_deals"
	ActionReport       = "report"
	ActionPage         = "page"       // data: page number
	ActionDealView     = "deal_view"  // data: deal id
	ActionDealEdit     = "deal_edit"  // data: deal id, optional
	ActionEditField    = "edit_field" // data: field key
	ActionStageSet     = "stage_set"  // data: stage key
	ActionClientNew    = "client_new"
	ActionClientPick   = "client_pick" // data: client name
	ActionCtxDealYes   = "ctx_deal_yes"
	ActionCtxDealNo    = "ctx_deal_no"
	ActionTaskBriefing = "task_briefing"
	ActionTaskList     = "task_list"
	ActionTaskCreate   = "task_create"
	ActionTaskView     = "task_view"     // data: task id
	ActionTaskDone     = "task_done"     // data: task id
	ActionTaskPriority = "task_priority" // data: low | medium | high

	// Quick deadline buttons in the task wizard.
	ActionSkipDeadlineToday    = "deadline_today"
	ActionSkipDeadlineTomorrow = "deadline_tomorrow"

	ActionBulkConfirm   = "bulk_confirm"   // data: preview token
	ActionDeleteAsk     = "delete_ask"     // data: deal id
	ActionDeleteConfirm = "delete_confirm" // data: deal id
)

// dispatchAction routes a button press. A payload that fails to parse
// as the expected structure falls back to being treated as plain text.
func (e *Engine) dispatchAction(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, action, data string) Response {
	switch action {
	case ActionMainMenu, ActionCancel:
		return e.cancelFlow(s, mem)
	case ActionHelp:
		return e.help(s)
	case ActionReset:
		s.ResetFlow()
		s.History = nil
		mem.Clear()
		return e.reply(s, "🔄 Диалог и контекст сброшены.", mainMenuButtons()...)

	case ActionCreateDeal:
		mem.RecordAction("создание сделки")
		return e.startDealCreate(ctx, s, mem, &domain.ParsedIntent{Action: domain.ActionCreate})
	case ActionModeText, ActionModeSteps, ActionModeForm:
		return e.chooseMode(ctx, s, mem, action)
	case ActionSkip:
		return e.skipStep(ctx, s, mem)
	case ActionConfirm:
		return e.confirmStep(ctx, s, mem)

	case ActionSearchDeals:
		s.State = domain.StateDealSearch
		return e.reply(s, "🔍 Введите номер сделки (№275), имя клиента или изделие.",
			btn("✖️ Отмена", ActionCancel))
	case ActionPage:
		page, err := strconv.Atoi(data)
		if err != nil {
			return e.textFallback(ctx, s, mem, data)
		}
		return e.searchResultsPage(ctx, s, mem, page)
	case ActionDealView:
		id, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			return e.textFallback(ctx, s, mem, data)
		}
		return e.showDeal(ctx, s, mem, id)
	case ActionDealEdit:
		if data != "" {
			if id, err := strconv.ParseInt(data, 10, 64); err == nil {
				if resp, ok := e.loadDealForEdit(ctx, s, mem, id); !ok {
					return resp
				}
			}
		}
		return e.editSelect(ctx, s, mem)
	case ActionEditField:
		return e.promptEditField(ctx, s, mem, data)
	case ActionStageSet:
		return e.stageChosen(ctx, s, mem, data)
	case ActionClientNew:
		return e.clientConfirmed(ctx, s, mem, false)
	case ActionClientPick:
		if data != "" && s.DraftDeal != nil {
			s.DraftDeal.ClientName = data
		}
		return e.clientConfirmed(ctx, s, mem, true)
	case ActionCtxDealYes:
		return e.contextDealResolved(ctx, s, mem, true)
	case ActionCtxDealNo:
		return e.contextDealResolved(ctx, s, mem, false)

	case ActionTaskBriefing:
		mem.RecordAction("брифинг задач")
		return e.taskBriefing(ctx, s, mem)
	case ActionTaskList:
		mem.RecordAction("список задач")
		return e.taskList(ctx, s)
	case ActionTaskCreate:
		mem.RecordAction("создание задачи")
		return e.startTaskCreate(ctx, s, mem, &domain.ParsedIntent{Action: domain.ActionTaskCreate})
	case ActionTaskView:
		id, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			return e.textFallback(ctx, s, mem, data)
		}
		return e.showTask(ctx, s, id)
	case ActionTaskDone:
		if data == "" {
			return e.taskCompletePrompt(ctx, s)
		}
		id, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			return e.textFallback(ctx, s, mem, data)
		}
		return e.completeTask(ctx, s, mem, id)
	case ActionTaskPriority:
		return e.taskPriorityChosen(ctx, s, mem, data)
	case ActionSkipDeadlineToday:
		return e.taskDeadlineShortcut(s, 0)
	case ActionSkipDeadlineTomorrow:
		return e.taskDeadlineShortcut(s, 1)

	case ActionReport:
		mem.RecordAction("отчет")
		return e.stageReport(ctx, s)
	case ActionBulkConfirm:
		return e.bulkExecute(ctx, s, mem, data)
	case ActionDeleteAsk:
		intent := &domain.ParsedIntent{Action: domain.ActionDelete}
		if data != "" {
			intent.Data = map[string]string{"order_number": data}
		}
		return e.startDelete(ctx, s, mem, intent)
	case ActionDeleteConfirm:
		id, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			return e.textFallback(ctx, s, mem, data)
		}
		return e.deleteDeal(ctx, s, mem, id)

	default:
		return e.fallback(s, mem)
	}
}

// textFallback treats an unparseable action payload as typed text so a
// malformed button never dead-ends the dialog.
func (e *Engine) textFallback(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, text string) Response {
	if text == "" {
		return e.fallback(s, mem)
	}
	intent := nlp.Classify(text, s)
	if textConsumingStates[s.State] {
		if h, ok := stateHandlers[s.State]; ok {
			return h(e, ctx, s, mem, intent, text)
		}
	}
	return e.handleIntent(ctx, s, mem, intent, text)
}
