package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/memory"
	"github.com/vkarpekin/mebelbot/internal/nlp"
)

// startEdit resolves which deal to edit and drops into field selection.
// Resolution order: explicit order number, the deal already open in the
// session, the remembered last deal (with a confirmation step), and
// only then a search prompt.
func (e *Engine) startEdit(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent) Response {
	field := intent.Get("field")
	if field == "stage" {
		field = "stage_key"
	}

	if num := intent.Get("order_number"); num != "" {
		id, err := strconv.ParseInt(num, 10, 64)
		if err == nil {
			if resp, ok := e.loadDealForEdit(ctx, s, mem, id); !ok {
				return resp
			}
			return e.editContinue(ctx, s, mem, field, intent)
		}
	}
	if s.CurrentDeal != nil {
		if resp, ok := e.loadDealForEdit(ctx, s, mem, s.CurrentDeal.ID); !ok {
			return resp
		}
		return e.editContinue(ctx, s, mem, field, intent)
	}
	if last := mem.LastDeal(); last != nil {
		return e.askContextDeal(s, *last, "edit:"+field)
	}
	s.State = domain.StateDealSearch
	return e.reply(s, "✏️ Какую сделку меняем? Введите номер заказа или имя клиента.",
		btn("✖️ Отмена", ActionCancel))
}

// editContinue picks up after the target deal is loaded. A stage named
// right in the command ("переведи на производство") goes straight to
// the old→new confirmation.
func (e *Engine) editContinue(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, field string, intent *domain.ParsedIntent) Response {
	if field == "stage_key" {
		if name := intent.Get("stage"); name != "" {
			if key, ok := e.resolveStageByName(ctx, name); ok {
				s.EditField = "stage_key"
				return e.stageChosen(ctx, s, mem, key)
			}
		}
		return e.promptEditField(ctx, s, mem, "stage_key")
	}
	if field != "" {
		return e.promptEditField(ctx, s, mem, field)
	}
	return e.editSelect(ctx, s, mem)
}

// loadDealForEdit fetches the deal and pins it as the session focus.
// ok=false means the returned response should be sent as-is.
func (e *Engine) loadDealForEdit(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, id int64) (Response, bool) {
	deal, err := e.deals.GetDealByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDealNotFound) {
			s.ResetFlow()
			return e.reply(s,
				fmt.Sprintf("🤷 Сделка №%d не найдена.", id),
				btn("🔍 Найти сделку", ActionSearchDeals), btn("🏠 В меню", ActionMainMenu)), false
		}
		slog.Error("get deal for edit", "error", err, "deal_id", id)
		return e.oops(s, ActionSearchDeals), false
	}
	s.CurrentDeal = deal
	mem.RememberDeal(memory.DealMention{ID: deal.ID, Title: deal.Product}, e.now())
	return Response{}, true
}

// editSelect shows the editable field catalogue.
func (e *Engine) editSelect(ctx context.Context, s *domain.DialogSession, mem *memory.Memory) Response {
	if s.CurrentDeal == nil {
		return e.startEdit(ctx, s, mem, &domain.ParsedIntent{Action: domain.ActionEdit})
	}
	s.State = domain.StateDealEditSelect
	buttons := make([]Button, 0, len(DealFields)+1)
	for _, f := range DealFields {
		buttons = append(buttons, btnData(f.Label, ActionEditField, f.Key))
	}
	buttons = append(buttons, btn("✖️ Отмена", ActionCancel))
	return e.reply(s,
		fmt.Sprintf("✏️ Сделка №%d. Что меняем?", s.CurrentDeal.ID), buttons...)
}

func (e *Engine) textDealEditSelect(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	labels := make([]string, len(DealFields))
	for i, f := range DealFields {
		labels[i] = f.Label
	}
	if i, ok := nlp.FuzzyContains(strings.TrimSpace(text), labels, config.FuzzyThreshold); ok {
		return e.promptEditField(ctx, s, mem, DealFields[i].Key)
	}
	return e.fallback(s, mem)
}

// promptEditField asks for the new value. Stage is a select field and
// gets the live stage list as buttons instead of a text prompt.
func (e *Engine) promptEditField(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, key string) Response {
	if s.CurrentDeal == nil {
		intent := &domain.ParsedIntent{Action: domain.ActionEdit}
		if key != "" {
			intent.Data = map[string]string{"field": key}
		}
		return e.startEdit(ctx, s, mem, intent)
	}
	field, ok := FieldByKey(key)
	if !ok {
		return e.fallback(s, mem)
	}
	s.EditField = field.Key
	s.PendingValue = ""

	if field.Kind == FieldSelect {
		stages, err := e.stages.ListStages(ctx)
		if err != nil {
			slog.Error("list stages", "error", err)
			return e.oops(s, ActionDealEdit)
		}
		s.State = domain.StateDealEditField
		buttons := make([]Button, 0, len(stages)+1)
		for _, st := range stages {
			if st.Key == s.CurrentDeal.StageKey {
				continue
			}
			buttons = append(buttons, btnData(st.Name, ActionStageSet, st.Key))
		}
		buttons = append(buttons, btn("✖️ Отмена", ActionCancel))
		return e.reply(s,
			fmt.Sprintf("📍 Сейчас этап «%s». На какой переводим?", e.stageName(ctx, s.CurrentDeal.StageKey)),
			buttons...)
	}

	s.State = domain.StateDealEditField
	current := field.Display(s.CurrentDeal, func(k string) string { return e.stageName(ctx, k) })
	return e.reply(s,
		fmt.Sprintf("Введите новое значение поля «%s» (сейчас: %s).", field.Label, current),
		btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) textDealEditField(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if s.CurrentDeal == nil {
		return e.fallback(s, mem)
	}
	field, ok := FieldByKey(s.EditField)
	if !ok {
		return e.fallback(s, mem)
	}
	if field.Kind == FieldSelect {
		// Typed stage names still work alongside the buttons.
		if key, ok := e.resolveStageByName(ctx, text); ok {
			return e.stageChosen(ctx, s, mem, key)
		}
		return e.reply(s, "Выберите этап кнопкой или напишите его название точнее.",
			btn("✖️ Отмена", ActionCancel))
	}
	_, display, err := field.Coerce(text, e.now())
	if err != nil {
		return e.reply(s, "⚠️ "+trimCoerceErr(err)+" Попробуйте еще раз.",
			btn("✖️ Отмена", ActionCancel))
	}
	s.PendingValue = text
	return e.editConfirmCard(ctx, s, field, display)
}

// trimCoerceErr strips the sentinel prefix, leaving the user-facing hint.
func trimCoerceErr(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	r := []rune(msg)
	if len(r) > 0 {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r) + "."
}

// editConfirmCard shows the old→new comparison before writing.
func (e *Engine) editConfirmCard(ctx context.Context, s *domain.DialogSession, field EditableField, newDisplay string) Response {
	old := field.Display(s.CurrentDeal, func(k string) string { return e.stageName(ctx, k) })
	s.State = domain.StateDealEditConfirm
	return e.reply(s,
		fmt.Sprintf("Сделка №%d, %s: %s → %s. Подтверждаете?",
			s.CurrentDeal.ID, field.Label, old, newDisplay),
		btn("✅ Да", ActionConfirm), btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) textDealEditConfirm(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if isYes(text) || intent.Action == domain.ActionConfirm {
		return e.applyEdit(ctx, s, mem)
	}
	if isNo(text) {
		// Back to the value prompt, draft discarded.
		return e.promptEditField(ctx, s, mem, s.EditField)
	}
	return e.reply(s, "Подтверждаете изменение?",
		btn("✅ Да", ActionConfirm), btn("✖️ Отмена", ActionCancel))
}

// stageChosen handles a stage pick from any flow that renders stage
// buttons: deal creation, stage editing and the bulk transfer prompt.
func (e *Engine) stageChosen(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, key string) Response {
	name := e.stageName(ctx, key)
	if name == key {
		// Unknown key still renders; validation happens at write time.
		slog.Warn("stage key without display name", "stage_key", key)
	}

	switch s.State {
	case domain.StateDealStage:
		if s.DraftDeal == nil {
			return e.fallback(s, mem)
		}
		s.DraftDeal.StageKey = key
		return e.dealConfirmCard(ctx, s)
	case domain.StateDealEditField, domain.StateDealView, domain.StateDealEditSelect:
		if s.CurrentDeal == nil {
			return e.fallback(s, mem)
		}
		field, _ := FieldByKey("stage_key")
		s.EditField = field.Key
		s.PendingValue = key
		return e.editConfirmCard(ctx, s, field, name)
	case domain.StateBulkConfirm:
		if s.BulkStageKey == "" {
			s.BulkStageKey = key
			return e.bulkRenderPreview(ctx, s)
		}
	}
	return e.fallback(s, mem)
}

// applyEdit writes the confirmed change. On adapter failure the session
// rolls back to the deal view so nothing half-applied lingers.
func (e *Engine) applyEdit(ctx context.Context, s *domain.DialogSession, mem *memory.Memory) Response {
	if s.CurrentDeal == nil || s.EditField == "" {
		return e.fallback(s, mem)
	}
	field, ok := FieldByKey(s.EditField)
	if !ok {
		return e.fallback(s, mem)
	}

	var value any
	if field.Kind == FieldSelect {
		value = s.PendingValue
	} else {
		v, _, err := field.Coerce(s.PendingValue, e.now())
		if err != nil {
			return e.promptEditField(ctx, s, mem, field.Key)
		}
		value = v
	}

	deal, err := e.deals.UpdateDeal(ctx, s.CurrentDeal.ID, map[string]any{field.Key: value})
	if err != nil {
		slog.Error("update deal", "error", err, "deal_id", s.CurrentDeal.ID, "field", field.Key)
		s.State = domain.StateDealView
		s.EditField = ""
		s.PendingValue = ""
		return e.oops(s, ActionDealEdit)
	}

	s.CurrentDeal = deal
	s.EditField = ""
	s.PendingValue = ""
	s.State = domain.StateDealView
	mem.RememberDeal(memory.DealMention{ID: deal.ID, Title: deal.Product}, e.now())
	mem.RecordAction(fmt.Sprintf("изменено поле «%s» сделки №%d", field.Label, deal.ID))

	return e.reply(s,
		fmt.Sprintf("✅ Обновил.\n\n%s", e.renderDeal(ctx, deal)),
		btnData("✏️ Изменить еще", ActionDealEdit, strconv.FormatInt(deal.ID, 10)),
		btn("🏠 В меню", ActionMainMenu))
}
