package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/memory"
)

func btn(text, action string) Button {
	return Button{Text: text, Action: action}
}

func btnData(text, action, data string) Button {
	return Button{Text: text, Action: action, Data: data}
}

func (e *Engine) reply(s *domain.DialogSession, text string, buttons ...Button) Response {
	return Response{Message: text, Buttons: buttons, State: s.State}
}

func mainMenuButtons() []Button {
	return []Button{
		btn("➕ Новая сделка", ActionCreateDeal),
		btn("🔍 Найти сделку", ActionSearchDeals),
		btn("📋 Мои задачи", ActionTaskList),
		btn("🔥 Что срочно", ActionTaskBriefing),
		btn("❓ Помощь", ActionHelp),
	}
}

func (e *Engine) greeting(s *domain.DialogSession, mem *memory.Memory) Response {
	s.State = domain.StateIdle
	var sb strings.Builder
	sb.WriteString("👋 Привет! Я помощник по сделкам и задачам фабрики.\n")
	if sugg := mem.Suggestions(); len(sugg) > 0 {
		sb.WriteString("\nМогу продолжить с того места:\n")
		for _, sg := range sugg {
			sb.WriteString("• " + sg + "\n")
		}
	}
	sb.WriteString("\nВыберите действие или напишите, что нужно.")
	return e.reply(s, sb.String(), mainMenuButtons()...)
}

func (e *Engine) help(s *domain.DialogSession) Response {
	text := "❓ Вот что я умею:\n\n" +
		"• «создай сделку для Иванова» — новая сделка\n" +
		"• «#275» или «найди сделку Петрова» — поиск\n" +
		"• «переведи её этап на производство» — смена этапа\n" +
		"• «что срочно сегодня» — брифинг по задачам\n" +
		"• «создай задачу позвонить клиенту завтра»\n" +
		"• «перенеси все сделки на этап доставка»\n\n" +
		"В любой момент: «отмена»."
	return e.reply(s, text, mainMenuButtons()...)
}

func (e *Engine) cancelFlow(s *domain.DialogSession, mem *memory.Memory) Response {
	s.ResetFlow()
	mem.ResetFocus()
	return e.reply(s, "Хорошо, отменил. Чем займемся дальше?", mainMenuButtons()...)
}

// fallback is the context-appropriate default for unrecognized input:
// the engine is never allowed to answer with nothing.
func (e *Engine) fallback(s *domain.DialogSession, mem *memory.Memory) Response {
	switch s.State {
	case domain.StateDealClient, domain.StateDealProduct, domain.StateDealQuantity, domain.StateDealStage:
		return e.reply(s, "Не разобрал. Можете ответить текстом, пропустить шаг или отменить создание.",
			btn("⏭ Пропустить", ActionSkip), btn("✖️ Отмена", ActionCancel))
	case domain.StateDealSearch, domain.StateDealSearchResult:
		return e.reply(s, "Не разобрал запрос. Введите номер сделки (№275) или имя клиента.",
			btn("🔁 Искать снова", ActionSearchDeals), btn("✖️ Отмена", ActionCancel))
	case domain.StateDealView, domain.StateDealEditSelect, domain.StateDealEditField:
		return e.reply(s, "Не разобрал. Выберите поле для изменения или вернитесь в меню.",
			btn("✏️ Изменить", ActionDealEdit), btn("🏠 В меню", ActionCancel))
	default:
		var sb strings.Builder
		sb.WriteString("🤔 Не понял. Вот что можно сделать:")
		if sugg := mem.Suggestions(); len(sugg) > 0 {
			sb.WriteString("\n")
			for _, sg := range sugg {
				sb.WriteString("\n• " + sg)
			}
		}
		return e.reply(s, sb.String(), mainMenuButtons()...)
	}
}

// oops renders an adapter failure with a retry affordance; the session
// is left wherever the caller rolled it back to.
func (e *Engine) oops(s *domain.DialogSession, retryAction string) Response {
	return e.reply(s, "😔 Что-то пошло не так. Попробуйте еще раз.",
		btn("🔁 Повторить", retryAction), btn("🏠 В меню", ActionCancel))
}

// stageName resolves a stage key to its display name, falling back to
// the key itself when the list is unavailable.
func (e *Engine) stageName(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	stages, err := e.stages.ListStages(ctx)
	if err != nil {
		return key
	}
	for _, st := range stages {
		if st.Key == key {
			return st.Name
		}
	}
	return key
}

// renderDeal builds the full deal card.
func (e *Engine) renderDeal(ctx context.Context, d *domain.Deal) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📦 Сделка №%d\n\n", d.ID))
	for _, f := range DealFields {
		sb.WriteString(fmt.Sprintf("%s: %s\n", f.Label, f.Display(d, func(k string) string {
			return e.stageName(ctx, k)
		})))
	}
	return sb.String()
}

func dealSummaryLine(d domain.Deal) string {
	title := d.Product
	if title == "" {
		title = "без изделия"
	}
	return fmt.Sprintf("№%d · %s · %s", d.ID, dash(d.ClientName), title)
}
