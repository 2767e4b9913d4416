package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/memory"
	"github.com/vkarpekin/mebelbot/internal/nlp"
)

// runDealSearch resolves a search: a recognized order number opens the
// deal directly, otherwise a text search over clients and products.
func (e *Engine) runDealSearch(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if num := intent.Get("order_number"); num != "" {
		id, err := strconv.ParseInt(num, 10, 64)
		if err == nil {
			return e.showDeal(ctx, s, mem, id)
		}
	}
	if id, ok := orderID(text); ok {
		return e.showDeal(ctx, s, mem, id)
	}

	query := intent.Get("client_name")
	if query == "" {
		query = intent.Get("product")
	}
	if query == "" {
		query = strings.TrimSpace(text)
	}
	if query == "" {
		s.State = domain.StateDealSearch
		return e.reply(s, "🔍 Что ищем? Номер заказа, имя клиента или изделие.",
			btn("✖️ Отмена", ActionCancel))
	}

	s.SearchQuery = query
	s.Page = 0
	return e.renderSearchPage(ctx, s, mem)
}

func (e *Engine) renderSearchPage(ctx context.Context, s *domain.DialogSession, mem *memory.Memory) Response {
	deals, total, err := e.deals.SearchDeals(ctx, s.SearchQuery, s.Page, config.DealsPerPage, nil)
	if err != nil {
		slog.Error("search deals", "error", err, "query", s.SearchQuery)
		return e.oops(s, ActionSearchDeals)
	}
	mem.RecordAction(fmt.Sprintf("поиск «%s»", s.SearchQuery))

	switch {
	case total == 0:
		s.ResetFlow()
		return e.reply(s,
			fmt.Sprintf("🤷 По запросу «%s» ничего не нашлось. Попробуйте номер заказа или фамилию клиента.", s.SearchQuery),
			btn("🔍 Искать еще", ActionSearchDeals), btn("🏠 В меню", ActionMainMenu))
	case total == 1 && len(deals) == 1:
		return e.showDeal(ctx, s, mem, deals[0].ID)
	}

	s.State = domain.StateDealSearchResult
	s.SearchResults = deals
	s.SearchTotal = total

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔍 Нашлось %d:\n\n", total))
	buttons := make([]Button, 0, len(deals)+3)
	for _, d := range deals {
		sb.WriteString(dealSummaryLine(d) + "\n")
		buttons = append(buttons, btnData(fmt.Sprintf("№%d", d.ID), ActionDealView, strconv.FormatInt(d.ID, 10)))
	}
	pages := (total + config.DealsPerPage - 1) / config.DealsPerPage
	if pages > 1 {
		sb.WriteString(fmt.Sprintf("\nСтраница %d из %d", s.Page+1, pages))
		if s.Page > 0 {
			buttons = append(buttons, btnData("⬅️", ActionPage, strconv.Itoa(s.Page-1)))
		}
		if s.Page < pages-1 {
			buttons = append(buttons, btnData("➡️", ActionPage, strconv.Itoa(s.Page+1)))
		}
	}
	buttons = append(buttons, btn("🏠 В меню", ActionMainMenu))
	return e.reply(s, sb.String(), buttons...)
}

func (e *Engine) searchResultsPage(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, page int) Response {
	if s.SearchQuery == "" {
		return e.fallback(s, mem)
	}
	if page < 0 {
		page = 0
	}
	s.Page = page
	return e.renderSearchPage(ctx, s, mem)
}

func (e *Engine) textDealSearch(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	return e.runDealSearch(ctx, s, mem, intent, text)
}

func (e *Engine) textDealSearchResult(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	// A bare number on the results page opens that deal.
	if id, ok := orderID(text); ok {
		return e.showDeal(ctx, s, mem, id)
	}
	return e.runDealSearch(ctx, s, mem, intent, text)
}

// showDeal opens the deal card and makes it the dialog focus.
func (e *Engine) showDeal(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, id int64) Response {
	deal, err := e.deals.GetDealByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDealNotFound) {
			s.ResetFlow()
			return e.reply(s,
				fmt.Sprintf("🤷 Сделка №%d не найдена. Проверьте номер.", id),
				btn("🔍 Искать еще", ActionSearchDeals), btn("🏠 В меню", ActionMainMenu))
		}
		slog.Error("get deal", "error", err, "deal_id", id)
		return e.oops(s, ActionSearchDeals)
	}

	s.CurrentDeal = deal
	s.State = domain.StateDealView
	mem.RememberDeal(memory.DealMention{ID: deal.ID, Title: deal.Product}, e.now())
	if deal.ClientName != "" {
		mem.RememberClient(deal.ClientName, e.now())
	}
	if deal.Product != "" {
		mem.RememberProduct(deal.Product, e.now())
	}
	mem.RecordAction(fmt.Sprintf("открыта сделка №%d", deal.ID))

	idStr := strconv.FormatInt(deal.ID, 10)
	return e.reply(s, e.renderDeal(ctx, deal),
		btnData("✏️ Изменить", ActionDealEdit, idStr),
		btnData("📍 Этап", ActionEditField, "stage_key"),
		btnData("🗑 Удалить", ActionDeleteAsk, idStr),
		btn("🔍 Искать еще", ActionSearchDeals),
		btn("🏠 В меню", ActionMainMenu))
}

// viewWithContext opens "that deal" using the session focus or the
// remembered context, asking for confirmation when only memory has it.
func (e *Engine) viewWithContext(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent) Response {
	if num := intent.Get("order_number"); num != "" {
		if id, err := strconv.ParseInt(num, 10, 64); err == nil {
			return e.showDeal(ctx, s, mem, id)
		}
	}
	if s.CurrentDeal != nil {
		return e.showDeal(ctx, s, mem, s.CurrentDeal.ID)
	}
	if last := mem.LastDeal(); last != nil {
		return e.askContextDeal(s, *last, "view")
	}
	s.State = domain.StateDealSearch
	return e.reply(s, "🔍 Какую сделку открыть? Введите номер заказа или имя клиента.",
		btn("✖️ Отмена", ActionCancel))
}

// askContextDeal asks whether the remembered deal is the one meant.
// pending encodes what to do after a "yes": "view" or "edit:<field>".
func (e *Engine) askContextDeal(s *domain.DialogSession, last memory.DealMention, pending string) Response {
	s.State = domain.StateNeedDealContext
	s.PendingValue = pending
	title := ""
	if last.Title != "" {
		title = fmt.Sprintf(" (%s)", last.Title)
	}
	return e.reply(s,
		fmt.Sprintf("Вы про сделку №%d%s?", last.ID, title),
		btn("✅ Да", ActionCtxDealYes), btn("❌ Нет, другая", ActionCtxDealNo))
}

// contextDealResolved continues after the context confirmation.
func (e *Engine) contextDealResolved(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, yes bool) Response {
	pending := s.PendingValue
	s.PendingValue = ""
	if !yes {
		s.State = domain.StateDealSearch
		return e.reply(s, "Хорошо, какую сделку? Введите номер заказа или имя клиента.",
			btn("✖️ Отмена", ActionCancel))
	}
	last := mem.LastDeal()
	if last == nil {
		return e.fallback(s, mem)
	}
	if field, ok := strings.CutPrefix(pending, "edit:"); ok {
		if resp, ok := e.loadDealForEdit(ctx, s, mem, last.ID); !ok {
			return resp
		}
		if field != "" {
			return e.promptEditField(ctx, s, mem, field)
		}
		return e.editSelect(ctx, s, mem)
	}
	return e.showDeal(ctx, s, mem, last.ID)
}

func (e *Engine) textNeedDealContext(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	switch {
	case isYes(text):
		return e.contextDealResolved(ctx, s, mem, true)
	case isNo(text):
		return e.contextDealResolved(ctx, s, mem, false)
	}
	if id, ok := orderID(text); ok {
		pending := s.PendingValue
		s.PendingValue = ""
		if field, isEdit := strings.CutPrefix(pending, "edit:"); isEdit {
			if resp, ok := e.loadDealForEdit(ctx, s, mem, id); !ok {
				return resp
			}
			if field != "" {
				return e.promptEditField(ctx, s, mem, field)
			}
			return e.editSelect(ctx, s, mem)
		}
		return e.showDeal(ctx, s, mem, id)
	}
	return e.reply(s, "Ответьте «да» или «нет», либо пришлите номер заказа.",
		btn("✅ Да", ActionCtxDealYes), btn("❌ Нет, другая", ActionCtxDealNo))
}

// startDelete asks for confirmation before deleting.
func (e *Engine) startDelete(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent) Response {
	var id int64
	if num := intent.Get("order_number"); num != "" {
		id, _ = strconv.ParseInt(num, 10, 64)
	}
	if id == 0 && s.CurrentDeal != nil {
		id = s.CurrentDeal.ID
	}
	if id == 0 {
		s.State = domain.StateDealSearch
		return e.reply(s, "Какую сделку удалить? Введите номер заказа.",
			btn("✖️ Отмена", ActionCancel))
	}
	deal, err := e.deals.GetDealByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDealNotFound) {
			return e.reply(s, fmt.Sprintf("🤷 Сделка №%d не найдена.", id),
				btn("🏠 В меню", ActionMainMenu))
		}
		slog.Error("get deal for delete", "error", err, "deal_id", id)
		return e.oops(s, ActionMainMenu)
	}
	return e.reply(s,
		fmt.Sprintf("⚠️ Удалить сделку №%d (%s, %s)? Это действие необратимо.",
			deal.ID, dash(deal.ClientName), dash(deal.Product)),
		btnData("🗑 Да, удалить", ActionDeleteConfirm, strconv.FormatInt(id, 10)),
		btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) deleteDeal(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, id int64) Response {
	if err := e.deals.DeleteDeal(ctx, id); err != nil {
		if errors.Is(err, domain.ErrDealNotFound) {
			return e.reply(s, fmt.Sprintf("🤷 Сделка №%d уже удалена.", id),
				btn("🏠 В меню", ActionMainMenu))
		}
		slog.Error("delete deal", "error", err, "deal_id", id)
		return e.oops(s, ActionMainMenu)
	}
	mem.RecordAction(fmt.Sprintf("удалена сделка №%d", id))
	if s.CurrentDeal != nil && s.CurrentDeal.ID == id {
		s.CurrentDeal = nil
		mem.ResetFocus()
	}
	s.ResetFlow()
	return e.reply(s, fmt.Sprintf("🗑 Сделка №%d удалена.", id), mainMenuButtons()...)
}

// stageReport renders deal counts per stage.
func (e *Engine) stageReport(ctx context.Context, s *domain.DialogSession) Response {
	counts, err := e.deals.StageCounts(ctx)
	if err != nil {
		slog.Error("stage counts", "error", err)
		return e.oops(s, ActionMainMenu)
	}
	stages, err := e.stages.ListStages(ctx)
	if err != nil {
		slog.Error("list stages", "error", err)
		return e.oops(s, ActionMainMenu)
	}
	var sb strings.Builder
	sb.WriteString("📊 Сделки по этапам:\n\n")
	total := 0
	for _, st := range stages {
		n := counts[st.Key]
		total += n
		sb.WriteString(fmt.Sprintf("%s: %d\n", st.Name, n))
	}
	sb.WriteString(fmt.Sprintf("\nВсего: %d", total))
	return e.reply(s, sb.String(),
		btn("🔍 Найти сделку", ActionSearchDeals), btn("🏠 В меню", ActionMainMenu))
}

// orderID extracts an order number from text as a deal id.
func orderID(text string) (int64, bool) {
	num, ok := nlp.ExtractOrderNumber(text)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
