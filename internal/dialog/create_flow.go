package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/memory"
	"github.com/vkarpekin/mebelbot/internal/nlp"
)

// startDealCreate opens the creation flow. A fully parsed intent (the
// language-model path) jumps straight to the confirmation card; an
// empty one starts with mode selection.
func (e *Engine) startDealCreate(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent) Response {
	s.ResetFlow()
	s.DraftDeal = &domain.DealDraft{
		ClientName:  intent.Get("client_name"),
		ClientPhone: intent.Get("client_phone"),
		Product:     intent.Get("product"),
		Note:        intent.Get("note"),
	}
	if q := intent.Get("quantity"); q != "" {
		if n, err := strconv.Atoi(q); err == nil {
			s.DraftDeal.Quantity = n
		}
	}
	if s.DraftDeal.ClientName != "" {
		mem.RememberClient(s.DraftDeal.ClientName, e.now())
	}
	if s.DraftDeal.Product != "" {
		mem.RememberProduct(s.DraftDeal.Product, e.now())
	}

	if s.DraftDeal.ClientName != "" && s.DraftDeal.Product != "" {
		return e.dealConfirmCard(ctx, s)
	}

	s.State = domain.StateModeSelect
	buttons := []Button{
		btn("📝 По шагам", ActionModeSteps),
		btn("💬 Текстом", ActionModeText),
		btn("🖥 В форме", ActionModeForm),
		btn("✖️ Отмена", ActionCancel),
	}
	text := "➕ Новая сделка. Как удобнее заполнить?"
	if mem.Prefs.Mode != "" {
		text += fmt.Sprintf("\nВ прошлый раз вы выбирали «%s».", modeLabel(domain.DialogMode(mem.Prefs.Mode)))
	}
	return e.reply(s, text, buttons...)
}

func modeLabel(m domain.DialogMode) string {
	switch m {
	case domain.ModeSteps:
		return "по шагам"
	case domain.ModeText:
		return "текстом"
	case domain.ModeForm:
		return "в форме"
	}
	return string(m)
}

func (e *Engine) chooseMode(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, action string) Response {
	if s.DraftDeal == nil {
		s.DraftDeal = &domain.DealDraft{}
	}
	switch action {
	case ActionModeSteps:
		s.Mode = domain.ModeSteps
		mem.Prefs.Mode = string(domain.ModeSteps)
		return e.promptClient(s)
	case ActionModeText:
		s.Mode = domain.ModeText
		mem.Prefs.Mode = string(domain.ModeText)
		s.State = domain.StateIdle
		return e.reply(s, "💬 Опишите сделку одним сообщением: клиент, изделие, количество.\nНапример: «кухня для Иванова, 1 шт, телефон 89120000000».",
			btn("✖️ Отмена", ActionCancel))
	case ActionModeForm:
		s.Mode = domain.ModeForm
		mem.Prefs.Mode = string(domain.ModeForm)
		resp := e.reply(s, "🖥 Открываю форму создания сделки.")
		resp.Redirect = e.crmBaseURL + "/deals/new"
		s.ResetFlow()
		return resp
	}
	return e.fallback(s, mem)
}

func (e *Engine) textModeSelect(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "шаг"):
		return e.chooseMode(ctx, s, mem, ActionModeSteps)
	case strings.Contains(t, "текст"):
		return e.chooseMode(ctx, s, mem, ActionModeText)
	case strings.Contains(t, "форм"):
		return e.chooseMode(ctx, s, mem, ActionModeForm)
	}
	return e.fallback(s, mem)
}

func (e *Engine) promptClient(s *domain.DialogSession) Response {
	s.State = domain.StateDealClient
	return e.reply(s, "👤 Кто клиент? Введите имя или телефон.",
		btn("⏭ Пропустить", ActionSkip), btn("✖️ Отмена", ActionCancel))
}

// textDealClient handles the typed client name. A fuzzy match against
// existing clients asks for confirmation; no match means a new client.
func (e *Engine) textDealClient(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if isSkip(text) {
		return e.skipStep(ctx, s, mem)
	}
	name := strings.TrimSpace(text)
	s.DraftDeal.ClientName = name

	candidates, err := e.deals.SearchClients(ctx, name)
	if err != nil {
		slog.Warn("client lookup failed, continuing as new client", "error", err)
		candidates = nil
	}
	if len(candidates) > 0 {
		best := candidates[0]
		s.PendingValue = best.Name
		s.State = domain.StateDealClientConfirm
		return e.reply(s,
			fmt.Sprintf("Нашел похожего клиента: «%s». Это он?", best.Name),
			btnData("✅ Да, это он", ActionClientPick, best.Name),
			btn("➕ Новый клиент", ActionClientNew),
			btn("✖️ Отмена", ActionCancel))
	}
	return e.clientConfirmed(ctx, s, mem, false)
}

func (e *Engine) textDealClientConfirm(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	switch {
	case isYes(text):
		return e.clientConfirmed(ctx, s, mem, true)
	case isNo(text):
		return e.clientConfirmed(ctx, s, mem, false)
	}
	// Anything else is a corrected client name.
	return e.textDealClient(ctx, s, mem, intent, text)
}

// clientConfirmed finalizes the client step. picked means the existing
// candidate was accepted; otherwise the typed name stays as a new client.
func (e *Engine) clientConfirmed(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, picked bool) Response {
	if s.DraftDeal == nil {
		s.DraftDeal = &domain.DealDraft{}
	}
	if picked && s.PendingValue != "" {
		s.DraftDeal.ClientName = s.PendingValue
	}
	s.PendingValue = ""
	if s.DraftDeal.ClientName != "" {
		mem.RememberClient(s.DraftDeal.ClientName, e.now())
	}
	return e.promptProduct(s)
}

func (e *Engine) promptProduct(s *domain.DialogSession) Response {
	s.State = domain.StateDealProduct
	return e.reply(s, "🪑 Какое изделие? Например: «кухня», «шкаф-купе 2 шт».",
		btn("⏭ Пропустить", ActionSkip), btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) textDealProduct(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if isSkip(text) {
		return e.skipStep(ctx, s, mem)
	}
	// A quantity inside the product phrase is split out and confirmed.
	if n, ok := nlp.ExtractNumber(text); ok && n > 0 && n < 1000 {
		product := strings.TrimSpace(stripQuantity(text))
		if product != "" {
			s.DraftDeal.Product = product
			s.DraftDeal.Quantity = int(n)
			s.State = domain.StateDealProductConfirm
			return e.reply(s,
				fmt.Sprintf("Изделие «%s», количество %d. Верно?", product, int(n)),
				btn("✅ Да", ActionConfirm), btn("✏️ Нет, поправлю", ActionSkip),
				btn("✖️ Отмена", ActionCancel))
		}
	}
	s.DraftDeal.Product = strings.TrimSpace(text)
	mem.RememberProduct(s.DraftDeal.Product, e.now())
	return e.promptQuantity(s)
}

func (e *Engine) textDealProductConfirm(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if isYes(text) {
		mem.RememberProduct(s.DraftDeal.Product, e.now())
		return e.promptStage(ctx, s)
	}
	if isNo(text) {
		s.DraftDeal.Product = ""
		s.DraftDeal.Quantity = 0
		return e.promptProduct(s)
	}
	return e.textDealProduct(ctx, s, mem, intent, text)
}

var quantityRe = nlpQuantityRe()

func nlpQuantityRe() *strings.Replacer {
	return strings.NewReplacer("шт", "", "штук", "", "штуки", "")
}

func stripQuantity(text string) string {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if r >= '0' && r <= '9' {
			continue
		}
		out = append(out, r)
	}
	return strings.TrimSpace(strings.TrimRight(quantityRe.Replace(string(out)), " ,"))
}

func (e *Engine) promptQuantity(s *domain.DialogSession) Response {
	s.State = domain.StateDealQuantity
	return e.reply(s, "🔢 Сколько штук?",
		btn("⏭ Пропустить", ActionSkip), btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) textDealQuantity(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if isSkip(text) {
		return e.skipStep(ctx, s, mem)
	}
	if intent.Action == domain.ActionNumber {
		if n, err := strconv.Atoi(intent.Get("number")); err == nil && n > 0 {
			s.DraftDeal.Quantity = n
			return e.promptStage(ctx, s)
		}
	}
	if n, ok := nlp.ExtractNumber(text); ok && n > 0 {
		s.DraftDeal.Quantity = int(n)
		return e.promptStage(ctx, s)
	}
	return e.reply(s, "Введите число, например «2».",
		btn("⏭ Пропустить", ActionSkip), btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) promptStage(ctx context.Context, s *domain.DialogSession) Response {
	s.State = domain.StateDealStage
	stages, err := e.stages.ListStages(ctx)
	if err != nil {
		slog.Warn("list stages", "error", err)
	}
	buttons := make([]Button, 0, len(stages)+2)
	for _, st := range stages {
		buttons = append(buttons, btnData(st.Name, ActionStageSet, st.Key))
	}
	buttons = append(buttons, btn("⏭ Пропустить", ActionSkip), btn("✖️ Отмена", ActionCancel))
	return e.reply(s, "📍 На каком этапе начнем?", buttons...)
}

func (e *Engine) textDealStage(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if isSkip(text) {
		return e.skipStep(ctx, s, mem)
	}
	if key, ok := e.resolveStageByName(ctx, text); ok {
		return e.stageChosen(ctx, s, mem, key)
	}
	return e.fallback(s, mem)
}

// resolveStageByName fuzzy-matches a typed phrase against configured
// stage names.
func (e *Engine) resolveStageByName(ctx context.Context, phrase string) (string, bool) {
	stages, err := e.stages.ListStages(ctx)
	if err != nil || len(stages) == 0 {
		return "", false
	}
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name
	}
	if i, ok := nlp.FuzzyContains(strings.TrimSpace(phrase), names, config.FuzzyThreshold); ok {
		return stages[i].Key, true
	}
	return "", false
}

// defaultStageKey is the first configured stage, or the hard-coded
// fallback when none are configured.
func (e *Engine) defaultStageKey(ctx context.Context) string {
	stages, err := e.stages.ListStages(ctx)
	if err != nil || len(stages) == 0 {
		return config.DefaultStageKey
	}
	return stages[0].Key
}

// skipStep advances a creation step without its value; nothing in the
// flow is mandatory.
func (e *Engine) skipStep(ctx context.Context, s *domain.DialogSession, mem *memory.Memory) Response {
	switch s.State {
	case domain.StateDealClient, domain.StateDealClientConfirm:
		s.PendingValue = ""
		return e.promptProduct(s)
	case domain.StateDealProduct:
		return e.promptStage(ctx, s)
	case domain.StateDealProductConfirm:
		s.DraftDeal.Product = ""
		s.DraftDeal.Quantity = 0
		return e.promptProduct(s)
	case domain.StateDealQuantity:
		return e.promptStage(ctx, s)
	case domain.StateDealStage:
		s.DraftDeal.StageKey = e.defaultStageKey(ctx)
		return e.dealConfirmCard(ctx, s)
	case domain.StateTaskCreateDeadline:
		return e.promptTaskPriority(s)
	default:
		return e.fallback(s, mem)
	}
}

// dealConfirmCard renders the summary before creation.
func (e *Engine) dealConfirmCard(ctx context.Context, s *domain.DialogSession) Response {
	d := s.DraftDeal
	if d.StageKey == "" {
		d.StageKey = e.defaultStageKey(ctx)
	}
	var sb strings.Builder
	sb.WriteString("📋 Проверьте сделку:\n\n")
	sb.WriteString("Клиент: " + dash(d.ClientName) + "\n")
	if d.ClientPhone != "" {
		sb.WriteString("Телефон: " + d.ClientPhone + "\n")
	}
	sb.WriteString("Изделие: " + dash(d.Product) + "\n")
	if d.Quantity > 0 {
		sb.WriteString("Количество: " + FormatThousands(int64(d.Quantity)) + "\n")
	}
	sb.WriteString("Этап: " + e.stageName(ctx, d.StageKey) + "\n")
	if d.Note != "" {
		sb.WriteString("Комментарий: " + d.Note + "\n")
	}
	sb.WriteString("\nСоздаем?")
	s.State = domain.StateDealConfirm
	return e.reply(s, sb.String(),
		btn("✅ Да, создать", ActionConfirm), btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) textDealConfirm(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if isYes(text) || intent.Action == domain.ActionConfirm {
		return e.confirmStep(ctx, s, mem)
	}
	if isNo(text) {
		return e.cancelFlow(s, mem)
	}
	return e.reply(s, "Создаем сделку?",
		btn("✅ Да, создать", ActionConfirm), btn("✖️ Отмена", ActionCancel))
}

// confirmStep executes the pending confirmation for the current state.
func (e *Engine) confirmStep(ctx context.Context, s *domain.DialogSession, mem *memory.Memory) Response {
	switch s.State {
	case domain.StateDealConfirm:
		return e.createDeal(ctx, s, mem)
	case domain.StateDealEditConfirm:
		return e.applyEdit(ctx, s, mem)
	case domain.StateDealClientConfirm:
		return e.clientConfirmed(ctx, s, mem, true)
	case domain.StateDealProductConfirm:
		mem.RememberProduct(s.DraftDeal.Product, e.now())
		return e.promptStage(ctx, s)
	case domain.StateBulkConfirm:
		return e.bulkExecute(ctx, s, mem, s.BulkToken)
	default:
		return e.fallback(s, mem)
	}
}

func (e *Engine) createDeal(ctx context.Context, s *domain.DialogSession, mem *memory.Memory) Response {
	draft := *s.DraftDeal
	deal, err := e.deals.CreateDeal(ctx, draft)
	if err != nil {
		slog.Error("create deal", "error", err, "user_id", s.UserID)
		// Stay on the confirmation card so retry works.
		return e.oops(s, ActionConfirm)
	}
	mem.RememberDeal(memory.DealMention{ID: deal.ID, Title: deal.Product}, e.now())
	mem.RecordAction(fmt.Sprintf("создана сделка №%d", deal.ID))
	s.ResetFlow()
	return e.reply(s,
		fmt.Sprintf("✅ Сделка №%d создана.", deal.ID),
		btnData("👀 Открыть", ActionDealView, strconv.FormatInt(deal.ID, 10)),
		btn("➕ Еще одна", ActionCreateDeal),
		btn("🏠 В меню", ActionMainMenu))
}
