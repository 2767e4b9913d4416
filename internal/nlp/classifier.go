package nlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vkarpekin/mebelbot/internal/domain"
)

// timeNow is swapped out by tests that pin the clock.
var timeNow = time.Now

// Classify runs the ordered rule list against one message. The first
// matching group wins; order encodes priority, so short unambiguous
// commands sit above the generic ones. Confidences are hand-tuned:
// 100 for cancel/confirm/greeting, 95 for clear create/search commands,
// 85 for edit-with-context, 70-80 for reports, bulk and contextual-only
// phrasings, 20 when nothing matched. The caller treats anything below
// config.MinLocalConfidence as a miss and escalates to the language model.
//
// The session is consulted in exactly one place: a pure number while the
// dialog waits for a quantity is classified as a number intent before any
// other rule can see it.
func Classify(text string, session *domain.DialogSession) *domain.ParsedIntent {
	raw := text
	norm := Normalize(text)

	// State-dependent priority override.
	if session != nil && session.State == domain.StateDealQuantity {
		if n, ok := ExtractNumber(raw); ok && isPureNumber(norm) {
			return &domain.ParsedIntent{
				Action:     domain.ActionNumber,
				Data:       map[string]string{"number": strconv.Itoa(int(n))},
				Confidence: 100,
			}
		}
	}

	for _, rule := range rules {
		if intent := rule(raw, norm); intent != nil {
			return intent
		}
	}

	return &domain.ParsedIntent{Action: domain.ActionUnknown, Confidence: 20}
}

type ruleFunc func(raw, norm string) *domain.ParsedIntent

// rules is the ordered rule list. Specific before generic.
var rules = []ruleFunc{
	ruleCancel,
	ruleConfirm,
	ruleGreeting,
	ruleHelp,
	ruleTaskBriefing,
	ruleTaskCreate,
	ruleTaskComplete,
	ruleTaskList,
	ruleCreateDeal,
	ruleBulk,
	ruleEditStage,
	ruleEdit,
	ruleDelete,
	ruleReport,
	ruleSearch,
	ruleOrderNumber,
	ruleContextualView,
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasWord(norm string, words ...string) bool {
	fields := strings.Fields(norm)
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

func isPureNumber(norm string) bool {
	t := strings.TrimSpace(norm)
	if t == "" {
		return false
	}
	for _, r := range t {
		if (r < '0' || r > '9') && r != ' ' {
			return false
		}
	}
	return true
}

func ruleCancel(raw, norm string) *domain.ParsedIntent {
	if hasWord(norm, "отмена", "отмени", "отменить", "стоп", "назад", "cancel") {
		return &domain.ParsedIntent{Action: domain.ActionCancel, Confidence: 100}
	}
	return nil
}

func ruleConfirm(raw, norm string) *domain.ParsedIntent {
	if norm == "да" || norm == "ага" || norm == "ок" || norm == "окей" ||
		norm == "верно" || norm == "подтверждаю" || norm == "yes" {
		return &domain.ParsedIntent{Action: domain.ActionConfirm, Confidence: 100}
	}
	return nil
}

func ruleGreeting(raw, norm string) *domain.ParsedIntent {
	if containsAny(norm, "привет", "здравствуй", "добрый день", "доброе утро", "добрый вечер") {
		return &domain.ParsedIntent{Action: domain.ActionGreeting, Confidence: 100}
	}
	return nil
}

func ruleHelp(raw, norm string) *domain.ParsedIntent {
	if containsAny(norm, "помощь", "помоги", "что ты умеешь", "справка", "help") {
		return &domain.ParsedIntent{Action: domain.ActionHelp, Confidence: 100}
	}
	return nil
}

func ruleTaskBriefing(raw, norm string) *domain.ParsedIntent {
	if containsAny(norm, "что срочно", "что горит", "что срочного", "бриф") ||
		(strings.Contains(norm, "срочн") && strings.Contains(norm, "сегодня")) {
		return &domain.ParsedIntent{
			Action: domain.ActionTaskBriefing, Target: domain.EntityTask, Confidence: 85,
		}
	}
	return nil
}

func ruleTaskCreate(raw, norm string) *domain.ParsedIntent {
	if !strings.Contains(norm, "задач") {
		return nil
	}
	if !containsAny(norm, "создай", "создать", "новая", "новую", "добавь", "поставь") {
		return nil
	}
	data := map[string]string{}
	// "создай задачу позвонить клиенту завтра" — everything after the
	// "задачу" token is the title; a trailing date word also fills deadline.
	if idx := strings.Index(norm, "задачу "); idx >= 0 {
		data["title"] = strings.TrimSpace(norm[idx+len("задачу "):])
	} else if idx := strings.Index(norm, "задача "); idx >= 0 {
		data["title"] = strings.TrimSpace(norm[idx+len("задача "):])
	}
	if _, ok := ExtractDate(raw, timeNow()); ok {
		data["deadline"] = raw
	}
	if containsAny(norm, "срочн", "важн") {
		data["priority"] = domain.TaskPriorityHigh
	}
	return &domain.ParsedIntent{
		Action: domain.ActionTaskCreate, Target: domain.EntityTask,
		Data: data, Confidence: 95,
	}
}

func ruleTaskComplete(raw, norm string) *domain.ParsedIntent {
	if strings.Contains(norm, "задач") &&
		containsAny(norm, "заверши", "закрой", "выполнил", "выполнена", "сделал", "готова") {
		return &domain.ParsedIntent{
			Action: domain.ActionTaskComplete, Target: domain.EntityTask, Confidence: 85,
		}
	}
	return nil
}

func ruleTaskList(raw, norm string) *domain.ParsedIntent {
	if containsAny(norm, "мои задачи", "список задач", "все задачи", "покажи задачи") {
		return &domain.ParsedIntent{
			Action: domain.ActionTaskList, Target: domain.EntityTask, Confidence: 95,
		}
	}
	return nil
}

func ruleCreateDeal(raw, norm string) *domain.ParsedIntent {
	if !strings.Contains(norm, "сделк") {
		return nil
	}
	if !containsAny(norm, "создай", "создать", "создаем", "новая", "новую", "добавь", "оформи", "заведи") {
		return nil
	}
	data := map[string]string{}
	if name, ok := ExtractClientName(norm); ok {
		data["client_name"] = name
	}
	if n, ok := ExtractNumber(raw); ok {
		data["quantity"] = strconv.Itoa(int(n))
	}
	return &domain.ParsedIntent{
		Action: domain.ActionCreate, Target: domain.EntityDeal,
		Data: data, Confidence: 95,
	}
}

func ruleBulk(raw, norm string) *domain.ParsedIntent {
	if !containsAny(norm, "все сделки", "всех сделок") {
		return nil
	}
	if !containsAny(norm, "перенеси", "перемести", "переведи", "двинь") {
		return nil
	}
	data := map[string]string{}
	if stage, ok := ExtractStage(norm); ok {
		data["stage"] = stage
	}
	return &domain.ParsedIntent{
		Action: domain.ActionBulk, Target: domain.EntityDeal,
		Data: data, Confidence: 75,
	}
}

func ruleEditStage(raw, norm string) *domain.ParsedIntent {
	if !strings.Contains(norm, "этап") {
		return nil
	}
	if !containsAny(norm, "измени", "поменяй", "смени", "переведи", "поставь", "перенеси") {
		return nil
	}
	data := map[string]string{"field": "stage"}
	if stage, ok := ExtractStage(norm); ok {
		data["stage"] = stage
	}
	if num, ok := ExtractOrderNumber(raw); ok {
		data["order_number"] = num
	}
	useCtx := HasContextRef(raw) || data["order_number"] == ""
	return &domain.ParsedIntent{
		Action: domain.ActionEdit, Target: domain.EntityDeal,
		Data: data, UseContext: useCtx, Confidence: 85,
	}
}

func ruleEdit(raw, norm string) *domain.ParsedIntent {
	if !containsAny(norm, "измени", "поменяй", "смени", "отредактируй", "исправь") {
		return nil
	}
	data := map[string]string{}
	if num, ok := ExtractOrderNumber(raw); ok {
		data["order_number"] = num
	}
	useCtx := HasContextRef(raw) || data["order_number"] == ""
	return &domain.ParsedIntent{
		Action: domain.ActionEdit, Target: domain.EntityDeal,
		Data: data, UseContext: useCtx, Confidence: 85,
	}
}

func ruleDelete(raw, norm string) *domain.ParsedIntent {
	if !containsAny(norm, "удали", "удалить", "убери") {
		return nil
	}
	if !strings.Contains(norm, "сделк") {
		return nil
	}
	data := map[string]string{}
	if num, ok := ExtractOrderNumber(raw); ok {
		data["order_number"] = num
	}
	return &domain.ParsedIntent{
		Action: domain.ActionDelete, Target: domain.EntityDeal,
		Data: data, UseContext: HasContextRef(raw), Confidence: 80,
	}
}

func ruleReport(raw, norm string) *domain.ParsedIntent {
	if containsAny(norm, "отчет", "отчёт", "статистика", "сводка", "итоги") {
		return &domain.ParsedIntent{Action: domain.ActionReport, Confidence: 75}
	}
	return nil
}

// bareOrderTokenRe accepts an unmarked digit run next to a search verb;
// the #/№ marker is optional there.
var bareOrderTokenRe = regexp.MustCompile(`\b(\d{1,5})\b`)

func ruleSearch(raw, norm string) *domain.ParsedIntent {
	if !containsAny(norm, "найди", "найти", "покажи", "поиск", "где", "открой") {
		return nil
	}
	data := map[string]string{}
	if num, ok := ExtractOrderNumber(raw); ok {
		data["order_number"] = num
	} else if m := bareOrderTokenRe.FindStringSubmatch(raw); m != nil {
		data["order_number"] = m[1]
	}
	if !containsAny(norm, "сделк", "клиент", "изделие") && data["order_number"] == "" {
		return nil
	}
	if name, ok := ExtractClientName(norm); ok {
		data["client_name"] = name
	}
	useCtx := HasContextRef(raw) && data["order_number"] == ""
	conf := 95
	action := domain.ActionSearch
	if useCtx {
		// "открой её" without an explicit reference is a contextual view.
		action = domain.ActionView
		conf = 70
	}
	return &domain.ParsedIntent{
		Action: action, Target: domain.EntityDeal,
		Data: data, UseContext: useCtx, Confidence: conf,
	}
}

func ruleOrderNumber(raw, norm string) *domain.ParsedIntent {
	// A bare "#275" (or just "275") is a search shortcut.
	if num, ok := ExtractOrderNumber(raw); ok {
		if strings.ContainsAny(raw, "#№") || isPureNumber(norm) {
			return &domain.ParsedIntent{
				Action: domain.ActionSearch, Target: domain.EntityDeal,
				Data: map[string]string{"order_number": num}, Confidence: 90,
			}
		}
	}
	return nil
}

func ruleContextualView(raw, norm string) *domain.ParsedIntent {
	if !HasContextRef(raw) {
		return nil
	}
	if ClassifyContextRef(raw) != "deal" {
		return nil
	}
	return &domain.ParsedIntent{
		Action: domain.ActionView, Target: domain.EntityDeal,
		UseContext: true, Confidence: 70,
	}
}
