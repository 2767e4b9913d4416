package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/memory"
	"github.com/vkarpekin/mebelbot/internal/nlp"
)

// taskBriefing renders the attention buckets. When nothing needs
// attention the reply is exactly the configured phrase for the user's
// communication style, plus an offer to create a task.
func (e *Engine) taskBriefing(ctx context.Context, s *domain.DialogSession, mem *memory.Memory) Response {
	att, err := e.tasks.GetTasksNeedingAttention(ctx, s.UserID)
	if err != nil {
		slog.Error("tasks attention", "error", err, "user_id", s.UserID)
		return e.oops(s, ActionTaskBriefing)
	}

	s.State = domain.StateTaskBriefing
	if att.Empty() {
		phrase, ok := config.AllDonePhrases[mem.Prefs.Style]
		if !ok {
			phrase = config.AllDonePhrases[config.StyleFriendly]
		}
		return e.reply(s, phrase,
			btn("➕ Создать задачу", ActionTaskCreate), btn("🏠 В меню", ActionMainMenu))
	}

	var sb strings.Builder
	sb.WriteString("🔥 Вот что требует внимания:\n")
	buttons := make([]Button, 0, 6)
	section := func(title string, tasks []domain.Task) {
		if len(tasks) == 0 {
			return
		}
		sb.WriteString("\n" + title + "\n")
		for _, t := range tasks {
			sb.WriteString("• " + taskLine(t, e.now()) + "\n")
			if len(buttons) < 5 {
				buttons = append(buttons, btnData(shorten(t.Title, 24), ActionTaskView, strconv.FormatInt(t.ID, 10)))
			}
		}
	}
	section("⏰ Просрочено:", att.Overdue)
	section("🔴 Срочно:", att.Urgent)
	section("🟡 Скоро срок:", att.Soon)
	section("🐢 Висят давно:", att.LongRunning)

	buttons = append(buttons, btn("📋 Все задачи", ActionTaskList), btn("🏠 В меню", ActionMainMenu))
	return e.reply(s, sb.String(), buttons...)
}

func (e *Engine) taskList(ctx context.Context, s *domain.DialogSession) Response {
	tasks, err := e.tasks.GetMyTasks(ctx, s.UserID)
	if err != nil {
		slog.Error("list tasks", "error", err, "user_id", s.UserID)
		return e.oops(s, ActionTaskList)
	}

	s.State = domain.StateTaskList
	if len(tasks) == 0 {
		return e.reply(s, "📋 Открытых задач нет.",
			btn("➕ Создать задачу", ActionTaskCreate), btn("🏠 В меню", ActionMainMenu))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Ваши задачи (%d):\n\n", len(tasks)))
	buttons := make([]Button, 0, 7)
	for i, t := range tasks {
		sb.WriteString(taskLine(t, e.now()) + "\n")
		if i < 5 {
			buttons = append(buttons, btnData(shorten(t.Title, 24), ActionTaskView, strconv.FormatInt(t.ID, 10)))
		}
	}
	buttons = append(buttons,
		btn("➕ Создать", ActionTaskCreate),
		btn("✅ Завершить", ActionTaskDone),
		btn("🏠 В меню", ActionMainMenu))
	return e.reply(s, sb.String(), buttons...)
}

func (e *Engine) showTask(ctx context.Context, s *domain.DialogSession, id int64) Response {
	task, err := e.tasks.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return e.reply(s, fmt.Sprintf("🤷 Задача №%d не найдена.", id),
				btn("📋 К списку", ActionTaskList), btn("🏠 В меню", ActionMainMenu))
		}
		slog.Error("get task", "error", err, "task_id", id)
		return e.oops(s, ActionTaskList)
	}

	s.CurrentTask = task
	s.State = domain.StateTaskView

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📌 Задача №%d\n\n%s\n", task.ID, task.Title))
	if task.Deadline != nil {
		sb.WriteString("Срок: " + task.Deadline.Format("02.01.2006") + "\n")
	}
	sb.WriteString("Приоритет: " + priorityLabel(task.Priority) + "\n")
	if task.Done {
		sb.WriteString("Статус: выполнена\n")
	}

	buttons := []Button{
		btn("📋 К списку", ActionTaskList),
		btn("🏠 В меню", ActionMainMenu),
	}
	if !task.Done {
		buttons = append([]Button{btnData("✅ Завершить", ActionTaskDone, strconv.FormatInt(task.ID, 10))}, buttons...)
	}
	return e.reply(s, sb.String(), buttons...)
}

// taskCompletePrompt lists open tasks for completion when the command
// named no particular one.
func (e *Engine) taskCompletePrompt(ctx context.Context, s *domain.DialogSession) Response {
	tasks, err := e.tasks.GetMyTasks(ctx, s.UserID)
	if err != nil {
		slog.Error("list tasks", "error", err, "user_id", s.UserID)
		return e.oops(s, ActionTaskList)
	}
	if len(tasks) == 0 {
		s.State = domain.StateIdle
		return e.reply(s, "📋 Завершать нечего, открытых задач нет.",
			btn("➕ Создать задачу", ActionTaskCreate), btn("🏠 В меню", ActionMainMenu))
	}

	s.State = domain.StateTaskCompleteSelect
	var sb strings.Builder
	sb.WriteString("Какую задачу завершаем?\n\n")
	buttons := make([]Button, 0, 6)
	for i, t := range tasks {
		sb.WriteString(fmt.Sprintf("№%d · %s\n", t.ID, taskLine(t, e.now())))
		if i < 5 {
			buttons = append(buttons, btnData(shorten(t.Title, 24), ActionTaskDone, strconv.FormatInt(t.ID, 10)))
		}
	}
	buttons = append(buttons, btn("✖️ Отмена", ActionCancel))
	return e.reply(s, sb.String(), buttons...)
}

func (e *Engine) textTaskCompleteSelect(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if id, ok := orderID(text); ok {
		return e.completeTask(ctx, s, mem, id)
	}
	return e.reply(s, "Пришлите номер задачи или нажмите кнопку.",
		btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) completeTask(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, id int64) Response {
	task, err := e.tasks.CompleteTask(ctx, id)
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return e.reply(s, fmt.Sprintf("🤷 Задача №%d не найдена.", id),
			btn("📋 К списку", ActionTaskList), btn("🏠 В меню", ActionMainMenu))
	case errors.Is(err, domain.ErrTaskAlreadyDone):
		return e.reply(s, fmt.Sprintf("Задача №%d уже завершена.", id),
			btn("📋 К списку", ActionTaskList), btn("🏠 В меню", ActionMainMenu))
	case err != nil:
		slog.Error("complete task", "error", err, "task_id", id)
		return e.oops(s, ActionTaskList)
	}

	mem.RecordAction(fmt.Sprintf("завершена задача «%s»", task.Title))
	s.CurrentTask = nil
	s.State = domain.StateIdle
	return e.reply(s, fmt.Sprintf("✅ Задача «%s» завершена.", task.Title),
		btn("📋 К списку", ActionTaskList),
		btn("🔥 Что срочно", ActionTaskBriefing),
		btn("🏠 В меню", ActionMainMenu))
}

// startTaskCreate begins the wizard. A command that already carried all
// three fields ("создай задачу позвонить Иванову завтра, важно")
// creates immediately.
func (e *Engine) startTaskCreate(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent) Response {
	s.ResetFlow()
	s.DraftTask = &domain.TaskDraft{
		Title:    intent.Get("title"),
		Priority: intent.Get("priority"),
	}
	if d := intent.Get("deadline"); d != "" {
		if t, ok := nlp.ExtractDate(d, e.now()); ok {
			s.DraftTask.Deadline = &t
		}
	}
	if s.DraftTask.Title != "" && s.DraftTask.Deadline != nil && s.DraftTask.Priority != "" {
		return e.createTaskFinal(ctx, s, mem)
	}
	if s.DraftTask.Title != "" {
		return e.promptTaskDeadline(s)
	}
	s.State = domain.StateTaskCreateTitle
	return e.reply(s, "📝 Что нужно сделать? Опишите задачу.",
		btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) textTaskTitle(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	title := strings.TrimSpace(text)
	if title == "" {
		return e.reply(s, "Опишите задачу текстом.", btn("✖️ Отмена", ActionCancel))
	}
	s.DraftTask.Title = title
	// A deadline inside the title ("позвонить завтра") is picked up here.
	if t, ok := nlp.ExtractDate(title, e.now()); ok {
		s.DraftTask.Deadline = &t
		return e.promptTaskPriority(s)
	}
	return e.promptTaskDeadline(s)
}

func (e *Engine) promptTaskDeadline(s *domain.DialogSession) Response {
	s.State = domain.StateTaskCreateDeadline
	return e.reply(s, "📅 Когда срок? Можно «сегодня», «завтра», «через 3 дня» или дату.",
		btn("Сегодня", ActionSkipDeadlineToday), btn("Завтра", ActionSkipDeadlineTomorrow),
		btn("⏭ Без срока", ActionSkip), btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) textTaskDeadline(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if isSkip(text) {
		return e.promptTaskPriority(s)
	}
	t, ok := nlp.ExtractDate(text, e.now())
	if !ok {
		return e.reply(s, "Не понял дату. Например: «завтра» или «15.04».",
			btn("⏭ Без срока", ActionSkip), btn("✖️ Отмена", ActionCancel))
	}
	s.DraftTask.Deadline = &t
	return e.promptTaskPriority(s)
}

// taskDeadlineShortcut handles the today/tomorrow quick buttons.
func (e *Engine) taskDeadlineShortcut(s *domain.DialogSession, days int) Response {
	t := e.now().AddDate(0, 0, days)
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if s.DraftTask == nil {
		s.DraftTask = &domain.TaskDraft{}
	}
	s.DraftTask.Deadline = &t
	return e.promptTaskPriority(s)
}

func (e *Engine) promptTaskPriority(s *domain.DialogSession) Response {
	s.State = domain.StateTaskCreatePriority
	return e.reply(s, "⚡ Какой приоритет?",
		btnData("🔴 Высокий", ActionTaskPriority, domain.TaskPriorityHigh),
		btnData("🟡 Средний", ActionTaskPriority, domain.TaskPriorityMedium),
		btnData("🟢 Низкий", ActionTaskPriority, domain.TaskPriorityLow),
		btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) textTaskPriority(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "выс") || strings.Contains(t, "срочн") || strings.Contains(t, "важн"):
		return e.taskPriorityChosen(ctx, s, mem, domain.TaskPriorityHigh)
	case strings.Contains(t, "сред") || isSkip(text):
		return e.taskPriorityChosen(ctx, s, mem, domain.TaskPriorityMedium)
	case strings.Contains(t, "низ") || strings.Contains(t, "не срочно"):
		return e.taskPriorityChosen(ctx, s, mem, domain.TaskPriorityLow)
	}
	return e.reply(s, "Выберите приоритет кнопкой или напишите: высокий, средний, низкий.",
		btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) taskPriorityChosen(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, data string) Response {
	switch data {
	case domain.TaskPriorityLow, domain.TaskPriorityMedium, domain.TaskPriorityHigh:
	default:
		return e.fallback(s, mem)
	}
	if s.DraftTask == nil {
		return e.fallback(s, mem)
	}
	s.DraftTask.Priority = data
	return e.createTaskFinal(ctx, s, mem)
}

func (e *Engine) createTaskFinal(ctx context.Context, s *domain.DialogSession, mem *memory.Memory) Response {
	draft := *s.DraftTask
	if draft.Priority == "" {
		draft.Priority = domain.TaskPriorityMedium
	}
	task, err := e.tasks.CreateTask(ctx, draft, s.UserID)
	if err != nil {
		slog.Error("create task", "error", err, "user_id", s.UserID)
		return e.oops(s, ActionTaskCreate)
	}

	mem.RecordAction(fmt.Sprintf("создана задача «%s»", task.Title))
	s.ResetFlow()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Задача создана: %s", task.Title))
	if task.Deadline != nil {
		sb.WriteString(", срок " + task.Deadline.Format("02.01.2006"))
	}
	sb.WriteString(", приоритет " + strings.ToLower(priorityLabel(task.Priority)) + ".")
	return e.reply(s, sb.String(),
		btn("📋 Мои задачи", ActionTaskList), btn("🏠 В меню", ActionMainMenu))
}

func taskLine(t domain.Task, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(priorityDot(t.Priority) + " " + t.Title)
	if t.Deadline != nil {
		if t.Deadline.Before(now) && !t.Done {
			sb.WriteString(" (просрочено, " + t.Deadline.Format("02.01") + ")")
		} else {
			sb.WriteString(" (до " + t.Deadline.Format("02.01") + ")")
		}
	}
	return sb.String()
}

func priorityDot(p string) string {
	switch p {
	case domain.TaskPriorityHigh:
		return "🔴"
	case domain.TaskPriorityLow:
		return "🟢"
	}
	return "🟡"
}

func priorityLabel(p string) string {
	if l, ok := config.TaskPriorityLabels[p]; ok {
		return l
	}
	return p
}

func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
