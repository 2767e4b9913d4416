package dialog

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/memory"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeDeals struct {
	deals   map[int64]*domain.Deal
	clients []domain.Client
	nextID  int64

	created []domain.DealDraft
	updates []map[string]any
	moved   int
}

func newFakeDeals() *fakeDeals {
	return &fakeDeals{deals: map[int64]*domain.Deal{}, nextID: 1000}
}

func (f *fakeDeals) SearchDeals(_ context.Context, query string, page, pageSize int, _ *domain.DealFilter) ([]domain.Deal, int, error) {
	q := strings.ToLower(query)
	var all []domain.Deal
	for _, d := range f.deals {
		if strings.Contains(strings.ToLower(d.ClientName), q) || strings.Contains(strings.ToLower(d.Product), q) {
			all = append(all, *d)
		}
	}
	// Deterministic order for paging assertions.
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].ID < all[i].ID {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	total := len(all)
	start := page * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeDeals) GetDealByID(_ context.Context, id int64) (*domain.Deal, error) {
	d, ok := f.deals[id]
	if !ok {
		return nil, domain.ErrDealNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeals) CreateDeal(_ context.Context, draft domain.DealDraft) (*domain.Deal, error) {
	f.created = append(f.created, draft)
	f.nextID++
	d := &domain.Deal{
		ID:         f.nextID,
		ClientName: draft.ClientName,
		Product:    draft.Product,
		Quantity:   draft.Quantity,
		StageKey:   draft.StageKey,
		CreatedAt:  testNow,
	}
	f.deals[d.ID] = d
	return d, nil
}

func (f *fakeDeals) UpdateDeal(_ context.Context, id int64, fields map[string]any) (*domain.Deal, error) {
	d, ok := f.deals[id]
	if !ok {
		return nil, domain.ErrDealNotFound
	}
	f.updates = append(f.updates, fields)
	for k, v := range fields {
		switch k {
		case "stage_key":
			d.StageKey = v.(string)
		case "client_name":
			d.ClientName = v.(string)
		case "product":
			d.Product = v.(string)
		case "quantity":
			d.Quantity = v.(int)
		case "note":
			d.Note = v.(string)
		}
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeals) DeleteDeal(_ context.Context, id int64) error {
	if _, ok := f.deals[id]; !ok {
		return domain.ErrDealNotFound
	}
	delete(f.deals, id)
	return nil
}

func (f *fakeDeals) SearchClients(_ context.Context, name string) ([]domain.Client, error) {
	var out []domain.Client
	for _, c := range f.clients {
		if strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDeals) CountDealsNotInStage(_ context.Context, stageKey string) (int, error) {
	n := 0
	for _, d := range f.deals {
		if d.StageKey != stageKey {
			n++
		}
	}
	return n, nil
}

func (f *fakeDeals) MoveAllToStage(_ context.Context, stageKey string) (int, error) {
	n := 0
	for _, d := range f.deals {
		if d.StageKey != stageKey {
			d.StageKey = stageKey
			n++
		}
	}
	f.moved = n
	return n, nil
}

func (f *fakeDeals) StageCounts(_ context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, d := range f.deals {
		out[d.StageKey]++
	}
	return out, nil
}

type fakeTasks struct {
	tasks     map[int64]*domain.Task
	attention domain.TaskAttention
	nextID    int64
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: map[int64]*domain.Task{}, nextID: 500}
}

func (f *fakeTasks) CreateTask(_ context.Context, draft domain.TaskDraft, userID int64) (*domain.Task, error) {
	f.nextID++
	t := &domain.Task{
		ID: f.nextID, UserID: userID, Title: draft.Title,
		Deadline: draft.Deadline, Priority: draft.Priority, CreatedAt: testNow,
	}
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeTasks) GetTaskByID(_ context.Context, id int64) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) CompleteTask(_ context.Context, id int64) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Done {
		return nil, domain.ErrTaskAlreadyDone
	}
	t.Done = true
	at := testNow
	t.DoneAt = &at
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) GetMyTasks(_ context.Context, userID int64) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range f.tasks {
		if t.UserID == userID && !t.Done {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTasks) GetUrgentTasks(_ context.Context, userID int64) ([]domain.Task, error) {
	return f.attention.Urgent, nil
}

func (f *fakeTasks) GetTasksNeedingAttention(_ context.Context, _ int64) (*domain.TaskAttention, error) {
	cp := f.attention
	return &cp, nil
}

type fakeStages struct{ stages []domain.Stage }

func (f *fakeStages) ListStages(_ context.Context) ([]domain.Stage, error) {
	return f.stages, nil
}

type stubLLM struct {
	result domain.LLMParse
	calls  int
}

func (s *stubLLM) Parse(_ context.Context, _ string) domain.LLMParse {
	s.calls++
	return s.result
}

type fixture struct {
	engine   *Engine
	deals    *fakeDeals
	tasks    *fakeTasks
	llm      *stubLLM
	sessions *MapSessionStore
	contexts *memory.MapStore
}

func newFixture() *fixture {
	f := &fixture{
		deals:    newFakeDeals(),
		tasks:    newFakeTasks(),
		llm:      &stubLLM{},
		sessions: NewMapSessionStore(),
		contexts: memory.NewMapStore(),
	}
	f.engine = New(Deps{
		Deals: f.deals,
		Tasks: f.tasks,
		Stages: &fakeStages{stages: []domain.Stage{
			{Key: "new", Name: "Новая", Position: 1},
			{Key: "measure", Name: "Замер", Position: 2},
			{Key: "production", Name: "Производство", Position: 3},
			{Key: "delivery", Name: "Доставка", Position: 4},
		}},
		LLM:        f.llm,
		Sessions:   f.sessions,
		Contexts:   f.contexts,
		CRMBaseURL: "https://crm.example.ru",
		Now:        func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) say(t *testing.T, userID int64, text string) Response {
	t.Helper()
	return f.engine.Process(context.Background(), Request{UserID: userID, Message: text})
}

func (f *fixture) press(t *testing.T, userID int64, action, data string) Response {
	t.Helper()
	return f.engine.Process(context.Background(), Request{UserID: userID, Action: action, ActionData: data})
}

func (f *fixture) seedDeal(d domain.Deal) {
	cp := d
	f.deals.deals[d.ID] = &cp
}

func buttonWith(resp Response, action string) (Button, bool) {
	for _, b := range resp.Buttons {
		if b.Action == action {
			return b, true
		}
	}
	return Button{}, false
}

func TestStepwiseDealCreation(t *testing.T) {
	f := newFixture()
	const user = int64(7)

	resp := f.say(t, user, "создай сделку")
	if resp.State != domain.StateModeSelect {
		t.Fatalf("after create command: state = %s, want %s", resp.State, domain.StateModeSelect)
	}

	resp = f.say(t, user, "по шагам")
	if resp.State != domain.StateDealClient {
		t.Fatalf("after mode choice: state = %s, want %s", resp.State, domain.StateDealClient)
	}

	resp = f.say(t, user, "Иванов")
	if resp.State != domain.StateDealProduct {
		t.Fatalf("after new client name: state = %s, want %s", resp.State, domain.StateDealProduct)
	}

	resp = f.say(t, user, "пропусти")
	if resp.State != domain.StateDealStage {
		t.Fatalf("after product skip: state = %s, want %s", resp.State, domain.StateDealStage)
	}

	resp = f.press(t, user, ActionSkip, "")
	if resp.State != domain.StateDealConfirm {
		t.Fatalf("after stage skip: state = %s, want %s", resp.State, domain.StateDealConfirm)
	}
	if !strings.Contains(resp.Message, "Иванов") {
		t.Errorf("confirmation card misses the client: %q", resp.Message)
	}

	resp = f.say(t, user, "да")
	if resp.State != domain.StateIdle {
		t.Fatalf("after confirm: state = %s, want %s", resp.State, domain.StateIdle)
	}
	if len(f.deals.created) != 1 {
		t.Fatalf("created %d deals, want 1", len(f.deals.created))
	}
	got := f.deals.created[0]
	if got.ClientName != "Иванов" {
		t.Errorf("client = %q, want Иванов", got.ClientName)
	}
	if got.StageKey != "new" {
		t.Errorf("stage = %q, want default first stage", got.StageKey)
	}
	if !strings.Contains(resp.Message, "создана") {
		t.Errorf("final message = %q", resp.Message)
	}
}

func TestExistingClientConfirmation(t *testing.T) {
	f := newFixture()
	f.deals.clients = []domain.Client{{ID: 1, Name: "Иванов", Phone: "+79120000000"}}
	const user = int64(8)

	f.say(t, user, "создай сделку")
	f.say(t, user, "по шагам")
	resp := f.say(t, user, "иванов")
	if resp.State != domain.StateDealClientConfirm {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateDealClientConfirm)
	}

	resp = f.say(t, user, "да")
	if resp.State != domain.StateDealProduct {
		t.Fatalf("after pick: state = %s, want %s", resp.State, domain.StateDealProduct)
	}
	sess, _ := f.sessions.Get(context.Background(), user)
	if sess.DraftDeal.ClientName != "Иванов" {
		t.Errorf("draft client = %q, want the canonical name", sess.DraftDeal.ClientName)
	}
}

func TestOrderNumberOpensDeal(t *testing.T) {
	f := newFixture()
	f.seedDeal(domain.Deal{ID: 275, ClientName: "Петров", Product: "кухня", StageKey: "measure"})
	const user = int64(9)

	resp := f.say(t, user, "#275")
	if resp.State != domain.StateDealView {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateDealView)
	}
	if !strings.Contains(resp.Message, "№275") || !strings.Contains(resp.Message, "Петров") {
		t.Errorf("deal card = %q", resp.Message)
	}
}

func TestStageEditFromOpenDeal(t *testing.T) {
	f := newFixture()
	f.seedDeal(domain.Deal{ID: 275, ClientName: "Петров", Product: "кухня", StageKey: "measure"})
	const user = int64(10)

	f.say(t, user, "#275")
	resp := f.say(t, user, "переведи её этап на производство")
	if resp.State != domain.StateDealEditConfirm {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateDealEditConfirm)
	}
	if !strings.Contains(resp.Message, "Замер") || !strings.Contains(resp.Message, "Производство") {
		t.Errorf("old→new line = %q", resp.Message)
	}

	resp = f.say(t, user, "да")
	if resp.State != domain.StateDealView {
		t.Fatalf("after confirm: state = %s, want %s", resp.State, domain.StateDealView)
	}
	if len(f.deals.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.deals.updates))
	}
	if got := f.deals.updates[0]["stage_key"]; got != "production" {
		t.Errorf("stage_key update = %v, want production", got)
	}
}

// TestEditTargetResolution covers the three context situations for
// "change the stage" with no explicit deal number.
func TestEditTargetResolution(t *testing.T) {
	t.Run("open deal goes straight to confirmation", func(t *testing.T) {
		f := newFixture()
		f.seedDeal(domain.Deal{ID: 301, ClientName: "Сидоров", StageKey: "new"})
		f.say(t, 11, "#301")
		resp := f.say(t, 11, "поменяй этап на замер")
		if resp.State != domain.StateDealEditConfirm {
			t.Fatalf("state = %s, want %s", resp.State, domain.StateDealEditConfirm)
		}
	})

	t.Run("remembered deal asks which one", func(t *testing.T) {
		f := newFixture()
		f.seedDeal(domain.Deal{ID: 302, ClientName: "Сидоров", Product: "шкаф", StageKey: "new"})
		mem := memory.New(12, testNow)
		mem.RememberDeal(memory.DealMention{ID: 302, Title: "шкаф"}, testNow)
		f.contexts.Put(context.Background(), mem)

		resp := f.say(t, 12, "поменяй этап на замер")
		if resp.State != domain.StateNeedDealContext {
			t.Fatalf("state = %s, want %s", resp.State, domain.StateNeedDealContext)
		}
		if !strings.Contains(resp.Message, "№302") {
			t.Errorf("question = %q", resp.Message)
		}

		resp = f.say(t, 12, "да")
		if resp.State != domain.StateDealEditField {
			t.Fatalf("after yes: state = %s, want stage picker (%s)", resp.State, domain.StateDealEditField)
		}
	})

	t.Run("no context prompts a search", func(t *testing.T) {
		f := newFixture()
		resp := f.say(t, 13, "поменяй этап на замер")
		if resp.State != domain.StateDealSearch {
			t.Fatalf("state = %s, want %s", resp.State, domain.StateDealSearch)
		}
	})
}

func TestBriefingAllDone(t *testing.T) {
	f := newFixture()
	resp := f.say(t, 14, "что срочно сегодня")
	want := config.AllDonePhrases[config.StyleFriendly]
	if resp.Message != want {
		t.Fatalf("message = %q, want exactly %q", resp.Message, want)
	}
	if _, ok := buttonWith(resp, ActionTaskCreate); !ok {
		t.Error("all-done briefing should offer to create a task")
	}
}

func TestBriefingBuckets(t *testing.T) {
	f := newFixture()
	deadline := testNow.Add(-24 * time.Hour)
	f.tasks.attention = domain.TaskAttention{
		Overdue: []domain.Task{{ID: 1, Title: "Позвонить Иванову", Deadline: &deadline, Priority: domain.TaskPriorityHigh}},
		Urgent:  []domain.Task{{ID: 2, Title: "Согласовать замер", Priority: domain.TaskPriorityHigh}},
	}
	resp := f.say(t, 15, "что срочно")
	if !strings.Contains(resp.Message, "Позвонить Иванову") || !strings.Contains(resp.Message, "Согласовать замер") {
		t.Errorf("briefing = %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "Просрочено") {
		t.Errorf("briefing misses the overdue section: %q", resp.Message)
	}
}

func TestTaskWizard(t *testing.T) {
	f := newFixture()
	const user = int64(16)

	resp := f.press(t, user, ActionTaskCreate, "")
	if resp.State != domain.StateTaskCreateTitle {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateTaskCreateTitle)
	}

	resp = f.say(t, user, "Заказать фурнитуру")
	if resp.State != domain.StateTaskCreateDeadline {
		t.Fatalf("after title: state = %s, want %s", resp.State, domain.StateTaskCreateDeadline)
	}

	resp = f.say(t, user, "через 3 дня")
	if resp.State != domain.StateTaskCreatePriority {
		t.Fatalf("after deadline: state = %s, want %s", resp.State, domain.StateTaskCreatePriority)
	}

	resp = f.press(t, user, ActionTaskPriority, domain.TaskPriorityHigh)
	if resp.State != domain.StateIdle {
		t.Fatalf("after priority: state = %s, want %s", resp.State, domain.StateIdle)
	}
	if len(f.tasks.tasks) != 1 {
		t.Fatalf("tasks created = %d, want 1", len(f.tasks.tasks))
	}
	for _, task := range f.tasks.tasks {
		if task.Title != "Заказать фурнитуру" {
			t.Errorf("title = %q", task.Title)
		}
		if task.Deadline == nil || task.Deadline.Day() != 13 {
			t.Errorf("deadline = %v, want March 13", task.Deadline)
		}
		if task.Priority != domain.TaskPriorityHigh {
			t.Errorf("priority = %q", task.Priority)
		}
	}
}

func TestCompleteTask(t *testing.T) {
	f := newFixture()
	f.tasks.tasks[600] = &domain.Task{ID: 600, UserID: 17, Title: "Сдать отчет"}

	resp := f.press(t, 17, ActionTaskDone, "600")
	if !strings.Contains(resp.Message, "завершена") {
		t.Errorf("message = %q", resp.Message)
	}
	if !f.tasks.tasks[600].Done {
		t.Error("task not marked done")
	}

	resp = f.press(t, 17, ActionTaskDone, "600")
	if !strings.Contains(resp.Message, "уже завершена") {
		t.Errorf("double completion message = %q", resp.Message)
	}
}

func TestLLMFallback(t *testing.T) {
	f := newFixture()
	f.llm.result = domain.LLMParse{
		Type:        domain.LLMParseDeal,
		ClientName:  "Смирнова",
		ProductName: "шкаф-купе",
		Quantity:    2,
	}

	resp := f.say(t, 18, "нужен шкафчик как в том каталоге для смирновой")
	if !resp.UsedAI {
		t.Fatal("UsedAI = false, want true for an unclassified message")
	}
	if f.llm.calls != 1 {
		t.Fatalf("llm calls = %d, want 1", f.llm.calls)
	}
	if resp.State != domain.StateDealConfirm {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateDealConfirm)
	}
	if !strings.Contains(resp.Message, "Смирнова") || !strings.Contains(resp.Message, "шкаф-купе") {
		t.Errorf("confirmation = %q", resp.Message)
	}
}

func TestLLMNotConsultedOnConfidentCommand(t *testing.T) {
	f := newFixture()
	resp := f.say(t, 19, "привет")
	if resp.UsedAI {
		t.Error("greeting should not touch the language model")
	}
	if f.llm.calls != 0 {
		t.Errorf("llm calls = %d, want 0", f.llm.calls)
	}
}

func TestFieldAnswerNotEscalated(t *testing.T) {
	f := newFixture()
	const user = int64(20)
	f.say(t, user, "создай сделку")
	f.say(t, user, "по шагам")
	// A bare surname classifies as unknown, but inside the client step
	// it is the answer, not a command.
	f.say(t, user, "Кузнецов")
	if f.llm.calls != 0 {
		t.Errorf("llm calls = %d, want 0 inside a collecting state", f.llm.calls)
	}
}

func TestQuantityNumberPriority(t *testing.T) {
	f := newFixture()
	const user = int64(21)
	f.say(t, user, "создай сделку")
	f.say(t, user, "по шагам")
	f.say(t, user, "Иванов")
	f.say(t, user, "кухня")

	resp := f.say(t, user, "275")
	if resp.State != domain.StateDealStage {
		t.Fatalf("state = %s, want %s (number is a quantity here)", resp.State, domain.StateDealStage)
	}
	sess, _ := f.sessions.Get(context.Background(), user)
	if sess.DraftDeal.Quantity != 275 {
		t.Errorf("quantity = %d, want 275", sess.DraftDeal.Quantity)
	}
}

func TestCancelWinsInAnyState(t *testing.T) {
	f := newFixture()
	const user = int64(22)
	f.say(t, user, "создай сделку")
	f.say(t, user, "по шагам")

	resp := f.say(t, user, "отмена")
	if resp.State != domain.StateIdle {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateIdle)
	}
	if len(f.deals.created) != 0 {
		t.Error("cancel must not create anything")
	}
}

func TestBulkTransfer(t *testing.T) {
	f := newFixture()
	for i := int64(1); i <= 3; i++ {
		f.seedDeal(domain.Deal{ID: i, ClientName: fmt.Sprintf("Клиент %d", i), StageKey: "new"})
	}
	const user = int64(23)

	resp := f.say(t, user, "перенеси все сделки на этап доставка")
	if resp.State != domain.StateBulkConfirm {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateBulkConfirm)
	}
	if !strings.Contains(resp.Message, "3") {
		t.Errorf("preview should name the count: %q", resp.Message)
	}

	confirm, ok := buttonWith(resp, ActionBulkConfirm)
	if !ok {
		t.Fatal("preview has no confirm button")
	}

	// A stale token re-renders the preview instead of executing.
	resp = f.press(t, user, ActionBulkConfirm, "stale-token")
	if f.deals.moved != 0 {
		t.Fatal("stale token must not execute the transfer")
	}
	if resp.State != domain.StateBulkConfirm {
		t.Fatalf("after stale token: state = %s, want a fresh preview", resp.State)
	}
	fresh, ok := buttonWith(resp, ActionBulkConfirm)
	if !ok {
		t.Fatal("fresh preview has no confirm button")
	}
	if fresh.Data == confirm.Data {
		t.Error("fresh preview should carry a new token")
	}

	resp = f.press(t, user, ActionBulkConfirm, fresh.Data)
	if f.deals.moved != 3 {
		t.Fatalf("moved = %d, want 3", f.deals.moved)
	}
	if !strings.Contains(resp.Message, "Доставка") {
		t.Errorf("result = %q", resp.Message)
	}
}

func TestSearchPagination(t *testing.T) {
	f := newFixture()
	for i := int64(1); i <= 7; i++ {
		f.seedDeal(domain.Deal{ID: i, ClientName: "Иванов", Product: fmt.Sprintf("изделие %d", i), StageKey: "new"})
	}
	const user = int64(24)

	f.press(t, user, ActionSearchDeals, "")
	resp := f.say(t, user, "Иванов")
	if resp.State != domain.StateDealSearchResult {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateDealSearchResult)
	}
	if !strings.Contains(resp.Message, "Нашлось 7") {
		t.Errorf("results header = %q", resp.Message)
	}
	next, ok := buttonWith(resp, ActionPage)
	if !ok {
		t.Fatal("first page has no pagination button")
	}

	resp = f.press(t, user, ActionPage, next.Data)
	if !strings.Contains(resp.Message, "Страница 2 из 2") {
		t.Errorf("second page = %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "№6") || !strings.Contains(resp.Message, "№7") {
		t.Errorf("second page misses the tail deals: %q", resp.Message)
	}
}

func TestSingleMatchOpensDirectly(t *testing.T) {
	f := newFixture()
	f.seedDeal(domain.Deal{ID: 42, ClientName: "Орлова", Product: "стол", StageKey: "new"})

	resp := f.say(t, 25, "найди сделку клиента Орлова")
	if resp.State != domain.StateDealView {
		t.Fatalf("state = %s, want %s for a single match", resp.State, domain.StateDealView)
	}
}

func TestUnknownOrderNumber(t *testing.T) {
	f := newFixture()
	resp := f.say(t, 26, "#999")
	if !strings.Contains(resp.Message, "не найдена") {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.State != domain.StateIdle {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateIdle)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newFixture()
	f.seedDeal(domain.Deal{ID: 50, ClientName: "Белов", StageKey: "new"})
	const user = int64(27)

	resp := f.say(t, user, "удали сделку #50")
	if !strings.Contains(resp.Message, "Удалить") {
		t.Fatalf("no confirmation question: %q", resp.Message)
	}
	if _, ok := f.deals.deals[50]; !ok {
		t.Fatal("deal removed before confirmation")
	}

	btn, ok := buttonWith(resp, ActionDeleteConfirm)
	if !ok {
		t.Fatal("no delete confirm button")
	}
	f.press(t, user, ActionDeleteConfirm, btn.Data)
	if _, ok := f.deals.deals[50]; ok {
		t.Error("deal still present after confirmation")
	}
}

func TestStageReport(t *testing.T) {
	f := newFixture()
	f.seedDeal(domain.Deal{ID: 1, StageKey: "new"})
	f.seedDeal(domain.Deal{ID: 2, StageKey: "new"})
	f.seedDeal(domain.Deal{ID: 3, StageKey: "delivery"})

	resp := f.say(t, 28, "покажи отчет")
	if !strings.Contains(resp.Message, "Новая: 2") || !strings.Contains(resp.Message, "Доставка: 1") {
		t.Errorf("report = %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "Всего: 3") {
		t.Errorf("report total = %q", resp.Message)
	}
}

// TestEveryStateAnswers drives an unparseable message through every
// dialog state and requires a non-empty reply with buttons or a menu;
// no state may swallow a turn.
func TestEveryStateAnswers(t *testing.T) {
	for _, state := range domain.AllDialogStates {
		state := state
		t.Run(string(state), func(t *testing.T) {
			f := newFixture()
			f.seedDeal(domain.Deal{ID: 77, ClientName: "Тестов", StageKey: "new"})
			deal, _ := f.deals.GetDealByID(context.Background(), 77)

			sess := domain.NewDialogSession(30)
			sess.State = state
			sess.DraftDeal = &domain.DealDraft{ClientName: "Тестов"}
			sess.DraftTask = &domain.TaskDraft{Title: "тест"}
			sess.CurrentDeal = deal
			sess.EditField = "note"
			sess.UpdatedAt = testNow
			f.sessions.Put(context.Background(), sess)

			resp := f.say(t, 30, "бурлыб")
			if resp.Message == "" {
				t.Fatalf("state %s answered with an empty message", state)
			}
			if len(resp.Buttons) == 0 {
				t.Fatalf("state %s answered without buttons: %q", state, resp.Message)
			}
		})
	}
}

func TestFormModeRedirects(t *testing.T) {
	f := newFixture()
	const user = int64(31)
	f.say(t, user, "создай сделку")
	resp := f.press(t, user, ActionModeForm, "")
	if resp.Redirect == "" || !strings.HasPrefix(resp.Redirect, "https://crm.example.ru") {
		t.Fatalf("redirect = %q, want the CRM form url", resp.Redirect)
	}
	if resp.State != domain.StateIdle {
		t.Fatalf("state = %s, want %s after handing off to the form", resp.State, domain.StateIdle)
	}
}

func TestContextSuggestionsInGreeting(t *testing.T) {
	f := newFixture()
	f.seedDeal(domain.Deal{ID: 88, ClientName: "Громов", Product: "кровать", StageKey: "new"})
	const user = int64(32)

	f.say(t, user, "#88")
	resp := f.say(t, user, "привет")
	if !strings.Contains(resp.Message, "№88") {
		t.Errorf("greeting should suggest continuing with the last deal: %q", resp.Message)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	f := newFixture()
	const user = int64(33)
	for i := 0; i < config.MaxHistoryEntries; i++ {
		f.say(t, user, "привет")
	}
	sess, _ := f.sessions.Get(context.Background(), user)
	if len(sess.History) > config.MaxHistoryEntries {
		t.Fatalf("history = %d entries, cap is %d", len(sess.History), config.MaxHistoryEntries)
	}
}
