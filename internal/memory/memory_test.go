package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)

func TestRecencyCapAndOrdering(t *testing.T) {
	m := New(1, t0)

	for i := 1; i <= 6; i++ {
		m.RememberDeal(DealMention{ID: int64(i)}, t0.Add(time.Duration(i)*time.Minute))
	}

	if len(m.Deals) != 5 {
		t.Fatalf("remembered %d deals, want 5", len(m.Deals))
	}
	if m.Deals[0].ID != 6 {
		t.Errorf("most recent first: got №%d", m.Deals[0].ID)
	}
	if m.Deals[4].ID != 2 {
		t.Errorf("oldest kept: got №%d, want №2", m.Deals[4].ID)
	}

	// Re-remembering moves to front without duplication.
	m.RememberDeal(DealMention{ID: 4}, t0.Add(10*time.Minute))
	if len(m.Deals) != 5 {
		t.Fatalf("after re-remember: %d deals, want 5", len(m.Deals))
	}
	if m.Deals[0].ID != 4 {
		t.Errorf("re-remembered deal not at front: №%d", m.Deals[0].ID)
	}
	seen := map[int64]int{}
	for _, d := range m.Deals {
		seen[d.ID]++
		if seen[d.ID] > 1 {
			t.Errorf("deal №%d duplicated", d.ID)
		}
	}
}

func TestClientDedupCaseInsensitive(t *testing.T) {
	m := New(1, t0)
	m.RememberClient("Иванов", t0)
	m.RememberClient("Петров", t0)
	m.RememberClient("ИВАНОВ", t0)

	if len(m.Clients) != 2 {
		t.Fatalf("got %d clients, want 2", len(m.Clients))
	}
	if m.Clients[0] != "ИВАНОВ" || m.Clients[1] != "Петров" {
		t.Errorf("order = %v", m.Clients)
	}
}

func TestSummaryComposition(t *testing.T) {
	m := New(1, t0)
	m.RememberDeal(DealMention{ID: 275, Title: "кухня"}, t0)
	m.RememberClient("Иванов", t0.Add(time.Minute))
	m.RecordAction("поиск сделки")

	if !strings.Contains(m.Summary, "№275") {
		t.Errorf("summary misses deal: %q", m.Summary)
	}
	if !strings.Contains(m.Summary, "Иванов") {
		t.Errorf("summary misses client: %q", m.Summary)
	}
	if !strings.Contains(m.Summary, "поиск сделки") {
		t.Errorf("summary misses action: %q", m.Summary)
	}

	m.ResetFocus()
	if strings.Contains(m.Summary, "Фокус") {
		t.Errorf("general focus must be omitted: %q", m.Summary)
	}
}

func TestSuggestions(t *testing.T) {
	m := New(1, t0)
	m.RememberDeal(DealMention{ID: 7}, t0)
	m.RememberClient("Сидоров", t0.Add(time.Minute))
	m.Prefs.Mode = "steps"

	sugg := m.Suggestions()
	if len(sugg) == 0 || len(sugg) > 4 {
		t.Fatalf("got %d suggestions", len(sugg))
	}
	joined := strings.Join(sugg, "\n")
	if !strings.Contains(joined, "№7") {
		t.Errorf("no deal suggestion: %v", sugg)
	}
	if !strings.Contains(joined, "Сидоров") {
		t.Errorf("client mentioned after deal: expected create-for-client hint: %v", sugg)
	}

	// Deal mentioned after the client: the create-for-client hint goes away.
	m.RememberDeal(DealMention{ID: 8}, t0.Add(2*time.Minute))
	joined = strings.Join(m.Suggestions(), "\n")
	if strings.Contains(joined, "Создать сделку для") {
		t.Errorf("client hint must require client-more-recent-than-deal: %v", m.Suggestions())
	}
}

func TestContextExpiryFullReset(t *testing.T) {
	ctx := context.Background()
	store := NewMapStore()

	m := New(42, t0)
	m.RememberDeal(DealMention{ID: 1}, t0)
	m.RecordAction("что-то")
	if err := store.Put(ctx, m); err != nil {
		t.Fatal(err)
	}

	// Within 24h: same context survives. This access is itself
	// activity and restarts the clock.
	got, err := Touch(ctx, store, 42, t0.Add(23*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Deals) != 1 {
		t.Fatalf("context lost before expiry")
	}

	// 2h after the last access: still alive.
	got, err = Touch(ctx, store, 42, t0.Add(25*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Deals) != 1 {
		t.Fatalf("context lost 2h after last activity")
	}

	// 25h of silence since the last access: brand-new empty context.
	got, err = Touch(ctx, store, 42, t0.Add(50*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Deals) != 0 || len(got.Actions) != 0 || got.Summary != "" {
		t.Errorf("expected empty context after expiry, got %+v", got)
	}
}

func TestMapStoreEvictExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMapStore()
	for i := 0; i < 3; i++ {
		m := New(int64(i), t0)
		store.Put(ctx, m)
	}
	fresh := New(99, t0.Add(30*time.Hour))
	store.Put(ctx, fresh)

	n, err := store.EvictExpired(ctx, t0.Add(30*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("evicted %d, want 3", n)
	}
	if got, _ := store.Get(ctx, 99); got == nil {
		t.Error("fresh context evicted")
	}
}

func TestSummaryActionsLimitedToThree(t *testing.T) {
	m := New(1, t0)
	for i := 1; i <= 5; i++ {
		m.RecordAction(fmt.Sprintf("действие %d", i))
	}
	if strings.Contains(m.Summary, "действие 2") {
		t.Errorf("summary shows more than three actions: %q", m.Summary)
	}
	if !strings.Contains(m.Summary, "действие 5") {
		t.Errorf("summary misses most recent action: %q", m.Summary)
	}
}
