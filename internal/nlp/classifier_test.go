package nlp

import (
	"testing"

	"github.com/vkarpekin/mebelbot/internal/domain"
)

func TestClassifyShortCommands(t *testing.T) {
	cases := []struct {
		text   string
		action domain.Action
		conf   int
	}{
		{"отмена", domain.ActionCancel, 100},
		{"да", domain.ActionConfirm, 100},
		{"привет", domain.ActionGreeting, 100},
		{"что ты умеешь?", domain.ActionHelp, 100},
	}
	for _, c := range cases {
		got := Classify(c.text, nil)
		if got.Action != c.action || got.Confidence != c.conf {
			t.Errorf("Classify(%q) = %s/%d, want %s/%d",
				c.text, got.Action, got.Confidence, c.action, c.conf)
		}
	}
}

func TestClassifyCreateDeal(t *testing.T) {
	got := Classify("Создай сделку для Иванова", nil)
	if got.Action != domain.ActionCreate || got.Target != domain.EntityDeal {
		t.Fatalf("got %s/%s", got.Action, got.Target)
	}
	if got.Confidence != 95 {
		t.Errorf("confidence = %d, want 95", got.Confidence)
	}
	if got.Get("client_name") != "Иванова" {
		t.Errorf("client_name = %q", got.Get("client_name"))
	}
}

func TestClassifyOrderNumberShortcut(t *testing.T) {
	got := Classify("#275", nil)
	if got.Action != domain.ActionSearch || got.Get("order_number") != "275" {
		t.Fatalf("got %s order=%q", got.Action, got.Get("order_number"))
	}
	if got.Confidence < 50 {
		t.Errorf("confidence = %d, expected a confident local match", got.Confidence)
	}
}

func TestClassifySearchUnmarkedNumber(t *testing.T) {
	// The #/№ marker is optional next to a search verb.
	got := Classify("покажи 275", nil)
	if got.Action != domain.ActionSearch || got.Get("order_number") != "275" {
		t.Fatalf("got %s order=%q", got.Action, got.Get("order_number"))
	}
	if got.Confidence < 50 {
		t.Errorf("confidence = %d, expected a confident local match", got.Confidence)
	}

	got = Classify("найди сделку 12", nil)
	if got.Action != domain.ActionSearch || got.Get("order_number") != "12" {
		t.Fatalf("got %s order=%q", got.Action, got.Get("order_number"))
	}
}

func TestClassifyEditStageWithContext(t *testing.T) {
	got := Classify("переведи её этап на производство", nil)
	if got.Action != domain.ActionEdit {
		t.Fatalf("action = %s, want edit", got.Action)
	}
	if !got.UseContext {
		t.Error("expected UseContext")
	}
	if got.Confidence < 80 {
		t.Errorf("confidence = %d, want >= 80", got.Confidence)
	}
	if got.Get("stage") != "производство" {
		t.Errorf("stage = %q", got.Get("stage"))
	}
}

func TestClassifyNumberOverrideInQuantityState(t *testing.T) {
	sess := domain.NewDialogSession(1)
	sess.State = domain.StateDealQuantity

	got := Classify("3", sess)
	if got.Action != domain.ActionNumber || got.Get("number") != "3" {
		t.Fatalf("got %s/%q", got.Action, got.Get("number"))
	}

	// Outside the quantity state a bare small number is a search.
	got = Classify("3", nil)
	if got.Action != domain.ActionSearch {
		t.Errorf("outside quantity state: got %s, want search", got.Action)
	}
}

func TestClassifyBulk(t *testing.T) {
	got := Classify("перенеси все сделки на этап доставка", nil)
	if got.Action != domain.ActionBulk {
		t.Fatalf("action = %s, want bulk", got.Action)
	}
	if got.Get("stage") != "доставка" {
		t.Errorf("stage = %q", got.Get("stage"))
	}
	if got.Confidence != 75 {
		t.Errorf("confidence = %d, want 75", got.Confidence)
	}
}

func TestClassifyTaskBriefing(t *testing.T) {
	got := Classify("что срочного сегодня?", nil)
	if got.Action != domain.ActionTaskBriefing {
		t.Fatalf("action = %s, want task_briefing", got.Action)
	}
}

func TestClassifyUnknownLowConfidence(t *testing.T) {
	got := Classify("лазурный берег манит вдаль", nil)
	if got.Action != domain.ActionUnknown {
		t.Fatalf("action = %s, want unknown", got.Action)
	}
	if got.Confidence != 20 {
		t.Errorf("confidence = %d, want 20", got.Confidence)
	}
}
