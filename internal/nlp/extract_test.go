package nlp

import (
	"testing"
	"time"
)

func TestExtractNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"сумма 12 500 рублей", 12500, true},
		{"3,5 метра", 3.5, true},
		{"без чисел", 0, false},
		{"1 000 000", 1000000, true},
	}
	for _, c := range cases {
		got, ok := ExtractNumber(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ExtractNumber(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestExtractOrderNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"покажи #275", "275", true},
		{"сделка № 41", "41", true},
		{"275", "275", true},
		{"откроется 123456", "", false}, // six digits, not an order number
		{"позвони завтра", "", false},
	}
	for _, c := range cases {
		got, ok := ExtractOrderNumber(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ExtractOrderNumber(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestExtractClientName(t *testing.T) {
	norm := Normalize("создай сделку для Иванова")
	name, ok := ExtractClientName(norm)
	if !ok || name != "Иванова" {
		t.Fatalf("got %q,%v", name, ok)
	}

	norm = Normalize("сделка клиента Петров")
	name, ok = ExtractClientName(norm)
	if !ok || name != "Петров" {
		t.Fatalf("got %q,%v", name, ok)
	}
}

func TestExtractStage(t *testing.T) {
	norm := Normalize(`переведи на этап «Производство»`)
	stage, ok := ExtractStage(norm)
	if !ok || stage != "производство" {
		t.Fatalf("got %q,%v", stage, ok)
	}

	norm = Normalize("смени статус замер")
	stage, ok = ExtractStage(norm)
	if !ok || stage != "замер" {
		t.Fatalf("got %q,%v", stage, ok)
	}
}

func TestExtractDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	d, ok := ExtractDate("сделай завтра", now)
	if !ok || !d.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("завтра: got %v,%v", d, ok)
	}

	d, ok = ExtractDate("через 3 дня", now)
	if !ok || !d.Equal(time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("через 3 дня: got %v,%v", d, ok)
	}

	d, ok = ExtractDate("к 25.12", now)
	if !ok || !d.Equal(time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("25.12: got %v,%v", d, ok)
	}

	d, ok = ExtractDate("до 01.02.26", now)
	if !ok || d.Year() != 2026 {
		t.Fatalf("two-digit year: got %v,%v", d, ok)
	}

	if _, ok = ExtractDate("без даты", now); ok {
		t.Fatal("expected no date")
	}
}

func TestContextRef(t *testing.T) {
	if !HasContextRef("открой эту сделку") {
		t.Error("эту: expected context ref")
	}
	if !HasContextRef("измени её этап") {
		t.Error("её: expected context ref")
	}
	if !HasContextRef("позвони этому клиенту") {
		t.Error("этому: expected context ref")
	}
	if !HasContextRef("удали этих клиентов из списка") {
		t.Error("этих: expected context ref")
	}
	if HasContextRef("создай сделку для Иванова") {
		t.Error("unexpected context ref")
	}
	if HasContextRef("поменяй этап сделки") {
		t.Error("этап is not a demonstrative")
	}

	if got := ClassifyContextRef("открой эту сделку"); got != "deal" {
		t.Errorf("referent = %q, want deal", got)
	}
	if got := ClassifyContextRef("позвони этому клиенту"); got != "client" {
		t.Errorf("referent = %q, want client", got)
	}
	if got := ClassifyContextRef("покажи это"); got != "" {
		t.Errorf("referent = %q, want empty", got)
	}
}
