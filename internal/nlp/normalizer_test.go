package nlp

import "testing"

func TestNormalizeFixesTyposAndSynonyms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Создай СДЕЛАК", "создай сделка"},
		{"покажы заказ", "покажи сделка"},
		{"статус  заявки", "этап сделки"},
		{"  лишние   пробелы  ", "лишние пробелы"},
		{"", ""},
	}
	for _, c := range cases {
		got := Normalize(c.in)
		if got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeLeavesTypoInsideLongerWordAlone(t *testing.T) {
	// Token-boundary matching: "этпа" is only fixed as a whole word.
	got := Normalize("конэтпаст")
	if got != "конэтпаст" {
		t.Errorf("expected word untouched, got %q", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	samples := []string{
		"Создай сделак для Иванова",
		"покажы все заказы",
		"переведи статус на производство",
		"ЗАКАЗЧИК ждет звонка",
		"найди сделку №275",
		"",
		"что срочо сегодня?",
	}
	for _, s := range samples {
		once := Normalize(s)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", s, once, twice)
		}
	}
}
