package nlp

import "testing"

func TestDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"кот", "", 3},
		{"кот", "кот", 0},
		{"кот", "код", 1},
		{"иванов", "иванофф", 2},
		{"шкаф", "шкафы", 1},
	}
	for _, c := range cases {
		if got := Distance(c.a, c.b); got != c.want {
			t.Errorf("Distance(%q,%q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("", ""); got != 100 {
		t.Errorf("two empty strings: got %d, want 100", got)
	}
	if got := Similarity("стол", "стол"); got != 100 {
		t.Errorf("identical: got %d, want 100", got)
	}
	// ivanov vs ivanoff: distance 2, max len 7 → round(71.4) = 71.
	if got := Similarity("ivanov", "ivanoff"); got != 71 {
		t.Errorf("ivanov/ivanoff: got %d, want 71", got)
	}
}

func TestFuzzyThresholdBoundary(t *testing.T) {
	// "иванов" vs "иванфф": distance 2, max len 6 → round(66.7) = 67.
	score := Similarity("иванов", "иванфф")
	items := []string{"иванфф"}

	if _, ok := FuzzyContains("иванов", items, score); !ok {
		t.Errorf("score %d at threshold %d must be included", score, score)
	}
	if _, ok := FuzzyContains("иванов", items, score+1); ok {
		t.Errorf("score %d one below threshold %d must be excluded", score, score+1)
	}
}

func TestMatchClient(t *testing.T) {
	// Substring match wins outright.
	if got := MatchClient("иванов", "ООО Иванов и партнеры"); got != 100 {
		t.Errorf("substring: got %d, want 100", got)
	}
	// Shared 3-char prefix primes the score to at least 80.
	if got := MatchClient("ивашков", "Иванников"); got < 80 {
		t.Errorf("prefix priming: got %d, want >= 80", got)
	}
	// ivanov/ivanoff similarity 71 clears the client threshold of 50.
	if got := MatchClient("ivanov", "ivanoff"); got < 50 {
		t.Errorf("ivanov/ivanoff: got %d, want >= 50", got)
	}
	if got := MatchClient("", "Иванов"); got != 0 {
		t.Errorf("empty query: got %d, want 0", got)
	}
}
