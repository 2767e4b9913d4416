package nlp

import (
	"math"
	"strings"
)

// Distance is the classic dynamic-programming Levenshtein edit distance,
// computed over runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Similarity scores two strings 0..100: round((1 - d/maxLen) * 100).
// Two empty strings score 100.
func Similarity(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 100
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	d := Distance(a, b)
	return int(math.Round((1 - float64(d)/float64(maxLen)) * 100))
}

// FuzzyContains reports whether any item scores at least threshold
// against the query, returning the best-scoring index.
func FuzzyContains(query string, items []string, threshold int) (int, bool) {
	best, bestScore := -1, threshold-1
	q := strings.ToLower(query)
	for i, item := range items {
		score := Similarity(q, strings.ToLower(item))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, best >= 0
}

// MatchClient scores a stored client name against a query. Outright
// substring matches score 100; a shared 3-character prefix primes the
// score to at least 80; otherwise plain edit-distance similarity.
func MatchClient(query, name string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(strings.TrimSpace(name))
	if q == "" || n == "" {
		return 0
	}
	if strings.Contains(n, q) || strings.Contains(q, n) {
		return 100
	}
	score := Similarity(q, n)
	rq, rn := []rune(q), []rune(n)
	if len(rq) >= 3 && len(rn) >= 3 && string(rn[:3]) == string(rq[:3]) && score < 80 {
		score = 80
	}
	return score
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
