package nlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Extractors work on raw text because case and punctuation carry signal
// ("#275", quoted stage names); only the client-name and stage patterns
// expect normalized input.

var (
	digitGapRe = regexp.MustCompile(`(\d)\s+(\d)`)
	numberRe   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

	orderMarkedRe = regexp.MustCompile(`[#№]\s*(\d{1,5})`)
	orderBareRe   = regexp.MustCompile(`^\s*(\d{1,5})\s*$`)

	clientPatterns = []*regexp.Regexp{
		regexp.MustCompile(`сделк[а-яё]*\s+клиента\s+([\pL]+)`),
		regexp.MustCompile(`для\s+([\pL]+)`),
		regexp.MustCompile(`клиент[а-яё]*\s+([\pL]+)`),
	}

	stagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`этап[а-яё]*\s+[«"']([^«»"']+)[»"']`),
		regexp.MustCompile(`этап[а-яё]*\s+на\s+([\pL]+(?:\s+[\pL]+)?)`),
		regexp.MustCompile(`(?:на|в)\s+этап[а-яё]*\s+([\pL]+(?:\s+[\pL]+)?)`),
		regexp.MustCompile(`этап[а-яё]*\s+([\pL]+)`),
	}

	dateNumericRe = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})(?:\.(\d{2,4}))?`)
	inDaysRe      = regexp.MustCompile(`через\s+(\d+)\s+(?:день|дня|дней)`)
)

// ExtractNumber returns the first decimal number in the text, after
// gluing digit groups separated by spaces (thousand separators).
func ExtractNumber(text string) (float64, bool) {
	t := text
	for digitGapRe.MatchString(t) {
		t = digitGapRe.ReplaceAllString(t, "$1$2")
	}
	m := numberRe.FindString(t)
	if m == "" {
		return 0, false
	}
	m = strings.ReplaceAll(m, ",", ".")
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractOrderNumber returns the digits of an order reference: either a
// `#`/`№`-marked run or the whole message being 1-5 bare digits.
func ExtractOrderNumber(text string) (string, bool) {
	if m := orderMarkedRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := orderBareRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// ExtractClientName tries the possessive patterns against normalized
// text; the first match wins.
func ExtractClientName(normalized string) (string, bool) {
	for _, re := range clientPatterns {
		if m := re.FindStringSubmatch(normalized); m != nil {
			return capitalize(m[1]), true
		}
	}
	return "", false
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// ExtractStage pulls the stage phrase following "этап"/"статус"
// (normalization folds both to "этап") from normalized text.
func ExtractStage(normalized string) (string, bool) {
	for _, re := range stagePatterns {
		if m := re.FindStringSubmatch(normalized); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// ExtractDate recognizes relative day words before falling back to a
// numeric DD.MM[.YYYY] pattern. Two-digit years mean 2000+year.
func ExtractDate(text string, now time.Time) (time.Time, bool) {
	t := strings.ToLower(text)
	day := func(d int) time.Time {
		y, m, dd := now.AddDate(0, 0, d).Date()
		return time.Date(y, m, dd, 0, 0, 0, 0, now.Location())
	}
	switch {
	case strings.Contains(t, "послезавтра"):
		return day(2), true
	case strings.Contains(t, "сегодня"):
		return day(0), true
	case strings.Contains(t, "завтра"):
		return day(1), true
	}
	if m := inDaysRe.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		return day(n), true
	}
	if m := dateNumericRe.FindStringSubmatch(t); m != nil {
		dd, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		yy := now.Year()
		if m[3] != "" {
			yy, _ = strconv.Atoi(m[3])
			if yy < 100 {
				yy += 2000
			}
		}
		if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
			return time.Time{}, false
		}
		return time.Date(yy, time.Month(mm), dd, 0, 0, 0, 0, now.Location()), true
	}
	return time.Time{}, false
}

// contextRefWords are the anaphoric/demonstrative markers that signal a
// reference to something mentioned earlier. The demonstrative is listed
// in all its case forms; a bare "эт" stem would also catch "этап".
var contextRefWords = []string{
	"это", "эта", "этот", "этой", "эту",
	"этого", "этому", "этом", "эти", "этим", "этих", "этими",
	"его", "её", "ее",
	"там", "туда",
}

var contextRefStems = []string{"текущ", "последн"}

// HasContextRef reports whether the text contains any anaphoric marker.
func HasContextRef(text string) bool {
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		for _, ref := range contextRefWords {
			if w == ref {
				return true
			}
		}
		for _, stem := range contextRefStems {
			if strings.HasPrefix(w, stem) {
				return true
			}
		}
	}
	return false
}

// ClassifyContextRef narrows the referent of a contextual reference.
// Returns "deal", "client" or "" when the referent is unspecified.
func ClassifyContextRef(text string) string {
	if !HasContextRef(text) {
		return ""
	}
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "сделк") || strings.Contains(t, "заказ"):
		return "deal"
	case strings.Contains(t, "клиент") || strings.Contains(t, "заказчик"):
		return "client"
	}
	return ""
}
