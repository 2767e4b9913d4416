// Package nlp contains the deterministic text-understanding pipeline:
// normalization, fragment extractors, fuzzy matching and the rule-based
// intent classifier. Everything here is local and free; the language
// model is only consulted when this package gives up.
package nlp

import (
	"regexp"
	"strings"
)

// typoFixes maps frequent misspellings to canonical words. Matching is
// per whole token, so a typo inside a longer unrelated word is left alone.
var typoFixes = map[string]string{
	"сделак":      "сделка",
	"сдекла":      "сделка",
	"сдлека":      "сделка",
	"следка":      "сделка",
	"сделик":      "сделки",
	"клеинт":      "клиент",
	"килент":      "клиент",
	"кленит":      "клиент",
	"этпа":        "этап",
	"эатп":        "этап",
	"задча":       "задача",
	"здаача":      "задача",
	"созадть":     "создать",
	"содзать":     "создать",
	"создйа":      "создай",
	"покажы":      "покажи",
	"пакажи":      "покажи",
	"найид":       "найди",
	"нйди":        "найди",
	"отмнеа":      "отмена",
	"атмена":      "отмена",
	"срочо":       "срочно",
	"сргодня":     "сегодня",
	"севодня":     "сегодня",
	"зфвтра":      "завтра",
	"произвдство": "производство",
	"празводство": "производство",
}

// synonyms folds domain vocabulary to one canonical term per concept.
var synonyms = map[string]string{
	"заказ":      "сделка",
	"заказы":     "сделки",
	"заявка":     "сделка",
	"заявки":     "сделки",
	"заказчик":   "клиент",
	"заказчика":  "клиента",
	"покупатель": "клиент",
	"покупателя": "клиента",
	"товар":      "изделие",
	"продукт":    "изделие",
	"продукция":  "изделие",
	"мебель":     "изделие",
	"статус":     "этап",
	"стадия":     "этап",
	"стадию":     "этап",
	"таск":       "задача",
	"таски":      "задачи",
	"дело":       "задача",
}

var (
	wordRe  = regexp.MustCompile(`[\pL\pN]+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases the text, fixes known typos, folds synonyms to
// canonical terms (both on word boundaries) and collapses whitespace.
// Idempotent: every replacement value is itself a fixed point.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	t := strings.ToLower(text)
	t = wordRe.ReplaceAllStringFunc(t, func(w string) string {
		if fix, ok := typoFixes[w]; ok {
			w = fix
		}
		if canon, ok := synonyms[w]; ok {
			w = canon
		}
		return w
	})
	t = spaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
