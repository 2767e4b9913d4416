package dialog

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/nlp"
)

// FieldKind decides both how a field prompt is rendered and how the
// user's answer is coerced before it reaches the adapter.
type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldPhone  FieldKind = "phone"
	FieldEmail  FieldKind = "email"
	FieldNumber FieldKind = "number"
	FieldSelect FieldKind = "select"
	FieldDate   FieldKind = "date"
	FieldTags   FieldKind = "tags"
)

// EditableField describes one deal attribute the edit flow can mutate.
type EditableField struct {
	Key   string // adapter update key
	Label string
	Kind  FieldKind
}

// DealFields is the fixed, ordered catalogue of editable deal fields.
var DealFields = []EditableField{
	{Key: "client_name", Label: "Клиент", Kind: FieldText},
	{Key: "client_phone", Label: "Телефон", Kind: FieldPhone},
	{Key: "client_email", Label: "Email", Kind: FieldEmail},
	{Key: "product", Label: "Изделие", Kind: FieldText},
	{Key: "quantity", Label: "Количество", Kind: FieldNumber},
	{Key: "amount", Label: "Сумма", Kind: FieldNumber},
	{Key: "stage_key", Label: "Этап", Kind: FieldSelect},
	{Key: "deadline", Label: "Срок", Kind: FieldDate},
	{Key: "tags", Label: "Теги", Kind: FieldTags},
	{Key: "note", Label: "Комментарий", Kind: FieldText},
}

// FieldByKey looks a field up in the catalogue.
func FieldByKey(key string) (EditableField, bool) {
	for _, f := range DealFields {
		if f.Key == key {
			return f, true
		}
	}
	return EditableField{}, false
}

// Coerce parses the user's raw answer into the adapter value for the
// field, returning the display form shown in the old→new confirmation.
func (f EditableField) Coerce(raw string, now time.Time) (any, string, error) {
	raw = strings.TrimSpace(raw)
	switch f.Kind {
	case FieldNumber:
		n, ok := nlp.ExtractNumber(raw)
		if !ok {
			return nil, "", fmt.Errorf("%w: ожидается число", domain.ErrInvalidValue)
		}
		if f.Key == "amount" {
			d := decimal.NewFromFloat(n)
			return d, FormatAmount(d), nil
		}
		return int(n), FormatThousands(int64(n)), nil
	case FieldDate:
		d, ok := nlp.ExtractDate(raw, now)
		if !ok {
			return nil, "", fmt.Errorf("%w: ожидается дата (ДД.ММ или «завтра»)", domain.ErrInvalidValue)
		}
		return d, d.Format("02.01.2006"), nil
	case FieldPhone:
		digits := keepPhoneChars(raw)
		if len(digits) < 6 {
			return nil, "", fmt.Errorf("%w: ожидается номер телефона", domain.ErrInvalidValue)
		}
		return digits, digits, nil
	case FieldEmail:
		if !strings.Contains(raw, "@") {
			return nil, "", fmt.Errorf("%w: ожидается email", domain.ErrInvalidValue)
		}
		return raw, raw, nil
	case FieldTags:
		var tags []string
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		return tags, strings.Join(tags, ", "), nil
	case FieldSelect:
		// Stage choices come from the live stage list, never free text.
		return nil, "", fmt.Errorf("%w: этап выбирается кнопкой", domain.ErrInvalidValue)
	default:
		if raw == "" {
			return nil, "", fmt.Errorf("%w: пустое значение", domain.ErrInvalidValue)
		}
		return raw, raw, nil
	}
}

// Display renders the field's current value on a deal, "—" when empty.
func (f EditableField) Display(d *domain.Deal, stageName func(string) string) string {
	switch f.Key {
	case "client_name":
		return dash(d.ClientName)
	case "client_phone":
		return dash(d.ClientPhone)
	case "client_email":
		return dash(d.ClientEmail)
	case "product":
		return dash(d.Product)
	case "quantity":
		if d.Quantity == 0 {
			return "—"
		}
		return FormatThousands(int64(d.Quantity))
	case "amount":
		if d.Amount.IsZero() {
			return "—"
		}
		return FormatAmount(d.Amount)
	case "stage_key":
		return dash(stageName(d.StageKey))
	case "deadline":
		if d.Deadline == nil {
			return "—"
		}
		return d.Deadline.Format("02.01.2006")
	case "tags":
		return dash(strings.Join(d.Tags, ", "))
	case "note":
		return dash(d.Note)
	}
	return "—"
}

// FormatThousands renders an integer with space thousand separators, the
// localized display used throughout the dialog.
func FormatThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if neg {
		out = "-" + out
	}
	return out
}

// FormatAmount renders a money value with separators and the ruble sign.
func FormatAmount(d decimal.Decimal) string {
	whole := d.IntPart()
	frac := d.Sub(decimal.NewFromInt(whole))
	out := FormatThousands(whole)
	if !frac.IsZero() {
		out += strings.TrimPrefix(frac.Abs().StringFixed(2), "0")
	}
	return out + " ₽"
}

func keepPhoneChars(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func dash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
