// Package memory holds the short-term per-user context: recently
// mentioned deals, clients and products, an action log, preferences and
// a derived natural-language summary. It is distinct from the dialog
// session and has its own 24h expiry lifecycle.
package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/vkarpekin/mebelbot/internal/config"
)

const FocusGeneral = "general"

// Preferences are the sticky user settings that survive a dialog reset.
type Preferences struct {
	Mode     string `json:"mode,omitempty"`     // preferred interaction mode: text | steps | form
	Language string `json:"language,omitempty"` // ru by default
	Style    string `json:"style,omitempty"`    // formal | friendly
}

// DealMention is one remembered deal reference.
type DealMention struct {
	ID    int64  `json:"id"`
	Title string `json:"title,omitempty"`
}

// Memory is the per-user context. Recency lists are deduplicated by
// natural key and ordered most-recent-first; every mutation recomputes
// the summary.
type Memory struct {
	UserID   int64         `json:"user_id"`
	Deals    []DealMention `json:"deals,omitempty"`
	Clients  []string      `json:"clients,omitempty"`
	Products []string      `json:"products,omitempty"`
	Actions  []string      `json:"actions,omitempty"`

	Focus string      `json:"focus"`
	Prefs Preferences `json:"prefs"`

	LastDealAt     time.Time `json:"last_deal_at,omitempty"`
	LastClientAt   time.Time `json:"last_client_at,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`

	Summary string `json:"summary"`
}

// New returns an empty context for the user.
func New(userID int64, now time.Time) *Memory {
	return &Memory{
		UserID:         userID,
		Focus:          FocusGeneral,
		Prefs:          Preferences{Language: "ru", Style: config.StyleFriendly},
		LastActivityAt: now,
	}
}

// Expired reports whether the context should be replaced wholesale.
func (m *Memory) Expired(now time.Time) bool {
	return now.Sub(m.LastActivityAt) > config.ContextTTL
}

// RememberDeal prepends the deal, deduplicating by id and capping the list.
func (m *Memory) RememberDeal(d DealMention, now time.Time) {
	out := []DealMention{d}
	for _, old := range m.Deals {
		if old.ID != d.ID {
			out = append(out, old)
		}
	}
	if len(out) > config.MaxRememberedDeals {
		out = out[:config.MaxRememberedDeals]
	}
	m.Deals = out
	m.Focus = "deal"
	m.LastDealAt = now
	m.refreshSummary()
}

// RememberClient prepends the client name, deduplicating case-insensitively.
func (m *Memory) RememberClient(name string, now time.Time) {
	m.Clients = prependDedup(m.Clients, name, config.MaxRememberedClients)
	m.Focus = "client"
	m.LastClientAt = now
	m.refreshSummary()
}

// RememberProduct prepends the product name, deduplicating case-insensitively.
func (m *Memory) RememberProduct(name string, now time.Time) {
	m.Products = prependDedup(m.Products, name, config.MaxRememberedProducts)
	m.refreshSummary()
}

// RecordAction logs an action name into the bounded action history.
func (m *Memory) RecordAction(name string) {
	out := append([]string{name}, m.Actions...)
	if len(out) > config.MaxRememberedActions {
		out = out[:config.MaxRememberedActions]
	}
	m.Actions = out
	m.refreshSummary()
}

// LastDeal returns the most recently mentioned deal, or nil.
func (m *Memory) LastDeal() *DealMention {
	if len(m.Deals) == 0 {
		return nil
	}
	return &m.Deals[0]
}

// LastClient returns the most recently mentioned client, or "".
func (m *Memory) LastClient() string {
	if len(m.Clients) == 0 {
		return ""
	}
	return m.Clients[0]
}

// LastProduct returns the most recently mentioned product, or "".
func (m *Memory) LastProduct() string {
	if len(m.Products) == 0 {
		return ""
	}
	return m.Products[0]
}

// ResetFocus returns the focus tag to general.
func (m *Memory) ResetFocus() {
	m.Focus = FocusGeneral
	m.refreshSummary()
}

// Clear drops everything except identity and preferences.
func (m *Memory) Clear() {
	m.Deals = nil
	m.Clients = nil
	m.Products = nil
	m.Actions = nil
	m.Focus = FocusGeneral
	m.LastDealAt = time.Time{}
	m.LastClientAt = time.Time{}
	m.Summary = ""
}

// refreshSummary rebuilds the derived summary: last deal, last client,
// last product, focus (omitted when general) and the three most recent
// actions, joined with ". ".
func (m *Memory) refreshSummary() {
	var parts []string
	if d := m.LastDeal(); d != nil {
		if d.Title != "" {
			parts = append(parts, fmt.Sprintf("Последняя сделка: №%d (%s)", d.ID, d.Title))
		} else {
			parts = append(parts, fmt.Sprintf("Последняя сделка: №%d", d.ID))
		}
	}
	if c := m.LastClient(); c != "" {
		parts = append(parts, "Клиент: "+c)
	}
	if p := m.LastProduct(); p != "" {
		parts = append(parts, "Изделие: "+p)
	}
	if m.Focus != "" && m.Focus != FocusGeneral {
		parts = append(parts, "Фокус: "+m.Focus)
	}
	if len(m.Actions) > 0 {
		n := len(m.Actions)
		if n > 3 {
			n = 3
		}
		parts = append(parts, "Действия: "+strings.Join(m.Actions[:n], ", "))
	}
	m.Summary = strings.Join(parts, ". ")
}

// Suggestions derives up to four next-step hints from the current context.
func (m *Memory) Suggestions() []string {
	var out []string
	if d := m.LastDeal(); d != nil {
		out = append(out, fmt.Sprintf("Открыть сделку №%d", d.ID))
		out = append(out, fmt.Sprintf("Сменить этап сделки №%d", d.ID))
	}
	// A create-for-client hint only makes sense when the client came up
	// after any deal talk.
	if c := m.LastClient(); c != "" && m.LastClientAt.After(m.LastDealAt) {
		out = append(out, fmt.Sprintf("Создать сделку для %s", c))
	}
	if m.Prefs.Mode != "" {
		out = append(out, "Продолжить в режиме «"+m.Prefs.Mode+"»")
	}
	if len(out) > 4 {
		out = out[:4]
	}
	return out
}

func prependDedup(list []string, v string, max int) []string {
	out := []string{v}
	for _, old := range list {
		if !strings.EqualFold(old, v) {
			out = append(out, old)
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}
