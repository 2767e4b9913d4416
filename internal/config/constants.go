package config

import "time"

const (
	// Classifier: results below this confidence are treated as
	// "no local match" and escalated to the language model.
	MinLocalConfidence = 50

	// Fuzzy matching thresholds.
	FuzzyThreshold       = 60
	ClientMatchThreshold = 50

	// Context memory recency caps.
	MaxRememberedDeals    = 5
	MaxRememberedClients  = 5
	MaxRememberedProducts = 5
	MaxRememberedActions  = 20

	// Context memory is reset wholesale after this much inactivity.
	ContextTTL = 24 * time.Hour

	// Dialog sessions have no hard TTL, but the periodic sweep drops
	// sessions idle longer than this to bound memory.
	SessionIdleTTL = 7 * 24 * time.Hour
	SweepInterval  = 10 * time.Minute

	// Bounded per-session message history.
	MaxHistoryEntries = 50

	// Search result page size.
	DealsPerPage = 5

	// Language-model fallback timeout.
	LLMRequestTimeout = 30 * time.Second

	// Configured-stages cache duration.
	StageCacheDuration = 1 * time.Hour

	// Telegram limits.
	MaxTelegramMessageLen = 4096

	// Fallback stage key when no stages are configured.
	DefaultStageKey = "new"
)

// Communication styles stored in context-memory preferences.
const (
	StyleFormal   = "formal"
	StyleFriendly = "friendly"
)

// AllDonePhrases is the "nothing urgent" briefing text per
// communication style.
var AllDonePhrases = map[string]string{
	StyleFormal:   "Срочных задач нет. Все под контролем.",
	StyleFriendly: "🎉 Всё сделано! Срочных задач нет.",
}

// TaskPriorityLabels maps stored priorities to display labels.
var TaskPriorityLabels = map[string]string{
	"low":    "🟢 Низкий",
	"medium": "🟡 Средний",
	"high":   "🔴 Высокий",
}
