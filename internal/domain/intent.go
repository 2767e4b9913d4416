package domain

// Action is the closed set of things a user can ask the bot to do.
type Action string

const (
	ActionCreate       Action = "create"
	ActionSearch       Action = "search"
	ActionView         Action = "view"
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionReport       Action = "report"
	ActionBulk         Action = "bulk"
	ActionHelp         Action = "help"
	ActionCancel       Action = "cancel"
	ActionConfirm      Action = "confirm"
	ActionGreeting     Action = "greeting"
	ActionNumber       Action = "number"
	ActionTaskBriefing Action = "task_briefing"
	ActionTaskList     Action = "task_list"
	ActionTaskCreate   Action = "task_create"
	ActionTaskComplete Action = "task_complete"
	ActionTaskView     Action = "task_view"
	ActionUnknown      Action = "unknown"
)

// EntityKind names the business entity an intent is about.
type EntityKind string

const (
	EntityDeal    EntityKind = "deal"
	EntityClient  EntityKind = "client"
	EntityProduct EntityKind = "product"
	EntityTask    EntityKind = "task"
	EntityStage   EntityKind = "stage"
)

// ParsedIntent is the structured interpretation of one user message.
// Both the local classifier and the language-model fallback produce this
// shape; the state machine never sees which one it came from.
type ParsedIntent struct {
	Action     Action
	Target     EntityKind
	Data       map[string]string
	UseContext bool
	Confidence int // 0..100; below MinLocalConfidence the caller escalates
}

// Get returns a data field or "".
func (p *ParsedIntent) Get(key string) string {
	if p == nil || p.Data == nil {
		return ""
	}
	return p.Data[key]
}

// LLMParse is the structured result of the external language-model
// collaborator. Type is one of deal, search_client, search_product,
// unknown; the service fails soft, so Type "unknown" covers timeouts,
// malformed JSON and missing credentials alike.
type LLMParse struct {
	Type        string `json:"type"`
	ClientName  string `json:"client_name,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Note        string `json:"note,omitempty"`
}

const (
	LLMParseDeal          = "deal"
	LLMParseSearchClient  = "search_client"
	LLMParseSearchProduct = "search_product"
	LLMParseUnknown       = "unknown"
)
