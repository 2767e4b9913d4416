package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deal is an order in the factory CRM. The ID doubles as the order
// number shown to users ("сделка №275").
type Deal struct {
	ID          int64
	ClientName  string
	ClientPhone string
	ClientEmail string
	Product     string
	Quantity    int
	Amount      decimal.Decimal
	StageKey    string
	Deadline    *time.Time
	Tags        []string
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DealDraft holds the fields collected during the deal-creation dialog.
// Every field is optional: the flow never blocks on a single answer.
type DealDraft struct {
	ClientName  string `json:"client_name,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
	Product     string `json:"product,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	StageKey    string `json:"stage_key,omitempty"`
	Note        string `json:"note,omitempty"`
}

// DealFilter narrows a deal search.
type DealFilter struct {
	StageKey   string
	ClientName string
}

type Client struct {
	ID    int64
	Name  string
	Phone string
	Email string
}

// Stage is one step of the production pipeline, ordered by Position.
type Stage struct {
	Key      string
	Name     string
	Position int
}
