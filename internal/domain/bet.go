// Package domain holds the core value types shared across the application.
package domain

import "time"

// BetKind distinguishes a flat single bet from a multi-leg parlay.
type BetKind string

const (
	KindSingle BetKind = "single"
	KindParlay BetKind = "parlay"
)

// BetStatus tracks the ledger lifecycle of a bet record.
type BetStatus string

const (
	// StatusDraft marks a record that was persisted mid-session but not yet confirmed.
	StatusDraft BetStatus = "draft"
	// StatusConfirmed marks a record whose slip has been published.
	StatusConfirmed BetStatus = "confirmed"
)

// OddsFormat identifies which numeric scale an odds value uses.
type OddsFormat string

const (
	OddsAmerican OddsFormat = "american"
	OddsDecimal  OddsFormat = "decimal"
)

// Odds is a parsed odds value together with its scale.
type Odds struct {
	Format OddsFormat `json:"format"`
	Value  float64    `json:"value"`
}

// ManualSourceRef marks a leg whose subject was typed in rather than picked
// from the participant directory.
const ManualSourceRef = "manual"

// Leg is one line inside a parlay. A flat bet is stored with a single
// implicit leg folded into the record fields.
type Leg struct {
	SourceRef   string `json:"source_ref"`
	Label       string `json:"label"`
	Counterpart string `json:"counterpart"`
	Detail      string `json:"detail"`
	Category    string `json:"category"`
	Odds        Odds   `json:"odds"`
}

// Item is a directory entry selectable on the item-selection step.
type Item struct {
	ID          string
	Label       string
	Counterpart string
	Category    string
	Concluded   bool
}

// BetRecord is the persisted shape of a bet, partial or complete.
type BetRecord struct {
	ID          int64
	OwnerID     int64
	Kind        BetKind
	Category    string
	LineType    string
	Label       string
	Counterpart string
	Detail      string
	Odds        Odds
	Stake       float64
	Legs        []Leg
	Status      BetStatus
	ChannelID   int64
	MessageID   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
