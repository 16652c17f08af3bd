package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTypeAdvance EventType = "advance"
	EventTypePayment EventType = "payment"
)

// Valid reports whether t is one of the two known event types.
func (t EventType) Valid() bool {
	return t == EventTypeAdvance || t == EventTypePayment
}

// Event is one line of the append-only event log. Events are never mutated
// once stored; ID order is insertion order and breaks ties between events
// sharing a date.
type Event struct {
	ID      int64           `json:"id"`
	Type    EventType       `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
	Date    date.Date       `json:"date"`
	BatchID *uuid.UUID      `json:"batch_id,omitempty"` // Import batch that appended the event, if any
}

// Advance is the ledger line derived from an advance event.
type Advance struct {
	Event   *Event          `json:"event"`
	Balance decimal.Decimal `json:"balance"`
}

// Summary holds the four aggregate figures of a ledger as of a date.
type Summary struct {
	AggregateAdvanceBalance  decimal.Decimal `json:"aggregate_advance_balance"`
	InterestPayableBalance   decimal.Decimal `json:"interest_payable_balance"`
	TotalInterestPaid        decimal.Decimal `json:"total_interest_paid"`
	BalanceForFutureAdvances decimal.Decimal `json:"balance_for_future_advances"`
}

// Rounded returns the summary rounded half-even to cents, for presentation.
func (s Summary) Rounded() Summary {
	return Summary{
		AggregateAdvanceBalance:  s.AggregateAdvanceBalance.RoundBank(2),
		InterestPayableBalance:   s.InterestPayableBalance.RoundBank(2),
		TotalInterestPaid:        s.TotalInterestPaid.RoundBank(2),
		BalanceForFutureAdvances: s.BalanceForFutureAdvances.RoundBank(2),
	}
}

// Snapshot is a persisted copy of a Summary computed as of a date.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	AsOf      date.Date `json:"as_of"`
	Summary   Summary   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
