package ledger

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/ingest"
	"github.com/mcclellann/fredAdvance/pkg/models"
	"github.com/mcclellann/fredAdvance/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger handles the business logic over the stored event log.
type Ledger struct {
	storage store.Storage
	rate    decimal.Decimal
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDailyRate overrides DefaultDailyRate.
func WithDailyRate(rate decimal.Decimal) Option { return func(l *Ledger) { l.rate = rate } }

func WithLogger(logger *zap.Logger) Option { return func(l *Ledger) { l.logger = logger } }

// WithClock sets the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: s,
		rate:    DefaultDailyRate,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// DailyRate returns the interest rate applied per simulated day.
func (l *Ledger) DailyRate() decimal.Decimal { return l.rate }

// RecordEvent appends a single advance or payment to the log.
func (l *Ledger) RecordEvent(kind models.EventType, amount decimal.Decimal, on date.Date) (*models.Event, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, kind)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount %s is negative", ErrInvalidEvent, amount)
	}
	if on.IsZero() {
		return nil, fmt.Errorf("%w: missing date", ErrInvalidEvent)
	}

	event := &models.Event{Type: kind, Amount: amount, Date: on}
	if err := l.storage.CreateEvent(event); err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}
	l.logger.Info("event recorded",
		zap.Int64("id", event.ID),
		zap.String("type", string(kind)),
		zap.Stringer("amount", amount),
		zap.Stringer("date", on),
	)
	return event, nil
}

// ImportResult summarizes one file import.
type ImportResult struct {
	BatchID  uuid.UUID                     `json:"batch_id"`
	Loaded   int                           `json:"loaded"`
	Rejected []*ingest.MalformedEventError `json:"-"`
}

// Import appends every valid row of a CSV file in one transaction. Invalid
// rows are rejected and reported in the result; they never abort the batch.
func (l *Ledger) Import(r io.Reader) (*ImportResult, error) {
	batch, err := ingest.Read(r)
	if err != nil {
		return nil, err
	}
	if len(batch.Events) > 0 {
		if err := l.storage.CreateEvents(batch.Events); err != nil {
			return nil, fmt.Errorf("failed to store batch %s: %w", batch.ID, err)
		}
	}

	for _, rejected := range batch.Rejected {
		l.logger.Warn("row rejected", zap.Stringer("batch", batch.ID), zap.Error(rejected))
	}
	l.logger.Info("events imported",
		zap.Stringer("batch", batch.ID),
		zap.Int("loaded", len(batch.Events)),
		zap.Int("rejected", len(batch.Rejected)),
	)
	return &ImportResult{BatchID: batch.ID, Loaded: len(batch.Events), Rejected: batch.Rejected}, nil
}

// ListEvents retrieves the whole event log in simulation order.
func (l *Ledger) ListEvents() ([]*models.Event, error) {
	return l.storage.ListEvents()
}

// Balances replays the event log through end and returns the advances and summary as of that day.
func (l *Ledger) Balances(end date.Date) (*Result, error) {
	events, err := l.storage.ListEventsUpTo(end)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return Simulate(events, end, l.rate, l.logger)
}

// TakeSnapshot computes the summary as of asOf and persists it.
func (l *Ledger) TakeSnapshot(asOf date.Date) (*models.Snapshot, error) {
	res, err := l.Balances(asOf)
	if err != nil {
		return nil, err
	}
	snapshot := &models.Snapshot{
		ID:        uuid.New(),
		AsOf:      asOf,
		Summary:   res.Summary,
		CreatedAt: l.now().UTC(),
	}
	if err := l.storage.CreateSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	l.logger.Info("snapshot recorded",
		zap.Stringer("id", snapshot.ID),
		zap.Stringer("as_of", asOf),
		zap.Stringer("aggregate_advance_balance", res.Summary.AggregateAdvanceBalance.RoundBank(2)),
	)
	return snapshot, nil
}

// ListSnapshots retrieves every recorded snapshot.
func (l *Ledger) ListSnapshots() ([]*models.Snapshot, error) {
	return l.storage.ListSnapshots()
}
