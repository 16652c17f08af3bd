package ledger

import (
	"fmt"
	"slices"

	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultDailyRate is the fixed daily interest rate charged on outstanding principal.
var DefaultDailyRate = decimal.RequireFromString("0.00035")

// Allocation records how one payment was split by the waterfall.
// Interest, Principal and Rollover always sum to Amount.
type Allocation struct {
	EventID   int64           `json:"event_id"`
	Date      date.Date       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
	Rollover  decimal.Decimal `json:"rollover"`
}

// Engine holds the state of one ledger simulation. It is not safe for
// concurrent use; build one per run.
type Engine struct {
	rate   decimal.Decimal
	logger *zap.Logger

	advances       []*models.Advance // FIFO payment priority
	unpaidInterest decimal.Decimal
	interestPaid   decimal.Decimal
	futureCredit   decimal.Decimal
}

// NewEngine returns an empty ledger accruing interest at rate per day.
func NewEngine(rate decimal.Decimal, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rate: rate, logger: logger}
}

// Apply processes one event against the ledger. Payments return their
// allocation; advances return nil.
func (e *Engine) Apply(event *models.Event) (*Allocation, error) {
	switch event.Type {
	case models.EventTypeAdvance:
		e.applyAdvance(event)
		return nil, nil
	case models.EventTypePayment:
		return e.applyPayment(event), nil
	default:
		return nil, fmt.Errorf("%w: event %d has unknown type %q", ErrInvalidEvent, event.ID, event.Type)
	}
}

func (e *Engine) applyAdvance(event *models.Event) {
	balance := event.Amount
	if e.futureCredit.IsPositive() {
		if e.futureCredit.GreaterThan(balance) {
			e.futureCredit = e.futureCredit.Sub(balance)
			balance = decimal.Zero
		} else {
			balance = balance.Sub(e.futureCredit)
			e.futureCredit = decimal.Zero
		}
	}

	advance := &models.Advance{Event: event, Balance: balance.RoundBank(2)}
	e.advances = append(e.advances, advance)

	e.logger.Debug("advance created",
		zap.Int64("event", event.ID),
		zap.Stringer("date", event.Date),
		zap.Stringer("amount", event.Amount),
		zap.Stringer("balance", advance.Balance),
		zap.Stringer("future_credit", e.futureCredit),
	)
}

func (e *Engine) applyPayment(event *models.Event) *Allocation {
	alloc := &Allocation{
		EventID:   event.ID,
		Date:      event.Date,
		Amount:    event.Amount,
		Interest:  decimal.Zero,
		Principal: decimal.Zero,
		Rollover:  decimal.Zero,
	}
	remaining := event.Amount
	if !remaining.IsPositive() {
		return alloc
	}

	// interest first
	if e.unpaidInterest.IsPositive() {
		if remaining.GreaterThan(e.unpaidInterest) {
			alloc.Interest = e.unpaidInterest
			remaining = remaining.Sub(e.unpaidInterest)
			e.unpaidInterest = decimal.Zero
		} else {
			alloc.Interest = remaining
			e.unpaidInterest = e.unpaidInterest.Sub(remaining)
			remaining = decimal.Zero
		}
		e.interestPaid = e.interestPaid.Add(alloc.Interest)
	}

	// then principal, oldest advance first; paid-off lines stay in place
	for _, adv := range e.advances {
		if !adv.Balance.IsPositive() || !remaining.IsPositive() {
			continue
		}
		paid := decimal.Min(remaining, adv.Balance)
		adv.Balance = adv.Balance.Sub(paid)
		remaining = remaining.Sub(paid)
		alloc.Principal = alloc.Principal.Add(paid)
	}

	// whatever is left reduces future advances
	if remaining.IsPositive() {
		e.futureCredit = e.futureCredit.Add(remaining)
		alloc.Rollover = remaining
	}

	e.logger.Debug("payment allocated",
		zap.Int64("event", event.ID),
		zap.Stringer("date", event.Date),
		zap.Stringer("amount", event.Amount),
		zap.Stringer("interest", alloc.Interest),
		zap.Stringer("principal", alloc.Principal),
		zap.Stringer("rollover", alloc.Rollover),
	)
	return alloc
}

// Accrue charges one day of interest on the outstanding principal and
// returns the amount charged.
func (e *Engine) Accrue() decimal.Decimal {
	interest := e.OutstandingPrincipal().Mul(e.rate)
	e.unpaidInterest = e.unpaidInterest.Add(interest)
	return interest
}

// OutstandingPrincipal is the sum of all advance balances.
func (e *Engine) OutstandingPrincipal() decimal.Decimal {
	total := decimal.Zero
	for _, adv := range e.advances {
		total = total.Add(adv.Balance)
	}
	return total
}

// Advances returns the ledger lines in creation order.
func (e *Engine) Advances() []*models.Advance { return e.advances }

func (e *Engine) UnpaidInterest() decimal.Decimal { return e.unpaidInterest }
func (e *Engine) InterestPaid() decimal.Decimal   { return e.interestPaid }
func (e *Engine) FutureCredit() decimal.Decimal   { return e.futureCredit }

// Summary reads the four aggregate figures, unrounded.
func (e *Engine) Summary() models.Summary {
	return models.Summary{
		AggregateAdvanceBalance:  e.OutstandingPrincipal(),
		InterestPayableBalance:   e.unpaidInterest,
		TotalInterestPaid:        e.interestPaid,
		BalanceForFutureAdvances: e.futureCredit,
	}
}

// Result is the outcome of a simulation as of a date.
type Result struct {
	AsOf        date.Date         `json:"as_of"`
	Days        int               `json:"days"`
	Advances    []*models.Advance `json:"advances"`
	Allocations []Allocation      `json:"allocations"`
	Summary     models.Summary    `json:"summary"`
}

// Simulate replays events day by day from the first event through end,
// inclusive. Events dated after end are ignored. Events sharing a date are
// applied in the order given.
func Simulate(events []*models.Event, end date.Date, rate decimal.Decimal, logger *zap.Logger) (*Result, error) {
	days, in, err := dayRange(events, end)
	if err != nil {
		return nil, err
	}

	e := NewEngine(rate, logger)
	res := &Result{AsOf: end}
	next := 0
	for day := range days.Days() {
		for next < len(in) && in[next].Date == day {
			alloc, err := e.Apply(in[next])
			if err != nil {
				return nil, err
			}
			if alloc != nil {
				res.Allocations = append(res.Allocations, *alloc)
			}
			next++
		}
		e.Accrue()
		res.Days++
	}

	res.Advances = e.Advances()
	res.Summary = e.Summary()
	e.logger.Debug("simulation complete",
		zap.Stringer("range", days),
		zap.Int("days", res.Days),
		zap.Int("events", len(in)),
		zap.Int("advances", len(res.Advances)),
	)
	return res, nil
}

// dayRange selects the events dated on or before end, stably sorted by date,
// and the span of days to simulate.
func dayRange(events []*models.Event, end date.Date) (date.Range, []*models.Event, error) {
	in := make([]*models.Event, 0, len(events))
	for _, ev := range events {
		if !ev.Date.After(end) {
			in = append(in, ev)
		}
	}
	if len(in) == 0 {
		return date.Range{}, nil, &InvalidRangeError{End: end, Reason: "no events on or before end date"}
	}
	slices.SortStableFunc(in, func(a, b *models.Event) int {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case a.Date.After(b.Date):
			return 1
		default:
			return 0
		}
	})

	days := date.Range{From: in[0].Date, To: end}
	if !days.Valid() {
		return date.Range{}, nil, &InvalidRangeError{End: end, First: in[0].Date, Reason: "end date precedes first event"}
	}
	return days, in, nil
}
