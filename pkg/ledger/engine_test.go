package ledger

import (
	"testing"

	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = date.MustParse("2021-03-01")

type eventLog struct {
	events []*models.Event
}

func (l *eventLog) add(kind models.EventType, amount string, on date.Date) *models.Event {
	e := &models.Event{ID: int64(len(l.events) + 1), Type: kind, Amount: dec(amount), Date: on}
	l.events = append(l.events, e)
	return e
}

func (l *eventLog) advance(amount string, on date.Date) *models.Event {
	return l.add(models.EventTypeAdvance, amount, on)
}

func (l *eventLog) payment(amount string, on date.Date) *models.Event {
	return l.add(models.EventTypePayment, amount, on)
}

func simulate(t *testing.T, l *eventLog, end date.Date) *Result {
	t.Helper()
	res, err := Simulate(l.events, end, DefaultDailyRate, nil)
	require.NoError(t, err)
	return res
}

func TestFIFOAllocation(t *testing.T) {
	var log eventLog
	log.advance("100", day0)
	log.advance("50", day0)
	log.payment("120", day0)

	res := simulate(t, &log, day0)
	require.Len(t, res.Advances, 2)
	assertDec(t, "0", res.Advances[0].Balance)
	assertDec(t, "30", res.Advances[1].Balance)
	assertDec(t, "0", res.Summary.TotalInterestPaid)
	assertDec(t, "0", res.Summary.BalanceForFutureAdvances)
}

func TestIdleAccrual(t *testing.T) {
	const n = 30
	var log eventLog
	log.advance("1000", day0)

	res := simulate(t, &log, day0.Add(n-1))
	assert.Equal(t, n, res.Days)
	require.Len(t, res.Advances, 1)
	assertDec(t, "1000", res.Advances[0].Balance)
	// 1000 * 0.00035 * 30, no compounding
	assertDec(t, "10.5", res.Summary.InterestPayableBalance)
}

func TestCreditRollover(t *testing.T) {
	var log eventLog
	log.payment("500", day0)

	res := simulate(t, &log, day0)
	assertDec(t, "500", res.Summary.BalanceForFutureAdvances)
	assert.Empty(t, res.Advances)
	require.Len(t, res.Allocations, 1)
	assertDec(t, "500", res.Allocations[0].Rollover)

	log.advance("300", day0.Add(1))
	res = simulate(t, &log, day0.Add(1))
	require.Len(t, res.Advances, 1)
	assertDec(t, "0", res.Advances[0].Balance)
	assertDec(t, "200", res.Summary.BalanceForFutureAdvances)
	assertDec(t, "0", res.Summary.InterestPayableBalance)
}

func TestCreditSmallerThanAdvance(t *testing.T) {
	var log eventLog
	log.payment("40", day0)
	log.advance("100", day0.Add(1))

	res := simulate(t, &log, day0.Add(1))
	assertDec(t, "60", res.Advances[0].Balance)
	assertDec(t, "0", res.Summary.BalanceForFutureAdvances)
}

func TestSameDayEventsKeepSourceOrder(t *testing.T) {
	var log eventLog
	log.payment("100", day0)
	log.advance("60", day0)
	log.advance("60", day0)

	res := simulate(t, &log, day0)
	require.Len(t, res.Advances, 2)
	// the payment banks credit before either advance exists
	assertDec(t, "0", res.Advances[0].Balance)
	assertDec(t, "20", res.Advances[1].Balance)
	assertDec(t, "0", res.Summary.BalanceForFutureAdvances)
}

func TestOutOfOrderInputIsStablySorted(t *testing.T) {
	var log eventLog
	log.payment("30", day0.Add(2))
	log.advance("100", day0)
	log.advance("50", day0)

	res := simulate(t, &log, day0.Add(2))
	require.Len(t, res.Advances, 2)
	assert.Equal(t, int64(2), res.Advances[0].Event.ID)
	assert.Equal(t, int64(3), res.Advances[1].Event.ID)
}

func TestPaymentSmallerThanUnpaidInterest(t *testing.T) {
	e := NewEngine(DefaultDailyRate, nil)
	_, err := e.Apply(&models.Event{ID: 1, Type: models.EventTypeAdvance, Amount: dec("1000"), Date: day0})
	require.NoError(t, err)
	for range 10 {
		e.Accrue()
	}
	assertDec(t, "3.5", e.UnpaidInterest())

	alloc, err := e.Apply(&models.Event{ID: 2, Type: models.EventTypePayment, Amount: dec("1"), Date: day0.Add(10)})
	require.NoError(t, err)
	assertDec(t, "1", alloc.Interest)
	assertDec(t, "0", alloc.Principal)
	assertDec(t, "0", alloc.Rollover)
	assertDec(t, "2.5", e.UnpaidInterest())
	assertDec(t, "1", e.InterestPaid())
	assertDec(t, "1000", e.OutstandingPrincipal())
}

func TestZeroPaymentIsNoop(t *testing.T) {
	var log eventLog
	log.advance("100", day0)
	log.payment("0", day0.Add(1))

	res := simulate(t, &log, day0.Add(1))
	assertDec(t, "100", res.Advances[0].Balance)
	assertDec(t, "0", res.Summary.TotalInterestPaid)
	assertDec(t, "0.07", res.Summary.InterestPayableBalance)
	require.Len(t, res.Allocations, 1)
	assertDec(t, "0", res.Allocations[0].Interest)
}

func TestAdvanceBalanceRoundedToCents(t *testing.T) {
	var log eventLog
	log.payment("0.005", day0)
	log.advance("10.01", day0)

	res := simulate(t, &log, day0)
	// 10.005 rounds half to even
	assertDec(t, "10", res.Advances[0].Balance)
}

func TestUnknownEventType(t *testing.T) {
	var log eventLog
	log.add("refund", "10", day0)
	_, err := Simulate(log.events, day0, DefaultDailyRate, nil)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestInvalidRange(t *testing.T) {
	_, err := Simulate(nil, day0, DefaultDailyRate, nil)
	assert.ErrorIs(t, err, ErrInvalidRange)

	var log eventLog
	log.advance("100", day0)
	_, err = Simulate(log.events, day0.Add(-1), DefaultDailyRate, nil)
	var rangeErr *InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.True(t, rangeErr.First.IsZero())
}

func TestEndDateBoundary(t *testing.T) {
	var log eventLog
	log.advance("1000", day0)
	log.payment("1000.35", day0.Add(1))

	// the payment on the end date is applied, and that day accrues once
	res := simulate(t, &log, day0.Add(1))
	assert.Equal(t, 2, res.Days)
	assertDec(t, "0", res.Advances[0].Balance)
	assertDec(t, "0.35", res.Summary.TotalInterestPaid)
	assertDec(t, "0", res.Summary.InterestPayableBalance)

	// the day before excludes it
	res = simulate(t, &log, day0)
	assertDec(t, "1000", res.Advances[0].Balance)
	assertDec(t, "0.35", res.Summary.InterestPayableBalance)
}

func TestIdempotence(t *testing.T) {
	log := mixedLog()
	end := day0.Add(90)
	a := simulate(t, log, end)
	b := simulate(t, log, end)
	assert.Equal(t, a.Summary.AggregateAdvanceBalance.String(), b.Summary.AggregateAdvanceBalance.String())
	assert.Equal(t, a.Summary.InterestPayableBalance.String(), b.Summary.InterestPayableBalance.String())
	assert.Equal(t, a.Summary.TotalInterestPaid.String(), b.Summary.TotalInterestPaid.String())
	assert.Equal(t, a.Summary.BalanceForFutureAdvances.String(), b.Summary.BalanceForFutureAdvances.String())
}

func mixedLog() *eventLog {
	var log eventLog
	log.advance("1000", day0)
	log.advance("250.55", day0.Add(3))
	log.payment("300", day0.Add(10))
	log.payment("0.01", day0.Add(10))
	log.advance("75", day0.Add(20))
	log.payment("2000", day0.Add(30))
	log.advance("500", day0.Add(31))
	log.advance("100", day0.Add(31))
	log.payment("123.45", day0.Add(45))
	log.payment("1", day0.Add(60))
	log.advance("10000", day0.Add(61))
	log.payment("4000", day0.Add(75))
	return &log
}

// Drives the engine day by day and checks the ledger invariants after every step.
func TestInvariantsHoldEveryDay(t *testing.T) {
	log := mixedLog()
	end := day0.Add(90)

	e := NewEngine(DefaultDailyRate, nil)
	paid := e.InterestPaid()
	next := 0
	for day := range (date.Range{From: day0, To: end}).Days() {
		for next < len(log.events) && log.events[next].Date == day {
			ev := log.events[next]
			alloc, err := e.Apply(ev)
			require.NoError(t, err)
			if ev.Type == models.EventTypePayment {
				// conservation: every cent of the payment is accounted for
				total := alloc.Interest.Add(alloc.Principal).Add(alloc.Rollover)
				assert.Truef(t, total.Equal(ev.Amount), "payment %d: %s != %s", ev.ID, total, ev.Amount)
			}
			next++
		}
		e.Accrue()

		assert.False(t, e.UnpaidInterest().IsNegative(), "unpaid interest on %s", day)
		assert.False(t, e.FutureCredit().IsNegative(), "future credit on %s", day)
		for i, adv := range e.Advances() {
			assert.False(t, adv.Balance.IsNegative(), "advance %d on %s", i, day)
		}
		assert.True(t, e.InterestPaid().GreaterThanOrEqual(paid), "interest paid decreased on %s", day)
		paid = e.InterestPaid()
	}
	assert.Equal(t, len(log.events), next)

	res := simulate(t, log, end)
	assert.True(t, res.Summary.AggregateAdvanceBalance.Equal(e.OutstandingPrincipal()))
	assert.True(t, res.Summary.InterestPayableBalance.Equal(e.UnpaidInterest()))
}
