// Package report renders ledger balances as a fixed-width text table.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mcclellann/fredAdvance/pkg/models"
	"github.com/shopspring/decimal"
)

const rule = "----------------------------------------------------------"

// Balances writes one line per advance, numbered from 1 in creation order,
// followed by the summary figures. Amounts are rounded half-even to cents.
func Balances(w io.Writer, advances []*models.Advance, summary models.Summary) error {
	var b strings.Builder

	b.WriteString("Advances:\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%10s%11s%17s%20s\n", "Identifier", "Date", "Initial Amt", "Current Balance")
	for i, adv := range advances {
		fmt.Fprintf(&b, "%10d%11s%17s%20s\n",
			i+1,
			adv.Event.Date,
			cents(adv.Event.Amount),
			cents(adv.Balance),
		)
	}

	b.WriteString("\nSummary Statistics:\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Aggregate Advance Balance: %31s\n", cents(summary.AggregateAdvanceBalance))
	fmt.Fprintf(&b, "Interest Payable Balance: %32s\n", cents(summary.InterestPayableBalance))
	fmt.Fprintf(&b, "Total Interest Paid: %37s\n", cents(summary.TotalInterestPaid))
	fmt.Fprintf(&b, "Balance Applicable to Future Advances: %19s\n", cents(summary.BalanceForFutureAdvances))

	_, err := io.WriteString(w, b.String())
	return err
}

func cents(d decimal.Decimal) string { return d.StringFixedBank(2) }
