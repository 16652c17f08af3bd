package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/ledger"
	"github.com/mcclellann/fredAdvance/pkg/report"
)

type createDBCmd struct{}

func (*createDBCmd) Name() string     { return "create-db" }
func (*createDBCmd) Synopsis() string { return "initialize the sqlite3 database" }
func (*createDBCmd) Usage() string {
	return `ledger create-db

  Creates the event database at the configured path.
`
}
func (*createDBCmd) SetFlags(*flag.FlagSet) {}

func (*createDBCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	s := sessionArg(args)
	if s.dbExists() {
		fmt.Fprintln(s.stdout, "Database already exists")
		return subcommands.ExitSuccess
	}
	_, st, err := s.openLedger()
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: unable to create database at %s: %v\n", s.cfg.Database.Path, err)
		return subcommands.ExitFailure
	}
	st.Close()
	fmt.Fprintf(s.stdout, "Initialized database at %s\n", s.cfg.Database.Path)
	return subcommands.ExitSuccess
}

type dropDBCmd struct{}

func (*dropDBCmd) Name() string     { return "drop-db" }
func (*dropDBCmd) Synopsis() string { return "delete the sqlite3 database" }
func (*dropDBCmd) Usage() string {
	return `ledger drop-db

  Deletes the event database and every event in it.
`
}
func (*dropDBCmd) SetFlags(*flag.FlagSet) {}

func (*dropDBCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	s := sessionArg(args)
	dbPath := s.cfg.Database.Path
	if !s.dbExists() {
		fmt.Fprintf(s.stdout, "SQLite database does not exist at %s\n", dbPath)
		return subcommands.ExitSuccess
	}
	if err := os.Remove(dbPath); err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	// WAL side files
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	fmt.Fprintf(s.stdout, "Deleted SQLite database at %s\n", dbPath)
	return subcommands.ExitSuccess
}

type loadCmd struct{}

func (*loadCmd) Name() string     { return "load" }
func (*loadCmd) Synopsis() string { return "load events from a csv file" }
func (*loadCmd) Usage() string {
	return `ledger load <file.csv>

  Appends every row of the file as an event. Rows are kind,date,amount where
  kind is advance or payment and date is YYYY-MM-DD. Malformed rows are
  reported and skipped; the other rows are still loaded.
`
}
func (*loadCmd) SetFlags(*flag.FlagSet) {}

func (*loadCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	s := sessionArg(args)
	if f.NArg() != 1 {
		fmt.Fprintln(s.stderr, "Error: load takes exactly one file name")
		return subcommands.ExitUsageError
	}
	filename := f.Arg(0)
	if !s.dbExists() {
		fmt.Fprintf(s.stdout, "Database does not exist at %s, please create it using `create-db` command\n", s.cfg.Database.Path)
		return subcommands.ExitFailure
	}

	in, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer in.Close()

	l, st, err := s.openLedger()
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	res, err := l.Import(in)
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, rej := range res.Rejected {
		fmt.Fprintf(s.stderr, "Rejected %v\n", rej)
	}
	fmt.Fprintf(s.stdout, "Loaded %d events from %s\n", res.Loaded, filename)
	if len(res.Rejected) > 0 {
		fmt.Fprintf(s.stdout, "Rejected %d malformed rows\n", len(res.Rejected))
	}
	return subcommands.ExitSuccess
}

type balancesCmd struct{}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "display balance statistics as of a date" }
func (*balancesCmd) Usage() string {
	return `ledger balances [<end_date>]

  Replays every event up to end_date (YYYY-MM-DD, defaults to today) and
  prints the balance of each advance and the summary statistics.
`
}
func (*balancesCmd) SetFlags(*flag.FlagSet) {}

func (*balancesCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	s := sessionArg(args)
	end := date.Today()
	switch f.NArg() {
	case 0:
	case 1:
		var err error
		if end, err = ledger.ParseEndDate(f.Arg(0)); err != nil {
			fmt.Fprintf(s.stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	default:
		fmt.Fprintln(s.stderr, "Error: balances takes at most one end date")
		return subcommands.ExitUsageError
	}

	if !s.dbExists() {
		fmt.Fprintf(s.stdout, "Database does not exist at %s, please create it using `create-db` command\n", s.cfg.Database.Path)
		return subcommands.ExitFailure
	}
	l, st, err := s.openLedger()
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	res, err := l.Balances(end)
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := report.Balances(s.stdout, res.Advances, res.Summary); err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type snapshotsCmd struct {
	take string
}

func (*snapshotsCmd) Name() string     { return "snapshots" }
func (*snapshotsCmd) Synopsis() string { return "list or record balance snapshots" }
func (*snapshotsCmd) Usage() string {
	return `ledger snapshots [-take <date>]

  Lists the recorded balance snapshots. With -take, first records a snapshot
  of the summary as of the given date.
`
}

func (c *snapshotsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.take, "take", "", "Record a snapshot as of this date (YYYY-MM-DD) before listing")
}

func (c *snapshotsCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	s := sessionArg(args)
	if !s.dbExists() {
		fmt.Fprintf(s.stdout, "Database does not exist at %s, please create it using `create-db` command\n", s.cfg.Database.Path)
		return subcommands.ExitFailure
	}
	l, st, err := s.openLedger()
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	if c.take != "" {
		asOf, err := ledger.ParseEndDate(c.take)
		if err != nil {
			fmt.Fprintf(s.stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		if _, err := l.TakeSnapshot(asOf); err != nil {
			fmt.Fprintf(s.stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	snapshots, err := l.ListSnapshots()
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(s.stdout, "%10s%17s%17s%17s%17s\n", "As Of", "Advance Bal", "Interest Due", "Interest Paid", "Future Credit")
	for _, snap := range snapshots {
		sum := snap.Summary.Rounded()
		fmt.Fprintf(s.stdout, "%10s%17s%17s%17s%17s\n",
			snap.AsOf,
			sum.AggregateAdvanceBalance.StringFixed(2),
			sum.InterestPayableBalance.StringFixed(2),
			sum.TotalInterestPaid.StringFixed(2),
			sum.BalanceForFutureAdvances.StringFixed(2),
		)
	}
	return subcommands.ExitSuccess
}
