// Command ledger loads advance and payment events into a SQLite database and
// reports advance balances as of a date.
//
//	ledger create-db
//	ledger load events.csv
//	ledger balances 2021-12-31
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/mcclellann/fredAdvance/pkg/config"
	"github.com/mcclellann/fredAdvance/pkg/ledger"
	"github.com/mcclellann/fredAdvance/pkg/logging"
	"github.com/mcclellann/fredAdvance/pkg/store"
	"go.uber.org/zap"
)

// session carries what every command needs. It is built once in main and
// handed to the selected command as its first Execute argument.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

func (s *session) dbExists() bool {
	_, err := os.Stat(s.cfg.Database.Path)
	return err == nil
}

// openLedger opens the configured database. Callers must close the returned store.
func (s *session) openLedger() (*ledger.Ledger, store.Storage, error) {
	rate, err := s.cfg.DailyRate()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewSQLiteStore(s.cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewLedger(st, ledger.WithDailyRate(rate), ledger.WithLogger(s.logger)), st, nil
}

// sessionArg extracts the session passed through Commander.Execute.
func sessionArg(args []interface{}) *session {
	for _, a := range args {
		if s, ok := a.(*session); ok {
			return s
		}
	}
	panic("ledger: command executed without a session")
}

func register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(&createDBCmd{}, "database")
	c.Register(&dropDBCmd{}, "database")
	c.Register(&loadCmd{}, "events")
	c.Register(&balancesCmd{}, "reports")
	c.Register(&snapshotsCmd{}, "reports")
}

func main() {
	configPath := flag.String("config", "ledger.yaml", "Path to the YAML configuration file")
	dbPath := flag.String("db", "", "SQLite database path (overrides the configuration)")
	debug := flag.Bool("debug", false, "Debug output")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	register(commander)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitUsageError))
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	if cfg.Debug {
		fmt.Fprintln(os.Stderr, "[Debug mode is on]")
	}

	sess := &session{cfg: cfg, logger: logger, stdout: os.Stdout, stderr: os.Stderr}
	status := commander.Execute(context.Background(), sess)
	logger.Sync()
	os.Exit(int(status))
}
