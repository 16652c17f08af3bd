package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dataSourceName and makes sure the schema exists.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the tables if they don't already exist.
// Decimals are TEXT so no precision is lost; dates are TEXT in 2006-01-02 form.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL CHECK (type IN ('advance', 'payment')),
		amount TEXT NOT NULL CHECK (CAST(amount AS REAL) >= 0),
		date_created TEXT NOT NULL,
		batch_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_date ON events (date_created, id);
	CREATE TABLE IF NOT EXISTS balance_snapshots (
		id TEXT PRIMARY KEY,
		as_of TEXT NOT NULL,
		aggregate_advance_balance TEXT NOT NULL,
		interest_payable_balance TEXT NOT NULL,
		total_interest_paid TEXT NOT NULL,
		balance_for_future_advances TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Event tables created by older tooling lack the batch column.
	_, err := s.db.Exec("ALTER TABLE events ADD COLUMN batch_id TEXT")
	if err != nil && !isDuplicateColumnError(err) {
		return fmt.Errorf("failed to add column batch_id: %w", err)
	}
	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "duplicate column name")
}

// CreateEvent appends a single event.
func (s *SQLiteStore) CreateEvent(event *models.Event) error {
	id, err := insertEvent(s.db, event)
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

// CreateEvents appends all events within one transaction; either all are stored or none.
func (s *SQLiteStore) CreateEvents(events []*models.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, len(events))
	for i, event := range events {
		ids[i], err = insertEvent(tx, event)
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	for i, event := range events {
		event.ID = ids[i]
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertEvent(db execer, event *models.Event) (int64, error) {
	result, err := db.Exec(
		`INSERT INTO events (type, amount, date_created, batch_id) VALUES (?, ?, ?, ?)`,
		string(event.Type), event.Amount.String(), event.Date, event.BatchID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read event id: %w", err)
	}
	return id, nil
}

// ListEvents retrieves all events in date order; same-day events keep insertion order.
func (s *SQLiteStore) ListEvents() ([]*models.Event, error) {
	rows, err := s.db.Query(`SELECT id, type, amount, date_created, batch_id FROM events ORDER BY date_created ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListEventsUpTo retrieves the events dated on or before end, in the order of ListEvents.
func (s *SQLiteStore) ListEventsUpTo(end date.Date) ([]*models.Event, error) {
	rows, err := s.db.Query(`SELECT id, type, amount, date_created, batch_id FROM events WHERE date_created <= ? ORDER BY date_created ASC, id ASC`, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list events up to %s: %w", end, err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *SQLiteStore) scanEvents(rows *sql.Rows) ([]*models.Event, error) {
	var events []*models.Event
	for rows.Next() {
		var event models.Event
		var eventType string
		var batchID uuid.NullUUID
		if err := rows.Scan(&event.ID, &eventType, &event.Amount, &event.Date, &batchID); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		event.Type = models.EventType(eventType)
		if batchID.Valid {
			event.BatchID = &batchID.UUID
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return events, nil
}

// CreateSnapshot inserts a balance snapshot.
func (s *SQLiteStore) CreateSnapshot(snapshot *models.Snapshot) error {
	sum := snapshot.Summary
	_, err := s.db.Exec(
		`INSERT INTO balance_snapshots (id, as_of, aggregate_advance_balance, interest_payable_balance, total_interest_paid, balance_for_future_advances, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ID.String(), snapshot.AsOf,
		sum.AggregateAdvanceBalance.String(), sum.InterestPayableBalance.String(),
		sum.TotalInterestPaid.String(), sum.BalanceForFutureAdvances.String(),
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// ListSnapshots retrieves all snapshots, oldest first.
func (s *SQLiteStore) ListSnapshots() ([]*models.Snapshot, error) {
	rows, err := s.db.Query(`SELECT id, as_of, aggregate_advance_balance, interest_payable_balance, total_interest_paid, balance_for_future_advances, created_at FROM balance_snapshots ORDER BY created_at ASC, as_of ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		var snapshot models.Snapshot
		var idStr string
		sum := &snapshot.Summary
		if err := rows.Scan(&idStr, &snapshot.AsOf, &sum.AggregateAdvanceBalance, &sum.InterestPayableBalance, &sum.TotalInterestPaid, &sum.BalanceForFutureAdvances, &snapshot.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot id %q: %w", idStr, err)
		}
		snapshot.ID = id
		snapshots = append(snapshots, &snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for snapshots: %w", err)
	}
	return snapshots, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
