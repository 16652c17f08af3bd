// Package ingest reads event rows from CSV files.
//
// Each row is kind,date,amount, for example:
//
//	advance,2021-05-01,1000.00
//	payment,2021-05-15,250
//
// Rows that cannot become an event are rejected one by one; the rest of the
// file is still read.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrMalformedEvent is the error wrapped by every MalformedEventError.
var ErrMalformedEvent = errors.New("malformed event")

// MalformedEventError reports a rejected row. Row is the 1-based line number in the input.
type MalformedEventError struct {
	Row    int
	Fields []string
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("row %d %q: %s", e.Row, strings.Join(e.Fields, ","), e.Reason)
}

func (e *MalformedEventError) Unwrap() error { return ErrMalformedEvent }

// Batch is the result of reading one file. All accepted events carry the batch ID.
type Batch struct {
	ID       uuid.UUID              `json:"id"`
	Events   []*models.Event        `json:"-"`
	Rejected []*MalformedEventError `json:"-"`
}

// Read parses every row of r. Only I/O failures are returned as error;
// bad rows end up in Batch.Rejected.
func Read(r io.Reader) (*Batch, error) {
	batch := &Batch{ID: uuid.New()}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			batch.Rejected = append(batch.Rejected, &MalformedEventError{Row: parseErr.StartLine, Fields: fields, Reason: parseErr.Err.Error()})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read events: %w", err)
		}
		row, _ := reader.FieldPos(0)

		event, rejected := parseRow(row, fields)
		if rejected != nil {
			batch.Rejected = append(batch.Rejected, rejected)
			continue
		}
		event.BatchID = &batch.ID
		batch.Events = append(batch.Events, event)
	}
	return batch, nil
}

func parseRow(row int, fields []string) (*models.Event, *MalformedEventError) {
	reject := func(format string, args ...any) *MalformedEventError {
		return &MalformedEventError{Row: row, Fields: fields, Reason: fmt.Sprintf(format, args...)}
	}

	if len(fields) < 3 {
		return nil, reject("want 3 fields kind,date,amount, got %d", len(fields))
	}

	kind := models.EventType(strings.ToLower(strings.TrimSpace(fields[0])))
	if !kind.Valid() {
		return nil, reject("unknown kind %q", fields[0])
	}

	on, err := date.Parse(strings.TrimSpace(fields[1]))
	if err != nil {
		return nil, reject("%v", err)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
	if err != nil {
		return nil, reject("amount %q is not a number", fields[2])
	}
	if amount.IsNegative() {
		return nil, reject("amount %s is negative", amount)
	}

	return &models.Event{Type: kind, Amount: amount, Date: on}, nil
}
