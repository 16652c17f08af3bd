package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/models"
	"github.com/mcclellann/fredAdvance/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) (*Server, *mux.Router) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { s.Close() })

	server := NewServer(s, nil)
	server.today = func() date.Date { return date.MustParse("2021-01-31") }
	return server, newRouter(server)
}

func do(router *mux.Router, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func postEvent(t *testing.T, router *mux.Router, kind, amount, on string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"type": kind, "amount": amount, "date": on})
	return do(router, "POST", "/events", body)
}

func TestAPI_CreateAndListEvents(t *testing.T) {
	_, router := setupTestServer(t)

	rr := postEvent(t, router, "advance", "1000", "2021-01-01")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created models.Event
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.EventTypeAdvance, created.Type)

	rr = do(router, "GET", "/events", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var events []models.Event
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, created.ID, events[0].ID)
	assert.Equal(t, date.MustParse("2021-01-01"), events[0].Date)
}

func TestAPI_CreateEventRejectsBadInput(t *testing.T) {
	_, router := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, postEvent(t, router, "refund", "10", "2021-01-01").Code)
	assert.Equal(t, http.StatusBadRequest, postEvent(t, router, "payment", "-10", "2021-01-01").Code)
	assert.Equal(t, http.StatusBadRequest, postEvent(t, router, "payment", "10", "01/01/2021").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "POST", "/events", []byte("{")).Code)
}

func TestAPI_Balances(t *testing.T) {
	_, router := setupTestServer(t)

	postEvent(t, router, "advance", "100", "2021-01-01")
	postEvent(t, router, "advance", "50", "2021-01-01")
	postEvent(t, router, "payment", "120", "2021-01-01")

	rr := do(router, "GET", "/balances?end_date=2021-01-01", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp balancesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Days)
	require.Len(t, resp.Advances, 2)
	assert.Equal(t, 1, resp.Advances[0].Identifier)
	assert.True(t, resp.Advances[0].CurrentBalance.IsZero())
	assert.True(t, resp.Advances[1].CurrentBalance.Equal(decimal.NewFromInt(30)))
	assert.True(t, resp.Summary.AggregateAdvanceBalance.Equal(decimal.NewFromInt(30)))
	// 30 * 0.00035 = 0.0105, rounded for display
	assert.True(t, resp.Summary.InterestPayableBalance.Equal(decimal.RequireFromString("0.01")))
	require.Len(t, resp.Allocations, 1)
	assert.True(t, resp.Allocations[0].Principal.Equal(decimal.NewFromInt(120)))

	// defaults to today
	rr = do(router, "GET", "/balances", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 31, resp.Days)
}

func TestAPI_BalancesInvalidRange(t *testing.T) {
	_, router := setupTestServer(t)

	rr := do(router, "GET", "/balances?end_date=2021-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(router, "GET", "/balances?end_date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "tomorrow")
}

func TestAPI_Import(t *testing.T) {
	_, router := setupTestServer(t)

	csv := strings.Join([]string{
		"advance,2021-01-01,500",
		"loan,2021-01-02,5",
		"payment,2021-01-03,100",
	}, "\n")
	rr := do(router, "POST", "/events/import", []byte(csv))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp importResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Loaded)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, 2, resp.Rejected[0].Row)
	assert.NotEmpty(t, resp.BatchID)
}

func TestAPI_Snapshots(t *testing.T) {
	_, router := setupTestServer(t)

	rr := do(router, "POST", "/snapshots?as_of=2021-01-10", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	postEvent(t, router, "advance", "1000", "2021-01-01")
	rr = do(router, "POST", "/snapshots?as_of=2021-01-10", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(router, "GET", "/snapshots", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snaps []models.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, date.MustParse("2021-01-10"), snaps[0].AsOf)
	assert.True(t, snaps[0].Summary.InterestPayableBalance.Equal(decimal.RequireFromString("3.5")))
}
