package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/mcclellann/fredAdvance/pkg/config"
	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/ledger"
	"github.com/mcclellann/fredAdvance/pkg/logging"
	"github.com/mcclellann/fredAdvance/pkg/models"
	"github.com/mcclellann/fredAdvance/pkg/scheduler"
	"github.com/mcclellann/fredAdvance/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	logger  *zap.Logger
	today   func() date.Date
}

func NewServer(s store.Storage, logger *zap.Logger, opts ...ledger.Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ledger:  ledger.NewLedger(s, append([]ledger.Option{ledger.WithLogger(logger)}, opts...)...),
		storage: s,
		logger:  logger,
		today:   date.Today,
	}
}

// newRouter wires every route of the API.
func newRouter(s *Server) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/events", s.listEventsHandler).Methods("GET")
	router.HandleFunc("/events", s.createEventHandler).Methods("POST")
	router.HandleFunc("/events/import", s.importEventsHandler).Methods("POST")
	router.HandleFunc("/balances", s.balancesHandler).Methods("GET")
	router.HandleFunc("/snapshots", s.listSnapshotsHandler).Methods("GET")
	router.HandleFunc("/snapshots", s.createSnapshotHandler).Methods("POST")
	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps input errors to 400 and everything else to 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ledger.ErrInvalidRange) || errors.Is(err, ledger.ErrInvalidEvent) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// dateParam reads an optional date query parameter, defaulting to today.
func (s *Server) dateParam(r *http.Request, name string) (date.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return s.today(), nil
	}
	return ledger.ParseEndDate(v)
}

func (s *Server) listEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := s.ledger.ListEvents()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) createEventHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type   models.EventType `json:"type"`
		Amount decimal.Decimal  `json:"amount"`
		Date   date.Date        `json:"date"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := s.ledger.RecordEvent(req.Type, req.Amount, req.Date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

type rejectedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type importResponse struct {
	BatchID  string        `json:"batch_id"`
	Loaded   int           `json:"loaded"`
	Rejected []rejectedRow `json:"rejected"`
}

// importEventsHandler appends the CSV rows of the request body.
func (s *Server) importEventsHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.Import(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := importResponse{BatchID: res.BatchID.String(), Loaded: res.Loaded, Rejected: []rejectedRow{}}
	for _, rej := range res.Rejected {
		resp.Rejected = append(resp.Rejected, rejectedRow{Row: rej.Row, Reason: rej.Reason})
	}
	writeJSON(w, http.StatusCreated, resp)
}

type advanceLine struct {
	Identifier     int             `json:"identifier"`
	EventID        int64           `json:"event_id"`
	Date           date.Date       `json:"date"`
	InitialAmount  decimal.Decimal `json:"initial_amount"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

type balancesResponse struct {
	AsOf        date.Date           `json:"as_of"`
	Days        int                 `json:"days"`
	Advances    []advanceLine       `json:"advances"`
	Summary     models.Summary      `json:"summary"`
	Allocations []ledger.Allocation `json:"allocations"`
}

func (s *Server) balancesHandler(w http.ResponseWriter, r *http.Request) {
	end, err := s.dateParam(r, "end_date")
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.ledger.Balances(end)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := balancesResponse{
		AsOf:        res.AsOf,
		Days:        res.Days,
		Advances:    make([]advanceLine, 0, len(res.Advances)),
		Summary:     res.Summary.Rounded(),
		Allocations: res.Allocations,
	}
	if resp.Allocations == nil {
		resp.Allocations = []ledger.Allocation{}
	}
	for i, adv := range res.Advances {
		resp.Advances = append(resp.Advances, advanceLine{
			Identifier:     i + 1,
			EventID:        adv.Event.ID,
			Date:           adv.Event.Date,
			InitialAmount:  adv.Event.Amount,
			CurrentBalance: adv.Balance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listSnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.ledger.ListSnapshots()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if snapshots == nil {
		snapshots = []*models.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) createSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	asOf, err := s.dateParam(r, "as_of")
	if err != nil {
		s.writeError(w, err)
		return
	}
	snapshot, err := s.ledger.TakeSnapshot(asOf)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

func main() {
	configPath := flag.String("config", "ledger.yaml", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	rate, _ := cfg.DailyRate()

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	sqliteStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, logger, ledger.WithDailyRate(rate))

	sched := scheduler.NewScheduler(server.ledger, logger)
	if err := sched.Register(cfg.Schedule.SnapshotCron); err != nil {
		log.Fatalf("Failed to schedule snapshots: %v", err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})(newRouter(server))

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Addr), zap.String("db", cfg.Database.Path))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
