// Package web serves the finished run read-only over HTTP: ledger state,
// events and tax rows as JSON pulled from the store.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vadiminshakov/chainledger/internal/domain"
	"github.com/vadiminshakov/chainledger/internal/storage"
)

type reader interface {
	Load(key string, out any) (bool, error)
}

// Server exposes HTTP endpoints serving the latest persisted run.
type Server struct {
	Addr  string
	Store reader
}

// NewServer creates a report server over a store.
func NewServer(addr string, store reader) *Server {
	return &Server{Addr: addr, Store: store}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/taxrows", s.handleTaxRows)
	mux.HandleFunc("/warnings", s.handleWarnings)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("report server failed: %w", err)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var state domain.LedgerState
	s.respond(w, storage.KeyLedgerState, &state, func() any { return state })
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var state domain.LedgerState
	s.respond(w, storage.KeyLedgerState, &state, func() any { return state.Events })
}

func (s *Server) handleTaxRows(w http.ResponseWriter, r *http.Request) {
	var rows []domain.TaxRow
	s.respond(w, storage.KeyTaxRows, &rows, func() any { return rows })
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	var warnings []domain.Warning
	s.respond(w, storage.KeyWarnings, &warnings, func() any { return warnings })
}

func (s *Server) respond(w http.ResponseWriter, key string, out any, pick func() any) {
	found, err := s.Store.Load(key, out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "no run persisted yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(pick())
}
