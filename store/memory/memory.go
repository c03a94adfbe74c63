// Package memory provides an in-memory Persister for tests and dev.
package memory

import (
	"context"
	"sync"

	"github.com/humidor/valuation-engine/inventory"
	"github.com/humidor/valuation-engine/ledger"
)

type Store struct {
	mu      sync.Mutex
	lots    []*inventory.Lot
	entries []ledger.Entry

	// FailNext makes the next Save return this error, for exercising the
	// engine's fail-soft persistence path.
	FailNext error
}

func New() *Store {
	return &Store{}
}

func (s *Store) Save(_ context.Context, lots []*inventory.Lot, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return err
	}

	s.lots = make([]*inventory.Lot, len(lots))
	for i, l := range lots {
		s.lots[i] = l.Clone()
	}
	s.entries = append([]ledger.Entry(nil), entries...)
	return nil
}

func (s *Store) Load(_ context.Context) ([]*inventory.Lot, []ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lots := make([]*inventory.Lot, len(s.lots))
	for i, l := range s.lots {
		lots[i] = l.Clone()
	}
	entries := append([]ledger.Entry(nil), s.entries...)
	return lots, entries, nil
}
