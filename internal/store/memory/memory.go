// Package memory is the in-memory document store used by tests and local
// development runs.
package memory

import (
	"context"
	"sync"

	"roomie/internal/core"
	"roomie/internal/store"
)

type Store struct {
	mu    sync.Mutex
	doc   core.Document
	saves int

	// FailLoad and FailSave inject persistence failures in tests.
	FailLoad error
	FailSave error
}

var _ store.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{doc: core.NewDocument()}
}

// NewSeeded starts from an existing document.
func NewSeeded(doc core.Document) *Store {
	return &Store{doc: doc.Clone()}
}

func (s *Store) Load(_ context.Context) (core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLoad != nil {
		return core.Document{}, s.FailLoad
	}
	return s.doc.Clone(), nil
}

func (s *Store) Save(_ context.Context, doc core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.doc = doc.Clone()
	s.saves++
	return nil
}

// Saves reports how many saves succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
