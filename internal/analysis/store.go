// Package analysis holds the single current analysis shown by the front end
// together with the cached statement list of the signed-in account.
package analysis

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/model"
)

// ChangeType names the kind of store mutation.
type ChangeType string

const (
	ChangeAdopted    ChangeType = "adopted"
	ChangeCleared    ChangeType = "cleared"
	ChangeStatements ChangeType = "statements"
)

// Change is delivered to subscribers after every mutation.
type Change struct {
	Type     ChangeType
	Revision uint64
	// Analysis is a copy of the new current analysis, nil after a clear.
	Analysis *model.CurrentAnalysis
}

// Store is the single source of truth for the current analysis. Every value
// is copied on the way in and on the way out.
type Store struct {
	log zerolog.Logger

	mu         sync.RWMutex
	current    *model.CurrentAnalysis
	statements []model.StatementRecord
	revision   uint64

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Change)
	order  []int
}

// NewStore creates an empty store.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		log:  log.With().Str("component", "analysis").Logger(),
		subs: make(map[int]func(Change)),
	}
}

// Adopt replaces the current analysis with candidate. Last write wins.
func (s *Store) Adopt(candidate model.CurrentAnalysis) {
	s.mu.Lock()
	s.adoptLocked(candidate)
	ch := s.changeLocked(ChangeAdopted)
	s.mu.Unlock()

	s.notify(ch)
}

// ReplaceIf adopts candidate only when no other mutation happened since rev
// was read. It reports whether the replace took place.
func (s *Store) ReplaceIf(rev uint64, candidate model.CurrentAnalysis) bool {
	s.mu.Lock()
	if s.revision != rev {
		s.mu.Unlock()
		return false
	}
	s.adoptLocked(candidate)
	ch := s.changeLocked(ChangeAdopted)
	s.mu.Unlock()

	s.notify(ch)
	return true
}

// Clear drops the current analysis and the cached statements.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.statements = nil
	s.revision++
	ch := s.changeLocked(ChangeCleared)
	s.mu.Unlock()

	s.notify(ch)
}

// Current returns a copy of the current analysis.
func (s *Store) Current() (model.CurrentAnalysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.CurrentAnalysis{}, false
	}
	return s.current.Clone(), true
}

// Snapshot returns the current analysis together with the revision it was
// read at.
func (s *Store) Snapshot() (model.CurrentAnalysis, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.CurrentAnalysis{}, s.revision, false
	}
	return s.current.Clone(), s.revision, true
}

// Revision increases on every mutation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Statements returns a copy of the cached statement list.
func (s *Store) Statements() []model.StatementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneStatements(s.statements)
}

// SetStatements replaces the cached statement list.
func (s *Store) SetStatements(stmts []model.StatementRecord) {
	s.mu.Lock()
	s.statements = model.CloneStatements(stmts)
	s.revision++
	ch := s.changeLocked(ChangeStatements)
	s.mu.Unlock()

	s.notify(ch)
}

// Subscribe registers fn for change notifications.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.order = append(s.order, id)

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) adoptLocked(candidate model.CurrentAnalysis) {
	next := candidate.Clone()
	next.SummaryInconsistent = false
	if next.Summary != nil && !next.Summary.Consistent() {
		next.SummaryInconsistent = true
		s.log.Warn().
			Str("source", string(next.Provenance)).
			Float64("total_income", next.Summary.TotalIncome).
			Float64("total_expenses", next.Summary.TotalExpenses).
			Float64("cash_flow", next.Summary.CashFlow).
			Msg("analysis summary is inconsistent: cash flow != income - expenses")
	}
	s.current = &next
	s.revision++
}

func (s *Store) changeLocked(t ChangeType) Change {
	ch := Change{Type: t, Revision: s.revision}
	if s.current != nil {
		a := s.current.Clone()
		ch.Analysis = &a
	}
	return ch
}

func (s *Store) notify(ch Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.order))
	live := s.order[:0]
	for _, id := range s.order {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
			live = append(live, id)
		}
	}
	s.order = live
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}
