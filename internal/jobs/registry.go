// Package jobs tracks per-owner background work: one live progress state per owner,
// a lock so an owner runs one job at a time, and a bounded runner for the work itself.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codyseavey/tcg-inventory/internal/importer"
)

type Kind string

const (
	KindImport           Kind = "import"
	KindRefreshMissing   Kind = "refresh_missing"
	KindRefreshAll       Kind = "refresh_all"
	KindRefreshSelection Kind = "refresh_selection"
	KindTemplateImport   Kind = "template_import"
)

type Phase string

const (
	PhasePreprocessing Phase = "preprocessing"
	PhaseImporting     Phase = "importing"
	PhasePriceUpdate   Phase = "price_update"
	PhaseComplete      Phase = "complete"
	PhaseError         Phase = "error"
)

// Summary is the outcome reported when a job completes
type Summary struct {
	Imported   int                 `json:"imported"`
	Updated    int                 `json:"updated"`
	Enriched   int                 `json:"enriched"`
	Skipped    int                 `json:"skipped"`
	Errors     int                 `json:"errors"`
	Alerts     int                 `json:"alerts"`
	TemplateID uint                `json:"template_id,omitempty"`
	RowErrors  []importer.RowError `json:"row_errors,omitempty"`
}

// State is a snapshot of one owner's latest job. States are never modified in place;
// each update stores a new value.
type State struct {
	JobID     string    `json:"job_id"`
	Kind      Kind      `json:"kind"`
	Phase     Phase     `json:"phase"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Message   string    `json:"message,omitempty"`
	CardName  string    `json:"card_name,omitempty"`
	Summary   *Summary  `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the job has not yet reached a terminal phase
func (s State) Active() bool {
	return s.Phase != PhaseComplete && s.Phase != PhaseError
}

// Registry holds the latest job state for each owner
type Registry struct {
	mu     sync.RWMutex
	states map[string]State
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		states: make(map[string]State),
		now:    time.Now,
	}
}

// Begin replaces the owner's state with a fresh preprocessing state and returns it
func (r *Registry) Begin(ownerID string, kind Kind) State {
	now := r.now()
	state := State{
		JobID:     uuid.NewString(),
		Kind:      kind,
		Phase:     PhasePreprocessing,
		StartedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.states[ownerID] = state
	r.mu.Unlock()
	return state
}

// update applies fn to a copy of the owner's state and stores the result. Updates for
// a job that is no longer the owner's latest, or that already finished, are dropped.
func (r *Registry) update(ownerID, jobID string, fn func(*State)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[ownerID]
	if !ok || state.JobID != jobID || !state.Active() {
		return false
	}
	fn(&state)
	state.UpdatedAt = r.now()
	r.states[ownerID] = state
	return true
}

// SetPhase moves the job to a new phase, resetting its progress counter
func (r *Registry) SetPhase(ownerID, jobID string, phase Phase, total int, message string) {
	r.update(ownerID, jobID, func(s *State) {
		s.Phase = phase
		s.Current = 0
		s.Total = total
		s.Message = message
		s.CardName = ""
	})
}

func (r *Registry) Tick(ownerID, jobID string, current int, cardName string) {
	r.update(ownerID, jobID, func(s *State) {
		s.Current = current
		s.CardName = cardName
	})
}

func (r *Registry) Complete(ownerID, jobID string, summary Summary, message string) {
	r.update(ownerID, jobID, func(s *State) {
		s.Phase = PhaseComplete
		s.Current = s.Total
		s.CardName = ""
		s.Message = message
		s.Summary = &summary
	})
}

func (r *Registry) Fail(ownerID, jobID string, err error) {
	r.update(ownerID, jobID, func(s *State) {
		s.Phase = PhaseError
		s.Error = err.Error()
		s.CardName = ""
	})
}

// Status returns the owner's latest state, if any
func (r *Registry) Status(ownerID string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[ownerID]
	return state, ok
}

// Prune drops finished states last updated before cutoff
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for owner, state := range r.states {
		if !state.Active() && state.UpdatedAt.Before(cutoff) {
			delete(r.states, owner)
			removed++
		}
	}
	return removed
}
