package catalog

import (
	"context"
	"sync"
	"time"

	appLog "catalogd/internal/log"
	"catalogd/internal/model"
)

// State is the display state of a Session.
type State int

const (
	StateLoading State = iota
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "loading"
	}
}

// Update is what a consumer renders: loading, an error, or a catalog.
type Update struct {
	State   State
	Catalog SortedCatalog
	Err     error
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Kind    model.Kind
	Catalog CatalogSource
	// Registrations is nil for anonymous consumers.
	Registrations RegistrationSource
	Location      *time.Location
	Criteria      FilterCriteria
	Now           func() time.Time

	// OnUpdate is called, in order, after each applied fetch result.
	OnUpdate func(Update)
}

// Session is the long-lived view over one catalog kind. The catalog and
// registration fetches run concurrently; whichever arrives first is applied
// and the merge is rerun when the other one lands.
type Session struct {
	cfg SessionConfig

	emitMu sync.Mutex

	mu            sync.Mutex
	gen           uint64
	cancel        context.CancelFunc
	closed        bool
	state         State
	records       []RawRecord
	catalogErr    error
	registrations []RawRegistration
	criteria      FilterCriteria
}

func NewSession(cfg SessionConfig) *Session {
	return &Session{
		cfg:      cfg,
		state:    StateLoading,
		criteria: cfg.Criteria,
	}
}

func (s *Session) now() time.Time {
	if s.cfg.Now != nil {
		return s.cfg.Now()
	}
	return time.Now()
}

// Load starts a new fetch generation, cancelling any outstanding one. The
// returned channel is closed once both fetches have settled.
func (s *Session) Load(ctx context.Context) (<-chan struct{}, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	lctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateLoading
	s.records = nil
	s.catalogErr = nil
	s.registrations = nil
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		recs, err := s.cfg.Catalog.FetchCatalog(lctx, s.cfg.Kind)
		s.applyCatalog(gen, recs, err)
	}()
	if s.cfg.Registrations != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := fetchRegistrations(lctx, s.cfg.Registrations, s.cfg.Kind)
			s.applyRegistrations(gen, list, err)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done, nil
}

func (s *Session) applyCatalog(gen uint64, recs []RawRecord, err error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		appLog.Debug("catalog: discarding stale catalog result", "kind", s.cfg.Kind, "generation", gen)
		return
	}
	if err != nil {
		appLog.Error("catalog: session fetch failed", err, "kind", s.cfg.Kind)
		s.state = StateError
		s.records = nil
		s.catalogErr = catalogFailure(err)
	} else {
		if recs == nil {
			recs = []RawRecord{}
		}
		s.state = StateReady
		s.records = recs
		s.catalogErr = nil
	}
	upd := s.updateLocked(s.now())
	s.mu.Unlock()

	s.emit(upd)
}

func (s *Session) applyRegistrations(gen uint64, list []RawRegistration, err error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		appLog.Debug("catalog: discarding stale registration result", "kind", s.cfg.Kind, "generation", gen)
		return
	}
	if err != nil {
		s.mu.Unlock()
		appLog.Info("catalog: session continuing without registrations", "kind", s.cfg.Kind, "reason", err.Error())
		return
	}
	s.registrations = list
	if s.state != StateReady {
		// The catalog result will pick these up.
		s.mu.Unlock()
		return
	}
	upd := s.updateLocked(s.now())
	s.mu.Unlock()

	s.emit(upd)
}

func (s *Session) emit(upd Update) {
	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate(upd)
	}
}

func (s *Session) updateLocked(now time.Time) Update {
	switch s.state {
	case StateError:
		return Update{State: StateError, Err: s.catalogErr}
	case StateReady:
		return Update{
			State: StateReady,
			Catalog: Build(BuildInput{
				Kind:          s.cfg.Kind,
				Records:       s.records,
				Registrations: s.registrations,
				Criteria:      s.criteria,
				Now:           now,
				Location:      s.cfg.Location,
			}),
		}
	default:
		return Update{State: StateLoading}
	}
}

// Snapshot recomputes the current view at now from the stored inputs.
func (s *Session) Snapshot(now time.Time) Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(now)
}

// SetCriteria replaces the filter and returns the recomputed view.
func (s *Session) SetCriteria(c FilterCriteria) Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c
	return s.updateLocked(s.now())
}

// Close cancels outstanding fetches. Results that arrive afterwards are
// discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
}
