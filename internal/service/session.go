package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-covid/internal/daterange"
	"github.com/joeblew999/plat-covid/internal/dataset"
	"github.com/joeblew999/plat-covid/internal/store"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// SessionCookie carries the session ID between the page, the dashboard
// endpoints and the REST state endpoints.
const SessionCookie = "covid_session"

const saveTimeout = 2 * time.Second

type session struct {
	store    *store.Store
	lastSeen time.Time
}

// SessionService owns one store per browser session. Every dispatch is
// persisted to the repository and published on the bus.
type SessionService struct {
	dataset *dataset.Dataset
	rng     daterange.Range
	repo    SessionRepository
	bus     *EventBus
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionService creates a session service. Sessions start from
// store.Initial(ds, r).
func NewSessionService(ds *dataset.Dataset, r daterange.Range, repo SessionRepository, bus *EventBus, logger *zap.Logger) *SessionService {
	return &SessionService{
		dataset:  ds,
		rng:      r,
		repo:     repo,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Dataset returns the shared dataset.
func (s *SessionService) Dataset() *dataset.Dataset {
	return s.dataset
}

// Range returns the date range fixed at startup.
func (s *SessionService) Range() daterange.Range {
	return s.rng
}

// Bus returns the event bus sessions publish to.
func (s *SessionService) Bus() *EventBus {
	return s.bus
}

// Create starts a new session and returns its ID.
func (s *SessionService) Create(ctx context.Context) (string, *store.Store, error) {
	id := uuid.NewString()
	initial := store.Initial(s.dataset, s.rng)
	if err := s.repo.Save(ctx, id, OverlayOf(initial)); err != nil {
		return "", nil, err
	}

	st := s.track(id, initial)
	s.logger.Debug("Session created", zap.String("session", id))
	return id, st, nil
}

// Get returns the store for id, restoring it from the repository when it is
// not held in memory.
func (s *SessionService) Get(ctx context.Context, id string) (*store.Store, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = s.now()
		s.mu.Unlock()
		return sess.store, nil
	}
	s.mu.Unlock()

	o, ok, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	st := s.track(id, o.Restore(store.Initial(s.dataset, s.rng)))
	s.logger.Debug("Session restored", zap.String("session", id))
	return st, nil
}

// GetOrCreate returns the session for id, or a new one if id is unknown.
func (s *SessionService) GetOrCreate(ctx context.Context, id string) (string, *store.Store, error) {
	st, err := s.Get(ctx, id)
	if err == nil {
		return id, st, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return "", nil, err
	}
	return s.Create(ctx)
}

// Touch marks an in-memory session as seen, keeping it from being pruned.
func (s *SessionService) Touch(id string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = s.now()
	}
	s.mu.Unlock()
}

// sweeper is implemented by repositories that expire overlays themselves
// rather than relying on the backing store.
type sweeper interface {
	Sweep() int
}

// Prune drops in-memory sessions idle for longer than maxIdle. Persisted
// overlays remain in the repository and are restored on the next Get, until
// the repository expires them.
func (s *SessionService) Prune(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	n := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	s.mu.Unlock()

	if sw, ok := s.repo.(sweeper); ok {
		if expired := sw.Sweep(); expired > 0 {
			s.logger.Debug("Expired session overlays", zap.Int("count", expired))
		}
	}
	return n
}

// Len returns the number of sessions held in memory.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) track(id string, initial store.State) *store.Store {
	// The store runs this under its dispatch lock, so saves and events
	// follow dispatch order.
	st := store.New(initial, func(a store.Action, next store.State) {
		s.persist(id, next)
		s.bus.Publish(Event{Session: id, Action: a.ActionType()})
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent restore of the same id may have won.
	if sess, ok := s.sessions[id]; ok {
		return sess.store
	}
	s.sessions[id] = &session{store: st, lastSeen: s.now()}
	return st
}

func (s *SessionService) persist(id string, state store.State) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.repo.Save(ctx, id, OverlayOf(state)); err != nil {
		s.logger.Warn("Failed to persist session", zap.String("session", id), zap.Error(err))
	}
}
