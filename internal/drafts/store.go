package drafts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/purchasing-console/internal/variants"
	"github.com/angelmondragon/purchasing-console/pkg/backend"
	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
	"github.com/angelmondragon/purchasing-console/pkg/metrics"
)

const (
	defaultSessionTTL    = 2 * time.Hour
	defaultSweepInterval = time.Minute
)

// Store holds the live draft sessions. Variant caches are shared by every session of a scope.
type Store struct {
	variants *variants.Registry
	ttl      time.Duration
	now      func() time.Time
	logg     *logger.Logger
	metrics  *metrics.DraftMetrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// StoreParams configure the session store.
type StoreParams struct {
	Variants *variants.Registry
	TTL      time.Duration
	Logger   *logger.Logger
	Metrics  *metrics.DraftMetrics
	Now      func() time.Time
}

func NewStore(params StoreParams) *Store {
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		variants: params.Variants,
		ttl:      ttl,
		now:      now,
		logg:     params.Logger,
		metrics:  params.Metrics,
		sessions: map[string]*Session{},
	}
}

// Open starts a new empty session for the scope.
func (s *Store) Open(scope backend.Scope) *Session {
	var cache *variants.Cache
	if s.variants != nil {
		cache = s.variants.For(scope)
	}
	session := newSession(uuid.NewString(), scope, cache, s.now())

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()
	s.metrics.Inc(metrics.DraftEventOpened)
	return session
}

// Get returns the session if it exists and belongs to the scope.
func (s *Store) Get(scope backend.Scope, id string) (*Session, error) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok || session.scopeKey != scope.Key() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "draft not found")
	}
	return session, nil
}

// Discard drops the session and cancels any load it has in flight.
func (s *Store) Discard(id string) bool {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		session.close()
	}
	return ok
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep discards sessions idle for longer than the TTL and returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	var expired []*Session
	for id, session := range s.sessions {
		if session.idleSince(now) > s.ttl {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		session.close()
		s.metrics.Inc(metrics.DraftEventExpired)
	}
	return len(expired)
}

// Run sweeps expired sessions on a fixed cadence until the context is canceled.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if dropped := s.Sweep(); dropped > 0 && s.logg != nil {
				s.logg.Info(s.logg.WithField(ctx, "expired_drafts", dropped), "expired draft sessions discarded")
			}
		}
	}
}
