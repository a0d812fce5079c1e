package drafts

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/purchasing-console/internal/catalog"
	"github.com/angelmondragon/purchasing-console/internal/variants"
	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/types"
)

// Session is the in-memory state behind one purchase-order creation screen.
type Session struct {
	id        string
	scopeKey  string
	variants  *variants.Cache
	createdAt time.Time

	mu         sync.Mutex
	touchedAt  time.Time
	draft      *Draft
	catalog    *catalog.Catalog
	notices    types.Notices
	// generation increments on every supplier selection; loads started under an older
	// generation are discarded.
	generation uint64
	loading    string
	cancelLoad context.CancelFunc
	submitting bool
}

func newSession(id string, scope backend.Scope, cache *variants.Cache, now time.Time) *Session {
	return &Session{
		id:        id,
		scopeKey:  scope.Key(),
		variants:  cache,
		createdAt: now,
		touchedAt: now,
		draft:     NewDraft(),
	}
}

// ID is the session identifier.
func (s *Session) ID() string {
	return s.id
}

// View is the client-facing snapshot of a session.
type View struct {
	ID                string             `json:"id"`
	SupplierID        string             `json:"supplierId,omitempty"`
	LoadingSupplierID string             `json:"loadingSupplierId,omitempty"`
	Lines             []Line             `json:"lines"`
	Flat              []FlatLine         `json:"flat"`
	Rows              []catalog.Row      `json:"rows"`
	Conflicts         []catalog.Conflict `json:"conflicts,omitempty"`
	Notices           types.Notices      `json:"notices"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// viewLocked snapshots the session. Callers hold s.mu.
func (s *Session) viewLocked(extra types.Notices) View {
	view := View{
		ID:                s.id,
		SupplierID:        s.draft.SupplierID(),
		LoadingSupplierID: s.loading,
		Lines:             s.draft.Lines(),
		Flat:              s.draft.Flat(),
		Rows:              []catalog.Row{},
		Notices:           append(append(types.Notices{}, s.notices...), extra...),
		CreatedAt:         s.createdAt,
		UpdatedAt:         s.touchedAt,
	}
	if view.Lines == nil {
		view.Lines = []Line{}
	}
	if s.catalog != nil {
		view.Rows = s.catalog.Rows()
		view.Conflicts = s.catalog.Conflicts()
	}
	return view
}

// beginLoad resets the draft and starts a new supplier generation, cancelling any load in flight.
// Callers hold s.mu.
func (s *Session) beginLoad(ctx context.Context, supplierID string, now time.Time) (context.Context, uint64) {
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	s.generation++
	s.draft.Clear()
	s.catalog = nil
	s.notices = nil
	s.loading = supplierID
	s.touchedAt = now

	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	return loadCtx, s.generation
}

// finishLoad releases the load of generation gen. It reports false when a newer selection
// superseded it. Callers hold s.mu.
func (s *Session) finishLoad(gen uint64) bool {
	if gen != s.generation {
		return false
	}
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.loading = ""
	return true
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.generation++
	s.draft.Clear()
	s.catalog = nil
	s.loading = ""
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.touchedAt)
}
