package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dkuzmenko/authd/internal/common"
	"github.com/dkuzmenko/authd/internal/server/models"
)

// MemoryRepository is a mutex-guarded in-memory ledger. It backs unit tests
// and the "memory" store mode for local development. The single mutex gives
// the same one-winner revoke guarantee the SQL backend gets from its
// conditional UPDATE.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[string]*models.RefreshSession
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]*models.RefreshSession)}
}

func (r *MemoryRepository) Record(_ context.Context, session *models.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[session.ID]; ok {
		return common.ErrConflict
	}

	stored := *session
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.entries[stored.ID] = &stored
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, id string) (*models.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.entries[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *s
	return &out, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, id string, successorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.entries[id]
	if !ok {
		return common.ErrorNotFound
	}
	if s.Revoked {
		return common.ErrAlreadyRevoked
	}
	s.Revoked = true
	s.SuccessorID = successorID
	return nil
}

// All returns a snapshot of every ledger entry. Tests use it to check
// rotation chain integrity.
func (r *MemoryRepository) All() []*models.RefreshSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.RefreshSession, 0, len(r.entries))
	for _, s := range r.entries {
		copied := *s
		out = append(out, &copied)
	}
	return out
}
