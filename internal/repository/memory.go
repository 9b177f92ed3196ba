package repository

import (
	"context"
	"sync"
	"time"

	"camrent/internal/models"
)

type memoryEntry struct {
	state     models.DialogState
	expiresAt time.Time
}

// MemoryDialogRepository keeps dialog state in process. Entries expire after
// ttl like their Redis counterparts; a zero ttl keeps them forever.
type MemoryDialogRepository struct {
	dialogs sync.Map
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryDialogRepository(ttl time.Duration) *MemoryDialogRepository {
	return &MemoryDialogRepository{ttl: ttl, now: time.Now}
}

func (r *MemoryDialogRepository) GetDialog(ctx context.Context, id string) (*models.DialogState, error) {
	val, ok := r.dialogs.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		r.dialogs.CompareAndDelete(id, val)
		return nil, nil
	}
	state := entry.state
	return &state, nil
}

func (r *MemoryDialogRepository) SetDialog(ctx context.Context, state *models.DialogState) error {
	entry := &memoryEntry{state: *state}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.dialogs.Store(state.ID, entry)
	return nil
}

func (r *MemoryDialogRepository) ClearDialog(ctx context.Context, id string) error {
	r.dialogs.Delete(id)
	return nil
}
