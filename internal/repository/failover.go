package repository

import (
	"context"
	"sync/atomic"
	"time"

	"camrent/internal/domain"
	"camrent/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverDialogRepository serves from primary until it fails, then from
// fallback, probing primary again once per recoveryInterval.
type FailoverDialogRepository struct {
	primary   domain.DialogStateRepository
	fallback  domain.DialogStateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverDialogRepository(primary, fallback domain.DialogStateRepository, logger *zerolog.Logger) *FailoverDialogRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverDialogRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverDialogRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverDialogRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary dialog repository failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverDialogRepository) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary dialog repository recovered")
	}
}

func (r *FailoverDialogRepository) GetDialog(ctx context.Context, id string) (*models.DialogState, error) {
	if r.usePrimary() {
		state, err := r.primary.GetDialog(ctx, id)
		if err == nil {
			r.markUp()
			return state, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetDialog(ctx, id)
}

func (r *FailoverDialogRepository) SetDialog(ctx context.Context, state *models.DialogState) error {
	if r.usePrimary() {
		err := r.primary.SetDialog(ctx, state)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetDialog(ctx, state)
}

func (r *FailoverDialogRepository) ClearDialog(ctx context.Context, id string) error {
	// fallback may hold a copy written while primary was down
	_ = r.fallback.ClearDialog(ctx, id)
	if r.usePrimary() {
		err := r.primary.ClearDialog(ctx, id)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return nil
}
