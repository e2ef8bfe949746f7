package repository

import (
	"context"
	"sync/atomic"
	"time"

	"airsupport/internal/domain"
	"airsupport/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverApprovalRepository writes to primary until it fails, then serves
// from fallback and retries primary once per recoveryInterval.
type FailoverApprovalRepository struct {
	primary   domain.ApprovalRepository
	fallback  domain.ApprovalRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverApprovalRepository(primary, fallback domain.ApprovalRepository, logger *zerolog.Logger) *FailoverApprovalRepository {
	return &FailoverApprovalRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverApprovalRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary approval repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(r.now().UnixNano())
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverApprovalRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverApprovalRepository) recovered() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("Primary approval repository recovered")
	}
}

func (r *FailoverApprovalRepository) SaveApproval(ctx context.Context, approval *models.PendingApproval) error {
	if r.usePrimary() {
		err := r.primary.SaveApproval(ctx, approval)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SaveApproval(ctx, approval)
}

// GetApproval consults fallback too, since entries written while primary was
// down live only there.
func (r *FailoverApprovalRepository) GetApproval(ctx context.Context, id string) (*models.PendingApproval, error) {
	if r.usePrimary() {
		approval, err := r.primary.GetApproval(ctx, id)
		if err == nil {
			r.recovered()
			if approval != nil {
				return approval, nil
			}
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.GetApproval(ctx, id)
}

func (r *FailoverApprovalRepository) TakeApproval(ctx context.Context, id string) (*models.PendingApproval, error) {
	if r.usePrimary() {
		approval, err := r.primary.TakeApproval(ctx, id)
		if err == nil {
			r.recovered()
			if approval != nil {
				return approval, nil
			}
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.TakeApproval(ctx, id)
}
