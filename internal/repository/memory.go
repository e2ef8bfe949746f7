package repository

import (
	"context"
	"sync"
	"time"

	"airsupport/internal/models"

	"github.com/patrickmn/go-cache"
)

type MemoryApprovalRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemoryApprovalRepository(ttl time.Duration) *MemoryApprovalRepository {
	return &MemoryApprovalRepository{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *MemoryApprovalRepository) SaveApproval(_ context.Context, approval *models.PendingApproval) error {
	cp := *approval
	r.cache.SetDefault(approval.ID, &cp)
	return nil
}

func (r *MemoryApprovalRepository) GetApproval(_ context.Context, id string) (*models.PendingApproval, error) {
	val, ok := r.cache.Get(id)
	if !ok {
		return nil, nil
	}
	cp := *val.(*models.PendingApproval)
	return &cp, nil
}

func (r *MemoryApprovalRepository) TakeApproval(_ context.Context, id string) (*models.PendingApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	val, ok := r.cache.Get(id)
	if !ok {
		return nil, nil
	}
	r.cache.Delete(id)
	return val.(*models.PendingApproval), nil
}
