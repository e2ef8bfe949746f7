package domain

import (
	"context"

	"airsupport/internal/models"
)

type ReservationRepository interface {
	SearchReservations(ctx context.Context, kind models.Kind, filter models.SearchFilter) ([]models.Row, error)
	SetBooked(ctx context.Context, kind models.Kind, id int64, booked bool) (models.OpResult, error)
	UpdateReservation(ctx context.Context, kind models.Kind, id int64, fields map[string]string) (models.OpResult, error)
	ReservationTable(ctx context.Context, kind models.Kind) (*models.Table, error)
}

// ApprovalRepository stores parked tool calls. Missing entries are reported
// as (nil, nil).
type ApprovalRepository interface {
	SaveApproval(ctx context.Context, approval *models.PendingApproval) error
	GetApproval(ctx context.Context, id string) (*models.PendingApproval, error)
	TakeApproval(ctx context.Context, id string) (*models.PendingApproval, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type PolicyLookup interface {
	Lookup(ctx context.Context, query string) (string, error)
}

type ReservationService interface {
	Search(ctx context.Context, kind models.Kind, filter models.SearchFilter) ([]models.Row, error)
	Book(ctx context.Context, kind models.Kind, id int64) (string, error)
	Update(ctx context.Context, kind models.Kind, id int64, fields map[string]string) (string, error)
	Cancel(ctx context.Context, kind models.Kind, id int64) (string, error)
	Export(ctx context.Context) ([]*models.Table, error)
}

type ApprovalService interface {
	Request(ctx context.Context, tool string, args []byte) (*models.PendingApproval, error)
	Get(ctx context.Context, id string) (*models.PendingApproval, error)
	Resolve(ctx context.Context, id string, approved bool) (*models.PendingApproval, error)
}
