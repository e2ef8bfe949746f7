package service

import (
	"context"

	"airsupport/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) SearchReservations(ctx context.Context, kind models.Kind, f models.SearchFilter) ([]models.Row, error) {
	args := m.Called(ctx, kind, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Row), args.Error(1)
}

func (m *mockRepo) SetBooked(ctx context.Context, kind models.Kind, id int64, booked bool) (models.OpResult, error) {
	args := m.Called(ctx, kind, id, booked)
	return args.Get(0).(models.OpResult), args.Error(1)
}

func (m *mockRepo) UpdateReservation(ctx context.Context, kind models.Kind, id int64, fields map[string]string) (models.OpResult, error) {
	args := m.Called(ctx, kind, id, fields)
	return args.Get(0).(models.OpResult), args.Error(1)
}

func (m *mockRepo) ReservationTable(ctx context.Context, kind models.Kind) (*models.Table, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Table), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockApprovalRepo struct {
	mock.Mock
}

func (m *mockApprovalRepo) SaveApproval(ctx context.Context, a *models.PendingApproval) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockApprovalRepo) GetApproval(ctx context.Context, id string) (*models.PendingApproval, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingApproval), args.Error(1)
}

func (m *mockApprovalRepo) TakeApproval(ctx context.Context, id string) (*models.PendingApproval, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingApproval), args.Error(1)
}
