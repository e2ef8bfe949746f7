package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"airsupport/internal/database"
	"airsupport/internal/events"
	"airsupport/internal/models"
	"airsupport/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newService(repo *mockRepo, bus *mockEventBus) *ReservationService {
	logger := zerolog.New(io.Discard)
	if bus == nil {
		return NewReservationService(repo, nil, &logger)
	}
	return NewReservationService(repo, bus, &logger)
}

func TestReservationService_StatusMessages(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		kind models.Kind
		call func(s *ReservationService) (string, error)
		mock func(r *mockRepo)
		want string
	}{
		{
			name: "book car rental",
			call: func(s *ReservationService) (string, error) { return s.Book(ctx, models.KindCarRental, 3) },
			mock: func(r *mockRepo) {
				r.On("SetBooked", ctx, models.KindCarRental, int64(3), true).
					Return(models.OpResult{Kind: models.KindCarRental, ID: 3, Affected: 1}, nil)
			},
			want: "Car rental 3 successfully booked.",
		},
		{
			name: "cancel hotel",
			call: func(s *ReservationService) (string, error) { return s.Cancel(ctx, models.KindHotel, 7) },
			mock: func(r *mockRepo) {
				r.On("SetBooked", ctx, models.KindHotel, int64(7), false).
					Return(models.OpResult{Kind: models.KindHotel, ID: 7, Affected: 1}, nil)
			},
			want: "Hotel 7 successfully cancelled.",
		},
		{
			name: "book missing excursion",
			call: func(s *ReservationService) (string, error) { return s.Book(ctx, models.KindExcursion, 99) },
			mock: func(r *mockRepo) {
				r.On("SetBooked", ctx, models.KindExcursion, int64(99), true).
					Return(models.OpResult{Kind: models.KindExcursion, ID: 99}, nil)
			},
			want: "No trip recommendation found with ID 99.",
		},
		{
			name: "update with no fields",
			call: func(s *ReservationService) (string, error) {
				return s.Update(ctx, models.KindCarRental, 2, map[string]string{})
			},
			mock: func(r *mockRepo) {
				r.On("UpdateReservation", ctx, models.KindCarRental, int64(2), map[string]string{}).
					Return(models.OpResult{Kind: models.KindCarRental, ID: 2}, database.ErrNoChanges)
			},
			want: "No changes provided for car rental 2.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRepo)
			bus := new(mockEventBus)
			bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Maybe()
			tt.mock(repo)

			got, err := tt.call(newService(repo, bus))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			repo.AssertExpectations(t)
		})
	}
}

func TestReservationService_PublishesOnSuccessOnly(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	bus := new(mockEventBus)
	s := newService(repo, bus)

	fields := map[string]string{"checkin_date": "2024-05-01"}
	repo.On("UpdateReservation", ctx, models.KindHotel, int64(1), fields).
		Return(models.OpResult{Kind: models.KindHotel, ID: 1, Affected: 1}, nil).Once()
	bus.On("PublishJSON", events.EventReservationUpdated, mock.MatchedBy(func(p events.ReservationEventPayload) bool {
		return p.ID == 1 && p.Kind == "hotel" && p.Fields["checkin_date"] == "2024-05-01"
	})).Return(nil).Once()

	msg, err := s.Update(ctx, models.KindHotel, 1, fields)
	require.NoError(t, err)
	assert.Equal(t, "Hotel 1 successfully updated.", msg)

	repo.On("UpdateReservation", ctx, models.KindHotel, int64(2), fields).
		Return(models.OpResult{Kind: models.KindHotel, ID: 2}, nil).Once()
	msg, err = s.Update(ctx, models.KindHotel, 2, fields)
	require.NoError(t, err)
	assert.Equal(t, "No hotel found with ID 2.", msg)

	bus.AssertExpectations(t)
	bus.AssertNumberOfCalls(t, "PublishJSON", 1)
}

func TestReservationService_RepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	s := newService(repo, nil)

	boom := errors.New("disk I/O error")
	repo.On("SetBooked", ctx, models.KindHotel, int64(1), true).Return(models.OpResult{}, boom)

	_, err := s.Book(ctx, models.KindHotel, 1)
	assert.ErrorIs(t, err, boom)
}

func TestReservationService_Export(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	s := newService(repo, nil)

	for _, kind := range models.Kinds() {
		repo.On("ReservationTable", ctx, kind).Return(&models.Table{Kind: kind}, nil).Once()
	}

	tables, err := s.Export(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 3)
	assert.Equal(t, models.KindCarRental, tables[0].Kind)
	assert.Equal(t, models.KindExcursion, tables[2].Kind)
}

// Runs against a real working copy to pin the booked-flag behaviour end to end.
func TestReservationService_WithDatabase(t *testing.T) {
	ctx := context.Background()
	path := testutil.WriteTravelDB(t, t.TempDir(), "travel.sqlite")
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(path, &logger)
	require.NoError(t, err)
	defer db.Close()

	s := NewReservationService(db, events.NewEventBus(), &logger)

	before, err := s.Search(ctx, models.KindCarRental, models.SearchFilter{})
	require.NoError(t, err)

	msg, err := s.Book(ctx, models.KindCarRental, 404)
	require.NoError(t, err)
	assert.Equal(t, "No car rental found with ID 404.", msg)

	after, err := s.Search(ctx, models.KindCarRental, models.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)

	for i := 0; i < 3; i++ {
		_, err = s.Cancel(ctx, models.KindCarRental, 1)
		require.NoError(t, err)
		msg, err = s.Book(ctx, models.KindCarRental, 1)
		require.NoError(t, err)
		assert.Equal(t, "Car rental 1 successfully booked.", msg)
	}

	var booked int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT booked FROM car_rentals WHERE id = 1").Scan(&booked))
	assert.Equal(t, 1, booked)
}
