package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"airsupport/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReservations struct {
	mock.Mock
}

func (m *mockReservations) Search(ctx context.Context, kind models.Kind, f models.SearchFilter) ([]models.Row, error) {
	args := m.Called(ctx, kind, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Row), args.Error(1)
}

func (m *mockReservations) Book(ctx context.Context, kind models.Kind, id int64) (string, error) {
	args := m.Called(ctx, kind, id)
	return args.String(0), args.Error(1)
}

func (m *mockReservations) Update(ctx context.Context, kind models.Kind, id int64, fields map[string]string) (string, error) {
	args := m.Called(ctx, kind, id, fields)
	return args.String(0), args.Error(1)
}

func (m *mockReservations) Cancel(ctx context.Context, kind models.Kind, id int64) (string, error) {
	args := m.Called(ctx, kind, id)
	return args.String(0), args.Error(1)
}

func (m *mockReservations) Export(ctx context.Context) ([]*models.Table, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Table), args.Error(1)
}

type stubPolicy struct {
	query string
	err   error
}

func (p *stubPolicy) Lookup(_ context.Context, q string) (string, error) {
	p.query = q
	return "## Refunds\nAllowed within 24 hours.", p.err
}

func newRegistry(svc *mockReservations, policy *stubPolicy) *Registry {
	logger := zerolog.New(io.Discard)
	return NewRegistry(svc, policy, &logger)
}

func TestRegistry_Descriptors(t *testing.T) {
	r := newRegistry(new(mockReservations), &stubPolicy{})
	descs := r.Descriptors()
	require.Len(t, descs, 13)

	sensitive := map[string]bool{}
	for _, d := range descs {
		sensitive[d.Name] = d.Sensitive
	}
	assert.False(t, sensitive["search_car_rentals"])
	assert.False(t, sensitive["search_trip_recommendations"])
	assert.False(t, sensitive[LookupPolicy])
	for _, name := range []string{
		"book_car_rental", "update_car_rental", "cancel_car_rental",
		"book_hotel", "update_hotel", "cancel_hotel",
		"book_excursion", "update_excursion", "cancel_excursion",
	} {
		assert.True(t, sensitive[name], name)
	}

	hotelSearch, err := r.Descriptor("search_hotels")
	require.NoError(t, err)
	assert.Equal(t, []string{"location", "name", "price_tier", "checkin_date", "checkout_date"}, hotelSearch.Args)

	tripSearch, err := r.Descriptor("search_trip_recommendations")
	require.NoError(t, err)
	assert.Equal(t, []string{"location", "name", "keywords"}, tripSearch.Args)

	_, err = r.Descriptor("book_flight")
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistry_Search(t *testing.T) {
	ctx := context.Background()
	svc := new(mockReservations)
	r := newRegistry(svc, &stubPolicy{})

	rows := []models.Row{{"id": int64(1), "name": "Hilton Basel"}}
	svc.On("Search", ctx, models.KindHotel, models.SearchFilter{
		Text:      map[string]string{"location": "Basel", "name": ""},
		Range:     map[string]string{"checkin_date": "2024-04-22"},
		PriceTier: "Luxury",
	}).Return(rows, nil).Once()

	out, err := r.Call(ctx, "search_hotels",
		json.RawMessage(`{"location":"Basel","price_tier":"Luxury","checkin_date":"2024-04-22","checkout_date":null}`))
	require.NoError(t, err)
	assert.Equal(t, rows, out)

	svc.On("Search", ctx, models.KindExcursion, models.SearchFilter{
		Text:     map[string]string{"location": "", "name": ""},
		Range:    map[string]string{},
		Keywords: "art, history",
	}).Return([]models.Row{}, nil).Once()

	_, err = r.Call(ctx, "search_trip_recommendations", json.RawMessage(`{"keywords":"art, history"}`))
	require.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestRegistry_Mutations(t *testing.T) {
	ctx := context.Background()
	svc := new(mockReservations)
	r := newRegistry(svc, &stubPolicy{})

	svc.On("Book", ctx, models.KindCarRental, int64(2)).Return("Car rental 2 successfully booked.", nil).Once()
	svc.On("Cancel", ctx, models.KindExcursion, int64(4)).Return("Trip recommendation 4 successfully cancelled.", nil).Once()
	svc.On("Update", ctx, models.KindHotel, int64(1), map[string]string{"checkout_date": "2024-05-02"}).
		Return("Hotel 1 successfully updated.", nil).Once()

	out, err := r.Call(ctx, "book_car_rental", json.RawMessage(`{"rental_id":2}`))
	require.NoError(t, err)
	assert.Equal(t, "Car rental 2 successfully booked.", out)

	out, err = r.Call(ctx, "cancel_excursion", json.RawMessage(`{"recommendation_id":"4"}`))
	require.NoError(t, err)
	assert.Equal(t, "Trip recommendation 4 successfully cancelled.", out)

	out, err = r.Call(ctx, "update_hotel", json.RawMessage(`{"hotel_id":1,"checkout_date":"2024-05-02"}`))
	require.NoError(t, err)
	assert.Equal(t, "Hotel 1 successfully updated.", out)

	svc.AssertExpectations(t)
}

func TestRegistry_InvalidArguments(t *testing.T) {
	r := newRegistry(new(mockReservations), &stubPolicy{})
	ctx := context.Background()

	tests := []struct {
		name string
		tool string
		args string
	}{
		{"missing id", "book_hotel", `{}`},
		{"fractional id", "book_hotel", `{"hotel_id":1.5}`},
		{"non numeric id", "cancel_car_rental", `{"rental_id":"abc"}`},
		{"unknown argument", "book_hotel", `{"hotel_id":1,"room":"101"}`},
		{"not an object", "search_hotels", `["Basel"]`},
		{"bad date", "update_car_rental", `{"rental_id":1,"start_date":"next tuesday"}`},
		{"bad search date", "search_car_rentals", `{"start_date":"2024-02-30"}`},
		{"price tier on excursions", "search_trip_recommendations", `{"price_tier":"Luxury"}`},
		{"number for string", "search_hotels", `{"location":42}`},
		{"empty policy query", LookupPolicy, `{"query":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Call(ctx, tt.tool, json.RawMessage(tt.args))
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	_, err := r.Call(ctx, "search_flights", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistry_AcceptedDateForms(t *testing.T) {
	ctx := context.Background()
	svc := new(mockReservations)
	r := newRegistry(svc, &stubPolicy{})

	svc.On("Update", ctx, models.KindCarRental, int64(1), mock.Anything).Return("ok", nil)

	for _, d := range []string{"2024-04-10", "2024-04-10T09:00:00Z", "2024-04-10 09:00:00", "2024-04-10T09:00:00"} {
		_, err := r.Call(ctx, "update_car_rental", json.RawMessage(`{"rental_id":1,"end_date":"`+d+`"}`))
		assert.NoError(t, err, d)
	}
}

func TestRegistry_LookupPolicy(t *testing.T) {
	policy := &stubPolicy{}
	r := newRegistry(new(mockReservations), policy)

	out, err := r.Call(context.Background(), LookupPolicy, json.RawMessage(`{"query":"can I get a refund?"}`))
	require.NoError(t, err)
	assert.Equal(t, "## Refunds\nAllowed within 24 hours.", out)
	assert.Equal(t, "can I get a refund?", policy.query)

	policy.err = errors.New("embedding failed")
	_, err = r.Call(context.Background(), LookupPolicy, json.RawMessage(`{"query":"x"}`))
	assert.Error(t, err)
}
