package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"airsupport/internal/database"
	"airsupport/internal/domain"
	"airsupport/internal/events"
	"airsupport/internal/models"

	"github.com/rs/zerolog"
)

// ReservationService turns repository results into the status lines handed
// back to the assistant.
type ReservationService struct {
	repo     domain.ReservationRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewReservationService(repo domain.ReservationRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReservationService {
	return &ReservationService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ReservationService) Search(ctx context.Context, kind models.Kind, filter models.SearchFilter) ([]models.Row, error) {
	return s.repo.SearchReservations(ctx, kind, filter)
}

func (s *ReservationService) Book(ctx context.Context, kind models.Kind, id int64) (string, error) {
	res, err := s.repo.SetBooked(ctx, kind, id, true)
	if err != nil {
		return "", err
	}
	return s.outcome(res, "booked", events.EventReservationBooked, nil)
}

func (s *ReservationService) Cancel(ctx context.Context, kind models.Kind, id int64) (string, error) {
	res, err := s.repo.SetBooked(ctx, kind, id, false)
	if err != nil {
		return "", err
	}
	return s.outcome(res, "cancelled", events.EventReservationCanceled, nil)
}

func (s *ReservationService) Update(ctx context.Context, kind models.Kind, id int64, fields map[string]string) (string, error) {
	res, err := s.repo.UpdateReservation(ctx, kind, id, fields)
	if errors.Is(err, database.ErrNoChanges) {
		schema, serr := models.SchemaFor(kind)
		if serr != nil {
			return "", serr
		}
		return fmt.Sprintf("No changes provided for %s %d.", strings.ToLower(schema.Label), id), nil
	}
	if err != nil {
		return "", err
	}
	return s.outcome(res, "updated", events.EventReservationUpdated, fields)
}

// Export returns every reservation table, one per kind.
func (s *ReservationService) Export(ctx context.Context) ([]*models.Table, error) {
	tables := make([]*models.Table, 0, len(models.Kinds()))
	for _, kind := range models.Kinds() {
		table, err := s.repo.ReservationTable(ctx, kind)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (s *ReservationService) outcome(res models.OpResult, verb, eventType string, fields map[string]string) (string, error) {
	schema, err := models.SchemaFor(res.Kind)
	if err != nil {
		return "", err
	}

	if !res.OK() {
		return fmt.Sprintf("No %s found with ID %d.", strings.ToLower(schema.Label), res.ID), nil
	}

	msg := fmt.Sprintf("%s %d successfully %s.", schema.Label, res.ID, verb)
	s.publishEvent(eventType, events.ReservationEventPayload{
		Kind:    string(res.Kind),
		ID:      res.ID,
		Label:   schema.Label,
		Fields:  fields,
		Message: msg,
		At:      s.now(),
	})
	return msg, nil
}

func (s *ReservationService) publishEvent(eventType string, payload events.ReservationEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("id", payload.ID).Msg("publish event error")
	}
}
