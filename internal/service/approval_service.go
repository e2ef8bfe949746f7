package service

import (
	"context"
	"encoding/json"
	"time"

	"airsupport/internal/domain"
	"airsupport/internal/events"
	"airsupport/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ApprovalService parks sensitive tool calls until a human approves or
// denies them.
type ApprovalService struct {
	repo     domain.ApprovalRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
	newID    func() string
}

func NewApprovalService(repo domain.ApprovalRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ApprovalService {
	return &ApprovalService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *ApprovalService) Request(ctx context.Context, tool string, args []byte) (*models.PendingApproval, error) {
	if len(args) == 0 {
		args = []byte("{}")
	}
	approval := &models.PendingApproval{
		ID:        s.newID(),
		Tool:      tool,
		Args:      json.RawMessage(args),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.SaveApproval(ctx, approval); err != nil {
		s.logger.Error().Err(err).Str("tool", tool).Msg("failed to save approval")
		return nil, err
	}

	s.publish(events.EventApprovalRequested, events.ApprovalEventPayload{ApprovalID: approval.ID, Tool: tool})
	s.logger.Info().Str("approval_id", approval.ID).Str("tool", tool).Msg("tool call awaiting approval")
	return approval, nil
}

func (s *ApprovalService) Get(ctx context.Context, id string) (*models.PendingApproval, error) {
	approval, err := s.repo.GetApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, ErrApprovalNotFound
	}
	return approval, nil
}

// Resolve removes the approval and returns it. A second resolve of the same
// id reports ErrApprovalNotFound.
func (s *ApprovalService) Resolve(ctx context.Context, id string, approved bool) (*models.PendingApproval, error) {
	approval, err := s.repo.TakeApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, ErrApprovalNotFound
	}

	s.publish(events.EventApprovalResolved, events.ApprovalEventPayload{
		ApprovalID: approval.ID,
		Tool:       approval.Tool,
		Approved:   &approved,
	})
	s.logger.Info().Str("approval_id", id).Bool("approved", approved).Msg("approval resolved")
	return approval, nil
}

func (s *ApprovalService) publish(eventType string, payload events.ApprovalEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
