package tools

import (
	"context"
	"encoding/json"

	"airsupport/internal/domain"
	"airsupport/internal/metrics"
	"airsupport/internal/models"

	"github.com/rs/zerolog"
)

const (
	StatusOK      = "ok"
	StatusPending = models.StatusPending
	StatusDenied  = "denied"
)

// Outcome is the answer to one invocation. Result is set for StatusOK,
// Approval for StatusPending, Message for StatusPending and StatusDenied.
type Outcome struct {
	Status   string                  `json:"status"`
	Tool     string                  `json:"tool"`
	Result   any                     `json:"result,omitempty"`
	Approval *models.PendingApproval `json:"approval,omitempty"`
	Message  string                  `json:"message,omitempty"`
}

// Gate puts sensitive tools behind human approval when required is set.
type Gate struct {
	registry  *Registry
	approvals domain.ApprovalService
	required  bool
	logger    *zerolog.Logger
}

func NewGate(registry *Registry, approvals domain.ApprovalService, required bool, logger *zerolog.Logger) *Gate {
	return &Gate{
		registry:  registry,
		approvals: approvals,
		required:  required && approvals != nil,
		logger:    logger,
	}
}

func (g *Gate) Descriptors() []models.ToolDescriptor {
	return g.registry.Descriptors()
}

func (g *Gate) Invoke(ctx context.Context, name string, raw json.RawMessage) (*Outcome, error) {
	desc, err := g.registry.Descriptor(name)
	if err != nil {
		return nil, err
	}

	if desc.Sensitive && g.required {
		// an approved call must be able to run, so arguments are checked before parking
		if _, err := g.registry.Parse(name, raw); err != nil {
			return nil, err
		}
		approval, err := g.approvals.Request(ctx, name, raw)
		if err != nil {
			return nil, err
		}
		metrics.IncToolCall(name, metrics.OutcomePending)
		return &Outcome{
			Status:   StatusPending,
			Tool:     name,
			Approval: approval,
			Message:  models.ApprovalPrompt,
		}, nil
	}

	return g.run(ctx, name, raw)
}

// Approve runs the parked call.
func (g *Gate) Approve(ctx context.Context, id string) (*Outcome, error) {
	approval, err := g.approvals.Resolve(ctx, id, true)
	if err != nil {
		return nil, err
	}
	return g.run(ctx, approval.Tool, approval.Args)
}

// Deny drops the parked call and hands the orchestrator the denial text.
func (g *Gate) Deny(ctx context.Context, id string) (*Outcome, error) {
	approval, err := g.approvals.Resolve(ctx, id, false)
	if err != nil {
		return nil, err
	}
	metrics.IncToolCall(approval.Tool, metrics.OutcomeDenied)
	return &Outcome{
		Status:  StatusDenied,
		Tool:    approval.Tool,
		Message: models.DeniedToolMessage,
	}, nil
}

func (g *Gate) Pending(ctx context.Context, id string) (*models.PendingApproval, error) {
	return g.approvals.Get(ctx, id)
}

func (g *Gate) run(ctx context.Context, name string, raw json.RawMessage) (*Outcome, error) {
	out, err := g.registry.Call(ctx, name, raw)
	if err != nil {
		return nil, err
	}
	return &Outcome{Status: StatusOK, Tool: name, Result: out}, nil
}
