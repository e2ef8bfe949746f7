package models

import (
	"encoding/json"
	"time"
)

// PendingApproval is a sensitive tool call waiting for a human decision.
type PendingApproval struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToolDescriptor is what the orchestrator sees when listing tools.
type ToolDescriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Args        []string `json:"args"`
	Sensitive   bool     `json:"sensitive"`
}
