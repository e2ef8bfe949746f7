package models

const (
	// StatusPending marks a tool call parked behind approval.
	StatusPending = "pending"

	// DeniedToolMessage is handed back to the orchestrator when a human rejects a call.
	DeniedToolMessage = "The user denied this tool call. Please ask for clarification."

	// ApprovalPrompt accompanies a parked call.
	ApprovalPrompt = "I need to perform the following actions. Do you approve?"
)

const (
	// DefaultPolicyTopK is how many FAQ chunks lookup_policy returns.
	DefaultPolicyTopK = 2

	// BookedFlag values stored in the booked column.
	BookedTrue  = 1
	BookedFalse = 0
)
