package types

import (
	"time"

	"github.com/google/uuid"
)

// LlmInteraction is one logged model call: what was asked, what came back,
// and how long it took.
type LlmInteraction struct {
	ID           uuid.UUID `json:"id"`
	GenerationID string    `json:"generation_id,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	Prompt       string    `json:"prompt"`
	ResponseText string    `json:"response_text"`
	ModelUsed    string    `json:"model_used"`
	LatencyMs    int       `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
