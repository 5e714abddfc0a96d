package types

import (
	"time"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ClassificationType labels a chat turn by its intent so the dialog
// controller can pick the right downstream handler.
type ClassificationType string

const (
	ClassStructured     ClassificationType = "structured"
	ClassConversational ClassificationType = "conversational"
	ClassModification   ClassificationType = "modification"
	ClassQuestion       ClassificationType = "question"
	ClassAmbiguous      ClassificationType = "ambiguous"
)

type ClassificationResult struct {
	Type       ClassificationType `json:"type"`
	Confidence float64            `json:"confidence"`
}

type ConversationMessage struct {
	Role           MessageRole        `json:"role"`
	Content        string             `json:"content"`
	Timestamp      time.Time          `json:"timestamp"`
	Classification ClassificationType `json:"classification,omitempty"`
}

// Phase tracks where a conversation is in the planning lifecycle. Transitions
// are advisory except the jump to modifying, which requires an itinerary.
type Phase string

const (
	PhaseInitial    Phase = "initial"
	PhasePlanning   Phase = "planning"
	PhaseConfirming Phase = "confirming"
	PhaseModifying  Phase = "modifying"
	PhaseFinalizing Phase = "finalizing"
)

type TravelConstraint struct {
	Kind  string `json:"kind"` // budget, mobility, dietary, schedule
	Value string `json:"value"`
}

type ConversationContext struct {
	Destinations []DestinationSpec  `json:"destinations"`
	Origin       string             `json:"origin,omitempty"`
	TotalDays    int                `json:"total_days,omitempty"`
	StartDate    string             `json:"start_date,omitempty"`
	Preferences  map[string]string  `json:"preferences,omitempty"`
	Constraints  []TravelConstraint `json:"constraints,omitempty"`
	Phase        Phase              `json:"phase"`
	LastIntent   *TravelIntent      `json:"last_intent,omitempty"`
}

type SessionMetadata struct {
	StartTime    time.Time `json:"start_time"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
	Errors       []string  `json:"errors,omitempty"`
}

// ConversationState is the per-session accumulated travel context. It is owned
// exclusively by the session manager; other components must not hold a
// reference past the end of the request that fetched it.
type ConversationState struct {
	SessionID        string                `json:"session_id"`
	Messages         []ConversationMessage `json:"messages"`
	Context          ConversationContext   `json:"context"`
	CurrentItinerary *Itinerary            `json:"current_itinerary,omitempty"`
	ItineraryHistory []*Itinerary          `json:"itinerary_history,omitempty"` // last 5
	Metadata         SessionMetadata       `json:"metadata"`
}

// ContextUpdate carries one turn's merge into a ConversationState. Scalar
// fields overwrite when non-zero, Destinations replace when non-nil, and
// Preferences merge key by key.
type ContextUpdate struct {
	Destinations []DestinationSpec
	Origin       string
	TotalDays    int
	StartDate    string
	Preferences  map[string]string
	Constraints  []TravelConstraint
	Phase        Phase
	LastIntent   *TravelIntent
}
