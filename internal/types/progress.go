package types

import "time"

// UpdateType tags a GenerationProgress snapshot. Payload fields are fixed per
// tag so consumers can switch exhaustively instead of shape-guessing.
type UpdateType string

const (
	UpdateProcessing   UpdateType = "processing"
	UpdateQuestion     UpdateType = "question"
	UpdateConfirmation UpdateType = "confirmation"
	UpdateComplete     UpdateType = "complete"
	UpdateError        UpdateType = "error"
)

// GenerationProgress is the latest known state of one in-flight generation.
//
// Invariants, enforced by the progress store: Progress never decreases,
// AllCities never shrinks, and a terminal snapshot (complete or error) is
// never overwritten.
type GenerationProgress struct {
	Type     UpdateType `json:"type"`
	Status   string     `json:"status,omitempty"` // free-form stage label
	Progress int        `json:"progress"`         // 0..100
	Message  string     `json:"message,omitempty"`

	// processing / complete payloads
	Metadata  *TripMetadata `json:"metadata,omitempty"`
	AllCities []CityDays    `json:"all_cities,omitempty"`
	Itinerary *Itinerary    `json:"itinerary,omitempty"` // only when Type == complete

	// error payload
	Error string `json:"error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether no further snapshot may be written for this id.
func (p GenerationProgress) Terminal() bool {
	return p.Type == UpdateComplete || p.Type == UpdateError
}
