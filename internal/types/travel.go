package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DestinationSpec is one place within a multi-city trip: where, for how long,
// and in which position of the visit order.
type DestinationSpec struct {
	Name      string `json:"name"`
	DayCount  int    `json:"day_count"`
	Order     int    `json:"order"` // 1-based, contiguous
	Confirmed bool   `json:"confirmed"`
}

// TravelIntent is the structured representation of a single user utterance.
type TravelIntent struct {
	Destinations  []DestinationSpec `json:"destinations"`
	Origin        string            `json:"origin,omitempty"`
	StartDate     string            `json:"start_date,omitempty"` // ISO date or relative hint ("next month")
	EndDate       string            `json:"end_date,omitempty"`
	TotalDays     int               `json:"total_days"`
	TravelerCount int               `json:"traveler_count,omitempty"`
	Preferences   []string          `json:"preferences,omitempty"`
	BudgetHint    string            `json:"budget_hint,omitempty"`

	// NeedsClarification is set when the stated trip total and the
	// per-destination day sum disagree by more than one day.
	NeedsClarification bool   `json:"needs_clarification,omitempty"`
	ClarificationHint  string `json:"clarification_hint,omitempty"`
}

type ActivityCategory string

const (
	CategoryWork          ActivityCategory = "Work"
	CategoryLeisure       ActivityCategory = "Leisure"
	CategoryFood          ActivityCategory = "Food"
	CategoryTravel        ActivityCategory = "Travel"
	CategoryAccommodation ActivityCategory = "Accommodation"
	CategoryAttraction    ActivityCategory = "Attraction"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Activity struct {
	Time        string           `json:"time"`
	Description string           `json:"description"`
	Category    ActivityCategory `json:"category"`
	Address     string           `json:"address,omitempty"`
	VenueName   string           `json:"venue_name,omitempty"`
	Coordinates *Coordinates     `json:"coordinates,omitempty"`
	Rating      float64          `json:"rating,omitempty"`
}

type ItineraryDay struct {
	DayNumber  int        `json:"day_number"`
	Date       string     `json:"date,omitempty"` // ISO 8601
	Title      string     `json:"title"`
	City       string     `json:"city"`
	Activities []Activity `json:"activities"`
}

// TripMetadata is the trip-level overview produced before any day-level detail.
type TripMetadata struct {
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	Highlights  []string `json:"highlights,omitempty"`
	BestSeason  string   `json:"best_season,omitempty"`
	TravelStyle string   `json:"travel_style,omitempty"`
}

// CityDays is one destination's completed slice of the trip.
type CityDays struct {
	City string         `json:"city"`
	Data []ItineraryDay `json:"data"`
}

type Itinerary struct {
	ID           uuid.UUID         `json:"id"`
	Metadata     TripMetadata      `json:"metadata"`
	Destinations []DestinationSpec `json:"destinations"`
	Days         []ItineraryDay    `json:"itinerary"`
	TotalDays    int               `json:"total_days"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ValidateDayContiguity checks the merged itinerary invariant: day numbers run
// 1..total with no gaps or repeats.
func ValidateDayContiguity(days []ItineraryDay) error {
	for i, d := range days {
		if d.DayNumber != i+1 {
			return fmt.Errorf("itinerary day %d has day_number %d, want %d", i, d.DayNumber, i+1)
		}
	}
	return nil
}
