package generation

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

func getTripMetadataPrompt(destinations []types.DestinationSpec, totalDays int, origin string, preferences map[string]string) string {
	var sb strings.Builder
	sb.WriteString("Create a trip overview for the following multi-city trip. Respond ONLY with JSON:\n")
	sb.WriteString(`{
    "title": "Short catchy trip title",
    "overview": "2-3 sentence overview of the whole trip",
    "highlights": ["up to five trip highlights"],
    "best_season": "best season for this trip",
    "travel_style": "one phrase describing the style"
}
`)
	fmt.Fprintf(&sb, "\nTrip: %d days total.\n", totalDays)
	for _, d := range destinations {
		fmt.Fprintf(&sb, "- %s, %d days (stop %d)\n", d.Name, d.DayCount, d.Order)
	}
	if origin != "" {
		fmt.Fprintf(&sb, "Traveling from %s.\n", origin)
	}
	writePreferences(&sb, preferences)
	return sb.String()
}

func getCityDaysPrompt(city string, dayCount, startDay int, previousCity string, preferences map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a detailed %d-day itinerary for %s. Respond ONLY with JSON:\n", dayCount, city)
	sb.WriteString(`{
    "days": [
        {
            "day_number": 0,
            "title": "Theme of the day",
            "activities": [
                {
                    "time": "09:00",
                    "description": "What to do",
                    "category": "one of: Work, Leisure, Food, Travel, Accommodation, Attraction",
                    "address": "Street address or area"
                }
            ]
        }
    ]
}
`)
	fmt.Fprintf(&sb, "\nRules:\n- Produce exactly %d days.\n- Number the days starting at %d (day_number %d through %d).\n- 3 to 5 activities per day, morning to evening, with realistic times.\n",
		dayCount, startDay, startDay, startDay+dayCount-1)
	if previousCity != "" {
		fmt.Fprintf(&sb, "- The traveler arrives from %s; begin day %d with a Travel activity covering the transfer.\n", previousCity, startDay)
	}
	writePreferences(&sb, preferences)
	return sb.String()
}

func getCorrectiveCityDaysPrompt(city string, dayCount, startDay int, previousCity, problem string, preferences map[string]string) string {
	return getCityDaysPrompt(city, dayCount, startDay, previousCity, preferences) +
		fmt.Sprintf("\nYour previous answer was rejected: %s. Return only valid JSON with exactly %d days numbered %d through %d.\n",
			problem, dayCount, startDay, startDay+dayCount-1)
}

func writePreferences(sb *strings.Builder, preferences map[string]string) {
	if len(preferences) == 0 {
		return
	}
	sb.WriteString("Traveler preferences:\n")
	for k, v := range preferences {
		fmt.Fprintf(sb, "- %s: %s\n", k, v)
	}
}
