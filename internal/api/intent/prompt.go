package intent

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// getExtractionPrompt asks the model to return the same TravelIntent shape the
// deterministic parser produces, as strict JSON.
func getExtractionPrompt(message string, history []types.ConversationMessage) string {
	var sb strings.Builder
	sb.WriteString(`You are a travel request parser. Extract structured travel intent from the user's message.
Respond ONLY with JSON in exactly this structure, no prose:
{
    "destinations": [
        {"name": "City or region name", "day_count": 0, "order": 1}
    ],
    "origin": "departure city if mentioned, else empty string",
    "total_days": 0,
    "start_date": "ISO date or relative phrase if mentioned, else empty string",
    "traveler_count": 0,
    "preferences": ["interest tags mentioned, e.g. food, museums"]
}
Rules:
- "order" is 1-based visit order following sequencing words (then, after that, followed by).
- "day_count" is days per destination; convert weeks to days. Use 0 when the user gave none.
- Resolve relative references ("there", "that city") against the conversation below.
- Never invent destinations the user did not mention.
`)
	if len(history) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, m := range history {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}
	fmt.Fprintf(&sb, "\nUser message: %q\n", message)
	return sb.String()
}

func getCorrectiveExtractionPrompt(message string, history []types.ConversationMessage, problem string) string {
	return getExtractionPrompt(message, history) +
		fmt.Sprintf("\nYour previous answer was rejected: %s. Return only valid JSON matching the schema.\n", problem)
}
