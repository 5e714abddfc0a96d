package trip

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

func getConversationalPrompt(message string, convCtx types.ConversationContext) string {
	var sb strings.Builder
	sb.WriteString("You are a friendly travel planning assistant. Answer the user's message in two or three sentences of plain text, no markdown, no JSON.\n")

	if len(convCtx.Destinations) > 0 {
		sb.WriteString("The trip discussed so far:\n")
		for _, d := range convCtx.Destinations {
			if d.DayCount > 0 {
				fmt.Fprintf(&sb, "- %s, %d days\n", d.Name, d.DayCount)
			} else {
				fmt.Fprintf(&sb, "- %s, length undecided\n", d.Name)
			}
		}
	}
	if convCtx.Origin != "" {
		fmt.Fprintf(&sb, "Departing from: %s\n", convCtx.Origin)
	}

	fmt.Fprintf(&sb, "\nUser message: %s\n", message)
	return sb.String()
}

// confirmationMessage summarises an extracted intent back to the user before
// generation starts.
func confirmationMessage(intent types.TravelIntent) string {
	parts := make([]string, 0, len(intent.Destinations))
	for _, d := range intent.Destinations {
		parts = append(parts, fmt.Sprintf("%d days in %s", d.DayCount, d.Name))
	}
	summary := strings.Join(parts, ", then ")
	if intent.Origin != "" {
		return fmt.Sprintf("Just to confirm: %s, departing from %s. Shall I build the itinerary?", summary, intent.Origin)
	}
	return fmt.Sprintf("Just to confirm: %s. Shall I build the itinerary?", summary)
}

func missingDaysQuestion(intent types.TravelIntent) string {
	var missing []string
	for _, d := range intent.Destinations {
		if d.DayCount == 0 {
			missing = append(missing, d.Name)
		}
	}
	if len(missing) == 1 {
		return fmt.Sprintf("How many days would you like to spend in %s?", missing[0])
	}
	return fmt.Sprintf("How many days would you like to spend in each of %s?", strings.Join(missing, " and "))
}
