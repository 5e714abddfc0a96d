package intent

import (
	"strings"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// Classifier labels a chat turn so the dialog controller can pick the right
// downstream handler. Deliberately conservative: an ambiguous label costs one
// clarifying question, a wrong confident label costs a bad generation.
type Classifier struct {
	parser *Parser
}

func NewClassifier(parser *Parser) *Classifier {
	return &Classifier{parser: parser}
}

var modificationVerbs = []string{
	"add", "remove", "change", "make it", "extend", "replace", "swap",
	"instead", "drop", "shorten", "switch",
}

var questionStarters = []string{
	"what", "where", "when", "how", "why", "which", "who",
	"can", "could", "should", "would", "is", "are", "do", "does", "will",
}

var moodWords = []string{
	"romantic", "relaxing", "relaxed", "adventurous", "adventure", "quiet",
	"somewhere", "anywhere", "beach", "sunny", "warm", "cold", "cheap",
	"budget", "luxury", "luxurious", "family", "foodie", "culture", "nature",
	"hiking", "nightlife",
}

// Classify applies the priority rules: structured, modification, question,
// conversational, then ambiguous.
func (c *Classifier) Classify(message string, ctx types.ConversationContext, hasItinerary bool) types.ClassificationResult {
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)
	if trimmed == "" {
		return types.ClassificationResult{Type: types.ClassAmbiguous, Confidence: 0.1}
	}

	parsed := c.parser.Parse(trimmed)
	hasStructured := len(parsed.Destinations) > 0 && allHaveDays(parsed.Destinations)

	if hasStructured && !hasItinerary {
		return types.ClassificationResult{Type: types.ClassStructured, Confidence: 0.9}
	}

	if hasItinerary && containsAny(lower, modificationVerbs) {
		return types.ClassificationResult{Type: types.ClassModification, Confidence: 0.8}
	}

	if isInterrogative(lower) {
		return types.ClassificationResult{Type: types.ClassQuestion, Confidence: 0.85}
	}

	// A complete place+days request while an itinerary already exists is most
	// likely a fresh trip rather than a tweak.
	if hasStructured {
		return types.ClassificationResult{Type: types.ClassStructured, Confidence: 0.7}
	}

	if containsAny(lower, moodWords) && len(parsed.Destinations) == 0 {
		return types.ClassificationResult{Type: types.ClassConversational, Confidence: 0.6}
	}

	// A bare place name or bare duration carries too little signal to act on.
	return types.ClassificationResult{Type: types.ClassAmbiguous, Confidence: 0.3}
}

func allHaveDays(dests []types.DestinationSpec) bool {
	for _, d := range dests {
		if d.DayCount <= 0 {
			return false
		}
	}
	return true
}

func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func isInterrogative(lower string) bool {
	if strings.HasSuffix(lower, "?") {
		return true
	}
	first := lower
	if idx := strings.IndexByte(lower, ' '); idx > 0 {
		first = lower[:idx]
	}
	for _, q := range questionStarters {
		if first == q {
			return true
		}
	}
	return false
}
