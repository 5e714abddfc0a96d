package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-trip-planner/app/observability/metrics"
	generativeAI "github.com/FACorreiaa/go-trip-planner/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// ErrNeedsRestate signals that neither the parser nor the model produced a
// usable intent; the dialog layer turns this into a clarifying question, never
// a hard error.
var ErrNeedsRestate = errors.New("intent: could not extract destinations, ask the user to restate")

const historyWindow = 6

// Source says which path produced an intent. Parser results are trusted
// verbatim; model results go through a confirmation turn before generation.
type Source string

const (
	SourceParser Source = "parser"
	SourceLLM    Source = "llm"
)

// Extractor resolves an utterance into a TravelIntent. The deterministic
// parser always runs first; the model is only consulted when it comes up
// empty or the classifier flagged the turn as ambiguous/conversational.
type Extractor struct {
	parser      *Parser
	aiClient    generativeAI.Client
	logger      *slog.Logger
	temperature float32
	maxRetries  int
}

func NewExtractor(parser *Parser, aiClient generativeAI.Client, temperature float32, maxRetries int, logger *slog.Logger) *Extractor {
	return &Extractor{
		parser:      parser,
		aiClient:    aiClient,
		logger:      logger,
		temperature: temperature,
		maxRetries:  maxRetries,
	}
}

// Extract produces a TravelIntent for one turn.
func (e *Extractor) Extract(ctx context.Context, message string, convCtx types.ConversationContext, history []types.ConversationMessage, classification types.ClassificationType) (types.TravelIntent, Source, error) {
	ctx, span := otel.Tracer("IntentExtractor").Start(ctx, "Extract", trace.WithAttributes(
		attribute.String("classification", string(classification)),
	))
	defer span.End()

	resolved := resolveReferences(message, convCtx)
	parsed := e.parser.Parse(resolved)

	escalate := len(parsed.Destinations) == 0 ||
		classification == types.ClassAmbiguous ||
		classification == types.ClassConversational

	if !escalate {
		intent := intentFromParse(parsed)
		e.backfillFromContext(&intent, convCtx, history)
		span.SetAttributes(attribute.Int("destinations", len(intent.Destinations)))
		span.SetStatus(codes.Ok, "Deterministic parse succeeded")
		return intent, SourceParser, nil
	}

	metrics.Get().ParserFallbacksTotal.Add(ctx, 1)
	intent, err := e.extractWithLLM(ctx, resolved, recentTurns(history))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "LLM extraction failed")
		return types.TravelIntent{}, SourceLLM, err
	}
	e.backfillFromContext(&intent, convCtx, history)
	span.SetAttributes(attribute.Int("destinations", len(intent.Destinations)))
	span.SetStatus(codes.Ok, "LLM extraction succeeded")
	return intent, SourceLLM, nil
}

func (e *Extractor) extractWithLLM(ctx context.Context, message string, history []types.ConversationMessage) (types.TravelIntent, error) {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](e.temperature)}

	prompt := getExtractionPrompt(message, history)
	for attempt := 1; attempt <= 2; attempt++ {
		text, err := generativeAI.GenerateWithRetry(ctx, e.aiClient, e.logger, prompt, cfg, e.maxRetries)
		if err != nil {
			return types.TravelIntent{}, fmt.Errorf("extraction call failed: %w", err)
		}

		intent, problem := decodeIntent(text)
		if problem == "" {
			return intent, nil
		}

		e.logger.WarnContext(ctx, "Schema-invalid extraction output, retrying with corrective prompt",
			slog.Int("attempt", attempt),
			slog.String("problem", problem),
		)
		prompt = getCorrectiveExtractionPrompt(message, history, problem)
	}
	return types.TravelIntent{}, ErrNeedsRestate
}

// decodeIntent validates the model output against the strict intent schema.
// It returns a non-empty problem description when the output must be rejected.
func decodeIntent(raw string) (types.TravelIntent, string) {
	clean := generativeAI.CleanJSONResponse(raw)

	var intent types.TravelIntent
	if err := json.Unmarshal([]byte(clean), &intent); err != nil {
		return types.TravelIntent{}, fmt.Sprintf("output was not valid JSON: %v", err)
	}
	if len(intent.Destinations) == 0 {
		return types.TravelIntent{}, "no destinations present"
	}
	for _, d := range intent.Destinations {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return types.TravelIntent{}, "destination with empty name"
		}
		if stopWords[strings.ToLower(name)] {
			return types.TravelIntent{}, fmt.Sprintf("destination name %q is a generic word, not a place", name)
		}
		if d.DayCount < 0 {
			return types.TravelIntent{}, fmt.Sprintf("negative day count for %q", name)
		}
	}

	// Normalize ordering: sort by the model's order and re-number so the
	// contract of 1-based contiguous order always holds.
	sort.SliceStable(intent.Destinations, func(i, j int) bool {
		return intent.Destinations[i].Order < intent.Destinations[j].Order
	})
	sum := 0
	for i := range intent.Destinations {
		intent.Destinations[i].Order = i + 1
		sum += intent.Destinations[i].DayCount
	}
	if sum > 0 {
		if intent.TotalDays > 0 && abs(intent.TotalDays-sum) > 1 {
			intent.NeedsClarification = true
			intent.ClarificationHint = "stated trip length disagrees with the per-destination day counts"
		}
		intent.TotalDays = sum
	}
	return intent, ""
}

func intentFromParse(parsed ParseResult) types.TravelIntent {
	return types.TravelIntent{
		Destinations:       parsed.Destinations,
		Origin:             parsed.Origin,
		TotalDays:          parsed.TotalDays,
		NeedsClarification: parsed.NeedsClarification,
		ClarificationHint:  parsed.ClarificationHint,
	}
}

// resolveReferences substitutes pronoun references with the most recently
// mentioned unconfirmed destination before parsing.
func resolveReferences(message string, convCtx types.ConversationContext) string {
	target := ""
	for i := len(convCtx.Destinations) - 1; i >= 0; i-- {
		if !convCtx.Destinations[i].Confirmed {
			target = convCtx.Destinations[i].Name
			break
		}
	}
	if target == "" && len(convCtx.Destinations) > 0 {
		target = convCtx.Destinations[len(convCtx.Destinations)-1].Name
	}
	if target == "" {
		return message
	}

	replacer := strings.NewReplacer(
		" there", " in "+target,
		"There", target,
		"that city", target,
		"that place", target,
	)
	return replacer.Replace(message)
}

// backfillFromContext fills a missing origin from session context first, then
// from recent turns.
func (e *Extractor) backfillFromContext(intent *types.TravelIntent, convCtx types.ConversationContext, history []types.ConversationMessage) {
	if intent.Origin != "" {
		return
	}
	if convCtx.Origin != "" {
		intent.Origin = convCtx.Origin
		return
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != types.RoleUser {
			continue
		}
		if parsed := e.parser.Parse(history[i].Content); parsed.Origin != "" {
			intent.Origin = parsed.Origin
			return
		}
	}
}

func recentTurns(history []types.ConversationMessage) []types.ConversationMessage {
	if len(history) <= historyWindow {
		return history
	}
	return history[len(history)-historyWindow:]
}
