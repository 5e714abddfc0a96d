package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-trip-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-planner/internal/api/generation"
	generativeAI "github.com/FACorreiaa/go-trip-planner/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner/internal/api/intent"
	"github.com/FACorreiaa/go-trip-planner/internal/api/session"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// Ensure ServiceImpl implements the Service interface
var _ Service = (*ServiceImpl)(nil)

type ResponseType string

const (
	ResponseQuestion          ResponseType = "question"
	ResponseConfirmation      ResponseType = "confirmation"
	ResponseGenerationStarted ResponseType = "generation_started"
)

// ChatResponse is the synchronous answer to one chat turn. Generation itself
// is asynchronous: a generation_started response carries the poll URL.
type ChatResponse struct {
	Type         ResponseType        `json:"type"`
	Message      string              `json:"message"`
	SessionID    string              `json:"session_id"`
	GenerationID string              `json:"generation_id,omitempty"`
	PollURL      string              `json:"poll_url,omitempty"`
	Intent       *types.TravelIntent `json:"intent,omitempty"`
}

// Service is the dialog controller: it classifies each turn, extracts intent,
// keeps the session context current, and decides between asking, confirming
// and generating.
type Service interface {
	HandleMessage(ctx context.Context, sessionID, message string) (ChatResponse, error)
	GetProgress(generationID string) (types.GenerationProgress, error)
	GetSession(sessionID string) (*types.ConversationState, bool)
	ClearSession(sessionID string)
	GetItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error)
}

type ServiceImpl struct {
	sessions    *session.Manager
	classifier  *intent.Classifier
	extractor   *intent.Extractor
	generator   *generation.Service
	progress    *generation.ProgressStore
	repo        Repository
	aiClient    generativeAI.Client
	logger      *slog.Logger
	temperature float32
	maxRetries  int
}

func NewService(sessions *session.Manager, classifier *intent.Classifier, extractor *intent.Extractor, generator *generation.Service, progress *generation.ProgressStore, repo Repository, aiClient generativeAI.Client, temperature float32, maxRetries int, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		sessions:    sessions,
		classifier:  classifier,
		extractor:   extractor,
		generator:   generator,
		progress:    progress,
		repo:        repo,
		aiClient:    aiClient,
		logger:      logger,
		temperature: temperature,
		maxRetries:  maxRetries,
	}
}

func (s *ServiceImpl) HandleMessage(ctx context.Context, sessionID, message string) (ChatResponse, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "HandleMessage", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()
	l := s.logger.With(slog.String("session_id", sessionID))

	metrics.Get().ChatTurnsTotal.Add(ctx, 1)

	state := s.sessions.GetOrCreate(sessionID)
	hasItinerary := state.CurrentItinerary != nil

	classification := s.classifier.Classify(message, state.Context, hasItinerary)
	span.SetAttributes(
		attribute.String("classification", string(classification.Type)),
		attribute.Float64("classification.confidence", classification.Confidence),
	)

	state = s.sessions.Update(sessionID, &types.ConversationMessage{
		Role:           types.RoleUser,
		Content:        message,
		Timestamp:      time.Now(),
		Classification: classification.Type,
	}, nil, nil)

	// A pending confirmation outranks the per-turn classification: short
	// answers like "yes" would otherwise land in the conversational bucket.
	if state.Context.Phase == types.PhaseConfirming && state.Context.LastIntent != nil {
		if isAffirmative(message) {
			return s.startGeneration(ctx, sessionID, *state.Context.LastIntent), nil
		}
		if isNegative(message) {
			s.sessions.Update(sessionID, nil, nil, &types.ContextUpdate{Phase: types.PhasePlanning})
			return s.respond(sessionID, ResponseQuestion, "No problem. What would you like to change?"), nil
		}
	}

	switch classification.Type {
	case types.ClassQuestion, types.ClassConversational:
		reply, err := s.conversationalReply(ctx, message, state.Context)
		if err != nil {
			l.WarnContext(ctx, "Conversational reply failed, using fallback", slog.Any("error", err))
			reply = "I can help you plan a trip. Tell me where you want to go and for how long."
		}
		return s.respond(sessionID, ResponseQuestion, reply), nil

	case types.ClassModification:
		return s.handleIntentTurn(ctx, sessionID, message, state, classification.Type)

	default: // structured, ambiguous
		return s.handleIntentTurn(ctx, sessionID, message, state, classification.Type)
	}
}

// handleIntentTurn runs extraction and decides the next dialog step from the
// completeness and provenance of the result.
func (s *ServiceImpl) handleIntentTurn(ctx context.Context, sessionID, message string, state *types.ConversationState, classification types.ClassificationType) (ChatResponse, error) {
	extracted, source, err := s.extractor.Extract(ctx, message, state.Context, state.Messages, classification)
	if err != nil {
		if errors.Is(err, intent.ErrNeedsRestate) {
			s.sessions.RecordError(sessionID, "intent extraction gave up: "+message)
			return s.respond(sessionID, ResponseQuestion,
				"I couldn't quite work out the destinations. Could you restate the trip, for example: 3 days in Paris then 2 days in Rome?"), nil
		}
		s.sessions.RecordError(sessionID, err.Error())
		return ChatResponse{}, fmt.Errorf("intent extraction failed: %w", err)
	}

	upd := contextUpdateFromIntent(extracted)
	upd.Phase = types.PhasePlanning
	if classification == types.ClassModification && state.CurrentItinerary != nil {
		// Modifying an existing itinerary lands in modifying from any phase.
		upd.Phase = types.PhaseModifying
	}
	s.sessions.Update(sessionID, nil, nil, upd)

	if extracted.NeedsClarification {
		hint := extracted.ClarificationHint
		if hint == "" {
			hint = "the trip length and the per-city days don't add up"
		}
		return s.respond(sessionID, ResponseQuestion,
			fmt.Sprintf("Before I plan this: %s. Which should I go with?", hint)), nil
	}

	if !intentComplete(extracted) {
		if len(extracted.Destinations) == 0 {
			return s.respond(sessionID, ResponseQuestion, "Where would you like to go?"), nil
		}
		return s.respond(sessionID, ResponseQuestion, missingDaysQuestion(extracted)), nil
	}

	// Model-extracted intents get read back before committing model time;
	// fully parsed ones are unambiguous and go straight to generation.
	if source == intent.SourceLLM {
		s.sessions.Update(sessionID, nil, nil, &types.ContextUpdate{
			Phase:      types.PhaseConfirming,
			LastIntent: &extracted,
		})
		resp := s.respond(sessionID, ResponseConfirmation, confirmationMessage(extracted))
		resp.Intent = &extracted
		return resp, nil
	}

	return s.startGeneration(ctx, sessionID, extracted), nil
}

// startGeneration kicks off the asynchronous pipeline and returns immediately
// with the poll URL. The background task gets a fresh context on purpose: a
// generation must not die with the HTTP request that started it.
func (s *ServiceImpl) startGeneration(ctx context.Context, sessionID string, travelIntent types.TravelIntent) ChatResponse {
	generationID := uuid.New().String()
	l := s.logger.With(slog.String("session_id", sessionID), slog.String("generation_id", generationID))

	state := s.sessions.GetOrCreate(sessionID)
	params := generation.Params{
		GenerationID: generationID,
		SessionID:    sessionID,
		Destinations: confirmAll(travelIntent.Destinations),
		Origin:       travelIntent.Origin,
		StartDate:    firstNonEmpty(travelIntent.StartDate, state.Context.StartDate),
		Preferences:  mergedPreferences(state.Context.Preferences, travelIntent.Preferences),
	}

	// A rework of an existing itinerary stays in modifying; a fresh plan
	// advances to finalizing.
	phase := types.PhaseFinalizing
	if state.Context.Phase == types.PhaseModifying {
		phase = types.PhaseModifying
	}
	s.sessions.Update(sessionID, nil, nil, &types.ContextUpdate{
		Destinations: params.Destinations,
		Phase:        phase,
		LastIntent:   &travelIntent,
	})

	metrics.Get().GenerationsStartedTotal.Add(ctx, 1)
	s.progress.Run(generationID, func(taskCtx context.Context, publish func(types.GenerationProgress)) {
		started := time.Now()
		itinerary, err := s.generator.GenerateProgressive(taskCtx, params, publish)
		metrics.Get().GenerationDurationSeconds.Record(taskCtx, time.Since(started).Seconds())
		if err != nil {
			metrics.Get().GenerationsFailedTotal.Add(taskCtx, 1)
			l.ErrorContext(taskCtx, "Generation failed", slog.Any("error", err))
			s.sessions.RecordError(sessionID, err.Error())
			s.sessions.Update(sessionID, nil, nil, &types.ContextUpdate{Phase: types.PhasePlanning})
			return
		}

		s.sessions.Update(sessionID, &types.ConversationMessage{
			Role:      types.RoleAssistant,
			Content:   fmt.Sprintf("Here is your %d-day itinerary: %s", itinerary.TotalDays, itinerary.Metadata.Title),
			Timestamp: time.Now(),
		}, itinerary, &types.ContextUpdate{Phase: types.PhaseModifying})

		if s.repo != nil {
			if err := s.repo.SaveItinerary(taskCtx, sessionID, itinerary); err != nil {
				l.WarnContext(taskCtx, "Failed to persist itinerary", slog.Any("error", err))
			}
		}
	})

	resp := s.respond(sessionID, ResponseGenerationStarted, "Working on your itinerary now.")
	resp.GenerationID = generationID
	resp.PollURL = "/api/v1/trips/generate?generationId=" + generationID
	resp.Intent = &travelIntent
	return resp
}

func (s *ServiceImpl) conversationalReply(ctx context.Context, message string, convCtx types.ConversationContext) (string, error) {
	text, err := generativeAI.GenerateWithRetry(ctx, s.aiClient, s.logger,
		getConversationalPrompt(message, convCtx),
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](s.temperature)}, s.maxRetries)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// respond records the assistant turn in the session before returning it.
func (s *ServiceImpl) respond(sessionID string, kind ResponseType, message string) ChatResponse {
	s.sessions.Update(sessionID, &types.ConversationMessage{
		Role:      types.RoleAssistant,
		Content:   message,
		Timestamp: time.Now(),
	}, nil, nil)
	return ChatResponse{Type: kind, Message: message, SessionID: sessionID}
}

func (s *ServiceImpl) GetProgress(generationID string) (types.GenerationProgress, error) {
	return s.progress.Get(generationID)
}

func (s *ServiceImpl) GetSession(sessionID string) (*types.ConversationState, bool) {
	return s.sessions.Get(sessionID)
}

func (s *ServiceImpl) ClearSession(sessionID string) {
	s.sessions.Clear(sessionID)
}

func (s *ServiceImpl) GetItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "GetItinerary")
	defer span.End()

	if s.repo == nil {
		return nil, ErrItineraryNotFound
	}
	itinerary, err := s.repo.GetItinerary(ctx, itineraryID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Itinerary lookup failed")
		return nil, err
	}
	return itinerary, nil
}

func intentComplete(i types.TravelIntent) bool {
	if len(i.Destinations) == 0 {
		return false
	}
	for _, d := range i.Destinations {
		if d.DayCount <= 0 {
			return false
		}
	}
	return true
}

func contextUpdateFromIntent(i types.TravelIntent) *types.ContextUpdate {
	return &types.ContextUpdate{
		Destinations: i.Destinations,
		Origin:       i.Origin,
		TotalDays:    i.TotalDays,
		StartDate:    i.StartDate,
		Preferences:  mergedPreferences(nil, i.Preferences),
		LastIntent:   &i,
	}
}

func confirmAll(dests []types.DestinationSpec) []types.DestinationSpec {
	out := make([]types.DestinationSpec, len(dests))
	copy(out, dests)
	for i := range out {
		out[i].Confirmed = true
	}
	return out
}

func mergedPreferences(base map[string]string, extra []string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for _, p := range extra {
		p = strings.TrimSpace(p)
		if p != "" {
			out[strings.ToLower(p)] = p
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var affirmatives = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "sounds good", "go ahead", "do it", "confirm", "perfect", "please do", "looks good"}

var negatives = []string{"no", "nope", "not quite", "not really", "wait", "hold on", "change", "actually"}

func isAffirmative(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(message), "!")))
	for _, a := range affirmatives {
		if lower == a || strings.HasPrefix(lower, a+" ") || strings.HasPrefix(lower, a+",") {
			return true
		}
	}
	return false
}

func isNegative(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, n := range negatives {
		if lower == n || strings.HasPrefix(lower, n+" ") || strings.HasPrefix(lower, n+",") {
			return true
		}
	}
	return false
}
