package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	generativeAI "github.com/FACorreiaa/go-trip-planner/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner/internal/api/places"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// Progress split: the first 40% covers understanding the request and the trip
// overview; the remaining 50% is divided across destinations; 100 is terminal.
const (
	progressUnderstanding = 10
	progressMetadata      = 40
	progressCitySpan      = 50
	enrichmentConcurrency = 4
)

// InteractionStore persists LLM call logs. Persistence failures are logged and
// never interrupt a generation.
type InteractionStore interface {
	SaveInteraction(ctx context.Context, interaction types.LlmInteraction) error
}

// Params is a resolved, complete generation request: every destination has a
// name and a positive day count, ordered by visit sequence.
type Params struct {
	GenerationID string
	SessionID    string
	Destinations []types.DestinationSpec
	Origin       string
	StartDate    string // ISO date; empty leaves day dates unset
	Preferences  map[string]string
}

// Service generates a multi-city itinerary one destination at a time,
// reporting through a progress callback after every stage.
type Service struct {
	aiClient     generativeAI.Client
	places       places.SearchProvider
	interactions InteractionStore
	logger       *slog.Logger
	model        string
	temperature  float32
	maxRetries   int
}

func NewService(aiClient generativeAI.Client, placesProvider places.SearchProvider, interactions InteractionStore, model string, temperature float32, maxRetries int, logger *slog.Logger) *Service {
	return &Service{
		aiClient:     aiClient,
		places:       placesProvider,
		interactions: interactions,
		logger:       logger,
		model:        model,
		temperature:  temperature,
		maxRetries:   maxRetries,
	}
}

// GenerateProgressive runs the whole pipeline. The destination loop is
// intentionally sequential: later cities need the running day offset, and one
// in-flight LLM call at a time keeps rate limits in check. On a destination
// failure the terminal error snapshot still carries every city completed so
// far.
func (s *Service) GenerateProgressive(ctx context.Context, p Params, publish func(types.GenerationProgress)) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("GenerationService").Start(ctx, "GenerateProgressive", trace.WithAttributes(
		attribute.String("generation.id", p.GenerationID),
		attribute.Int("generation.destinations", len(p.Destinations)),
	))
	defer span.End()

	totalDays := 0
	for _, d := range p.Destinations {
		totalDays += d.DayCount
	}

	publish(types.GenerationProgress{
		Type:     types.UpdateProcessing,
		Status:   "understanding_request",
		Progress: progressUnderstanding,
		Message:  "Planning your trip",
	})

	metadata, err := s.generateMetadata(ctx, p, totalDays)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Trip metadata generation failed")
		publish(types.GenerationProgress{
			Type:    types.UpdateError,
			Status:  "failed",
			Message: "Could not generate a trip overview, please try again",
			Error:   err.Error(),
		})
		return nil, err
	}

	publish(types.GenerationProgress{
		Type:     types.UpdateProcessing,
		Status:   "trip_overview",
		Progress: progressMetadata,
		Message:  metadata.Title,
		Metadata: metadata,
	})

	var allCities []types.CityDays
	offset := 1
	previousCity := p.Origin

	for i, dest := range p.Destinations {
		days, err := s.generateCityDays(ctx, p, dest, offset, previousCity)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Destination generation failed")
			s.logger.ErrorContext(ctx, "Destination generation failed, surfacing partial result",
				slog.String("generation_id", p.GenerationID),
				slog.String("city", dest.Name),
				slog.Int("completed", len(allCities)),
				slog.Any("error", err),
			)
			publish(types.GenerationProgress{
				Type:      types.UpdateError,
				Status:    "failed",
				Message:   fmt.Sprintf("Could not generate days for %s", dest.Name),
				Error:     err.Error(),
				Metadata:  metadata,
				AllCities: allCities,
			})
			return nil, fmt.Errorf("generating %s: %w", dest.Name, err)
		}

		s.enrichDays(ctx, dest.Name, days)
		s.applyDates(p.StartDate, days)

		allCities = append(allCities, types.CityDays{City: dest.Name, Data: days})
		done := i + 1
		publish(types.GenerationProgress{
			Type:      types.UpdateProcessing,
			Status:    fmt.Sprintf("city_complete:%s", dest.Name),
			Progress:  progressMetadata + progressCitySpan*done/len(p.Destinations),
			Message:   fmt.Sprintf("Finished planning %s (%d of %d)", dest.Name, done, len(p.Destinations)),
			Metadata:  metadata,
			AllCities: allCities,
		})

		offset += dest.DayCount
		previousCity = dest.Name
	}

	merged := make([]types.ItineraryDay, 0, totalDays)
	for _, c := range allCities {
		merged = append(merged, c.Data...)
	}
	if err := types.ValidateDayContiguity(merged); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Merged itinerary failed contiguity check")
		publish(types.GenerationProgress{
			Type:      types.UpdateError,
			Status:    "failed",
			Message:   "Generated itinerary had inconsistent day numbering",
			Error:     err.Error(),
			Metadata:  metadata,
			AllCities: allCities,
		})
		return nil, err
	}

	itinerary := &types.Itinerary{
		ID:           uuid.New(),
		Metadata:     *metadata,
		Destinations: p.Destinations,
		Days:         merged,
		TotalDays:    totalDays,
		CreatedAt:    time.Now(),
	}

	publish(types.GenerationProgress{
		Type:      types.UpdateComplete,
		Status:    "complete",
		Progress:  100,
		Message:   "Your itinerary is ready",
		Metadata:  metadata,
		AllCities: allCities,
		Itinerary: itinerary,
	})

	span.SetStatus(codes.Ok, "Generation completed")
	return itinerary, nil
}

func (s *Service) generateMetadata(ctx context.Context, p Params, totalDays int) (*types.TripMetadata, error) {
	prompt := getTripMetadataPrompt(p.Destinations, totalDays, p.Origin, p.Preferences)
	text, err := s.call(ctx, p, prompt)
	if err != nil {
		return nil, fmt.Errorf("trip metadata call failed: %w", err)
	}

	var metadata types.TripMetadata
	if err := json.Unmarshal([]byte(generativeAI.CleanJSONResponse(text)), &metadata); err != nil {
		return nil, fmt.Errorf("%w: trip metadata JSON: %v", generativeAI.ErrInvalidResponse, err)
	}
	if metadata.Title == "" {
		metadata.Title = fmt.Sprintf("%d-day trip", totalDays)
	}
	return &metadata, nil
}

// generateCityDays asks for exactly dest.DayCount days numbered from startDay.
// Schema or numbering violations get one corrective retry before the
// destination is declared failed.
func (s *Service) generateCityDays(ctx context.Context, p Params, dest types.DestinationSpec, startDay int, previousCity string) ([]types.ItineraryDay, error) {
	prompt := getCityDaysPrompt(dest.Name, dest.DayCount, startDay, previousCity, p.Preferences)

	var lastProblem string
	for attempt := 1; attempt <= 2; attempt++ {
		text, err := s.call(ctx, p, prompt)
		if err != nil {
			return nil, err
		}

		days, problem := decodeCityDays(text, dest, startDay)
		if problem == "" {
			return days, nil
		}
		lastProblem = problem
		s.logger.WarnContext(ctx, "Invalid city days output, retrying with corrective prompt",
			slog.String("city", dest.Name),
			slog.Int("attempt", attempt),
			slog.String("problem", problem),
		)
		prompt = getCorrectiveCityDaysPrompt(dest.Name, dest.DayCount, startDay, previousCity, problem, p.Preferences)
	}
	return nil, fmt.Errorf("%w: %s", generativeAI.ErrInvalidResponse, lastProblem)
}

func decodeCityDays(raw string, dest types.DestinationSpec, startDay int) ([]types.ItineraryDay, string) {
	var payload struct {
		Days []types.ItineraryDay `json:"days"`
	}
	if err := json.Unmarshal([]byte(generativeAI.CleanJSONResponse(raw)), &payload); err != nil {
		return nil, fmt.Sprintf("output was not valid JSON: %v", err)
	}
	if len(payload.Days) != dest.DayCount {
		return nil, fmt.Sprintf("got %d days, want %d", len(payload.Days), dest.DayCount)
	}
	for i := range payload.Days {
		want := startDay + i
		if payload.Days[i].DayNumber != want {
			return nil, fmt.Sprintf("day %d is numbered %d, want %d", i+1, payload.Days[i].DayNumber, want)
		}
		payload.Days[i].City = dest.Name
		for j := range payload.Days[i].Activities {
			payload.Days[i].Activities[j].Category = normalizeCategory(payload.Days[i].Activities[j].Category)
		}
	}
	return payload.Days, ""
}

func normalizeCategory(c types.ActivityCategory) types.ActivityCategory {
	switch c {
	case types.CategoryWork, types.CategoryLeisure, types.CategoryFood,
		types.CategoryTravel, types.CategoryAccommodation, types.CategoryAttraction:
		return c
	default:
		return types.CategoryAttraction
	}
}

// enrichDays attaches real venues to activities missing them. Lookups within
// one destination run concurrently; failures leave the AI-generated address in
// place and never block the pipeline.
func (s *Service) enrichDays(ctx context.Context, city string, days []types.ItineraryDay) {
	if s.places == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichmentConcurrency)

	for i := range days {
		for j := range days[i].Activities {
			activity := &days[i].Activities[j]
			if activity.VenueName != "" && activity.Coordinates != nil {
				continue
			}
			g.Go(func() error {
				query := activity.Description
				if query == "" {
					query = string(activity.Category)
				}
				candidates, err := s.places.Search(gctx, query, city)
				if err != nil {
					s.logger.WarnContext(gctx, "Venue enrichment lookup failed",
						slog.String("city", city),
						slog.String("query", query),
						slog.Any("error", err),
					)
					return nil // non-fatal by contract
				}
				if len(candidates) == 0 {
					return nil
				}
				top := candidates[0]
				activity.VenueName = top.Name
				if top.Address != "" {
					activity.Address = top.Address
				}
				activity.Coordinates = &types.Coordinates{Latitude: top.Latitude, Longitude: top.Longitude}
				if top.Rating > 0 {
					activity.Rating = top.Rating
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (s *Service) applyDates(startDate string, days []types.ItineraryDay) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return
	}
	for i := range days {
		days[i].Date = start.AddDate(0, 0, days[i].DayNumber-1).Format("2006-01-02")
	}
}

// call wraps the LLM capability with retry and interaction logging.
func (s *Service) call(ctx context.Context, p Params, prompt string) (string, error) {
	start := time.Now()
	text, err := generativeAI.GenerateWithRetry(ctx, s.aiClient, s.logger, prompt,
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](s.temperature)}, s.maxRetries)
	if err != nil {
		return "", err
	}

	if s.interactions != nil {
		interaction := types.LlmInteraction{
			ID:           uuid.New(),
			GenerationID: p.GenerationID,
			SessionID:    p.SessionID,
			Prompt:       prompt,
			ResponseText: text,
			ModelUsed:    s.model,
			LatencyMs:    int(time.Since(start).Milliseconds()),
			CreatedAt:    time.Now(),
		}
		if err := s.interactions.SaveInteraction(ctx, interaction); err != nil {
			s.logger.WarnContext(ctx, "Failed to persist LLM interaction",
				slog.String("generation_id", p.GenerationID),
				slog.Any("error", err),
			)
		}
	}
	return text, nil
}
