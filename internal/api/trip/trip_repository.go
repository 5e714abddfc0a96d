package trip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// pgxQuerier is the slice of pgxpool.Pool the repository actually uses, kept
// narrow so tests can substitute a mock pool.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var ErrItineraryNotFound = errors.New("itinerary not found")

// Ensure RepositoryImpl implements the Repository interface
var _ Repository = (*RepositoryImpl)(nil)

// Repository persists finished itineraries and LLM call logs. Session state is
// deliberately not stored here; sessions live in memory with a TTL.
type Repository interface {
	SaveItinerary(ctx context.Context, sessionID string, itinerary *types.Itinerary) error
	GetItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error)
	SaveInteraction(ctx context.Context, interaction types.LlmInteraction) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool pgxQuerier
}

func NewRepository(pgxpool *pgxpool.Pool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
	}
}

// SaveItinerary stores the itinerary as a JSONB payload keyed by its ID. The
// document shape changes with prompts too often for a relational breakdown to
// pay off.
func (r *RepositoryImpl) SaveItinerary(ctx context.Context, sessionID string, itinerary *types.Itinerary) error {
	payload, err := json.Marshal(itinerary)
	if err != nil {
		return fmt.Errorf("failed to marshal itinerary: %w", err)
	}

	query := `
        INSERT INTO saved_itineraries (id, session_id, title, total_days, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload
    `
	_, err = r.pgpool.Exec(ctx, query,
		itinerary.ID, sessionID, itinerary.Metadata.Title, itinerary.TotalDays, payload, itinerary.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save itinerary", slog.Any("error", err))
		return fmt.Errorf("failed to save itinerary: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) GetItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error) {
	query := `SELECT payload FROM saved_itineraries WHERE id = $1`

	var payload []byte
	err := r.pgpool.QueryRow(ctx, query, itineraryID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItineraryNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get itinerary", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}

	var itinerary types.Itinerary
	if err := json.Unmarshal(payload, &itinerary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal itinerary payload: %w", err)
	}
	return &itinerary, nil
}

// SaveInteraction records one LLM round trip for later prompt debugging.
func (r *RepositoryImpl) SaveInteraction(ctx context.Context, interaction types.LlmInteraction) error {
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO llm_interactions (id, generation_id, session_id, prompt, response_text, model_used, latency_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.pgpool.Exec(ctx, query,
		interaction.ID, interaction.GenerationID, interaction.SessionID,
		interaction.Prompt, interaction.ResponseText, interaction.ModelUsed,
		interaction.LatencyMs, interaction.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save LLM interaction", slog.Any("error", err))
		return fmt.Errorf("failed to save llm interaction: %w", err)
	}
	return nil
}
