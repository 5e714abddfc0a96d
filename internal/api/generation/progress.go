package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

var ErrProgressNotFound = errors.New("generation: unknown or expired generation id")

// Non-terminal snapshots of abandoned generations still need to age out
// eventually; one hour is far beyond any realistic generation run.
const inFlightRetention = time.Hour

// ProgressStore maps generation ids to their latest progress snapshot.
// Injectable (no module-level map) so tests can build isolated instances with
// short retention. It also owns the launch of background generation tasks, so
// handlers never fire bare goroutines.
//
// Guarantees per id: Progress never decreases, AllCities never shrinks, and a
// terminal snapshot is never overwritten; terminal snapshots are evicted after
// the retention window.
type ProgressStore struct {
	mu        sync.Mutex
	snapshots *cache.Cache
	retention time.Duration
	logger    *slog.Logger
}

func NewProgressStore(retention time.Duration, logger *slog.Logger) *ProgressStore {
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	return &ProgressStore{
		snapshots: cache.New(inFlightRetention, time.Minute),
		retention: retention,
		logger:    logger,
	}
}

func (s *ProgressStore) Get(generationID string) (types.GenerationProgress, error) {
	v, ok := s.snapshots.Get(generationID)
	if !ok {
		return types.GenerationProgress{}, ErrProgressNotFound
	}
	return v.(types.GenerationProgress), nil
}

// Set publishes a snapshot, clamping it against the stored one so the
// monotonicity invariants hold no matter what the producer sends.
func (s *ProgressStore) Set(generationID string, p types.GenerationProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.snapshots.Get(generationID); ok {
		prev := v.(types.GenerationProgress)
		if prev.Terminal() {
			s.logger.Warn("Dropping snapshot write after terminal state",
				slog.String("generation_id", generationID),
				slog.String("type", string(p.Type)),
			)
			return
		}
		if p.Progress < prev.Progress {
			p.Progress = prev.Progress
		}
		if len(p.AllCities) < len(prev.AllCities) {
			p.AllCities = prev.AllCities
		}
		if p.Metadata == nil {
			p.Metadata = prev.Metadata
		}
	}
	p.UpdatedAt = time.Now()

	ttl := inFlightRetention
	if p.Terminal() {
		ttl = s.retention
	}
	s.snapshots.Set(generationID, p, ttl)
}

func (s *ProgressStore) Delete(generationID string) {
	s.snapshots.Delete(generationID)
}

// Run registers an initial processing snapshot for the id and launches the
// task in the background. The HTTP response can be written as soon as Run
// returns; the task reports exclusively through its publish callback. A panic
// inside the task becomes a terminal error snapshot instead of taking the
// process down.
func (s *ProgressStore) Run(generationID string, task func(ctx context.Context, publish func(types.GenerationProgress))) {
	s.Set(generationID, types.GenerationProgress{
		Type:     types.UpdateProcessing,
		Status:   "queued",
		Progress: 0,
		Message:  "Starting trip generation",
	})

	publish := func(p types.GenerationProgress) {
		s.Set(generationID, p)
	}

	// Generation runs to completion even if the client stops polling; there
	// is no cancellation channel by contract.
	ctx := context.Background()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Generation task panicked",
					slog.String("generation_id", generationID),
					slog.Any("panic", r),
				)
				publish(types.GenerationProgress{
					Type:    types.UpdateError,
					Status:  "failed",
					Message: "Trip generation failed unexpectedly",
					Error:   fmt.Sprintf("internal error: %v", r),
				})
			}
		}()
		task(ctx, publish)
	}()
}
