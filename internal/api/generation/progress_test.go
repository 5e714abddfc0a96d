package generation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProgressStore_UnknownID(t *testing.T) {
	s := NewProgressStore(time.Minute, testLogger())

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

func TestProgressStore_MonotonicProgress(t *testing.T) {
	s := NewProgressStore(time.Minute, testLogger())

	s.Set("g1", types.GenerationProgress{Type: types.UpdateProcessing, Progress: 40})
	s.Set("g1", types.GenerationProgress{Type: types.UpdateProcessing, Progress: 10})

	snap, err := s.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, 40, snap.Progress, "progress must never decrease")
}

func TestProgressStore_AllCitiesNeverShrinks(t *testing.T) {
	s := NewProgressStore(time.Minute, testLogger())

	cities := []types.CityDays{
		{City: "Paris", Data: []types.ItineraryDay{{DayNumber: 1}}},
		{City: "Rome", Data: []types.ItineraryDay{{DayNumber: 2}}},
	}
	s.Set("g1", types.GenerationProgress{Type: types.UpdateProcessing, Progress: 60, AllCities: cities})
	s.Set("g1", types.GenerationProgress{Type: types.UpdateProcessing, Progress: 70, AllCities: cities[:1]})

	snap, err := s.Get("g1")
	require.NoError(t, err)
	assert.Len(t, snap.AllCities, 2, "completed cities must be carried forward")
}

func TestProgressStore_MetadataCarriedForward(t *testing.T) {
	s := NewProgressStore(time.Minute, testLogger())

	md := &types.TripMetadata{Title: "Iberia loop"}
	s.Set("g1", types.GenerationProgress{Type: types.UpdateProcessing, Progress: 40, Metadata: md})
	s.Set("g1", types.GenerationProgress{Type: types.UpdateProcessing, Progress: 65})

	snap, err := s.Get("g1")
	require.NoError(t, err)
	require.NotNil(t, snap.Metadata)
	assert.Equal(t, "Iberia loop", snap.Metadata.Title)
}

func TestProgressStore_TerminalImmutable(t *testing.T) {
	s := NewProgressStore(time.Minute, testLogger())

	s.Set("g1", types.GenerationProgress{Type: types.UpdateComplete, Status: "complete", Progress: 100})
	s.Set("g1", types.GenerationProgress{Type: types.UpdateProcessing, Status: "late write", Progress: 50})

	snap, err := s.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, types.UpdateComplete, snap.Type)
	assert.Equal(t, 100, snap.Progress)
}

func TestProgressStore_TerminalRetention(t *testing.T) {
	s := NewProgressStore(40*time.Millisecond, testLogger())

	s.Set("g1", types.GenerationProgress{Type: types.UpdateError, Status: "failed", Error: "boom"})

	snap, err := s.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, types.UpdateError, snap.Type)

	time.Sleep(100 * time.Millisecond)
	_, err = s.Get("g1")
	assert.ErrorIs(t, err, ErrProgressNotFound, "terminal snapshots age out after the retention window")
}

func TestProgressStore_Run(t *testing.T) {
	t.Run("initial snapshot is visible before the task reports", func(t *testing.T) {
		s := NewProgressStore(time.Minute, testLogger())
		release := make(chan struct{})

		s.Run("g1", func(ctx context.Context, publish func(types.GenerationProgress)) {
			<-release
			publish(types.GenerationProgress{Type: types.UpdateComplete, Status: "complete", Progress: 100})
		})

		snap, err := s.Get("g1")
		require.NoError(t, err)
		assert.Equal(t, types.UpdateProcessing, snap.Type)
		assert.Equal(t, "queued", snap.Status)

		close(release)
		require.Eventually(t, func() bool {
			got, err := s.Get("g1")
			return err == nil && got.Terminal()
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("panicking task becomes a terminal error", func(t *testing.T) {
		s := NewProgressStore(time.Minute, testLogger())

		s.Run("g2", func(ctx context.Context, publish func(types.GenerationProgress)) {
			panic("prompt template corrupted")
		})

		require.Eventually(t, func() bool {
			got, err := s.Get("g2")
			return err == nil && got.Type == types.UpdateError
		}, time.Second, 10*time.Millisecond)

		snap, _ := s.Get("g2")
		assert.Contains(t, snap.Error, "prompt template corrupted")
	})
}
