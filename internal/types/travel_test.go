package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDayContiguity(t *testing.T) {
	t.Run("contiguous days pass", func(t *testing.T) {
		days := []ItineraryDay{
			{DayNumber: 1}, {DayNumber: 2}, {DayNumber: 3},
		}
		assert.NoError(t, ValidateDayContiguity(days))
	})

	t.Run("empty itinerary passes", func(t *testing.T) {
		assert.NoError(t, ValidateDayContiguity(nil))
	})

	t.Run("gap is rejected", func(t *testing.T) {
		days := []ItineraryDay{
			{DayNumber: 1}, {DayNumber: 3},
		}
		err := ValidateDayContiguity(days)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "day_number 3")
	})

	t.Run("repeat is rejected", func(t *testing.T) {
		days := []ItineraryDay{
			{DayNumber: 1}, {DayNumber: 1},
		}
		assert.Error(t, ValidateDayContiguity(days))
	})

	t.Run("not starting at one is rejected", func(t *testing.T) {
		days := []ItineraryDay{{DayNumber: 2}}
		assert.Error(t, ValidateDayContiguity(days))
	})
}

func TestGenerationProgress_Terminal(t *testing.T) {
	assert.True(t, GenerationProgress{Type: UpdateComplete}.Terminal())
	assert.True(t, GenerationProgress{Type: UpdateError}.Terminal())
	assert.False(t, GenerationProgress{Type: UpdateProcessing}.Terminal())
	assert.False(t, GenerationProgress{Type: UpdateQuestion}.Terminal())
}
