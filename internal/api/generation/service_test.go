package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-trip-planner/internal/api/places"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// fakeGenClient returns canned responses in call order, repeating the last one.
type fakeGenClient struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeGenClient) GenerateText(_ context.Context, _ string, _ *genai.GenerateContentConfig) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

type fakePlaces struct {
	searches int
}

func (f *fakePlaces) Search(_ context.Context, query, near string) ([]places.Candidate, error) {
	f.searches++
	return []places.Candidate{{
		Name:      "Cafe Central",
		Address:   "1 Main Square, " + near,
		Latitude:  38.7,
		Longitude: -9.1,
		Rating:    4.5,
	}}, nil
}

type fakeInteractions struct {
	saved []types.LlmInteraction
}

func (f *fakeInteractions) SaveInteraction(_ context.Context, in types.LlmInteraction) error {
	f.saved = append(f.saved, in)
	return nil
}

func metadataJSON() string {
	return `{"title":"Iberia in a week","overview":"Lisbon and Madrid back to back."}`
}

func cityDaysJSON(city string, startDay, count int) string {
	out := `{"days":[`
	for i := 0; i < count; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"day_number":%d,"title":"Day in %s","city":"%s","activities":[
			{"time":"09:00","description":"morning walk","category":"Leisure"},
			{"time":"13:00","description":"local lunch","category":"Food"}
		]}`, startDay+i, city, city)
	}
	return out + `]}`
}

func testParams(dests ...types.DestinationSpec) Params {
	return Params{
		GenerationID: "gen-1",
		SessionID:    "sess-1",
		Destinations: dests,
		Origin:       "Porto",
		StartDate:    "2026-09-01",
	}
}

func collectSnapshots() (func(types.GenerationProgress), *[]types.GenerationProgress) {
	var snaps []types.GenerationProgress
	return func(p types.GenerationProgress) { snaps = append(snaps, p) }, &snaps
}

func TestGenerateProgressive_TwoCities(t *testing.T) {
	client := &fakeGenClient{responses: []string{
		metadataJSON(),
		cityDaysJSON("Lisbon", 1, 2),
		cityDaysJSON("Madrid", 3, 1),
	}}
	provider := &fakePlaces{}
	interactions := &fakeInteractions{}
	svc := NewService(client, provider, interactions, "test-model", 0.5, 1, testLogger())

	publish, snaps := collectSnapshots()
	itinerary, err := svc.GenerateProgressive(context.Background(), testParams(
		types.DestinationSpec{Name: "Lisbon", DayCount: 2, Order: 1},
		types.DestinationSpec{Name: "Madrid", DayCount: 1, Order: 2},
	), publish)
	require.NoError(t, err)
	require.NotNil(t, itinerary)

	assert.Equal(t, 3, itinerary.TotalDays)
	require.Len(t, itinerary.Days, 3)
	for i, day := range itinerary.Days {
		assert.Equal(t, i+1, day.DayNumber)
	}
	assert.Equal(t, "Lisbon", itinerary.Days[0].City)
	assert.Equal(t, "Madrid", itinerary.Days[2].City)
	assert.Equal(t, "2026-09-01", itinerary.Days[0].Date)
	assert.Equal(t, "2026-09-03", itinerary.Days[2].Date)

	// One call for the overview, one per destination.
	assert.Equal(t, 3, client.calls)
	assert.Len(t, interactions.saved, 3)
	assert.Equal(t, "gen-1", interactions.saved[0].GenerationID)

	// Venue lookups run for every activity without coordinates.
	assert.Equal(t, 6, provider.searches)
	assert.Equal(t, "Cafe Central", itinerary.Days[0].Activities[0].VenueName)
	require.NotNil(t, itinerary.Days[0].Activities[0].Coordinates)

	// Snapshot stream: understanding, overview, one per city, complete.
	got := *snaps
	require.Len(t, got, 5)
	assert.Equal(t, 10, got[0].Progress)
	assert.Equal(t, 40, got[1].Progress)
	assert.Equal(t, 65, got[2].Progress)
	assert.Equal(t, 90, got[3].Progress)
	assert.Equal(t, 100, got[4].Progress)
	assert.Equal(t, types.UpdateComplete, got[4].Type)
	require.NotNil(t, got[4].Itinerary)

	last := -1
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Progress, last, "published progress must be monotonic")
		last = s.Progress
	}
	assert.Len(t, got[3].AllCities, 2)
	require.NotNil(t, got[1].Metadata)
	assert.Equal(t, "Iberia in a week", got[1].Metadata.Title)
}

func TestGenerateProgressive_DayNumberingRetry(t *testing.T) {
	client := &fakeGenClient{responses: []string{
		metadataJSON(),
		cityDaysJSON("Lisbon", 5, 2), // wrong start day
		cityDaysJSON("Lisbon", 1, 2),
	}}
	svc := NewService(client, nil, nil, "test-model", 0.5, 1, testLogger())

	publish, _ := collectSnapshots()
	itinerary, err := svc.GenerateProgressive(context.Background(), testParams(
		types.DestinationSpec{Name: "Lisbon", DayCount: 2, Order: 1},
	), publish)
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls, "one corrective retry for the bad numbering")
	assert.Equal(t, 1, itinerary.Days[0].DayNumber)
}

func TestGenerateProgressive_PartialFailurePreserved(t *testing.T) {
	client := &fakeGenClient{responses: []string{
		metadataJSON(),
		cityDaysJSON("Lisbon", 1, 2),
		`{"days":[]}`, // Madrid never produces a valid day list
	}}
	svc := NewService(client, nil, nil, "test-model", 0.5, 1, testLogger())

	publish, snaps := collectSnapshots()
	_, err := svc.GenerateProgressive(context.Background(), testParams(
		types.DestinationSpec{Name: "Lisbon", DayCount: 2, Order: 1},
		types.DestinationSpec{Name: "Madrid", DayCount: 1, Order: 2},
	), publish)
	require.Error(t, err)

	got := *snaps
	final := got[len(got)-1]
	assert.Equal(t, types.UpdateError, final.Type)
	assert.NotEmpty(t, final.Error)
	require.Len(t, final.AllCities, 1, "completed cities survive a later failure")
	assert.Equal(t, "Lisbon", final.AllCities[0].City)
	require.NotNil(t, final.Metadata)
}

func TestGenerateProgressive_MetadataFailure(t *testing.T) {
	client := &fakeGenClient{err: errors.New("upstream down")}
	svc := NewService(client, nil, nil, "test-model", 0.5, 1, testLogger())

	publish, snaps := collectSnapshots()
	_, err := svc.GenerateProgressive(context.Background(), testParams(
		types.DestinationSpec{Name: "Lisbon", DayCount: 2, Order: 1},
	), publish)
	require.Error(t, err)

	got := *snaps
	final := got[len(got)-1]
	assert.Equal(t, types.UpdateError, final.Type)
	assert.Empty(t, final.AllCities)
}
