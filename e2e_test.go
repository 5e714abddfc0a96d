package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-trip-planner/internal/api/generation"
	"github.com/FACorreiaa/go-trip-planner/internal/api/intent"
	"github.com/FACorreiaa/go-trip-planner/internal/api/session"
	"github.com/FACorreiaa/go-trip-planner/internal/api/trip"
	"github.com/FACorreiaa/go-trip-planner/internal/router"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// scriptedAI serves canned model responses in call order.
type scriptedAI struct {
	responses []string
	calls     int
}

func (f *scriptedAI) GenerateText(_ context.Context, _ string, _ *genai.GenerateContentConfig) (string, error) {
	f.calls++
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func e2eDaysJSON(city string, startDay, count int) string {
	out := `{"days":[`
	for i := 0; i < count; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"day_number":%d,"title":"Exploring %s","city":"%s","activities":[
			{"time":"10:00","description":"old town walk","category":"Attraction"}
		]}`, startDay+i, city, city)
	}
	return out + `]}`
}

func newTestServer(ai *scriptedAI) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	parser := intent.NewParser()
	sessions := session.NewManager(time.Minute, time.Minute, logger)
	progress := generation.NewProgressStore(time.Minute, logger)
	generator := generation.NewService(ai, nil, nil, "test-model", 0.5, 1, logger)
	extractor := intent.NewExtractor(parser, ai, 0.5, 1, logger)
	tripService := trip.NewService(sessions, intent.NewClassifier(parser), extractor, generator, progress, nil, ai, 0.5, 1, logger)
	tripHandler := trip.NewHandler(tripService, logger)

	return httptest.NewServer(router.SetupRouter(&router.Config{TripHandler: tripHandler}))
}

func postChat(t *testing.T, baseURL, sessionID, message string) trip.ChatResponse {
	t.Helper()
	body, err := json.Marshal(map[string]string{"session_id": sessionID, "message": message})
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/api/v1/trips/generate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var chat trip.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	return chat
}

func TestE2E_StructuredRequestToCompletedItinerary(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"title":"Paris and Rome","overview":"Two capitals in five days."}`,
		e2eDaysJSON("Paris", 1, 3),
		e2eDaysJSON("Rome", 4, 2),
	}}
	srv := newTestServer(ai)
	defer srv.Close()

	chat := postChat(t, srv.URL, "e2e-1", "3 days in Paris then 2 days in Rome")
	assert.Equal(t, trip.ResponseGenerationStarted, chat.Type)
	require.NotEmpty(t, chat.GenerationID)
	require.NotEmpty(t, chat.PollURL)

	var final types.GenerationProgress
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + chat.PollURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(resp.Body).Decode(&final); err != nil {
			return false
		}
		return final.Terminal()
	}, 3*time.Second, 20*time.Millisecond)

	require.Equal(t, types.UpdateComplete, final.Type)
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.Itinerary)
	assert.Equal(t, 5, final.Itinerary.TotalDays)
	require.Len(t, final.Itinerary.Days, 5)
	assert.Equal(t, "Paris", final.Itinerary.Days[0].City)
	assert.Equal(t, "Rome", final.Itinerary.Days[4].City)
	assert.Len(t, final.AllCities, 2)
}

func TestE2E_SessionLifecycle(t *testing.T) {
	ai := &scriptedAI{responses: []string{"Spring is lovely there."}}
	srv := newTestServer(ai)
	defer srv.Close()

	chat := postChat(t, srv.URL, "e2e-2", "when is the best time to go?")
	assert.Equal(t, trip.ResponseQuestion, chat.Type)

	resp, err := http.Get(srv.URL + "/api/v1/trips/sessions/e2e-2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state types.ConversationState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "e2e-2", state.SessionID)
	assert.Len(t, state.Messages, 2)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/trips/sessions/e2e-2", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	gone, err := http.Get(srv.URL + "/api/v1/trips/sessions/e2e-2")
	require.NoError(t, err)
	gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestE2E_UnknownGenerationIs404(t *testing.T) {
	srv := newTestServer(&scriptedAI{responses: []string{""}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/trips/generate?generationId=never-existed")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestE2E_Ping(t *testing.T) {
	srv := newTestServer(&scriptedAI{responses: []string{""}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
