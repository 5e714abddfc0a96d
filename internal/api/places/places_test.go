package places

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPProvider_Search(t *testing.T) {
	t.Run("parses candidates and builds the near query", func(t *testing.T) {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("q")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"display_name":"Time Out Market, Lisbon, Portugal","name":"Time Out Market","lat":"38.7071","lon":"-9.1458"},
				{"display_name":"Broken Row","name":"Broken Row","lat":"not-a-number","lon":"-9.1"}
			]`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, time.Second, testLogger())
		candidates, err := p.Search(context.Background(), "food market", "Lisbon")
		require.NoError(t, err)

		assert.Equal(t, "food market near Lisbon", gotQuery)
		require.Len(t, candidates, 1, "rows with bad coordinates are skipped")
		assert.Equal(t, "Time Out Market", candidates[0].Name)
		assert.Equal(t, "Time Out Market, Lisbon, Portugal", candidates[0].Address)
		assert.InDelta(t, 38.7071, candidates[0].Latitude, 0.0001)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, time.Second, testLogger())
		candidates, err := p.Search(context.Background(), "unicorn sanctuary", "Oslo")
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("non-200 is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, time.Second, testLogger())
		_, err := p.Search(context.Background(), "cafe", "Rome")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("display name fills a missing name", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"display_name":"Praca do Comercio, Lisbon","name":"","lat":"38.7","lon":"-9.1"}]`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, time.Second, testLogger())
		candidates, err := p.Search(context.Background(), "square", "")
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "Praca do Comercio, Lisbon", candidates[0].Name)
	})
}
