package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Candidate is one ranked venue returned by a places lookup.
type Candidate struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Rating    float64 `json:"rating,omitempty"`
}

// SearchProvider is the places-lookup capability consumed by venue enrichment.
// An empty result slice means "no matches" and is not an error; errors are
// reserved for transport failures.
type SearchProvider interface {
	Search(ctx context.Context, query, near string) ([]Candidate, error)
}

var _ SearchProvider = (*HTTPProvider)(nil)

// HTTPProvider queries a Nominatim-compatible geocoding endpoint.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPProvider(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (p *HTTPProvider) Search(ctx context.Context, query, near string) ([]Candidate, error) {
	ctx, span := otel.Tracer("PlacesProvider").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("places.query", query),
		attribute.String("places.near", near),
	))
	defer span.End()

	q := query
	if near != "" {
		q = fmt.Sprintf("%s near %s", query, near)
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "jsonv2")
	params.Set("limit", "5")
	params.Set("addressdetails", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build places request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Places request failed")
		return nil, fmt.Errorf("places lookup transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("places lookup returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Non-200 from places provider")
		return nil, err
	}

	var raw []struct {
		DisplayName string `json:"display_name"`
		Name        string `json:"name"`
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		Importance  float64 `json:"importance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode places response: %w", err)
	}

	candidates := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			p.logger.WarnContext(ctx, "Skipping places candidate with bad coordinates",
				slog.String("name", r.Name),
				slog.String("lat", r.Lat),
				slog.String("lon", r.Lon),
			)
			continue
		}
		name := r.Name
		if name == "" {
			name = r.DisplayName
		}
		candidates = append(candidates, Candidate{
			Name:      name,
			Address:   r.DisplayName,
			Latitude:  lat,
			Longitude: lon,
		})
	}

	span.SetAttributes(attribute.Int("places.candidates", len(candidates)))
	span.SetStatus(codes.Ok, "Places lookup completed")
	return candidates, nil
}
