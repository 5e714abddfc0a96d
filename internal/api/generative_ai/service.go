package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-trip-planner/app/observability/metrics"
)

// Error variants the rest of the pipeline switches on. Callers use errors.Is.
var (
	ErrRateLimited     = errors.New("llm: rate limited")
	ErrTimeout         = errors.New("llm: timeout")
	ErrInvalidResponse = errors.New("llm: invalid response")
)

// Client is the LLM capability consumed by the extractor and the trip
// generator. Implementations must return errors matching the variants above
// for retryable upstream failures.
type Client interface {
	GenerateText(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error)
}

var _ Client = (*AIClient)(nil)

type AIClient struct {
	client *genai.Client
	model  string
}

func NewAIClient(ctx context.Context, model string) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		err := fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, err
	}

	span.SetStatus(codes.Ok, "AI client created successfully")
	return &AIClient{
		client: client,
		model:  model,
	}, nil
}

func (ai *AIClient) GenerateText(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateText", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	start := time.Now()
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	metrics.Get().LlmCallDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		err = classifyError(err)
		metrics.Get().LlmCallErrorsTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to generate content")
		return "", err
	}

	responseText := result.Text()
	if responseText == "" {
		err := fmt.Errorf("%w: empty candidate text", ErrInvalidResponse)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty response from model")
		return "", err
	}

	span.SetAttributes(attribute.Int("response.length", len(responseText)))
	span.SetStatus(codes.Ok, "Content generated successfully")
	return responseText, nil
}

// classifyError maps transport-level failures onto the capability's error
// variants so callers never match on provider error strings.
func classifyError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case strings.Contains(err.Error(), "429"),
		strings.Contains(err.Error(), "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	default:
		return err
	}
}

// GenerateWithRetry wraps GenerateText with bounded backoff for rate-limit and
// timeout failures. Schema-invalid output is not retried here; that recovery
// belongs to the caller, which owns the corrective prompt.
func GenerateWithRetry(ctx context.Context, client Client, logger *slog.Logger, prompt string, config *genai.GenerateContentConfig, maxAttempts int) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := client.GenerateText(ctx, prompt, config)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) && !errors.Is(err, ErrTimeout) {
			return "", err
		}
		if attempt < maxAttempts {
			wait := time.Duration(attempt) * 500 * time.Millisecond
			logger.WarnContext(ctx, "LLM call failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return "", lastErr
}

// CleanJSONResponse strips markdown fences and surrounding prose from a model
// response so the remainder can be unmarshalled directly.
func CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	// Remove markdown code block markers
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	if strings.HasSuffix(response, "```") {
		response = strings.TrimSuffix(response, "```")
	}
	response = strings.TrimSpace(response)

	// Look for the first { and last } to extract the JSON object
	firstBrace := strings.Index(response, "{")
	if firstBrace == -1 {
		return response
	}
	lastBrace := strings.LastIndex(response, "}")
	if lastBrace == -1 || lastBrace <= firstBrace {
		return response
	}
	return strings.TrimSpace(response[firstBrace : lastBrace+1])
}
