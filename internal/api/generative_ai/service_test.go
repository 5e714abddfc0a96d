package generativeAI

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type flakyClient struct {
	errs  []error
	text  string
	calls int
}

func (f *flakyClient) GenerateText(_ context.Context, _ string, _ *genai.GenerateContentConfig) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return "", f.errs[f.calls-1]
	}
	return f.text, nil
}

func TestGenerateWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("rate limit is retried", func(t *testing.T) {
		client := &flakyClient{errs: []error{ErrRateLimited}, text: "ok"}
		text, err := GenerateWithRetry(ctx, client, testLogger(), "p", nil, 3)
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
		assert.Equal(t, 2, client.calls)
	})

	t.Run("timeout is retried", func(t *testing.T) {
		client := &flakyClient{errs: []error{ErrTimeout, ErrTimeout}, text: "ok"}
		_, err := GenerateWithRetry(ctx, client, testLogger(), "p", nil, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, client.calls)
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		client := &flakyClient{errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited}}
		_, err := GenerateWithRetry(ctx, client, testLogger(), "p", nil, 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, 2, client.calls)
	})

	t.Run("invalid response is not retried", func(t *testing.T) {
		client := &flakyClient{errs: []error{ErrInvalidResponse}}
		_, err := GenerateWithRetry(ctx, client, testLogger(), "p", nil, 3)
		require.Error(t, err)
		assert.Equal(t, 1, client.calls, "schema recovery belongs to the caller, not the retry loop")
	})

	t.Run("unknown errors fail fast", func(t *testing.T) {
		client := &flakyClient{errs: []error{errors.New("wire cut")}}
		_, err := GenerateWithRetry(ctx, client, testLogger(), "p", nil, 3)
		require.Error(t, err)
		assert.Equal(t, 1, client.calls)
	})
}

func TestClassifyError(t *testing.T) {
	assert.ErrorIs(t, classifyError(context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, classifyError(errors.New("googleapi: Error 429: quota")), ErrRateLimited)
	assert.ErrorIs(t, classifyError(errors.New("RESOURCE_EXHAUSTED: slow down")), ErrRateLimited)

	plain := errors.New("something else")
	assert.Equal(t, plain, classifyError(plain))
}

func TestCleanJSONResponse(t *testing.T) {
	t.Run("fenced block", func(t *testing.T) {
		raw := "```json\n{\"a\":1}\n```"
		assert.Equal(t, `{"a":1}`, CleanJSONResponse(raw))
	})

	t.Run("surrounding prose", func(t *testing.T) {
		raw := "Sure! Here is the plan: {\"a\":1} Hope that helps."
		assert.Equal(t, `{"a":1}`, CleanJSONResponse(raw))
	})

	t.Run("bare fence without language", func(t *testing.T) {
		raw := "```\n{\"a\":1}\n```"
		assert.Equal(t, `{"a":1}`, CleanJSONResponse(raw))
	})

	t.Run("no braces passes through", func(t *testing.T) {
		assert.Equal(t, "plain text", CleanJSONResponse("  plain text  "))
	})
}
