package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, srv
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("   ")
	assert.Error(t, err)
}

func TestGenerateContent(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "hello back"}}}},
			},
		})
	})

	out, err := c.GenerateContent(context.Background(), "gemini-2.5-flash", "hello", GenerateConfig{
		ResponseMIMEType: "application/json",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)

	genCfg, ok := gotBody["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", genCfg["responseMimeType"])
}

func TestGenerateContentRequiresModel(t *testing.T) {
	c, err := NewClient("test-key")
	require.NoError(t, err)
	_, err = c.GenerateContent(context.Background(), "", "hi", GenerateConfig{})
	assert.Error(t, err)
}

func TestGenerateContentStatusError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limit exceeded"))
	})

	_, err := c.GenerateContent(context.Background(), "gemini-2.5-flash", "hello", GenerateConfig{})
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
	assert.Contains(t, statusErr.Body, "rate limit exceeded")
}

func TestGenerateContentNoCandidates(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})

	_, err := c.GenerateContent(context.Background(), "gemini-2.5-flash", "hello", GenerateConfig{})
	assert.ErrorContains(t, err, "no candidates")
}
