// Package generation_test tests the generative service client.
package generation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/storybook-service/internal/core"
	"github.com/book-expert/storybook-service/internal/generation"
)

const testTimeout = 5 * time.Second

func newTestClient(t *testing.T, baseURL string) *generation.Client {
	t.Helper()

	client, err := generation.NewClient(generation.Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		TextModel:   "test-text-model",
		ImageModel:  "test-image-model",
		SpeechModel: "test-speech-model",
		Timeout:     testTimeout,
	})
	require.NoError(t, err)

	return client
}

func testProfile() core.HeroProfile {
	return core.HeroProfile{
		Name:              "Nava",
		VisualDescription: "curly hair, green jacket",
		Theme:             "Magical Castle",
		Language:          "English",
	}
}

func chatHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()

	return func(responseWriter http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/v1/chat/completions", request.URL.Path)
		assert.Equal(t, "Bearer test-key", request.Header.Get("Authorization"))
		assert.Equal(t, "application/json", request.Header.Get("Content-Type"))

		reply := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}

		responseWriter.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(responseWriter).Encode(reply))
	}
}

func TestNewClient_EmptyAPIKey(t *testing.T) {
	t.Parallel()

	_, err := generation.NewClient(generation.Config{
		BaseURL:     "http://localhost",
		APIKey:      "",
		TextModel:   "",
		ImageModel:  "",
		SpeechModel: "",
		Timeout:     testTimeout,
	})
	require.ErrorIs(t, err, generation.ErrAPIKeyEmpty)
}

func TestGenerateStoryText_Success(t *testing.T) {
	t.Parallel()

	payload := `{"pages":[{"page":2,"text":"Second."},{"page":1,"text":"First."}]}`
	server := httptest.NewServer(chatHandler(t, payload))
	defer server.Close()

	client := newTestClient(t, server.URL)

	pages, err := client.GenerateStoryText(context.Background(), testProfile(), 2)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "First.", pages[0].Text)
	assert.Equal(t, 2, pages[1].PageNumber)
	assert.Empty(t, pages[0].ImageRef)
}

func TestGenerateStoryText_StripsMarkdownFences(t *testing.T) {
	t.Parallel()

	payload := "```json\n{\"pages\":[{\"page\":1,\"text\":\"Once upon a time.\"}]}\n```"
	server := httptest.NewServer(chatHandler(t, payload))
	defer server.Close()

	client := newTestClient(t, server.URL)

	pages, err := client.GenerateStoryText(context.Background(), testProfile(), 1)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Once upon a time.", pages[0].Text)
}

func TestGenerateStoryText_MalformedPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(chatHandler(t, "this is not json"))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GenerateStoryText(context.Background(), testProfile(), 1)
	require.ErrorIs(t, err, core.ErrMalformedResponse)
}

func TestGenerateStoryText_EmptyPages(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(chatHandler(t, `{"pages":[]}`))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GenerateStoryText(context.Background(), testProfile(), 1)
	require.ErrorIs(t, err, core.ErrMalformedResponse)
}

func TestGenerateStoryText_InvalidPageCount(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://localhost:1")

	_, err := client.GenerateStoryText(context.Background(), testProfile(), 0)
	require.ErrorIs(t, err, generation.ErrPageCountRange)
}

func TestGenerateStoryText_AuthRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusUnauthorized)
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GenerateStoryText(context.Background(), testProfile(), 1)
	require.ErrorIs(t, err, core.ErrAuth)
}

func TestGenerateStoryText_TransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusOK)
		}))
	server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GenerateStoryText(context.Background(), testProfile(), 1)
	require.ErrorIs(t, err, core.ErrTransport)
}

func TestGenerateIllustration_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/v1/images/generations", request.URL.Path)

			var req map[string]any
			require.NoError(t, json.NewDecoder(request.Body).Decode(&req))
			assert.Contains(t, req["prompt"], "Nava")
			assert.InEpsilon(t, 1.0, req["n"], 0.001)

			responseWriter.Header().Set("Content-Type", "application/json")
			_, _ = responseWriter.Write([]byte(`{"data":[{"url":"https://img.example/a.png"}]}`))
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	url, err := client.GenerateIllustration(context.Background(), "Nava", "a castle gate", "Magical Castle")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/a.png", url)
}

func TestGenerateIllustration_EmptyResult(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "application/json")
			_, _ = responseWriter.Write([]byte(`{"data":[]}`))
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GenerateIllustration(context.Background(), "Nava", "a castle gate", "Magical Castle")
	require.ErrorIs(t, err, core.ErrGenerationFailed)
}

func TestSynthesizeSpeech_Success(t *testing.T) {
	t.Parallel()

	const audioPayload = "fake-mp3-bytes"

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/v1/audio/speech", request.URL.Path)

			var req map[string]any
			require.NoError(t, json.NewDecoder(request.Body).Decode(&req))
			assert.Equal(t, "hello", req["input"])
			assert.Equal(t, "shimmer", req["voice"])

			_, _ = responseWriter.Write([]byte(audioPayload))
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	audio, err := client.SynthesizeSpeech(context.Background(), "hello", "shimmer")
	require.NoError(t, err)
	assert.Equal(t, []byte(audioPayload), audio)
}

func TestSynthesizeSpeech_EmptyResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(_ http.ResponseWriter, _ *http.Request) {}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.SynthesizeSpeech(context.Background(), "hello", "shimmer")
	require.ErrorIs(t, err, core.ErrGenerationFailed)
}

func TestSynthesizeSpeech_EmptyText(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://localhost:1")

	_, err := client.SynthesizeSpeech(context.Background(), "", "shimmer")
	require.ErrorIs(t, err, generation.ErrTextEmpty)
}
