// Package generation provides the stateless client for the three generative
// service operations: structured story text, single illustrations, and
// single speech synthesis. Each call is one network round trip with no
// internal retry and no caching; caching is the storage manager's concern.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/book-expert/storybook-service/internal/core"
)

// API endpoints.
const (
	apiChatCompletions  = "/v1/chat/completions"
	apiImageGenerations = "/v1/images/generations"
	apiAudioSpeech      = "/v1/audio/speech"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "
)

// Defaults for optional request parameters.
const (
	defaultImageSize = "1024x1024"
	imagesPerRequest = 1
)

// Static errors.
var (
	ErrAPIKeyEmpty    = errors.New("api key cannot be empty")
	ErrTextEmpty      = errors.New("text cannot be empty")
	ErrPageCountRange = errors.New("page count must be positive")
)

// Config holds the connection and model parameters for the generative
// services.
type Config struct {
	BaseURL     string
	APIKey      string
	TextModel   string
	ImageModel  string
	SpeechModel string
	Timeout     time.Duration
}

// Client is a stateless adapter over the generative HTTP services. It holds
// no caches and performs no retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cfg        Config
}

// NewClient creates a generation client. The base URL should include the
// protocol (e.g. "https://api.openai.com"); the timeout applies to every
// request made by this client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyEmpty
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		cfg:        cfg,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type storyEnvelope struct {
	Pages []struct {
		Page int    `json:"page"`
		Text string `json:"text"`
	} `json:"pages"`
}

// GenerateStoryText requests a complete story as structured JSON and returns
// its pages ordered by page number. The upstream is instructed to emit
// exactly `{"pages":[{"page":int,"text":string}]}`; any markdown fencing
// around the payload is stripped before parsing.
func (c *Client) GenerateStoryText(
	ctx context.Context,
	profile core.HeroProfile,
	pageCount int,
) ([]core.StoryPage, error) {
	if pageCount < 1 {
		return nil, ErrPageCountRange
	}

	reqBody := chatRequest{
		Model:          c.cfg.TextModel,
		Messages:       []chatMessage{{Role: "system", Content: storyPrompt(profile, pageCount)}},
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	var res chatResponse

	postErr := c.postJSON(ctx, apiChatCompletions, reqBody, &res)
	if postErr != nil {
		return nil, postErr
	}

	if len(res.Choices) == 0 {
		return nil, fmt.Errorf("%w: response carried no choices", core.ErrMalformedResponse)
	}

	return parseStoryPayload(res.Choices[0].Message.Content)
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateIllustration requests a single illustration and returns the remote
// URL of the generated image.
func (c *Client) GenerateIllustration(
	ctx context.Context,
	heroDescriptor, sceneContext, styleHint string,
) (string, error) {
	prompt := fmt.Sprintf(
		"Children's book illustration. 3D animated film style. Character: %s. Scene: %s. Atmosphere: %s. High resolution, cute, vibrant.",
		heroDescriptor, sceneContext, styleHint,
	)

	reqBody := imageRequest{
		Model:  c.cfg.ImageModel,
		Prompt: prompt,
		N:      imagesPerRequest,
		Size:   defaultImageSize,
	}

	var res imageResponse

	postErr := c.postJSON(ctx, apiImageGenerations, reqBody, &res)
	if postErr != nil {
		return "", postErr
	}

	if len(res.Data) == 0 || res.Data[0].URL == "" {
		return "", fmt.Errorf("%w: image service returned no result", core.ErrGenerationFailed)
	}

	return res.Data[0].URL, nil
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// SynthesizeSpeech converts text to raw audio bytes using the given voice.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	reqBody := speechRequest{
		Model: c.cfg.SpeechModel,
		Input: text,
		Voice: voiceID,
	}

	resp, sendErr := c.send(ctx, apiAudioSpeech, reqBody)
	if sendErr != nil {
		return nil, sendErr
	}
	defer func() { _ = resp.Body.Close() }()

	statusErr := c.checkStatus(resp)
	if statusErr != nil {
		return nil, statusErr
	}

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("%w: failed to read audio data: %w", core.ErrTransport, readErr)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: received empty audio data", core.ErrGenerationFailed)
	}

	return audioData, nil
}

func storyPrompt(profile core.HeroProfile, pageCount int) string {
	return fmt.Sprintf(
		"You are a backend JSON generator.\n"+
			"Write a %d-page children's story about %s in %s.\n"+
			"Theme: %s. The hero looks like: %s.\n\n"+
			"Strictly return valid JSON only. Format:\n"+
			`{"pages": [{"page": 1, "text": "..."}]}`,
		pageCount, profile.Name, profile.Language, profile.Theme, profile.VisualDescription,
	)
}

// parseStoryPayload strips markdown fencing from the model output and decodes
// the page envelope, returning pages sorted by page number.
func parseStoryPayload(content string) ([]core.StoryPage, error) {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var envelope storyEnvelope

	unmarshalErr := json.Unmarshal([]byte(cleaned), &envelope)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrMalformedResponse, unmarshalErr)
	}

	if len(envelope.Pages) == 0 {
		return nil, fmt.Errorf("%w: story payload carried no pages", core.ErrMalformedResponse)
	}

	pages := make([]core.StoryPage, 0, len(envelope.Pages))
	for _, page := range envelope.Pages {
		pages = append(pages, core.StoryPage{
			PageNumber: page.Page,
			Text:       page.Text,
			ImageRef:   "",
			AudioRef:   "",
		})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })

	return pages, nil
}

// send posts a JSON body to the given path and returns the raw response.
// The caller owns the response body.
func (c *Client) send(ctx context.Context, path string, body any) (*http.Response, error) {
	requestBody, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", marshalErr)
	}

	httpReq, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		bytes.NewBuffer(requestBody),
	)
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create request: %w", reqErr)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAuthorization, bearerPrefix+c.apiKey)

	resp, sendErr := c.httpClient.Do(httpReq)
	if sendErr != nil {
		return nil, fmt.Errorf("%w: request to %s failed: %w", core.ErrTransport, path, sendErr)
	}

	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, target any) error {
	resp, sendErr := c.send(ctx, path, body)
	if sendErr != nil {
		return sendErr
	}
	defer func() { _ = resp.Body.Close() }()

	statusErr := c.checkStatus(resp)
	if statusErr != nil {
		return statusErr
	}

	decodeErr := json.NewDecoder(resp.Body).Decode(target)
	if decodeErr != nil {
		return fmt.Errorf("%w: failed to decode response: %w", core.ErrMalformedResponse, decodeErr)
	}

	return nil
}

type upstreamError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// checkStatus maps non-success statuses onto the failure taxonomy. The
// response body is consumed only when the status is not OK.
func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: service returned status %s", core.ErrAuth, resp.Status)
	}

	var detail upstreamError

	decodeErr := json.NewDecoder(resp.Body).Decode(&detail)
	if decodeErr == nil && detail.Error.Message != "" {
		return fmt.Errorf("%w: %s (%s)", core.ErrGenerationFailed, detail.Error.Message, resp.Status)
	}

	return fmt.Errorf("%w: service returned status %s", core.ErrGenerationFailed, resp.Status)
}
