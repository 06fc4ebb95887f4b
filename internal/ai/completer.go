package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DefaultGeminiURL is the generateContent endpoint used when none is configured.
const DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"

// FallbackReply is returned when the provider answers without any text.
const FallbackReply = "Sorry, I couldn't generate a response."

var ErrNotConfigured = errors.New("ai completion is not configured")

// Turn is one entry of the conversation sent for completion. Role is "user"
// or "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content" validate:"required"`
}

// Completer produces the next assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// ProviderError reports a non-2xx answer from the completion provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiCompleter calls a Gemini generateContent endpoint over HTTP.
type GeminiCompleter struct {
	url    string
	apiKey string
	client *http.Client
}

func NewGeminiCompleter(url, apiKey string) *GeminiCompleter {
	return &GeminiCompleter{
		url:    lo.CoalesceOrEmpty(url, DefaultGeminiURL),
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func toContents(turns []Turn) []geminiContent {
	return lo.Map(turns, func(t Turn, _ int) geminiContent {
		role := "user"
		if t.Role == "assistant" {
			role = "model"
		}
		return geminiContent{Role: role, Parts: []geminiPart{{Text: t.Content}}}
	})
}

func (g *GeminiCompleter) Complete(ctx context.Context, turns []Turn) (string, error) {
	if g.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(geminiRequest{Contents: toContents(turns)})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(out.Candidates) > 0 && len(out.Candidates[0].Content.Parts) > 0 {
		if text := out.Candidates[0].Content.Parts[0].Text; text != "" {
			return text, nil
		}
	}

	return FallbackReply, nil
}
