package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToContents(t *testing.T) {
	got := toContents([]Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "system", Content: "odd"},
	})

	assert.Equal(t, []geminiContent{
		{Role: "user", Parts: []geminiPart{{Text: "hi"}}},
		{Role: "model", Parts: []geminiPart{{Text: "hello"}}},
		{Role: "user", Parts: []geminiPart{{Text: "odd"}}},
	}, got)
}

func TestGeminiCompleter_Complete(t *testing.T) {
	tcases := []struct {
		name        string
		status      int
		body        string
		expectReply string
		expectErr   bool
	}{
		{
			name:        "reply text",
			status:      http.StatusOK,
			body:        `{"candidates":[{"content":{"role":"model","parts":[{"text":"sure thing"}]}}]}`,
			expectReply: "sure thing",
		},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, expectReply: FallbackReply},
		{name: "provider error", status: http.StatusTooManyRequests, body: `{"error":"quota"}`, expectErr: true},
		{name: "malformed body", status: http.StatusOK, body: `not json`, expectErr: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var got geminiRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewGeminiCompleter(srv.URL, "secret")
			reply, err := c.Complete(context.Background(), []Turn{{Role: "user", Content: "hello"}})

			require.Len(t, got.Contents, 1)
			assert.Equal(t, "user", got.Contents[0].Role)

			if tc.expectErr {
				assert.Error(t, err)
				if tc.status != http.StatusOK {
					var perr *ProviderError
					require.ErrorAs(t, err, &perr)
					assert.Equal(t, tc.status, perr.StatusCode)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectReply, reply)
		})
	}
}

func TestGeminiCompleter_NotConfigured(t *testing.T) {
	c := NewGeminiCompleter("", "")
	assert.Equal(t, DefaultGeminiURL, c.url)

	_, err := c.Complete(context.Background(), []Turn{{Role: "user", Content: "hello"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
