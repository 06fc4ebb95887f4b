package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/npezzotti/go-dm/internal/ai"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply string
	err   error
	got   []ai.Turn
}

func (c *fakeCompleter) Complete(_ context.Context, turns []ai.Turn) (string, error) {
	c.got = turns
	return c.reply, c.err
}

func completerOf(t *testing.T, app *GoChatApp) *fakeCompleter {
	t.Helper()

	c, ok := app.completer.(*fakeCompleter)
	require.True(t, ok, "expected test app to carry a fake completer")
	return c
}

func TestGenerateReply(t *testing.T) {
	valid := GenerateRequest{Messages: []ai.Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "how are you"},
	}}

	tcases := []struct {
		name          string
		body          any
		userId        string
		completerErr  error
		expectCode    int
		expectMessage string
		expectReply   string
	}{
		{name: "reply", body: valid, userId: "u1", expectCode: http.StatusOK, expectMessage: "reply generated", expectReply: "hello there"},
		{name: "empty messages", body: GenerateRequest{Messages: []ai.Turn{}}, userId: "u1", expectCode: http.StatusBadRequest, expectMessage: "messages must be a non-empty array"},
		{name: "missing messages", body: map[string]any{}, userId: "u1", expectCode: http.StatusBadRequest, expectMessage: "messages must be a non-empty array"},
		{name: "blank content", body: GenerateRequest{Messages: []ai.Turn{{Role: "user"}}}, userId: "u1", expectCode: http.StatusBadRequest, expectMessage: "messages must be a non-empty array"},
		{name: "malformed body", body: "{", userId: "u1", expectCode: http.StatusBadRequest, expectMessage: "bad request"},
		{name: "not configured", body: valid, userId: "u1", completerErr: ai.ErrNotConfigured, expectCode: http.StatusInternalServerError, expectMessage: "ai completion is not configured"},
		{name: "provider failure", body: valid, userId: "u1", completerErr: errors.New("provider returned 429"), expectCode: http.StatusInternalServerError, expectMessage: "ai request failed"},
		{name: "unauthenticated", body: valid, expectCode: http.StatusUnauthorized, expectMessage: "unauthorized"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app, _ := newTestApp(t, database.NewMemRepository())
			completer := completerOf(t, app)
			completer.err = tc.completerErr

			rr := do(t, app, http.MethodPost, "/api/ai/generate", tc.body, tc.userId)
			assert.Equal(t, tc.expectCode, rr.Code)

			var resp GenerateResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tc.expectCode == http.StatusOK, resp.Success)
			assert.Equal(t, tc.expectMessage, resp.Message)
			assert.Equal(t, tc.expectReply, resp.Reply)

			if tc.expectCode == http.StatusOK {
				assert.Equal(t, valid.Messages, completer.got, "expected the conversation to be passed through")
			}
		})
	}
}

func TestGenerateReply_NoCompleter(t *testing.T) {
	db := database.NewMemRepository()
	app := NewGoChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, nil, nil, testConfig(t))

	body := GenerateRequest{Messages: []ai.Turn{{Role: "user", Content: "hi"}}}
	rr := do(t, app, http.MethodPost, "/api/ai/generate", body, "u1")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp GenerateResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "ai completion is not configured", resp.Message)
}
