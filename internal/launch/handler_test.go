package launch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: s.Addr()})
}

func TestReplayGuard_FirstUseThenReplay(t *testing.T) {
	rdb := setupMiniredis(t)
	g := NewReplayGuard(rdb, 30*time.Second)
	ctx := context.Background()

	first, err := g.FirstUse(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := g.FirstUse(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := g.FirstUse(ctx, "token-b")
	require.NoError(t, err)
	assert.True(t, other)
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	verifier := NewVerifier(testSecret, 30*time.Second)
	replay := NewReplayGuard(setupMiniredis(t), 30*time.Second)
	return NewHandler(verifier, replay)
}

func postForm(h *Handler, token string) *httptest.ResponseRecorder {
	form := url.Values{}
	if token != "" {
		form.Set("token", token)
	}
	req := httptest.NewRequest(http.MethodPost, "/access-tool", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.Access(rr, req)
	return rr
}

func TestAccess_FormToken(t *testing.T) {
	h := newTestHandler(t)

	rr := postForm(h, mintToken(t, testSecret, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp AccessResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "jdoe", resp.UserID)
	assert.Equal(t, "John Doe", resp.Name)
	assert.Equal(t, "course-123", resp.CourseID)
	assert.Equal(t, "learner", resp.Role)
}

func TestAccess_BearerToken(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/access-tool", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, nil))
	rr := httptest.NewRecorder()
	h.Access(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestAccess_MissingToken(t *testing.T) {
	h := newTestHandler(t)

	rr := postForm(h, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAccess_InvalidToken(t *testing.T) {
	h := newTestHandler(t)

	rr := postForm(h, "garbage")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAccess_ReplayRejected(t *testing.T) {
	h := newTestHandler(t)
	tok := mintToken(t, testSecret, nil)

	rr := postForm(h, tok)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = postForm(h, tok)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "already used")
}

func TestAccess_NoReplayGuardConfigured(t *testing.T) {
	h := NewHandler(NewVerifier(testSecret, 30*time.Second), nil)
	tok := mintToken(t, testSecret, nil)

	rr := postForm(h, tok)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = postForm(h, tok)
	assert.Equal(t, http.StatusOK, rr.Code, "without a guard, replays pass signature checks")
}
