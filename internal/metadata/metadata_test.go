package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolgrid/quotad/internal/quota"
)

type fakeLister struct {
	defs []*quota.Definition
	err  error
}

func (f *fakeLister) ListDefinitions(ctx context.Context) ([]*quota.Definition, error) {
	return f.defs, f.err
}

func strp(s string) *string { return &s }

func TestDescribe_DerivesURLs(t *testing.T) {
	monthly := quota.ResetMonthly
	lister := &fakeLister{defs: []*quota.Definition{
		{ID: 1, Type: "token", Description: map[string]string{"en": "Token quota"}, ResetInterval: &monthly, Scope: quota.ScopeTotal},
		{ID: 2, Type: "token", Scope: quota.ScopeUser, Feature: strp("gpt-3")},
	}}
	p := NewPublisher("https://tool.example.com/", lister)

	md, err := p.Describe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://tool.example.com", md.ToolURL)
	assert.Equal(t, "https://tool.example.com/quota", md.QuotaURL)
	assert.Equal(t, "https://tool.example.com/image.png", md.ImageURL)
	assert.Len(t, md.SupportedQuotas, 2)
	assert.NotEmpty(t, md.Title["en"])
	assert.NotEmpty(t, md.Description["en"])
}

func TestDescribe_MissingBaseURLIsEmptyFieldsNotError(t *testing.T) {
	p := NewPublisher("", &fakeLister{})

	md, err := p.Describe(context.Background())
	require.NoError(t, err)

	assert.Empty(t, md.ToolURL)
	assert.Empty(t, md.QuotaURL)
	assert.Empty(t, md.ImageURL)
	assert.NotNil(t, md.SupportedQuotas)
}

func TestHandlerGet_OmitsInternalIDs(t *testing.T) {
	lister := &fakeLister{defs: []*quota.Definition{
		{ID: 42, Type: "token", Scope: quota.ScopeUser},
	}}
	h := NewHandler(NewPublisher("https://tool.example.com", lister))

	req := httptest.NewRequest(http.MethodGet, "/metadata", nil)
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	quotas, ok := payload["supported_quotas"].([]any)
	require.True(t, ok)
	require.Len(t, quotas, 1)
	entry := quotas[0].(map[string]any)
	assert.NotContains(t, entry, "id")
	assert.Equal(t, "token", entry["type"])
	assert.Equal(t, "user", entry["scope"])
}

func TestHandlerGet_StoreErrorIs500(t *testing.T) {
	h := NewHandler(NewPublisher("https://tool.example.com", &fakeLister{err: errors.New("boom")}))

	req := httptest.NewRequest(http.MethodGet, "/metadata", nil)
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "boom", "storage detail must not leak")
}
