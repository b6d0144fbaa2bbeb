// Package metadata assembles the client-facing tool description:
// configured tool URLs plus the quota definition catalog reshaped into
// its public form.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/toolgrid/quotad/internal/api"
	"github.com/toolgrid/quotad/internal/quota"
)

var (
	toolTitle = map[string]string{
		"en": "AI Toolbox",
		"de": "KI-Werkzeugkasten",
	}
	toolDescription = map[string]string{
		"en": "This is an AI tool",
		"de": "Dies ist ein KI-Werkzeug",
	}
)

// DefinitionLister is the slice of the quota store the publisher needs.
type DefinitionLister interface {
	ListDefinitions(ctx context.Context) ([]*quota.Definition, error)
}

// Metadata is the public tool description payload.
type Metadata struct {
	ToolURL         string              `json:"tool_url"`
	QuotaURL        string              `json:"quota_url"`
	ImageURL        string              `json:"image_url"`
	Description     map[string]string   `json:"description"`
	Title           map[string]string   `json:"title"`
	SupportedQuotas []*quota.Definition `json:"supported_quotas"`
}

type Publisher struct {
	baseURL string
	store   DefinitionLister
}

// NewPublisher creates a Publisher. An empty baseURL is tolerated:
// metadata is still served, just with empty URL fields.
func NewPublisher(baseURL string, store DefinitionLister) *Publisher {
	return &Publisher{baseURL: strings.TrimRight(baseURL, "/"), store: store}
}

func (p *Publisher) Describe(ctx context.Context) (*Metadata, error) {
	defs, err := p.store.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("describing tool metadata: %w", err)
	}
	if defs == nil {
		defs = []*quota.Definition{}
	}

	md := &Metadata{
		Description:     toolDescription,
		Title:           toolTitle,
		SupportedQuotas: defs,
	}
	if p.baseURL != "" {
		md.ToolURL = p.baseURL
		md.QuotaURL = p.baseURL + "/quota"
		md.ImageURL = p.baseURL + "/image.png"
	}
	return md, nil
}

type Handler struct {
	publisher *Publisher
}

func NewHandler(publisher *Publisher) *Handler {
	return &Handler{publisher: publisher}
}

// Get handles GET /metadata.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	md, err := h.publisher.Describe(r.Context())
	if err != nil {
		slog.Error("publishing metadata", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, md)
}
