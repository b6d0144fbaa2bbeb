package quota

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/toolgrid/quotad/internal/api"
)

// UpdateRequest is the client-facing shape of one quota update. The
// course and user identity always come from the route, never from the
// body.
type UpdateRequest struct {
	Limit   *int    `json:"limit" validate:"required,gte=0"`
	Scope   string  `json:"scope" validate:"required"`
	Feature *string `json:"feature,omitempty"`
}

// RecordResponse is the public shape of a quota record. The owning
// course is implied by the endpoint and internal ids stay internal.
type RecordResponse struct {
	Limit   int     `json:"limit"`
	Used    int     `json:"used"`
	Type    *string `json:"type"`
	Scope   Scope   `json:"scope"`
	Feature *string `json:"feature,omitempty"`
	UserID  *string `json:"user_id,omitempty"`
}

func toResponse(rec *Record) RecordResponse {
	return RecordResponse{
		Limit:   rec.Limit,
		Used:    rec.Used,
		Type:    rec.Type,
		Scope:   rec.Scope,
		Feature: rec.Feature,
		UserID:  rec.UserID,
	}
}

func toResponses(recs []*Record) []RecordResponse {
	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toResponse(rec))
	}
	return out
}

type Handler struct {
	resolver *Resolver
	engine   *Engine
	validate *validator.Validate
}

func NewHandler(resolver *Resolver, engine *Engine) *Handler {
	return &Handler{
		resolver: resolver,
		engine:   engine,
		validate: validator.New(),
	}
}

// ListGlobal handles GET /quota.
func (h *Handler) ListGlobal(w http.ResponseWriter, r *http.Request) {
	recs, err := h.resolver.ResolveGlobal(r.Context())
	if err != nil {
		slog.Error("listing global quotas", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, toResponses(recs))
}

// UpsertGlobal handles PUT /quota with a batch of updates. The whole
// batch commits or rolls back together.
func (h *Handler) UpsertGlobal(w http.ResponseWriter, r *http.Request) {
	upds, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}

	recs, err := h.engine.ApplyBatch(r.Context(), GlobalScopes, UpdateContext{}, upds)
	if err != nil {
		h.handleUpsertError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, toResponses(recs))
}

// ListCourse handles GET /quota/course/{courseID}. The optional
// with_user_quotas flag unions per-member overrides into the answer.
func (h *Handler) ListCourse(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	withMembers := r.URL.Query().Get("with_user_quotas") == "true"

	recs, err := h.resolver.ResolveCourse(r.Context(), courseID, withMembers)
	if err != nil {
		slog.Error("listing course quotas", "course_id", courseID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, toResponses(recs))
}

// UpsertCourse handles PUT /quota/course/{courseID}.
func (h *Handler) UpsertCourse(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	upds, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}

	uctx := UpdateContext{CourseID: &courseID}
	recs, err := h.engine.ApplyBatch(r.Context(), CourseScopes, uctx, upds)
	if err != nil {
		h.handleUpsertError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, toResponses(recs))
}

// ListCourseMembers handles GET /quota/course/{courseID}/user. A course
// with no member overrides yields an empty array.
func (h *Handler) ListCourseMembers(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")

	recs, err := h.resolver.ResolveCourseMembers(r.Context(), courseID)
	if err != nil {
		slog.Error("listing course member quotas", "course_id", courseID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, toResponses(recs))
}

// GetCourseMember handles GET /quota/course/{courseID}/user/{userID}.
func (h *Handler) GetCourseMember(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	userID := chi.URLParam(r, "userID")

	rec, err := h.resolver.ResolveCourseMember(r.Context(), courseID, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			api.HandleError(w, api.NewNotFoundError("course user quota not found"))
			return
		}
		slog.Error("getting course member quota", "course_id", courseID, "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, toResponse(rec))
}

// UpsertCourseMember handles PUT /quota/course/{courseID}/user/{userID}
// with a single update.
func (h *Handler) UpsertCourseMember(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	userID := chi.URLParam(r, "userID")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewUnprocessableError(err.Error()))
		return
	}

	uctx := UpdateContext{CourseID: &courseID, UserID: &userID}
	rec, err := h.engine.Apply(r.Context(), MemberScopes, uctx, toUpdate(req))
	if err != nil {
		h.handleUpsertError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, toResponse(rec))
}

func (h *Handler) decodeBatch(w http.ResponseWriter, r *http.Request) ([]Update, bool) {
	var reqs []UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return nil, false
	}
	upds := make([]Update, 0, len(reqs))
	for _, req := range reqs {
		if err := h.validate.Struct(req); err != nil {
			api.HandleError(w, api.NewUnprocessableError(err.Error()))
			return nil, false
		}
		upds = append(upds, toUpdate(req))
	}
	return upds, true
}

func toUpdate(req UpdateRequest) Update {
	return Update{
		Limit:   *req.Limit,
		Scope:   Scope(req.Scope),
		Feature: req.Feature,
	}
}

func (h *Handler) handleUpsertError(w http.ResponseWriter, err error) {
	var scopeErr *InvalidScopeError
	if errors.As(err, &scopeErr) {
		api.HandleError(w, api.NewBadRequestError(scopeErr.Error()))
		return
	}
	var defErr *DefinitionNotFoundError
	if errors.As(err, &defErr) {
		api.HandleError(w, api.NewNotFoundError(defErr.Error()))
		return
	}
	slog.Error("applying quota update", "error", err)
	api.HandleError(w, api.ErrInternalServer)
}
