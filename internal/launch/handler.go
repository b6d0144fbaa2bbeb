package launch

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/toolgrid/quotad/internal/api"
	"github.com/toolgrid/quotad/internal/metrics"
)

// AccessResponse is returned on a successful launch: the identity the
// token asserted, ready for the tool frontend.
type AccessResponse struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	CourseID string `json:"course_id,omitempty"`
	Role     string `json:"role,omitempty"`
}

type Handler struct {
	verifier *Verifier
	replay   *ReplayGuard
}

func NewHandler(verifier *Verifier, replay *ReplayGuard) *Handler {
	return &Handler{verifier: verifier, replay: replay}
}

// Access handles POST /access-tool. The launch token arrives either as
// a "token" form field (LTI-style form post) or as a bearer header.
func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	tokenStr := tokenFromRequest(r)
	if tokenStr == "" {
		metrics.LaunchValidationsTotal.WithLabelValues("missing").Inc()
		api.HandleError(w, api.NewForbiddenError("missing launch token"))
		return
	}

	claims, err := h.verifier.Verify(tokenStr)
	if err != nil {
		metrics.LaunchValidationsTotal.WithLabelValues("invalid").Inc()
		slog.Info("rejected launch token", "error", err)
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	if h.replay != nil {
		first, err := h.replay.FirstUse(r.Context(), tokenStr)
		if err != nil {
			// Redis being down should not lock every user out of the
			// tool; log and let the signature check carry the request.
			slog.Warn("launch replay guard unavailable, allowing launch", "error", err)
		} else if !first {
			metrics.LaunchValidationsTotal.WithLabelValues("replayed").Inc()
			api.HandleError(w, api.NewForbiddenError("launch token already used"))
			return
		}
	}

	metrics.LaunchValidationsTotal.WithLabelValues("ok").Inc()
	api.JSON(w, http.StatusOK, AccessResponse{
		UserID:   claims.Subject,
		Name:     claims.Name,
		CourseID: claims.Context,
		Role:     claims.ContextRole,
	})
}

func tokenFromRequest(r *http.Request) string {
	if err := r.ParseForm(); err == nil {
		if tok := r.PostFormValue("token"); tok != "" {
			return tok
		}
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
