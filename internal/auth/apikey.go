// Package auth guards the administrative API with a static key. Tool
// launches use a signed token instead; see the launch package.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/toolgrid/quotad/internal/api"
)

// APIKey returns middleware requiring the Authorization header to
// equal "Bearer <secret>". Anything else is a 403; there is no
// challenge flow for a machine-to-machine key.
func APIKey(secret string) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if secret == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
				api.HandleError(w, api.ErrInvalidAPIKey)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
