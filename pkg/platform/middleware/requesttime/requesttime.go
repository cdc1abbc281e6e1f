// Package requesttime pins a single observation of the clock per request so
// every timestamp written during one operation agrees.
package requesttime

import (
	"net/http"
	"time"

	"linkforge/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
