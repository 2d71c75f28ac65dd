/*
auth.go - Static API-key middleware

PURPOSE:
  Every route is gated on a shared key supplied in the access_token
  header. This is request identification, not an identity system:
  pass/fail against one configured value, matching the shop's deployment
  model of a single trusted caller.

CONFIGURATION:
  The key comes from the -api-key flag. An empty key disables the check,
  which is the development default.
*/
package api

import (
	"crypto/subtle"
	"net/http"
)

// HeaderAPIKey is the request header carrying the shared key.
const HeaderAPIKey = "access_token"

// APIKeyAuth rejects requests whose access_token header does not match
// the configured key. A blank configured key disables authentication.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" {
				got := r.Header.Get(HeaderAPIKey)
				if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
					writeError(w, http.StatusUnauthorized, "Invalid or missing API key", nil)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
