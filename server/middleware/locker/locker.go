/*Package locker is an HTTP middleware enforcing the read-only boundary
of irpcd's diagnostics sidecar: the sidecar may report server state but
must never be able to trigger a USB operation (spec.md §9 supplemented
features). It keeps the teacher repository's boolean-gate Locker shape,
repurposed from a manually toggled lock to a permanent method check.
*/
package locker

import "net/http"

// Locker rejects any request whose method is not GET or HEAD, the same
// "gate that can bounce a request" shape as the teacher's lock, applied
// here as a standing property of the diagnostics sidecar rather than
// something an operator flips at runtime.
type Locker struct{}

// New returns a Locker.
func New() *Locker {
	return &Locker{}
}

// Check is an HTTP middleware that returns 405 for any mutating method,
// otherwise passes the request down the chain.
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			next.ServeHTTP(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}
