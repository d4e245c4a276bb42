// Package shield provides the HTTP middleware applied to every simwatch
// route: security headers, HEAD handling, body limits, per-request trace
// logging, and per-IP rate limiting.
package shield

import "net/http"

// DefaultStack returns the standard middleware chain, ordered
// HeadToGet, SecurityHeaders, MaxBody, TraceID. Rate limiting is separate
// because it needs configuration; see NewRateLimiter.
func DefaultStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(64 * 1024),
		TraceID,
	}
}

// HeadToGet converts HEAD requests to GET so that handlers registered with
// r.Get() respond 200 instead of 405. net/http strips the body for HEAD.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBody returns middleware that caps the request body size. The API only
// accepts small JSON bodies, so the cap applies to every method with a body.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength != 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
