package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/server/identity"

	"golang.org/x/crypto/bcrypt"
)

type ctxKey string

const identityKey ctxKey = "identity"

// identityFromContext returns the verified identity, or nil when the
// request was anonymous or its token failed verification. The two cases are
// indistinguishable on purpose.
func identityFromContext(ctx context.Context) *identity.Identity {
	id, _ := ctx.Value(identityKey).(*identity.Identity)
	return id
}

// identityAuth extracts and verifies the identity bearer token. It never
// rejects the request itself: a missing or bad token just leaves the
// identity nil and each handler decides what anonymity means for it.
func (s *Server) identityAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get(common.IdentityTokenHeaderName)
		if strings.HasPrefix(auth, "Bearer ") {
			if id, err := s.verifier.Verify(strings.TrimPrefix(auth, "Bearer ")); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), identityKey, id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// operatorAuth guards the ops surface with the operator API key.
func (s *Server) operatorAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(common.OperatorKeyHeaderName)
		if key == "" || bcrypt.CompareHashAndPassword([]byte(s.operatorKeyHash), []byte(key)) != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "operator key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeaders sets conservative defaults on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// cors allows the configured site origin only.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin == s.siteOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Operator-Key")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogging logs method, path, and latency for every request.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info(r.Context(), "request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}
