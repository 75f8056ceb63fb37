package httpadapter

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"civicwatch/internal/audit"
	"civicwatch/internal/auth"
	"civicwatch/internal/domain"
)

// authenticate verifies the bearer token and stores the identity on the context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, r, s.log, domain.Unauthenticated("authenticate", errMissingToken))
			return
		}
		userID, role, err := s.verifier.Verify(token)
		if err != nil {
			s.log.Debug("token rejected", "error", err)
			writeError(w, r, s.log, domain.Unauthenticated("authenticate", errInvalidToken))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), userID, role)))
	})
}

// clientIP records the caller address for audit entries. It runs after
// middleware.RealIP so proxy headers are already applied.
func (s *Server) clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(audit.WithClientIP(r.Context(), ip)))
	})
}

// instrument counts requests by route pattern and logs them.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, r.Method, status)
		s.log.Debug("request", "method", r.Method, "route", route, "status", status,
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}
