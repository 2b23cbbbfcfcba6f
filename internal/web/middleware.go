// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/labelhub/internal/observability"
)

const tracerName = "labelhub/web"

// Throttle limits requests per client with a token bucket.
type Throttle struct {
	limiter    ratelimit.RateLimiter
	trustProxy bool
}

// NewThrottle allows rate requests per second per client with the given burst.
func NewThrottle(rate, burst int, trustProxy bool) *Throttle {
	return &Throttle{
		limiter: ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    burst,
			Interval: time.Second,
		}),
		trustProxy: trustProxy,
	}
}

// Wrap throttles next under the bucket named scope.
func (t *Throttle) Wrap(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := scope + "|" + clientIP(r, t.trustProxy)
		if !t.limiter.Allow(r.Context(), key) {
			observability.RecordRejectedRequest(observability.ReasonThrottled)
			w.Header().Set("Retry-After", "1")
			writeMessage(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Close releases the limiter.
func (t *Throttle) Close() error {
	if err := t.limiter.Close(); err != nil {
		return oops.Code("THROTTLE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// OriginGuard rejects cross-origin state-changing requests. Requests without
// an Origin header are allowed.
type OriginGuard struct {
	allowed []glob.Glob
}

// NewOriginGuard compiles the allowed origin patterns, for example
// "https://*.example.com". '*' does not cross a '.'.
func NewOriginGuard(patterns []string) (*OriginGuard, error) {
	allowed := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, oops.Code("ORIGIN_PATTERN_INVALID").
				With("pattern", p).
				Wrap(err)
		}
		allowed = append(allowed, g)
	}
	return &OriginGuard{allowed: allowed}, nil
}

// Allowed reports whether origin may issue state-changing requests to host.
func (o *OriginGuard) Allowed(origin, host string) bool {
	if u, err := url.Parse(origin); err == nil && u.Host != "" && strings.EqualFold(u.Host, host) {
		return true
	}
	for _, g := range o.allowed {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// Wrap applies the origin check to next.
func (o *OriginGuard) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !isSafeMethod(r.Method) && !o.Allowed(origin, r.Host) {
			observability.RecordRejectedRequest(observability.ReasonOrigin)
			writeMessage(w, http.StatusForbidden, msgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	//nolint:wrapcheck // passthrough
	return s.ResponseWriter.Write(b)
}

// instrument runs next inside a server span and records request metrics.
func instrument(route string, metrics *observability.Metrics, logger *slog.Logger, next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		elapsed := time.Since(start)
		if metrics != nil {
			metrics.ObserveRequest(route, rec.status, elapsed)
		}
		logger.DebugContext(ctx, "request",
			"route", route,
			"status", rec.status,
			"duration", elapsed,
		)
	})
}

// clientIP returns the caller address. X-Forwarded-For is honoured only
// behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
