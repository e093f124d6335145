package obs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StatusRecorder wraps a ResponseWriter, remembering the status code.
type StatusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

func (r *StatusRecorder) Status() int { return r.status }

// RoutePatternMiddleware records the matched chi pattern into the request
// context after routing so metrics can label by pattern, not raw path.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pattern := ""
		if rctx != nil {
			pattern = rctx.RoutePattern()
		}
		next.ServeHTTP(w, r.WithContext(WithRoutePattern(r.Context(), pattern)))
	})
}

// HTTPObs measures every request against the shared HTTP metrics.
func HTTPObs(m *HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			m.InFlight.Inc()
			defer m.InFlight.Dec()

			start := time.Now()
			recorder := NewStatusRecorder(w)
			next.ServeHTTP(recorder, r)

			route := RoutePattern(r.Context())
			if route == "" {
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					route = rctx.RoutePattern()
				}
			}
			if route == "" {
				route = r.URL.Path
			}
			status := fmt.Sprintf("%d", recorder.Status())
			m.ReqTotal.WithLabelValues(r.Method, route, status).Inc()
			m.ReqDur.WithLabelValues(r.Method, route, status).Observe(DurationMillis(time.Since(start)))
		})
	}
}

// TracingMiddleware opens a server span per request named after the route.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		ctx, span := tracer.Start(r.Context(), fmt.Sprintf("%s %s", r.Method, route))
		recorder := NewStatusRecorder(w)
		next.ServeHTTP(recorder, r.WithContext(ctx))

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.Int("http.status_code", recorder.Status()),
		)
		if recorder.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.Status()))
		}
		span.End()
	})
}
