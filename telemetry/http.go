package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TracingMiddleware extracts W3C trace context from incoming requests and
// opens a server span per request. Paths listed in excluded (health probes)
// are not traced. Without an initialized Provider the global no-op tracer is used.
func TracingMiddleware(serviceName string, excluded ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(excluded))
	for _, path := range excluded {
		skip[path] = true
	}

	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	}
	if len(skip) > 0 {
		opts = append(opts, otelhttp.WithFilter(func(r *http.Request) bool {
			return !skip[r.URL.Path]
		}))
	}

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName, opts...)
	}
}
