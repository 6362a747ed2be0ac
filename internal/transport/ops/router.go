package ops

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const checkTimeout = 2 * time.Second

// Check is one readiness dependency, such as the database or Redis.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readiness struct {
	Status string        `json:"status"`
	Checks []checkResult `json:"checks"`
}

// NewRouter serves /healthz (process liveness) and /readyz (dependency pings).
// rateLimit caps requests per second per client IP; zero disables it.
func NewRouter(checks []Check, rateLimit int, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "ops"))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if rateLimit > 0 {
		r.Use(httprate.LimitByIP(rateLimit, time.Second))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		body := readiness{Status: "ok", Checks: make([]checkResult, 0, len(checks))}
		code := http.StatusOK
		for _, c := range checks {
			res := checkResult{Name: c.Name, Status: "ok"}
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := c.Ping(ctx)
			cancel()
			if err != nil {
				log.Warn("readiness check failed", slog.String("check", c.Name), slog.Any("err", err))
				res.Status = "unavailable"
				res.Error = err.Error()
				body.Status = "unavailable"
				code = http.StatusServiceUnavailable
			}
			body.Checks = append(body.Checks, res)
		}
		writeJSON(w, code, body)
	})

	return otelhttp.NewHandler(r, "ops")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
