package router

import (
	"net/http"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/handler"
	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		CORSOrigins:       []string{"*"},
		RateLimitRequests: 120,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    30 * time.Second,
	}
}

func Setup(h *handler.Handler, opts Options) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", handler.SessionHeader},
		ExposedHeaders: []string{handler.SessionHeader},
		MaxAge:         86400,
	}))

	r.Get("/health", healthCheck)
	r.Handle("/metrics", promhttp.Handler())

	// Routes
	r.Group(func(r chi.Router) {
		if opts.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimitRequests, opts.RateLimitWindow))
		}
		r.Use(handler.Session)

		r.Get("/content", h.GetContent)
		r.Get("/actors", h.SearchActors)
		r.Get("/stats", h.GetStats)

		r.Route("/roulette", func(r chi.Router) {
			r.Post("/draw", h.Draw)
			r.Post("/reset", h.Reset)
			r.Get("/state", h.State)
		})

		r.Route("/library", func(r chi.Router) {
			r.Get("/", h.GetLibrary)
			r.Post("/favorites", h.ToggleFavorite)
			r.Post("/watched", h.ToggleWatched)
			r.Post("/history", h.OpenExternal)
			r.Put("/ratings/{id}", h.Rate)
			r.Put("/muted", h.SetMuted)
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// one zerolog line per request
func accessLog(next http.Handler) http.Handler {
	log := logging.Component("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
