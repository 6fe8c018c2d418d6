package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const jsonTimeout = 15 * time.Second

func (h *Handler) Routes(m *Middleware, metricsHandler http.Handler, corsOrigins []string, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// chi rejects methods it does not know before routing. The post route
	// lists for those, so they are sent through the same chain here.
	postRoute := h.sessions.Middleware(
		chi.Chain(m.Compress, m.Timeout(jsonTimeout)).HandlerFunc(h.HandlePost),
	)
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/api/post" {
			postRoute.ServeHTTP(w, req)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.sessions.Middleware)

		// Live updates; hijacks the connection so it stays outside Compress and Timeout
		r.Get("/post/events", h.HandleEvents)

		r.Group(func(r chi.Router) {
			r.Use(m.Compress)
			r.Use(m.Timeout(jsonTimeout))

			// Every method; dispatch happens in the posts service
			r.HandleFunc("/post", h.HandlePost)

			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/user", h.User)
		})
	})

	return r
}
