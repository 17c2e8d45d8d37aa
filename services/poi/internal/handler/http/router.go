package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/PoiCatalog/pkg/health"
	"github.com/utafrali/PoiCatalog/pkg/middleware"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
	"github.com/utafrali/PoiCatalog/services/poi/internal/event"
)

// RouterConfig carries everything the router serves.
type RouterConfig struct {
	Pois          PoiService
	Reviews       ReviewService
	Batch         BatchRunner
	Hub           *event.Hub
	Health        *health.Handler
	Tokens        middleware.TokenValidator
	ReviewLimiter *middleware.Limiter
	CORS          CORSConfig
}

// NewRouter creates a chi router with all poi service routes registered.
func NewRouter(cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("poi"))
	r.Use(middleware.PrometheusMetrics("poi"))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	pois := NewPoiHandler(cfg.Pois, logger)
	reviews := NewReviewHandler(cfg.Reviews, logger)
	stream := NewStreamHandler(cfg.Hub, logger)
	admin := NewAdminHandler(cfg.Batch, logger)

	authenticated := middleware.Auth(cfg.Tokens)
	moderator := middleware.RequireRole(middleware.RoleModerator, middleware.RoleAdmin)
	reviewLimit := middleware.RateLimit(cfg.ReviewLimiter, logger)
	requestLogger := middleware.RequestLogger(logger)

	r.Route("/api/v1/pois", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.Tokens))
			r.Use(requestLogger)

			r.Get("/", pois.ListPois)
			r.Get("/popular", pois.ListPopular)
			r.Get("/events", stream.Stream)
			r.Get("/{id}", pois.GetPoi)
			r.Get("/{id}/reviews", reviews.ListReviews(domain.TargetPoi))
		})

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(authenticated)
			r.Use(requestLogger)

			r.Post("/", pois.CreatePoi)
			r.Patch("/{id}", pois.UpdatePoi)
			r.With(reviewLimit).Post("/{id}/reviews", reviews.CreateReview(domain.TargetPoi))

			r.Group(func(r chi.Router) {
				r.Use(moderator)

				r.Delete("/{id}", pois.DeletePoi)
				r.Post("/{id}/activate", pois.ActivatePoi)
				r.Post("/{id}/deactivate", pois.DeactivatePoi)
				r.Post("/{id}/approve", pois.ApprovePoi)
				r.Post("/{id}/reject", pois.RejectPoi)
			})
		})
	})

	// Blog and podcast reviews are stored and listed; they never touch Poi
	// scores.
	for prefix, kind := range map[string]domain.TargetKind{
		"/api/v1/blogs":    domain.TargetBlog,
		"/api/v1/podcasts": domain.TargetPodcast,
	} {
		r.Route(prefix+"/{id}/reviews", func(r chi.Router) {
			r.With(requestLogger).Get("/", reviews.ListReviews(kind))
			r.With(ContentTypeJSON, authenticated, requestLogger, reviewLimit).Post("/", reviews.CreateReview(kind))
		})
	}

	r.Route("/api/v1/reviews/{reviewId}", func(r chi.Router) {
		r.With(requestLogger).Get("/", reviews.GetReview)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(authenticated)
			r.Use(requestLogger)

			r.Patch("/", reviews.UpdateReview)
			r.Delete("/", reviews.DeleteReview)
			r.Post("/like", reviews.React(domain.ReactionLike))
			r.Post("/dislike", reviews.React(domain.ReactionDislike))
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(authenticated)
		r.Use(moderator)
		r.Use(requestLogger)

		r.Post("/scores/recompute", admin.RecomputeScores)
	})

	return r
}
