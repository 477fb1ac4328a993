package handler

import (
	"fmt"
	"net/http"
	"time"

	"coachdesk-backend/pkg/access"
	"coachdesk-backend/pkg/config"
	"coachdesk-backend/pkg/database"
	"coachdesk-backend/pkg/handlers"
	"coachdesk-backend/pkg/logging"
	customMiddleware "coachdesk-backend/pkg/middleware"
	"coachdesk-backend/pkg/moderation"
	"coachdesk-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler is the serverless function entry point. All API endpoints are
// served by a single Chi router so the platform only has one function to
// keep warm.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()

	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	log := logging.Setup(cfg.LogLevel, cfg.IsProduction())

	db, err := database.GetDatabase(database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		UseMemoryDB: cfg.UseMemoryDB,
		Debug:       cfg.Debug,
	})
	if err != nil {
		log.WithError(err).Error("database unavailable")
		utils.WriteInternalServerErrorResponse(w, "Database unavailable")
		return
	}
	// Connection lifetime is managed by the pool, not per request

	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db)

	router.ServeHTTP(w, r)
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger())
	router.Use(customMiddleware.Recovery(cfg))

	router.Use(customMiddleware.CORS(cfg))

	// Serverless functions are time-limited; keep a buffer under the cap
	router.Use(middleware.Timeout(25 * time.Second))

	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	resolver := access.NewResolver(db, logging.L())
	modService := moderation.NewService(db, resolver, logging.L())

	authHandler := handlers.NewAuthHandler(cfg, db)
	studentsHandler := handlers.NewStudentsHandler(cfg, db, resolver)
	messagesHandler := handlers.NewMessagesHandler(cfg, db, resolver, modService)
	moderationHandler := handlers.NewModerationHandler(cfg, db, resolver, modService)
	sharesHandler := handlers.NewSharesHandler(cfg, db, resolver)

	router.Get("/", authHandler.HealthCheck)

	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, database.GetConnectionStats())
		})
	}

	router.Route("/api", func(r chi.Router) {
		// Public routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/refresh", authHandler.RefreshToken)
		})
		r.Get("/health", authHandler.HealthCheck)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))
			r.Use(customMiddleware.ContentTypeJSON)
			r.Use(customMiddleware.MaxBodySize(1 << 20))

			r.Route("/students", func(r chi.Router) {
				r.Get("/", studentsHandler.ListStudents) // expects ?workspace_id=
				r.Get("/{id}", studentsHandler.GetStudent)
				r.Put("/{id}", studentsHandler.UpdateStudent)
			})

			r.Route("/threads", func(r chi.Router) {
				r.Post("/", messagesHandler.CreateThread)
				r.Get("/{id}/messages", messagesHandler.ListMessages)
				r.Post("/{id}/messages", messagesHandler.SendMessage)
				r.Get("/{id}/reports", moderationHandler.ListThreadReports)
			})

			r.Route("/shares", func(r chi.Router) {
				r.Post("/", sharesHandler.CreateShare)
				r.Post("/claim", sharesHandler.ClaimShare)
				r.Delete("/{token}", sharesHandler.RevokeShare)
			})

			r.Route("/moderation", func(r chi.Router) {
				r.Post("/suspensions", moderationHandler.Suspend)
				r.Delete("/suspensions", moderationHandler.Lift)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Post("/", moderationHandler.FileReport)
				r.Put("/{id}", moderationHandler.TriageReport)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), nil)
	})
}
