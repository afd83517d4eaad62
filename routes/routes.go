package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/bracket-picks/handlers"
	"github.com/Dosada05/bracket-picks/metrics"
	"github.com/Dosada05/bracket-picks/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	pickHandler *handlers.PickHandler,
	leaderboardHandler *handlers.LeaderboardHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(metrics.Instrument)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// WebSocket живёт вне /api/v1 и без таймаута запроса.
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		// Публичные маршруты
		r.Get("/tournaments", tournamentHandler.ListHandler)
		r.Get("/tournaments/{tournamentID}", tournamentHandler.GetBracketHandler)
		r.Get("/tournaments/{tournamentID}/leaderboard", leaderboardHandler.TournamentHandler)
		r.Get("/tournaments/{tournamentID}/progression", leaderboardHandler.ProgressionHandler)
		r.Get("/rounds/{roundID}/leaderboard", leaderboardHandler.RoundHandler)
		r.Get("/leaderboard", leaderboardHandler.GlobalHandler)
		r.Get("/users/{userID}/stats", leaderboardHandler.UserStatsHandler)
		r.Get("/users/{userID}/streak", leaderboardHandler.StreakHandler)

		// Прогнозы: только для вошедших пользователей
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/rounds/{roundID}/picks/{userID}", pickHandler.GetPicksHandler)
			r.Put("/rounds/{roundID}/picks/draft", pickHandler.SaveDraftHandler)
			r.Post("/rounds/{roundID}/picks/final", pickHandler.SubmitFinalHandler)
			r.Get("/tournaments/{tournamentID}/compare/{userID}", pickHandler.CompareHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireAdmin)

			r.Post("/draws", tournamentHandler.CommitDrawHandler)

			r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
				r.Put("/draw", tournamentHandler.ReplaceDrawHandler)
				r.Post("/rounds/{roundNumber}/activate", tournamentHandler.ActivateRoundHandler)
				r.Post("/archive", tournamentHandler.ArchiveHandler)
				r.Post("/backfill", tournamentHandler.BackfillHandler)
				r.Post("/recalculate", tournamentHandler.RecalculateHandler)
				r.Delete("/", tournamentHandler.DeleteHandler)
			})

			r.Post("/matches/{matchID}/finalize", matchHandler.FinalizeHandler)

			r.Route("/rounds/{roundID}", func(r chi.Router) {
				r.Post("/close-submissions", tournamentHandler.CloseSubmissionsHandler)
				r.Patch("/schedule", tournamentHandler.UpdateScheduleHandler)
				r.Put("/scoring-rule", matchHandler.UpdateScoringRuleHandler)
				r.Post("/recalculate", matchHandler.RecalculateRoundHandler)
			})
		})
	})
}
