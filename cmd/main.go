package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/bracket-picks/brackets"
	"github.com/Dosada05/bracket-picks/cache"
	"github.com/Dosada05/bracket-picks/config"
	"github.com/Dosada05/bracket-picks/db"
	"github.com/Dosada05/bracket-picks/handlers"
	"github.com/Dosada05/bracket-picks/repositories"
	api "github.com/Dosada05/bracket-picks/routes"
	"github.com/Dosada05/bracket-picks/services"
	"github.com/Dosada05/bracket-picks/storage"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if cfg.RunMigrations {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(migrateCtx, dbConn)
		cancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	// Кэш лидербордов (Redis). Без него сервис работает, просто считает каждый раз.
	var leaderboardCache services.LeaderboardCache
	if cfg.CacheEnabled() {
		redisCache, err := cache.NewRedisCache(context.Background(), cache.Options{
			RedisURL: cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Warn("leaderboard cache unavailable, continuing without it", slog.Any("error", err))
		} else {
			leaderboardCache = redisCache
			defer redisCache.Close()
			logger.Info("leaderboard cache connected", slog.Duration("ttl", cfg.LeaderboardCacheTTL))
		}
	}

	// Архив сеток в Cloudflare R2
	var drawArchiver services.DrawArchiver
	r2Config := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Config.IsComplete() {
		uploader, err := storage.NewCloudflareR2Uploader(context.Background(), r2Config)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		drawArchiver = storage.NewDrawArchive(uploader)
		logger.Info("draw archive enabled", slog.String("bucket", cfg.R2BucketName))
	} else {
		logger.Info("draw archive disabled, R2 is not configured")
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	defer wsHub.Stop()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	tx := repositories.NewTransactor(dbConn, logger)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	pickRepo := repositories.NewPostgresPickRepository(dbConn)
	streakRepo := repositories.NewPostgresStreakRepository(dbConn)
	leaderboardRepo := repositories.NewPostgresLeaderboardRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	bracketService := services.NewBracketService(tx, tournamentRepo, roundRepo, matchRepo, wsHub, logger)
	matchService := services.NewMatchService(
		tx,
		tournamentRepo,
		roundRepo,
		matchRepo,
		pickRepo,
		streakRepo,
		bracketService,
		leaderboardCache,
		wsHub,
		logger,
	)
	pickService := services.NewPickService(tx, tournamentRepo, roundRepo, matchRepo, pickRepo, leaderboardCache, logger)
	rankingService := services.NewRankingService(
		tournamentRepo,
		roundRepo,
		matchRepo,
		pickRepo,
		streakRepo,
		leaderboardRepo,
		leaderboardCache,
		cfg.LeaderboardCacheTTL,
		logger,
	)
	tournamentService := services.NewTournamentService(
		tx,
		tournamentRepo,
		roundRepo,
		matchRepo,
		pickRepo,
		streakRepo,
		drawArchiver,
		leaderboardCache,
		logger,
	)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, bracketService, matchService)
	matchHandler := handlers.NewMatchHandler(matchService)
	pickHandler := handlers.NewPickHandler(pickService)
	leaderboardHandler := handlers.NewLeaderboardHandler(rankingService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, bracketService, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{JWTSecret: cfg.JWTSecretKey, AllowedOrigins: cfg.CORSAllowedOrigins},
		tournamentHandler,
		matchHandler,
		pickHandler,
		leaderboardHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
