package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/bracket-picks/cache"
	"github.com/Dosada05/bracket-picks/config"
	"github.com/Dosada05/bracket-picks/db"
	"github.com/Dosada05/bracket-picks/repositories"
	"github.com/Dosada05/bracket-picks/services"
)

// backfill чинит турниры, импортированные с уже сыгранными матчами:
// продвигает победителей по сетке и при необходимости пересчитывает очки.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "advance":
		err = run(ctx, os.Args[2:], false)
	case "recalculate":
		err = run(ctx, os.Args[2:], true)
	default:
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("backfill failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("backfill commands:")
	fmt.Println("  advance     -tournament <id>   write every finalized winner into its next-round slot")
	fmt.Println("  recalculate -tournament <id>   advance, then rescore every round with its current rule")
}

func run(ctx context.Context, args []string, recalculate bool) error {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	tournamentID := fs.Int("tournament", 0, "tournament id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tournamentID <= 0 {
		return errors.New("-tournament must be a positive id")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	tx := repositories.NewTransactor(dbConn, logger)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	pickRepo := repositories.NewPostgresPickRepository(dbConn)
	streakRepo := repositories.NewPostgresStreakRepository(dbConn)

	// Пересчёт сбрасывает кэш лидербордов, если он настроен.
	var leaderboardCache services.LeaderboardCache
	if cfg.CacheEnabled() {
		redisCache, err := cache.NewRedisCache(ctx, cache.Options{
			RedisURL: cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Warn("leaderboard cache unavailable, cached leaderboards expire by TTL", slog.Any("error", err))
		} else {
			leaderboardCache = redisCache
			defer redisCache.Close()
		}
	}

	// WebSocket-хаба в CLI нет, события не публикуются.
	bracketService := services.NewBracketService(tx, tournamentRepo, roundRepo, matchRepo, nil, logger)

	report, err := bracketService.BackfillAdvancement(ctx, *tournamentID)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}
	if !recalculate {
		return nil
	}

	matchService := services.NewMatchService(tx, tournamentRepo, roundRepo, matchRepo, pickRepo, streakRepo, bracketService, leaderboardCache, nil, logger)
	recalc, err := matchService.RecalculateTournament(ctx, *tournamentID)
	if recalc != nil {
		printReport(recalc)
	}
	return err
}

func printReport(report interface{}) {
	js, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(js))
}
