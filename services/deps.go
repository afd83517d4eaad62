package services

import (
	"context"
	"time"

	"github.com/Dosada05/bracket-picks/models"
)

// EventPublisher pushes a typed message to everyone watching a tournament.
// It is called only after the transaction has committed.
type EventPublisher interface {
	PublishTournamentEvent(tournamentID int, eventType string, payload interface{})
}

// LeaderboardCache stores serialized leaderboards. A miss is (nil, false, nil).
type LeaderboardCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// DrawArchiver keeps a copy of every committed draw and returns where it went.
type DrawArchiver interface {
	ArchiveDraw(ctx context.Context, tournamentID int, draw models.ParsedDraw) (string, error)
}

type noopPublisher struct{}

func (noopPublisher) PublishTournamentEvent(int, string, interface{}) {}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopCache) DeleteByPrefix(context.Context, string) error { return nil }
