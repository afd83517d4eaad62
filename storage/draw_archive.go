package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/bracket-picks/models"
)

// archivedDraw is the object written for every committed draw.
type archivedDraw struct {
	TournamentID int               `json:"tournament_id"`
	ArchivedAt   time.Time         `json:"archived_at"`
	Draw         models.ParsedDraw `json:"draw"`
}

// DrawArchive keeps the raw draws handed to CommitDraw/ReplaceDraw in object storage,
// one object per upload under draws/{tournament_id}/.
type DrawArchive struct {
	uploader FileUploader
	now      func() time.Time
	newID    func() string
}

func NewDrawArchive(uploader FileUploader) *DrawArchive {
	return &DrawArchive{
		uploader: uploader,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func drawKey(tournamentID int, id string) string {
	return fmt.Sprintf("draws/%d/%s.json", tournamentID, id)
}

func (a *DrawArchive) ArchiveDraw(ctx context.Context, tournamentID int, draw models.ParsedDraw) (string, error) {
	body, err := json.Marshal(archivedDraw{
		TournamentID: tournamentID,
		ArchivedAt:   a.now().UTC(),
		Draw:         draw,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode draw of tournament %d: %w", tournamentID, err)
	}

	res, err := a.uploader.Upload(ctx, drawKey(tournamentID, a.newID()), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return res.Key, nil
}
