package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusDraft    TournamentStatus = "draft"
	StatusActive   TournamentStatus = "active"
	StatusArchived TournamentStatus = "archived"
)

// Tournament представляет турнир.
type Tournament struct {
	ID                 int              `json:"id" db:"id"`
	Name               string           `json:"name" db:"name"`
	Year               int              `json:"year" db:"year"`
	Format             TournamentFormat `json:"format" db:"format"`
	Status             TournamentStatus `json:"status" db:"status"`
	CurrentRoundNumber *int             `json:"current_round_number,omitempty" db:"current_round_number"`
	DeletedAt          *time.Time       `json:"-" db:"deleted_at"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Rounds []Round `json:"rounds,omitempty" db:"-"`
}

func (t *Tournament) IsDeleted() bool {
	return t.DeletedAt != nil
}
