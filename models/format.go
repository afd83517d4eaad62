package models

import "fmt"

// TournamentFormat определяет количество сетов в матче.
type TournamentFormat string

const (
	FormatBestOf3 TournamentFormat = "best_of_3"
	FormatBestOf5 TournamentFormat = "best_of_5"
)

// SetsToWin returns the number of sets the winner of a completed match holds.
func (f TournamentFormat) SetsToWin() int {
	switch f {
	case FormatBestOf3:
		return 2
	case FormatBestOf5:
		return 3
	default:
		return 0
	}
}

func (f TournamentFormat) IsValid() bool {
	return f.SetsToWin() > 0
}

// ParseTournamentFormat accepts the stored value as well as the short "bo3"/"bo5" forms.
func ParseTournamentFormat(s string) (TournamentFormat, error) {
	switch s {
	case string(FormatBestOf3), "bo3", "3":
		return FormatBestOf3, nil
	case string(FormatBestOf5), "bo5", "5":
		return FormatBestOf5, nil
	default:
		return "", fmt.Errorf("unknown tournament format %q", s)
	}
}
