// bracket-picks/brackets/bracket.go
package brackets

import (
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-picks/models"
)

// Slot is the position a winner takes in the next round's match (1 or 2, as winner_to_slot).
type Slot int

const (
	SlotPlayer1 Slot = 1
	SlotPlayer2 Slot = 2
)

func (s Slot) String() string {
	switch s {
	case SlotPlayer1:
		return "player1"
	case SlotPlayer2:
		return "player2"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

var (
	ErrMatchCountNotPowerOfTwo = errors.New("round match count must be a power of two")
	ErrMatchNumberOutOfRange   = errors.New("match number out of range for round")
)

// Destination says where the winner of a match goes.
type Destination struct {
	MatchNumber int
	Slot        Slot
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextMatch maps match m of a round to its match in the next round: ceil(m/2),
// player1 for odd m and player2 for even m.
func NextMatch(matchNumber int) (int, Slot) {
	dest := (matchNumber + 1) / 2
	if matchNumber%2 == 1 {
		return dest, SlotPlayer1
	}
	return dest, SlotPlayer2
}

// DestinationOf returns the next-round slot for match m in a round of n matches.
// ok is false for the Final (n == 1), which has no successor.
func DestinationOf(roundMatchCount, matchNumber int) (dest Destination, ok bool, err error) {
	if !IsPowerOfTwo(roundMatchCount) {
		return Destination{}, false, fmt.Errorf("%w: got %d", ErrMatchCountNotPowerOfTwo, roundMatchCount)
	}
	if matchNumber < 1 || matchNumber > roundMatchCount {
		return Destination{}, false, fmt.Errorf("%w: match %d, round has %d matches", ErrMatchNumberOutOfRange, matchNumber, roundMatchCount)
	}
	if roundMatchCount == 1 {
		return Destination{}, false, nil
	}
	m, slot := NextMatch(matchNumber)
	return Destination{MatchNumber: m, Slot: slot}, true, nil
}

// RoundCount returns how many rounds a bracket has when its first round has n matches.
func RoundCount(firstRoundMatches int) int {
	rounds := 0
	for n := firstRoundMatches; n >= 1; n /= 2 {
		rounds++
	}
	return rounds
}

// MatchUID keeps the R{round}M{match} naming the bracket generator always used.
func MatchUID(roundNumber, matchNumber int) string {
	return fmt.Sprintf("R%dM%d", roundNumber, matchNumber)
}

// Advancement is the write a finalized match makes into its destination.
type Advancement struct {
	MatchNumber int
	Slot        Slot
	PlayerName  string
	PlayerSeed  *int
}

// AdvancementFor computes the destination write for a finalized match of a round with
// roundMatchCount matches. ok is false when the match is in the Final.
func AdvancementFor(match *models.Match, roundMatchCount int) (Advancement, bool, error) {
	if !match.IsFinalized() || match.WinnerName == nil {
		return Advancement{}, false, fmt.Errorf("match %d is not finalized", match.ID)
	}
	dest, ok, err := DestinationOf(roundMatchCount, match.MatchNumber)
	if err != nil || !ok {
		return Advancement{}, false, err
	}
	return Advancement{
		MatchNumber: dest.MatchNumber,
		Slot:        dest.Slot,
		PlayerName:  *match.WinnerName,
		PlayerSeed:  copyInt(match.SeedOf(*match.WinnerName)),
	}, true, nil
}

// ApplyAdvancement writes adv into dest's slot and leaves the other slot untouched.
// Applying the same advancement again leaves dest unchanged. It reports whether dest changed.
func ApplyAdvancement(dest *models.Match, adv Advancement) bool {
	name := adv.PlayerName
	switch adv.Slot {
	case SlotPlayer1:
		changed := !sameString(dest.Player1Name, &name) || !sameInt(dest.Player1Seed, adv.PlayerSeed)
		dest.Player1Name = &name
		dest.Player1Seed = copyInt(adv.PlayerSeed)
		return changed
	case SlotPlayer2:
		changed := !sameString(dest.Player2Name, &name) || !sameInt(dest.Player2Seed, adv.PlayerSeed)
		dest.Player2Name = &name
		dest.Player2Seed = copyInt(adv.PlayerSeed)
		return changed
	}
	return false
}

// SlotOccupant returns the name currently in a slot.
func SlotOccupant(m *models.Match, slot Slot) *string {
	if slot == SlotPlayer1 {
		return m.Player1Name
	}
	return m.Player2Name
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
