// Package game holds the round state of the two sorting mini-games. Scoring
// is done by the AI service; this package only enforces the flow of a round
// and shapes what is submitted.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greencycle/greencycle/internal/ai"
	"github.com/greencycle/greencycle/internal/model"
)

var (
	ErrWrongPhase       = errors.New("action not allowed in this phase")
	ErrTimeUp           = errors.New("time is up")
	ErrNoTrash          = errors.New("no trash detected in image")
	ErrNoImages         = errors.New("game has no images")
	ErrAlreadySubmitted = errors.New("round already submitted")
	ErrNothingDropped   = errors.New("no images were sorted")
	ErrUnknownImage     = errors.New("image is not pending")
	ErrInvalidBin       = errors.New("unknown bin")
)

// Phase is a step in a round.
type Phase string

const (
	PhaseChoosing   Phase = "choosing"
	PhaseCountdown  Phase = "countdown"
	PhasePlaying    Phase = "playing"
	PhaseConfirming Phase = "confirming"
	PhaseEnded      Phase = "ended"
	PhaseSubmitted  Phase = "submitted"
)

// Difficulty selects the round length or size.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty accepts a difficulty name, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case Easy, Medium, Hard:
		return d, nil
	default:
		return "", fmt.Errorf("%w: difficulty must be easy, medium or hard", model.ErrInvalidInput)
	}
}

// SpotDuration is the time allowed in spot-the-trash.
func (d Difficulty) SpotDuration() time.Duration {
	switch d {
	case Hard:
		return 30 * time.Second
	case Medium:
		return 45 * time.Second
	default:
		return 60 * time.Second
	}
}

// SortImageCount is the number of images dealt in drag-to-bins.
func (d Difficulty) SortImageCount() int {
	switch d {
	case Hard:
		return 12
	case Medium:
		return 8
	default:
		return 4
	}
}

// Scorer is the AI service as seen by the games.
type Scorer interface {
	SubmitGame1(ctx context.Context, req ai.Game1Request) (*model.Game1Result, error)
	SubmitGame2(ctx context.Context, items []model.SortedItem) (*model.Game2Result, error)
}

// Clock returns the current time.
type Clock func() time.Time

func remaining(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
