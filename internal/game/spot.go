package game

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/greencycle/greencycle/internal/ai"
	"github.com/greencycle/greencycle/internal/model"
)

// SpotTheTrash is one round of game 1: the player is shown an image and a
// trash type, and must point at that trash before time runs out.
type SpotTheTrash struct {
	mu sync.Mutex

	image       string
	predictions []model.Prediction
	question    string
	clock       Clock

	phase    Phase
	deadline time.Time
	pending  *model.Selection
	result   *model.Game1Result
}

// NewSpotTheTrash runs the detection pass on image, a data URL, and draws
// the question from the distinct trash types found.
func NewSpotTheTrash(ctx context.Context, scorer Scorer, image string, rng *rand.Rand, clock Clock) (*SpotTheTrash, error) {
	if clock == nil {
		clock = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	detection, err := scorer.SubmitGame1(ctx, ai.Game1Request{Data: image})
	if err != nil {
		return nil, fmt.Errorf("detect trash: %w", err)
	}

	types := distinctTypes(detection.Predictions)
	if len(types) == 0 {
		return nil, ErrNoTrash
	}

	return &SpotTheTrash{
		image:       image,
		predictions: detection.Predictions,
		question:    types[rng.Intn(len(types))],
		clock:       clock,
		phase:       PhaseChoosing,
	}, nil
}

func distinctTypes(preds []model.Prediction) []string {
	seen := make(map[string]struct{}, len(preds))
	var out []string
	for _, p := range preds {
		if p.TrashType == "" {
			continue
		}
		if _, ok := seen[p.TrashType]; ok {
			continue
		}
		seen[p.TrashType] = struct{}{}
		out = append(out, p.TrashType)
	}
	sort.Strings(out)
	return out
}

// Question is the trash type the player must find.
func (g *SpotTheTrash) Question() string {
	return g.question
}

// Predictions returns what the detection pass found.
func (g *SpotTheTrash) Predictions() []model.Prediction {
	out := make([]model.Prediction, len(g.predictions))
	copy(out, g.predictions)
	return out
}

// Phase returns the current phase, ending the round if time ran out.
func (g *SpotTheTrash) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick()
	return g.phase
}

// Remaining is the time left to play.
func (g *SpotTheTrash) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhasePlaying && g.phase != PhaseConfirming {
		return 0
	}
	return remaining(g.deadline, g.clock())
}

// Start begins the round at the given difficulty.
func (g *SpotTheTrash) Start(d Difficulty) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseChoosing {
		return fmt.Errorf("%w: %s", ErrWrongPhase, g.phase)
	}
	g.deadline = g.clock().Add(d.SpotDuration())
	g.phase = PhasePlaying
	return nil
}

// Select records a pick at (x, y) on a stage of the given size and asks for
// confirmation. Only one pick is allowed per round.
func (g *SpotTheTrash) Select(x, y, width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: stage size must be positive", model.ErrInvalidInput)
	}
	if x < 0 || y < 0 || x > width || y > height {
		return fmt.Errorf("%w: selection outside the image", model.ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.require(PhasePlaying); err != nil {
		return err
	}
	g.pending = &model.Selection{XRatio: x / width, YRatio: y / height, TrashType: g.question}
	g.phase = PhaseConfirming
	return nil
}

// Pending returns the selection awaiting confirmation.
func (g *SpotTheTrash) Pending() (model.Selection, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return model.Selection{}, false
	}
	return *g.pending, true
}

// Cancel discards the pending selection and resumes play.
func (g *SpotTheTrash) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.require(PhaseConfirming); err != nil {
		return err
	}
	g.pending = nil
	g.phase = PhasePlaying
	return nil
}

// Confirm submits the pending selection for scoring. The timer stops as soon
// as the player confirms.
func (g *SpotTheTrash) Confirm(ctx context.Context, scorer Scorer) (*model.Game1Result, error) {
	g.mu.Lock()
	if err := g.require(PhaseConfirming); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	req := ai.Game1Request{
		Data:         g.image,
		QuestionType: g.question,
		Selections:   []model.Selection{*g.pending},
	}
	g.phase = PhaseSubmitted
	g.mu.Unlock()

	res, err := scorer.SubmitGame1(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit selection: %w", err)
	}

	g.mu.Lock()
	g.result = res
	g.mu.Unlock()
	return res, nil
}

// Result is the server's verdict once submitted.
func (g *SpotTheTrash) Result() (*model.Game1Result, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result, g.result != nil
}

func (g *SpotTheTrash) require(want Phase) error {
	g.tick()
	if g.phase == PhaseEnded && (want == PhasePlaying || want == PhaseConfirming) {
		return ErrTimeUp
	}
	if g.phase == PhaseSubmitted {
		return ErrAlreadySubmitted
	}
	if g.phase != want {
		return fmt.Errorf("%w: %s", ErrWrongPhase, g.phase)
	}
	return nil
}

func (g *SpotTheTrash) tick() {
	if (g.phase == PhasePlaying || g.phase == PhaseConfirming) && !g.clock().Before(g.deadline) {
		g.phase = PhaseEnded
		g.pending = nil
	}
}
