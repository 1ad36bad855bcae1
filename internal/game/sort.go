package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/greencycle/greencycle/internal/model"
)

// Drag-to-bins timing.
const (
	SortCountdown = 3 * time.Second
	SortDuration  = 30 * time.Second
)

// ImageFetcher turns an image URL into a data URL.
type ImageFetcher func(ctx context.Context, url string) (string, error)

// Drop is an image the player placed in a bin.
type Drop struct {
	Image model.GameImage
	Bin   model.Bin
}

// DragToBins is one round of game 2: a random hand of images is dealt and
// the player drops each into a bin before the timer ends.
type DragToBins struct {
	mu sync.Mutex

	pool  []model.GameImage
	rng   *rand.Rand
	clock Clock

	phase     Phase
	countdown time.Time
	deadline  time.Time
	pending   []model.GameImage
	dropped   []Drop
	result    *model.Game2Result
}

// NewDragToBins prepares a round over a game's images.
func NewDragToBins(images []model.GameImage, rng *rand.Rand, clock Clock) (*DragToBins, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if clock == nil {
		clock = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	pool := make([]model.GameImage, len(images))
	copy(pool, images)
	return &DragToBins{pool: pool, rng: rng, clock: clock, phase: PhaseChoosing}, nil
}

// Start deals the hand for d and begins the countdown.
func (g *DragToBins) Start(d Difficulty) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseChoosing {
		return fmt.Errorf("%w: %s", ErrWrongPhase, g.phase)
	}

	hand := make([]model.GameImage, len(g.pool))
	copy(hand, g.pool)
	g.rng.Shuffle(len(hand), func(i, j int) { hand[i], hand[j] = hand[j], hand[i] })
	if n := d.SortImageCount(); n < len(hand) {
		hand = hand[:n]
	}

	now := g.clock()
	g.pending = hand
	g.countdown = now.Add(SortCountdown)
	g.deadline = g.countdown.Add(SortDuration)
	g.phase = PhaseCountdown
	return nil
}

// Phase returns the current phase after applying the clock.
func (g *DragToBins) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick()
	return g.phase
}

// CountdownRemaining is the time before play starts.
func (g *DragToBins) CountdownRemaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick()
	if g.phase != PhaseCountdown {
		return 0
	}
	return remaining(g.countdown, g.clock())
}

// Remaining is the play time left.
func (g *DragToBins) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick()
	switch g.phase {
	case PhaseCountdown:
		return SortDuration
	case PhasePlaying:
		return remaining(g.deadline, g.clock())
	default:
		return 0
	}
}

// Pending returns the images still to sort.
func (g *DragToBins) Pending() []model.GameImage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.GameImage, len(g.pending))
	copy(out, g.pending)
	return out
}

// Dropped returns the images sorted so far, in drop order.
func (g *DragToBins) Dropped() []Drop {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Drop, len(g.dropped))
	copy(out, g.dropped)
	return out
}

// Drop moves a pending image into bin. Dropping the last image ends the
// round.
func (g *DragToBins) Drop(id model.ImageID, bin model.Bin) error {
	if !bin.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidBin, bin)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick()
	switch g.phase {
	case PhasePlaying:
	case PhaseEnded:
		return ErrTimeUp
	default:
		return fmt.Errorf("%w: %s", ErrWrongPhase, g.phase)
	}

	for i, img := range g.pending {
		if img.ID != id {
			continue
		}
		g.pending = append(g.pending[:i:i], g.pending[i+1:]...)
		g.dropped = append(g.dropped, Drop{Image: img, Bin: bin})
		g.tick()
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownImage, id)
}

// Finish ends play early.
func (g *DragToBins) Finish() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick()
	if g.phase == PhaseCountdown || g.phase == PhasePlaying {
		g.phase = PhaseEnded
	}
}

// Submit sends the dropped images for scoring. A round is submitted at most
// once and only if something was dropped.
func (g *DragToBins) Submit(ctx context.Context, scorer Scorer, fetch ImageFetcher) (*model.Game2Result, error) {
	g.mu.Lock()
	g.tick()
	switch {
	case g.phase == PhaseSubmitted:
		g.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case g.phase != PhaseEnded:
		phase := g.phase
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrWrongPhase, phase)
	case len(g.dropped) == 0:
		g.mu.Unlock()
		return nil, ErrNothingDropped
	}
	drops := make([]Drop, len(g.dropped))
	copy(drops, g.dropped)
	g.phase = PhaseSubmitted
	g.mu.Unlock()

	items, err := encodeDrops(ctx, drops, fetch)
	if err != nil {
		return nil, err
	}
	res, err := scorer.SubmitGame2(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("submit sorted images: %w", err)
	}

	g.mu.Lock()
	g.result = res
	g.mu.Unlock()
	return res, nil
}

// Result is the server's verdict once submitted.
func (g *DragToBins) Result() (*model.Game2Result, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result, g.result != nil
}

// encodeDrops fetches every dropped image concurrently, keeping drop order.
func encodeDrops(ctx context.Context, drops []Drop, fetch ImageFetcher) ([]model.SortedItem, error) {
	items := make([]model.SortedItem, len(drops))
	errs := make([]error, len(drops))

	var wg sync.WaitGroup
	for i, d := range drops {
		wg.Add(1)
		go func(i int, d Drop) {
			defer wg.Done()
			data, err := fetch(ctx, d.Image.URL)
			if err != nil {
				errs[i] = fmt.Errorf("fetch image %s: %w", d.Image.ID, err)
				return
			}
			items[i] = model.SortedItem{SelectedBin: d.Bin, ImageBase64: data}
		}(i, d)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (g *DragToBins) tick() {
	now := g.clock()
	if g.phase == PhaseCountdown && !now.Before(g.countdown) {
		g.phase = PhasePlaying
	}
	if g.phase == PhasePlaying && (len(g.pending) == 0 || !now.Before(g.deadline)) {
		g.phase = PhaseEnded
	}
}
