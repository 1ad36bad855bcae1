package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/greencycle/greencycle/internal/ai"
	"github.com/greencycle/greencycle/internal/game"
	"github.com/greencycle/greencycle/internal/model"
)

func playCommands() []command {
	return []command{
		{name: "game1", usage: "spot the trash: find the named trash in a picture", run: runPlayGame1},
		{name: "game2", usage: "drag to bins: sort pictures into the right bins", run: runPlayGame2},
	}
}

// loadImage returns the image as a data URL plus its decoded bytes.
func loadImage(ctx context.Context, client *ai.Client, path, url string) (string, []byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("read image: %w", err)
		}
		return ai.EncodeDataURL(http.DetectContentType(data), data), data, nil
	}
	dataURL, err := client.FetchImage(ctx, url)
	if err != nil {
		return "", nil, err
	}
	_, data, err := ai.DecodeDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}
	return dataURL, data, nil
}

// pickGameImage picks one image of a game at random.
func (a *App) pickGameImage(ctx context.Context, gameID int64, rng *rand.Rand) (string, error) {
	images, err := a.Games.Images(ctx, gameID)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", game.ErrNoImages
	}
	return images[rng.Intn(len(images))].URL, nil
}

func runPlayGame1(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "play game1")
	path := fs.String("image", "", "image file to play with")
	imageURL := fs.String("url", "", "image URL to play with")
	gameID := fs.Int64("game", 0, "play with a random image of this game")
	level := fs.String("difficulty", string(game.Easy), "easy, medium or hard")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	d, err := game.ParseDifficulty(*level)
	if err != nil {
		return err
	}

	client, err := a.AI(ctx)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if *path == "" && *imageURL == "" {
		if *gameID <= 0 {
			return usageErrorf("play game1: give -image, -url or -game")
		}
		if *imageURL, err = a.pickGameImage(ctx, *gameID, rng); err != nil {
			return err
		}
	}

	dataURL, raw, err := loadImage(ctx, client, *path, *imageURL)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: unreadable image: %v", model.ErrInvalidInput, err)
	}
	width, height := float64(cfg.Width), float64(cfg.Height)

	round, err := game.NewSpotTheTrash(ctx, client, dataURL, rng, nil)
	if err != nil {
		return err
	}
	if err := round.Start(d); err != nil {
		return err
	}

	out := a.Streams.Err
	fmt.Fprintf(out, "Find the %s! The picture is %dx%d. You have %s.\n", round.Question(), cfg.Width, cfg.Height, d.SpotDuration())
	for {
		fmt.Fprintf(out, "[%ds left] x y> ", int(round.Remaining().Seconds()))
		line, err := a.readLine()
		if err != nil {
			return err
		}
		x, y, ok := parsePoint(line)
		if !ok {
			fmt.Fprintln(out, "Enter two numbers, e.g. 120 340.")
			continue
		}
		err = round.Select(x, y, width, height)
		if errors.Is(err, game.ErrTimeUp) {
			fmt.Fprintln(out, "Time's up!")
			return nil
		}
		if errors.Is(err, model.ErrInvalidInput) {
			fmt.Fprintln(out, "That point is outside the picture.")
			continue
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Pick (%.0f, %.0f)? [y/N] ", x, y)
		answer, err := a.readLine()
		if err != nil {
			return err
		}
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			if err := round.Cancel(); errors.Is(err, game.ErrTimeUp) {
				fmt.Fprintln(out, "Time's up!")
				return nil
			}
			continue
		}

		res, err := round.Confirm(ctx, client)
		if errors.Is(err, game.ErrTimeUp) {
			fmt.Fprintln(out, "Time's up!")
			return nil
		}
		if err != nil {
			return err
		}
		return a.render(*format, res, func(w io.Writer) {
			if res.Correct > 0 {
				fmt.Fprintf(w, "Correct! That is %s.\n", round.Question())
			} else {
				fmt.Fprintf(w, "Not quite. That is not %s.\n", round.Question())
			}
			fmt.Fprintf(w, "correct\t%d\nincorrect\t%d\n", res.Correct, res.Incorrect)
		})
	}
}

func parsePoint(line string) (float64, float64, bool) {
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) != 2 {
		return 0, 0, false
	}
	x, err1 := strconv.ParseFloat(fields[0], 64)
	y, err2 := strconv.ParseFloat(fields[1], 64)
	return x, y, err1 == nil && err2 == nil
}

func runPlayGame2(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "play game2")
	gameID := fs.Int64("game", 0, "game whose images are dealt")
	level := fs.String("difficulty", string(game.Easy), "easy, medium or hard")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if *gameID <= 0 {
		return usageErrorf("play game2: -game is required")
	}
	d, err := game.ParseDifficulty(*level)
	if err != nil {
		return err
	}

	client, err := a.AI(ctx)
	if err != nil {
		return err
	}
	images, err := a.Games.Images(ctx, *gameID)
	if err != nil {
		return err
	}
	round, err := game.NewDragToBins(images, rand.New(rand.NewSource(time.Now().UnixNano())), nil)
	if err != nil {
		return err
	}
	if err := round.Start(d); err != nil {
		return err
	}

	out := a.Streams.Err
	fmt.Fprintf(out, "Sort %d pictures into bins: %s\n", len(round.Pending()), binNames())
	fmt.Fprintf(out, "Starting in %d...\n", int(round.CountdownRemaining().Round(time.Second).Seconds()))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(round.CountdownRemaining()):
	}

	for _, img := range round.Pending() {
		if err := a.sortOne(round, img); err != nil {
			if errors.Is(err, game.ErrTimeUp) {
				fmt.Fprintln(out, "Time's up!")
				break
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
	}
	round.Finish()

	res, err := round.Submit(ctx, client, client.FetchImage)
	if errors.Is(err, game.ErrNothingDropped) {
		fmt.Fprintln(out, "Nothing was sorted.")
		return nil
	}
	if err != nil {
		return err
	}
	return a.render(*format, res, func(w io.Writer) {
		fmt.Fprintln(w, "YOUR BIN\tRIGHT BIN\tRESULT")
		for _, r := range res.Results {
			right := "?"
			if r.PredictedBin != nil {
				right = string(*r.PredictedBin)
			}
			verdict := "wrong"
			if r.IsCorrect {
				verdict = "correct"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.SelectedBin, right, verdict)
		}
		fmt.Fprintf(w, "\nScore\t%d/%d\n", res.Score.Correct, res.Score.Total)
	})
}

// sortOne asks for the bin of one image until the answer is accepted.
func (a *App) sortOne(round *game.DragToBins, img model.GameImage) error {
	out := a.Streams.Err
	for {
		label := img.Name
		if label == "" {
			label = img.URL
		}
		fmt.Fprintf(out, "[%ds left] %s\nbin> ", int(round.Remaining().Seconds()), label)
		line, err := a.readLine()
		if err != nil {
			return err
		}
		err = round.Drop(img.ID, model.Bin(strings.ToUpper(strings.TrimSpace(line))))
		if errors.Is(err, game.ErrInvalidBin) {
			fmt.Fprintf(out, "Choose one of %s.\n", binNames())
			continue
		}
		return err
	}
}

func binNames() string {
	names := make([]string, len(model.Bins))
	for i, b := range model.Bins {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}
