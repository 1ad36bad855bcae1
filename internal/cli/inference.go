package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/greencycle/greencycle/internal/ai"
	"github.com/greencycle/greencycle/internal/model"
)

func aiCommands() []command {
	return []command{
		{name: "predict", usage: "classify the trash in an image: predict (PATH | -url URL | -base64 DATA)", run: runAIPredict},
		{name: "advice", usage: "recycling advice for labels: advice LABEL...", run: runAIAdvice},
		{name: "capture", usage: "analyze frames from the camera feed", run: runAICapture},
		{name: "watch", usage: "stream live detections", run: runAIWatch},
	}
}

type predictView struct {
	*model.PredictionResult
	Advice   map[string]model.Advice `json:"advice,omitempty"`
	Archived string                  `json:"archived,omitempty"`
	Saved    string                  `json:"saved,omitempty"`
}

func runAIPredict(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "ai predict")
	imageURL := fs.String("url", "", "image URL")
	b64 := fs.String("base64", "", "image as a data URL or bare base64")
	advice := fs.Bool("advice", false, "also ask for recycling advice")
	save := fs.String("save", "", "write the annotated image to this file")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	in := ai.ImageInput{URL: *imageURL, Base64: *b64}
	if len(pos) > 0 {
		f, err := os.Open(pos[0])
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}
		defer f.Close()
		in.File = f
		in.Filename = filepath.Base(pos[0])
	}

	client, err := a.AI(ctx)
	if err != nil {
		return err
	}
	res, err := client.PredictImage(ctx, in)
	if err != nil {
		return err
	}

	view := predictView{PredictionResult: res}
	if *advice && len(res.Labels()) > 0 {
		if view.Advice, err = client.Advice(ctx, res.Labels()); err != nil {
			return err
		}
	}
	if view.Archived, err = client.ArchiveAnnotated(ctx, res); err != nil {
		a.Logger.Warn("archive failed", "error", err)
	}
	if *save != "" {
		if err := saveDataURL(*save, res.ImageWithBoxes); err != nil {
			return err
		}
		view.Saved = *save
	}

	return a.render(*format, view, func(w io.Writer) {
		writePredictions(w, res.Predictions)
		writeCounts(w, res.Counts)
		writeAdvice(w, view.Advice)
		if view.Archived != "" {
			fmt.Fprintf(w, "\nArchived to %s\n", view.Archived)
		}
		if view.Saved != "" {
			fmt.Fprintf(w, "\nAnnotated image written to %s\n", view.Saved)
		}
	})
}

func runAIAdvice(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "ai advice")
	labels, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		return usageErrorf("ai advice: at least one label is required")
	}

	client, err := a.AI(ctx)
	if err != nil {
		return err
	}
	advice, err := client.Advice(ctx, labels)
	if err != nil {
		return err
	}
	return a.render(*format, advice, func(w io.Writer) { writeAdvice(w, advice) })
}

func runAICapture(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "ai capture")
	frames := fs.Int("frames", 1, "frames to analyze; 0 runs until interrupted")
	rps := fs.Float64("rps", a.Config.CaptureRPS, "frames analyzed per second")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if *rps <= 0 {
		return usageErrorf("ai capture: -rps must be positive")
	}

	client, err := a.AI(ctx)
	if err != nil {
		return err
	}
	limiter := rate.NewLimiter(rate.Limit(*rps), 1)
	return client.Capture(ctx, *frames, limiter, func(res ai.CaptureResult) error {
		if res.Err != nil {
			fmt.Fprintf(a.Streams.Err, "frame %d: %v\n", res.Index, res.Err)
			return nil
		}
		return a.render(*format, res, func(w io.Writer) {
			fmt.Fprintf(w, "FRAME %d\n", res.Index)
			writePredictions(w, res.Result.Predictions)
			if res.Archived != "" {
				fmt.Fprintf(w, "archived\t%s\n", res.Archived)
			}
		})
	})
}

func runAIWatch(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "ai watch")
	count := fs.Int("count", 0, "stop after this many detections; 0 runs until interrupted")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	client, err := a.AI(ctx)
	if err != nil {
		return err
	}
	seen := 0
	return client.Watch(ctx, func(ev model.DetectionEvent) error {
		err := a.render(*format, ev, func(w io.Writer) {
			fmt.Fprintf(w, "%s\t", ev.Timestamp.Local().Format(time.TimeOnly))
			for i, p := range ev.Predictions {
				if i > 0 {
					fmt.Fprint(w, ", ")
				}
				fmt.Fprintf(w, "%s (%.0f%%)", p.TrashType, p.Confidence*100)
			}
			fmt.Fprintln(w)
		})
		if err != nil {
			return err
		}
		seen++
		if *count > 0 && seen >= *count {
			return ai.ErrStopWatch
		}
		return nil
	})
}

func saveDataURL(path, dataURL string) error {
	if dataURL == "" {
		return fmt.Errorf("save %s: no annotated image in the response", path)
	}
	_, data, err := ai.DecodeDataURL(dataURL)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writePredictions(w io.Writer, preds []model.Prediction) {
	fmt.Fprintln(w, "TYPE\tCONFIDENCE\tBOX (x,y,w,h)")
	for _, p := range preds {
		b := p.BoundingBox
		fmt.Fprintf(w, "%s\t%.1f%%\t%.0f,%.0f,%.0f,%.0f\n", p.TrashType, p.Confidence*100, b.X, b.Y, b.Width, b.Height)
	}
}

func writeCounts(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	fmt.Fprintln(w, "\nTYPE\tCOUNT")
	for _, l := range labels {
		fmt.Fprintf(w, "%s\t%d\n", l, counts[l])
	}
}

func writeAdvice(w io.Writer, advice map[string]model.Advice) {
	labels := make([]string, 0, len(advice))
	for l := range advice {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		ad := advice[l]
		fmt.Fprintf(w, "\n%s\n", l)
		if ad.Concept != "" {
			fmt.Fprintf(w, "  What it is: %s\n", ad.Concept)
		}
		fmt.Fprintf(w, "  Advice: %s\n", ad.Advice)
		if ad.References != "" {
			fmt.Fprintf(w, "  References: %s\n", ad.References)
		}
	}
}
