package model

import "time"

// BoundingBox locates a detection in pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Prediction is one detected piece of trash.
type Prediction struct {
	TrashType   string      `json:"trash_type"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// PredictionResult is the classifier's answer for one image.
type PredictionResult struct {
	Counts         map[string]int `json:"counts"`
	ImageWithBoxes string         `json:"image_with_boxes"`
	Predictions    []Prediction   `json:"predictions"`
}

// Labels returns the detected trash types, sorted.
func (r *PredictionResult) Labels() []string {
	seen := make(map[string]struct{}, len(r.Counts)+len(r.Predictions))
	for label := range r.Counts {
		seen[label] = struct{}{}
	}
	for _, p := range r.Predictions {
		seen[p.TrashType] = struct{}{}
	}
	return sortedKeys(seen)
}

// Advice is the guidance returned for one label.
type Advice struct {
	Concept    string `json:"concept"`
	Advice     string `json:"advice"`
	References string `json:"references"`
}

// Selection is a player's pick on the game 1 stage, as ratios of its size.
type Selection struct {
	XRatio    float64 `json:"x_ratio"`
	YRatio    float64 `json:"y_ratio"`
	TrashType string  `json:"trash_type"`
}

// Game1Result is the scoring response for game 1.
type Game1Result struct {
	Predictions    []Prediction `json:"predictions"`
	Correct        int          `json:"correct"`
	Incorrect      int          `json:"incorrect"`
	ImageWithBoxes string       `json:"image_with_boxes,omitempty"`
}

// SortedItem is one dropped image in game 2.
type SortedItem struct {
	SelectedBin Bin    `json:"selected_bin"`
	ImageBase64 string `json:"image_base64"`
}

// SortedItemResult is the AI verdict for one dropped image.
type SortedItemResult struct {
	SelectedBin    Bin          `json:"selected_bin"`
	PredictedBin   *Bin         `json:"predicted_bin"`
	IsCorrect      bool         `json:"is_correct"`
	ImageWithBoxes string       `json:"image_with_boxes"`
	Predictions    []Prediction `json:"predictions"`
}

// Score totals a game 2 round.
type Score struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Total     int `json:"total"`
}

// Game2Result is the scoring response for game 2.
type Game2Result struct {
	Results []SortedItemResult `json:"results"`
	Score   Score              `json:"score"`
}

// DetectionEvent is pushed by the AI service while the camera feed runs.
type DetectionEvent struct {
	Predictions []Prediction   `json:"predictions"`
	Counts      map[string]int `json:"counts,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
