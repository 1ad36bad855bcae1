package model

import (
	"encoding/json"
	"fmt"
)

// Bin is a sorting bin label understood by the AI service.
type Bin string

// Sorting bins.
const (
	BinMetal         Bin = "METAL"
	BinPaper         Bin = "PAPER"
	BinGlass         Bin = "GLASS"
	BinPlastic       Bin = "PLASTIC"
	BinBiodegradable Bin = "BIODEGRADABLE"
	BinCardboard     Bin = "CARDBOARD"
)

// Bins lists every bin in display order.
var Bins = []Bin{BinMetal, BinPaper, BinGlass, BinPlastic, BinBiodegradable, BinCardboard}

// IsValid reports whether b is a known bin.
func (b Bin) IsValid() bool {
	for _, known := range Bins {
		if b == known {
			return true
		}
	}
	return false
}

// Game is a sorting game definition held by the backend.
type Game struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	FeaturedImageURL string      `json:"featured_image_url,omitempty"`
	Images           []GameImage `json:"images,omitempty"`
}

// GameImage is a playable picture.
type GameImage struct {
	ID   ImageID `json:"id"`
	URL  string  `json:"url"`
	Name string  `json:"name,omitempty"`
}

// ImageID is a game image identifier. The backend sends it either as a
// string or as a number.
type ImageID string

// UnmarshalJSON accepts both encodings.
func (id *ImageID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ImageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("image id: %w", err)
	}
	*id = ImageID(n.String())
	return nil
}
