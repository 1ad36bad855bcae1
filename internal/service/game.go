package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/model"
)

// GameService reads sorting game definitions and their image pools.
type GameService struct {
	api API
}

// NewGameService creates a GameService.
func NewGameService(api API) *GameService {
	return &GameService{api: api}
}

// List returns every game.
func (s *GameService) List(ctx context.Context) ([]model.Game, error) {
	var out []model.Game
	if err := s.api.Get(ctx, "/games", &out); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return out, nil
}

// Get returns a game with its images.
func (s *GameService) Get(ctx context.Context, id int64) (*model.Game, error) {
	var out model.Game
	if err := s.api.Get(ctx, idPath("/games/%d", id), &out); err != nil {
		return nil, fmt.Errorf("get game %d: %w", id, err)
	}
	return &out, nil
}

// Images returns a game's image pool.
func (s *GameService) Images(ctx context.Context, id int64) ([]model.GameImage, error) {
	var out []model.GameImage
	if err := s.api.Get(ctx, idPath("/games/%d/images", id), &out); err != nil {
		return nil, fmt.Errorf("game %d images: %w", id, err)
	}
	return out, nil
}

// Image returns one image.
func (s *GameService) Image(ctx context.Context, id model.ImageID) (*model.GameImage, error) {
	var out model.GameImage
	if err := s.api.Get(ctx, "/images/"+string(id), &out); err != nil {
		return nil, fmt.Errorf("get image %s: %w", id, err)
	}
	return &out, nil
}

// UploadImage adds a local picture to a game's pool.
func (s *GameService) UploadImage(ctx context.Context, gameID int64, filename string, data io.Reader) (*model.GameImage, error) {
	var out model.GameImage
	file := apiclient.FormFile{
		Field:       "file",
		Filename:    filepath.Base(filename),
		ContentType: contentTypeFor(filename),
		Data:        data,
	}
	if err := s.api.PostMultipart(ctx, idPath("/games/%d/upload_image", gameID), nil, []apiclient.FormFile{file}, &out); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return &out, nil
}

// UploadImageFromURL asks the backend to fetch a remote picture into a
// game's pool.
func (s *GameService) UploadImageFromURL(ctx context.Context, gameID int64, url string) (*model.GameImage, error) {
	var out model.GameImage
	if err := s.api.Post(ctx, idPath("/games/%d/upload_image_from_url", gameID), map[string]string{"url": url}, &out); err != nil {
		return nil, fmt.Errorf("upload image from url: %w", err)
	}
	return &out, nil
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
