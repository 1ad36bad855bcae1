package service

import (
	"context"
	"fmt"

	"github.com/greencycle/greencycle/internal/model"
)

// BloggerService reads and edits blogger profiles.
type BloggerService struct {
	api API
}

// NewBloggerService creates a BloggerService.
func NewBloggerService(api API) *BloggerService {
	return &BloggerService{api: api}
}

// List returns all bloggers.
func (s *BloggerService) List(ctx context.Context) ([]model.Blogger, error) {
	var out []model.Blogger
	if err := s.api.Get(ctx, "/bloggers", &out); err != nil {
		return nil, fmt.Errorf("list bloggers: %w", err)
	}
	return out, nil
}

// Get returns one blogger.
func (s *BloggerService) Get(ctx context.Context, id int64) (*model.Blogger, error) {
	var out model.Blogger
	if err := s.api.Get(ctx, idPath("/bloggers/%d", id), &out); err != nil {
		return nil, fmt.Errorf("get blogger %d: %w", id, err)
	}
	return &out, nil
}

// Update edits a profile. Only the owner may do this.
func (s *BloggerService) Update(ctx context.Context, id int64, in model.BloggerInput) (*model.Blogger, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out model.Blogger
	if err := s.api.Patch(ctx, idPath("/bloggers/%d", id), map[string]any{"blogger": in}, &out); err != nil {
		return nil, fmt.Errorf("update blogger %d: %w", id, err)
	}
	return &out, nil
}

// Activity is what a blogger liked, saved and commented on.
type Activity struct {
	Liked     []model.Blog
	Saved     []model.Blog
	Commented []model.Blog
	Errors    BranchErrors
}

// Activity loads the three activity lists concurrently.
func (s *BloggerService) Activity(ctx context.Context, id int64) *Activity {
	a := &Activity{}
	load := func(kind string, dst *[]model.Blog) Branch {
		return Branch{Name: kind, Run: func(ctx context.Context) error {
			var out []model.Blog
			if err := s.api.Get(ctx, idPath("/bloggers/%d/%s_blogs", id, kind), &out); err != nil {
				return fmt.Errorf("%s blogs: %w", kind, err)
			}
			*dst = out
			return nil
		}}
	}
	a.Errors = FanOut(ctx,
		load("liked", &a.Liked),
		load("saved", &a.Saved),
		load("commented", &a.Commented),
	)
	return a
}
