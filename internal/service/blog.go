package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/model"
)

// BlogQuery filters the blog list. The q[...] parameters follow the
// backend's search syntax.
type BlogQuery struct {
	TitleContains   string
	ContentContains string
	BloggerID       int64
	// Sort is a search sort expression such as "published_at desc".
	Sort string
	Page
}

func (q BlogQuery) values() url.Values {
	v := url.Values{}
	if q.TitleContains != "" {
		v.Set("q[title_cont]", q.TitleContains)
	}
	if q.ContentContains != "" {
		v.Set("q[content_cont]", q.ContentContains)
	}
	if q.BloggerID > 0 {
		v.Set("q[blogger_id_eq]", fmt.Sprint(q.BloggerID))
	}
	if q.Sort != "" {
		v.Set("q[s]", q.Sort)
	}
	q.Page.apply(v)
	return v
}

// BlogService manages blogs, likes, saves and comments.
type BlogService struct {
	api API
}

// NewBlogService creates a BlogService.
func NewBlogService(api API) *BlogService {
	return &BlogService{api: api}
}

// List returns blogs matching q.
func (s *BlogService) List(ctx context.Context, q BlogQuery) ([]model.Blog, error) {
	var out []model.Blog
	if err := s.api.Get(ctx, "/blogs", &out, apiclient.WithQuery(q.values())); err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	return out, nil
}

// TopBloggers returns the most active bloggers.
func (s *BlogService) TopBloggers(ctx context.Context) ([]model.Blogger, error) {
	var out []model.Blogger
	if err := s.api.Get(ctx, "/blogs/top_bloggers", &out); err != nil {
		return nil, fmt.Errorf("top bloggers: %w", err)
	}
	return out, nil
}

// TopViews returns the most viewed blogs.
func (s *BlogService) TopViews(ctx context.Context) ([]model.Blog, error) {
	var out []model.Blog
	if err := s.api.Get(ctx, "/blogs/top_views", &out); err != nil {
		return nil, fmt.Errorf("top views: %w", err)
	}
	return out, nil
}

// BlogIndex is the blog landing page. Each section loads independently;
// Errors names the sections that failed.
type BlogIndex struct {
	Blogs       []model.Blog
	TopBloggers []model.Blogger
	TopViews    []model.Blog
	Errors      BranchErrors
}

// Index loads the three blog landing sections concurrently.
func (s *BlogService) Index(ctx context.Context, q BlogQuery) *BlogIndex {
	idx := &BlogIndex{}
	idx.Errors = FanOut(ctx,
		Branch{Name: "blogs", Run: func(ctx context.Context) (err error) {
			idx.Blogs, err = s.List(ctx, q)
			return err
		}},
		Branch{Name: "top_bloggers", Run: func(ctx context.Context) (err error) {
			idx.TopBloggers, err = s.TopBloggers(ctx)
			return err
		}},
		Branch{Name: "top_views", Run: func(ctx context.Context) (err error) {
			idx.TopViews, err = s.TopViews(ctx)
			return err
		}},
	)
	return idx
}

// Get returns one blog.
func (s *BlogService) Get(ctx context.Context, id int64) (*model.Blog, error) {
	var out model.Blog
	if err := s.api.Get(ctx, idPath("/blogs/%d", id), &out); err != nil {
		return nil, fmt.Errorf("get blog %d: %w", id, err)
	}
	return &out, nil
}

// Create submits a new blog for review.
func (s *BlogService) Create(ctx context.Context, in model.BlogInput) (*model.Blog, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out model.Blog
	if err := s.api.Post(ctx, "/blogs", map[string]any{"blog": in}, &out); err != nil {
		return nil, fmt.Errorf("create blog: %w", err)
	}
	return &out, nil
}

// Update edits a blog the signed-in blogger owns.
func (s *BlogService) Update(ctx context.Context, id int64, in model.BlogInput) (*model.Blog, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out model.Blog
	if err := s.api.Patch(ctx, idPath("/blogs/%d", id), map[string]any{"blog": in}, &out); err != nil {
		return nil, fmt.Errorf("update blog %d: %w", id, err)
	}
	return &out, nil
}

// Delete removes a blog.
func (s *BlogService) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, idPath("/blogs/%d", id), nil); err != nil {
		return fmt.Errorf("delete blog %d: %w", id, err)
	}
	return nil
}

// Like toggles the viewer's like.
func (s *BlogService) Like(ctx context.Context, id int64) (*model.LikeResult, error) {
	var out model.LikeResult
	if err := s.api.Post(ctx, idPath("/blogs/%d/like", id), nil, &out); err != nil {
		return nil, fmt.Errorf("like blog %d: %w", id, err)
	}
	return &out, nil
}

// Save toggles the viewer's bookmark.
func (s *BlogService) Save(ctx context.Context, id int64) (*model.SaveResult, error) {
	var out model.SaveResult
	if err := s.api.Post(ctx, idPath("/blogs/%d/save", id), nil, &out); err != nil {
		return nil, fmt.Errorf("save blog %d: %w", id, err)
	}
	return &out, nil
}

// Comments lists a blog's comments. A missing comment list is empty.
func (s *BlogService) Comments(ctx context.Context, blogID int64) ([]model.Comment, error) {
	var out []model.Comment
	err := s.api.Get(ctx, idPath("/blogs/%d/comments", blogID), &out)
	if errors.Is(err, apiclient.ErrNotFound) {
		return []model.Comment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if out == nil {
		out = []model.Comment{}
	}
	return out, nil
}

// AddComment posts a comment.
func (s *BlogService) AddComment(ctx context.Context, blogID int64, content string) (*model.Comment, error) {
	if err := model.ValidateComment(content); err != nil {
		return nil, err
	}
	var out model.Comment
	body := map[string]any{"comment": map[string]string{"content": content}}
	if err := s.api.Post(ctx, idPath("/blogs/%d/comments", blogID), body, &out); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return &out, nil
}

// EditComment replaces a comment's content.
func (s *BlogService) EditComment(ctx context.Context, blogID, commentID int64, content string) (*model.Comment, error) {
	if err := model.ValidateComment(content); err != nil {
		return nil, err
	}
	var out model.Comment
	body := map[string]any{"comment": map[string]string{"content": content}}
	if err := s.api.Patch(ctx, idPath("/blogs/%d/comments/%d", blogID, commentID), body, &out); err != nil {
		return nil, fmt.Errorf("edit comment %d: %w", commentID, err)
	}
	return &out, nil
}

// DeleteComment removes a comment.
func (s *BlogService) DeleteComment(ctx context.Context, blogID, commentID int64) error {
	if err := s.api.Delete(ctx, idPath("/blogs/%d/comments/%d", blogID, commentID), nil); err != nil {
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}
	return nil
}
