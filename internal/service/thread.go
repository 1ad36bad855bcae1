package service

import (
	"context"
	"fmt"

	"github.com/greencycle/greencycle/internal/model"
)

// Thread is a blog with its comments as the viewer sees it. Every mutation
// applies the server's answer verbatim; nothing is computed client-side.
type Thread struct {
	Blog     model.Blog      `json:"blog"`
	Comments []model.Comment `json:"comments"`
	Liked    bool            `json:"liked"`
	Saved    bool            `json:"saved"`
}

// OpenThread loads a blog and then its comments. viewerID is zero for an
// anonymous viewer.
func (s *BlogService) OpenThread(ctx context.Context, blogID, viewerID int64) (*Thread, error) {
	blog, err := s.Get(ctx, blogID)
	if err != nil {
		return nil, err
	}
	th := &Thread{Blog: *blog}
	if viewerID != 0 {
		th.Liked = blog.LikedBy(viewerID)
	}

	comments, err := s.Comments(ctx, blog.ID)
	if err != nil {
		// The blog itself is still worth showing.
		comments = []model.Comment{}
	}
	th.Comments = comments
	return th, nil
}

// ToggleLike sends a like toggle and adopts the returned state.
func (s *BlogService) ToggleLike(ctx context.Context, th *Thread) error {
	res, err := s.Like(ctx, th.Blog.ID)
	if err != nil {
		return err
	}
	th.ApplyLike(*res)
	return nil
}

// ToggleSave sends a save toggle and adopts the returned state.
func (s *BlogService) ToggleSave(ctx context.Context, th *Thread) error {
	res, err := s.Save(ctx, th.Blog.ID)
	if err != nil {
		return err
	}
	th.ApplySave(*res)
	return nil
}

// Comment posts a comment and appends the server's copy.
func (s *BlogService) Comment(ctx context.Context, th *Thread, content string) (*model.Comment, error) {
	c, err := s.AddComment(ctx, th.Blog.ID, content)
	if err != nil {
		return nil, err
	}
	th.ApplyCommentAdded(*c)
	return c, nil
}

// ReviseComment edits a comment and swaps in the server's copy.
func (s *BlogService) ReviseComment(ctx context.Context, th *Thread, commentID int64, content string) error {
	c, err := s.EditComment(ctx, th.Blog.ID, commentID, content)
	if err != nil {
		return err
	}
	if !th.ApplyCommentEdited(*c) {
		return fmt.Errorf("comment %d not in thread", commentID)
	}
	return nil
}

// RemoveComment deletes a comment and drops it from the thread.
func (s *BlogService) RemoveComment(ctx context.Context, th *Thread, commentID int64) error {
	if err := s.DeleteComment(ctx, th.Blog.ID, commentID); err != nil {
		return err
	}
	th.ApplyCommentDeleted(commentID)
	return nil
}

// ApplyLike adopts the server's like state and count.
func (t *Thread) ApplyLike(res model.LikeResult) {
	t.Liked = res.Liked
	t.Blog.LikesCount = res.LikesCount
}

// ApplySave adopts the server's save state.
func (t *Thread) ApplySave(res model.SaveResult) {
	t.Saved = res.Saved
}

// ApplyCommentAdded appends the server's comment.
func (t *Thread) ApplyCommentAdded(c model.Comment) {
	t.Comments = append(t.Comments, c)
}

// ApplyCommentEdited replaces the comment with the same ID. It reports
// whether the comment was present.
func (t *Thread) ApplyCommentEdited(c model.Comment) bool {
	for i := range t.Comments {
		if t.Comments[i].ID == c.ID {
			t.Comments[i] = c
			return true
		}
	}
	return false
}

// ApplyCommentDeleted drops the comment with the given ID.
func (t *Thread) ApplyCommentDeleted(id int64) {
	out := t.Comments[:0]
	for _, c := range t.Comments {
		if c.ID != id {
			out = append(out, c)
		}
	}
	t.Comments = out
}
