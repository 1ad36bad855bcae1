package model

import (
	"strings"
	"time"
)

// Blog is a community article.
type Blog struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	ViewCount    int64      `json:"view_count"`
	LikesCount   int64      `json:"likes_count"`
	Blogger      *Blogger   `json:"blogger,omitempty"`
	BlogLikes    []BlogLike `json:"blog_likes,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// BlogLike records which blogger liked a blog.
type BlogLike struct {
	BloggerID int64 `json:"blogger_id"`
}

// LikedBy reports whether the given blogger appears in the like list.
func (b *Blog) LikedBy(bloggerID int64) bool {
	for _, l := range b.BlogLikes {
		if l.BloggerID == bloggerID {
			return true
		}
	}
	return false
}

// Comment is a comment on a blog.
type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Blogger   *Blogger  `json:"blogger,omitempty"`
}

// LikeResult is the server's answer to a like toggle.
type LikeResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// SaveResult is the server's answer to a save toggle.
type SaveResult struct {
	Saved bool `json:"saved"`
}

// BlogInput is the editable part of a blog.
type BlogInput struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Validate checks the required fields of a blog form.
func (in BlogInput) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		v.Add("title", "can't be blank")
	}
	if strings.TrimSpace(in.Content) == "" {
		v.Add("content", "can't be blank")
	}
	return v.OrNil()
}

// ValidateComment rejects blank comment bodies.
func ValidateComment(content string) error {
	if strings.TrimSpace(content) == "" {
		v := &ValidationError{}
		v.Add("content", "can't be blank")
		return v
	}
	return nil
}

// BloggerInput is the editable part of a blogger profile.
type BloggerInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Validate checks the profile form.
func (in BloggerInput) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(in.Username) == "" {
		v.Add("username", "can't be blank")
	}
	if !ValidEmail(in.Email) {
		v.Add("email", "is invalid")
	}
	return v.OrNil()
}

// Registration is the sign-up form for a new blogger.
type Registration struct {
	Username             string `json:"username"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Validate checks the sign-up form.
func (r Registration) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(r.Username) == "" {
		v.Add("username", "can't be blank")
	}
	if !ValidEmail(r.Email) {
		v.Add("email", "is invalid")
	}
	if len(r.Password) < 6 {
		v.Add("password", "is too short (minimum is 6 characters)")
	}
	if r.Password != r.PasswordConfirmation {
		v.Add("password_confirmation", "doesn't match password")
	}
	return v.OrNil()
}
