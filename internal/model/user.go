// Package model defines domain entities for the application.
package model

// User is the cached snapshot of the signed-in blogger. It is never
// authoritative; protected endpoints are.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Blogger is a public blogger profile.
type Blogger struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	BlogsCount int    `json:"blogs_count,omitempty"`
}
