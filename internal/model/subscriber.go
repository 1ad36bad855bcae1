package model

import (
	"strings"
	"time"
)

// Subscriber is a public donor/subscriber directory entry.
type Subscriber struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Nickname  string    `json:"nickname,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscriberInput is the newsletter sign-up form.
type SubscriberInput struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Nickname    string `json:"nickname,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Validate checks the sign-up form.
func (in SubscriberInput) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(in.FullName) == "" {
		v.Add("full_name", "can't be blank")
	}
	if !ValidEmail(in.Email) {
		v.Add("email", "is invalid")
	}
	return v.OrNil()
}
