// Package tokenstore persists the bearer token and the cached user snapshot
// between runs.
//
// A store holds exactly two values: the opaque token string sent verbatim as
// the Authorization header, and a JSON copy of the signed-in user. Load never
// fails; anything unreadable is reported as absent.
package tokenstore

import (
	"context"

	"github.com/greencycle/greencycle/internal/model"
)

// Credentials is the persisted session state. Either field may be empty.
type Credentials struct {
	Token string      `json:"auth_token,omitempty"`
	User  *model.User `json:"user,omitempty"`
}

// Store is implemented by every session backend.
type Store interface {
	// Save writes the token and user. Callers save both once per sign-in.
	Save(ctx context.Context, token string, user *model.User) error
	// Load returns whatever is stored. Missing or malformed values are zero.
	Load(ctx context.Context) Credentials
	// Clear removes both values. It is idempotent.
	Clear(ctx context.Context) error
}

// Token reads only the bearer token.
func Token(ctx context.Context, s Store) string {
	return s.Load(ctx).Token
}
