// Package session owns the signed-in state: the bearer token in the token
// store and the cached user snapshot in memory.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/tokenstore"
)

// Backend paths.
const (
	signInPath   = "/bloggers/sign_in"
	signOutPath  = "/bloggers/sign_out"
	registerPath = "/bloggers"
)

// Session errors.
var (
	ErrMissingToken = errors.New("sign-in response carried no Authorization header")
	ErrBadResponse  = errors.New("sign-in response carried no user")
)

// Session is the explicit session context shared by every command.
type Session struct {
	client *apiclient.Client
	store  tokenstore.Store
	logger *slog.Logger

	mu   sync.RWMutex
	user *model.User
}

// New restores the cached user from store. A missing or unreadable user
// means signed out.
func New(ctx context.Context, client *apiclient.Client, store tokenstore.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		client: client,
		store:  store,
		logger: logger.With("component", "session"),
	}
	s.user = store.Load(ctx).User
	return s
}

// CurrentUser returns a copy of the cached user, or nil when signed out.
func (s *Session) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is cached. The server stays the
// authority on whether the token is still valid.
func (s *Session) IsAuthenticated() bool {
	return s.CurrentUser() != nil
}

// signInResponse accepts either a flat user or one wrapped in data/blogger.
type signInResponse struct {
	ID       int64           `json:"id"`
	Username string          `json:"username"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Data     json.RawMessage `json:"data"`
	Blogger  json.RawMessage `json:"blogger"`
}

func (r *signInResponse) user() (*model.User, bool) {
	if r.ID == 0 && r.Email == "" {
		for _, nested := range []json.RawMessage{r.Data, r.Blogger} {
			if len(nested) == 0 {
				continue
			}
			var inner signInResponse
			if json.Unmarshal(nested, &inner) == nil && (inner.ID != 0 || inner.Email != "") {
				return inner.user()
			}
		}
		return nil, false
	}
	name := r.Username
	if name == "" {
		name = r.Name
	}
	return &model.User{ID: r.ID, Username: name, Email: r.Email}, true
}

// SignIn exchanges credentials for a token and stores both. A rejected
// sign-in does not fire the unauthorized broadcast.
func (s *Session) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	body := map[string]any{
		"blogger": map[string]string{
			"email":    strings.TrimSpace(email),
			"password": password,
		},
	}

	var resp signInResponse
	header, err := s.client.Do(ctx, http.MethodPost, signInPath, body, &resp, apiclient.SkipUnauthorizedBroadcast())
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	token := header.Get(apiclient.HeaderAuthorization)
	if token == "" {
		return nil, ErrMissingToken
	}
	user, ok := resp.user()
	if !ok {
		return nil, ErrBadResponse
	}

	if err := s.store.Save(ctx, token, user); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	s.logger.Info("signed in", slog.Int64("user_id", user.ID))
	return s.CurrentUser(), nil
}

// Register creates a blogger account. It does not sign in.
func (s *Session) Register(ctx context.Context, in model.Registration) error {
	if err := in.Validate(); err != nil {
		return err
	}
	body := map[string]any{
		"blogger": map[string]string{
			"username":              in.Username,
			"email":                 in.Email,
			"password":              in.Password,
			"password_confirmation": in.PasswordConfirmation,
		},
	}
	if err := s.client.Post(ctx, registerPath, body, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// SignOut tells the backend to revoke the token, then clears local state
// whatever the backend said. It never fails.
func (s *Session) SignOut(ctx context.Context) {
	if err := s.client.Delete(ctx, signOutPath, nil, apiclient.SkipUnauthorizedBroadcast()); err != nil {
		s.logger.Warn("sign out request failed, clearing local session anyway", slog.String("error", err.Error()))
	}

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear token store", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}
