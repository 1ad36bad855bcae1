// Package service provides typed access to the platform's REST resources.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/greencycle/greencycle/internal/apiclient"
)

// API is the subset of the request client the services need.
type API interface {
	Get(ctx context.Context, path string, out any, opts ...apiclient.RequestOption) error
	Post(ctx context.Context, path string, body, out any, opts ...apiclient.RequestOption) error
	Patch(ctx context.Context, path string, body, out any, opts ...apiclient.RequestOption) error
	Delete(ctx context.Context, path string, out any, opts ...apiclient.RequestOption) error
	Do(ctx context.Context, method, path string, body, out any, opts ...apiclient.RequestOption) (http.Header, error)
	PostMultipart(ctx context.Context, path string, fields map[string]string, files []apiclient.FormFile, out any, opts ...apiclient.RequestOption) error
}

var _ API = (*apiclient.Client)(nil)

// ErrStripeRequired means a campaign asked for donations before its founder
// connected a payment account.
var ErrStripeRequired = errors.New("founder must connect a Stripe account to receive donations")

// Page selects a slice of a paginated list. Zero values are omitted.
type Page struct {
	Page    int
	PerPage int
}

func (p Page) apply(q url.Values) {
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(p.PerPage))
	}
}

func idPath(format string, ids ...any) string {
	return fmt.Sprintf(format, ids...)
}

// firstN truncates s to at most n elements.
func firstN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
