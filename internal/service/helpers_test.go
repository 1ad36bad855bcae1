package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/testutil"
	"github.com/greencycle/greencycle/internal/tokenstore"
)

func newTestAPI(t *testing.T) (*testutil.Backend, *apiclient.Client) {
	t.Helper()
	backend := testutil.NewBackend(t)
	client, err := apiclient.New(apiclient.Options{
		BaseURL: backend.URL(),
		Store:   tokenstore.NewMemoryStore(),
		Logger:  testutil.DiscardLogger(),
	})
	require.NoError(t, err)
	return backend, client
}
