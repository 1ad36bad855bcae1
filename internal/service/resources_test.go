package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/testutil"
)

func TestBloggerService_Activity(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Get("/bloggers/{id}/liked_blogs", testutil.JSON(http.StatusOK, []model.Blog{{ID: 1}}))
	backend.Router.Get("/bloggers/{id}/saved_blogs", testutil.JSON(http.StatusUnauthorized, nil))
	backend.Router.Get("/bloggers/{id}/commented_blogs", testutil.JSON(http.StatusOK, []model.Blog{{ID: 2}, {ID: 3}}))

	a := NewBloggerService(api).Activity(context.Background(), 9)
	assert.Len(t, a.Liked, 1)
	assert.Empty(t, a.Saved)
	assert.Len(t, a.Commented, 2)
	assert.ErrorIs(t, a.Errors["saved"], apiclient.ErrUnauthorized)
	assert.Len(t, a.Errors, 1)
}

func TestBloggerService_Update(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Patch("/bloggers/{id}", testutil.JSON(http.StatusOK, model.Blogger{ID: 9, Username: "new"}))

	b, err := NewBloggerService(api).Update(context.Background(), 9, model.BloggerInput{Username: "new", Email: "n@x.io"})
	require.NoError(t, err)
	assert.Equal(t, "new", b.Username)
	assert.JSONEq(t, `{"blogger":{"username":"new","email":"n@x.io"}}`, string(backend.Last(t).Body))
}

func TestCampaignService_Donate(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Post("/campaigns/{id}/donate", testutil.JSON(http.StatusOK, map[string]string{"url": "https://checkout.example/s/1"}))

	checkout, err := NewCampaignService(api).Donate(context.Background(), 4, model.DonationInput{
		Amount: 50, Currency: "EUR", Frequency: "monthly", FullName: " Ana ", IncludeName: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/s/1", checkout.URL)

	var body map[string]any
	require.NoError(t, json.Unmarshal(backend.Last(t).Body, &body))
	assert.Equal(t, float64(5000), body["amount"])
	assert.Equal(t, "EUR", body["currency"])
	assert.Equal(t, "monthly", body["frequency"])
	assert.Equal(t, "Ana", body["full_name"])
	assert.Equal(t, true, body["include_name"])
	assert.Equal(t, false, body["subscribe_newsletter"])
}

func TestCampaignService_DonateRejectsLocally(t *testing.T) {
	backend, api := newTestAPI(t)
	_, err := NewCampaignService(api).Donate(context.Background(), 4, model.DonationInput{Amount: -1, Currency: "USD", Frequency: "once", FullName: "A"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Empty(t, backend.Requests())
}

func TestCampaignService_CreateStripeRequired(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Post("/campaigns", testutil.JSON(http.StatusUnprocessableEntity, map[string]any{
		"errors": []string{"You need to register a Stripe account to receive donations."},
	}))

	_, err := NewCampaignService(api).Create(context.Background(), model.CampaignInput{
		Title: "t", Description: "d", Goal: "g", Email: "f@x.io", IsGetDonated: true,
	})
	assert.ErrorIs(t, err, ErrStripeRequired)
	assert.ErrorIs(t, err, apiclient.ErrValidation)
}

func TestCampaignService_Contact(t *testing.T) {
	tests := []struct {
		target ContactTarget
		path   string
	}{
		{ContactFounder, "/campaigns/3/contact_founder"},
		{ContactAdmin, "/campaigns/3/contact_to_admin"},
	}

	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			backend, api := newTestAPI(t)
			backend.Router.Post("/campaigns/{id}/*", testutil.JSON(http.StatusOK, nil))

			err := NewCampaignService(api).Contact(context.Background(), 3, tt.target, model.ContactMessage{
				FromName: "A", FromEmail: "a@x.io", Message: "hello",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.path, backend.Last(t).Path)
		})
	}

	_, api := newTestAPI(t)
	err := NewCampaignService(api).Contact(context.Background(), 3, "mayor", model.ContactMessage{FromName: "A", FromEmail: "a@x.io", Message: "m"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestCampaignService_StripeOnboarding(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Post("/stripe_accounts", testutil.JSON(http.StatusOK, map[string]string{"account_id": "acct_1"}))
	backend.Router.Post("/stripe_accounts/link", testutil.JSON(http.StatusOK, map[string]string{"url": "https://connect.example/onboard"}))

	link, err := NewCampaignService(api).StripeOnboarding(context.Background(), "f@x.io")
	require.NoError(t, err)
	assert.Equal(t, "https://connect.example/onboard", link.URL)
	assert.JSONEq(t, `{"account":"acct_1"}`, string(backend.Last(t).Body))
}

func TestDonationService(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Post("/donations", testutil.JSON(http.StatusOK, map[string]string{"sessionId": "cs_123"}))
	backend.Router.Get("/donations/success", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, model.PaymentDetails{FullName: r.URL.Query().Get("session_id"), Amount: 2000})
	})
	svc := NewDonationService(api)

	checkout, err := svc.Create(context.Background(), model.DonationInput{Amount: 20, Currency: "USD", Frequency: "once", FullName: "A"})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", checkout.SessionID)

	details, err := svc.Success(context.Background(), "cs_123")
	require.NoError(t, err)
	assert.Equal(t, "cs_123", details.FullName)

	_, err = svc.Success(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestSubscriberService_Create(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Post("/subscribers", testutil.JSON(http.StatusCreated, model.Subscriber{ID: 1, FullName: "Ana"}))

	_, err := NewSubscriberService(api).Create(context.Background(), model.SubscriberInput{FullName: " Ana ", Email: "ana@x.io"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"subscriber":{"full_name":"Ana","email":"ana@x.io"}}`, string(backend.Last(t).Body))

	_, err = NewSubscriberService(api).Create(context.Background(), model.SubscriberInput{FullName: "Ana", Email: "nope"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestGameService_Upload(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Post("/games/{id}/upload_image", func(w http.ResponseWriter, r *http.Request) {
		if _, hdr, err := r.FormFile("file"); err != nil || hdr.Filename != "can.png" {
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		testutil.WriteJSON(w, http.StatusCreated, map[string]any{"id": 77, "url": "/u/can.png"})
	})
	backend.Router.Post("/games/{id}/upload_image_from_url", testutil.JSON(http.StatusCreated, map[string]any{"id": "x1", "url": "/u/x1.png"}))

	svc := NewGameService(api)
	img, err := svc.UploadImage(context.Background(), 1, "/tmp/pics/can.png", strings.NewReader("PNG"))
	require.NoError(t, err)
	assert.Equal(t, model.ImageID("77"), img.ID)

	img, err = svc.UploadImageFromURL(context.Background(), 1, "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, model.ImageID("x1"), img.ID)
	assert.JSONEq(t, `{"url":"https://example.com/a.png"}`, string(backend.Last(t).Body))
}

func TestHome_PartialFailure(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Get("/blogs", testutil.JSON(http.StatusOK, []model.Blog{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}))
	backend.Router.Get("/campaigns", testutil.JSON(http.StatusInternalServerError, nil))
	backend.Router.Get("/items", testutil.JSON(http.StatusOK, model.ItemPage{Items: []model.Item{{ID: 1}}}))
	backend.Router.Get("/donations", testutil.JSON(http.StatusOK, []model.Donation{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}, {ID: 6}}))

	feed := Home(context.Background(),
		NewBlogService(api), NewCampaignService(api),
		NewRecyclepediaService(api, nil, nil, testutil.DiscardLogger()), NewDonationService(api))

	assert.Len(t, feed.Blogs, 3)
	assert.Empty(t, feed.Campaigns)
	assert.Len(t, feed.Items, 1)
	assert.Len(t, feed.Donations, 5)
	assert.True(t, feed.Errors.Failed("campaigns"))
	assert.Len(t, feed.Errors, 1)

	for _, r := range backend.Requests() {
		if r.Path == "/items" {
			assert.Equal(t, "per_page=8", r.Query)
		}
	}
}

type mockCatalogCache struct {
	mock.Mock
}

func (m *mockCatalogCache) Sections(ctx context.Context) ([]model.Section, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]model.Section)
	return s, args.Error(1)
}

func (m *mockCatalogCache) SetSections(ctx context.Context, sections []model.Section) error {
	return m.Called(ctx, sections).Error(0)
}

func (m *mockCatalogCache) Item(ctx context.Context, id int64) (*model.Item, error) {
	args := m.Called(ctx, id)
	i, _ := args.Get(0).(*model.Item)
	return i, args.Error(1)
}

func (m *mockCatalogCache) SetItem(ctx context.Context, item *model.Item) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockCatalogCache) ItemPage(ctx context.Context, query string) (*model.ItemPage, error) {
	args := m.Called(ctx, query)
	p, _ := args.Get(0).(*model.ItemPage)
	return p, args.Error(1)
}

func (m *mockCatalogCache) SetItemPage(ctx context.Context, query string, page *model.ItemPage) error {
	return m.Called(ctx, query, page).Error(0)
}

var errMiss = errors.New("miss")

func TestRecyclepedia_ReadThroughCache(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Get("/sections", testutil.JSON(http.StatusOK, []model.Section{{ID: 1, Name: "Glass"}}))
	backend.Router.Get("/items/{id}", testutil.JSON(http.StatusOK, model.Item{ID: 3, Name: "Jar"}))

	cache := &mockCatalogCache{}
	cache.On("Sections", mock.Anything).Return(nil, errMiss).Once()
	cache.On("SetSections", mock.Anything, []model.Section{{ID: 1, Name: "Glass"}}).Return(nil).Once()
	cache.On("Item", mock.Anything, int64(3)).Return(&model.Item{ID: 3, Name: "cached jar"}, nil).Once()

	rec := metrics.NewInMemory()
	svc := NewRecyclepediaService(api, cache, rec, testutil.DiscardLogger())

	sections, err := svc.Sections(context.Background())
	require.NoError(t, err)
	assert.Len(t, sections, 1)

	item, err := svc.Item(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "cached jar", item.Name)

	cache.AssertExpectations(t)
	snap := rec.Snapshot()
	assert.Equal(t, uint64(1), snap.CatalogCacheHits)
	assert.Equal(t, uint64(1), snap.CatalogCacheMisses)
	assert.Len(t, backend.Requests(), 1, "cached item must not hit the backend")
}

func TestRecyclepedia_ItemsQuery(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Get("/items", testutil.JSON(http.StatusOK, map[string]any{"items": nil, "pagination": map[string]int{"current_page": 1, "total_pages": 1}}))

	page, err := NewRecyclepediaService(api, nil, nil, nil).Items(context.Background(), ItemQuery{
		SectionID: 2, NameContains: "can", Sort: "name asc", Page: Page{Page: 1, PerPage: 12},
	})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)

	q, _ := url.ParseQuery(backend.Last(t).Query)
	assert.Equal(t, "2", q.Get("section_id"))
	assert.Equal(t, "can", q.Get("q[name_cont]"))
	assert.Equal(t, "name asc", q.Get("q[s]"))
	assert.Equal(t, "12", q.Get("per_page"))
}

func TestRecyclepedia_Walk(t *testing.T) {
	backend, api := newTestAPI(t)
	backend.Router.Get("/items", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		testutil.WriteJSON(w, http.StatusOK, model.ItemPage{
			Items:      []model.Item{{ID: int64(page)}},
			Pagination: model.Pagination{CurrentPage: page, TotalPages: 3},
		})
	})
	svc := NewRecyclepediaService(api, nil, nil, nil)

	var ids []int64
	err := svc.Walk(context.Background(), ItemQuery{}, func(p *model.ItemPage) error {
		ids = append(ids, p.Items[0].ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	ids = nil
	err = svc.Walk(context.Background(), ItemQuery{}, func(p *model.ItemPage) error {
		ids = append(ids, p.Items[0].ID)
		return ErrStopWalk
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}
