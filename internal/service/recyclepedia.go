package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/model"
)

// CatalogCache is a read-through cache for recyclepedia reads. Any error
// from a getter is treated as a miss.
type CatalogCache interface {
	Sections(ctx context.Context) ([]model.Section, error)
	SetSections(ctx context.Context, sections []model.Section) error
	Item(ctx context.Context, id int64) (*model.Item, error)
	SetItem(ctx context.Context, item *model.Item) error
	ItemPage(ctx context.Context, query string) (*model.ItemPage, error)
	SetItemPage(ctx context.Context, query string, page *model.ItemPage) error
}

// ItemQuery filters the item list.
type ItemQuery struct {
	SectionID    int64
	NameContains string
	// Sort is a search sort expression such as "name asc".
	Sort string
	Page
}

func (q ItemQuery) values() url.Values {
	v := url.Values{}
	if q.SectionID > 0 {
		v.Set("section_id", strconv.FormatInt(q.SectionID, 10))
	}
	if q.NameContains != "" {
		v.Set("q[name_cont]", q.NameContains)
	}
	if q.Sort != "" {
		v.Set("q[s]", q.Sort)
	}
	q.Page.apply(v)
	return v
}

// RecyclepediaService reads the item catalog.
type RecyclepediaService struct {
	api     API
	cache   CatalogCache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewRecyclepediaService creates a RecyclepediaService. cache may be nil.
func NewRecyclepediaService(api API, cache CatalogCache, recorder metrics.Recorder, logger *slog.Logger) *RecyclepediaService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecyclepediaService{
		api:     api,
		cache:   cache,
		metrics: recorder,
		logger:  logger.With("component", "recyclepedia"),
	}
}

// Sections returns every item section.
func (s *RecyclepediaService) Sections(ctx context.Context) ([]model.Section, error) {
	if s.cache != nil {
		if cached, err := s.cache.Sections(ctx); err == nil {
			s.metrics.IncCatalogCacheHit()
			return cached, nil
		}
		s.metrics.IncCatalogCacheMiss()
	}

	return s.fetchSections(ctx)
}

// fetchSections always asks the backend and refreshes the cache.
func (s *RecyclepediaService) fetchSections(ctx context.Context) ([]model.Section, error) {
	var out []model.Section
	if err := s.api.Get(ctx, "/sections", &out); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetSections(ctx, out); err != nil {
			s.logger.Debug("failed to cache sections", slog.String("error", err.Error()))
		}
	}
	return out, nil
}

// Items returns one page of items.
func (s *RecyclepediaService) Items(ctx context.Context, q ItemQuery) (*model.ItemPage, error) {
	values := q.values()
	key := values.Encode()

	if s.cache != nil {
		if cached, err := s.cache.ItemPage(ctx, key); err == nil {
			s.metrics.IncCatalogCacheHit()
			return cached, nil
		}
		s.metrics.IncCatalogCacheMiss()
	}

	return s.fetchItems(ctx, values)
}

// fetchItems always asks the backend and refreshes the cached page.
func (s *RecyclepediaService) fetchItems(ctx context.Context, values url.Values) (*model.ItemPage, error) {
	var out model.ItemPage
	if err := s.api.Get(ctx, "/items", &out, apiclient.WithQuery(values)); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if out.Items == nil {
		out.Items = []model.Item{}
	}

	if s.cache != nil {
		if err := s.cache.SetItemPage(ctx, values.Encode(), &out); err != nil {
			s.logger.Debug("failed to cache item page", slog.String("error", err.Error()))
		}
	}
	return &out, nil
}

// Item returns one item with its related items and facilities.
func (s *RecyclepediaService) Item(ctx context.Context, id int64) (*model.Item, error) {
	if s.cache != nil {
		if cached, err := s.cache.Item(ctx, id); err == nil {
			s.metrics.IncCatalogCacheHit()
			return cached, nil
		}
		s.metrics.IncCatalogCacheMiss()
	}

	var out model.Item
	if err := s.api.Get(ctx, idPath("/items/%d", id), &out); err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.SetItem(ctx, &out); err != nil {
			s.logger.Debug("failed to cache item", slog.String("error", err.Error()))
		}
	}
	return &out, nil
}

// ErrStopWalk ends a Walk early without error.
var ErrStopWalk = errors.New("stop walk")

// Walk fetches pages starting at q.Page (default 1) until the last page and
// calls fn for each. Returning ErrStopWalk from fn stops cleanly.
func (s *RecyclepediaService) Walk(ctx context.Context, q ItemQuery, fn func(*model.ItemPage) error) error {
	return s.walk(ctx, q, s.Items, fn)
}

func (s *RecyclepediaService) walk(ctx context.Context, q ItemQuery, get func(context.Context, ItemQuery) (*model.ItemPage, error), fn func(*model.ItemPage) error) error {
	if q.Page.Page < 1 {
		q.Page.Page = 1
	}
	for {
		page, err := get(ctx, q)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
		if len(page.Items) == 0 || !page.Pagination.HasMore(q.Page.Page) {
			return nil
		}
		q.Page.Page++
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
