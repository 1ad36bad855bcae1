package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/greencycle/greencycle/internal/model"
)

// CatalogMirror is the offline store filled by SyncCatalog.
type CatalogMirror interface {
	UpsertSections(ctx context.Context, sections []model.Section) error
	UpsertItems(ctx context.Context, items []model.Item) error
}

// SyncReport summarizes a catalog sync.
type SyncReport struct {
	Sections int `json:"sections"`
	Items    int `json:"items"`
	Pages    int `json:"pages"`
}

// SyncCatalog copies every section and item page into the mirror. Each page
// is written as it arrives, so an interrupted sync keeps what it fetched.
// Reads skip the catalog cache and refresh it with what the backend returned.
func (s *RecyclepediaService) SyncCatalog(ctx context.Context, mirror CatalogMirror, perPage int) (SyncReport, error) {
	var report SyncReport

	sections, err := s.fetchSections(ctx)
	if err != nil {
		return report, err
	}
	if err := mirror.UpsertSections(ctx, sections); err != nil {
		return report, fmt.Errorf("mirror sections: %w", err)
	}
	report.Sections = len(sections)

	q := ItemQuery{Page: Page{Page: 1, PerPage: perPage}}
	fresh := func(ctx context.Context, q ItemQuery) (*model.ItemPage, error) {
		return s.fetchItems(ctx, q.values())
	}
	err = s.walk(ctx, q, fresh, func(page *model.ItemPage) error {
		if err := mirror.UpsertItems(ctx, page.Items); err != nil {
			return fmt.Errorf("mirror items page %d: %w", page.Pagination.CurrentPage, err)
		}
		report.Pages++
		report.Items += len(page.Items)
		s.logger.Debug("catalog page mirrored",
			slog.Int("page", report.Pages),
			slog.Int("items", len(page.Items)),
		)
		return nil
	})
	if err != nil {
		return report, err
	}

	s.logger.Info("catalog synced",
		slog.Int("sections", report.Sections),
		slog.Int("items", report.Items),
		slog.Int("pages", report.Pages),
	)
	return report, nil
}
