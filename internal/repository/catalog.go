package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/greencycle/greencycle/internal/model"
)

// ErrItemNotFound is returned when the mirror has no such item.
var ErrItemNotFound = errors.New("item not found in catalog mirror")

// defaultSearchLimit caps unbounded searches.
const defaultSearchLimit = 50

// CatalogFilter narrows an offline item search.
type CatalogFilter struct {
	Text             string
	SectionID        int64
	Recyclable       *bool
	FacilityCategory string
	Limit            int
}

// CatalogStats describes the mirror contents.
type CatalogStats struct {
	Sections   int        `json:"sections"`
	Items      int        `json:"items"`
	LastSynced *time.Time `json:"last_synced,omitempty"`
}

// UpsertSections writes sections to the mirror.
func (r *Repository) UpsertSections(ctx context.Context, sections []model.Section) error {
	if len(sections) == 0 {
		return nil
	}
	query := `
		INSERT INTO catalog_sections (id, name, slug, synced_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, slug = EXCLUDED.slug, synced_at = EXCLUDED.synced_at
	`

	batch := &pgx.Batch{}
	for _, s := range sections {
		batch.Queue(query, s.ID, s.Name, s.Slug)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert sections: %w", err)
	}
	return nil
}

// UpsertItems writes items to the mirror in one transaction.
func (r *Repository) UpsertItems(ctx context.Context, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	query := `
		INSERT INTO catalog_items (
			id, name, description, image_url, section_id, section_name, life_cycle, recycle_way,
			can_recycle, facility_categories, related_item_ids, facilities, related_items, synced_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			section_id = EXCLUDED.section_id,
			section_name = EXCLUDED.section_name,
			life_cycle = EXCLUDED.life_cycle,
			recycle_way = EXCLUDED.recycle_way,
			can_recycle = EXCLUDED.can_recycle,
			facility_categories = EXCLUDED.facility_categories,
			related_item_ids = EXCLUDED.related_item_ids,
			facilities = EXCLUDED.facilities,
			related_items = EXCLUDED.related_items,
			synced_at = EXCLUDED.synced_at
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, it := range items {
		row, err := newItemRow(it)
		if err != nil {
			return err
		}
		batch.Queue(query,
			it.ID,
			it.Name,
			it.Description,
			it.ImageURL,
			row.sectionID,
			it.SectionName,
			it.LifeCycle,
			it.RecycleWay,
			it.CanRecycle,
			pq.Array(row.categories),
			pq.Array(row.relatedIDs),
			row.facilities,
			row.related,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert items: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit items: %w", err)
	}
	return nil
}

type itemRow struct {
	sectionID  *int64
	categories []string
	relatedIDs []int64
	facilities []byte
	related    []byte
}

func newItemRow(it model.Item) (itemRow, error) {
	row := itemRow{categories: []string{}, relatedIDs: []int64{}}
	if it.SectionID > 0 {
		id := it.SectionID
		row.sectionID = &id
	}

	seen := map[string]bool{}
	for _, f := range it.Facilities {
		c := strings.ToLower(strings.TrimSpace(f.Category))
		if c != "" && !seen[c] {
			seen[c] = true
			row.categories = append(row.categories, c)
		}
	}
	for _, rel := range it.RelatedItems {
		row.relatedIDs = append(row.relatedIDs, rel.ID)
	}

	facilities := it.Facilities
	if facilities == nil {
		facilities = []model.Facility{}
	}
	related := it.RelatedItems
	if related == nil {
		related = []model.RelatedItem{}
	}

	var err error
	if row.facilities, err = json.Marshal(facilities); err != nil {
		return itemRow{}, fmt.Errorf("failed to encode facilities for item %d: %w", it.ID, err)
	}
	if row.related, err = json.Marshal(related); err != nil {
		return itemRow{}, fmt.Errorf("failed to encode related items for item %d: %w", it.ID, err)
	}
	return row, nil
}

const itemColumns = `id, name, description, image_url, section_id, section_name, life_cycle, recycle_way,
	can_recycle, facilities, related_items`

// GetItem reads one mirrored item.
func (r *Repository) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM catalog_items WHERE id = $1`

	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// SearchItems queries the mirror, ordered by name.
func (r *Repository) SearchItems(ctx context.Context, f CatalogFilter) ([]model.Item, error) {
	query, args := buildSearch(f)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

func buildSearch(f CatalogFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if text := strings.TrimSpace(f.Text); text != "" {
		p := arg("%" + strings.ToLower(text) + "%")
		conds = append(conds, fmt.Sprintf("(lower(name) LIKE %s OR lower(description) LIKE %s)", p, p))
	}
	if f.SectionID > 0 {
		conds = append(conds, "section_id = "+arg(f.SectionID))
	}
	if f.Recyclable != nil {
		conds = append(conds, "can_recycle = "+arg(*f.Recyclable))
	}
	if c := strings.ToLower(strings.TrimSpace(f.FacilityCategory)); c != "" {
		conds = append(conds, arg(c)+" = ANY(facility_categories)")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := `SELECT ` + itemColumns + ` FROM catalog_items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, id LIMIT " + arg(limit)
	return query, args
}

// Stats counts mirrored rows.
func (r *Repository) Stats(ctx context.Context) (CatalogStats, error) {
	query := `
		SELECT
			(SELECT count(*) FROM catalog_sections),
			(SELECT count(*) FROM catalog_items),
			(SELECT max(synced_at) FROM catalog_items)
	`
	var s CatalogStats
	if err := r.pool.QueryRow(ctx, query).Scan(&s.Sections, &s.Items, &s.LastSynced); err != nil {
		return CatalogStats{}, fmt.Errorf("failed to read catalog stats: %w", err)
	}
	return s, nil
}

func scanItem(row pgx.Row) (*model.Item, error) {
	var (
		item       model.Item
		sectionID  *int64
		facilities []byte
		related    []byte
	)
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.ImageURL,
		&sectionID,
		&item.SectionName,
		&item.LifeCycle,
		&item.RecycleWay,
		&item.CanRecycle,
		&facilities,
		&related,
	)
	if err != nil {
		return nil, err
	}
	if sectionID != nil {
		item.SectionID = *sectionID
	}
	if err := json.Unmarshal(facilities, &item.Facilities); err != nil {
		return nil, fmt.Errorf("decode facilities: %w", err)
	}
	if err := json.Unmarshal(related, &item.RelatedItems); err != nil {
		return nil, fmt.Errorf("decode related items: %w", err)
	}
	return &item, nil
}
