//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, repo := newTestRepo(t)

	for _, table := range []string{"catalog_sections", "catalog_items", "goose_db_version"} {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, repo.Pool(), table)
			require.NoError(t, err)
			assert.True(t, exists, "table %q should exist after migrations", table)
		})
	}
}

func TestIntegrationMigration_CatalogItemsSchema(t *testing.T) {
	ctx, repo := newTestRepo(t)

	columns := []string{
		"id",
		"name",
		"description",
		"image_url",
		"section_id",
		"section_name",
		"life_cycle",
		"recycle_way",
		"can_recycle",
		"facility_categories",
		"related_item_ids",
		"facilities",
		"related_items",
		"synced_at",
	}
	for _, col := range columns {
		exists, err := columnExists(ctx, repo.Pool(), "catalog_items", col)
		require.NoError(t, err)
		assert.True(t, exists, "column %q should exist in catalog_items", col)
	}
}

func TestIntegrationMigration_CatalogSectionsSchema(t *testing.T) {
	ctx, repo := newTestRepo(t)

	for _, col := range []string{"id", "name", "slug", "synced_at"} {
		exists, err := columnExists(ctx, repo.Pool(), "catalog_sections", col)
		require.NoError(t, err)
		assert.True(t, exists, "column %q should exist in catalog_sections", col)
	}
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}
