package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// createCacheEntriesTable creates the durable cache entry table.
func createCacheEntriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "001_create_cache_entries",
		Migrate: func(tx *gorm.DB) error {
			err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS cache_entries (
					key VARCHAR(512) PRIMARY KEY,
					value BYTEA NOT NULL,
					updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
			`).Error
			if err != nil {
				return err
			}

			// The sweeper scans by age.
			return tx.Exec(
				"CREATE INDEX IF NOT EXISTS idx_cache_entries_updated_at ON cache_entries(updated_at);",
			).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS cache_entries;").Error
		},
	}
}
