package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheEntryModel is the GORM model for the cache_entries table. The value
// column carries the cache envelope as an opaque blob; TTL interpretation
// stays in the cache layer.
type CacheEntryModel struct {
	Key       string    `gorm:"type:varchar(512);primaryKey"`
	Value     []byte    `gorm:"type:bytea;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index"`
}

// TableName returns the table name for CacheEntryModel.
func (CacheEntryModel) TableName() string {
	return "cache_entries"
}

// Store implements domain.CacheStorage on PostgreSQL, for deployments that
// want cache entries to survive restarts without a Redis instance.
type Store struct {
	db *gorm.DB
}

// NewStore creates a PostgreSQL-backed cache store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetItem returns the raw entry for key, or nil when absent.
func (s *Store) GetItem(ctx context.Context, key string) ([]byte, error) {
	var model CacheEntryModel
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}

		return nil, fmt.Errorf("getting cache entry %s: %w", key, err)
	}

	return model.Value, nil
}

// SetItem stores the raw entry, replacing any prior value for the key.
func (s *Store) SetItem(ctx context.Context, key string, value []byte) error {
	model := CacheEntryModel{Key: key, Value: value}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("upserting cache entry %s: %w", key, err)
	}

	return nil
}

// RemoveItem deletes one entry. Absent keys are a no-op.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&CacheEntryModel{}).Error
	if err != nil {
		return fmt.Errorf("deleting cache entry %s: %w", key, err)
	}

	return nil
}

// MultiRemove deletes a batch of entries.
func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&CacheEntryModel{}).Error
	if err != nil {
		return fmt.Errorf("deleting %d cache entries: %w", len(keys), err)
	}

	return nil
}

// GetAllKeys lists every stored cache key.
func (s *Store) GetAllKeys(ctx context.Context) ([]string, error) {
	keys := []string{}
	err := s.db.WithContext(ctx).
		Model(&CacheEntryModel{}).
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("listing cache keys: %w", err)
	}

	return keys, nil
}
