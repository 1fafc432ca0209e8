package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/tcg-inventory/internal/models"
)

type SnapshotStore struct {
	db *gorm.DB
}

func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// HasSnapshot reports whether ownerID already has a snapshot for the day starting at day
func (s *SnapshotStore) HasSnapshot(ctx context.Context, ownerID string, day time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.InventoryValueSnapshot{}).
		Where("owner_id = ? AND snapshot_date >= ? AND snapshot_date < ?", ownerID, day, day.Add(24*time.Hour)).
		Count(&count).Error
	return count > 0, err
}

// Save replaces ownerID's snapshot for snap.SnapshotDate
func (s *SnapshotStore) Save(ctx context.Context, snap *models.InventoryValueSnapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND snapshot_date = ?", snap.OwnerID, snap.SnapshotDate).
			Delete(&models.InventoryValueSnapshot{}).Error; err != nil {
			return err
		}
		return tx.Create(snap).Error
	})
}

// History returns ownerID's snapshots taken on or after since, oldest first
func (s *SnapshotStore) History(ctx context.Context, ownerID string, since time.Time) ([]models.InventoryValueSnapshot, error) {
	snapshots := []models.InventoryValueSnapshot{}
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if !since.IsZero() {
		q = q.Where("snapshot_date >= ?", since)
	}
	err := q.Order("snapshot_date ASC").Find(&snapshots).Error
	return snapshots, err
}
