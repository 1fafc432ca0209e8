package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/tcg-inventory/internal/models"
)

type AlertStore struct {
	db *gorm.DB
}

func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// createAlertIfNoRecent inserts alert unless its record already has an unread alert
// triggered at or after since
func createAlertIfNoRecent(tx *gorm.DB, alert *models.PriceAlert, since time.Time) (bool, error) {
	var existing int64
	err := tx.Model(&models.PriceAlert{}).
		Where("record_id = ? AND is_read = ? AND triggered_at >= ?", alert.RecordID, false, since).
		Count(&existing).Error
	if err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}
	if alert.AlertType == "" {
		alert.AlertType = models.AlertTypePriceChange
	}
	if err := tx.Create(alert).Error; err != nil {
		return false, err
	}
	return true, nil
}

// CreateIfNoRecent inserts alert subject to the unread de-duplication window
func (s *AlertStore) CreateIfNoRecent(ctx context.Context, alert *models.PriceAlert, since time.Time) (bool, error) {
	return createAlertIfNoRecent(s.db.WithContext(ctx), alert, since)
}

// List returns ownerID's alerts, unread first and newest first within each group
func (s *AlertStore) List(ctx context.Context, ownerID string, unreadOnly bool) ([]models.PriceAlert, error) {
	alerts := []models.PriceAlert{}
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	err := q.Order("is_read ASC").Order("triggered_at DESC").Order("id DESC").Find(&alerts).Error
	return alerts, err
}

// MarkRead flips the read flag on one of ownerID's alerts
func (s *AlertStore) MarkRead(ctx context.Context, ownerID string, id uint) error {
	var alert models.PriceAlert
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&alert, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&alert).Update("is_read", true).Error
}

func (s *AlertStore) CountUnread(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PriceAlert{}).
		Where("owner_id = ? AND is_read = ?", ownerID, false).
		Count(&count).Error
	return count, err
}
