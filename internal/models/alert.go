package models

import (
	"time"
)

const AlertTypePriceChange = "price_change"

// PriceAlert records a price swing that crossed a holding's alert threshold
type PriceAlert struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RecordID       uint      `json:"record_id" gorm:"not null;index:idx_alert_record_read,priority:1"`
	OwnerID        string    `json:"owner_id" gorm:"size:64;not null;index"`
	CardName       string    `json:"card_name"`
	AlertType      string    `json:"alert_type" gorm:"not null;default:'price_change'"`
	ThresholdValue float64   `json:"threshold_value"`
	CurrentValue   float64   `json:"current_value"` // observed percent change
	OldPrice       float64   `json:"old_price"`
	NewPrice       float64   `json:"new_price"`
	TriggeredAt    time.Time `json:"triggered_at" gorm:"not null;index:idx_alert_record_read,priority:3"`
	IsRead         bool      `json:"is_read" gorm:"not null;default:false;index:idx_alert_record_read,priority:2"`
}
