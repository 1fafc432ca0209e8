package models

import (
	"time"
)

// InventoryValueSnapshot stores one owner's daily inventory value for historical tracking
type InventoryValueSnapshot struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID      string    `json:"owner_id" gorm:"size:64;not null;uniqueIndex:idx_snapshot_owner_date"`
	SnapshotDate time.Time `json:"snapshot_date" gorm:"not null;uniqueIndex:idx_snapshot_owner_date"`
	TotalCards   int64     `json:"total_cards"`
	UniqueCards  int64     `json:"unique_cards"`
	TotalValue   float64   `json:"total_value"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValueHistoryResponse is the API response for value history
type ValueHistoryResponse struct {
	Snapshots []InventoryValueSnapshot `json:"snapshots"`
	Period    string                   `json:"period"` // "week", "month", "year", "all"
}
