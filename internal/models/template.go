package models

import (
	"time"
)

// CollectionTemplate is a shareable snapshot of imported rows. TemplateHash is a
// content hash of the creator, name and rows, so an owner creating the same template
// twice is a no-op.
type CollectionTemplate struct {
	ID           uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string          `json:"name" gorm:"not null"`
	Description  string          `json:"description"`
	TemplateHash string          `json:"template_hash" gorm:"size:64;not null;uniqueIndex"`
	CreatedBy    string          `json:"created_by" gorm:"size:64;not null;index"`
	IsPublic     bool            `json:"is_public" gorm:"not null;default:false"`
	EntryCount   int             `json:"entry_count"`
	Entries      []TemplateEntry `json:"entries,omitempty" gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time       `json:"created_at"`
}

type TemplateEntry struct {
	ID              uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	TemplateID      uint    `json:"template_id" gorm:"not null;index"`
	Position        int     `json:"position"`
	CardName        string  `json:"card_name" gorm:"not null"`
	SetName         string  `json:"set_name"`
	SetCode         string  `json:"set_code"`
	CollectorNumber string  `json:"collector_number"`
	IsFoil          bool    `json:"is_foil"`
	Condition       string  `json:"condition"`
	Language        string  `json:"language"`
	Quantity        int     `json:"quantity"`
	PurchasePrice   float64 `json:"purchase_price"`
	Rarity          string  `json:"rarity"`
	EntryHash       string  `json:"entry_hash" gorm:"size:64"`
}

// TemplateInstance records that an owner imported a template. One per owner and template.
type TemplateInstance struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID      string    `json:"owner_id" gorm:"size:64;not null;uniqueIndex:idx_instance_owner_template"`
	TemplateID   uint      `json:"template_id" gorm:"not null;uniqueIndex:idx_instance_owner_template"`
	InstanceName string    `json:"instance_name"`
	ImportedAt   time.Time `json:"imported_at"`
}
