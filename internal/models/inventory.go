package models

import (
	"time"
)

const (
	DefaultCondition = "Near Mint"
	DefaultLanguage  = "English"

	// MaxQuantity caps the copies held in a single record
	MaxQuantity = 9999
)

// InventoryRecord is one owned holding. The identity key is unique per owner so
// repeat imports merge into the same row.
type InventoryRecord struct {
	ID              uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID         string  `json:"owner_id" gorm:"size:64;not null;uniqueIndex:idx_inventory_identity,priority:1;index"`
	CardName        string  `json:"card_name" gorm:"size:255;not null;uniqueIndex:idx_inventory_identity,priority:2"`
	SetCode         string  `json:"set_code" gorm:"size:32;not null;default:'';uniqueIndex:idx_inventory_identity,priority:3"`
	CollectorNumber string  `json:"collector_number" gorm:"size:32;not null;default:'';uniqueIndex:idx_inventory_identity,priority:4"`
	IsFoil          bool    `json:"is_foil" gorm:"not null;default:false;uniqueIndex:idx_inventory_identity,priority:5"`
	Condition       string  `json:"condition" gorm:"size:64;not null;uniqueIndex:idx_inventory_identity,priority:6"`
	SetName         string  `json:"set_name"`
	Language        string  `json:"language" gorm:"default:'English'"`
	Quantity        int     `json:"quantity" gorm:"not null"`
	PurchasePrice   float64 `json:"purchase_price"`
	CurrentPrice    float64 `json:"current_price"`
	TotalValue      float64 `json:"total_value" gorm:"index"`
	PriceChange     float64 `json:"price_change"`

	// Metadata filled in by enrichment
	Rarity        string  `json:"rarity"`
	Colors        string  `json:"colors"`
	ColorIdentity string  `json:"color_identity"`
	ManaCost      string  `json:"mana_cost"`
	ManaValue     float64 `json:"mana_value"`
	TypeLine      string  `json:"type_line"`
	ImageURL      string  `json:"image_url"`
	ImageURLBack  string  `json:"image_url_back"`
	MarketURL     string  `json:"market_url"`

	AlertThreshold   float64    `json:"alert_threshold"`
	SourceTemplateID *uint      `json:"source_template_id,omitempty"`
	LastUpdated      *time.Time `json:"last_updated"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NeedsMetadata reports whether any enrichment field is still empty
func (r *InventoryRecord) NeedsMetadata() bool {
	return r.Rarity == "" || r.Colors == "" || r.ManaCost == "" || r.TypeLine == ""
}

// Recalculate derives total value and price change from the current fields
func (r *InventoryRecord) Recalculate() {
	r.TotalValue = r.CurrentPrice * float64(r.Quantity)
	r.PriceChange = r.CurrentPrice - r.PurchasePrice
}

// InventoryFilter narrows an inventory listing. Zero values mean "no filter".
type InventoryFilter struct {
	Rarity   string
	Color    string
	CardType string
	ManaMin  *float64
	ManaMax  *float64
	Search   string
	SortBy   string
	Order    string
	Page     int
	PageSize int
}

type InventoryPage struct {
	Records    []InventoryRecord `json:"records"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalCount int64             `json:"total_count"`
	TotalPages int               `json:"total_pages"`
}

type InventoryStats struct {
	UniqueCards   int64         `json:"unique_cards"`
	TotalCards    int64         `json:"total_cards"`
	TotalValue    float64       `json:"total_value"`
	AveragePrice  float64       `json:"average_price"`
	FilterOptions FilterOptions `json:"filter_options"`
}

// FilterOptions lists the distinct values present in an owner's inventory
type FilterOptions struct {
	Rarities  []string `json:"rarities"`
	Colors    []string `json:"colors"`
	CardTypes []string `json:"card_types"`
}

type AddCardRequest struct {
	CardName        string  `json:"card_name" binding:"required"`
	SetCode         string  `json:"set_code"`
	SetName         string  `json:"set_name"`
	CollectorNumber string  `json:"collector_number"`
	IsFoil          bool    `json:"is_foil"`
	Condition       string  `json:"condition"`
	Language        string  `json:"language"`
	Quantity        int     `json:"quantity"`
	PurchasePrice   float64 `json:"purchase_price"`
	AlertThreshold  float64 `json:"alert_threshold"`
	Defer           bool    `json:"defer"`
}

type UpdateCardRequest struct {
	Quantity       *int     `json:"quantity"`
	Condition      *string  `json:"condition"`
	PurchasePrice  *float64 `json:"purchase_price"`
	AlertThreshold *float64 `json:"alert_threshold"`
}

type SelectionRequest struct {
	CardIDs []uint `json:"card_ids"`
}
