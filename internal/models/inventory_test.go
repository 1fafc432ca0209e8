package models

import (
	"testing"
)

func TestInventoryRecord_Recalculate(t *testing.T) {
	tests := []struct {
		name          string
		current       float64
		purchase      float64
		quantity      int
		expectedTotal float64
		expectedDelta float64
	}{
		{"gain", 2.5, 1.0, 4, 10.0, 1.5},
		{"loss", 1.0, 3.0, 2, 2.0, -2.0},
		{"unpriced", 0, 0.5, 3, 0, -0.5},
		{"zero quantity", 5, 5, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := InventoryRecord{CurrentPrice: tt.current, PurchasePrice: tt.purchase, Quantity: tt.quantity}
			r.Recalculate()
			if r.TotalValue != tt.expectedTotal {
				t.Errorf("TotalValue = %v, want %v", r.TotalValue, tt.expectedTotal)
			}
			if r.PriceChange != tt.expectedDelta {
				t.Errorf("PriceChange = %v, want %v", r.PriceChange, tt.expectedDelta)
			}
		})
	}
}

func TestInventoryRecord_NeedsMetadata(t *testing.T) {
	complete := InventoryRecord{Rarity: "Rare", Colors: "Red", ManaCost: "R", TypeLine: "Instant"}
	if complete.NeedsMetadata() {
		t.Error("expected complete record to not need metadata")
	}

	missing := complete
	missing.TypeLine = ""
	if !missing.NeedsMetadata() {
		t.Error("expected record without type line to need metadata")
	}
}
