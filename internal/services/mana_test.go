package services

import (
	"testing"
)

func TestManaValue(t *testing.T) {
	tests := []struct {
		cost     string
		expected float64
	}{
		{"{2}{W}{W}", 4},
		{"{3}{W}", 4},
		{"{B}{B}", 2},
		{"{X}{W}{W}", 2},
		{"{X}{X}{R}", 1},
		{"{10}", 10},
		{"{15}", 15},
		{"{W}", 1},
		{"", 0},
		{"{0}", 0},
		{"{2/W}", 2},
		{"{W/U}", 1},
		{"{W/P}{W/P}", 2},
		{"{C}{C}", 2},
		{"{S}{G}", 2},
		{"{1}{R} // {1}{U}", 4},
		{"{g}{u}", 2},
	}

	for _, tt := range tests {
		t.Run(tt.cost, func(t *testing.T) {
			if got := ManaValue(tt.cost); got != tt.expected {
				t.Errorf("ManaValue(%q) = %v, want %v", tt.cost, got, tt.expected)
			}
		})
	}
}

func TestFormatManaCost(t *testing.T) {
	tests := []struct {
		cost     string
		expected string
	}{
		{"{2}{W}{W}", "2WW"},
		{"{1}{G/U}{R}", "1G/UR"},
		{"{X}{R}", "XR"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.cost, func(t *testing.T) {
			if got := FormatManaCost(tt.cost); got != tt.expected {
				t.Errorf("FormatManaCost(%q) = %q, want %q", tt.cost, got, tt.expected)
			}
		})
	}
}

func TestColorCategory(t *testing.T) {
	tests := []struct {
		name     string
		colors   []string
		expected string
	}{
		{"none", []string{}, "Colorless"},
		{"nil", nil, "Colorless"},
		{"green", []string{"G"}, "Green"},
		{"white", []string{"W"}, "White"},
		{"blue", []string{"U"}, "Blue"},
		{"black", []string{"B"}, "Black"},
		{"red", []string{"R"}, "Red"},
		{"two colors", []string{"W", "U"}, "Multicolor"},
		{"unknown", []string{"Q"}, "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColorCategory(tt.colors); got != tt.expected {
				t.Errorf("ColorCategory(%v) = %q, want %q", tt.colors, got, tt.expected)
			}
		})
	}
}

func TestColorIdentity(t *testing.T) {
	tests := []struct {
		colors   []string
		expected string
	}{
		{[]string{"B", "G"}, "BG"},
		{[]string{"G", "W"}, "WG"},
		{[]string{"R", "U", "W"}, "WUR"},
		{[]string{"G", "g", "G"}, "G"},
		{nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := ColorIdentity(tt.colors); got != tt.expected {
				t.Errorf("ColorIdentity(%v) = %q, want %q", tt.colors, got, tt.expected)
			}
		})
	}
}
