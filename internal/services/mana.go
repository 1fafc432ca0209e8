package services

import (
	"strconv"
	"strings"
)

var colorNames = map[string]string{
	"W": "White",
	"U": "Blue",
	"B": "Black",
	"R": "Red",
	"G": "Green",
}

const wubrg = "WUBRG"

// ColorCategory buckets a color list: none is Colorless, one is that color's name,
// more is Multicolor
func ColorCategory(colors []string) string {
	switch len(colors) {
	case 0:
		return "Colorless"
	case 1:
		if name, ok := colorNames[strings.ToUpper(colors[0])]; ok {
			return name
		}
		return "Other"
	default:
		return "Multicolor"
	}
}

// ColorIdentity returns the distinct color letters in WUBRG order, e.g. [G W] -> "WG"
func ColorIdentity(colors []string) string {
	seen := make(map[byte]bool)
	for _, c := range colors {
		c = strings.ToUpper(strings.TrimSpace(c))
		if len(c) == 1 {
			seen[c[0]] = true
		}
	}
	var b strings.Builder
	for i := 0; i < len(wubrg); i++ {
		if seen[wubrg[i]] {
			b.WriteByte(wubrg[i])
		}
	}
	return b.String()
}

// FormatManaCost strips symbol braces for display: "{2}{W}{W}" -> "2WW"
func FormatManaCost(cost string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(cost)
}

// manaSymbols splits a cost into its brace-delimited symbols
func manaSymbols(cost string) []string {
	var symbols []string
	for {
		start := strings.IndexByte(cost, '{')
		if start < 0 {
			return symbols
		}
		end := strings.IndexByte(cost[start:], '}')
		if end < 0 {
			return symbols
		}
		symbols = append(symbols, strings.ToUpper(cost[start+1:start+end]))
		cost = cost[start+end+1:]
	}
}

// symbolValue is the mana value of one symbol. Numbers count their value, X/Y/Z count
// zero, and colored, colorless and snow symbols count one. Hybrid symbols count their
// larger half, so {2/W} is 2 and Phyrexian {W/P} is 1.
func symbolValue(symbol string) float64 {
	if strings.Contains(symbol, "/") {
		best := 0.0
		for _, part := range strings.Split(symbol, "/") {
			if v := symbolValue(part); v > best {
				best = v
			}
		}
		return best
	}
	if n, err := strconv.Atoi(symbol); err == nil {
		return float64(n)
	}
	switch symbol {
	case "X", "Y", "Z":
		return 0
	case "W", "U", "B", "R", "G", "C", "S", "P":
		return 1
	case "½":
		return 0.5
	}
	if strings.HasPrefix(symbol, "H") {
		// half-colored symbols from joke sets, e.g. {HW}
		return 0.5
	}
	return 0
}

// ManaValue totals a mana cost string: "{2}{W}{W}" -> 4, "{X}{W}{W}" -> 2
func ManaValue(cost string) float64 {
	total := 0.0
	for _, symbol := range manaSymbols(cost) {
		total += symbolValue(symbol)
	}
	return total
}
