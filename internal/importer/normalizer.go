package importer

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/codyseavey/tcg-inventory/internal/models"
)

var ErrNoNameColumn = errors.New("could not identify card name column")

// Field is a canonical column that uploaded headers are mapped onto
type Field string

const (
	FieldCardName        Field = "card_name"
	FieldSetCode         Field = "set_code"
	FieldSetName         Field = "set_name"
	FieldCollectorNumber Field = "collector_number"
	FieldFoil            Field = "is_foil"
	FieldQuantity        Field = "quantity"
	FieldCondition       Field = "condition"
	FieldLanguage        Field = "language"
	FieldPurchasePrice   Field = "purchase_price"
	FieldRarity          Field = "rarity"
)

// headerSynonyms maps lowercased export headers to canonical fields. Covers the
// Manabox export and the common alternate layouts.
var headerSynonyms = map[string]Field{
	"name":             FieldCardName,
	"card name":        FieldCardName,
	"card":             FieldCardName,
	"set code":         FieldSetCode,
	"edition code":     FieldSetCode,
	"set name":         FieldSetName,
	"set":              FieldSetName,
	"edition":          FieldSetName,
	"collector number": FieldCollectorNumber,
	"collector #":      FieldCollectorNumber,
	"card number":      FieldCollectorNumber,
	"number":           FieldCollectorNumber,
	"foil":             FieldFoil,
	"printing":         FieldFoil,
	"quantity":         FieldQuantity,
	"qty":              FieldQuantity,
	"count":            FieldQuantity,
	"condition":        FieldCondition,
	"language":         FieldLanguage,
	"lang":             FieldLanguage,
	"purchase price":   FieldPurchasePrice,
	"price":            FieldPurchasePrice,
	"rarity":           FieldRarity,
}

var foilTokens = map[string]bool{"foil": true, "true": true, "yes": true, "1": true}

// CanonicalRow is one normalized data row. Invalid rows carry a Reason and are
// counted as errors by the reconciler.
type CanonicalRow struct {
	RowNumber       int     `json:"row_number"`
	CardName        string  `json:"card_name"`
	SetName         string  `json:"set_name"`
	SetCode         string  `json:"set_code"`
	CollectorNumber string  `json:"collector_number"`
	Quantity        int     `json:"quantity"`
	IsFoil          bool    `json:"is_foil"`
	Condition       string  `json:"condition"`
	Language        string  `json:"language"`
	PurchasePrice   float64 `json:"purchase_price"`
	Rarity          string  `json:"rarity"`
	Valid           bool    `json:"valid"`
	Reason          string  `json:"reason,omitempty"`
}

// Record converts the row into an inventory record for ownerID
func (r CanonicalRow) Record(ownerID string) models.InventoryRecord {
	return models.InventoryRecord{
		OwnerID:         ownerID,
		CardName:        r.CardName,
		SetName:         r.SetName,
		SetCode:         r.SetCode,
		CollectorNumber: r.CollectorNumber,
		Quantity:        r.Quantity,
		IsFoil:          r.IsFoil,
		Condition:       r.Condition,
		Language:        r.Language,
		PurchasePrice:   r.PurchasePrice,
		Rarity:          r.Rarity,
	}
}

type NormalizeResult struct {
	Rows []CanonicalRow
	// Mapping lists the source header used for each canonical field
	Mapping      map[Field]string
	NameFallback bool
	ValidRows    int
	InvalidRows  int
}

// ColumnMapping resolves canonical fields to column indexes. The first column that
// maps to a field wins. Without a recognizable name header, the first textual column
// is used instead.
func ColumnMapping(t *RawTable) (map[Field]int, bool, error) {
	mapping := make(map[Field]int)
	for i, h := range t.Headers {
		field, ok := headerSynonyms[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, taken := mapping[field]; !taken {
			mapping[field] = i
		}
	}

	if _, ok := mapping[FieldCardName]; ok {
		return mapping, false, nil
	}

	mapped := make(map[int]bool, len(mapping))
	for _, col := range mapping {
		mapped[col] = true
	}
	// Prefer columns no other field claimed
	for _, onlyUnmapped := range []bool{true, false} {
		for i := range t.Headers {
			if onlyUnmapped && mapped[i] {
				continue
			}
			if columnKind(t, i) == CellString {
				mapping[FieldCardName] = i
				return mapping, true, nil
			}
		}
	}
	return nil, false, ErrNoNameColumn
}

// Normalize maps an uploaded table onto canonical rows, applying defaults for
// missing values. Rows without a card name are returned as invalid.
func Normalize(t *RawTable) (*NormalizeResult, error) {
	if t == nil || len(t.Rows) == 0 {
		return nil, ErrEmptyTable
	}

	mapping, fallback, err := ColumnMapping(t)
	if err != nil {
		return nil, err
	}

	result := &NormalizeResult{
		Rows:         make([]CanonicalRow, 0, len(t.Rows)),
		Mapping:      make(map[Field]string, len(mapping)),
		NameFallback: fallback,
	}
	for field, col := range mapping {
		result.Mapping[field] = t.Headers[col]
	}

	for r := range t.Rows {
		get := func(f Field) Cell {
			col, ok := mapping[f]
			if !ok {
				return Cell{}
			}
			return t.Cell(r, col)
		}

		row := normalizeRow(get)
		// Header is row 1
		row.RowNumber = r + 2
		if row.Valid {
			result.ValidRows++
		} else {
			result.InvalidRows++
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func normalizeRow(get func(Field) Cell) CanonicalRow {
	row := CanonicalRow{
		CardName:        get(FieldCardName).Text(),
		SetName:         get(FieldSetName).Text(),
		SetCode:         strings.ToLower(get(FieldSetCode).Text()),
		CollectorNumber: get(FieldCollectorNumber).Text(),
		Quantity:        parseQuantity(get(FieldQuantity)),
		IsFoil:          parseFoil(get(FieldFoil)),
		Condition:       models.DefaultCondition,
		Language:        models.DefaultLanguage,
		PurchasePrice:   parsePrice(get(FieldPurchasePrice)),
		Valid:           true,
	}

	if c := get(FieldCondition); !c.Absent() {
		row.Condition = TitleCase(c.Text())
	}
	if l := get(FieldLanguage); !l.Absent() {
		row.Language = normalizeLanguage(l.Text())
	}
	if r := get(FieldRarity); !r.Absent() {
		row.Rarity = TitleCase(r.Text())
	}

	if row.CardName == "" {
		row.Valid = false
		row.Reason = "missing card name"
	}
	return row
}

// parseQuantity reads a whole copy count in [0, MaxQuantity]. Anything else is 1.
func parseQuantity(c Cell) int {
	switch c.Kind {
	case CellNumber:
		if math.IsNaN(c.Num) || c.Num < 0 || c.Num > models.MaxQuantity || c.Num != math.Trunc(c.Num) {
			return 1
		}
		return int(c.Num)
	case CellString:
		if n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(c.Raw), "x")); err == nil && n >= 0 && n <= models.MaxQuantity {
			return n
		}
	}
	return 1
}

func parseFoil(c Cell) bool {
	switch c.Kind {
	case CellBool:
		return c.Bool
	case CellAbsent:
		return false
	default:
		return foilTokens[strings.ToLower(c.Text())]
	}
}

// parsePrice reads a purchase price, ignoring currency symbols and thousands
// separators. A lone comma followed by one or two digits is a decimal comma.
// Unparseable or negative prices are 0.
func parsePrice(c Cell) float64 {
	if c.Kind == CellNumber {
		if math.IsNaN(c.Num) || math.IsInf(c.Num, 0) || c.Num < 0 {
			return 0
		}
		return c.Num
	}

	text := c.Text()
	if strings.HasPrefix(strings.TrimLeft(text, " $€£¥"), "-") {
		return 0
	}
	if strings.Count(text, ",") == 1 && !strings.Contains(text, ".") {
		i := strings.Index(text, ",")
		if frac := digitsOnly(text[i+1:]); frac != "" && len(frac) <= 2 {
			text = text[:i] + "." + text[i+1:]
		}
	}

	digits := digitsOnly(text)
	if digits == "" {
		return 0
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return 0
	}
	return d.Round(2).InexactFloat64()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeLanguage(s string) string {
	switch strings.ToLower(s) {
	case "en", "eng", "english":
		return models.DefaultLanguage
	}
	return s
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.ReplaceAll(h, "_", " "))
	return strings.Join(strings.Fields(h), " ")
}

// columnKind reports the dominant type of a column. Any string value makes the
// column textual.
func columnKind(t *RawTable, col int) CellKind {
	kind := CellAbsent
	for r := range t.Rows {
		c := t.Cell(r, col)
		switch {
		case c.Kind == CellString:
			return CellString
		case c.Kind != CellAbsent && kind == CellAbsent:
			kind = c.Kind
		case c.Kind != CellAbsent && c.Kind != kind:
			// Mixed numbers and booleans read as text
			return CellString
		}
	}
	return kind
}

// TitleCase title-cases s after turning underscores into spaces, e.g. "near_mint" -> "Near Mint"
func TitleCase(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(s)
}
