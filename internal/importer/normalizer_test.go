package importer

import (
	"errors"
	"strings"
	"testing"
)

func mustTable(t *testing.T, csv string) *RawTable {
	t.Helper()
	table, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	return table
}

func TestNormalize_ManaboxExport(t *testing.T) {
	table := mustTable(t, "Name,Set code,Set name,Collector number,Foil,Rarity,Quantity,Purchase price,Condition,Language\n"+
		"Lightning Bolt,2XM,Double Masters,117,foil,uncommon,2,$1.50,lightly_played,en\n"+
		"Ponder,m12,Magic 2012,73,normal,common,1,0.25,near_mint,ja\n")

	res, err := Normalize(table)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.NameFallback {
		t.Error("expected Name header to be recognized")
	}
	if res.ValidRows != 2 || res.InvalidRows != 0 {
		t.Errorf("expected 2 valid rows, got %d valid %d invalid", res.ValidRows, res.InvalidRows)
	}

	bolt := res.Rows[0]
	want := CanonicalRow{
		RowNumber:       2,
		CardName:        "Lightning Bolt",
		SetName:         "Double Masters",
		SetCode:         "2xm",
		CollectorNumber: "117",
		Quantity:        2,
		IsFoil:          true,
		Condition:       "Lightly Played",
		Language:        "English",
		PurchasePrice:   1.50,
		Rarity:          "Uncommon",
		Valid:           true,
	}
	if bolt != want {
		t.Errorf("unexpected row:\n got  %+v\n want %+v", bolt, want)
	}

	if ponder := res.Rows[1]; ponder.IsFoil || ponder.Language != "ja" || ponder.Condition != "Near Mint" {
		t.Errorf("unexpected second row %+v", ponder)
	}
}

func TestNormalize_AlternateHeaders(t *testing.T) {
	table := mustTable(t, "Card Name,Set,Set Code,Collector Number,Qty,Purchase Price,Printing\n"+
		"Sol Ring,Commander 2021,C21,263,4,\"1,200.00\",Foil\n")

	res, err := Normalize(table)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	row := res.Rows[0]
	if row.SetName != "Commander 2021" || row.SetCode != "c21" {
		t.Errorf("unexpected set fields %q / %q", row.SetName, row.SetCode)
	}
	if row.Quantity != 4 || !row.IsFoil {
		t.Errorf("unexpected quantity/foil %d / %v", row.Quantity, row.IsFoil)
	}
	if row.PurchasePrice != 1200 {
		t.Errorf("expected thousands separator to be ignored, got %v", row.PurchasePrice)
	}
	if res.Mapping[FieldQuantity] != "Qty" {
		t.Errorf("expected Qty to map to quantity, got %q", res.Mapping[FieldQuantity])
	}
}

func TestNormalize_Defaults(t *testing.T) {
	table := mustTable(t, "Name,Quantity,Purchase price,Foil\n"+
		"Opt,,,\n"+
		"Brainstorm,abc,free,maybe\n")

	res, err := Normalize(table)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	for _, row := range res.Rows {
		if row.Quantity != 1 || row.PurchasePrice != 0 || row.IsFoil {
			t.Errorf("%s: expected defaults, got qty=%d price=%v foil=%v", row.CardName, row.Quantity, row.PurchasePrice, row.IsFoil)
		}
		if row.Condition != "Near Mint" || row.Language != "English" {
			t.Errorf("%s: unexpected condition/language %q / %q", row.CardName, row.Condition, row.Language)
		}
	}
}

func TestNormalize_InvalidRows(t *testing.T) {
	table := mustTable(t, "Name,Quantity\n"+
		"Opt,1\n"+
		",3\n"+
		"nan,2\n")

	res, err := Normalize(table)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.ValidRows != 1 || res.InvalidRows != 2 {
		t.Fatalf("expected 1 valid and 2 invalid rows, got %d / %d", res.ValidRows, res.InvalidRows)
	}
	if bad := res.Rows[1]; bad.Valid || bad.RowNumber != 3 || bad.Reason == "" {
		t.Errorf("unexpected invalid row %+v", bad)
	}
}

func TestNormalize_NameFallback(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantCol string
		wantErr error
	}{
		{
			name:    "first textual column",
			csv:     "Qty,Title,Notes\n2,Opt,binder\n1,Ponder,box\n",
			wantCol: "Title",
		},
		{
			name:    "skips numeric and boolean columns",
			csv:     "Count,Owned,Description\n2,true,Opt\n",
			wantCol: "Description",
		},
		{
			name:    "no textual column",
			csv:     "Count,Price\n2,1.5\n",
			wantErr: ErrNoNameColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Normalize(mustTable(t, tt.csv))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if !res.NameFallback || res.Mapping[FieldCardName] != tt.wantCol {
				t.Errorf("expected fallback to %q, got %q (fallback=%v)", tt.wantCol, res.Mapping[FieldCardName], res.NameFallback)
			}
		})
	}
}

func TestNormalize_FirstDuplicateHeaderWins(t *testing.T) {
	table := mustTable(t, "Name,Card Name\nOpt,Ponder\n")
	res, err := Normalize(table)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.Rows[0].CardName != "Opt" {
		t.Errorf("expected first name column to win, got %q", res.Rows[0].CardName)
	}
}

func TestAnalyze(t *testing.T) {
	table := mustTable(t, "Name,Quantity,Foil\n"+
		"A,1,true\nB,2,false\nC,3,true\nD,4,false\nE,5,true\nF,6,false\n,7,true\n")

	a := Analyze(table)
	if a.TotalRows != 7 {
		t.Errorf("expected 7 rows, got %d", a.TotalRows)
	}
	if a.CardNameColumn != "Name" || a.ValidRows != 6 || a.InvalidRows != 1 {
		t.Errorf("unexpected summary %+v", a)
	}
	if len(a.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(a.Columns))
	}
	name := a.Columns[0]
	if name.Type != "string" || len(name.Samples) != 5 || name.Samples[0] != "A" || name.MappedTo != FieldCardName {
		t.Errorf("unexpected name column %+v", name)
	}
	if a.Columns[1].Type != "number" || a.Columns[2].Type != "boolean" {
		t.Errorf("unexpected inferred types %s / %s", a.Columns[1].Type, a.Columns[2].Type)
	}
}

func TestAnalyze_NoNameColumn(t *testing.T) {
	a := Analyze(mustTable(t, "Count\n1\n"))
	if a.CardNameColumn != "" || len(a.Warnings) == 0 {
		t.Errorf("expected warning without a name column, got %+v", a)
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"near_mint", "Near Mint"},
		{"NEAR_MINT", "Near Mint"},
		{"lightly played", "Lightly Played"},
		{"mythic", "Mythic"},
		{"", ""},
		{"  _  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := TitleCase(tt.input); got != tt.expected {
				t.Errorf("TitleCase(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"3", 3},
		{"x4", 4},
		{"0", 0},
		{"9999", 9999},
		{"10000", 1},
		{"1e20", 1},
		{"99999999999999999999", 1},
		{"inf", 1},
		{"2.5", 1},
		{"-2", 1},
		{"x-2", 1},
		{"lots", 1},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := parseQuantity(ParseCell(tt.raw)); got != tt.want {
				t.Errorf("parseQuantity(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_OversizedQuantity(t *testing.T) {
	table := mustTable(t, "Name,Quantity\nOpt,1e20\nPonder,99999999999999999999\n")
	res, err := Normalize(table)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	for _, row := range res.Rows {
		if row.Quantity != 1 {
			t.Errorf("%s: expected oversized quantity to default to 1, got %d", row.CardName, row.Quantity)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"1.5", 1.5},
		{"$1.50", 1.5},
		{"1,200.00", 1200},
		{"1,200", 1200},
		{"1,5", 1.5},
		{"€2,75", 2.75},
		{"-$5.00", 0},
		{"$-5.00", 0},
		{"-5", 0},
		{"free", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := parsePrice(ParseCell(tt.raw)); got != tt.want {
				t.Errorf("parsePrice(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseFoil(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"foil", true},
		{"Yes", true},
		{"1", true},
		{"true", true},
		{"etched", false},
		{"normal", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := parseFoil(ParseCell(tt.raw)); got != tt.want {
				t.Errorf("parseFoil(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
