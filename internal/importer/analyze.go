package importer

const sampleSize = 5

type ColumnInfo struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Samples  []string `json:"samples"`
	MappedTo Field    `json:"mapped_to,omitempty"`
}

// Analysis previews how an upload would be imported without writing anything
type Analysis struct {
	TotalRows      int          `json:"total_rows"`
	Columns        []ColumnInfo `json:"columns"`
	CardNameColumn string       `json:"card_name_column"`
	NameFallback   bool         `json:"name_fallback"`
	ValidRows      int          `json:"valid_rows"`
	InvalidRows    int          `json:"invalid_rows"`
	Warnings       []string     `json:"warnings,omitempty"`
}

// Analyze describes the columns of t, their inferred types, a few sample values and
// the canonical field each one maps to.
func Analyze(t *RawTable) *Analysis {
	a := &Analysis{
		TotalRows: len(t.Rows),
		Columns:   make([]ColumnInfo, len(t.Headers)),
	}

	mapping, fallback, err := ColumnMapping(t)
	if err != nil {
		a.Warnings = append(a.Warnings, "Could not identify card name column")
	}
	byColumn := make(map[int]Field, len(mapping))
	for field, col := range mapping {
		byColumn[col] = field
	}

	for i, h := range t.Headers {
		info := ColumnInfo{
			Name:     h,
			Type:     columnKind(t, i).String(),
			Samples:  []string{},
			MappedTo: byColumn[i],
		}
		for r := 0; r < len(t.Rows) && len(info.Samples) < sampleSize; r++ {
			if c := t.Cell(r, i); !c.Absent() {
				info.Samples = append(info.Samples, c.Text())
			}
		}
		a.Columns[i] = info
	}

	if err != nil {
		return a
	}

	a.CardNameColumn = t.Headers[mapping[FieldCardName]]
	a.NameFallback = fallback
	if fallback {
		a.Warnings = append(a.Warnings, "No card name header found, using column \""+a.CardNameColumn+"\"")
	}
	if res, err := Normalize(t); err == nil {
		a.ValidRows = res.ValidRows
		a.InvalidRows = res.InvalidRows
	}
	return a
}
