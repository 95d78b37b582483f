// Package csvexport adapts a nutrition-tracker CSV export into a batch of
// sheet rows.
//
// The expected shape is the LoseIt daily-summary export:
//
//	Date,Name,Icon,Type,Quantity,Units,Calories,Deleted,Fat (g),Protein (g),...
//
// Exercise rows are excluded (the destination is a nutrition log, not a
// burned-calories log). Because the export has no stable per-row identifier,
// each record gets a synthetic composite key under the Timestamp column:
// date_name_type_quantity. Replacing by that key range is what makes
// re-imports of the same export idempotent.
package csvexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"fitsync/internal/sheet"
)

// KeyColumn is the synthetic composite-key column emitted for every record.
const KeyColumn = "Timestamp"

// columnMap maps export headers to sheet columns. Export headers carry unit
// suffixes; the sheet columns do not.
var columnMap = map[string]string{
	"Name":              "Food_Item",
	"Type":              "Meal_Name",
	"Quantity":          "Quantity",
	"Units":             "Units",
	"Calories":          "Calories",
	"Fat (g)":           "Fat",
	"Protein (g)":       "Protein",
	"Carbohydrates (g)": "Carbohydrates",
	"Sodium (mg)":       "Sodium",
	"Fiber (g)":         "Fiber",
}

// Options configures an Export adapter.
type Options struct {
	// Path of the downloaded export file.
	Path string

	// Encoding selects a legacy charset for old exports: "windows-1252",
	// "latin-1"/"iso-8859-1", or empty for UTF-8.
	Encoding string

	// IncludeExercise keeps rows with Type=Exercise instead of dropping them.
	IncludeExercise bool
}

// Export reads a CSV export file on every FetchBatch call.
type Export struct {
	opts Options
}

// New constructs an Export adapter. The file is opened lazily per fetch so
// the adapter can be built before the download lands.
func New(opts Options) (*Export, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("csvexport: Path is required")
	}
	if _, err := decoderFor(opts.Encoding); err != nil {
		return nil, err
	}
	return &Export{opts: opts}, nil
}

func (e *Export) Name() string { return "csv-export" }

// FetchBatch parses the export into sheet rows.
//
// Edge cases:
//   - Rows missing a Date are emitted anyway (without the composite key);
//     the engine counts and skips them, keeping skip accounting in one place.
//   - Unknown extra columns in the export are ignored rather than widening
//     the sheet with unreviewed producer-specific noise.
func (e *Export) FetchBatch(ctx context.Context) ([]sheet.Row, error) {
	f, err := os.Open(e.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("csvexport: open export: %w", err)
	}
	defer f.Close()

	dec, err := decoderFor(e.opts.Encoding)
	if err != nil {
		return nil, err
	}
	var src io.Reader = f
	if dec != nil {
		src = transform.NewReader(f, dec.NewDecoder())
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvexport: read header: %w", err)
	}

	// Header cells in real exports carry stray whitespace.
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}

	var rows []sheet.Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvexport: read record: %w", err)
		}

		get := func(col string) string {
			i, ok := colIdx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		itemType := get("Type")
		if itemType == "" {
			itemType = "Unknown"
		}
		if !e.opts.IncludeExercise && itemType == "Exercise" {
			continue
		}

		row := sheet.Row{}
		date := get("Date")
		if date != "" {
			row["Date"] = sheet.String(date)
		}
		for src, dst := range columnMap {
			if v := get(src); v != "" {
				row[dst] = sheet.FromCell(v)
			}
		}

		if date != "" {
			name := get("Name")
			if name == "" {
				name = "Unknown"
			}
			row[KeyColumn] = sheet.String(compositeKey(date, name, itemType, get("Quantity")))
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// compositeKey builds the synthetic per-entry key. The parts are joined with
// underscores; the result is intentionally not date-parseable so the key
// normalizer passes it through unchanged.
func compositeKey(date, name, itemType, quantity string) string {
	if quantity == "" {
		quantity = "0"
	}
	return strings.Join([]string{date, name, itemType, quantity}, "_")
}

func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "latin-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	}
	return nil, fmt.Errorf("csvexport: unsupported encoding %q", name)
}
