// Package htmlexport adapts an HTML export page into a batch of sheet rows.
//
// Some upstream services only offer "print view" HTML pages rather than CSV
// downloads. This adapter extracts one table from such a page: header cells
// become column names, each body row becomes one record. Missing cells are
// simply absent from the record; extraction is resilient by design and never
// fails on an individual row.
package htmlexport

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fitsync/internal/sheet"
)

// Options configures an Export adapter.
type Options struct {
	// Path of the saved HTML page.
	Path string

	// TableSelector narrows which table to read (e.g. "table.diary").
	// Empty selects the first table in the document.
	TableSelector string
}

// Export reads an HTML export file on every FetchBatch call.
type Export struct {
	opts Options
}

func New(opts Options) (*Export, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("htmlexport: Path is required")
	}
	return &Export{opts: opts}, nil
}

func (e *Export) Name() string { return "html-export" }

// FetchBatch parses the page and extracts the selected table.
//
// Errors:
//   - Fatal only for unreadable/unparseable documents or when no table
//     matches the selector. Rows with no matching header cells produce no
//     record and are silently dropped, preserving DOM order for the rest.
func (e *Export) FetchBatch(ctx context.Context) ([]sheet.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(e.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("htmlexport: open export: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("htmlexport: parse html: %w", err)
	}

	selector := e.opts.TableSelector
	if selector == "" {
		selector = "table"
	}
	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("htmlexport: no table matches %q", selector)
	}

	columns := headerColumns(table)
	if len(columns) == 0 {
		return nil, fmt.Errorf("htmlexport: table has no header cells")
	}

	var rows []sheet.Row
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			// Header or decoration row.
			return
		}

		row := sheet.Row{}
		cells.Each(func(i int, td *goquery.Selection) {
			if i >= len(columns) || columns[i] == "" {
				return
			}
			text := strings.TrimSpace(td.Text())
			if text == "" {
				return
			}
			row[columns[i]] = sheet.FromCell(text)
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})

	return rows, nil
}

// headerColumns reads th cells (thead if present, else the first row's th
// elements) and sanitizes them into column names.
func headerColumns(table *goquery.Selection) []string {
	var cols []string
	table.Find("th").Each(func(_ int, th *goquery.Selection) {
		cols = append(cols, sanitizeColumn(th.Text()))
	})
	return cols
}

// sanitizeColumn turns arbitrary header text into the sheet column
// convention: trimmed, inner whitespace collapsed to underscores
// ("Sleep Score" -> "Sleep_Score").
func sanitizeColumn(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), "_")
}
