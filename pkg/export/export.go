// Package export flattens a document's visible statements into a
// rectangular table for CSV output. Base columns come first in a fixed
// order, then custom columns in their creation order.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/coolbeans/statext/pkg/statement"
)

// baseHeaders are the fixed leading columns of every export.
var baseHeaders = []string{
	"hierarchy_path",
	"section_ref",
	"section_title",
	"page_number",
	"regulation_text",
	"statement_type",
}

// Table is an assembled export: one header row plus one row per visible
// statement, every row the same width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Build assembles the export table for the given statements and column
// definitions. Superseded statements are skipped. Missing custom values
// render as empty cells.
func Build(statements []*statement.Statement, columns []*statement.ColumnDefinition) *Table {
	headers := make([]string, 0, len(baseHeaders)+len(columns))
	headers = append(headers, baseHeaders...)
	for _, col := range columns {
		headers = append(headers, col.Name)
	}

	rows := make([][]string, 0, len(statements))
	for _, st := range statements {
		if st.IsSuperseded {
			continue
		}
		row := make([]string, 0, len(headers))
		row = append(row,
			st.HierarchyPath,
			st.SectionRef,
			st.SectionTitle,
			strconv.Itoa(st.PageNumber),
			st.RegulationText,
			string(st.Type),
		)
		for _, col := range columns {
			row = append(row, cellValue(st.CustomFields[col.Name]))
		}
		rows = append(rows, row)
	}

	return &Table{Headers: headers, Rows: rows}
}

// WriteCSV writes the table as RFC 4180 CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// cellValue renders a custom field value as a cell. Multi-select values
// join with "; "; everything else uses its natural string form.
func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case []string:
		return strings.Join(val, "; ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, cellValue(item))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprintf("%v", val)
	}
}
