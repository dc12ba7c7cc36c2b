// Package output renders CLI tables.
package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// newTable returns a tablewriter configured for plain columnar output:
// no borders or separator lines, left-aligned cells, three-space gutters,
// and no wrapping so paths and keys stay on one line.
func newTable(w io.Writer) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetRowSeparator("")
	t.SetColumnSeparator("")
	t.SetCenterSeparator("")
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetTablePadding("   ")
	t.SetNoWhiteSpace(true)
	return t
}

// Table writes headers and rows as a formatted table.
func Table(w io.Writer, headers []string, rows [][]string) {
	t := newTable(w)
	t.SetHeader(headers)
	t.AppendBulk(rows)
	t.Render()
}

// KeyValue writes label/value pairs as a two-column table.
func KeyValue(w io.Writer, pairs [][2]string) {
	t := newTable(w)
	for _, pair := range pairs {
		t.Append(pair[:])
	}
	t.Render()
}
