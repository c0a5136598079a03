// Package output renders console and command output.
package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// newTable creates a tablewriter with the borderless style used for all
// console output.
func newTable(w io.Writer, columnSep string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(columnSep)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// Table writes rows under the given headers.
func Table(w io.Writer, headers []string, rows [][]string) {
	table := newTable(w, "")
	table.SetHeader(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

// KeyValues writes a two-column key/value listing.
func KeyValues(w io.Writer, pairs [][2]string) {
	table := newTable(w, ":")
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
}
