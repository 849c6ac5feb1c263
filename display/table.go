package display

import (
	"io"

	"github.com/pterm/pterm"
)

// Table renders rows to w; the first row is the header
func Table(w io.Writer, rows pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render()
}
