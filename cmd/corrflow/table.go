package main

import (
	"io"
	"os"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

const maxCellWidth = 48

// renderTable lays out rows under headers. Columns listed in numeric (zero
// based) are right aligned. Terminals get rounded borders; pipes get ASCII.
func renderTable(out io.Writer, headers []string, rows [][]string, numeric ...int) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleDefault)
	if isTerminal(out) {
		tw.SetStyle(table.StyleRounded)
	}

	tw.AppendHeader(toRow(headers, len(headers), 0))
	for _, cells := range rows {
		tw.AppendRow(toRow(cells, len(headers), maxCellWidth))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft, Align: text.AlignLeft}
		if slices.Contains(numeric, i) {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// toRow pads or cuts cells to width columns, shortening long values when
// limit is positive.
func toRow(cells []string, width, limit int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		value := ""
		if i < len(cells) {
			value = cells[i]
		}
		if limit > 0 && text.RuneWidthWithoutEscSequences(value) > limit {
			value = text.Trim(value, limit-1) + "…"
		}
		row[i] = value
	}
	return row
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
