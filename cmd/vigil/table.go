package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableSpec describes one rendered table. Rows shorter than Headers are
// padded; a non-empty Footer is printed as a single spanning row.
type tableSpec struct {
	Headers []string
	Rows    [][]string
	Aligns  []columnAlignment
	Footer  string
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	return tableSpec{Headers: headers, Rows: rows, Aligns: aligns}.render()
}

func (s tableSpec) render() string {
	columns := len(s.Headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	tw.AppendHeader(padRow(s.Headers, columns))
	for _, row := range s.Rows {
		tw.AppendRow(padRow(row, columns))
	}
	if s.Footer != "" {
		footer := make(table.Row, columns)
		for i := range footer {
			footer[i] = s.Footer
		}
		tw.AppendFooter(footer, table.RowConfig{AutoMerge: true})
	}

	configs := make([]table.ColumnConfig, columns)
	for i := range configs {
		align := text.AlignLeft
		if i < len(s.Aligns) && s.Aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft, AlignFooter: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func padRow(values []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
