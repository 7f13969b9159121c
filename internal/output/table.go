package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)
}

// ListColumns picks the columns for a list screen: id first, then the
// remaining keys present across the items, sorted.
func ListColumns(items []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, item := range items {
		for k := range item {
			seen[k] = struct{}{}
		}
	}

	cols := make([]string, 0, len(seen))
	for k := range seen {
		if k != "id" {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	if _, ok := seen["id"]; ok {
		cols = append([]string{"id"}, cols...)
	}
	return cols
}

// RenderList writes a resource collection as a table.
func (p *Printer) RenderList(items []map[string]any, columns []string) {
	if len(items) == 0 {
		p.Info("No results.")
		return
	}
	if len(columns) == 0 {
		columns = ListColumns(items)
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cellValue(item[col])
		}
		rows = append(rows, row)
	}

	table := newTable(p.out)
	table.Header(columns)
	table.Bulk(rows)
	table.Render()
}

// RenderDetail writes a single item as field/value rows.
func (p *Printer) RenderDetail(item map[string]any) {
	keys := make([]string, 0, len(item))
	for k := range item {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := item["id"]; ok {
		keys = append([]string{"id"}, keys...)
	}

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, cellValue(item[k])})
	}

	table := newTable(p.out)
	table.Header([]string{"field", "value"})
	table.Bulk(rows)
	table.Render()
}

func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(val)
	}
}
