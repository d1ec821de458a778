package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/goliatone/go-freightsync/model"
)

// column renders one table column of T.
type column[T any] struct {
	title string
	value func(T) any
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable[T any](w io.Writer, columns []column[T], items []T) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	header := make(table.Row, 0, len(columns))
	for _, c := range columns {
		header = append(header, c.title)
	}
	tw.AppendHeader(header)

	for _, item := range items {
		row := make(table.Row, 0, len(columns))
		for _, c := range columns {
			row = append(row, c.value(item))
		}
		tw.AppendRow(row)
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d total", len(items))})
	tw.Render()
}

func (a *app) print(w io.Writer, v any, render func()) error {
	if a.jsonOut {
		return printJSON(w, v)
	}
	render()
	return nil
}

// refName shows a populated reference by name and an unresolved one by id.
func refName[T any](ref model.Ref[T], name func(T) string) string {
	if ref.Doc != nil {
		if n := name(*ref.Doc); n != "" {
			return n
		}
	}
	return ref.ID
}

func locationName(l model.Location) string { return l.Name }

func entryName(e model.Entry) string { return e.Name }
