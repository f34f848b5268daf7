package reporting

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// RenderText writes doc as aligned plain text
func RenderText(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s\n", doc.Title)
	fmt.Fprintf(bw, "Généré le %s\n", doc.GeneratedAt.Format("2006-01-02 15:04:05"))

	for _, s := range doc.Sections {
		fmt.Fprintf(bw, "\n%d. %s\n", s.Number, s.Title)
		if len(s.Fields) > 0 {
			width := 0
			for _, f := range s.Fields {
				width = max(width, utf8.RuneCountInString(f.Label))
			}
			for _, f := range s.Fields {
				fmt.Fprintf(bw, "%s : %s\n", pad(f.Label, width), f.Value)
			}
		}
		if s.Table != nil {
			writeTable(bw, s.Table)
		}
	}
	return bw.Flush()
}

func writeTable(w io.Writer, t *Table) {
	widths := make([]int, len(t.Head))
	for i, h := range t.Head {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.Rows {
		for i := range widths {
			if i < len(row) {
				widths[i] = max(widths[i], utf8.RuneCountInString(row[i]))
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = pad(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, " | "), " "))
	}

	line(t.Head)
	seps := make([]string, len(widths))
	for i, n := range widths {
		seps[i] = strings.Repeat("-", n)
	}
	fmt.Fprintln(w, strings.Join(seps, "-+-"))
	for _, row := range t.Rows {
		line(row)
	}
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
