package export

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

const bom = "\uFEFF"

// CSV writes doc as UTF-8 text with a byte-order mark, a metadata preamble,
// a header row and one row per line item.
func CSV(doc Document) []byte {
	summary := Summarize(doc.Rows)

	var buf bytes.Buffer
	buf.WriteString(bom)

	writeLine(&buf, "Title", doc.Title)
	writeLine(&buf, "Generated At", doc.GeneratedAt.UTC().Format(time.RFC3339))
	writeLine(&buf, "Period", periodLabel(doc.Period))
	writeLine(&buf, "Filters", filterLabel(doc.Filters))
	writeLine(&buf, "Records", strconv.Itoa(summary.Count))
	writeLine(&buf, "Total Amount", summary.Total.StringFixed(2))
	buf.WriteString("\n")

	writeLine(&buf, header...)
	for _, r := range doc.Rows {
		writeLine(&buf, r.cells()...)
	}
	return buf.Bytes()
}

func writeLine(buf *bytes.Buffer, cells ...string) {
	for i, c := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(escapeCell(c))
	}
	buf.WriteByte('\n')
}

// escapeCell quotes a cell holding a quote, comma or line break and doubles
// embedded quotes.
func escapeCell(s string) string {
	if !strings.ContainsAny(s, "\",\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func periodLabel(p string) string {
	if p == "" {
		return "All time"
	}
	return p
}

func filterLabel(filters []Filter) string {
	if len(filters) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, f.Label+": "+f.Value)
	}
	return strings.Join(parts, "; ")
}
