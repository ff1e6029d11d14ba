package export

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"github.com/billbatista/acasinha-spend/apperr"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const (
	mimeCSV  = "text/csv; charset=utf-8"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ErrUnsupportedFormat = apperr.BadRequest("format must be csv or xlsx")

// ParseFormat accepts csv or xlsx in any case. An empty value means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

type Result struct {
	Format   Format `json:"format"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content"`
	Filename string `json:"filename"`
	Encoding string `json:"encoding,omitempty"`
}

// Render encodes doc. parts are the active filter values used for the
// filename suffix.
func Render(doc Document, format Format, prefix string, parts ...string) (*Result, error) {
	format, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	name := Filename(prefix, parts, doc.GeneratedAt, string(format))
	switch format {
	case FormatXLSX:
		content, err := Workbook(doc)
		if err != nil {
			return nil, err
		}
		return &Result{
			Format:   format,
			MimeType: mimeXLSX,
			Content:  base64.StdEncoding.EncodeToString(content),
			Filename: name,
			Encoding: "base64",
		}, nil
	default:
		return &Result{
			Format:   format,
			MimeType: mimeCSV,
			Content:  string(CSV(doc)),
			Filename: name,
		}, nil
	}
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Filename builds <prefix>_<suffix>_<date>.<ext>. The suffix joins the
// non-empty parts, lower-cased, with every run of other characters turned
// into one hyphen. It is left out when nothing remains.
func Filename(prefix string, parts []string, date time.Time, ext string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	suffix := nonAlphanumeric.ReplaceAllString(strings.ToLower(strings.Join(kept, " ")), "-")
	suffix = strings.Trim(suffix, "-")

	name := prefix
	if suffix != "" {
		name += "_" + suffix
	}
	return name + "_" + date.UTC().Format(time.DateOnly) + "." + ext
}
