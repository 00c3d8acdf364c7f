// internal/ingest/decode.go
package ingest

import (
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// DecodePayload converts raw payload bytes from the vendor's declared
// encoding to UTF-8 before JSON decoding. Exports from older pharmacy
// systems still arrive in windows-125x / iso-8859 encodings.
func DecodePayload(r io.Reader, label string) ([]byte, error) {
	l := normalizeCharset(label)
	if l == "" || l == "utf-8" {
		return io.ReadAll(r)
	}
	cr, err := charset.NewReaderLabel(l, r)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(cr)
}

// normalizeCharset maps the odd labels vendors put in their exports onto
// names charset.NewReaderLabel recognizes.
func normalizeCharset(cs string) string {
	c := strings.TrimSpace(strings.ToLower(cs))
	switch c {
	case "latin 1", "latin-1", "latin1", "iso8859-1", "iso_8859-1":
		return "iso-8859-1"
	case "latin ii", "latin-2", "latin2", "iso8859-2", "iso_8859-2":
		return "iso-8859-2"
	case "cp1252", "windows1252", "win-1252", "ansi":
		return "windows-1252"
	case "cp1250", "windows1250", "win-1250":
		return "windows-1250"
	default:
		return c
	}
}
