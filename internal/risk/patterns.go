package risk

import (
	"bytes"

	"github.com/nao1215/pdfscrub/internal/pdf"
)

// CatalogKeys are the catalog entries reported and removed, in report order.
var CatalogKeys = []pdf.Name{"Names", "OpenAction", "AA", "AcroForm", "JavaScript", "JS", "Outlines"}

// PageKeys are the page entries reported and removed, in report order.
var PageKeys = []pdf.Name{"Annots", "AA", "JS"}

// Pattern is a byte sequence searched for in decoded stream payloads.
type Pattern struct {
	Text string
	// Fold makes the match ASCII case-insensitive.
	Fold bool
}

// StreamPatterns is the risk-pattern set, in report order.
var StreamPatterns = []Pattern{
	{Text: "/JavaScript"},
	{Text: "/JS"},
	{Text: "javascript:"},
	{Text: "function(", Fold: true},
	{Text: "eval(", Fold: true},
}

// MatchPayload returns the texts of the patterns found in data, in pattern
// order.
func MatchPayload(data []byte) []string {
	var lower []byte
	var out []string
	for _, p := range StreamPatterns {
		if !p.Fold {
			if bytes.Contains(data, []byte(p.Text)) {
				out = append(out, p.Text)
			}
			continue
		}
		if lower == nil {
			lower = bytes.ToLower(data)
		}
		if bytes.Contains(lower, bytes.ToLower([]byte(p.Text))) {
			out = append(out, p.Text)
		}
	}
	return out
}

// Risky reports whether data matches any pattern.
func Risky(data []byte) bool {
	return len(MatchPayload(data)) > 0
}
