package formfill_exporter

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const filledSuffix = "_rempli"

// stripDiacritics removes combining marks after canonical decomposition.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// sanitizeBaseName strips diacritics, collapses every run of characters other
// than ASCII letters and digits into one underscore and trims underscores.
func sanitizeBaseName(name string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range stripDiacritics(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingUnderscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingUnderscore = false
			b.WriteRune(r)
			continue
		}
		pendingUnderscore = true
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}

// BuildExportFileName returns the file name of an exported document, e.g.
// ("Rapport Été 2024", "jpg", "3") yields "Rapport_Ete_2024_page_3_rempli.jpg".
// The page suffix is only added to JPEG exports of an explicit numeric page.
func BuildExportFileName(documentName, format, page string) string {
	name := sanitizeBaseName(documentName)
	ext := strings.ToLower(format)
	if ext != string(FormatJPG) {
		ext = string(FormatPDF)
	}
	if ext == string(FormatJPG) {
		if n, err := strconv.Atoi(page); err == nil && n > 0 {
			name += "_page_" + strconv.Itoa(n)
		}
	}
	return name + filledSuffix + "." + ext
}
