package storage_writer

import (
	"path/filepath"
	"strconv"
)

// MaxNameAttempts bounds name allocation: the desired name plus 49 suffixed names.
const MaxNameAttempts = 50

// AddNumericSuffixToFileName inserts _n before the extension of name:
// ("doc.pdf", 2) yields "doc_2.pdf" and ("name", 2) yields "name_2".
func AddNumericSuffixToFileName(name string, n int) string {
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	if base == "" {
		// A dot file such as ".pdf" has no extension to preserve.
		base, ext = name, ""
	}
	return base + "_" + strconv.Itoa(n) + ext
}

// candidateFileName returns the attempt-th name to try for desired.
func candidateFileName(desired string, attempt int) string {
	if attempt == 0 {
		return desired
	}
	return AddNumericSuffixToFileName(desired, attempt)
}
