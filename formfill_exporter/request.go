package formfill_exporter

import (
	"fmt"
	"strconv"
	"strings"
)

// Format is the requested document format.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatJPG Format = "jpg"
)

// ParseFormat parses "pdf" or "jpg", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatJPG:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, s)
	}
}

// PageSelector selects the page(s) of a JPEG export. The zero value lets the
// engine decide from the document's page count.
type PageSelector struct {
	all    bool
	number int
}

// AllPages selects every page of the document.
var AllPages = PageSelector{all: true}

// PageNumber selects the single 1-based page n.
func PageNumber(n int) PageSelector {
	return PageSelector{number: n}
}

// ParsePageSelector parses "", "auto", "all" or a page number.
func ParsePageSelector(s string) (PageSelector, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "auto":
		return PageSelector{}, nil
	case "all":
		return AllPages, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return PageSelector{}, fmt.Errorf("%w: invalid page %q", ErrInvalidRequest, s)
	}
	return PageNumber(n), nil
}

func (p PageSelector) IsAuto() bool { return !p.all && p.number == 0 }
func (p PageSelector) IsAll() bool  { return p.all }

// Number returns the selected page and whether a single page is selected.
func (p PageSelector) Number() (int, bool) {
	return p.number, !p.all && p.number != 0
}

// String returns the query value of the selector: "", "all" or the page number.
func (p PageSelector) String() string {
	switch {
	case p.all:
		return "all"
	case p.number != 0:
		return strconv.Itoa(p.number)
	default:
		return ""
	}
}

// ExportRequest describes one export download.
type ExportRequest struct {
	FormFillID   int64
	Format       Format
	Page         PageSelector
	DocumentName string
}

// Validate reports whether the request can be sent.
func (r ExportRequest) Validate() error {
	if r.FormFillID <= 0 {
		return fmt.Errorf("%w: form fill id must be positive, got %d", ErrInvalidRequest, r.FormFillID)
	}
	if r.Format != FormatPDF && r.Format != FormatJPG {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, r.Format)
	}
	if n, ok := r.Page.Number(); ok && n < 1 {
		return fmt.Errorf("%w: page must be positive, got %d", ErrInvalidRequest, n)
	}
	return nil
}

// pageParam is the page query value; PDF exports never carry one.
func (r ExportRequest) pageParam() string {
	if r.Format == FormatPDF {
		return ""
	}
	return r.Page.String()
}

// FileName is the user-visible name of the exported file.
func (r ExportRequest) FileName() string {
	return BuildExportFileName(r.DocumentName, string(r.Format), r.pageParam())
}
