package formfill_exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExportFileName(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format string
		page   string
		want   string
	}{
		{"jpg with page", "Rapport Été 2024", "jpg", "3", "Rapport_Ete_2024_page_3_rempli.jpg"},
		{"pdf ignores page", "Rapport Été 2024", "pdf", "3", "Rapport_Ete_2024_rempli.pdf"},
		{"jpg all pages", "Rapport", "jpg", "all", "Rapport_rempli.jpg"},
		{"jpg no page", "Rapport", "jpg", "", "Rapport_rempli.jpg"},
		{"jpg zero page", "Rapport", "jpg", "0", "Rapport_rempli.jpg"},
		{"punctuation collapsed", "  Devis -- n°12 / (final)!  ", "pdf", "", "Devis_n_12_final_rempli.pdf"},
		{"empty name", "", "pdf", "", "document_rempli.pdf"},
		{"only symbols", "***", "jpg", "1", "document_page_1_rempli.jpg"},
		{"non latin removed", "Отчёт 2024", "pdf", "", "2024_rempli.pdf"},
		{"cedilla and umlaut", "Façade Über", "pdf", "", "Facade_Uber_rempli.pdf"},
		{"upper case format", "Plan", "JPG", "2", "Plan_page_2_rempli.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildExportFileName(tt.doc, tt.format, tt.page))
		})
	}
}

func TestExportRequestValidate(t *testing.T) {
	assert.NoError(t, ExportRequest{FormFillID: 1, Format: FormatPDF}.Validate())
	assert.NoError(t, ExportRequest{FormFillID: 1, Format: FormatJPG, Page: AllPages}.Validate())
	assert.ErrorIs(t, ExportRequest{FormFillID: 0, Format: FormatPDF}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, ExportRequest{FormFillID: 1, Format: "png"}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, ExportRequest{FormFillID: 1, Format: FormatJPG, Page: PageNumber(-2)}.Validate(), ErrInvalidRequest)
}

func TestParsePageSelector(t *testing.T) {
	for in, want := range map[string]PageSelector{"": {}, "auto": {}, "ALL": AllPages, "4": PageNumber(4)} {
		got, err := ParsePageSelector(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"0", "-1", "two"} {
		_, err := ParsePageSelector(in)
		assert.ErrorIs(t, err, ErrInvalidRequest, in)
	}
}

func TestParseFormatAndAction(t *testing.T) {
	f, err := ParseFormat(" PDF ")
	assert.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	_, err = ParseFormat("png")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	a, err := ParseAction("share")
	assert.NoError(t, err)
	assert.Equal(t, ActionShare, a)
	_, err = ParseAction("print")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
