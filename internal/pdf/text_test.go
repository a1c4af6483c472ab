package pdf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nao1215/pdfscrub/internal/pdf"
)

// TestDecodeTextString tests text string decoding.
func TestDecodeTextString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   pdf.Text
		want string
	}{
		{name: "ascii", in: pdf.Text("Report"), want: "Report"},
		{name: "utf16 with bom", in: pdf.Text("\xfe\xff\x00I\x00n\x00f\x00o\x00r\x00m\x00e\x00 \x00\xf1"), want: "Informe ñ"},
		{name: "utf8 with bom", in: pdf.Text("\xef\xbb\xbfcañón"), want: "cañón"},
		{name: "pdfdoc bullet and euro", in: pdf.Text("\x80 \xa0"), want: "• €"},
		{name: "latin1 range", in: pdf.Text("caf\xe9"), want: "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, pdf.DecodeTextString(tt.in))
		})
	}
}

// TestEncodeTextString tests that encoded strings decode back.
func TestEncodeTextString(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"plain", "documento limpio ✓"} {
		assert.Equal(t, s, pdf.DecodeTextString(pdf.EncodeTextString(s)))
	}
	assert.Equal(t, pdf.Text("plain"), pdf.EncodeTextString("plain"))
}
