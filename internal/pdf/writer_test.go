package pdf_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/pdfscrub/internal/pdf"
	"github.com/nao1215/pdfscrub/internal/pdf/pdftest"
)

func roundTrip(t *testing.T, doc *pdf.Document, opts pdf.WriteOptions) *pdf.Document {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, pdf.Write(&buf, doc, opts))
	out, err := pdf.Parse(buf.Bytes())
	require.NoError(t, err)
	return out
}

// TestWrite tests serialization followed by parsing.
func TestWrite(t *testing.T) {
	t.Parallel()

	t.Run("classic table round trip keeps pages and payloads", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Document(t, 3)
		got := roundTrip(t, doc, pdf.WriteOptions{})

		require.Equal(t, 3, got.PageCount())
		for i, p := range got.Pages() {
			strm, ok := got.Resolve(p.Contents()).(*pdf.Stream)
			require.True(t, ok)
			data, err := strm.Decode()
			require.NoError(t, err)

			want, err := doc.Resolve(doc.Pages()[i].Contents()).(*pdf.Stream).Decode()
			require.NoError(t, err)
			assert.Equal(t, want, data)
		}
	})

	t.Run("object streams round trip", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Document(t, 2)
		var buf bytes.Buffer
		require.NoError(t, pdf.Write(&buf, doc, pdf.WriteOptions{ObjectStreams: true}))
		assert.Contains(t, buf.String(), "/ObjStm")
		assert.Contains(t, buf.String(), "/XRef")

		got, err := pdf.Parse(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, 2, got.PageCount())
		assert.NotEmpty(t, got.Compressed())
	})

	t.Run("no object streams without the option", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, pdf.Write(&buf, pdftest.Document(t, 1), pdf.WriteOptions{}))
		assert.NotContains(t, buf.String(), "/ObjStm")
		assert.Contains(t, buf.String(), "xref")
	})

	t.Run("strings and numbers survive", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Document(t, 1)
		info := doc.Add(pdf.Dict{
			"Title":  pdf.Text("a (nested) \\ string\n\x00\xff"),
			"Real":   pdf.Number(0.25),
			"Negint": pdf.Number(-3),
		})
		doc.Trailer()["Info"] = info

		got := roundTrip(t, doc, pdf.WriteOptions{})
		d := got.Info()
		require.NotNil(t, d)
		assert.Equal(t, pdf.Text("a (nested) \\ string\n\x00\xff"), d.Get("Title"))
		assert.Equal(t, pdf.Number(0.25), d.Get("Real"))
		assert.Equal(t, pdf.Number(-3), d.Get("Negint"))
	})

	t.Run("unreferenced objects are not written", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Risky(t)
		got := roundTrip(t, doc, pdf.WriteOptions{})
		for _, obj := range got.Streams() {
			data, err := obj.Value.(*pdf.Stream).Decode()
			require.NoError(t, err)
			assert.NotContains(t, string(data), "launchURL")
		}
	})

	t.Run("missing catalog is rejected", func(t *testing.T) {
		t.Parallel()

		doc := pdf.New()
		doc.Add(pdf.Dict{})
		err := pdf.Write(&bytes.Buffer{}, doc, pdf.WriteOptions{})
		assert.ErrorIs(t, err, pdf.ErrNoCatalog)
	})

	t.Run("direct stream is rejected", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Document(t, 1)
		doc.Catalog()["Bad"] = pdf.NewStream(nil, []byte("x"))
		err := pdf.Write(&bytes.Buffer{}, doc, pdf.WriteOptions{})
		assert.ErrorIs(t, err, pdf.ErrDirectStream)
	})
}
