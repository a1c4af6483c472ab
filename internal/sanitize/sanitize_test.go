package sanitize

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pdf"
	"github.com/nao1215/pdfscrub/internal/pdf/pdftest"
	"github.com/nao1215/pdfscrub/internal/risk"
)

func newTestSanitizer(opts ...Option) (*Sanitizer, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return New(append([]Option{WithLogger(logger)}, opts...)...), &buf
}

func structuralFindings(result model.ScanResult) []model.Finding {
	var out []model.Finding
	for _, f := range result.Findings {
		if f.Location.Kind == model.LocationCatalog || f.Location.Kind == model.LocationPage {
			out = append(out, f)
		}
	}
	return out
}

// TestSanitize tests removal of risk keys and streams.
func TestSanitize(t *testing.T) {
	t.Parallel()

	t.Run("removes OpenAction, AcroForm, Annots and AA", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Document(t, 1)
		catalog := doc.Catalog()
		catalog["OpenAction"] = pdf.Dict{"S": pdf.Name("JavaScript"), "JS": pdf.Text("app.alert(1)")}
		catalog["AcroForm"] = pdf.Dict{"Fields": pdf.Array{}}
		page := doc.Pages()[0]
		page.Dict["Annots"] = pdf.Array{doc.Add(pdf.Dict{"Subtype": pdf.Name("Link")})}
		page.Dict["AA"] = pdf.Dict{}

		s, _ := newTestSanitizer()
		res := s.Sanitize(doc)

		assert.False(t, doc.Catalog().Has("OpenAction"))
		assert.False(t, doc.Catalog().Has("AcroForm"))
		assert.False(t, doc.Pages()[0].Dict.Has("Annots"))
		assert.False(t, doc.Pages()[0].Dict.Has("AA"))
		assert.Equal(t, 1, doc.PageCount())
		assert.Equal(t, []model.Removal{
			{Location: model.CatalogLocation(), Key: "OpenAction"},
			{Location: model.CatalogLocation(), Key: "AcroForm"},
			{Location: model.PageLocation(1), Key: "Annots"},
			{Location: model.PageLocation(1), Key: "AA"},
		}, res.Removals)
		assert.False(t, res.ObjectStreams)
	})

	t.Run("no structural findings remain", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Risky(t)
		scanner := risk.New()
		require.NotEmpty(t, structuralFindings(scanner.Scan(doc)))

		s, _ := newTestSanitizer()
		res := s.Sanitize(doc)

		assert.True(t, res.Changed())
		assert.Empty(t, structuralFindings(scanner.Scan(doc)))
		assert.Equal(t, 2, doc.PageCount())
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Risky(t)
		scanner := risk.New()
		s, _ := newTestSanitizer()

		s.Sanitize(doc)
		first := scanner.Scan(doc)
		second := s.Sanitize(doc)

		assert.Empty(t, second.Removals)
		assert.Zero(t, second.StreamsEmptied)
		assert.False(t, second.Changed())
		assert.Equal(t, first, scanner.Scan(doc))
	})

	t.Run("empties risky streams and keeps their dictionary", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Document(t, 1)
		ref := doc.Add(pdf.NewStream(pdf.Dict{"Filter": pdf.Name("FlateDecode"), "Custom": pdf.Number(1)},
			pdf.Deflate([]byte("var f = function(){ return 1 };"))))

		s, logs := newTestSanitizer()
		res := s.Sanitize(doc)
		assert.Equal(t, 1, res.StreamsEmptied)

		v, ok := doc.Lookup(ref.ID())
		require.True(t, ok)
		strm := v.(*pdf.Stream)
		assert.Equal(t, pdf.Number(1), strm.Dict.Get("Custom"))
		data, err := strm.Decode()
		require.NoError(t, err)
		assert.Empty(t, data)
		assert.Contains(t, logs.String(), "stream emptied")

		page, err := doc.Resolve(doc.Pages()[0].Contents()).(*pdf.Stream).Decode()
		require.NoError(t, err)
		assert.NotEmpty(t, page, "harmless content must survive")
	})

	t.Run("undecodable stream is left untouched", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Document(t, 1)
		garbage := []byte("definitely not deflate /JavaScript")
		ref := doc.Add(pdf.NewStream(pdf.Dict{"Filter": pdf.Name("FlateDecode")}, garbage))

		s, logs := newTestSanitizer()
		res := s.Sanitize(doc)

		assert.Zero(t, res.StreamsEmptied)
		v, _ := doc.Lookup(ref.ID())
		assert.Equal(t, garbage, v.(*pdf.Stream).Data)
		assert.Contains(t, logs.String(), "left untouched")
	})

	t.Run("kept annotations lose their actions", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Risky(t)
		s, _ := newTestSanitizer(WithKeepAnnotations(true))
		res := s.Sanitize(doc)

		page := doc.Pages()[0]
		require.True(t, page.Dict.Has("Annots"))
		annots := page.Annotations()
		require.Len(t, annots, 1)
		assert.False(t, annots[0].Has("A"))
		assert.Equal(t, pdf.Name("Link"), annots[0].Get("Subtype"))
		assert.False(t, page.Dict.Has("AA"))

		var keys []string
		for _, r := range res.Removals {
			keys = append(keys, r.Key)
		}
		assert.Contains(t, keys, "Annots[0]/A")
		assert.NotContains(t, keys, "Annots")
	})

	t.Run("removes scripts from page resources", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Document(t, 2)
		res, ok := doc.Pages()[0].Resources()
		require.True(t, ok)
		resources := doc.Resolve(res).(pdf.Dict)
		resources["JavaScript"] = pdf.Dict{"S": pdf.Name("JavaScript"), "JS": pdf.Text("app.alert(1)")}
		resources["JS"] = pdf.Text("app.beep(0)")
		own := doc.Add(pdf.Dict{"JS": pdf.Text("this.print()")})
		doc.Pages()[1].Dict["Resources"] = own

		s, logs := newTestSanitizer()
		result := s.Sanitize(doc)

		assert.False(t, resources.Has("JavaScript"))
		assert.False(t, resources.Has("JS"))
		assert.True(t, resources.Has("Font"))
		ownDict, _ := doc.ResolveDict(own)
		assert.False(t, ownDict.Has("JS"))
		assert.Equal(t, []model.Removal{
			{Location: model.PageLocation(1), Key: "Resources/JavaScript"},
			{Location: model.PageLocation(1), Key: "Resources/JS"},
			{Location: model.ObjectLocation(own.Num, own.Gen), Key: "Resources/JS"},
		}, result.Removals)
		assert.Equal(t, 3, strings.Count(logs.String(), "key=Resources/"))
	})

	t.Run("removes AA from every dictionary in the graph", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Document(t, 1)
		form := doc.Add(pdf.NewStream(pdf.Dict{
			"Type":    pdf.Name("XObject"),
			"Subtype": pdf.Name("Form"),
			"BBox":    pdf.Rect(0, 0, 10, 10),
			"AA":      pdf.Dict{"PO": pdf.Dict{"S": pdf.Name("JavaScript"), "JS": pdf.Text("app.alert(1)")}},
		}, []byte("0 0 m 10 10 l S")))
		res, _ := doc.Pages()[0].Resources()
		doc.Resolve(res).(pdf.Dict)["XObject"] = pdf.Dict{"Fm0": form}
		field := doc.Add(pdf.Dict{
			"FT":   pdf.Name("Tx"),
			"Kids": pdf.Array{pdf.Dict{"AA": pdf.Dict{"K": pdf.Dict{"S": pdf.Name("JavaScript")}}}},
		})

		s, logs := newTestSanitizer()
		result := s.Sanitize(doc)

		formStream, _ := doc.Lookup(form.ID())
		assert.False(t, formStream.(*pdf.Stream).Dict.Has("AA"))
		assert.Equal(t, pdf.Name("Form"), formStream.(*pdf.Stream).Dict.Get("Subtype"))
		fieldDict, _ := doc.ResolveDict(field)
		assert.False(t, fieldDict.Get("Kids").(pdf.Array)[0].(pdf.Dict).Has("AA"))

		assert.ElementsMatch(t, []model.Removal{
			{Location: model.ObjectLocation(form.Num, form.Gen), Key: "AA"},
			{Location: model.ObjectLocation(field.Num, field.Gen), Key: "Kids[0]/AA"},
		}, result.Removals)
		assert.Equal(t, 2, strings.Count(logs.String(), "msg=removed"))

		again := s.Sanitize(doc)
		assert.Empty(t, again.Removals)
	})

	t.Run("materializes object stream members", func(t *testing.T) {
		t.Parallel()

		data := pdftest.RawObjStm([]string{
			"<< /Type /Catalog /Pages 2 0 R /OpenAction 5 0 R >>",
			"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
			"<< /Type /Page /Parent 2 0 R >>",
		}, []string{"<< /S /JavaScript /JS (app.alert\\(1\\)) >>"}, "/Root 1 0 R")
		doc, err := pdf.Parse(data)
		require.NoError(t, err)
		require.NotEmpty(t, doc.Compressed())

		s, _ := newTestSanitizer()
		res := s.Sanitize(doc)

		assert.Equal(t, 1, res.Materialized)
		assert.Empty(t, doc.Compressed())
		assert.False(t, doc.Catalog().Has("OpenAction"))
		assert.False(t, res.ObjectStreams)
	})

	t.Run("survives a write and reparse", func(t *testing.T) {
		t.Parallel()

		doc := pdftest.Risky(t)
		s, _ := newTestSanitizer()
		res := s.Sanitize(doc)

		var buf bytes.Buffer
		require.NoError(t, pdf.Write(&buf, doc, pdf.WriteOptions{ObjectStreams: res.ObjectStreams}))
		assert.NotContains(t, buf.String(), "/ObjStm")

		reread, err := pdf.Parse(buf.Bytes())
		require.NoError(t, err)
		assert.Empty(t, structuralFindings(risk.New().Scan(reread)))
	})
}
