// Package pdftest builds small PDF documents for tests.
package pdftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/pdfscrub/internal/pdf"
)

// Document returns a document with the given number of pages. Every page
// has a Flate-encoded content stream that draws its page number.
func Document(tb testing.TB, pages int) *pdf.Document {
	tb.Helper()

	doc := pdf.New()
	pagesRef := doc.Add(pdf.Dict{})
	kids := pdf.Array{}
	font := doc.Add(pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("Type1"),
		"BaseFont": pdf.Name("Helvetica"),
	})
	for i := 1; i <= pages; i++ {
		content := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (Page %d) Tj ET", i)
		contents := doc.Add(pdf.NewStream(pdf.Dict{"Filter": pdf.Name("FlateDecode")}, pdf.Deflate([]byte(content))))
		page := doc.Add(pdf.Dict{
			"Type":     pdf.Name("Page"),
			"Parent":   pagesRef,
			"Contents": contents,
		})
		kids = append(kids, page)
	}
	doc.Set(pagesRef.ID(), pdf.Dict{
		"Type":      pdf.Name("Pages"),
		"Kids":      kids,
		"Count":     pdf.Number(pages),
		"MediaBox":  pdf.LetterBox(),
		"Resources": pdf.Dict{"Font": pdf.Dict{"F1": font}},
	})
	catalog := doc.Add(pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pagesRef})
	doc.SetCatalog(catalog)
	return doc
}

// Risky returns a two-page document carrying active content: an OpenAction
// script, a JavaScript name tree, an interactive form, annotations with
// additional actions, outlines, a script in the metadata and an
// unreferenced stream holding JavaScript action syntax.
func Risky(tb testing.TB) *pdf.Document {
	tb.Helper()

	doc := Document(tb, 2)
	catalog := doc.Catalog()

	js := doc.Add(pdf.NewStream(pdf.Dict{}, []byte(`app.alert("hello"); var x = eval("1+1");`)))
	catalog["OpenAction"] = pdf.Dict{"S": pdf.Name("JavaScript"), "JS": js}
	catalog["Names"] = pdf.Dict{
		"JavaScript": pdf.Dict{"Names": pdf.Array{pdf.Text("init"), pdf.Dict{"S": pdf.Name("JavaScript"), "JS": pdf.Text("this.print();")}}},
	}
	field := doc.Add(pdf.Dict{"FT": pdf.Name("Tx"), "T": pdf.Text("name")})
	catalog["AcroForm"] = pdf.Dict{"Fields": pdf.Array{field}}
	catalog["Outlines"] = doc.Add(pdf.Dict{"Type": pdf.Name("Outlines"), "Count": pdf.Number(0)})
	catalog["AA"] = pdf.Dict{"WC": pdf.Dict{"S": pdf.Name("JavaScript"), "JS": pdf.Text("app.beep(0);")}}

	meta := doc.Add(pdf.NewStream(pdf.Dict{"Type": pdf.Name("Metadata"), "Subtype": pdf.Name("XML")},
		[]byte(`<x:xmpmeta><rdf:Description><script>steal()</script></rdf:Description></x:xmpmeta>`)))
	catalog["Metadata"] = meta

	doc.Add(pdf.NewStream(pdf.Dict{"Filter": pdf.Name("FlateDecode")},
		pdf.Deflate([]byte("<< /S /JavaScript /JS (app.launchURL\\(\"http://x\"\\)) >>"))))

	page := doc.Pages()[0]
	annot := doc.Add(pdf.Dict{
		"Type":    pdf.Name("Annot"),
		"Subtype": pdf.Name("Link"),
		"Rect":    pdf.Rect(0, 0, 10, 10),
		"A":       pdf.Dict{"S": pdf.Name("URI"), "URI": pdf.Text("http://example.com")},
	})
	page.Dict["Annots"] = pdf.Array{annot}
	page.Dict["AA"] = pdf.Dict{"O": pdf.Dict{"S": pdf.Name("JavaScript"), "JS": pdf.Text("app.alert(1);")}}
	return doc
}

// Bytes serializes every object of doc with a classic cross-reference
// table, including objects nothing refers to.
func Bytes(tb testing.TB, doc *pdf.Document) []byte {
	tb.Helper()

	objs := doc.Objects()
	maxNum := 0
	for _, obj := range objs {
		maxNum = max(maxNum, obj.ID.Num)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + doc.Version + "\n")
	offsets := make(map[int]int, len(objs))
	gens := make(map[int]int, len(objs))
	for _, obj := range objs {
		body, err := pdf.Format(obj.Value)
		if err != nil {
			tb.Fatalf("format object %s: %v", obj.ID, err)
		}
		offsets[obj.ID.Num] = buf.Len()
		gens[obj.ID.Num] = obj.ID.Gen
		fmt.Fprintf(&buf, "%d %d obj\n%s\nendobj\n", obj.ID.Num, obj.ID.Gen, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f\r\n", maxNum+1)
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d %05d n\r\n", off, gens[num])
		} else {
			buf.WriteString("0000000000 65535 f\r\n")
		}
	}

	trailer := pdf.Dict{"Size": pdf.Number(maxNum + 1)}
	for k, v := range doc.Trailer() {
		trailer[k] = v
	}
	t, err := pdf.Format(trailer)
	if err != nil {
		tb.Fatalf("format trailer: %v", err)
	}
	fmt.Fprintf(&buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", t, xref)
	return buf.Bytes()
}

// WriteFile writes doc to dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name string, doc *pdf.Document) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Bytes(tb, doc), 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Raw assembles a file from object bodies. objects[i] becomes object i+1.
// A classic cross-reference table is appended with correct offsets, so the
// bodies can contain deliberately odd constructs.
func Raw(objects []string, trailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f\r\n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return buf.Bytes()
}

// RawObjStm assembles a file whose members live in an object stream.
// objects[i] becomes object i+1 and is stored standalone, the object
// stream comes next, and members[j] become the objects after it. The file
// is indexed by a cross-reference stream whose dictionary also carries the
// trailer entries, for example "/Root 1 0 R".
func RawObjStm(objects, members []string, trailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, 0, len(objects)+1)
	for i, body := range objects {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	container := len(objects) + 1
	var header, bodies bytes.Buffer
	for j, body := range members {
		fmt.Fprintf(&header, "%d %d ", container+1+j, bodies.Len())
		bodies.WriteString(body)
		bodies.WriteString("\n")
	}
	offsets = append(offsets, buf.Len())
	fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /ObjStm /N %d /First %d /Length %d >>\nstream\n%s%s\nendstream\nendobj\n",
		container, len(members), header.Len(), header.Len()+bodies.Len(), header.String(), bodies.String())

	xrefNum := container + len(members) + 1
	xref := buf.Len()
	var entries bytes.Buffer
	entry := func(typ byte, f2, f3 int) {
		var b [7]byte
		b[0] = typ
		binary.BigEndian.PutUint32(b[1:5], uint32(f2)) //nolint:gosec // test offsets are small
		binary.BigEndian.PutUint16(b[5:7], uint16(f3)) //nolint:gosec // test indexes are small
		entries.Write(b[:])
	}
	entry(0, 0, 0xFFFF)
	for _, off := range offsets {
		entry(1, off, 0)
	}
	for j := range members {
		entry(2, container, j)
	}
	entry(1, xref, 0)

	fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] %s /Length %d >>\nstream\n",
		xrefNum, xrefNum+1, trailer, entries.Len())
	buf.Write(entries.Bytes())
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}
