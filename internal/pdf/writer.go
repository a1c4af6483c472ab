package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// freeGeneration is the generation of free cross-reference entries.
const freeGeneration = 65535

// WriteOptions controls serialization.
type WriteOptions struct {
	// ObjectStreams packs eligible objects into object streams and writes a
	// cross-reference stream. Otherwise every object is written standalone
	// with a classic cross-reference table.
	ObjectStreams bool
}

// WriteFile writes doc to path.
func WriteFile(path string, doc *Document, opts WriteOptions) error {
	f, err := os.Create(path) //nolint:gosec // caller-provided output path
	if err != nil {
		return err
	}
	if err := Write(f, doc, opts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write serializes doc through pdfcpu. Objects not reachable from the
// catalog or the information dictionary are not written.
func Write(w io.Writer, doc *Document, opts WriteOptions) error {
	ctx, err := newContext(doc, opts)
	if err != nil {
		return err
	}
	return api.WriteContext(ctx, w)
}

// newContext builds a pdfcpu context holding the document's object table.
func newContext(doc *Document, opts WriteOptions) (*model.Context, error) {
	root := doc.CatalogRef()
	if root.Num == 0 {
		return nil, ErrNoCatalog
	}

	conf := configuration()
	conf.WriteObjectStream = opts.ObjectStreams
	conf.WriteXRefStream = opts.ObjectStreams
	ctx, err := model.NewContext(bytes.NewReader(nil), conf)
	if err != nil {
		return nil, err
	}

	maxNum := 0
	for _, obj := range doc.Objects() {
		o, err := exportObject(obj.Value)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", obj.ID, err)
		}
		entry := model.NewXRefTableEntryGen0(o)
		gen := obj.ID.Gen
		entry.Generation = &gen
		ctx.Table[obj.ID.Num] = entry
		maxNum = max(maxNum, obj.ID.Num)
	}
	ctx.Table[0] = model.NewFreeHeadXRefTableEntry()
	for num := 1; num < maxNum; num++ {
		if _, ok := ctx.Table[num]; !ok {
			offset, gen := int64(0), freeGeneration
			ctx.Table[num] = &model.XRefTableEntry{Free: true, Offset: &offset, Generation: &gen}
		}
	}
	size := maxNum + 1
	ctx.Size = &size

	ctx.Root = indirectRef(root)
	if info, ok := doc.trailer.Get("Info").(Ref); ok {
		ctx.Info = indirectRef(info)
	}
	v := model.V17
	ctx.HeaderVersion = &v
	return ctx, nil
}

func indirectRef(r Ref) *types.IndirectRef {
	return &types.IndirectRef{ObjectNumber: types.Integer(r.Num), GenerationNumber: types.Integer(r.Gen)}
}
