package pdf

import (
	"log/slog"
	"sort"
)

// maxRefChain bounds reference-to-reference chains in Resolve.
const maxRefChain = 32

// Document is an in-memory PDF: an object table, a trailer and the page tree
// rooted at the catalog.
type Document struct {
	// Version is the header version, for example "1.7".
	Version string

	objects    map[ObjectID]Value
	trailer    Dict
	catalog    Ref
	pages      []*Page
	pagesReady bool
	compressed map[ObjectID]ObjectID
	detached   map[ObjectID][]byte
	maxNum     int
	logger     *slog.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger used for warnings such as dangling references.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		d.logger = logger
	}
}

// New returns an empty document without a catalog.
func New(opts ...Option) *Document {
	d := &Document{
		Version:    "1.7",
		objects:    make(map[ObjectID]Value),
		trailer:    Dict{},
		compressed: make(map[ObjectID]ObjectID),
		detached:   make(map[ObjectID][]byte),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Logger returns the document's logger.
func (d *Document) Logger() *slog.Logger { return d.logger }

// Add stores v as a new indirect object and returns a reference to it.
func (d *Document) Add(v Value) Ref {
	d.maxNum++
	id := ObjectID{Num: d.maxNum}
	d.objects[id] = v
	return Ref(id)
}

// Set stores v under id, replacing any previous value.
func (d *Document) Set(id ObjectID, v Value) {
	d.objects[id] = v
	if id.Num > d.maxNum {
		d.maxNum = id.Num
	}
}

// Delete removes an object from the table.
func (d *Document) Delete(id ObjectID) {
	delete(d.objects, id)
	delete(d.compressed, id)
	delete(d.detached, id)
}

// Lookup returns the value stored under id.
func (d *Document) Lookup(id ObjectID) (Value, bool) {
	v, ok := d.objects[id]
	return v, ok
}

// Resolve follows references until it reaches a direct value. A reference
// that does not name a live object resolves to Null and is logged.
func (d *Document) Resolve(v Value) Value {
	for i := 0; i < maxRefChain; i++ {
		r, ok := v.(Ref)
		if !ok {
			if v == nil {
				return Null{}
			}
			return v
		}
		target, ok := d.objects[r.ID()]
		if !ok {
			d.logger.Warn("dangling reference treated as null", "object", r.ID().String())
			return Null{}
		}
		v = target
	}
	d.logger.Warn("reference chain too long, treated as null")
	return Null{}
}

// ResolveDict resolves v and returns its dictionary when it is a Dict or a
// Stream.
func (d *Document) ResolveDict(v Value) (Dict, bool) {
	return DictOf(d.Resolve(v))
}

// Len returns the number of objects.
func (d *Document) Len() int { return len(d.objects) }

// IDs returns the object ids in ascending order.
func (d *Document) IDs() []ObjectID {
	ids := make([]ObjectID, 0, len(d.objects))
	for id := range d.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Num != ids[j].Num {
			return ids[i].Num < ids[j].Num
		}
		return ids[i].Gen < ids[j].Gen
	})
	return ids
}

// Objects returns the object table in ascending id order.
func (d *Document) Objects() []Object {
	ids := d.IDs()
	out := make([]Object, len(ids))
	for i, id := range ids {
		out[i] = Object{ID: id, Value: d.objects[id]}
	}
	return out
}

// Streams returns every stream object in ascending id order.
func (d *Document) Streams() []Object {
	var out []Object
	for _, obj := range d.Objects() {
		if _, ok := obj.Value.(*Stream); ok {
			out = append(out, obj)
		}
	}
	return out
}

// Trailer returns the trailer dictionary. Root is kept in sync with
// SetCatalog.
func (d *Document) Trailer() Dict { return d.trailer }

// SetCatalog makes r the document catalog.
func (d *Document) SetCatalog(r Ref) {
	d.catalog = r
	d.trailer["Root"] = r
	d.pagesReady = false
	d.pages = nil
}

// CatalogRef returns the reference to the catalog.
func (d *Document) CatalogRef() Ref { return d.catalog }

// Catalog returns the catalog dictionary, or nil when the document has none.
func (d *Document) Catalog() Dict {
	dict, _ := d.ResolveDict(d.catalog)
	return dict
}

// Info returns the document information dictionary, if any.
func (d *Document) Info() Dict {
	dict, _ := d.ResolveDict(d.trailer.Get("Info"))
	return dict
}

// Compressed returns the ids of objects that were read from object streams
// and have not been materialized yet.
func (d *Document) Compressed() []ObjectID {
	ids := make([]ObjectID, 0, len(d.compressed))
	for id := range d.compressed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Num < ids[j].Num })
	return ids
}

// MarkCompressed records that id was stored in the given object stream.
func (d *Document) MarkCompressed(id, container ObjectID) {
	d.compressed[id] = container
}

// Materialize detaches every object from its object stream so that it is
// addressed and written as a standalone object. It returns the number of
// objects affected.
func (d *Document) Materialize() int {
	n := len(d.compressed)
	for id := range d.compressed {
		delete(d.compressed, id)
	}
	return n
}

// DetachedPayload returns encoded bytes recovered for a dictionary-valued
// object whose stream binding was lost.
func (d *Document) DetachedPayload(id ObjectID) ([]byte, bool) {
	b, ok := d.detached[id]
	return b, ok
}

// SetDetachedPayload records encoded bytes for a dictionary-valued object.
func (d *Document) SetDetachedPayload(id ObjectID, data []byte) {
	d.detached[id] = data
}
