// Package rebuild copies the pages of a PDF document into a fresh document.
//
// Only what is needed to display the pages travels: contents, resources and
// page boxes, plus a short list of harmless document-level entries. Every
// indirect object reachable from those entries is copied once, through a
// work-list and a memo that maps source object ids to new ones, so the new
// document never points back into the old one.
package rebuild

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pdf"
)

// DefaultMaxDepth is the nesting depth of direct values copied before the
// node is treated as a copy failure.
const DefaultMaxDepth = 128

// ErrGraphCopy is wrapped by every CopyError.
var ErrGraphCopy = errors.New("graph copy failed")

// errTooDeep is the cause of a CopyError raised by the depth limit.
var errTooDeep = errors.New("value nested too deeply")

// CopyError describes one node that could not be copied. The node is
// replaced by a structural clone and the rebuild carries on.
type CopyError struct {
	// Node names the failing node, for example "object 12 0" or
	// "page 3 Resources".
	Node  string
	Cause error
}

// Error implements error.
func (e *CopyError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrGraphCopy, e.Node, e.Cause)
}

// Unwrap returns ErrGraphCopy.
func (e *CopyError) Unwrap() error { return ErrGraphCopy }

// catalogAllowList are the catalog entries carried into the new document.
var catalogAllowList = []pdf.Name{"ViewerPreferences", "PageLayout", "PageMode"}

// pageBoxes are copied from the page itself when present.
var pageBoxes = []pdf.Name{"BleedBox", "TrimBox", "ArtBox"}

// Rebuilder builds clean documents from sanitized ones.
type Rebuilder struct {
	logger   *slog.Logger
	maxDepth int
}

// Option configures a Rebuilder.
type Option func(*Rebuilder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rebuilder) {
		r.logger = logger
	}
}

// WithMaxDepth sets the nesting depth limit for direct values.
func WithMaxDepth(depth int) Option {
	return func(r *Rebuilder) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// New returns a Rebuilder.
func New(opts ...Option) *Rebuilder {
	r := &Rebuilder{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Rebuild returns a new document holding the pages of src. It never fails
// and never panics: nodes that cannot be copied are cloned structurally and
// counted in the returned stats. The new document has as many pages as src.
func (r *Rebuilder) Rebuild(src *pdf.Document) (*pdf.Document, model.RebuildStats) {
	dst := pdf.New(pdf.WithLogger(r.logger))
	dst.Version = src.Version

	c := &copier{
		src:      src,
		dst:      dst,
		memo:     make(map[pdf.ObjectID]pdf.Ref),
		coerced:  make(map[pdf.ObjectID]pdf.Ref),
		logger:   r.logger,
		maxDepth: r.maxDepth,
	}

	pagesRef := dst.Add(pdf.Null{})
	pages := src.Pages()
	kids := make(pdf.Array, 0, len(pages))
	for _, page := range pages {
		kids = append(kids, dst.Add(c.page(page, pagesRef)))
		c.drain()
	}
	dst.Set(pagesRef.ID(), pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  kids,
		"Count": pdf.Number(len(kids)),
	})

	catalog := pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pagesRef}
	if srcCatalog := src.Catalog(); srcCatalog != nil {
		for _, key := range catalogAllowList {
			if v, ok := srcCatalog[key]; ok && !pdf.IsNull(v) {
				catalog[key] = c.safe("catalog "+string(key), v)
			}
		}
	}
	dst.SetCatalog(dst.Add(catalog))

	if info, ok := src.Trailer()["Info"]; ok && !pdf.IsNull(info) {
		copied := c.safe("info", info)
		switch copied.(type) {
		case pdf.Ref:
			dst.Trailer()["Info"] = copied
		case pdf.Dict:
			dst.Trailer()["Info"] = dst.Add(copied)
		}
	}
	c.drain()

	c.stats.Pages = len(kids)
	return dst, c.stats
}

// copier holds the state of one Rebuild call.
type copier struct {
	src      *pdf.Document
	dst      *pdf.Document
	memo     map[pdf.ObjectID]pdf.Ref
	coerced  map[pdf.ObjectID]pdf.Ref
	queue    []pdf.ObjectID
	stats    model.RebuildStats
	logger   *slog.Logger
	maxDepth int
}

// page builds the new page dictionary for one source page.
func (c *copier) page(p *pdf.Page, parent pdf.Ref) pdf.Dict {
	prefix := fmt.Sprintf("page %d ", p.Number)
	out := pdf.Dict{"Type": pdf.Name("Page"), "Parent": parent}

	if contents := c.contents(p); contents != nil {
		out["Contents"] = contents
	}
	if res, ok := p.Resources(); ok {
		out["Resources"] = c.safe(prefix+"Resources", res)
	}
	out["MediaBox"] = c.safe(prefix+"MediaBox", p.MediaBox())
	for _, key := range []pdf.Name{"CropBox", "Rotate"} {
		if v, ok := p.Inherited(key); ok {
			out[key] = c.safe(prefix+string(key), v)
		}
	}
	for _, key := range pageBoxes {
		if v := p.Get(key); !pdf.IsNull(v) {
			out[key] = c.safe(prefix+string(key), v)
		}
	}
	return out
}

// ref returns the new reference for a source reference, queueing the
// object for copying on first sight. Dangling references become Null.
func (c *copier) ref(r pdf.Ref) pdf.Value {
	id := r.ID()
	if mapped, ok := c.memo[id]; ok {
		return mapped
	}
	if _, ok := c.src.Lookup(id); !ok {
		return pdf.Null{}
	}
	mapped := c.dst.Add(pdf.Null{})
	c.memo[id] = mapped
	c.queue = append(c.queue, id)
	return mapped
}

// drain copies queued objects until the work-list is empty.
func (c *copier) drain() {
	for len(c.queue) > 0 {
		id := c.queue[0]
		c.queue = c.queue[1:]
		v, _ := c.src.Lookup(id)
		c.dst.Set(c.memo[id].ID(), c.safe("object "+id.String(), v))
		c.stats.ObjectsCopied++
	}
}

// safe copies v. A failure is logged as a CopyError and the node falls back
// to a structural clone.
func (c *copier) safe(node string, v pdf.Value) (out pdf.Value) {
	defer func() {
		if rec := recover(); rec != nil {
			out = c.fallback(&CopyError{Node: node, Cause: fmt.Errorf("panic: %v", rec)}, v)
		}
	}()
	copied, err := c.value(v, 0)
	if err != nil {
		return c.fallback(&CopyError{Node: node, Cause: err}, v)
	}
	return copied
}

func (c *copier) fallback(err *CopyError, v pdf.Value) pdf.Value {
	c.stats.Fallbacks++
	c.logger.Warn("node copied structurally", "node", err.Node, "error", err)
	return c.clone(v)
}

// value copies one value. References are mapped through the memo, so the
// depth only counts direct nesting.
func (c *copier) value(v pdf.Value, depth int) (pdf.Value, error) {
	if depth > c.maxDepth {
		return nil, errTooDeep
	}
	switch t := v.(type) {
	case nil:
		return pdf.Null{}, nil
	case pdf.Null, pdf.Bool, pdf.Number, pdf.Name:
		return t, nil
	case pdf.Text:
		out := make(pdf.Text, len(t))
		copy(out, t)
		return out, nil
	case pdf.Ref:
		return c.ref(t), nil
	case pdf.Array:
		out := make(pdf.Array, len(t))
		for i, item := range t {
			copied, err := c.value(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = copied
		}
		return out, nil
	case pdf.Dict:
		return c.dict(t, depth)
	case *pdf.Stream:
		if t == nil {
			return pdf.Null{}, nil
		}
		dict, err := c.dict(t.Dict, depth)
		if err != nil {
			return nil, err
		}
		if sub, _ := dict.NameValue("Subtype"); sub == "Form" && !dict.Has("BBox") {
			dict["BBox"] = pdf.LetterBox()
		}
		data := make([]byte, len(t.Data))
		copy(data, t.Data)
		return pdf.NewStream(dict, data), nil
	default:
		return t, nil
	}
}

func (c *copier) dict(d pdf.Dict, depth int) (pdf.Dict, error) {
	out := make(pdf.Dict, len(d))
	for k, item := range d {
		copied, err := c.value(item, depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = copied
	}
	return out, nil
}

// clone is the fallback copy: a structural clone without a depth limit.
// References are mapped like in value, so the objects they point at are
// still copied.
func (c *copier) clone(v pdf.Value) pdf.Value {
	switch t := v.(type) {
	case nil:
		return pdf.Null{}
	case pdf.Ref:
		return c.ref(t)
	case pdf.Array:
		out := make(pdf.Array, len(t))
		for i, item := range t {
			out[i] = c.clone(item)
		}
		return out
	case pdf.Dict:
		out := make(pdf.Dict, len(t))
		for k, item := range t {
			out[k] = c.clone(item)
		}
		return out
	case *pdf.Stream:
		if t == nil {
			return pdf.Null{}
		}
		data := make([]byte, len(t.Data))
		copy(data, t.Data)
		return pdf.NewStream(c.clone(t.Dict).(pdf.Dict), data)
	default:
		return pdf.CloneValue(t)
	}
}
