package pdf

// maxTreeDepth bounds the page tree walk.
const maxTreeDepth = 64

// inheritable page attributes.
var inheritable = map[Name]bool{
	"Resources": true,
	"MediaBox":  true,
	"CropBox":   true,
	"Rotate":    true,
}

// Page is one leaf of the page tree.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Ref is the page object, or the zero Ref for a direct page dictionary.
	Ref Ref

	// Dict is the page dictionary. Changes to it change the document.
	Dict Dict

	ancestors []Dict
	doc       *Document
}

// Pages returns the pages in document order. The list is computed from the
// catalog on first use.
func (d *Document) Pages() []*Page {
	if d.pagesReady {
		return d.pages
	}
	d.pages = nil
	root := d.Catalog()
	if root != nil {
		visited := make(map[ObjectID]bool)
		d.walkPages(root.Get("Pages"), nil, visited, 0)
	}
	d.pagesReady = true
	return d.pages
}

// PageCount returns len(Pages()).
func (d *Document) PageCount() int { return len(d.Pages()) }

func (d *Document) walkPages(node Value, ancestors []Dict, visited map[ObjectID]bool, depth int) {
	if depth > maxTreeDepth {
		d.logger.Warn("page tree too deep, truncated", "depth", depth)
		return
	}
	var ref Ref
	if r, ok := node.(Ref); ok {
		if visited[r.ID()] {
			d.logger.Warn("page tree cycle skipped", "object", r.ID().String())
			return
		}
		visited[r.ID()] = true
		ref = r
	}
	dict, ok := d.ResolveDict(node)
	if !ok {
		return
	}

	typ, _ := dict.NameValue("Type")
	kids, hasKids := d.Resolve(dict.Get("Kids")).(Array)
	if typ == "Pages" || (typ != "Page" && hasKids) {
		next := make([]Dict, 0, len(ancestors)+1)
		next = append(next, dict)
		next = append(next, ancestors...)
		for _, kid := range kids {
			d.walkPages(kid, next, visited, depth+1)
		}
		return
	}

	d.pages = append(d.pages, &Page{
		Number:    len(d.pages) + 1,
		Ref:       ref,
		Dict:      dict,
		ancestors: ancestors,
		doc:       d,
	})
}

// Get returns the page's own entry for key.
func (p *Page) Get(key Name) Value { return p.Dict.Get(key) }

// Inherited returns the entry for key on the page or, for inheritable
// attributes, on the nearest ancestor that defines it.
func (p *Page) Inherited(key Name) (Value, bool) {
	if v, ok := p.Dict[key]; ok && !IsNull(v) {
		return v, true
	}
	if !inheritable[key] {
		return Null{}, false
	}
	for _, a := range p.ancestors {
		if v, ok := a[key]; ok && !IsNull(v) {
			return v, true
		}
	}
	return Null{}, false
}

// Contents returns the unresolved Contents entry.
func (p *Page) Contents() Value { return p.Dict.Get("Contents") }

// Resources returns the effective resource dictionary value.
func (p *Page) Resources() (Value, bool) { return p.Inherited("Resources") }

// MediaBox returns the effective media box, defaulting to US-Letter.
func (p *Page) MediaBox() Value {
	if v, ok := p.Inherited("MediaBox"); ok {
		return v
	}
	return LetterBox()
}

// Rotate returns the effective rotation in degrees.
func (p *Page) Rotate() int {
	v, ok := p.Inherited("Rotate")
	if !ok {
		return 0
	}
	n, ok := p.doc.Resolve(v).(Number)
	if !ok {
		return 0
	}
	return n.Int()
}

// Annotations returns the resolved annotation dictionaries of the page.
func (p *Page) Annotations() []Dict {
	arr, ok := p.doc.Resolve(p.Dict.Get("Annots")).(Array)
	if !ok {
		return nil
	}
	out := make([]Dict, 0, len(arr))
	for _, item := range arr {
		if d, ok := p.doc.ResolveDict(item); ok {
			out = append(out, d)
		}
	}
	return out
}
