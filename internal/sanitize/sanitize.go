// Package sanitize removes active content from a PDF object graph in place.
package sanitize

import (
	"log/slog"
	"strconv"

	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pdf"
	"github.com/nao1215/pdfscrub/internal/risk"
)

// annotationActionKeys are removed from every annotation that survives.
var annotationActionKeys = []pdf.Name{"A", "AA"}

// resourceScriptKeys are removed from page resource dictionaries.
var resourceScriptKeys = []pdf.Name{"JavaScript", "JS"}

// maxSweepDepth bounds the nesting of direct values visited by sweepActions.
const maxSweepDepth = 256

// Sanitizer deletes risk keys and empties risky streams.
type Sanitizer struct {
	logger          *slog.Logger
	keepAnnotations bool
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sanitizer) {
		s.logger = logger
	}
}

// WithKeepAnnotations keeps page annotations. Their A and AA actions are
// still removed.
func WithKeepAnnotations(keep bool) Option {
	return func(s *Sanitizer) {
		s.keepAnnotations = keep
	}
}

// New returns a Sanitizer.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Result describes what one Sanitize call changed.
type Result struct {
	Removals []model.Removal

	// StreamsEmptied counts streams whose payload was replaced by nothing.
	StreamsEmptied int

	// Materialized counts objects taken out of object streams.
	Materialized int

	// ObjectStreams tells the writer whether object streams may be used
	// when the document is saved. Sanitize always sets it to false.
	ObjectStreams bool
}

// Changed reports whether anything was removed.
func (r Result) Changed() bool {
	return len(r.Removals) > 0 || r.StreamsEmptied > 0
}

// Sanitize mutates doc. It never fails: a stream that cannot be decoded is
// logged and left untouched. Running it twice removes nothing the second
// time.
func (s *Sanitizer) Sanitize(doc *pdf.Document) Result {
	var res Result

	res.Materialized = doc.Materialize()
	if res.Materialized > 0 {
		s.logger.Info("objects taken out of object streams", "count", res.Materialized)
	}

	if catalog := doc.Catalog(); catalog != nil {
		for _, key := range risk.CatalogKeys {
			if catalog.Delete(key) {
				s.removed(&res, model.CatalogLocation(), string(key))
			}
		}
	}

	for _, page := range doc.Pages() {
		loc := model.PageLocation(page.Number)
		for _, key := range risk.PageKeys {
			if key == "Annots" && s.keepAnnotations {
				continue
			}
			if page.Dict.Delete(key) {
				s.removed(&res, loc, string(key))
			}
		}
		s.stripAnnotations(doc, page, &res)
		s.stripResources(doc, page, &res)
	}

	s.sweepActions(doc, &res)

	for _, obj := range doc.Streams() {
		strm := obj.Value.(*pdf.Stream)
		data, err := strm.Decode()
		if err != nil {
			s.logger.Warn("stream could not be decoded, left untouched", "object", obj.ID.String(), "error", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		if matches := risk.MatchPayload(data); len(matches) > 0 {
			strm.Replace(nil)
			res.StreamsEmptied++
			s.logger.Info("stream emptied", "object", obj.ID.String(), "patterns", matches)
		}
	}

	res.ObjectStreams = false
	return res
}

func (s *Sanitizer) removed(res *Result, loc model.Location, key string) {
	res.Removals = append(res.Removals, model.Removal{Location: loc, Key: key})
	s.logger.Info("removed", "location", loc.String(), "key", key)
}

// stripAnnotations removes the actions of the annotations still attached
// to page.
func (s *Sanitizer) stripAnnotations(doc *pdf.Document, page *pdf.Page, res *Result) {
	arr, ok := doc.Resolve(page.Dict.Get("Annots")).(pdf.Array)
	if !ok {
		return
	}
	for i, item := range arr {
		annot, ok := doc.ResolveDict(item)
		if !ok {
			continue
		}
		for _, key := range annotationActionKeys {
			if annot.Delete(key) {
				loc := model.PageLocation(page.Number)
				if r, isRef := item.(pdf.Ref); isRef {
					loc = model.ObjectLocation(r.Num, r.Gen)
				}
				s.removed(res, loc, "Annots["+strconv.Itoa(i)+"]/"+string(key))
			}
		}
	}
}

// stripResources removes scripts attached to the resource dictionary of
// page. Inherited resources are cleaned once, by the first page using them.
func (s *Sanitizer) stripResources(doc *pdf.Document, page *pdf.Page, res *Result) {
	v, ok := page.Resources()
	if !ok {
		return
	}
	resources, ok := doc.ResolveDict(v)
	if !ok {
		return
	}
	loc := model.PageLocation(page.Number)
	if r, isRef := v.(pdf.Ref); isRef {
		loc = model.ObjectLocation(r.Num, r.Gen)
	}
	for _, key := range resourceScriptKeys {
		if resources.Delete(key) {
			s.removed(res, loc, "Resources/"+string(key))
		}
	}
}

// sweepActions removes additional actions from every dictionary of the
// graph, stream dictionaries included. Form XObjects, form fields and
// nodes the page loop does not reach are covered this way.
func (s *Sanitizer) sweepActions(doc *pdf.Document, res *Result) {
	for _, obj := range doc.Objects() {
		loc := model.ObjectLocation(obj.ID.Num, obj.ID.Gen)
		v := obj.Value
		if strm, ok := v.(*pdf.Stream); ok {
			v = strm.Dict
		}
		s.sweep(v, "", loc, res, 0)
	}
}

func (s *Sanitizer) sweep(v pdf.Value, path string, loc model.Location, res *Result, depth int) {
	if depth > maxSweepDepth {
		return
	}
	switch t := v.(type) {
	case pdf.Dict:
		if t.Delete("AA") {
			s.removed(res, loc, keyPath(path, "AA"))
		}
		for _, k := range t.Keys() {
			s.sweep(t[k], keyPath(path, string(k)), loc, res, depth+1)
		}
	case pdf.Array:
		for i, item := range t {
			s.sweep(item, path+"["+strconv.Itoa(i)+"]", loc, res, depth+1)
		}
	}
}

func keyPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "/" + key
}
