package rebuild

import (
	"fmt"

	"github.com/nao1215/pdfscrub/internal/pdf"
)

// contents returns the new Contents value of a page, or nil when the page
// has none. Entries that resolve to a plain dictionary instead of a stream
// are turned back into content streams when possible.
func (c *copier) contents(p *pdf.Page) pdf.Value {
	v := p.Contents()
	if pdf.IsNull(v) {
		return nil
	}
	node := fmt.Sprintf("page %d Contents", p.Number)

	switch t := c.src.Resolve(v).(type) {
	case pdf.Dict:
		return c.coerce(p.Number, v)
	case pdf.Array:
		out := make(pdf.Array, 0, len(t))
		for _, item := range t {
			if _, isDict := c.src.Resolve(item).(pdf.Dict); isDict {
				out = append(out, c.coerce(p.Number, item))
				continue
			}
			out = append(out, c.safe(node, item))
		}
		return out
	case pdf.Null:
		return nil
	default:
		return c.safe(node, v)
	}
}

// coerce builds a content stream for a Contents entry that resolved to a
// dictionary. The encoded payload recovered by the reader is inflated; when
// that is impossible an empty content stream takes its place and one
// warning is logged.
func (c *copier) coerce(page int, v pdf.Value) pdf.Value {
	r, isRef := v.(pdf.Ref)
	if isRef {
		if done, ok := c.coerced[r.ID()]; ok {
			return done
		}
	}

	var reason string
	if !isRef {
		reason = "direct dictionary has no payload"
	} else if payload, ok := c.src.DetachedPayload(r.ID()); !ok {
		reason = "no payload found"
	} else if data, err := pdf.Inflate(payload); err != nil {
		reason = err.Error()
	} else {
		c.stats.CoercedContents++
		ref := c.dst.Add(pdf.NewStream(pdf.Dict{"Filter": pdf.Name("FlateDecode")}, pdf.Deflate(data)))
		c.coerced[r.ID()] = ref
		return ref
	}

	c.stats.EmptySubstitutes++
	attrs := []any{"page", page, "reason", reason}
	if isRef {
		attrs = append(attrs, "object", r.ID().String())
	}
	c.logger.Warn("page contents unreadable, empty content stream substituted", attrs...)
	ref := c.dst.Add(pdf.NewStream(nil, []byte{}))
	if isRef {
		c.coerced[r.ID()] = ref
	}
	return ref
}
