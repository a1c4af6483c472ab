package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxValueLen is the number of bytes of an attribute value kept by
// a SafeHandler.
const DefaultMaxValueLen = 256

// truncationMark is appended to values that were cut.
const truncationMark = "...(truncated)"

// SafeHandler wraps an slog.Handler and escapes attribute values before
// passing records on. Control characters and invalid UTF-8 are replaced by
// Go escape sequences, and values longer than the limit are truncated.
// The message itself is trusted and left as is.
type SafeHandler struct {
	// handler is the underlying slog handler that receives escaped records.
	handler slog.Handler

	maxLen int
}

// NewSafeHandler creates a SafeHandler wrapping handler. If handler is nil,
// slog.Default().Handler() is used. maxLen <= 0 selects DefaultMaxValueLen.
func NewSafeHandler(handler slog.Handler, maxLen int) *SafeHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxValueLen
	}
	return &SafeHandler{handler: handler, maxLen: maxLen}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *SafeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle escapes the record's attributes and passes it to the underlying
// handler.
func (h *SafeHandler) Handle(ctx context.Context, r slog.Record) error {
	escaped := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		escaped.AddAttrs(h.escapeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, escaped)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are escaped before being added.
func (h *SafeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	escaped := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		escaped[i] = h.escapeAttr(a)
	}
	return &SafeHandler{handler: h.handler.WithAttrs(escaped), maxLen: h.maxLen}
}

// WithGroup returns a new handler with the given group name.
func (h *SafeHandler) WithGroup(name string) slog.Handler {
	return &SafeHandler{handler: h.handler.WithGroup(name), maxLen: h.maxLen}
}

// escapeAttr escapes a single attribute, recursively handling groups.
func (h *SafeHandler) escapeAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		escaped := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			escaped[i] = h.escapeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(escaped...)}
	case slog.KindString:
		return slog.String(a.Key, h.Escape(v.String()))
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, h.Escape(x.Error()))
		case []byte:
			return slog.String(a.Key, h.Escape(string(x)))
		case []string:
			parts := make([]string, len(x))
			for i, s := range x {
				parts[i] = h.Escape(s)
			}
			return slog.String(a.Key, h.truncate(strings.Join(parts, ",")))
		case fmt.Stringer:
			return slog.String(a.Key, h.Escape(x.String()))
		}
		return slog.Attr{Key: a.Key, Value: v}
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}

// Escape returns s with unprintable runes escaped and the result cut to
// the handler's limit.
func (h *SafeHandler) Escape(s string) string {
	return h.truncate(escape(s))
}

func (h *SafeHandler) truncate(s string) string {
	if len(s) <= h.maxLen {
		return s
	}
	cut := h.maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMark
}

func escape(s string) string {
	clean := true
	for _, r := range s {
		if r == utf8.RuneError || !unicode.IsPrint(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size <= 1:
			fmt.Fprintf(&b, `\x%02x`, s[i])
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case !unicode.IsPrint(r):
			if r < 0x10000 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}
