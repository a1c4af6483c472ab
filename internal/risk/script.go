package risk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pdf"
)

// maxScriptSize bounds the payload handed to the JavaScript compiler.
const maxScriptSize = 1 << 20

// maxWalkDepth bounds the search for script payloads below one key.
const maxWalkDepth = 32

type marker struct {
	name    string
	pattern *regexp.Regexp
}

var obfuscationMarkers = []marker{
	{name: "eval", pattern: regexp.MustCompile(`\beval\s*\(`)},
	{name: "unescape", pattern: regexp.MustCompile(`\bunescape\s*\(`)},
	{name: "fromCharCode", pattern: regexp.MustCompile(`String\s*\.\s*fromCharCode`)},
	{name: "hex_escapes", pattern: regexp.MustCompile(`(\\x[0-9A-Fa-f]{2}){8,}`)},
	{name: "unicode_escapes", pattern: regexp.MustCompile(`(%u[0-9A-Fa-f]{4}){4,}`)},
	{name: "percent_escapes", pattern: regexp.MustCompile(`(%[0-9A-Fa-f]{2}){8,}`)},
}

// ScriptInfo is the classification of one script payload.
type ScriptInfo struct {
	// Compiles is true when the payload is syntactically valid JavaScript.
	Compiles bool
	// Markers lists the obfuscation markers found, in a fixed order.
	Markers []string
}

// ClassifyScript compiles src without running it and looks for
// obfuscation markers.
func ClassifyScript(src string) ScriptInfo {
	var info ScriptInfo
	if len(src) > maxScriptSize {
		src = src[:maxScriptSize]
	}
	if strings.TrimSpace(src) == "" {
		return info
	}
	if _, err := goja.Compile("payload.js", src, false); err == nil {
		info.Compiles = true
	}
	for _, m := range obfuscationMarkers {
		if m.pattern.MatchString(src) {
			info.Markers = append(info.Markers, m.name)
		}
	}
	return info
}

// collectScripts collects the JS payloads reachable from v: every JS entry of an
// action dictionary below v, text or stream.
func (s *Scanner) collectScripts(doc *pdf.Document, v pdf.Value) []string {
	var out []string
	visited := make(map[pdf.ObjectID]bool)

	var walk func(v pdf.Value, depth int)
	walk = func(v pdf.Value, depth int) {
		if depth > maxWalkDepth {
			return
		}
		if r, ok := v.(pdf.Ref); ok {
			if visited[r.ID()] {
				return
			}
			visited[r.ID()] = true
		}
		switch t := doc.Resolve(v).(type) {
		case pdf.Dict:
			if js, ok := t["JS"]; ok {
				if src, ok := s.scriptSource(doc, js); ok {
					out = append(out, src)
				}
			}
			for _, k := range t.Keys() {
				if k == "JS" || k == "Parent" || k == "P" {
					continue
				}
				walk(t[k], depth+1)
			}
		case pdf.Array:
			for _, item := range t {
				walk(item, depth+1)
			}
		default:
		}
	}
	walk(v, 0)
	return out
}

func (s *Scanner) scriptSource(doc *pdf.Document, v pdf.Value) (string, bool) {
	switch t := doc.Resolve(v).(type) {
	case pdf.Text:
		return pdf.DecodeTextString(t), true
	case *pdf.Stream:
		data, err := t.Decode()
		if err != nil {
			s.logger.Warn("script stream could not be decoded", "error", err)
			return "", false
		}
		return string(data), true
	default:
		return "", false
	}
}

// classify raises f to critical when one of the scripts compiles and
// records the markers found.
func (s *Scanner) classify(f *model.Finding, scripts []string) {
	seen := make(map[string]bool)
	compiled := 0
	for _, src := range scripts {
		info := ClassifyScript(src)
		if info.Compiles {
			compiled++
		}
		for _, m := range info.Markers {
			if !seen[m] {
				seen[m] = true
				f.Markers = append(f.Markers, m)
			}
		}
	}
	if compiled > 0 {
		f.Severity = model.SeverityCritical
		if compiled == 1 {
			f.Detail = "1 script compiled as JavaScript"
		} else {
			f.Detail = strconv.Itoa(compiled) + " scripts compiled as JavaScript"
		}
	}
}
