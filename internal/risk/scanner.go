package risk

import (
	"log/slog"
	"strings"

	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pdf"
)

// infoEntries are the document information entries checked for scripts.
var infoEntries = []pdf.Name{"Creator", "Producer", "Author", "Title", "Subject", "Keywords"}

// Scanner walks a document and reports risk findings.
type Scanner struct {
	logger         *slog.Logger
	analyzeScripts bool
	exif           bool
	metadata       bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithScriptAnalysis enables compiling JavaScript payloads to classify them.
func WithScriptAnalysis(enabled bool) Option {
	return func(s *Scanner) {
		s.analyzeScripts = enabled
	}
}

// WithEXIF enables EXIF detection in JPEG image streams.
func WithEXIF(enabled bool) Option {
	return func(s *Scanner) {
		s.exif = enabled
	}
}

// WithMetadata enables the document information check.
func WithMetadata(enabled bool) Option {
	return func(s *Scanner) {
		s.metadata = enabled
	}
}

// New returns a Scanner with every check enabled.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		analyzeScripts: true,
		exif:           true,
		metadata:       true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// findings accumulates findings, dropping duplicates of (location, key).
type findings struct {
	list []model.Finding
	seen map[model.Location]map[string]bool
}

func (fs *findings) add(f model.Finding) *model.Finding {
	if fs.seen == nil {
		fs.seen = make(map[model.Location]map[string]bool)
	}
	keys := fs.seen[f.Location]
	if keys == nil {
		keys = make(map[string]bool)
		fs.seen[f.Location] = keys
	}
	if keys[f.Key] {
		return nil
	}
	keys[f.Key] = true
	fs.list = append(fs.list, f)
	return &fs.list[len(fs.list)-1]
}

// Scan reports the risk findings of doc. The document is not modified,
// except that stream payloads are decoded and cached.
func (s *Scanner) Scan(doc *pdf.Document) model.ScanResult {
	var fs findings

	if catalog := doc.Catalog(); catalog != nil {
		s.scanDict(doc, &fs, catalog, CatalogKeys, model.CatalogLocation())
	}
	for _, page := range doc.Pages() {
		s.scanDict(doc, &fs, page.Dict, PageKeys, model.PageLocation(page.Number))
	}
	for _, obj := range doc.Streams() {
		s.scanStream(&fs, obj.ID, obj.Value.(*pdf.Stream))
	}
	if s.metadata {
		s.scanInfo(doc, &fs)
	}

	return model.NewScanResult(fs.list)
}

func (s *Scanner) scanDict(doc *pdf.Document, fs *findings, dict pdf.Dict, keys []pdf.Name, loc model.Location) {
	for _, key := range keys {
		v, ok := dict[key]
		if !ok {
			continue
		}
		f := fs.add(model.Finding{
			Location: loc,
			Key:      string(key),
			Severity: model.GetSeverity(string(key)),
		})
		if f == nil || !s.analyzeScripts {
			continue
		}
		if scripts := s.collectScripts(doc, v); len(scripts) > 0 {
			s.classify(f, scripts)
		}
	}
}

func (s *Scanner) scanStream(fs *findings, id pdf.ObjectID, strm *pdf.Stream) {
	loc := model.ObjectLocation(id.Num, id.Gen)
	data, err := strm.Decode()
	if err != nil {
		s.logger.Warn("stream could not be decoded, skipped", "object", id.String(), "error", err)
		return
	}

	for _, pattern := range MatchPayload(data) {
		fs.add(model.Finding{
			Location: loc,
			Key:      pattern,
			Severity: model.GetSeverity(pattern),
		})
	}

	if s.exif && isJPEG(strm) {
		detail, found, err := exifDetail(data)
		if err != nil {
			s.logger.Debug("EXIF search failed", "object", id.String(), "error", err)
			return
		}
		if found {
			fs.add(model.Finding{
				Location: loc,
				Key:      "exif",
				Severity: model.GetSeverity("exif"),
				Detail:   detail,
			})
		}
	}
}

func (s *Scanner) scanInfo(doc *pdf.Document, fs *findings) {
	info := doc.Info()
	if info == nil {
		return
	}
	for _, entry := range infoEntries {
		text, ok := doc.Resolve(info.Get(entry)).(pdf.Text)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(pdf.DecodeTextString(text)), "script") {
			key := model.MetadataKeyPrefix + string(entry)
			fs.add(model.Finding{
				Location: model.InfoLocation(),
				Key:      key,
				Severity: model.GetSeverity(key),
			})
		}
	}
}
