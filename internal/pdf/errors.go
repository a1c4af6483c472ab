package pdf

import "errors"

var (
	// ErrNotPDF is returned when the data does not start with a %PDF header.
	ErrNotPDF = errors.New("not a PDF file: missing %PDF header")

	// ErrEncrypted is returned for encrypted documents that cannot be
	// opened without a password.
	ErrEncrypted = errors.New("encrypted PDF documents are not supported")

	// ErrNoCatalog is returned when the trailer names no usable catalog.
	ErrNoCatalog = errors.New("document catalog not found")

	// ErrMalformed wraps errors reported by the pdfcpu reader.
	ErrMalformed = errors.New("malformed PDF")

	// ErrUnsupportedFilter is returned by Stream.Decode for unknown filters.
	ErrUnsupportedFilter = errors.New("unsupported stream filter")

	// ErrDecodedTooLarge is returned when a decoded payload exceeds MaxDecodedSize.
	ErrDecodedTooLarge = errors.New("decoded stream exceeds size limit")

	// ErrDirectStream is returned by the writer when a stream is nested
	// directly inside another value instead of being an indirect object.
	ErrDirectStream = errors.New("stream must be an indirect object")
)
