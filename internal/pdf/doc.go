// Package pdf provides the document model used by the sanitizer: a closed
// set of value types, an object table with page-tree access, and a reader
// and writer built on pdfcpu.
//
// Parse hands the file to pdfcpu, which resolves cross-reference tables,
// cross-reference streams, object streams and incremental updates, and then
// converts every in-use object into the object table. Objects stored in
// object streams are loaded like any other object; the document remembers
// which container held them so callers can ask for them to be written out
// as standalone objects again (see Document.Materialize). Write does the
// reverse and lets pdfcpu serialize the graph; WriteOptions.ObjectStreams
// maps to pdfcpu's object stream and cross-reference stream switches.
//
// Stream payloads are kept encoded. Stream.Decode applies the filter chain
// through pdfcpu's filter package and caches the result. The encoded bytes
// only change through Stream.Replace.
//
// Documents that pdfcpu opens with an empty user password come back
// decrypted. Any other encrypted document is rejected with ErrEncrypted.
package pdf
