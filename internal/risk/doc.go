// Package risk implements a read-only scan of a PDF object graph for active
// content.
//
// The scanner looks at three places:
//   - catalog keys that install document-wide actions, forms or scripts
//   - page keys that attach annotations or page actions
//   - decoded stream payloads containing script or action syntax
//
// On top of these it reports script-like text in the document information
// dictionary, EXIF metadata in embedded JPEG images, and classifies
// JavaScript payloads by compiling them (they are never executed).
//
// A scan never fails. A stream that cannot be decoded is logged and skipped.
package risk
