// Package database records clean runs in a SQLite file (pdfscrub.db) in
// the output directory, so earlier results can be listed and compared.
//
// modernc.org/sqlite is used because it needs no cgo and the whole
// history stays a single file next to the cleaned documents.
package database
