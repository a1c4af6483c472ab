// Package model defines the data structures shared by the scanner, the
// sanitizer, the pipeline and the reports.
//
// This package contains the following main types:
//   - Finding and ScanResult: risk indicators found in a document
//   - Severity: the risk level of a finding key, from a central mapping
//   - FileReport: the per-file outcome of a clean run, with stage results
//   - SimpleReport: a summarized, human-readable view of a FileReport
//
// The types are serializable to JSON for report output and for the run
// history database.
package model
