package model

import (
	"fmt"
	"sort"
)

// LocationKind identifies the part of a document a finding refers to.
// The numeric order is the report order.
type LocationKind int

const (
	// LocationCatalog is the document catalog.
	LocationCatalog LocationKind = iota
	// LocationPage is a page dictionary.
	LocationPage
	// LocationObject is an indirect object, usually a stream.
	LocationObject
	// LocationInfo is the document information dictionary.
	LocationInfo
)

// String returns the lower-case name of the kind.
func (k LocationKind) String() string {
	switch k {
	case LocationCatalog:
		return "catalog"
	case LocationPage:
		return "page"
	case LocationObject:
		return "object"
	case LocationInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Location is where a finding was raised.
type Location struct {
	Kind LocationKind `json:"kind"`

	// Page is the 1-based page number for LocationPage.
	Page int `json:"page,omitempty"`

	// Object and Generation identify the object for LocationObject.
	Object     int `json:"object,omitempty"`
	Generation int `json:"generation,omitempty"`
}

// CatalogLocation returns the catalog location.
func CatalogLocation() Location { return Location{Kind: LocationCatalog} }

// PageLocation returns the location of page n (1-based).
func PageLocation(n int) Location { return Location{Kind: LocationPage, Page: n} }

// ObjectLocation returns the location of an indirect object.
func ObjectLocation(num, gen int) Location {
	return Location{Kind: LocationObject, Object: num, Generation: gen}
}

// InfoLocation returns the document information location.
func InfoLocation() Location { return Location{Kind: LocationInfo} }

// String formats the location for logs and reports.
func (l Location) String() string {
	switch l.Kind {
	case LocationPage:
		return fmt.Sprintf("page %d", l.Page)
	case LocationObject:
		return fmt.Sprintf("object %d %d", l.Object, l.Generation)
	default:
		return l.Kind.String()
	}
}

// Less orders locations: catalog, pages ascending, objects ascending, info.
func (l Location) Less(o Location) bool {
	if l.Kind != o.Kind {
		return l.Kind < o.Kind
	}
	switch l.Kind {
	case LocationPage:
		return l.Page < o.Page
	case LocationObject:
		if l.Object != o.Object {
			return l.Object < o.Object
		}
		return l.Generation < o.Generation
	default:
		return false
	}
}

// Finding is one risk indicator found in a document.
type Finding struct {
	Location Location `json:"location"`

	// Key is the dictionary key or the byte pattern that matched.
	Key string `json:"key"`

	Severity Severity `json:"severity"`

	// Detail holds extra context, such as script classification.
	Detail string `json:"detail,omitempty"`

	// Markers lists obfuscation markers seen in script payloads.
	Markers []string `json:"markers,omitempty"`
}

// String formats the finding as "location: key".
func (f Finding) String() string {
	return f.Location.String() + ": " + f.Key
}

// ScanResult is the outcome of one risk scan.
type ScanResult struct {
	Findings []Finding `json:"findings"`

	// Score is the number of findings.
	Score int `json:"score"`
}

// NewScanResult sorts findings into report order (stable within one
// location) and computes the score.
func NewScanResult(findings []Finding) ScanResult {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Location.Less(sorted[j].Location)
	})
	return ScanResult{Findings: sorted, Score: len(sorted)}
}

// Has reports whether a finding with the given key exists at loc.
func (r ScanResult) Has(loc Location, key string) bool {
	for _, f := range r.Findings {
		if f.Location == loc && f.Key == key {
			return true
		}
	}
	return false
}

// Highest returns the highest severity among the findings, or SeverityInfo
// when there are none.
func (r ScanResult) Highest() Severity {
	high := SeverityInfo
	for _, f := range r.Findings {
		if f.Severity > high {
			high = f.Severity
		}
	}
	return high
}

// Summary counts findings per severity.
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Total returns the number of counted findings.
func (s Summary) Total() int {
	return s.Critical + s.High + s.Medium + s.Low + s.Info
}

// Summary returns the per-severity counts of the result.
func (r ScanResult) Summary() Summary {
	var s Summary
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		default:
			s.Info++
		}
	}
	return s
}
