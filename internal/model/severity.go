package model

import "strings"

// Severity represents the risk level of a finding.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct risk.
	SeverityInfo Severity = iota

	// SeverityLow indicates content that is not executable but may leak data.
	// Examples: document metadata mentioning scripts, EXIF blocks in images.
	SeverityLow

	// SeverityMedium indicates interactive structures that can carry actions.
	// Examples: forms, name trees, annotations.
	SeverityMedium

	// SeverityHigh indicates automatic actions or embedded action syntax.
	// Examples: OpenAction, additional-actions dictionaries.
	SeverityHigh

	// SeverityCritical indicates executable script.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// FindingInfo contains metadata about a finding key including severity,
// impact description, and remediation recommendation.
type FindingInfo struct {
	Severity       Severity
	Impact         string
	Recommendation string
}

// MetadataKeyPrefix prefixes finding keys raised for document information
// entries, for example "metadata:Producer".
const MetadataKeyPrefix = "metadata:"

// findingInfoMapping maps finding keys to their metadata. Catalog and page
// keys are dictionary names; stream keys are the matched byte pattern.
var findingInfoMapping = map[string]FindingInfo{
	// CRITICAL
	"JavaScript": {
		Severity:       SeverityCritical,
		Impact:         "Document-level JavaScript runs in the viewer when the file is opened or an event fires.",
		Recommendation: "Remove the JavaScript entry. Clean documents never need embedded scripts.",
	},
	"JS": {
		Severity:       SeverityCritical,
		Impact:         "A JavaScript action is attached directly to this dictionary.",
		Recommendation: "Remove the JS entry and the action that owns it.",
	},

	// HIGH
	"OpenAction": {
		Severity:       SeverityHigh,
		Impact:         "An action runs automatically when the document is opened.",
		Recommendation: "Remove OpenAction so opening the file performs no action.",
	},
	"AA": {
		Severity:       SeverityHigh,
		Impact:         "Additional actions fire on viewer events such as page open, close or print.",
		Recommendation: "Remove the additional-actions dictionary.",
	},
	"/JavaScript": {
		Severity:       SeverityHigh,
		Impact:         "A stream contains JavaScript action syntax.",
		Recommendation: "Empty the stream payload.",
	},
	"/JS": {
		Severity:       SeverityHigh,
		Impact:         "A stream contains a JS action key.",
		Recommendation: "Empty the stream payload.",
	},
	"javascript:": {
		Severity:       SeverityHigh,
		Impact:         "A stream contains a javascript: URI that executes when followed.",
		Recommendation: "Empty the stream payload.",
	},
	"eval(": {
		Severity:       SeverityHigh,
		Impact:         "A stream contains a call to eval, typical of obfuscated scripts.",
		Recommendation: "Empty the stream payload.",
	},

	// MEDIUM
	"AcroForm": {
		Severity:       SeverityMedium,
		Impact:         "Interactive form fields can carry calculation, validation and submit actions.",
		Recommendation: "Remove the interactive form.",
	},
	"Names": {
		Severity:       SeverityMedium,
		Impact:         "The name dictionary can hold document-level JavaScript and embedded files.",
		Recommendation: "Remove the name dictionary.",
	},
	"Annots": {
		Severity:       SeverityMedium,
		Impact:         "Annotations can hold link and widget actions.",
		Recommendation: "Remove the annotations, or strip their actions when they must be kept.",
	},
	"function(": {
		Severity:       SeverityMedium,
		Impact:         "A stream contains a function definition that may be script code.",
		Recommendation: "Empty the stream payload.",
	},

	// LOW
	"Outlines": {
		Severity:       SeverityLow,
		Impact:         "Bookmarks can carry actions.",
		Recommendation: "Remove the outline tree.",
	},
	"metadata": {
		Severity:       SeverityLow,
		Impact:         "A document information entry mentions a script.",
		Recommendation: "Review the document information dictionary.",
	},
	"exif": {
		Severity:       SeverityLow,
		Impact:         "An embedded JPEG image carries EXIF metadata such as camera, author or GPS data.",
		Recommendation: "Re-encode the images without metadata before publishing.",
	},
}

func mappingKey(key string) string {
	if strings.HasPrefix(key, MetadataKeyPrefix) {
		return "metadata"
	}
	return key
}

// GetSeverity returns the severity level for a finding key.
// Returns SeverityInfo if the key is not in the mapping.
func GetSeverity(key string) Severity {
	if info, ok := findingInfoMapping[mappingKey(key)]; ok {
		return info.Severity
	}
	return SeverityInfo
}

// GetFindingInfo returns the full finding information for a finding key.
// Returns a default FindingInfo with SeverityInfo if the key is not in the mapping.
func GetFindingInfo(key string) FindingInfo {
	if info, ok := findingInfoMapping[mappingKey(key)]; ok {
		return info
	}
	return FindingInfo{
		Severity:       SeverityInfo,
		Impact:         "Unknown finding type. Review manually.",
		Recommendation: "Investigate the finding and assess risk.",
	}
}
