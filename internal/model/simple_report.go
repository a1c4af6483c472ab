package model

import "time"

// SimpleReport is a summarized, human-readable view of a FileReport.
// It lists what was found in the input, what was removed, and what is
// left in the published file.
type SimpleReport struct {
	Input  string     `json:"input"`
	Output string     `json:"output,omitempty"`
	Status FileStatus `json:"status"`

	// DateCleaned is when the run finished.
	DateCleaned time.Time `json:"date_cleaned"`

	// === Severity Summary of the input ===

	// CriticalCount is the number of critical findings.
	CriticalCount int `json:"critical_count"`

	// HighCount is the number of high severity findings.
	HighCount int `json:"high_count"`

	// MediumCount is the number of medium severity findings.
	MediumCount int `json:"medium_count"`

	// LowCount is the number of low severity findings.
	LowCount int `json:"low_count"`

	// InfoCount is the number of informational findings.
	InfoCount int `json:"info_count"`

	// RiskBefore and RiskAfter are the scores of input and output.
	RiskBefore int `json:"risk_before"`
	RiskAfter  int `json:"risk_after"`

	// Findings contains the input findings.
	Findings []SimpleFinding `json:"findings,omitempty"`

	// Remaining contains findings still present in the output.
	Remaining []SimpleFinding `json:"remaining,omitempty"`

	// Removed lists the removed keys as "location: key".
	Removed []string `json:"removed,omitempty"`

	// Stages lists "name: state" for every stage that ran.
	Stages []string `json:"stages,omitempty"`

	// Error contains the error message if the run failed.
	Error string `json:"error,omitempty"`
}

// SimpleFinding represents a single finding in the simple report.
type SimpleFinding struct {
	// Key is the finding key, mapped in severity.go.
	Key string `json:"key"`

	// Severity is the risk level.
	Severity Severity `json:"severity"`

	// SeverityText is the human-readable severity.
	SeverityText string `json:"severity_text"`

	// Location is where the finding was discovered.
	Location string `json:"location"`

	// Impact explains why the finding matters.
	Impact string `json:"impact,omitempty"`

	// Recommendation provides guidance on how to address this finding.
	Recommendation string `json:"recommendation,omitempty"`

	// Detail is scanner-provided context.
	Detail string `json:"detail,omitempty"`
}

// NewSimpleReport creates a new SimpleReport from a FileReport.
func NewSimpleReport(report *FileReport) *SimpleReport {
	simple := &SimpleReport{
		Input:       report.Input,
		Output:      report.Output,
		Status:      report.Status,
		DateCleaned: report.Finished,
		RiskBefore:  report.RiskBefore(),
		RiskAfter:   report.RiskAfter(),
		Error:       report.Error,
	}

	if report.Before != nil {
		simple.Findings = simpleFindings(report.Before.Findings)
		sum := report.Before.Summary()
		simple.CriticalCount = sum.Critical
		simple.HighCount = sum.High
		simple.MediumCount = sum.Medium
		simple.LowCount = sum.Low
		simple.InfoCount = sum.Info
	}
	if report.After != nil {
		simple.Remaining = simpleFindings(report.After.Findings)
	}
	for _, r := range report.Removals {
		simple.Removed = append(simple.Removed, r.String())
	}
	for _, s := range report.Stages {
		simple.Stages = append(simple.Stages, s.Name+": "+s.State.String())
	}
	return simple
}

// NewSimpleScanReport creates a SimpleReport for a scan-only run.
func NewSimpleScanReport(input string, result ScanResult) *SimpleReport {
	return NewSimpleReport(&FileReport{
		Input:    input,
		Status:   StatusScanned,
		Finished: time.Now(),
		Before:   &result,
	})
}

func simpleFindings(findings []Finding) []SimpleFinding {
	out := make([]SimpleFinding, 0, len(findings))
	for _, f := range findings {
		info := GetFindingInfo(f.Key)
		out = append(out, SimpleFinding{
			Key:            f.Key,
			Severity:       f.Severity,
			SeverityText:   f.Severity.String(),
			Location:       f.Location.String(),
			Impact:         info.Impact,
			Recommendation: info.Recommendation,
			Detail:         f.Detail,
		})
	}
	return out
}

// HasCritical returns true if the input had critical findings.
func (s *SimpleReport) HasCritical() bool {
	return s.CriticalCount > 0
}

// TotalFindings returns the total number of input findings.
func (s *SimpleReport) TotalFindings() int {
	return s.CriticalCount + s.HighCount + s.MediumCount + s.LowCount + s.InfoCount
}

// HasFindings reports whether the input had any finding before cleaning.
func (s *SimpleReport) HasFindings() bool {
	return len(s.Findings) > 0
}

// FindingsBySeverity returns the findings before cleaning with the given
// severity, in report order.
func (s *SimpleReport) FindingsBySeverity(severity Severity) []SimpleFinding {
	var out []SimpleFinding
	for _, f := range s.Findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}
