// Package domain contains the core business entities and value objects for Vigil.
// These models represent the ubiquitous language of the alert correlation domain.
package domain

// Severity represents the severity level of an alert.
type Severity string

// Known severity levels, most severe first.
const (
	SeveritySecurity      Severity = "security"
	SeverityCritical      Severity = "critical"
	SeverityMajor         Severity = "major"
	SeverityMinor         Severity = "minor"
	SeverityWarning       Severity = "warning"
	SeverityIndeterminate Severity = "indeterminate"
	SeverityInformational Severity = "informational"
	SeverityDebug         Severity = "debug"
	SeverityTrace         Severity = "trace"
	SeverityUnknown       Severity = "unknown"
	SeverityCleared       Severity = "cleared"
	SeverityNormal        Severity = "normal"
	SeverityOK            Severity = "ok"
)

// DefaultSeverityOrder maps each severity to its rank in the total order.
// A lower code means more severe. The "cleared" aliases share a code with
// "indeterminate" so a clearing event never reads as a severity increase.
var DefaultSeverityOrder = map[Severity]int{
	SeveritySecurity:      0,
	SeverityCritical:      1,
	SeverityMajor:         2,
	SeverityMinor:         3,
	SeverityWarning:       4,
	SeverityIndeterminate: 5,
	SeverityCleared:       5,
	SeverityNormal:        5,
	SeverityOK:            5,
	SeverityInformational: 6,
	SeverityDebug:         7,
	SeverityTrace:         8,
	SeverityUnknown:       9,
}

// DefaultNormalSeverity is the severity that auto-closes an alert.
const DefaultNormalSeverity = SeverityNormal

// DefaultPreviousSeverity is the placeholder previous severity assigned to a
// brand-new alert before any real severity change has been observed.
const DefaultPreviousSeverity = SeverityIndeterminate

// IsValid returns true if the severity is a known valid value.
func (s Severity) IsValid() bool {
	_, ok := DefaultSeverityOrder[s]
	return ok
}

// Code returns the rank of the severity in the default total order.
// Unknown severities rank alongside "unknown".
func (s Severity) Code() int {
	if code, ok := DefaultSeverityOrder[s]; ok {
		return code
	}
	return DefaultSeverityOrder[SeverityUnknown]
}

// Trend indicates how severity changed between two observations of a problem.
type Trend string

const (
	TrendMoreSevere Trend = "moreSevere"
	TrendNoChange   Trend = "noChange"
	TrendLessSevere Trend = "lessSevere"
)

// TrendOf derives the trend indication from a previous and current severity
// under the default total order.
func TrendOf(previous, current Severity) Trend {
	switch {
	case previous.Code() > current.Code():
		return TrendMoreSevere
	case previous.Code() < current.Code():
		return TrendLessSevere
	default:
		return TrendNoChange
	}
}
