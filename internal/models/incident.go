package models

import "time"

// Incident is the immutable input bundle describing one operational failure.
type Incident struct {
	ID          string
	Description string
	Logs        []string
	Alarms      []Alarm
	Metadata    map[string]string
	OccurredAt  time.Time
}

// Alarm is a single monitoring alarm attached to an incident.
type Alarm struct {
	ID        string
	Severity  AlarmSeverity
	Message   string
	Source    string
	Timestamp time.Time
}

// AlarmSeverity enumerates alarm impact levels.
type AlarmSeverity string

const (
	AlarmSeverityInfo     AlarmSeverity = "info"
	AlarmSeverityWarning  AlarmSeverity = "warning"
	AlarmSeverityCritical AlarmSeverity = "critical"
)

// Weight maps a severity onto a comparable score for ranking.
func (s AlarmSeverity) Weight() int {
	switch s {
	case AlarmSeverityCritical:
		return 3
	case AlarmSeverityWarning:
		return 2
	case AlarmSeverityInfo:
		return 1
	default:
		return 0
	}
}
