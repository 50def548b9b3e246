package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// GroupLog is the discriminator shared by every record. It gives the
// secondary index a single partition so all records scan together in time order.
const GroupLog = "LOG"

// TimestampLayout is fixed-width so that byte-wise ordering of encoded
// timestamps equals chronological ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Severity is the closed set of record severities.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Severities lists the valid severities in their canonical order.
var Severities = []Severity{SeverityInfo, SeverityWarning, SeverityError}

// ParseSeverity returns the Severity for s, or false if s is not in the closed set.
func ParseSeverity(s string) (Severity, bool) {
	for _, sev := range Severities {
		if string(sev) == s {
			return sev, true
		}
	}
	return "", false
}

// SeverityList renders the valid set as "info, warning, error".
func SeverityList() string {
	names := make([]string, len(Severities))
	for i, sev := range Severities {
		names[i] = string(sev)
	}
	return strings.Join(names, ", ")
}

// Record is an immutable stored log entry.
type Record struct {
	ID         string   `json:"id"`
	OccurredAt string   `json:"occurredAt"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Group      string   `json:"group"`
}

// FormatTimestamp encodes t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp decodes a value produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// IsStorableText reports whether s is valid UTF-8 without NUL bytes, which
// every engine can store and return unchanged.
func IsStorableText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// Validate checks the invariants every stored record must satisfy. Storage
// engines call it before accepting a write.
func (r Record) Validate() error {
	switch {
	case r.ID == "":
		return &ValidationError{Reason: "record id is empty"}
	case r.Group == "":
		return &ValidationError{Reason: "record group is empty"}
	case strings.TrimSpace(r.Message) == "":
		return &ValidationError{Reason: "record message is empty"}
	case !IsStorableText(r.Message):
		return &ValidationError{Reason: "record message is not valid UTF-8 text"}
	}
	if _, ok := ParseSeverity(string(r.Severity)); !ok {
		return &ValidationError{Reason: "record severity is invalid"}
	}
	if _, err := ParseTimestamp(r.OccurredAt); err != nil {
		return &ValidationError{Reason: "record occurredAt is malformed"}
	}
	return nil
}

// RecentPage is the result of a recency query. Count is always len(Records).
type RecentPage struct {
	Count   int      `json:"count"`
	Records []Record `json:"records"`
}

// NewRecentPage wraps records, normalising nil to an empty slice.
func NewRecentPage(records []Record) RecentPage {
	if records == nil {
		records = []Record{}
	}
	return RecentPage{Count: len(records), Records: records}
}
