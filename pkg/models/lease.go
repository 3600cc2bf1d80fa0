package models

import (
	"strconv"
	"strings"
	"time"
)

// LeaseDocument is the raw lease text held by a session. It is replaced, never mutated.
type LeaseDocument struct {
	Text     string         `json:"text"`
	Source   string         `json:"source,omitempty"`
	Known    *LeaseMetadata `json:"known,omitempty"`
	LoadedAt time.Time      `json:"loaded_at"`
}

// LeaseMetadata holds the structured facts pulled out of a lease.
// Every field may be absent; absence serialises as null.
// Error and RawResponse are only set when the model's answer could not be parsed.
type LeaseMetadata struct {
	PropertyAddress   *string  `json:"property_address"`
	City              *string  `json:"city"`
	State             *string  `json:"state"`
	ZipCode           *string  `json:"zip_code"`
	MonthlyRent       *float64 `json:"monthly_rent"`
	SecurityDeposit   *float64 `json:"security_deposit"`
	LeaseStartDate    *string  `json:"lease_start_date"`
	LeaseEndDate      *string  `json:"lease_end_date"`
	LandlordName      *string  `json:"landlord_name"`
	NumberOfBedrooms  *float64 `json:"number_of_bedrooms"`
	NumberOfBathrooms *float64 `json:"number_of_bathrooms"`

	Error       string `json:"error,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
}

// Failed reports whether the metadata is the parse-failure sentinel.
func (m *LeaseMetadata) Failed() bool {
	return m != nil && m.Error != ""
}

// Empty reports whether m is nil or has none of its eleven fields set.
func (m *LeaseMetadata) Empty() bool {
	if m == nil {
		return true
	}
	return m.PropertyAddress == nil && m.City == nil && m.State == nil && m.ZipCode == nil &&
		m.MonthlyRent == nil && m.SecurityDeposit == nil &&
		m.LeaseStartDate == nil && m.LeaseEndDate == nil && m.LandlordName == nil &&
		m.NumberOfBedrooms == nil && m.NumberOfBathrooms == nil
}

// HasPriceContext reports whether there is enough to ask for a rent comparison:
// a non-zero monthly rent and a non-empty city.
func (m *LeaseMetadata) HasPriceContext() bool {
	if m == nil {
		return false
	}
	return m.MonthlyRent != nil && *m.MonthlyRent != 0 && StringValue(m.City) != ""
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// FormatNumber renders n without trailing zeros (2500 -> "2500", 1.5 -> "1.5").
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Severity grades a problematic clause.
type Severity string

const (
	SeverityLow     Severity = "Low"
	SeverityMedium  Severity = "Medium"
	SeverityHigh    Severity = "High"
	SeverityUnknown Severity = "Unknown"
)

// ParseSeverity maps a model-supplied label such as "High" or "medium concern"
// onto a Severity. Anything unrecognised becomes SeverityUnknown.
func ParseSeverity(s string) Severity {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "low"):
		return SeverityLow
	case strings.HasPrefix(s, "medium"):
		return SeverityMedium
	case strings.HasPrefix(s, "high"):
		return SeverityHigh
	default:
		return SeverityUnknown
	}
}

// ProblematicClause is one clause the model flagged as unfair or unusual.
type ProblematicClause struct {
	Clause             string   `json:"clause"`
	Issue              string   `json:"issue"`
	Severity           Severity `json:"severity"`
	PotentiallyIllegal bool     `json:"potentially_illegal"`
	Recommendation     string   `json:"recommendation"`
}

// RewriteSuggestion is tenant-favorable replacement language for a flagged clause.
type RewriteSuggestion struct {
	OriginalClause string   `json:"original_clause"`
	Severity       Severity `json:"severity"`
	Suggestion     string   `json:"rewrite_suggestion"`
}

// LoadStatus is the outcome of loading a lease.
type LoadStatus string

const (
	LoadStatusSuccess LoadStatus = "success"
	LoadStatusError   LoadStatus = "error"
)

// LoadResult reports the outcome of loading a lease. Loading never returns an error;
// failures are carried here instead.
type LoadResult struct {
	Status   LoadStatus     `json:"status"`
	Message  string         `json:"message"`
	Metadata *LeaseMetadata `json:"metadata,omitempty"`
}
