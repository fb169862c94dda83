package incident

import (
	"fmt"
	"strings"
	"time"
)

// Incident types form a closed set. Anything the extractor cannot place
// into one of the first three buckets lands in TypeOther.
const (
	TypePhysicalAttack = "physical_attack"
	TypeVerbalAttack   = "verbal_attack"
	TypePropertyDamage = "property_damage"
	TypeOther          = "other"
)

const (
	StatusVerified   = "verified"
	StatusUnverified = "unverified"
)

// DateLayout is the calendar-date format used throughout the ledger.
const DateLayout = "2006-01-02"

// SourceCitation attributes an incident to one reporting source.
// Citations are immutable; their identity is the URL.
type SourceCitation struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Date string `json:"date,omitempty"`
}

// Incident is one real-world event. Once a record is part of the ledger,
// only its source set may grow; every other field stays fixed.
type Incident struct {
	Date        string           `json:"date"`
	Location    string           `json:"location"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	Sources     []SourceCitation `json:"sources"`
}

// KnownType reports whether t is one of the closed incident types.
func KnownType(t string) bool {
	switch t {
	case TypePhysicalAttack, TypeVerbalAttack, TypePropertyDamage, TypeOther:
		return true
	default:
		return false
	}
}

// ParseDate parses a ledger calendar date.
func ParseDate(value string) (time.Time, error) {
	ts, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse incident date %q: %w", value, err)
	}
	return ts, nil
}

// Validate checks the structural invariants of a record: a parseable date,
// a known type, a known status, and at least one source citation.
func (i *Incident) Validate() error {
	if i == nil {
		return fmt.Errorf("incident is nil")
	}
	if _, err := ParseDate(i.Date); err != nil {
		return err
	}
	if strings.TrimSpace(i.Location) == "" {
		return fmt.Errorf("incident location is required")
	}
	if strings.TrimSpace(i.Description) == "" {
		return fmt.Errorf("incident description is required")
	}
	if !KnownType(i.Type) {
		return fmt.Errorf("unknown incident type %q", i.Type)
	}
	if i.Status != StatusVerified && i.Status != StatusUnverified {
		return fmt.Errorf("unknown incident status %q", i.Status)
	}
	if len(i.Sources) == 0 {
		return fmt.Errorf("incident has no source citations")
	}
	for idx, src := range i.Sources {
		if strings.TrimSpace(src.URL) == "" {
			return fmt.Errorf("source citation %d has no URL", idx)
		}
	}
	return nil
}

// HasSourceURL reports whether the record already cites url.
func (i *Incident) HasSourceURL(url string) bool {
	for _, src := range i.Sources {
		if src.URL == url {
			return true
		}
	}
	return false
}

// AddSource appends a citation unless its URL is already cited.
// Returns true when the source set grew.
func (i *Incident) AddSource(src SourceCitation) bool {
	if strings.TrimSpace(src.URL) == "" {
		return false
	}
	if i.HasSourceURL(src.URL) {
		return false
	}
	i.Sources = append(i.Sources, src)
	return true
}

// MergeSources unions the citations of other into i, keyed by URL.
// Existing citations are never touched. Returns the number of
// citations added.
func (i *Incident) MergeSources(other *Incident) int {
	if other == nil {
		return 0
	}
	added := 0
	for _, src := range other.Sources {
		if i.AddSource(src) {
			added++
		}
	}
	return added
}
