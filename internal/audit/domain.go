package audit

import (
	"fmt"
	"strings"
	"time"
)

// Severity grades how urgently a record deserves attention.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// ParseSeverity accepts any casing.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("audit: unknown severity %q", raw)
	}
	return s, nil
}

// Category buckets records for dashboards.
type Category string

const (
	CategorySecurity    Category = "SECURITY"
	CategorySystem      Category = "SYSTEM"
	CategoryAdminAction Category = "ADMIN_ACTION"
	CategoryUserAction  Category = "USER_ACTION"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySecurity, CategorySystem, CategoryAdminAction, CategoryUserAction:
		return true
	}
	return false
}

// ParseCategory accepts any casing.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("audit: unknown category %q", raw)
	}
	return c, nil
}

// Entry is what callers hand to Logger.Record. Severity and Category may be left
// empty; they are derived from Action before the write.
type Entry struct {
	ActorID    string         `json:"actorId,omitempty"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType,omitempty"`
	TargetID   string         `json:"targetId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Severity   Severity       `json:"severity,omitempty"`
	Category   Category       `json:"category,omitempty"`
}

// Record is a persisted, immutable audit fact.
type Record struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actorId,omitempty"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType,omitempty"`
	TargetID   string         `json:"targetId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Severity   Severity       `json:"severity"`
	Category   Category       `json:"category"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Filters narrows timeline and export queries. Zero values mean "any".
type Filters struct {
	From     time.Time
	To       time.Time
	ActorID  string
	Action   string // prefix match
	Severity Severity
	Category Category
	Page     int
	PageSize int
}

// PagingInfo carries simple next/prev paging metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps one timeline page.
type Result struct {
	Records []Record   `json:"records"`
	Paging  PagingInfo `json:"paging"`
}
