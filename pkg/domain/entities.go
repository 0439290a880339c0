// Package domain defines the persistent entities, value types, and rule
// evaluation primitives shared by the record host and its plugins.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityRecord identifies a metadata record (published or draft).
	EntityRecord EntityType = "record"
	// EntityPID identifies a persistent identifier row.
	EntityPID EntityType = "pid"
	// EntityReference identifies a record-to-term reference row.
	EntityReference EntityType = "reference"
	// EntityTaxonomy identifies a taxonomy (vocabulary) header.
	EntityTaxonomy EntityType = "taxonomy"
	// EntityTerm identifies a taxonomy term.
	EntityTerm EntityType = "term"
)

// PIDStatus mirrors the persistent identifier lifecycle.
type PIDStatus string

// Persistent identifier statuses.
const (
	PIDStatusNew        PIDStatus = "N"
	PIDStatusReserved   PIDStatus = "K"
	PIDStatusRegistered PIDStatus = "R"
	PIDStatusRedirected PIDStatus = "M"
	PIDStatusDeleted    PIDStatus = "D"
)

// ObjectTypeRecord is the object type assigned to PIDs pointing at records.
const ObjectTypeRecord = "rec"

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Record is a structured metadata document representing one repository entry.
// Metadata holds the validated (dereferenced) document, including its
// control_number.
type Record struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Revision  int            `json:"revision"`
	Schema    string         `json:"$schema,omitempty"`
	Draft     bool           `json:"draft,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	Validity  *Validity      `json:"validity,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ControlNumber returns the record's external identifier, or "" when unset.
func (r Record) ControlNumber() string {
	if r.Metadata == nil {
		return ""
	}
	if v, ok := r.Metadata["control_number"].(string); ok {
		return v
	}
	return ""
}

// Validity captures the outcome of validating a draft record.
type Validity struct {
	Valid  bool                `json:"valid"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// PersistentIdentifier maps an external (type, value) pair onto an internal object.
type PersistentIdentifier struct {
	PIDType    string    `json:"pid_type"`
	PIDValue   string    `json:"pid_value"`
	ObjectType string    `json:"object_type,omitempty"`
	ObjectUUID string    `json:"object_uuid,omitempty"`
	Status     PIDStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key returns the unique storage key of the identifier.
func (p PersistentIdentifier) Key() string {
	return PIDKey(p.PIDType, p.PIDValue)
}

// IsRegistered reports whether the identifier resolves to a live object.
func (p PersistentIdentifier) IsRegistered() bool {
	return p.Status == PIDStatusRegistered
}

// PIDKey builds the storage key for a (type, value) pair.
func PIDKey(pidType, pidValue string) string {
	return pidType + ":" + pidValue
}

// Taxonomy is a named controlled vocabulary.
type Taxonomy struct {
	Code      string         `json:"code"`
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Term is a hierarchical taxonomy entry referenced by slug from record fields.
// Path is the slash separated slug path from the taxonomy root; Level is the
// number of path segments.
type Term struct {
	Taxonomy  string         `json:"taxonomy"`
	Slug      string         `json:"slug"`
	Parent    string         `json:"parent,omitempty"`
	Path      string         `json:"path"`
	Level     int            `json:"level"`
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Key returns the unique storage key of the term.
func (t Term) Key() string {
	return TermKey(t.Taxonomy, t.Slug)
}

// TermKey builds the storage key for a term within a taxonomy.
func TermKey(taxonomy, slug string) string {
	return taxonomy + "/" + slug
}

// RecordReference links a record to an external resource (a taxonomy term URL)
// it embeds in dereferenced form.
type RecordReference struct {
	RecordID  string `json:"record_id"`
	Reference string `json:"reference"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return fmt.Sprintf("transaction blocked by rules: %s: %s", v.Rule, v.Message)
		}
	}
	return "transaction blocked by rules"
}

// ErrNotFound is returned when a lookup by key fails.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrAlreadyExists is returned when a create collides with an existing key.
type ErrAlreadyExists struct {
	Entity EntityType
	ID     string
}

func (e ErrAlreadyExists) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.ID)
}
