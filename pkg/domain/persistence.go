package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView

	CreateRecord(Record) (Record, error)
	UpdateRecord(id string, mutator func(*Record) error) (Record, error)
	DeleteRecord(id string) error
	FindRecord(id string) (Record, bool)

	CreatePID(PersistentIdentifier) (PersistentIdentifier, error)
	UpdatePID(pidType, pidValue string, mutator func(*PersistentIdentifier) error) (PersistentIdentifier, error)
	FindPID(pidType, pidValue string) (PersistentIdentifier, bool)
	PIDsForObject(objectUUID string) []PersistentIdentifier

	// NextRecordIdentifier advances the shared record-id sequence and returns the new value.
	NextRecordIdentifier() int64
	// ReserveRecordIdentifier moves the sequence forward so it never hands out value again.
	ReserveRecordIdentifier(value int64)

	SetReferences(recordID string, references []string)

	CreateTaxonomy(Taxonomy) (Taxonomy, error)
	FindTaxonomy(code string) (Taxonomy, bool)
	CreateTerm(Term) (Term, error)
	UpdateTerm(taxonomy, slug string, mutator func(*Term) error) (Term, error)
	FindTerm(taxonomy, slug string) (Term, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListRecords() []Record
	FindRecord(id string) (Record, bool)
	ListPIDs() []PersistentIdentifier
	FindPID(pidType, pidValue string) (PersistentIdentifier, bool)
	ListReferences() []RecordReference
	FindTerm(taxonomy, slug string) (Term, bool)
	ListTerms(taxonomy string) []Term
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetRecord(id string) (Record, bool)
	ListRecords() []Record
	GetPID(pidType, pidValue string) (PersistentIdentifier, bool)
	ListPIDs() []PersistentIdentifier
	ReferencingRecords(reference string) []string
	GetTerm(taxonomy, slug string) (Term, bool)
	ListTaxonomies() []Taxonomy
	ListTerms(taxonomy string) []Term
}
