// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Record aliases domain.Record for in-memory persistence operations.
	Record = domain.Record
	// PersistentIdentifier aliases domain.PersistentIdentifier.
	PersistentIdentifier = domain.PersistentIdentifier
	// Taxonomy aliases domain.Taxonomy.
	Taxonomy = domain.Taxonomy
	// Term aliases domain.Term.
	Term = domain.Term
	// RecordReference aliases domain.RecordReference.
	RecordReference = domain.RecordReference
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	records    map[string]Record
	pids       map[string]PersistentIdentifier
	references map[string][]string
	taxonomies map[string]Taxonomy
	terms      map[string]Term
	recordSeq  int64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Records    map[string]Record               `json:"records"`
	PIDs       map[string]PersistentIdentifier `json:"pids"`
	References map[string][]string             `json:"references"`
	Taxonomies map[string]Taxonomy             `json:"taxonomies"`
	Terms      map[string]Term                 `json:"terms"`
	Sequences  map[string]int64                `json:"sequences"`
}

const recordIDSequence = "recid"

func newMemoryState() memoryState {
	return memoryState{
		records:    make(map[string]Record),
		pids:       make(map[string]PersistentIdentifier),
		references: make(map[string][]string),
		taxonomies: make(map[string]Taxonomy),
		terms:      make(map[string]Term),
	}
}

func (s memoryState) clone() memoryState {
	cp := newMemoryState()
	for k, v := range s.records {
		cp.records[k] = domain.CloneRecord(v)
	}
	for k, v := range s.pids {
		cp.pids[k] = v
	}
	for k, v := range s.references {
		cp.references[k] = append([]string(nil), v...)
	}
	for k, v := range s.taxonomies {
		cp.taxonomies[k] = cloneTaxonomy(v)
	}
	for k, v := range s.terms {
		cp.terms[k] = domain.CloneTerm(v)
	}
	cp.recordSeq = s.recordSeq
	return cp
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{
		Records:    cloned.records,
		PIDs:       cloned.pids,
		References: cloned.references,
		Taxonomies: cloned.taxonomies,
		Terms:      cloned.terms,
		Sequences:  map[string]int64{recordIDSequence: cloned.recordSeq},
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		records:    s.Records,
		pids:       s.PIDs,
		references: s.References,
		taxonomies: s.Taxonomies,
		terms:      s.Terms,
		recordSeq:  s.Sequences[recordIDSequence],
	}
	return state.clone()
}

func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Records == nil {
		snapshot.Records = map[string]Record{}
	}
	if snapshot.PIDs == nil {
		snapshot.PIDs = map[string]PersistentIdentifier{}
	}
	if snapshot.References == nil {
		snapshot.References = map[string][]string{}
	}
	if snapshot.Taxonomies == nil {
		snapshot.Taxonomies = map[string]Taxonomy{}
	}
	if snapshot.Terms == nil {
		snapshot.Terms = map[string]Term{}
	}
	if snapshot.Sequences == nil {
		snapshot.Sequences = map[string]int64{}
	}
	for id, rec := range snapshot.Records {
		if rec.ID == "" {
			rec.ID = id
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
		snapshot.Records[id] = rec
	}
	return snapshot
}

func cloneTaxonomy(t Taxonomy) Taxonomy {
	cp := t
	cp.Extra = domain.CloneDocument(t.Extra)
	return cp
}

// Store provides an in-memory transactional store for records, identifiers and taxonomies.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine for integration points like plugins.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the clock used to stamp entities.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// RunInTransaction applies fn to a copy of the state, evaluates rules against the
// recorded changes and swaps the copy in when nothing blocks.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// GetRecord returns a record by internal id.
func (s *Store) GetRecord(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.records[id]
	if !ok {
		return Record{}, false
	}
	return domain.CloneRecord(rec), true
}

// ListRecords returns all records ordered by creation time.
func (s *Store) ListRecords() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListRecords()
}

// GetPID returns the identifier for (pidType, pidValue).
func (s *Store) GetPID(pidType, pidValue string) (PersistentIdentifier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.state.pids[domain.PIDKey(pidType, pidValue)]
	return pid, ok
}

// ListPIDs returns all identifiers ordered by key.
func (s *Store) ListPIDs() []PersistentIdentifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListPIDs()
}

// ReferencingRecords lists the ids of records holding reference.
func (s *Store) ReferencingRecords(reference string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for recordID, refs := range s.state.references {
		if containsString(refs, reference) {
			out = append(out, recordID)
		}
	}
	sort.Strings(out)
	return out
}

// GetTerm returns a taxonomy term by slug.
func (s *Store) GetTerm(taxonomy, slug string) (Term, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term, ok := s.state.terms[domain.TermKey(taxonomy, slug)]
	if !ok {
		return Term{}, false
	}
	return domain.CloneTerm(term), true
}

// ListTaxonomies returns all taxonomies ordered by code.
func (s *Store) ListTaxonomies() []Taxonomy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Taxonomy, 0, len(s.state.taxonomies))
	for _, t := range s.state.taxonomies {
		out = append(out, cloneTaxonomy(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ListTerms returns the terms of a taxonomy ordered by path.
func (s *Store) ListTerms(taxonomy string) []Term {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListTerms(taxonomy)
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListRecords() []Record {
	out := make([]Record, 0, len(v.state.records))
	for _, r := range v.state.records {
		out = append(out, domain.CloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (v transactionView) FindRecord(id string) (Record, bool) {
	r, ok := v.state.records[id]
	if !ok {
		return Record{}, false
	}
	return domain.CloneRecord(r), true
}

func (v transactionView) ListPIDs() []PersistentIdentifier {
	out := make([]PersistentIdentifier, 0, len(v.state.pids))
	for _, p := range v.state.pids {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (v transactionView) FindPID(pidType, pidValue string) (PersistentIdentifier, bool) {
	p, ok := v.state.pids[domain.PIDKey(pidType, pidValue)]
	return p, ok
}

func (v transactionView) ListReferences() []RecordReference {
	var out []RecordReference
	for recordID, refs := range v.state.references {
		for _, ref := range refs {
			out = append(out, RecordReference{RecordID: recordID, Reference: ref})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordID == out[j].RecordID {
			return out[i].Reference < out[j].Reference
		}
		return out[i].RecordID < out[j].RecordID
	})
	return out
}

func (v transactionView) FindTerm(taxonomy, slug string) (Term, bool) {
	t, ok := v.state.terms[domain.TermKey(taxonomy, slug)]
	if !ok {
		return Term{}, false
	}
	return domain.CloneTerm(t), true
}

func (v transactionView) ListTerms(taxonomy string) []Term {
	var out []Term
	for _, t := range v.state.terms {
		if t.Taxonomy == taxonomy {
			out = append(out, domain.CloneTerm(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// CreateRecord stores a new record within the transaction.
func (tx *transaction) CreateRecord(r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := tx.state.records[r.ID]; exists {
		return Record{}, domain.ErrAlreadyExists{Entity: domain.EntityRecord, ID: r.ID}
	}
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	r.Revision = 1
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.records[r.ID] = domain.CloneRecord(r)
	tx.recordChange(Change{Entity: domain.EntityRecord, Action: domain.ActionCreate, After: domain.CloneRecord(r)})
	return domain.CloneRecord(r), nil
}

// UpdateRecord mutates a record using the provided mutator function.
func (tx *transaction) UpdateRecord(id string, mutator func(*Record) error) (Record, error) {
	current, ok := tx.state.records[id]
	if !ok {
		return Record{}, domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
	}
	before := domain.CloneRecord(current)
	if err := mutator(&current); err != nil {
		return Record{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.Revision = before.Revision + 1
	current.UpdatedAt = tx.now
	tx.state.records[id] = domain.CloneRecord(current)
	tx.recordChange(Change{Entity: domain.EntityRecord, Action: domain.ActionUpdate, Before: before, After: domain.CloneRecord(current)})
	return domain.CloneRecord(current), nil
}

// DeleteRecord removes a record and its references from the transaction state.
func (tx *transaction) DeleteRecord(id string) error {
	current, ok := tx.state.records[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
	}
	delete(tx.state.records, id)
	delete(tx.state.references, id)
	tx.recordChange(Change{Entity: domain.EntityRecord, Action: domain.ActionDelete, Before: domain.CloneRecord(current)})
	return nil
}

// FindRecord exposes record lookup within the transaction scope.
func (tx *transaction) FindRecord(id string) (Record, bool) {
	return newTransactionView(&tx.state).FindRecord(id)
}

// CreatePID registers a new persistent identifier; (type, value) pairs are unique.
func (tx *transaction) CreatePID(p PersistentIdentifier) (PersistentIdentifier, error) {
	if p.PIDType == "" || p.PIDValue == "" {
		return PersistentIdentifier{}, fmt.Errorf("pid type and value are required")
	}
	key := p.Key()
	if _, exists := tx.state.pids[key]; exists {
		return PersistentIdentifier{}, domain.ErrAlreadyExists{Entity: domain.EntityPID, ID: key}
	}
	if p.Status == "" {
		p.Status = domain.PIDStatusNew
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.pids[key] = p
	tx.recordChange(Change{Entity: domain.EntityPID, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdatePID mutates an identifier; the (type, value) pair cannot change.
func (tx *transaction) UpdatePID(pidType, pidValue string, mutator func(*PersistentIdentifier) error) (PersistentIdentifier, error) {
	key := domain.PIDKey(pidType, pidValue)
	current, ok := tx.state.pids[key]
	if !ok {
		return PersistentIdentifier{}, domain.ErrNotFound{Entity: domain.EntityPID, ID: key}
	}
	before := current
	if err := mutator(&current); err != nil {
		return PersistentIdentifier{}, err
	}
	current.PIDType = pidType
	current.PIDValue = pidValue
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.pids[key] = current
	tx.recordChange(Change{Entity: domain.EntityPID, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// FindPID exposes identifier lookup within the transaction scope.
func (tx *transaction) FindPID(pidType, pidValue string) (PersistentIdentifier, bool) {
	p, ok := tx.state.pids[domain.PIDKey(pidType, pidValue)]
	return p, ok
}

// PIDsForObject lists identifiers pointing at objectUUID ordered by key.
func (tx *transaction) PIDsForObject(objectUUID string) []PersistentIdentifier {
	var out []PersistentIdentifier
	for _, p := range tx.state.pids {
		if p.ObjectUUID == objectUUID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// NextRecordIdentifier advances and returns the record-id sequence.
func (tx *transaction) NextRecordIdentifier() int64 {
	tx.state.recordSeq++
	return tx.state.recordSeq
}

// ReserveRecordIdentifier moves the sequence to at least value.
func (tx *transaction) ReserveRecordIdentifier(value int64) {
	if value > tx.state.recordSeq {
		tx.state.recordSeq = value
	}
}

// SetReferences replaces the reference set held by a record.
func (tx *transaction) SetReferences(recordID string, references []string) {
	before := append([]string(nil), tx.state.references[recordID]...)
	refs := dedupeStrings(references)
	if len(refs) == 0 {
		delete(tx.state.references, recordID)
	} else {
		tx.state.references[recordID] = refs
	}
	tx.recordChange(Change{Entity: domain.EntityReference, Action: domain.ActionUpdate, Before: before, After: append([]string(nil), refs...)})
}

// CreateTaxonomy stores a new taxonomy header.
func (tx *transaction) CreateTaxonomy(t Taxonomy) (Taxonomy, error) {
	if t.Code == "" {
		return Taxonomy{}, fmt.Errorf("taxonomy code is required")
	}
	if _, exists := tx.state.taxonomies[t.Code]; exists {
		return Taxonomy{}, domain.ErrAlreadyExists{Entity: domain.EntityTaxonomy, ID: t.Code}
	}
	t.CreatedAt = tx.now
	tx.state.taxonomies[t.Code] = cloneTaxonomy(t)
	tx.recordChange(Change{Entity: domain.EntityTaxonomy, Action: domain.ActionCreate, After: cloneTaxonomy(t)})
	return cloneTaxonomy(t), nil
}

// FindTaxonomy exposes taxonomy lookup within the transaction scope.
func (tx *transaction) FindTaxonomy(code string) (Taxonomy, bool) {
	t, ok := tx.state.taxonomies[code]
	if !ok {
		return Taxonomy{}, false
	}
	return cloneTaxonomy(t), true
}

// CreateTerm stores a new term; its taxonomy and parent must already exist.
func (tx *transaction) CreateTerm(t Term) (Term, error) {
	if _, ok := tx.state.taxonomies[t.Taxonomy]; !ok {
		return Term{}, domain.ErrNotFound{Entity: domain.EntityTaxonomy, ID: t.Taxonomy}
	}
	if t.Slug == "" {
		return Term{}, fmt.Errorf("term slug is required")
	}
	key := t.Key()
	if _, exists := tx.state.terms[key]; exists {
		return Term{}, domain.ErrAlreadyExists{Entity: domain.EntityTerm, ID: key}
	}
	t.Path = t.Slug
	t.Level = 1
	if t.Parent != "" {
		parent, ok := tx.state.terms[domain.TermKey(t.Taxonomy, t.Parent)]
		if !ok {
			return Term{}, domain.ErrNotFound{Entity: domain.EntityTerm, ID: domain.TermKey(t.Taxonomy, t.Parent)}
		}
		t.Path = parent.Path + "/" + t.Slug
		t.Level = parent.Level + 1
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.terms[key] = domain.CloneTerm(t)
	tx.recordChange(Change{Entity: domain.EntityTerm, Action: domain.ActionCreate, After: domain.CloneTerm(t)})
	return domain.CloneTerm(t), nil
}

// UpdateTerm mutates the extra data of a term; identity and position are kept.
func (tx *transaction) UpdateTerm(taxonomy, slug string, mutator func(*Term) error) (Term, error) {
	key := domain.TermKey(taxonomy, slug)
	current, ok := tx.state.terms[key]
	if !ok {
		return Term{}, domain.ErrNotFound{Entity: domain.EntityTerm, ID: key}
	}
	before := domain.CloneTerm(current)
	if err := mutator(&current); err != nil {
		return Term{}, err
	}
	current.Taxonomy = before.Taxonomy
	current.Slug = before.Slug
	current.Parent = before.Parent
	current.Path = before.Path
	current.Level = before.Level
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.terms[key] = domain.CloneTerm(current)
	tx.recordChange(Change{Entity: domain.EntityTerm, Action: domain.ActionUpdate, Before: before, After: domain.CloneTerm(current)})
	return domain.CloneTerm(current), nil
}

// FindTerm exposes term lookup within the transaction scope.
func (tx *transaction) FindTerm(taxonomy, slug string) (Term, bool) {
	return newTransactionView(&tx.state).FindTerm(taxonomy, slug)
}

func containsString(values []string, id string) bool {
	for _, v := range values {
		if v == id {
			return true
		}
	}
	return false
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
