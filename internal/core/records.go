package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Narodni-repozitar/nr-Nresults/internal/pidstore"
	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
	"github.com/Narodni-repozitar/nr-Nresults/internal/taxonomy"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// ErrDraftInvalid is returned when publishing a draft that failed validation.
var ErrDraftInvalid = errors.New("draft is not valid")

// Document renders the stored form of rec: its metadata plus the draft
// markers for drafts.
func Document(rec Record) map[string]any {
	doc := domain.CloneDocument(rec.Metadata)
	if doc == nil {
		doc = map[string]any{}
	}
	if rec.Draft {
		doc[FieldDraft] = true
		validity := map[string]any{"valid": true}
		if rec.Validity != nil {
			validity["valid"] = rec.Validity.Valid
			if len(rec.Validity.Errors) > 0 {
				errs := make(map[string]any, len(rec.Validity.Errors))
				for field, msgs := range rec.Validity.Errors {
					list := make([]any, len(msgs))
					for i, m := range msgs {
						list[i] = m
					}
					errs[field] = list
				}
				validity["errors"] = errs
			}
		}
		doc[FieldValidity] = validity
	}
	return doc
}

// prepare copies data, drops service-maintained keys and checks $schema.
func (s *Service) prepare(rt RecordType, data map[string]any) (map[string]any, error) {
	doc := domain.CloneDocument(data)
	if doc == nil {
		doc = map[string]any{}
	}
	delete(doc, FieldValidity)
	delete(doc, FieldDraft)
	raw, present := doc[FieldSchema]
	if !present || raw == "" {
		doc[FieldSchema] = rt.PreferredSchema
		return doc, nil
	}
	url, ok := raw.(string)
	if !ok || !rt.AllowsSchema(url) {
		ve := &schema.ValidationError{}
		ve.Add(FieldSchema, schema.ConstraintAllowedSchema, fmt.Sprintf("Schema %v is not allowed for %s records.", raw, rt.Name))
		return nil, ve
	}
	return doc, nil
}

// load validates and dereferences doc with the record type's schema. It must
// run outside a store transaction because dereferencing reads the store.
func (s *Service) load(ctx context.Context, rt RecordType, doc map[string]any) (map[string]any, error) {
	return rt.Schema.Load(ctx, doc, schema.WithResolver(s.resolver), schema.WithNow(s.clock.Now))
}

func (s *Service) checkJSONSchema(rt RecordType, rec Record) error {
	if !s.strict || rt.JSONSchema == "" {
		return nil
	}
	return s.jsonSchemas.Validate(rt.JSONSchema, Document(rec))
}

// CreateRecord validates data, mints its identifier and stores the published
// record together with its PID and references.
func (s *Service) CreateRecord(ctx context.Context, typeName string, data map[string]any) (Record, Result, error) {
	var created Record
	var res Result
	err := s.run(ctx, "create_record", func(ctx context.Context) (string, error) {
		rt, err := s.recordType(typeName)
		if err != nil {
			return "", err
		}
		doc, err := s.prepare(rt, data)
		if err != nil {
			return "", err
		}
		metadata, err := s.load(ctx, rt, doc)
		if err != nil {
			return "", err
		}
		minter, ok := s.Minter(rt.Minter)
		if !ok {
			return "", fmt.Errorf("record type %s: unknown minter %q", rt.Name, rt.Minter)
		}
		var pid PersistentIdentifier
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			id := uuid.NewString()
			var err error
			if pid, err = minter(tx, id, metadata); err != nil {
				return err
			}
			rec := Record{ID: id, Type: rt.Name, Schema: schemaOf(metadata), Metadata: metadata}
			if err := s.checkJSONSchema(rt, rec); err != nil {
				return err
			}
			if created, err = tx.CreateRecord(rec); err != nil {
				return err
			}
			tx.SetReferences(created.ID, taxonomy.ExtractReferences(metadata))
			return nil
		})
		if err != nil {
			return "", err
		}
		s.afterCommit(ctx, rt.SearchIndex, pid, created)
		return created.ID, nil
	})
	return created, res, err
}

// GetRecordByID returns a record by its internal id.
func (s *Service) GetRecordByID(_ context.Context, id string) (Record, error) {
	rec, ok := s.store.GetRecord(id)
	if !ok {
		return Record{}, domain.ErrNotFound{Entity: EntityRecord, ID: id}
	}
	return rec, nil
}

// ResolvePID resolves an identifier to its record.
func (s *Service) ResolvePID(_ context.Context, pidType, pidValue string) (PersistentIdentifier, Record, error) {
	return pidstore.Resolve(s.store, pidType, pidValue)
}

// GetRecord returns the record registered under (pidType, pidValue).
func (s *Service) GetRecord(ctx context.Context, pidType, pidValue string) (Record, error) {
	_, rec, err := s.ResolvePID(ctx, pidType, pidValue)
	return rec, err
}

// UpdateRecord replaces the metadata of the record identified by the PID. A
// missing control_number is carried over; a different one is rejected by the
// immutable_control_number rule. Drafts keep invalid data and record its validity.
func (s *Service) UpdateRecord(ctx context.Context, pidType, pidValue string, data map[string]any) (Record, Result, error) {
	var updated Record
	var res Result
	err := s.run(ctx, "update_record", func(ctx context.Context) (string, error) {
		pid, current, err := s.ResolvePID(ctx, pidType, pidValue)
		if err != nil {
			return "", err
		}
		rt, err := s.recordType(current.Type)
		if err != nil {
			return current.ID, err
		}
		doc, err := s.prepare(rt, data)
		if err != nil {
			return current.ID, err
		}
		if _, ok := doc[FieldControlNumber]; !ok {
			doc[FieldControlNumber] = current.ControlNumber()
		}
		metadata, validity, err := s.loadForRecord(ctx, rt, doc, current.Draft)
		if err != nil {
			return current.ID, err
		}
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateRecord(current.ID, func(r *Record) error {
				r.Metadata = metadata
				r.Schema = schemaOf(metadata)
				r.Validity = validity
				return nil
			})
			if err != nil {
				return err
			}
			if !updated.Draft {
				if err := s.checkJSONSchema(rt, updated); err != nil {
					return err
				}
			}
			tx.SetReferences(updated.ID, taxonomy.ExtractReferences(metadata))
			return nil
		})
		if err != nil {
			return current.ID, err
		}
		s.afterCommit(ctx, indexFor(rt, updated.Draft), pid, updated)
		return updated.ID, nil
	})
	return updated, res, err
}

// loadForRecord loads doc strictly for published records. Drafts keep the
// sanitized input when validation fails and report the failure as validity.
func (s *Service) loadForRecord(ctx context.Context, rt RecordType, doc map[string]any, draft bool) (map[string]any, *Validity, error) {
	metadata, err := s.load(ctx, rt, doc)
	if !draft {
		return metadata, nil, err
	}
	if err == nil {
		return metadata, &Validity{Valid: true}, nil
	}
	ve, ok := schema.AsValidationError(err)
	if !ok {
		return nil, nil, err
	}
	return doc, &Validity{Valid: false, Errors: ve.Fields()}, nil
}

// DeleteRecord deletes the record and marks every identifier pointing at it deleted.
func (s *Service) DeleteRecord(ctx context.Context, pidType, pidValue string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_record", func(ctx context.Context) (string, error) {
		_, current, err := s.ResolvePID(ctx, pidType, pidValue)
		if err != nil {
			return "", err
		}
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			for _, p := range tx.PIDsForObject(current.ID) {
				if p.Status == domain.PIDStatusDeleted {
					continue
				}
				if _, err := pidstore.Delete(tx, p.PIDType, p.PIDValue); err != nil {
					return err
				}
			}
			return tx.DeleteRecord(current.ID)
		})
		if err != nil {
			return current.ID, err
		}
		if rt, ok := s.RecordType(current.Type); ok {
			s.unindex(ctx, indexFor(rt, current.Draft), current.ID)
		}
		return current.ID, nil
	})
	return res, err
}

// Validate loads data with the schema of typeName without storing anything and
// returns the dereferenced metadata.
func (s *Service) Validate(ctx context.Context, typeName string, data map[string]any) (map[string]any, error) {
	rt, err := s.recordType(typeName)
	if err != nil {
		return nil, err
	}
	doc, err := s.prepare(rt, data)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, rt, doc)
}

// ValidateJSONSchema checks the stored document of rec against the JSON Schema
// named by its $schema, falling back to the record type's schema.
func (s *Service) ValidateJSONSchema(_ context.Context, rec Record) error {
	url := rec.Schema
	if url == "" || !s.jsonSchemas.Has(url) {
		rt, err := s.recordType(rec.Type)
		if err != nil {
			return err
		}
		url = rt.JSONSchema
	}
	if url == "" {
		return fmt.Errorf("record type %s has no json schema", rec.Type)
	}
	return s.jsonSchemas.Validate(url, Document(rec))
}

// Search queries the search index behind a published or draft endpoint.
func (s *Service) Search(ctx context.Context, endpoint string, req search.Request) (search.Response, error) {
	ep, ok := s.Endpoint(endpoint)
	if !ok {
		return search.Response{}, fmt.Errorf("unknown endpoint %q", endpoint)
	}
	if s.search == nil {
		return search.Response{}, fmt.Errorf("search is not configured")
	}
	if err := s.ensureIndex(ep.SearchIndex); err != nil {
		return search.Response{}, err
	}
	return s.search.Search(ctx, ep.SearchIndex, req)
}

func (s *Service) ensureIndex(name string) error {
	if name == "" {
		return fmt.Errorf("no search index configured")
	}
	if _, ok := s.search.Config(name); ok {
		return nil
	}
	cfg, ok := s.Config().IndexConfig(name)
	if !ok {
		return fmt.Errorf("search index %s is not declared by any plugin", name)
	}
	if err := s.search.CreateIndex(cfg); err != nil {
		if _, exists := s.search.Config(name); exists {
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, index string, pid PersistentIdentifier, rec Record) {
	if s.search != nil && index != "" {
		if err := s.ensureIndex(index); err != nil {
			s.logger.Error("core.search.index_unavailable", "index", index, "error", err)
		} else if err := s.search.Index(ctx, index, rec.ID, Document(rec)); err != nil {
			s.logger.Error("core.search.index_failed", "index", index, "record_id", rec.ID, "error", err)
		}
	}
	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, pid, rec); err != nil {
			s.logger.Error("core.archive.failed", "record_id", rec.ID, "pid", pid.Key(), "error", err)
		}
	}
}

func (s *Service) unindex(ctx context.Context, index, id string) {
	if s.search == nil || index == "" {
		return
	}
	if err := s.ensureIndex(index); err != nil {
		return
	}
	if err := s.search.Delete(ctx, index, id); err != nil {
		s.logger.Error("core.search.delete_failed", "index", index, "record_id", id, "error", err)
	}
}

func indexFor(rt RecordType, draft bool) string {
	if draft {
		return rt.DraftIndex
	}
	return rt.SearchIndex
}

func schemaOf(doc map[string]any) string {
	v, _ := doc[FieldSchema].(string)
	return v
}
