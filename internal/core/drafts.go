package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Narodni-repozitar/nr-Nresults/internal/pidstore"
	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
	"github.com/Narodni-repozitar/nr-Nresults/internal/taxonomy"
)

// CreateDraft stores data as a draft of typeName under a freshly minted draft
// PID. Invalid data is kept; its validation errors are recorded as validity.
func (s *Service) CreateDraft(ctx context.Context, typeName string, data map[string]any) (Record, Result, error) {
	var created Record
	var res Result
	err := s.run(ctx, "create_draft", func(ctx context.Context) (string, error) {
		rt, err := s.recordType(typeName)
		if err != nil {
			return "", err
		}
		if rt.DraftPIDType == "" || rt.DraftMinter == "" {
			return "", fmt.Errorf("record type %s does not support drafts", rt.Name)
		}
		minter, ok := s.Minter(rt.DraftMinter)
		if !ok {
			return "", fmt.Errorf("record type %s: unknown draft minter %q", rt.Name, rt.DraftMinter)
		}
		doc, err := s.prepare(rt, data)
		if err != nil {
			return "", err
		}
		metadata, validity, err := s.loadForRecord(ctx, rt, doc, true)
		if err != nil {
			return "", err
		}
		var pid PersistentIdentifier
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			id := uuid.NewString()
			var err error
			if pid, err = minter(tx, id, metadata); err != nil {
				return err
			}
			created, err = tx.CreateRecord(Record{
				ID:       id,
				Type:     rt.Name,
				Schema:   schemaOf(metadata),
				Draft:    true,
				Metadata: metadata,
				Validity: validity,
			})
			if err != nil {
				return err
			}
			tx.SetReferences(created.ID, taxonomy.ExtractReferences(metadata))
			return nil
		})
		if err != nil {
			return "", err
		}
		s.afterCommit(ctx, rt.DraftIndex, pid, created)
		return created.ID, nil
	})
	return created, res, err
}

// PublishDraft turns a valid draft into a published record carrying the same
// control_number. The draft is removed and its PID redirected to the record.
func (s *Service) PublishDraft(ctx context.Context, draftPIDType, draftPIDValue string) (Record, Result, error) {
	var published Record
	var res Result
	err := s.run(ctx, "publish_draft", func(ctx context.Context) (string, error) {
		rt, isDraft, err := s.recordTypeForPID(draftPIDType)
		if err != nil {
			return "", err
		}
		if !isDraft {
			return "", fmt.Errorf("pid type %s is not a draft pid type", draftPIDType)
		}
		_, draft, err := s.ResolvePID(ctx, draftPIDType, draftPIDValue)
		if err != nil {
			return "", err
		}
		if !draft.Draft {
			return draft.ID, fmt.Errorf("record %s is not a draft", draft.ID)
		}
		if draft.Validity != nil && !draft.Validity.Valid {
			ve := &schema.ValidationError{}
			for field, msgs := range draft.Validity.Errors {
				for _, m := range msgs {
					ve.Add(field, "draft", m)
				}
			}
			return draft.ID, fmt.Errorf("%w: %w", ErrDraftInvalid, ve)
		}
		doc, err := s.prepare(rt, draft.Metadata)
		if err != nil {
			return draft.ID, err
		}
		metadata, err := s.load(ctx, rt, doc)
		if err != nil {
			return draft.ID, fmt.Errorf("%w: %w", ErrDraftInvalid, err)
		}
		minter, ok := s.Minter(rt.Minter)
		if !ok {
			return draft.ID, fmt.Errorf("record type %s: unknown minter %q", rt.Name, rt.Minter)
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
			if published, err = tx.CreateRecord(rec); err != nil {
				return err
			}
			tx.SetReferences(published.ID, taxonomy.ExtractReferences(metadata))
			if _, err := pidstore.Redirect(tx, draftPIDType, draftPIDValue, pid); err != nil {
				return err
			}
			return tx.DeleteRecord(draft.ID)
		})
		if err != nil {
			return draft.ID, err
		}
		s.unindex(ctx, rt.DraftIndex, draft.ID)
		s.afterCommit(ctx, rt.SearchIndex, pid, published)
		s.logger.Info("core.draft.published", "draft", draftPIDType+":"+draftPIDValue, "pid", pid.Key())
		return published.ID, nil
	})
	return published, res, err
}
