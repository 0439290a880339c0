package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Narodni-repozitar/nr-Nresults/internal/taxonomy"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// refreshAttempts bounds how often RefreshReferences reloads records that were
// changed while their references were being dereferenced.
const refreshAttempts = 3

// RefreshReferences re-dereferences every record referencing one of links and
// stores the refreshed metadata. Records that no longer load are left alone
// and logged. A record updated while it was being refreshed is not
// overwritten; it is reloaded and refreshed again. Deleted records are
// skipped. It returns the ids of the refreshed records.
func (s *Service) RefreshReferences(ctx context.Context, links ...string) ([]string, Result, error) {
	var refreshed []string
	var res Result
	err := s.run(ctx, "refresh_references", func(ctx context.Context) (string, error) {
		ids := make(map[string]struct{})
		for _, link := range links {
			for _, id := range s.store.ReferencingRecords(link) {
				ids[id] = struct{}{}
			}
		}
		pendingIDs := sortedKeys(ids)
		for attempt := 1; len(pendingIDs) > 0; attempt++ {
			if attempt > refreshAttempts {
				s.logger.Warn("core.references.refresh_conflict", "records", pendingIDs, "attempts", refreshAttempts)
				break
			}
			committed, stale, attemptRes, err := s.refreshRecords(ctx, pendingIDs)
			if err != nil {
				return "", err
			}
			res.Merge(attemptRes)
			refreshed = append(refreshed, committed...)
			pendingIDs = stale
		}
		sort.Strings(refreshed)
		return strings.Join(links, ","), nil
	})
	return refreshed, res, err
}

// refreshRecords reloads ids outside a transaction and writes back only the
// records whose revision did not move in the meantime. The ids of the
// records that did move are returned as stale.
func (s *Service) refreshRecords(ctx context.Context, ids []string) (committed, stale []string, res Result, err error) {
	type pending struct {
		rec      Record
		rt       RecordType
		metadata map[string]any
		validity *Validity
	}
	var updates []pending
	for _, id := range ids {
		rec, ok := s.store.GetRecord(id)
		if !ok {
			continue
		}
		rt, ok := s.RecordType(rec.Type)
		if !ok {
			continue
		}
		metadata, validity, err := s.loadForRecord(ctx, rt, domain.CloneDocument(rec.Metadata), rec.Draft)
		if err != nil {
			s.logger.Warn("core.references.refresh_skipped", "record_id", id, "error", err)
			continue
		}
		updates = append(updates, pending{rec: rec, rt: rt, metadata: metadata, validity: validity})
	}
	if len(updates) == 0 {
		return nil, nil, Result{}, nil
	}
	var written []Record
	var types []RecordType
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		written, types, stale = written[:0], types[:0], stale[:0]
		for _, u := range updates {
			current, ok := tx.FindRecord(u.rec.ID)
			if !ok {
				continue
			}
			if current.Revision != u.rec.Revision {
				stale = append(stale, u.rec.ID)
				continue
			}
			updated, err := tx.UpdateRecord(u.rec.ID, func(r *Record) error {
				r.Metadata = u.metadata
				r.Validity = u.validity
				return nil
			})
			if err != nil {
				return err
			}
			tx.SetReferences(updated.ID, taxonomy.ExtractReferences(u.metadata))
			written = append(written, updated)
			types = append(types, u.rt)
		}
		return nil
	})
	if err != nil {
		return nil, nil, res, err
	}
	for i, rec := range written {
		committed = append(committed, rec.ID)
		s.reindex(ctx, types[i], rec)
	}
	return committed, stale, res, nil
}

func (s *Service) reindex(ctx context.Context, rt RecordType, rec Record) {
	index := indexFor(rt, rec.Draft)
	if s.search == nil || index == "" {
		return
	}
	if err := s.ensureIndex(index); err != nil {
		return
	}
	if err := s.search.Index(ctx, index, rec.ID, Document(rec)); err != nil {
		s.logger.Error("core.search.index_failed", "index", index, "record_id", rec.ID, "error", err)
	}
}

// UpdateTerm replaces the extra data of a taxonomy term and refreshes every
// record embedding the term or one of its descendants.
func (s *Service) UpdateTerm(ctx context.Context, taxonomyCode, slug string, extra map[string]any) (Term, []string, error) {
	if s.taxonomy == nil {
		return Term{}, nil, fmt.Errorf("taxonomy service is not configured")
	}
	var term Term
	err := s.run(ctx, "update_term", func(ctx context.Context) (string, error) {
		var err error
		term, err = s.taxonomy.UpdateTerm(ctx, taxonomyCode, slug, extra)
		if err != nil {
			return taxonomyCode + "/" + slug, err
		}
		return term.Key(), nil
	})
	if err != nil {
		return Term{}, nil, err
	}
	refreshed, _, err := s.RefreshReferences(ctx, s.taxonomy.Descendants(term)...)
	return term, refreshed, err
}
