package core

import (
	"context"
	"fmt"

	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// PIDObjectConsistencyRule blocks transactions leaving a registered record PID
// without its record.
func PIDObjectConsistencyRule() domain.Rule {
	return pidObjectConsistencyRule{}
}

type pidObjectConsistencyRule struct{}

func (pidObjectConsistencyRule) Name() string { return "pid_object_consistency" }

func (pidObjectConsistencyRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	checked := make(map[string]struct{})
	check := func(pid domain.PersistentIdentifier) {
		if _, done := checked[pid.Key()]; done {
			return
		}
		checked[pid.Key()] = struct{}{}
		if !pid.IsRegistered() || pid.ObjectType != domain.ObjectTypeRecord {
			return
		}
		if _, ok := view.FindRecord(pid.ObjectUUID); ok {
			return
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "pid_object_consistency",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("pid %s is registered to missing record %s", pid.Key(), pid.ObjectUUID),
			Entity:   domain.EntityPID,
			EntityID: pid.Key(),
		})
	}

	var deleted map[string]struct{}
	for _, change := range changes {
		switch change.Entity {
		case domain.EntityPID:
			if pid, ok := change.After.(domain.PersistentIdentifier); ok {
				if current, found := view.FindPID(pid.PIDType, pid.PIDValue); found {
					check(current)
				}
			}
		case domain.EntityRecord:
			if change.Action != domain.ActionDelete {
				continue
			}
			if rec, ok := change.Before.(domain.Record); ok {
				if deleted == nil {
					deleted = make(map[string]struct{})
				}
				deleted[rec.ID] = struct{}{}
			}
		}
	}
	if len(deleted) > 0 {
		for _, pid := range view.ListPIDs() {
			if _, hit := deleted[pid.ObjectUUID]; hit {
				check(pid)
			}
		}
	}
	return res, nil
}
