package core

import (
	"context"
	"fmt"

	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// ImmutableControlNumberRule blocks updates that change a record's control_number.
func ImmutableControlNumberRule() domain.Rule {
	return immutableControlNumberRule{}
}

type immutableControlNumberRule struct{}

func (immutableControlNumberRule) Name() string { return "immutable_control_number" }

func (immutableControlNumberRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityRecord || change.Action != domain.ActionUpdate {
			continue
		}
		before, okBefore := change.Before.(domain.Record)
		after, okAfter := change.After.(domain.Record)
		if !okBefore || !okAfter {
			continue
		}
		if before.ControlNumber() == after.ControlNumber() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "immutable_control_number",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("control_number of record %s cannot change from %q to %q", after.ID, before.ControlNumber(), after.ControlNumber()),
			Entity:   domain.EntityRecord,
			EntityID: after.ID,
		})
	}
	return res, nil
}
