package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// LinkParser splits a taxonomy term link into taxonomy code and slug path.
type LinkParser interface {
	ParseLink(link string) (code, path string, err error)
}

// ReferenceIntegrityRule warns about stored references whose taxonomy term no
// longer exists. Links outside the taxonomy URL space are ignored.
func ReferenceIntegrityRule(parser LinkParser) domain.Rule {
	return referenceIntegrityRule{parser: parser}
}

type referenceIntegrityRule struct {
	parser LinkParser
}

func (referenceIntegrityRule) Name() string { return "reference_integrity" }

func (r referenceIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if r.parser == nil {
		return res, nil
	}
	touched := false
	for _, change := range changes {
		if change.Entity == domain.EntityReference || change.Entity == domain.EntityTerm {
			touched = true
			break
		}
	}
	if !touched {
		return res, nil
	}
	for _, ref := range view.ListReferences() {
		code, path, err := r.parser.ParseLink(ref.Reference)
		if err != nil {
			continue
		}
		slug := path[strings.LastIndex(path, "/")+1:]
		if term, ok := view.FindTerm(code, slug); ok && term.Path == path {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "reference_integrity",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("record %s references missing term %s/%s", ref.RecordID, code, path),
			Entity:   domain.EntityReference,
			EntityID: ref.RecordID,
		})
	}
	return res, nil
}
