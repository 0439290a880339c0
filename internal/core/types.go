package core

import "github.com/Narodni-repozitar/nr-Nresults/pkg/domain"

type (
	EntityType           = domain.EntityType
	Severity             = domain.Severity
	Record               = domain.Record
	Validity             = domain.Validity
	PersistentIdentifier = domain.PersistentIdentifier
	Taxonomy             = domain.Taxonomy
	Term                 = domain.Term
	Change               = domain.Change
	Action               = domain.Action
	Violation            = domain.Violation
	Result               = domain.Result
	RuleViolationError   = domain.RuleViolationError
	ErrNotFound          = domain.ErrNotFound
	Rule                 = domain.Rule
	RulesEngine          = domain.RulesEngine
	Transaction          = domain.Transaction
	TransactionView      = domain.TransactionView
	PersistentStore      = domain.PersistentStore
)

const (
	EntityRecord    = domain.EntityRecord
	EntityPID       = domain.EntityPID
	EntityReference = domain.EntityReference
	EntityTerm      = domain.EntityTerm
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// Document keys maintained by the service.
const (
	FieldSchema        = "$schema"
	FieldControlNumber = "control_number"
	FieldValidity      = "oarepo:validity"
	FieldDraft         = "oarepo:draft"
)
