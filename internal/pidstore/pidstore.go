// Package pidstore manages persistent identifiers: creation with uniqueness
// checks, status transitions and resolution to the record they identify.
package pidstore

import (
	"errors"
	"fmt"

	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// Resolution errors.
var (
	ErrPIDExists        = errors.New("persistent identifier already exists")
	ErrPIDDoesNotExist  = errors.New("persistent identifier does not exist")
	ErrPIDDeleted       = errors.New("persistent identifier was deleted")
	ErrPIDRedirected    = errors.New("persistent identifier was redirected")
	ErrPIDUnregistered  = errors.New("persistent identifier is not registered")
	ErrPIDMissingObject = errors.New("persistent identifier points to a missing object")
)

// Lookup is the read side needed by Resolve; domain.PersistentStore satisfies it.
type Lookup interface {
	GetPID(pidType, pidValue string) (domain.PersistentIdentifier, bool)
	GetRecord(id string) (domain.Record, bool)
}

// Create registers (pidType, pidValue) for the object. A collision yields ErrPIDExists.
func Create(tx domain.Transaction, pidType, pidValue, objectType, objectUUID string, status domain.PIDStatus) (domain.PersistentIdentifier, error) {
	pid, err := tx.CreatePID(domain.PersistentIdentifier{
		PIDType:    pidType,
		PIDValue:   pidValue,
		ObjectType: objectType,
		ObjectUUID: objectUUID,
		Status:     status,
	})
	if err != nil {
		var exists domain.ErrAlreadyExists
		if errors.As(err, &exists) {
			return domain.PersistentIdentifier{}, fmt.Errorf("%w: %s", ErrPIDExists, domain.PIDKey(pidType, pidValue))
		}
		return domain.PersistentIdentifier{}, err
	}
	return pid, nil
}

// Register marks the identifier registered and assigns it to objectUUID.
func Register(tx domain.Transaction, pidType, pidValue, objectUUID string) (domain.PersistentIdentifier, error) {
	return transition(tx, pidType, pidValue, func(p *domain.PersistentIdentifier) error {
		if p.Status == domain.PIDStatusDeleted {
			return fmt.Errorf("%w: %s", ErrPIDDeleted, p.Key())
		}
		p.Status = domain.PIDStatusRegistered
		if objectUUID != "" {
			p.ObjectUUID = objectUUID
		}
		return nil
	})
}

// Delete marks the identifier deleted. Deleting twice is a no-op.
func Delete(tx domain.Transaction, pidType, pidValue string) (domain.PersistentIdentifier, error) {
	return transition(tx, pidType, pidValue, func(p *domain.PersistentIdentifier) error {
		p.Status = domain.PIDStatusDeleted
		return nil
	})
}

// Redirect marks the identifier redirected to the object of target.
func Redirect(tx domain.Transaction, pidType, pidValue string, target domain.PersistentIdentifier) (domain.PersistentIdentifier, error) {
	return transition(tx, pidType, pidValue, func(p *domain.PersistentIdentifier) error {
		if p.Status == domain.PIDStatusDeleted {
			return fmt.Errorf("%w: %s", ErrPIDDeleted, p.Key())
		}
		p.Status = domain.PIDStatusRedirected
		p.ObjectUUID = target.ObjectUUID
		return nil
	})
}

func transition(tx domain.Transaction, pidType, pidValue string, mutate func(*domain.PersistentIdentifier) error) (domain.PersistentIdentifier, error) {
	pid, err := tx.UpdatePID(pidType, pidValue, mutate)
	if err != nil {
		var nf domain.ErrNotFound
		if errors.As(err, &nf) {
			return domain.PersistentIdentifier{}, fmt.Errorf("%w: %s", ErrPIDDoesNotExist, domain.PIDKey(pidType, pidValue))
		}
		return domain.PersistentIdentifier{}, err
	}
	return pid, nil
}

// Resolve returns the identifier and its registered record. Redirected PIDs
// come back together with ErrPIDRedirected so callers can follow ObjectUUID.
func Resolve(l Lookup, pidType, pidValue string) (domain.PersistentIdentifier, domain.Record, error) {
	pid, ok := l.GetPID(pidType, pidValue)
	if !ok {
		return domain.PersistentIdentifier{}, domain.Record{}, fmt.Errorf("%w: %s", ErrPIDDoesNotExist, domain.PIDKey(pidType, pidValue))
	}
	switch pid.Status {
	case domain.PIDStatusDeleted:
		return pid, domain.Record{}, fmt.Errorf("%w: %s", ErrPIDDeleted, pid.Key())
	case domain.PIDStatusRedirected:
		return pid, domain.Record{}, fmt.Errorf("%w: %s", ErrPIDRedirected, pid.Key())
	case domain.PIDStatusRegistered:
	default:
		return pid, domain.Record{}, fmt.Errorf("%w: %s", ErrPIDUnregistered, pid.Key())
	}
	rec, ok := l.GetRecord(pid.ObjectUUID)
	if !ok {
		return pid, domain.Record{}, fmt.Errorf("%w: %s", ErrPIDMissingObject, pid.Key())
	}
	return pid, rec, nil
}
