// Package nrcommon holds the pieces shared by the record types of the
// national repository: the record identifier provider and the common
// metadata fields.
package nrcommon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Narodni-repozitar/nr-Nresults/internal/core"
	"github.com/Narodni-repozitar/nr-Nresults/internal/pidstore"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// ProviderName is reported by fetchers built on IDProvider.
const ProviderName = "nr"

// IDProvider mints record identifiers of one PID type from the shared
// record-id sequence.
type IDProvider struct {
	PIDType string
}

// Create registers the identifier of objectUUID. An explicit control_number in
// data is kept (and reserved in the sequence when numeric); otherwise the next
// sequence value is written back to data.
func (p IDProvider) Create(tx core.Transaction, objectUUID string, data map[string]any) (core.PersistentIdentifier, error) {
	if p.PIDType == "" {
		return core.PersistentIdentifier{}, fmt.Errorf("id provider: pid type is required")
	}
	value, explicit, err := controlNumber(data)
	if err != nil {
		return core.PersistentIdentifier{}, err
	}
	if explicit {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			tx.ReserveRecordIdentifier(n)
		}
	} else {
		value = strconv.FormatInt(tx.NextRecordIdentifier(), 10)
	}
	pid, err := pidstore.Create(tx, p.PIDType, value, domain.ObjectTypeRecord, objectUUID, domain.PIDStatusRegistered)
	if err != nil {
		return core.PersistentIdentifier{}, err
	}
	if data != nil {
		data[core.FieldControlNumber] = value
	}
	return pid, nil
}

// Fetch reads the identifier of a record out of its data.
func (p IDProvider) Fetch(_ string, data map[string]any) (core.FetchedPID, error) {
	value, ok, err := controlNumber(data)
	if err != nil {
		return core.FetchedPID{}, err
	}
	if !ok {
		return core.FetchedPID{}, fmt.Errorf("record has no %s", core.FieldControlNumber)
	}
	return core.FetchedPID{Provider: ProviderName, PIDType: p.PIDType, PIDValue: value}, nil
}

// Mint returns a minter for pidType.
func Mint(pidType string) core.Minter {
	p := IDProvider{PIDType: pidType}
	return func(tx core.Transaction, recordUUID string, data map[string]any) (core.PersistentIdentifier, error) {
		return p.Create(tx, recordUUID, data)
	}
}

// Fetch returns a fetcher for pidType.
func Fetch(pidType string) core.Fetcher {
	return IDProvider{PIDType: pidType}.Fetch
}

func controlNumber(data map[string]any) (string, bool, error) {
	raw, ok := data[core.FieldControlNumber]
	if !ok || raw == nil {
		return "", false, nil
	}
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return "", false, nil
		}
		return v, true, nil
	case float64:
		if v != float64(int64(v)) || v <= 0 {
			return "", false, fmt.Errorf("invalid %s %v", core.FieldControlNumber, v)
		}
		return strconv.FormatInt(int64(v), 10), true, nil
	case int:
		return strconv.Itoa(v), true, nil
	case int64:
		return strconv.FormatInt(v, 10), true, nil
	default:
		return "", false, fmt.Errorf("invalid %s of type %T", core.FieldControlNumber, raw)
	}
}
