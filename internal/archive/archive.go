// Package archive keeps an immutable JSON copy of every committed record
// revision in a blob store under records/<pid type>/<pid value>/<revision>.json.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/Narodni-repozitar/nr-Nresults/internal/blob"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

const (
	keyPrefix   = "records"
	contentType = "application/json"
)

// Revision is one archived document.
type Revision struct {
	RecordID string         `json:"record_id"`
	Type     string         `json:"type"`
	PIDType  string         `json:"pid_type"`
	PIDValue string         `json:"pid_value"`
	Revision int            `json:"revision"`
	Draft    bool           `json:"draft,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// Archiver writes record revisions to a blob store.
type Archiver struct {
	store blob.Store
}

// New wraps store.
func New(store blob.Store) *Archiver {
	return &Archiver{store: store}
}

// Key returns the object key of a revision.
func Key(pidType, pidValue string, revision int) string {
	return path.Join(keyPrefix, pidType, pidValue, strconv.Itoa(revision)+".json")
}

// Archive stores rec under pid. Archiving an already stored revision is a no-op.
func (a *Archiver) Archive(ctx context.Context, pid domain.PersistentIdentifier, rec domain.Record) error {
	if pid.PIDType == "" || pid.PIDValue == "" {
		return fmt.Errorf("archive record %s: pid is required", rec.ID)
	}
	doc := Revision{
		RecordID: rec.ID,
		Type:     rec.Type,
		PIDType:  pid.PIDType,
		PIDValue: pid.PIDValue,
		Revision: rec.Revision,
		Draft:    rec.Draft,
		Metadata: rec.Metadata,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	_, err = a.store.Put(ctx, Key(pid.PIDType, pid.PIDValue, rec.Revision), bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"record-id": rec.ID,
			"revision":  strconv.Itoa(rec.Revision),
		},
	})
	if errors.Is(err, blob.ErrExists) {
		return nil
	}
	return err
}

// Revisions lists the archived revision numbers of a PID in ascending order.
func (a *Archiver) Revisions(ctx context.Context, pidType, pidValue string) ([]int, error) {
	prefix := path.Join(keyPrefix, pidType, pidValue) + "/"
	infos, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Key, prefix)
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil || strings.Contains(name, "/") {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// Load reads one archived revision.
func (a *Archiver) Load(ctx context.Context, pidType, pidValue string, revision int) (Revision, error) {
	_, rc, err := a.store.Get(ctx, Key(pidType, pidValue, revision))
	if err != nil {
		return Revision{}, err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return Revision{}, err
	}
	var rev Revision
	if err := json.Unmarshal(b, &rev); err != nil {
		return Revision{}, fmt.Errorf("decode %s: %w", Key(pidType, pidValue, revision), err)
	}
	return rev, nil
}
