package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names used by snapshotting backends.
const (
	BucketRecords    = "records"
	BucketPIDs       = "pids"
	BucketReferences = "references"
	BucketTaxonomies = "taxonomies"
	BucketTerms      = "terms"
	BucketSequences  = "sequences"
)

// Buckets lists the snapshot buckets in persistence order.
var Buckets = []string{BucketRecords, BucketPIDs, BucketReferences, BucketTaxonomies, BucketTerms, BucketSequences}

func (s *Snapshot) target(bucket string) (any, bool) {
	switch bucket {
	case BucketRecords:
		return &s.Records, true
	case BucketPIDs:
		return &s.PIDs, true
	case BucketReferences:
		return &s.References, true
	case BucketTaxonomies:
		return &s.Taxonomies, true
	case BucketTerms:
		return &s.Terms, true
	case BucketSequences:
		return &s.Sequences, true
	}
	return nil, false
}

// EncodeBuckets marshals every bucket of the snapshot to JSON.
func (s Snapshot) EncodeBuckets() (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		target, _ := s.target(bucket)
		data, err := json.Marshal(target)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket unmarshals payload into the named bucket. Unknown buckets are ignored.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	target, ok := s.target(bucket)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
