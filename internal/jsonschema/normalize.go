package jsonschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// normalize round-trips doc through JSON so Go-typed values (ints, typed
// slices, time values) reach the validator as plain JSON values.
func normalize(doc map[string]any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
