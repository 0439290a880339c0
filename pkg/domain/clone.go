package domain

// CloneDocument deep-copies a JSON-like document (maps, slices and scalars).
func CloneDocument(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a JSON-like value.
func CloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return CloneDocument(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = CloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(typed))
		for i, item := range typed {
			out[i] = CloneDocument(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}

// CloneRecord returns a record copy that shares no mutable state with r.
func CloneRecord(r Record) Record {
	cp := r
	cp.Metadata = CloneDocument(r.Metadata)
	if r.Validity != nil {
		v := *r.Validity
		if r.Validity.Errors != nil {
			v.Errors = make(map[string][]string, len(r.Validity.Errors))
			for field, msgs := range r.Validity.Errors {
				v.Errors[field] = append([]string(nil), msgs...)
			}
		}
		cp.Validity = &v
	}
	return cp
}

// CloneTerm returns a term copy that shares no mutable state with t.
func CloneTerm(t Term) Term {
	cp := t
	cp.Extra = CloneDocument(t.Extra)
	return cp
}
