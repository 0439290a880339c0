package search

import (
	"strings"

	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// Project copies the dotted paths of fields out of doc. An empty field list
// returns a copy of the whole document. A path that crosses a list copies the
// list whole.
func Project(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return domain.CloneDocument(doc)
	}
	out := make(map[string]any)
	for _, f := range fields {
		projectPath(out, doc, strings.Split(f, "."))
	}
	return out
}

func projectPath(dst, src map[string]any, segments []string) {
	head := segments[0]
	value, ok := src[head]
	if !ok {
		return
	}
	if len(segments) == 1 {
		dst[head] = domain.CloneValue(value)
		return
	}
	child, ok := value.(map[string]any)
	if !ok {
		dst[head] = domain.CloneValue(value)
		return
	}
	next, ok := dst[head].(map[string]any)
	if !ok {
		next = make(map[string]any)
		dst[head] = next
	}
	projectPath(next, child, segments[1:])
}
