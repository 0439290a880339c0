// Package testutil provides testing helpers that enforce package boundaries
// across the repository.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ModulePath prefixes every package of this module.
const ModulePath = "github.com/Narodni-repozitar/nr-Nresults/"

// AssertNoDirectImports scans all non-test .go files in dir and fails if any
// import path satisfies the forbidden predicate. It does not follow build tags.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfDirectViolations(t, reason, viols)
}

// AssertModuleImportsWithin fails if a non-test file in dir imports a package
// of this module other than the allowed ones. Paths are relative to ModulePath.
func AssertModuleImportsWithin(t testing.TB, dir string, allowed ...string) {
	t.Helper()
	ok := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		ok[ModulePath+a] = struct{}{}
	}
	AssertNoDirectImports(t, dir, func(path string) bool {
		if !strings.HasPrefix(path, ModulePath) {
			return false
		}
		_, allowed := ok[path]
		return !allowed
	}, "only "+strings.Join(allowed, ", ")+" may be imported")
}

// HasAnyPrefix returns a predicate matching import paths under one of the
// module-relative prefixes.
func HasAnyPrefix(prefixes ...string) func(string) bool {
	return func(path string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(path, ModulePath+p) {
				return true
			}
		}
		return false
	}
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		fileAst, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range fileAst.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfDirectViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
