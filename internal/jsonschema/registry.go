// Package jsonschema compiles the JSON Schema documents registered by record
// types and validates stored record documents against them.
package jsonschema

import (
	"bytes"
	"fmt"
	neturl "net/url"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
)

// ConstraintPrefix marks field errors reported by JSON Schema keywords ("jsonschema:required").
const ConstraintPrefix = "jsonschema:"

// Registry holds raw schema documents by URL and compiles them on first use.
type Registry struct {
	mu       sync.Mutex
	raw      map[string]any
	compiled map[string]*jsonschema.Schema
	printer  *message.Printer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		raw:      make(map[string]any),
		compiled: make(map[string]*jsonschema.Schema),
		printer:  message.NewPrinter(language.English),
	}
}

// Add registers the schema document at url. Registering a URL twice fails.
func (r *Registry) Add(url string, document []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(document))
	if err != nil {
		return fmt.Errorf("parse json schema %s: %w", url, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.raw[url]; exists {
		return fmt.Errorf("json schema %s already registered", url)
	}
	r.raw[url] = doc
	r.compiled = make(map[string]*jsonschema.Schema)
	return nil
}

// URLs lists the registered schema URLs.
func (r *Registry) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.raw))
	for u := range r.raw {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Has reports whether url is registered.
func (r *Registry) Has(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.raw[url]
	return ok
}

// Document returns the decoded schema registered at url.
func (r *Registry) Document(url string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.raw[url]
	return doc, ok
}

// ByPath finds a schema by the path part of its URL, ignoring scheme and host.
func (r *Registry) ByPath(path string) (string, any, bool) {
	path = "/" + strings.TrimLeft(path, "/")
	r.mu.Lock()
	defer r.mu.Unlock()
	for raw, doc := range r.raw {
		u, err := neturl.Parse(raw)
		if err == nil && u.Path == path {
			return raw, doc, true
		}
	}
	return "", nil, false
}

func (r *Registry) compile(url string) (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sch, ok := r.compiled[url]; ok {
		return sch, nil
	}
	if _, ok := r.raw[url]; !ok {
		return nil, fmt.Errorf("json schema %s is not registered", url)
	}
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft7)
	for u, doc := range r.raw {
		if err := c.AddResource(u, doc); err != nil {
			return nil, fmt.Errorf("add json schema %s: %w", u, err)
		}
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile json schema %s: %w", url, err)
	}
	r.compiled[url] = sch
	return sch, nil
}

// Validate checks doc against the schema at url. Keyword failures come back as
// a *schema.ValidationError with one FieldError per failing leaf.
func (r *Registry) Validate(url string, doc map[string]any) error {
	sch, err := r.compile(url)
	if err != nil {
		return err
	}
	instance, err := normalize(doc)
	if err != nil {
		return err
	}
	verr := sch.Validate(instance)
	if verr == nil {
		return nil
	}
	ve, ok := verr.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("validate against %s: %w", url, verr)
	}
	out := &schema.ValidationError{}
	r.collect(ve, out)
	if out.Empty() {
		out.Add("", ConstraintPrefix+"schema", ve.Error())
	}
	return out
}

func (r *Registry) collect(ve *jsonschema.ValidationError, out *schema.ValidationError) {
	if len(ve.Causes) == 0 {
		keyword := "schema"
		if path := ve.ErrorKind.KeywordPath(); len(path) > 0 {
			keyword = path[len(path)-1]
		}
		out.Add(strings.Join(ve.InstanceLocation, "."), ConstraintPrefix+keyword, ve.ErrorKind.LocalizedString(r.printer))
		return
	}
	for _, cause := range ve.Causes {
		r.collect(cause, out)
	}
}
