package schema

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Field loads one value. Implementations report failures into errs and return
// ok=false when the value must be dropped from the output.
type Field interface {
	Load(lc *LoadContext, path string, value any, errs *ValidationError) (any, bool)
}

// Context returns the context of the Load call.
func (lc *LoadContext) Context() context.Context {
	if lc.ctx == nil {
		return context.Background()
	}
	return lc.ctx
}

// Resolver returns the configured taxonomy resolver, if any.
func (lc *LoadContext) Resolver() Resolver { return lc.resolver }

// Now returns the current time according to the configured clock.
func (lc *LoadContext) Now() time.Time { return lc.now() }

// String accepts only JSON strings. Values are sanitized (NFC normalized,
// control characters other than tab and newlines removed, surrounding
// whitespace trimmed) before MaxLength, counted in characters, is checked.
type String struct {
	MaxLength int
	Raw       bool
}

// Load implements Field.
func (f String) Load(_ *LoadContext, path string, value any, errs *ValidationError) (any, bool) {
	s, ok := value.(string)
	if !ok {
		errs.Add(path, ConstraintType, "Not a valid string.")
		return nil, false
	}
	if !f.Raw {
		s = Sanitize(s)
	}
	if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
		errs.Add(path, ConstraintMaxLength, fmt.Sprintf("Longer than maximum length %d.", f.MaxLength))
		return nil, false
	}
	return s, true
}

// Sanitize normalizes s to NFC, strips unsafe control characters and trims whitespace.
func Sanitize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Multilingual is a mapping of language code to sanitized text. The "_" key
// holds text in an unspecified language.
type Multilingual struct {
	MaxLength int
}

// Load implements Field.
func (f Multilingual) Load(lc *LoadContext, path string, value any, errs *ValidationError) (any, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		errs.Add(path, ConstraintType, "Not a valid mapping of language to text.")
		return nil, false
	}
	out := make(map[string]any, len(m))
	valid := true
	for lang, text := range m {
		if !isLanguageKey(lang) {
			errs.Add(joinPath(path, lang), ConstraintType, "Not a valid language code.")
			valid = false
			continue
		}
		loaded, ok := String{MaxLength: f.MaxLength}.Load(lc, joinPath(path, lang), text, errs)
		if !ok {
			valid = false
			continue
		}
		out[lang] = loaded
	}
	return out, valid
}

func isLanguageKey(lang string) bool {
	if lang == "_" {
		return true
	}
	if len(lang) < 2 || len(lang) > 8 {
		return false
	}
	for _, r := range lang {
		if !(r >= 'a' && r <= 'z') && r != '-' {
			return false
		}
	}
	return true
}

// Date layouts accepted by Date fields.
const (
	DateLayout      = "2006-01-02"
	YearMonthLayout = "2006-01"
	YearLayout      = "2006"
)

// Date accepts an ISO date string. Only full dates are accepted unless
// AllowPartial is set. Min and MaxToday bound the value inclusively.
type Date struct {
	AllowPartial bool
	Min          time.Time
	MaxToday     bool
}

// Load implements Field.
func (f Date) Load(lc *LoadContext, path string, value any, errs *ValidationError) (any, bool) {
	s, ok := value.(string)
	if !ok {
		errs.Add(path, ConstraintType, "Not a valid date string.")
		return nil, false
	}
	parsed, err := f.parse(s)
	if err != nil {
		errs.Add(path, ConstraintDateFormat, "Not a valid date.")
		return nil, false
	}
	if !f.Min.IsZero() && parsed.Before(f.Min) {
		errs.Add(path, ConstraintDateRange, fmt.Sprintf("Date must be on or after %s.", f.Min.Format(DateLayout)))
		return nil, false
	}
	if f.MaxToday {
		now := lc.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if parsed.After(today) {
			errs.Add(path, ConstraintDateRange, "Date may not be in the future.")
			return nil, false
		}
	}
	return s, true
}

func (f Date) parse(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if !f.AllowPartial {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	if t, err := time.Parse(YearMonthLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(YearLayout, s)
}

// URL accepts absolute http(s) URLs.
type URL struct{}

// Load implements Field.
func (URL) Load(_ *LoadContext, path string, value any, errs *ValidationError) (any, bool) {
	s, ok := value.(string)
	if !ok {
		errs.Add(path, ConstraintType, "Not a valid string.")
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(path, ConstraintURL, "Not a valid URL.")
		return nil, false
	}
	return s, true
}

// Raw passes any JSON value through unchanged.
type Raw struct{}

// Load implements Field.
func (Raw) Load(_ *LoadContext, _ string, value any, _ *ValidationError) (any, bool) {
	return cloneJSON(value), true
}

// List loads every item with Item.
type List struct {
	Item     Field
	MinItems int
}

// Load implements Field.
func (f List) Load(lc *LoadContext, path string, value any, errs *ValidationError) (any, bool) {
	items, ok := asList(value)
	if !ok {
		errs.Add(path, ConstraintType, "Not a valid list.")
		return nil, false
	}
	if len(items) < f.MinItems {
		errs.Add(path, ConstraintMinItems, fmt.Sprintf("Must contain at least %d items.", f.MinItems))
		return nil, false
	}
	out := make([]any, 0, len(items))
	valid := true
	for i, item := range items {
		itemPath := joinPath(path, strconv.Itoa(i))
		if item == nil {
			errs.Add(itemPath, ConstraintType, "Field may not be null.")
			valid = false
			continue
		}
		loaded, ok := f.Item.Load(lc, itemPath, item, errs)
		if !ok {
			valid = false
			continue
		}
		out = append(out, loaded)
	}
	return out, valid
}

// Nested loads a mapping with Schema.
type Nested struct {
	Schema *Schema
}

// Load implements Field.
func (f Nested) Load(lc *LoadContext, path string, value any, errs *ValidationError) (any, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		errs.Add(path, ConstraintType, "Not a valid mapping.")
		return nil, false
	}
	before := len(errs.Errors)
	out := f.Schema.load(lc, path, m, errs)
	if len(errs.Errors) > before {
		return nil, false
	}
	for _, hook := range f.Schema.hooks {
		if err := hook(out); err != nil {
			errs.Add(path, ConstraintType, err.Error())
			return nil, false
		}
	}
	return out, true
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

func cloneJSON(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = cloneJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneJSON(item)
		}
		return out
	}
	return v
}
