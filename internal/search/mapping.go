package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// SourceField holds the JSON encoded document in every indexed entry.
const SourceField = "_source"

var defaultLanguages = []string{"cs", "en", "_"}

// IndexMapping compiles m into a bleve index mapping. Undeclared paths are not indexed.
func (m Mapping) IndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	root := bleve.NewDocumentStaticMapping()
	languages := m.Languages
	if len(languages) == 0 {
		languages = defaultLanguages
	}
	for _, path := range m.Paths() {
		if err := addField(root, path, m.Fields[path], languages); err != nil {
			return nil, err
		}
	}
	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	source.IncludeTermVectors = false
	source.DocValues = false
	root.AddFieldMappingsAt(SourceField, source)
	im.DefaultMapping = root
	return im, nil
}

func addField(root *mapping.DocumentMapping, path string, typ FieldType, languages []string) error {
	switch typ {
	case FieldKeyword:
		attach(root, path, keywordField())
	case FieldText:
		attach(root, path, bleve.NewTextFieldMapping())
	case FieldDate:
		attach(root, path, bleve.NewDateTimeFieldMapping())
	case FieldBoolean:
		attach(root, path, bleve.NewBooleanFieldMapping())
	case FieldNumber:
		attach(root, path, bleve.NewNumericFieldMapping())
	case FieldMultilingual:
		addMultilingual(root, path, languages)
	case FieldTaxonomy:
		attach(root, path+".links.self", keywordField())
		attach(root, path+".is_ancestor", bleve.NewBooleanFieldMapping())
		attach(root, path+".level", bleve.NewNumericFieldMapping())
		addMultilingual(root, path+".title", languages)
	default:
		return fmt.Errorf("unknown field type %q for %s", typ, path)
	}
	return nil
}

func addMultilingual(root *mapping.DocumentMapping, path string, languages []string) {
	for _, lang := range languages {
		text := bleve.NewTextFieldMapping()
		raw := keywordField()
		raw.Name = lang + RawSuffix
		raw.IncludeInAll = false
		attach(root, path+"."+lang, text, raw)
	}
}

func keywordField() *mapping.FieldMapping {
	fm := bleve.NewKeywordFieldMapping()
	fm.Store = true
	return fm
}

// attach places field mappings at a dotted path, creating static sub-documents on the way.
func attach(root *mapping.DocumentMapping, path string, fms ...*mapping.FieldMapping) {
	segments := strings.Split(path, ".")
	current := root
	for _, seg := range segments[:len(segments)-1] {
		sub, ok := current.Properties[seg]
		if !ok {
			sub = bleve.NewDocumentStaticMapping()
			current.AddSubDocumentMapping(seg, sub)
		}
		current = sub
	}
	last := segments[len(segments)-1]
	if existing, ok := current.Properties[last]; ok {
		for _, fm := range fms {
			existing.AddFieldMapping(fm)
		}
		return
	}
	current.AddFieldMappingsAt(last, fms...)
}
