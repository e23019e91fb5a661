package schema

import (
	_ "embed"
	"fmt"
)

//go:embed lyph.schema
var defaultDocument string

// DefaultName is the name reported in positions of the embedded schema.
const DefaultName = "lyph.schema"

// Load parses and compiles the schema at path, or the embedded default
// schema when path is empty.
func Load(path string) (*Schema, error) {
	var (
		doc *Document
		err error
	)
	if path == "" {
		doc, err = Parse(DefaultName, defaultDocument)
	} else {
		doc, err = ParseFile(path)
	}
	if err != nil {
		return nil, err
	}
	s, err := Compile(doc)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", nameOr(path), err)
	}
	return s, nil
}

// DefaultSource returns the text of the embedded schema document.
func DefaultSource() string { return defaultDocument }

func nameOr(path string) string {
	if path == "" {
		return DefaultName
	}
	return path
}
