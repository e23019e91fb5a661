// This file implements the schema document grammar. A document declares
// entity classes with their property fields, relationship tuples, and
// shortcut fields; Parse converts the syntax tree into a Document.

package schema

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// --- Participle grammar structs ---

type schemaFile struct {
	Decls []*declNode `parser:"@@*"`
}

type declNode struct {
	Class        *classNode        `parser:"  @@"`
	Relationship *relationshipNode `parser:"| @@"`
	Shortcut     *shortcutNode     `parser:"| @@"`
}

// classNode parses: [abstract] class Name [extends Parent] [path seg] { props }
type classNode struct {
	Pos        lexer.Position
	Abstract   bool            `parser:"@'abstract'?"`
	Name       string          `parser:"'class' @Ident"`
	Extends    string          `parser:"( 'extends' @Ident )?"`
	Path       string          `parser:"( 'path' @Ident )?"`
	Properties []*propertyNode `parser:"'{' ( @@ ','? )* '}'"`
}

// propertyNode parses: name: type[!] [= default]
type propertyNode struct {
	Name     string     `parser:"@Ident ':'"`
	Type     string     `parser:"@Ident"`
	Required bool       `parser:"@'!'?"`
	Default  *valueNode `parser:"( '=' @@ )?"`
}

// relationshipNode parses: relationship Name flags* [opts] { end end }
type relationshipNode struct {
	Pos     lexer.Position
	Name    string        `parser:"'relationship' @Ident"`
	Flags   []string      `parser:"@( 'symmetric' | 'antiReflexive' | 'readOnly' )*"`
	Options []*optionNode `parser:"( '[' @@ ( ',' @@ )* ']' )?"`
	A       *endNode      `parser:"'{' @@"`
	B       *endNode      `parser:"@@ '}'"`
}

// endNode parses: Class cardinality field [opts]
type endNode struct {
	Class       string        `parser:"@Ident"`
	Cardinality string        `parser:"@( Number | '*' | Ident )"`
	Field       string        `parser:"@Ident"`
	Options     []*optionNode `parser:"( '[' @@ ( ',' @@ )* ']' )?"`
}

type optionNode struct {
	Key   string     `parser:"@Ident"`
	Value *valueNode `parser:"( ':' @@ )?"`
}

type valueNode struct {
	String *string     `parser:"  @String"`
	Number *string     `parser:"| @Number"`
	Ident  *string     `parser:"| @Ident"`
	Object *objectNode `parser:"| @@"`
}

type objectNode struct {
	Entries []*optionNode `parser:"'{' ( @@ ( ',' @@ )* )? '}'"`
}

// shortcutNode parses: shortcut Class.name = hop.hop...
type shortcutNode struct {
	Pos   lexer.Position
	Class string   `parser:"'shortcut' @Ident"`
	Name  string   `parser:"'.' @Ident '='"`
	Path  []string `parser:"@Ident ( '.' @Ident )*"`
}

var schemaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Number", Pattern: `[-+]?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[{}\[\]:,=.*!]`},
})

var schemaParser = participle.MustBuild[schemaFile](
	participle.Lexer(schemaLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// --- Document model ---

// Document is the parsed, not yet validated, content of a schema file.
type Document struct {
	Classes       []*ClassDecl
	Relationships []types.RelationshipTuple
	Shortcuts     []*ShortcutDecl
}

// ClassDecl declares an entity class and its property fields.
type ClassDecl struct {
	Name       string
	Abstract   bool
	Extends    string
	Path       string
	Properties []*types.PropertySpec
}

// ShortcutDecl declares a derived field on Class that follows Path, a
// sequence of relationship field names.
type ShortcutDecl struct {
	Class string
	Name  string
	Path  []string
}

// Parse parses a schema document. name is used in error positions.
func Parse(name, input string) (*Document, error) {
	ast, err := schemaParser.ParseString(name, input)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return convertAST(ast)
}

// ParseFile reads a schema document from path and parses it.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(path, string(data))
}

func convertAST(ast *schemaFile) (*Document, error) {
	doc := &Document{}
	for _, d := range ast.Decls {
		switch {
		case d.Class != nil:
			c, err := convertClass(d.Class)
			if err != nil {
				return nil, err
			}
			doc.Classes = append(doc.Classes, c)
		case d.Relationship != nil:
			t, err := convertRelationship(d.Relationship)
			if err != nil {
				return nil, err
			}
			doc.Relationships = append(doc.Relationships, t)
		case d.Shortcut != nil:
			doc.Shortcuts = append(doc.Shortcuts, &ShortcutDecl{
				Class: d.Shortcut.Class,
				Name:  d.Shortcut.Name,
				Path:  d.Shortcut.Path,
			})
		}
	}
	return doc, nil
}

func convertClass(n *classNode) (*ClassDecl, error) {
	c := &ClassDecl{Name: n.Name, Abstract: n.Abstract, Extends: n.Extends, Path: n.Path}
	for _, p := range n.Properties {
		spec := &types.PropertySpec{Name: p.Name, Type: types.ValueType(p.Type), Required: p.Required}
		if p.Default != nil {
			v, err := p.Default.value()
			if err != nil {
				return nil, fmt.Errorf("%s: class %s: property %s: %w", n.Pos, n.Name, p.Name, err)
			}
			spec.Default = v
		}
		c.Properties = append(c.Properties, spec)
	}
	return c, nil
}

func convertRelationship(n *relationshipNode) (types.RelationshipTuple, error) {
	t := types.RelationshipTuple{Name: n.Name}
	for _, f := range n.Flags {
		switch f {
		case "symmetric":
			t.Options.Symmetric = true
		case "antiReflexive":
			t.Options.AntiReflexive = true
		case "readOnly":
			t.Options.ReadOnly = true
		}
	}
	tupleOpts, err := convertOptions(n.Options)
	if err != nil {
		return t, fmt.Errorf("%s: relationship %s: %w", n.Pos, n.Name, err)
	}
	if tupleOpts.IndexFieldName != "" || len(tupleOpts.SetFields) > 0 {
		return t, fmt.Errorf("%s: relationship %s: indexFieldName and setFields are end options", n.Pos, n.Name)
	}
	t.Options.Summaries = tupleOpts.Summaries
	t.Options.ReadOnly = t.Options.ReadOnly || tupleOpts.ReadOnly

	for i, end := range []*endNode{n.A, n.B} {
		opts, err := convertOptions(end.Options)
		if err != nil {
			return t, fmt.Errorf("%s: relationship %s: %s.%s: %w", n.Pos, n.Name, end.Class, end.Field, err)
		}
		t.Ends[i] = types.RelationshipEnd{
			Class:       end.Class,
			Cardinality: types.ParseCardinality(end.Cardinality),
			FieldName:   end.Field,
			Options:     opts,
		}
	}
	return t, nil
}

func convertOptions(nodes []*optionNode) (types.EndOptions, error) {
	var opts types.EndOptions
	for _, o := range nodes {
		switch o.Key {
		case "get", "put", "delete":
			s, err := o.Value.stringValue()
			if err != nil {
				return opts, fmt.Errorf("option %s: %w", o.Key, err)
			}
			switch o.Key {
			case "get":
				opts.Get = s
			case "put":
				opts.Put = s
			case "delete":
				opts.Delete = s
			}
		case "readOnly":
			if o.Value == nil {
				opts.ReadOnly = true
				continue
			}
			v, err := o.Value.value()
			if err != nil {
				return opts, fmt.Errorf("option readOnly: %w", err)
			}
			b, ok := v.(bool)
			if !ok {
				return opts, fmt.Errorf("option readOnly: expected true or false")
			}
			opts.ReadOnly = b
		case "indexFieldName":
			if o.Value == nil || o.Value.Ident == nil {
				return opts, fmt.Errorf("option indexFieldName: expected a field name")
			}
			opts.IndexFieldName = *o.Value.Ident
		case "setFields":
			if o.Value == nil || o.Value.Object == nil {
				return opts, fmt.Errorf("option setFields: expected { key: value, ... }")
			}
			v, err := o.Value.value()
			if err != nil {
				return opts, fmt.Errorf("option setFields: %w", err)
			}
			opts.SetFields = v.(map[string]any)
		default:
			return opts, fmt.Errorf("unknown option %q", o.Key)
		}
	}
	return opts, nil
}

func (v *valueNode) stringValue() (string, error) {
	if v == nil || v.String == nil {
		return "", fmt.Errorf("expected a string")
	}
	return *v.String, nil
}

// value converts a literal to the JSON-compatible Go value it denotes:
// string, float64, bool, nil, or map[string]any.
func (v *valueNode) value() (any, error) {
	switch {
	case v.String != nil:
		return *v.String, nil
	case v.Number != nil:
		f, err := strconv.ParseFloat(*v.Number, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", *v.Number, err)
		}
		return f, nil
	case v.Ident != nil:
		switch *v.Ident {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected identifier %q", *v.Ident)
	case v.Object != nil:
		m := make(map[string]any, len(v.Object.Entries))
		for _, e := range v.Object.Entries {
			if e.Value == nil {
				m[e.Key] = true
				continue
			}
			ev, err := e.Value.value()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Key, err)
			}
			m[e.Key] = ev
		}
		return m, nil
	}
	return nil, fmt.Errorf("empty value")
}
