package types

import "sort"

// Summaries documents the three operations exposed on a relationship field.
type Summaries struct {
	Get    string `yaml:"get,omitempty"`
	Put    string `yaml:"put,omitempty"`
	Delete string `yaml:"delete,omitempty"`
}

// merge fills empty summaries from fallback.
func (s Summaries) merge(fallback Summaries) Summaries {
	if s.Get == "" {
		s.Get = fallback.Get
	}
	if s.Put == "" {
		s.Put = fallback.Put
	}
	if s.Delete == "" {
		s.Delete = fallback.Delete
	}
	return s
}

// EndOptions are the per-end options of a relationship tuple.
type EndOptions struct {
	Summaries

	// ReadOnly forbids adding or removing links through this end after
	// the entity has been created.
	ReadOnly bool

	// IndexFieldName names the property that orders this end's entities
	// among the siblings linked to the same entity on the other end.
	IndexFieldName string

	// SetFields are fixed values stored on every relationship instance
	// created through this tuple.
	SetFields map[string]any
}

// RelationshipEnd is one side of a relationship tuple. FieldName is the key
// under which the other end is reachable from an entity of Class.
type RelationshipEnd struct {
	Class       string
	Cardinality Cardinality
	FieldName   string
	Options     EndOptions
}

// TupleOptions apply to a whole relationship tuple.
type TupleOptions struct {
	Summaries
	Symmetric     bool
	AntiReflexive bool
	ReadOnly      bool
}

// RelationshipTuple is the declarative form of one bidirectional
// relationship, as read from a schema document.
type RelationshipTuple struct {
	Name    string
	Ends    [2]RelationshipEnd
	Options TupleOptions
}

// RelationshipType is the compiled form of a RelationshipTuple. Ends[i]
// describes the field that entities on side i use to reach side 1-i.
type RelationshipType struct {
	Name          string
	Symmetric     bool
	AntiReflexive bool
	Ends          [2]*RelationField
}

// NewRelationshipType compiles a tuple into a RelationshipType with both
// field ends linked back to it. Tuple-level options are folded into each
// end. Validation is the caller's concern.
func NewRelationshipType(t RelationshipTuple) *RelationshipType {
	rt := &RelationshipType{
		Name:          t.Name,
		Symmetric:     t.Options.Symmetric,
		AntiReflexive: t.Options.AntiReflexive,
	}
	for side, end := range t.Ends {
		rt.Ends[side] = &RelationField{
			Name:           end.FieldName,
			Class:          end.Class,
			Side:           side,
			Cardinality:    end.Cardinality,
			Codomain:       t.Ends[1-side].Class,
			ReadOnly:       end.Options.ReadOnly || t.Options.ReadOnly,
			IndexFieldName: end.Options.IndexFieldName,
			SetFields:      end.Options.SetFields,
			Summaries:      end.Options.Summaries.merge(t.Options.Summaries),
			Relationship:   rt,
		}
	}
	return rt
}

// IndexedEnd returns the end that carries an index field, or nil.
func (r *RelationshipType) IndexedEnd() *RelationField {
	for _, end := range r.Ends {
		if end.IndexFieldName != "" {
			return end
		}
	}
	return nil
}

// SetFields returns the fixed relationship fields declared on either end.
func (r *RelationshipType) SetFields() map[string]any {
	fields := map[string]any{}
	for _, end := range r.Ends {
		for k, v := range end.SetFields {
			fields[k] = v
		}
	}
	return fields
}

// RelationField is a relationship field of an entity class: one end of a
// RelationshipType seen from the class on that end.
type RelationField struct {
	Name           string
	Class          string
	Side           int
	Cardinality    Cardinality
	Codomain       string
	ReadOnly       bool
	IndexFieldName string
	SetFields      map[string]any
	Summaries      Summaries
	Relationship   *RelationshipType
}

// Reverse returns the paired field on the other end.
func (f *RelationField) Reverse() *RelationField {
	return f.Relationship.Ends[1-f.Side]
}

// Kind returns FieldRelationOne or FieldRelationMany.
func (f *RelationField) Kind() FieldKind {
	if f.Cardinality == One {
		return FieldRelationOne
	}
	return FieldRelationMany
}

// Shortcut is a derived, read-only relationship field that resolves through
// one or more relationship hops, e.g. LyphTemplate.materialInLyphs through
// materialIn and then lyphTemplate.
type Shortcut struct {
	Name        string
	Class       string
	Path        []string
	Hops        []*RelationField
	Codomain    string
	Cardinality Cardinality
}

// FieldKind is the closed set of field variants.
type FieldKind int

const (
	FieldProperty FieldKind = iota
	FieldRelationOne
	FieldRelationMany
)

func (k FieldKind) String() string {
	switch k {
	case FieldProperty:
		return "property"
	case FieldRelationOne:
		return "relation-one"
	case FieldRelationMany:
		return "relation-many"
	}
	return "unknown"
}

// FieldSpec is one entry of a class's field table. Exactly one of Property,
// Relation or Shortcut is set, matching Kind (shortcuts are relation kinds).
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Property *PropertySpec
	Relation *RelationField
	Shortcut *Shortcut
}

// Codomain returns the class a relation-kind field points to.
func (fs FieldSpec) Codomain() string {
	switch {
	case fs.Relation != nil:
		return fs.Relation.Codomain
	case fs.Shortcut != nil:
		return fs.Shortcut.Codomain
	}
	return ""
}

// Writable reports whether clients may set this field directly.
func (fs FieldSpec) Writable() bool {
	switch fs.Kind {
	case FieldProperty:
		return true
	default:
		return fs.Relation != nil && !fs.Relation.ReadOnly
	}
}

// EntityClass is the derived field table of a named domain type.
type EntityClass struct {
	Name       string
	Abstract   bool
	Extends    string
	Path       string
	Properties map[string]*PropertySpec
	Relations  map[string]*RelationField
	Shortcuts  map[string]*Shortcut

	// Concrete lists the non-abstract classes whose instances count as
	// instances of this class: the class itself unless abstract, and
	// every concrete descendant.
	Concrete []string
}

// Field looks up a field by name across the three variants.
func (c *EntityClass) Field(name string) (FieldSpec, bool) {
	if p, ok := c.Properties[name]; ok {
		return FieldSpec{Name: name, Kind: FieldProperty, Property: p}, true
	}
	if r, ok := c.Relations[name]; ok {
		return FieldSpec{Name: name, Kind: r.Kind(), Relation: r}, true
	}
	if s, ok := c.Shortcuts[name]; ok {
		kind := FieldRelationMany
		if s.Cardinality == One {
			kind = FieldRelationOne
		}
		return FieldSpec{Name: name, Kind: kind, Shortcut: s}, true
	}
	return FieldSpec{}, false
}

// FieldNames returns every field name in sorted order.
func (c *EntityClass) FieldNames() []string {
	names := make([]string, 0, len(c.Properties)+len(c.Relations)+len(c.Shortcuts))
	for n := range c.Properties {
		names = append(names, n)
	}
	for n := range c.Relations {
		names = append(names, n)
	}
	for n := range c.Shortcuts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Accepts reports whether an instance of class name counts as an instance
// of c.
func (c *EntityClass) Accepts(name string) bool {
	for _, n := range c.Concrete {
		if n == name {
			return true
		}
	}
	return false
}
