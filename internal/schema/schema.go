package schema

import (
	"sort"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// Schema is the compiled, immutable relationship schema. It is built once
// at startup by Compile and only read afterwards.
type Schema struct {
	classes       map[string]*ClassDecl
	classOrder    []string
	relationships map[string]*types.RelationshipType
	relOrder      []string
	shortcuts     []*ShortcutDecl

	// own holds the relationship fields declared directly on each class.
	own map[string]map[string]*types.RelationField
}

// Compile validates a Document and builds the per-class relationship
// field tables. Every failure is a *types.ConfigError.
func Compile(doc *Document) (*Schema, error) {
	s := &Schema{
		classes:       make(map[string]*ClassDecl, len(doc.Classes)),
		relationships: make(map[string]*types.RelationshipType, len(doc.Relationships)),
		own:           make(map[string]map[string]*types.RelationField),
		shortcuts:     doc.Shortcuts,
	}

	for _, c := range doc.Classes {
		if _, dup := s.classes[c.Name]; dup {
			return nil, types.Configf("class "+c.Name, "declared more than once")
		}
		for _, p := range c.Properties {
			if !types.IsValidValueType(p.Type) {
				return nil, types.Configf("class "+c.Name, "property %s has unknown type %q", p.Name, p.Type)
			}
			if p.Default != nil {
				if err := p.Check(p.Default); err != nil {
					return nil, types.Configf("class "+c.Name, "default of %s: %v", p.Name, err)
				}
			}
		}
		if c.Path == "" {
			c.Path = DefaultPath(c.Name)
		}
		s.classes[c.Name] = c
		s.classOrder = append(s.classOrder, c.Name)
		s.own[c.Name] = map[string]*types.RelationField{}
	}
	if err := s.checkInheritance(); err != nil {
		return nil, err
	}

	for _, t := range doc.Relationships {
		if err := s.addRelationship(t); err != nil {
			return nil, err
		}
	}

	// Property and relationship names share one namespace per class,
	// including everything inherited.
	for _, name := range s.classOrder {
		if err := s.checkFieldNames(name); err != nil {
			return nil, err
		}
	}
	if err := s.checkShortcuts(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) checkInheritance() error {
	for _, name := range s.classOrder {
		seen := map[string]bool{name: true}
		for c := s.classes[name]; c.Extends != ""; {
			parent, ok := s.classes[c.Extends]
			if !ok {
				return types.Configf("class "+c.Name, "extends undeclared class %q", c.Extends)
			}
			if seen[parent.Name] {
				return types.Configf("class "+name, "inheritance cycle through %s", parent.Name)
			}
			seen[parent.Name] = true
			c = parent
		}
	}
	return nil
}

func (s *Schema) addRelationship(t types.RelationshipTuple) error {
	subject := "relationship " + t.Name
	if t.Name == "" {
		return types.Configf("relationship", "missing name")
	}
	if _, dup := s.relationships[t.Name]; dup {
		return types.Configf(subject, "declared more than once")
	}
	if _, clash := s.classes[t.Name]; clash {
		return types.Configf(subject, "name is already used by a class")
	}
	for _, end := range t.Ends {
		if _, ok := s.classes[end.Class]; !ok {
			return types.Configf(subject, "references undeclared class %q", end.Class)
		}
		if end.FieldName == "" {
			return types.Configf(subject, "end %s has no field name", end.Class)
		}
	}
	a, b := t.Ends[0], t.Ends[1]
	if t.Options.Symmetric {
		if a.Class != b.Class || a.FieldName != b.FieldName || a.Cardinality != b.Cardinality {
			return types.Configf(subject, "symmetric ends disagree: %s %s %s vs %s %s %s",
				a.Class, a.Cardinality, a.FieldName, b.Class, b.Cardinality, b.FieldName)
		}
	} else if a.Class == b.Class && a.FieldName == b.FieldName {
		return types.Configf(subject, "both ends declare %s.%s but the tuple is not symmetric", a.Class, a.FieldName)
	}
	if a.Options.IndexFieldName != "" && b.Options.IndexFieldName != "" {
		return types.Configf(subject, "indexFieldName is declared on both ends")
	}
	for _, end := range t.Ends {
		if end.Options.IndexFieldName != "" && t.Options.Symmetric {
			return types.Configf(subject, "symmetric relationships cannot be ordered")
		}
		if end.Options.IndexFieldName != "" && end.Cardinality != types.One {
			return types.Configf(subject, "indexFieldName on %s.%s requires cardinality 1", end.Class, end.FieldName)
		}
	}

	rt := types.NewRelationshipType(t)
	s.relationships[t.Name] = rt
	s.relOrder = append(s.relOrder, t.Name)

	ends := rt.Ends[:]
	if rt.Symmetric {
		ends = ends[:1]
	}
	for _, f := range ends {
		if _, dup := s.own[f.Class][f.Name]; dup {
			return types.Configf("class "+f.Class, "field %s is declared by more than one relationship", f.Name)
		}
		s.own[f.Class][f.Name] = f
	}
	return nil
}

func (s *Schema) checkFieldNames(name string) error {
	seen := map[string]string{}
	for _, c := range s.lineage(name) {
		for _, p := range c.Properties {
			if owner, dup := seen[p.Name]; dup {
				return types.Configf("class "+name, "field %s is declared by both %s and %s", p.Name, owner, c.Name)
			}
			seen[p.Name] = c.Name
		}
		for f := range s.own[c.Name] {
			if owner, dup := seen[f]; dup {
				return types.Configf("class "+name, "field %s is declared by both %s and %s", f, owner, c.Name)
			}
			seen[f] = c.Name
		}
		if c.Name == name {
			for _, sc := range s.shortcuts {
				if sc.Class != name {
					continue
				}
				if owner, dup := seen[sc.Name]; dup {
					return types.Configf("class "+name, "shortcut %s collides with a field of %s", sc.Name, owner)
				}
				seen[sc.Name] = name
			}
		}
	}
	return nil
}

func (s *Schema) checkShortcuts() error {
	for _, sc := range s.shortcuts {
		if _, err := s.ResolveShortcut(sc); err != nil {
			return err
		}
	}
	return nil
}

// ResolveShortcut follows a shortcut's path from its class and returns the
// relationship field of each hop.
func (s *Schema) ResolveShortcut(sc *ShortcutDecl) ([]*types.RelationField, error) {
	subject := "shortcut " + sc.Class + "." + sc.Name
	if _, ok := s.classes[sc.Class]; !ok {
		return nil, types.Configf(subject, "undeclared class %q", sc.Class)
	}
	if len(sc.Path) == 0 {
		return nil, types.Configf(subject, "empty path")
	}
	hops := make([]*types.RelationField, 0, len(sc.Path))
	current := sc.Class
	for _, step := range sc.Path {
		fields, _ := s.FieldsOf(current)
		f, ok := fields[step]
		if !ok {
			return nil, types.Configf(subject, "%s is not a relationship field of %s", step, current)
		}
		hops = append(hops, f)
		current = f.Codomain
	}
	return hops, nil
}

// lineage returns the class followed by its ancestors, nearest first.
func (s *Schema) lineage(name string) []*ClassDecl {
	var out []*ClassDecl
	for c, ok := s.classes[name]; ok; c, ok = s.classes[c.Extends] {
		out = append(out, c)
	}
	return out
}

// FieldsOf returns the relationship fields in which className participates,
// either end, including those inherited from its ancestors. Symmetric
// relationships contribute one field. The map is a fresh copy.
func (s *Schema) FieldsOf(className string) (map[string]*types.RelationField, error) {
	if _, ok := s.classes[className]; !ok {
		return nil, types.Configf("class "+className, "not declared")
	}
	out := map[string]*types.RelationField{}
	for _, c := range s.lineage(className) {
		for name, f := range s.own[c.Name] {
			if _, shadowed := out[name]; !shadowed {
				out[name] = f
			}
		}
	}
	return out, nil
}

// Class returns the declaration of a class.
func (s *Schema) Class(name string) (*ClassDecl, bool) {
	c, ok := s.classes[name]
	return c, ok
}

// Classes returns every class declaration in document order.
func (s *Schema) Classes() []*ClassDecl {
	out := make([]*ClassDecl, len(s.classOrder))
	for i, n := range s.classOrder {
		out[i] = s.classes[n]
	}
	return out
}

// Ancestors returns the names of the classes name extends, nearest first.
func (s *Schema) Ancestors(name string) []string {
	var out []string
	for i, c := range s.lineage(name) {
		if i > 0 {
			out = append(out, c.Name)
		}
	}
	return out
}

// Relationship returns a compiled relationship type by name.
func (s *Schema) Relationship(name string) (*types.RelationshipType, bool) {
	rt, ok := s.relationships[name]
	return rt, ok
}

// Relationships returns every relationship type in document order.
func (s *Schema) Relationships() []*types.RelationshipType {
	out := make([]*types.RelationshipType, len(s.relOrder))
	for i, n := range s.relOrder {
		out[i] = s.relationships[n]
	}
	return out
}

// Shortcuts returns the shortcut declarations of class name, sorted by
// field name.
func (s *Schema) Shortcuts(name string) []*ShortcutDecl {
	var out []*ShortcutDecl
	for _, sc := range s.shortcuts {
		if sc.Class == name {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
