// Package registry folds the property declarations and the compiled
// relationship schema into one immutable field table per entity class.
package registry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mesh-intelligence/lyphgraph/internal/schema"
	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// Registry maps class names to their derived EntityClass. It is built once
// by New and safe for concurrent reads.
type Registry struct {
	classes       map[string]*types.EntityClass
	order         []string
	byPath        map[string]*types.EntityClass
	relationships []*types.RelationshipType
	relByName     map[string]*types.RelationshipType
}

// New derives every EntityClass from s. It fails with a *types.ConfigError
// when a derived field or path collides.
func New(s *schema.Schema) (*Registry, error) {
	r := &Registry{
		classes:   map[string]*types.EntityClass{},
		byPath:    map[string]*types.EntityClass{},
		relByName: map[string]*types.RelationshipType{},
	}
	for _, rt := range s.Relationships() {
		r.relationships = append(r.relationships, rt)
		r.relByName[rt.Name] = rt
	}

	for _, decl := range s.Classes() {
		class, err := buildClass(s, decl)
		if err != nil {
			return nil, err
		}
		if other, clash := r.byPath[class.Path]; clash {
			return nil, types.Configf("class "+class.Name, "path %q is already used by %s", class.Path, other.Name)
		}
		if _, clash := r.relByName[class.Path]; clash {
			return nil, types.Configf("class "+class.Name, "path %q is already used by a relationship", class.Path)
		}
		r.classes[class.Name] = class
		r.byPath[class.Path] = class
		r.order = append(r.order, class.Name)
	}

	// Concrete sets need the whole hierarchy.
	for _, name := range r.order {
		c := r.classes[name]
		if !c.Abstract {
			c.Concrete = append(c.Concrete, name)
		}
		for _, anc := range s.Ancestors(name) {
			if !c.Abstract {
				r.classes[anc].Concrete = append(r.classes[anc].Concrete, name)
			}
		}
	}
	return r, nil
}

func buildClass(s *schema.Schema, decl *schema.ClassDecl) (*types.EntityClass, error) {
	class := &types.EntityClass{
		Name:       decl.Name,
		Abstract:   decl.Abstract,
		Extends:    decl.Extends,
		Path:       decl.Path,
		Properties: map[string]*types.PropertySpec{},
		Shortcuts:  map[string]*types.Shortcut{},
	}

	lineage := append([]string{decl.Name}, s.Ancestors(decl.Name)...)
	for _, name := range lineage {
		c, _ := s.Class(name)
		for _, p := range c.Properties {
			class.Properties[p.Name] = p
		}
	}

	relations, err := s.FieldsOf(decl.Name)
	if err != nil {
		return nil, err
	}
	class.Relations = relations

	// The index of an ordered end is exposed as an integer property of
	// the entity being ordered.
	for _, f := range relations {
		if f.IndexFieldName == "" {
			continue
		}
		if _, clash := class.Field(f.IndexFieldName); clash {
			return nil, types.Configf("class "+decl.Name, "index field %s collides with another field", f.IndexFieldName)
		}
		class.Properties[f.IndexFieldName] = &types.PropertySpec{
			Name: f.IndexFieldName,
			Type: types.ValueInteger,
		}
	}

	for _, sc := range s.Shortcuts(decl.Name) {
		hops, err := s.ResolveShortcut(sc)
		if err != nil {
			return nil, err
		}
		card := types.One
		for _, h := range hops {
			if h.Cardinality != types.One {
				card = types.Many
			}
		}
		class.Shortcuts[sc.Name] = &types.Shortcut{
			Name:        sc.Name,
			Class:       decl.Name,
			Path:        sc.Path,
			Hops:        hops,
			Codomain:    hops[len(hops)-1].Codomain,
			Cardinality: card,
		}
	}
	return class, nil
}

// ClassOf returns the class named name, or a NotFound DomainError.
func (r *Registry) ClassOf(name string) (*types.EntityClass, error) {
	c, ok := r.classes[name]
	if !ok {
		return nil, &types.DomainError{
			Kind:    types.KindNotFound,
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("There is no class named '%s'.", name),
			Info:    map[string]any{"class": name},
		}
	}
	return c, nil
}

// IsResourceClass reports whether name is a registered, non-abstract class.
func (r *Registry) IsResourceClass(name string) bool {
	c, ok := r.classes[name]
	return ok && !c.Abstract
}

// ClassByPath returns the class whose collection path is path.
func (r *Registry) ClassByPath(path string) (*types.EntityClass, bool) {
	c, ok := r.byPath[path]
	return c, ok
}

// Classes returns every registered class in declaration order.
func (r *Registry) Classes() []*types.EntityClass {
	out := make([]*types.EntityClass, len(r.order))
	for i, n := range r.order {
		out[i] = r.classes[n]
	}
	return out
}

// ResourceClasses returns the non-abstract classes in declaration order.
func (r *Registry) ResourceClasses() []*types.EntityClass {
	var out []*types.EntityClass
	for _, c := range r.Classes() {
		if !c.Abstract {
			out = append(out, c)
		}
	}
	return out
}

// Relationships returns every relationship type in declaration order.
func (r *Registry) Relationships() []*types.RelationshipType {
	return append([]*types.RelationshipType(nil), r.relationships...)
}

// Relationship returns a relationship type by name, or a NotFound
// DomainError.
func (r *Registry) Relationship(name string) (*types.RelationshipType, error) {
	rt, ok := r.relByName[name]
	if !ok {
		return nil, &types.DomainError{
			Kind:    types.KindNotFound,
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("There is no relationship type named '%s'.", name),
			Info:    map[string]any{"relationship": name},
		}
	}
	return rt, nil
}

// EnsureConstraints asks storage for a unique-id constraint on every
// resource class. Storage implementations make this idempotent, so it runs
// on every start.
func (r *Registry) EnsureConstraints(ctx context.Context, storage types.Storage) error {
	for _, c := range r.ResourceClasses() {
		if err := storage.EnsureUniqueIDConstraint(ctx, c); err != nil {
			return fmt.Errorf("ensuring unique id on %s: %w", c.Name, err)
		}
	}
	return nil
}
