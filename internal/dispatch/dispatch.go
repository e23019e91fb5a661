// Package dispatch binds a route's path type and verb to a generic handler
// operation and resolves the handler context (target class and
// relationship ends) once, when the route is registered.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/lyphgraph/internal/handler"
	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// PathType classifies the shape of a route.
type PathType int

const (
	Resources PathType = iota + 1
	SpecificResources
	RelatedResources
	SpecificRelatedResource
	Relationships
	SpecificRelationships
	SpecificRelationshipByResources
	RelatedRelationships
)

var pathTypeNames = map[PathType]string{
	Resources:                       "resources",
	SpecificResources:               "specificResources",
	RelatedResources:                "relatedResources",
	SpecificRelatedResource:         "specificRelatedResource",
	Relationships:                   "relationships",
	SpecificRelationships:           "specificRelationships",
	SpecificRelationshipByResources: "specificRelationshipByResources",
	RelatedRelationships:            "relatedRelationships",
}

func (p PathType) String() string {
	if s, ok := pathTypeNames[p]; ok {
		return s
	}
	return fmt.Sprintf("PathType(%d)", int(p))
}

// ParsePathType returns the path type named s.
func ParsePathType(s string) (PathType, error) {
	for p, name := range pathTypeNames {
		if name == s {
			return p, nil
		}
	}
	return 0, types.Configf("path type "+s, "not recognized")
}

// Verb is an HTTP method the dispatcher can bind.
type Verb int

const (
	Get Verb = iota + 1
	Post
	Put
	Delete
)

var verbNames = map[Verb]string{Get: "GET", Post: "POST", Put: "PUT", Delete: "DELETE"}

func (v Verb) String() string {
	if s, ok := verbNames[v]; ok {
		return s
	}
	return fmt.Sprintf("Verb(%d)", int(v))
}

// ParseVerb maps an HTTP method, in any case, to a Verb.
func ParseVerb(method string) (Verb, error) {
	m := strings.ToUpper(method)
	for v, name := range verbNames {
		if name == m {
			return v, nil
		}
	}
	return 0, types.Configf("verb "+method, "not recognized")
}

// Route is the metadata a route declares. Class is set on every
// resource-shaped route, Relationship on relationship-shaped ones, and
// Field on the related-resource routes. Side selects the end of
// Relationship that Class sits on for SpecificRelationshipByResources and
// RelatedRelationships.
type Route struct {
	PathType     PathType
	Verb         Verb
	Class        string
	Relationship string
	Field        string
	Side         int
}

func (r Route) String() string {
	parts := []string{r.Verb.String(), r.PathType.String()}
	for _, s := range []string{r.Class, r.Relationship, r.Field} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Catalog resolves the names a route refers to.
type Catalog interface {
	ClassOf(name string) (*types.EntityClass, error)
	Relationship(name string) (*types.RelationshipType, error)
}

// Binding is a route resolved to its handler and context.
type Binding struct {
	Route  Route
	Target handler.Target
	Handle handler.Func
}

// Dispatcher holds the path type by verb lookup table.
type Dispatcher struct {
	catalog Catalog
	table   map[PathType]map[Verb]handler.Func
}

// New builds the lookup table over h.
func New(h *handler.Handlers, catalog Catalog) *Dispatcher {
	return &Dispatcher{
		catalog: catalog,
		table: map[PathType]map[Verb]handler.Func{
			Resources: {
				Get:  h.ListResources,
				Post: h.CreateResource,
			},
			SpecificResources: {
				Get:    h.GetResources,
				Post:   h.UpdateResources,
				Put:    h.ReplaceResources,
				Delete: h.DeleteResources,
			},
			RelatedResources: {
				Get: h.GetRelated,
			},
			SpecificRelatedResource: {
				Put:    h.LinkResources,
				Delete: h.UnlinkResources,
			},
			Relationships: {
				Get: h.ListRelationships,
			},
			SpecificRelationships: {
				Get:    h.GetRelationships,
				Post:   h.UpdateRelationships,
				Put:    h.ReplaceRelationships,
				Delete: h.DeleteRelationships,
			},
			SpecificRelationshipByResources: {
				Get:    h.GetRelationshipByResources,
				Post:   h.UpdateRelationshipByResources,
				Put:    h.PutRelationshipByResources,
				Delete: h.DeleteRelationshipByResources,
			},
			RelatedRelationships: {
				Get: h.GetRelatedRelationships,
			},
		},
	}
}

// Supports reports whether the path type accepts the verb.
func (d *Dispatcher) Supports(p PathType, v Verb) bool {
	_, ok := d.table[p][v]
	return ok
}

// Bind resolves r. Every failure is a *types.ConfigError.
func (d *Dispatcher) Bind(r Route) (Binding, error) {
	verbs, ok := d.table[r.PathType]
	if !ok {
		return Binding{}, types.Configf("route "+r.String(), "unknown path type")
	}
	fn, ok := verbs[r.Verb]
	if !ok {
		return Binding{}, types.Configf("route "+r.String(), "%s does not accept %s", r.PathType, r.Verb)
	}
	t, err := d.target(r)
	if err != nil {
		return Binding{}, types.Configf("route "+r.String(), "%v", err)
	}
	return Binding{Route: r, Target: t, Handle: fn}, nil
}

func (d *Dispatcher) target(r Route) (handler.Target, error) {
	var t handler.Target
	switch r.PathType {
	case Relationships, SpecificRelationships:
		rel, err := d.catalog.Relationship(r.Relationship)
		if err != nil {
			return t, err
		}
		t.Rel = rel
		return t, nil
	}

	class, err := d.catalog.ClassOf(r.Class)
	if err != nil {
		return t, err
	}
	t.Class = class

	switch r.PathType {
	case RelatedResources:
		if sc, ok := class.Shortcuts[r.Field]; ok {
			t.Shortcut = sc
			return t, nil
		}
		return t, d.bindField(&t, r.Field)
	case SpecificRelatedResource:
		return t, d.bindField(&t, r.Field)
	case SpecificRelationshipByResources, RelatedRelationships:
		rel, err := d.catalog.Relationship(r.Relationship)
		if err != nil {
			return t, err
		}
		if r.Side != 0 && r.Side != 1 {
			return t, fmt.Errorf("side %d is not 0 or 1", r.Side)
		}
		end := rel.Ends[r.Side]
		if class.Relations[end.Name] != end {
			return t, fmt.Errorf("%s is not on side %d of %s", class.Name, r.Side, rel.Name)
		}
		t.Rel, t.RelA, t.RelB = rel, end, end.Reverse()
	}
	return t, nil
}

func (d *Dispatcher) bindField(t *handler.Target, name string) error {
	f, ok := t.Class.Relations[name]
	if !ok {
		return fmt.Errorf("%s has no relationship field %q", t.Class.Name, name)
	}
	t.Rel, t.RelA, t.RelB = f.Relationship, f, f.Reverse()
	return nil
}
