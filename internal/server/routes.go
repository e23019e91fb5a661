package server

import (
	"sort"

	"github.com/mesh-intelligence/lyphgraph/internal/dispatch"
	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// Catalog lists what routes are generated for.
type Catalog interface {
	ResourceClasses() []*types.EntityClass
	Relationships() []*types.RelationshipType
}

// Route is one generated endpoint: an HTTP method and path pattern plus
// the dispatcher metadata it binds to.
type Route struct {
	dispatch.Route
	Path    string
	Summary string
}

// Pattern returns the ServeMux pattern, e.g. "GET /lyphs/{ids}".
func (r Route) Pattern() string {
	return r.Verb.String() + " " + r.Path
}

// Routes generates the route table for every resource class and
// relationship type. Two routes with the same pattern are a ConfigError,
// except that a relationship reachable from both ends of the same class
// gets a single set of relationship-shaped routes.
func Routes(c Catalog) ([]Route, error) {
	var (
		routes []Route
		seen   = map[string]bool{}
	)
	add := func(r Route) error {
		p := r.Pattern()
		if seen[p] {
			return types.Configf("route "+p, "declared twice")
		}
		seen[p] = true
		routes = append(routes, r)
		return nil
	}

	for _, class := range c.ResourceClasses() {
		var (
			base     = "/" + class.Path
			one      = base + "/{id}"
			many     = base + "/{ids}"
			resource = func(p dispatch.PathType, v dispatch.Verb, path string) Route {
				return Route{Route: dispatch.Route{PathType: p, Verb: v, Class: class.Name}, Path: path}
			}
		)
		for _, r := range []Route{
			resource(dispatch.Resources, dispatch.Get, base),
			resource(dispatch.Resources, dispatch.Post, base),
			resource(dispatch.SpecificResources, dispatch.Get, many),
			resource(dispatch.SpecificResources, dispatch.Post, one),
			resource(dispatch.SpecificResources, dispatch.Put, one),
			resource(dispatch.SpecificResources, dispatch.Delete, one),
		} {
			if err := add(r); err != nil {
				return nil, err
			}
		}

		for _, name := range sortedKeys(class.Relations) {
			f := class.Relations[name]
			related := base + "/{idA}/" + name
			specific := related + "/{idB}"
			for _, r := range []Route{
				{Route: dispatch.Route{PathType: dispatch.RelatedResources, Verb: dispatch.Get, Class: class.Name, Field: name}, Path: related, Summary: f.Summaries.Get},
				{Route: dispatch.Route{PathType: dispatch.SpecificRelatedResource, Verb: dispatch.Put, Class: class.Name, Field: name}, Path: specific, Summary: f.Summaries.Put},
				{Route: dispatch.Route{PathType: dispatch.SpecificRelatedResource, Verb: dispatch.Delete, Class: class.Name, Field: name}, Path: specific, Summary: f.Summaries.Delete},
			} {
				if err := add(r); err != nil {
					return nil, err
				}
			}
		}

		for _, name := range sortedKeys(class.Shortcuts) {
			r := Route{
				Route: dispatch.Route{PathType: dispatch.RelatedResources, Verb: dispatch.Get, Class: class.Name, Field: name},
				Path:  base + "/{idA}/" + name,
			}
			if err := add(r); err != nil {
				return nil, err
			}
		}

		// Side 0 claims the relationship-shaped paths first.
		byResources := map[string]bool{}
		for side := 0; side <= 1; side++ {
			for _, name := range sortedKeys(class.Relations) {
				f := class.Relations[name]
				if f.Side != side {
					continue
				}
				related := base + "/{idA}/" + f.Relationship.Name
				if byResources[related] {
					continue
				}
				byResources[related] = true
				route := func(p dispatch.PathType, v dispatch.Verb, path string) Route {
					return Route{
						Route: dispatch.Route{
							PathType:     p,
							Verb:         v,
							Class:        class.Name,
							Relationship: f.Relationship.Name,
							Side:         side,
						},
						Path: path,
					}
				}
				rs := []Route{route(dispatch.RelatedRelationships, dispatch.Get, related)}
				for _, v := range []dispatch.Verb{dispatch.Get, dispatch.Post, dispatch.Put, dispatch.Delete} {
					rs = append(rs, route(dispatch.SpecificRelationshipByResources, v, related+"/{idB}"))
				}
				for _, r := range rs {
					if err := add(r); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	for _, rel := range c.Relationships() {
		var (
			base         = "/" + rel.Name
			relationship = func(p dispatch.PathType, v dispatch.Verb, path string) Route {
				return Route{Route: dispatch.Route{PathType: p, Verb: v, Relationship: rel.Name}, Path: path}
			}
		)
		for _, r := range []Route{
			relationship(dispatch.Relationships, dispatch.Get, base),
			relationship(dispatch.SpecificRelationships, dispatch.Get, base+"/{ids}"),
			relationship(dispatch.SpecificRelationships, dispatch.Post, base+"/{id}"),
			relationship(dispatch.SpecificRelationships, dispatch.Put, base+"/{id}"),
			relationship(dispatch.SpecificRelationships, dispatch.Delete, base+"/{id}"),
		} {
			if err := add(r); err != nil {
				return nil, err
			}
		}
	}
	return routes, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
