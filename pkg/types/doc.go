// Package types defines the meta-model shared by every lyphgraph component:
// relationship tuples and their compiled form, entity classes and field
// specifications, entity and relationship instances, the Storage interface
// that persistence backends implement, and the domain error types.
//
// Values in this package that describe the schema (EntityClass,
// RelationshipType, RelationField, Shortcut) are built once at startup and
// must not be mutated afterwards; they are shared by all requests without
// synchronization.
package types
