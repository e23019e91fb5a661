package types

import "time"

// Ref identifies an entity by class and id. It is the serialized form of a
// relationship reference.
type Ref struct {
	Class string `json:"class"`
	ID    string `json:"id"`
}

// Entity is a stored resource instance. Properties hold plain attribute
// values (plus the index field of an ordered relationship end, when the
// entity sits on one). Relations hold the references reachable through
// each relationship field, keyed by field name; MANY fields backed by an
// ordered relationship list their references in index order.
type Entity struct {
	ID         string
	Class      string
	Properties map[string]any
	Relations  map[string][]Ref
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Ref returns the reference to e.
func (e *Entity) Ref() Ref {
	return Ref{Class: e.Class, ID: e.ID}
}

// ResourceInput is a create/update/replace payload split by field variant.
// Relations maps a writable relationship field to the ids it must
// reference; ONE fields carry at most one id.
type ResourceInput struct {
	Properties map[string]any
	Relations  map[string][]string
}

// Relationship is a relationship instance exposed as a resource. A is the
// entity on side 0 of the tuple and B the entity on side 1.
type Relationship struct {
	ID        string
	Type      string
	A         Ref
	B         Ref
	Fields    map[string]any
	CreatedAt time.Time
}
