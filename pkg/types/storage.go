package types

import "context"

// Storage is the persistence port the handler layer depends on. It is the
// only path through which entities and relationship instances are created,
// changed, or removed. Implementations must be safe for concurrent use and
// must apply every mutating call atomically: a link and its reverse, and
// any ONE-cardinality displacement it causes, commit together or not at
// all.
type Storage interface {
	// GetAllResources returns every entity whose class is accepted by class.
	GetAllResources(ctx context.Context, class *EntityClass) ([]*Entity, error)

	// GetSpecificResources returns the entities with the given ids, in the
	// order of ids. Ids that do not exist are skipped.
	GetSpecificResources(ctx context.Context, class *EntityClass, ids []string) ([]*Entity, error)

	// CreateResource stores a new entity of a concrete class together with
	// the links listed in input.Relations, and returns its generated id.
	CreateResource(ctx context.Context, class *EntityClass, input ResourceInput) (string, error)

	// UpdateResource merges the supplied properties into the entity and
	// replaces the link set of every relationship field present in
	// input.Relations. Fields not mentioned are untouched.
	UpdateResource(ctx context.Context, class *EntityClass, id string, input ResourceInput) error

	// ReplaceResource overwrites every mutable field: properties not
	// supplied revert to their defaults (or become undefined) and writable
	// relationship fields not supplied are cleared.
	ReplaceResource(ctx context.Context, class *EntityClass, id string, input ResourceInput) error

	// DeleteResource removes the entity and every link touching it.
	DeleteResource(ctx context.Context, class *EntityClass, id string) error

	// AssertResourcesExist fails with a NotFound DomainError naming every id
	// that does not exist as an instance of class.
	AssertResourcesExist(ctx context.Context, class *EntityClass, ids []string) error

	// GetRelatedResources returns the entities reachable from id through
	// field, in index order for ordered relationships.
	GetRelatedResources(ctx context.Context, field *RelationField, id string) ([]*Entity, error)

	// AddRelationship links idA (on field's side) to idB (on the reverse
	// side). Existing links are kept and their fields updated. A ONE end
	// that already holds a reference has it replaced.
	AddRelationship(ctx context.Context, field *RelationField, idA, idB string, fields map[string]any) error

	// DeleteRelationship unlinks idA and idB. It fails with NotFound when
	// the link does not exist.
	DeleteRelationship(ctx context.Context, field *RelationField, idA, idB string) error

	// GetRelationship returns the relationship instance linking idA and idB
	// through field.
	GetRelationship(ctx context.Context, field *RelationField, idA, idB string) (*Relationship, error)

	// GetRelatedRelationships returns the instances of field's relationship
	// that hold id on field's side, in index order for ordered relationships.
	GetRelatedRelationships(ctx context.Context, field *RelationField, id string) ([]*Relationship, error)

	// GetAllRelationships returns every instance of rel.
	GetAllRelationships(ctx context.Context, rel *RelationshipType) ([]*Relationship, error)

	// GetSpecificRelationships returns the instances of rel with the given
	// ids, in the order of ids.
	GetSpecificRelationships(ctx context.Context, rel *RelationshipType, ids []string) ([]*Relationship, error)

	// AssertRelationshipsExist fails with NotFound naming every missing id.
	AssertRelationshipsExist(ctx context.Context, rel *RelationshipType, ids []string) error

	// UpdateRelationshipByID merges fields into the instance.
	UpdateRelationshipByID(ctx context.Context, rel *RelationshipType, id string, fields map[string]any) error

	// ReplaceRelationshipByID overwrites the instance's fields. Fixed
	// fields declared by the relationship type are kept.
	ReplaceRelationshipByID(ctx context.Context, rel *RelationshipType, id string, fields map[string]any) error

	// DeleteRelationshipByID removes the instance.
	DeleteRelationshipByID(ctx context.Context, rel *RelationshipType, id string) error

	// EnsureUniqueIDConstraint provisions a uniqueness constraint on the id
	// of class. It is idempotent and safe to call on every start.
	EnsureUniqueIDConstraint(ctx context.Context, class *EntityClass) error
}
