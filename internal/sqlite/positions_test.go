package sqlite

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

func TestPositionsAppendAndInsert(t *testing.T) {
	b, reg := setupBackend(t)
	lyt, layt := class(t, reg, "LyphTemplate"), class(t, reg, "LayerTemplate")
	layers := field(t, reg, "LyphTemplate", "layers")

	owner := create(t, b, lyt, nil)
	a := create(t, b, layt, nil)
	c := create(t, b, layt, nil)
	d := create(t, b, layt, nil)

	require.NoError(t, b.AddRelationship(ctx, layers, owner, a, nil))
	require.NoError(t, b.AddRelationship(ctx, layers, owner, c, nil))
	require.NoError(t, b.AddRelationship(ctx, layers, owner, d, map[string]any{"position": 1.0}))
	assert.Equal(t, []string{d, a, c}, refIDs(get(t, b, lyt, owner).Relations["layers"]))

	// Positions beyond the end clamp to the end.
	require.NoError(t, b.UpdateResource(ctx, layt, d, types.ResourceInput{
		Properties: map[string]any{"position": 99.0},
	}))
	assert.Equal(t, []string{a, c, d}, refIDs(get(t, b, lyt, owner).Relations["layers"]))
	assert.EqualValues(t, 3, get(t, b, layt, d).Properties["position"])

	rel, err := b.GetRelationship(ctx, layers, owner, d)
	require.NoError(t, err)
	assert.EqualValues(t, 3, rel.Fields["position"])

	err = b.AddRelationship(ctx, layers, owner, a, map[string]any{"position": 0.0})
	assert.ErrorIs(t, err, types.ErrInvalid)
}

// TestPositionsStayContiguous drives random inserts, moves, unlinks and
// deletes and checks after every step that each group is numbered 1..n in
// the order GetRelatedResources reports.
func TestPositionsStayContiguous(t *testing.T) {
	b, reg := setupBackend(t)
	lyt, layt := class(t, reg, "LyphTemplate"), class(t, reg, "LayerTemplate")
	layers := field(t, reg, "LyphTemplate", "layers")

	owners := []string{create(t, b, lyt, nil), create(t, b, lyt, nil)}
	var pool []string
	for i := 0; i < 12; i++ {
		pool = append(pool, create(t, b, layt, nil))
	}

	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 200; step++ {
		owner := owners[rng.Intn(len(owners))]
		if len(pool) == 0 {
			break
		}
		target := pool[rng.Intn(len(pool))]

		switch rng.Intn(5) {
		case 0, 1:
			var fields map[string]any
			if rng.Intn(2) == 0 {
				fields = map[string]any{"position": float64(1 + rng.Intn(8))}
			}
			require.NoError(t, b.AddRelationship(ctx, layers, owner, target, fields))
		case 2:
			err := b.UpdateResource(ctx, layt, target, types.ResourceInput{
				Properties: map[string]any{"position": float64(1 + rng.Intn(8))},
			})
			require.NoError(t, err)
		case 3:
			err := b.DeleteRelationship(ctx, layers, owner, target)
			if err != nil {
				require.ErrorIs(t, err, types.ErrNotFound)
			}
		case 4:
			if rng.Intn(4) == 0 {
				require.NoError(t, b.DeleteResource(ctx, layt, target))
				for i, id := range pool {
					if id == target {
						pool = append(pool[:i], pool[i+1:]...)
						break
					}
				}
			}
		}

		for _, o := range owners {
			related, err := b.GetRelatedResources(ctx, layers, o)
			require.NoError(t, err)
			for i, e := range related {
				require.EqualValues(t, i+1, e.Properties["position"], "step %d owner %s", step, o)
				require.Equal(t, []string{o}, refIDs(e.Relations["lyphTemplate"]))
			}
		}
	}
}
