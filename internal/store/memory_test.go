package store

import (
	"context"
	"testing"

	"github.com/opencallgraph/merger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ResolveIds_DedupesAndDropsMissing(t *testing.T) {
	m := NewMemory()
	m.Coordinates["g:a:1.0"] = 1
	m.Coordinates["g:b:1.0"] = 2

	ids, err := m.ResolveIds(context.Background(), []string{"g:a:1.0", "g:a:1.0", "g:missing:1.0", "g:b:1.0"})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	_, has1 := ids[1]
	_, has2 := ids[2]
	assert.True(t, has1)
	assert.True(t, has2)
}

func TestMemory_CallablesOf_SkipsFailedDependency(t *testing.T) {
	m := NewMemory()
	m.Callables[1] = []model.CallableId{10, 11}

	var failed []DependencyId
	ids, err := m.CallablesOf(context.Background(), map[DependencyId]struct{}{1: {}, 2: {}}, func(d DependencyId, err error) {
		failed = append(failed, d)
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.CallableId{10, 11}, ids)
	assert.Equal(t, []DependencyId{2}, failed)
}

func TestMemory_PartialGraph_MissingIsFatal(t *testing.T) {
	m := NewMemory()
	_, err := m.PartialGraph(context.Background(), 99)
	require.Error(t, err)
	var missing *model.FocalGraphMissingError
	require.ErrorAs(t, err, &missing)
}
