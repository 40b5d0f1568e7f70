package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFieldMap_Verify(t *testing.T) {
	assert.NoError(t, DefaultFieldMap().Verify())
}

func TestDefaultFieldMap_EveryColumnResolves(t *testing.T) {
	fm := DefaultFieldMap()

	for _, col := range DatasetColumns {
		spec, err := fm.Resolve(col)
		require.NoError(t, err, col)
		assert.Equal(t, EntityDataset, spec.Entity, col)
		assert.NotNil(t, spec.Mapping, col)
	}
	for _, col := range ResourceColumns {
		spec, err := fm.Resolve(col)
		require.NoError(t, err, col)
		assert.Equal(t, EntityResource, spec.Entity, col)
	}
}

func TestFieldMap_ResolveUnknown(t *testing.T) {
	_, err := DefaultFieldMap().Resolve("Lieblingsfarbe")
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestFieldMap_ResolveExtension(t *testing.T) {
	spec, err := DefaultFieldMap().Resolve("Extra-Quelle")
	require.NoError(t, err)

	ext, ok := spec.Mapping.(Extension)
	require.True(t, ok)
	assert.Equal(t, "Quelle", ext.Key)
	assert.Equal(t, EntityDataset, spec.Entity)

	_, err = DefaultFieldMap().Resolve("Extra-")
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestFieldMap_AllFieldsKeepsOrder(t *testing.T) {
	fm := DefaultFieldMap()

	assert.Equal(t, DatasetColumns, fm.AllFields(EntityDataset))
	assert.Equal(t, ResourceColumns, fm.AllFields(EntityResource))
}

func TestFieldMap_Mandatory(t *testing.T) {
	fm := DefaultFieldMap()

	assert.ElementsMatch(t, []string{ColTitle, ColDatasetName}, fm.Mandatory(EntityDataset))
	assert.Equal(t, []string{ColResourceName}, fm.Mandatory(EntityResource))
}

func TestFieldMap_RequiredSkipsOptional(t *testing.T) {
	required := DefaultFieldMap().Required(EntityResource)

	assert.Contains(t, required, ColResourceURL)
	assert.NotContains(t, required, ColSticky)
	assert.NotContains(t, required, ColResourceLicense)
}

func TestFieldMap_VerifyDetectsMissingSpec(t *testing.T) {
	fm := NewFieldMap(DefaultFieldMap().Specs(EntityDataset))

	err := fm.Verify()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompleteFieldMap))
	assert.True(t, IsAbort(err))
	assert.Contains(t, err.Error(), `resource field "Resource-Name" has no spec`)
}

func TestFieldMap_VerifyDetectsUndeclaredSpec(t *testing.T) {
	specs := DefaultFieldMap().Specs(EntityDataset)
	specs = append(specs, DefaultFieldMap().Specs(EntityResource)...)
	specs = append(specs, FieldSpec{Column: "Orphan", Entity: EntityDataset, Mapping: PackageKey{Key: "orphan"}})

	err := NewFieldMap(specs).Verify()

	require.Error(t, err)
	assert.Contains(t, err.Error(), `spec "Orphan" is not a declared field`)
}

func TestFieldMap_VerifyDetectsWrongEntity(t *testing.T) {
	fm := NewFieldMap([]FieldSpec{
		{Column: "A", Entity: EntityResource, Mapping: PackageKey{Key: "a"}},
	})

	err := fm.verifyAgainst(map[EntityKind][]string{EntityDataset: {"A"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `spec "A" belongs to resource, declared by dataset`)
}

func TestFieldMap_WritableTargets(t *testing.T) {
	fm := DefaultFieldMap()

	author, err := fm.Resolve(ColAuthor)
	require.NoError(t, err)
	assert.Equal(t, FieldValue("field_author", "value"), author.Target)

	// Custom License shares field_license with License and shows
	// whatever the portal stored there.
	custom, err := fm.Resolve(ColCustomLicense)
	require.NoError(t, err)
	assert.Equal(t, FieldValue("field_license", "value"), custom.Target)
	assert.True(t, custom.ServerAssigned)

	// node flags are set by the portal, import never writes them
	for _, col := range []string{ColSticky, ColCommentStatus, ColPublished, ColFrontpage} {
		spec, err := fm.Resolve(col)
		require.NoError(t, err)
		assert.Nil(t, spec.Target, col)
		assert.True(t, spec.ServerAssigned, col)
	}

	start, err := fm.Resolve(ColTemporalStart)
	require.NoError(t, err)
	assert.Equal(t, TypeDate, start.Type)
	assert.Equal(t, FieldValue("field_temporal_coverage", "value"), start.Target)
}
