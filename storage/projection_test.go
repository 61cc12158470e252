package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/kgraph/kgschema"
	"go.jacobcolvin.com/kgraph/storage"
)

func TestProject(t *testing.T) {
	t.Parallel()

	catalog, err := kgschema.NewCatalog(
		&kgschema.EntitySchema{
			EntityType:    "owner",
			SchemaVersion: "1.0.0",
			BackingType:   "Owner",
			Required: []kgschema.FieldDefinition{
				{Name: "email", Type: kgschema.TypeString, Required: true},
				// Same name as repository's field, different type: the
				// first definition seen (owner sorts first) wins.
				{Name: "priority", Type: kgschema.TypeInteger, Required: true},
			},
		},
		&kgschema.EntitySchema{
			EntityType:    "repository",
			SchemaVersion: "1.0.0",
			BackingType:   "Repository",
			Required: []kgschema.FieldDefinition{
				{Name: "owners", Type: kgschema.TypeArray, Required: true},
			},
			Optional: []kgschema.FieldDefinition{
				{Name: "priority", Type: kgschema.TypeString},
				{Name: "archived", Type: kgschema.TypeBoolean},
				{Name: "last_commit", Type: kgschema.TypeDatetime},
				{Name: "settings", Type: kgschema.TypeObject},
			},
		},
	)
	require.NoError(t, err)

	backing := storage.Project(catalog)

	byName := map[string]storage.PredicateDef{}
	for _, p := range backing.Predicates {
		// One definition per unique predicate name.
		_, dup := byName[p.Name]
		require.False(t, dup, "duplicate predicate %q", p.Name)

		byName[p.Name] = p
	}

	assert.Equal(t, storage.PredicateDef{Name: "entity_id", Type: "string", Index: storage.IndexExact}, byName["entity_id"])
	assert.Equal(t, storage.PredicateDef{Name: "entity_type", Type: "string", Index: storage.IndexExact}, byName["entity_type"])

	assert.Equal(t, "string", byName["email"].Type)
	assert.Equal(t, storage.IndexExact, byName["email"].Index)

	// First seen wins: owner declares priority as integer.
	assert.Equal(t, "int", byName["priority"].Type)
	assert.Equal(t, storage.IndexInt, byName["priority"].Index)

	assert.Equal(t, "[string]", byName["owners"].Type)
	assert.Empty(t, byName["owners"].Index)

	assert.Equal(t, "bool", byName["archived"].Type)
	assert.Equal(t, storage.IndexBool, byName["archived"].Index)

	assert.Equal(t, "datetime", byName["last_commit"].Type)
	assert.Empty(t, byName["last_commit"].Index)

	// Objects are stored as JSON strings, unindexed.
	assert.Equal(t, "string", byName["settings"].Type)
	assert.Empty(t, byName["settings"].Index)

	require.Len(t, backing.Types, 2)
	assert.Equal(t, "Owner", backing.Types[0].Name)
	assert.Equal(t, []string{"entity_id", "entity_type", "email", "priority"}, backing.Types[0].Predicates)
	assert.Equal(t, "Repository", backing.Types[1].Name)
	assert.Contains(t, backing.Types[1].Predicates, "priority")
}
