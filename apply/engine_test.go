package apply_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/kgraph/apply"
	"go.jacobcolvin.com/kgraph/kgschema"
	"go.jacobcolvin.com/kgraph/storage"
	"go.jacobcolvin.com/kgraph/storage/memstore"
	"go.jacobcolvin.com/kgraph/validate"
)

func applyCatalog(t *testing.T) *kgschema.Catalog {
	t.Helper()

	catalog, err := kgschema.NewCatalog(
		&kgschema.EntitySchema{
			EntityType:    "repository",
			SchemaVersion: "1.0.0",
			BackingType:   "Repository",
			Optional: []kgschema.FieldDefinition{
				{Name: "language", Type: kgschema.TypeString},
				{Name: "owners", Type: kgschema.TypeArray, Items: kgschema.TypeString},
			},
			Relationships: []kgschema.RelationshipDefinition{
				{
					Name:        "depends_on",
					TargetTypes: []string{"repository", "external_dependency_version"},
					Cardinality: kgschema.OneToMany,
					Direction:   kgschema.Outbound,
				},
				{
					Name:        "owned_by",
					TargetTypes: []string{"owner"},
					Cardinality: kgschema.OneToMany,
					Direction:   kgschema.Outbound,
				},
			},
		},
		&kgschema.EntitySchema{
			EntityType:    "owner",
			SchemaVersion: "1.0.0",
			BackingType:   "Owner",
			Optional: []kgschema.FieldDefinition{
				{Name: "email", Type: kgschema.TypeString, Validation: "email"},
			},
		},
		&kgschema.EntitySchema{
			EntityType:    "external_dependency_package",
			SchemaVersion: "1.0.0",
			BackingType:   "ExternalDependencyPackage",
			Optional: []kgschema.FieldDefinition{
				{Name: "ecosystem", Type: kgschema.TypeString},
				{Name: "package_name", Type: kgschema.TypeString},
			},
			Relationships: []kgschema.RelationshipDefinition{
				{
					Name:        "has_version",
					TargetTypes: []string{"external_dependency_version"},
					Cardinality: kgschema.OneToMany,
					Direction:   kgschema.Outbound,
				},
			},
		},
		&kgschema.EntitySchema{
			EntityType:    "external_dependency_version",
			SchemaVersion: "1.0.0",
			BackingType:   "ExternalDependencyVersion",
			Optional: []kgschema.FieldDefinition{
				{Name: "ecosystem", Type: kgschema.TypeString},
				{Name: "package_name", Type: kgschema.TypeString},
				{Name: "version", Type: kgschema.TypeString},
			},
		},
	)
	require.NoError(t, err)

	return catalog
}

const requestsDescriptor = `
schema_version: "1.0.0"
namespace: "platform"
entity:
  repository:
    - api-service:
        language: "python"
        depends_on:
          - "external://pypi/requests/2.31.0"
`

func TestApplyCreatesEntitiesAndDependencies(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := memstore.NewStore()
	engine := apply.NewEngine(store, applyCatalog(t))

	result, err := engine.Apply(ctx, "services.yaml", []byte(requestsDescriptor))
	require.NoError(t, err)
	require.True(t, result.Validation.Valid)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.CorrelationID)
	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Updated)
	assert.Equal(t, 1, result.DependenciesProcessed)

	require.Len(t, result.Entities, 1)
	assert.Equal(t, apply.EntityOutcome{
		EntityType: "repository",
		EntityID:   "platform/api-service",
		Operation:  apply.OperationCreated,
	}, result.Entities[0])

	repo, err := store.GetEntity(ctx, "repository", "platform/api-service")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, "python", repo.Metadata["language"])
	assert.Equal(t, "platform", repo.System["namespace"])
	assert.Equal(t, "services.yaml", repo.System["source_name"])

	pkg, err := store.GetEntity(ctx, "external_dependency_package", "external://pypi/requests")
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "pypi", pkg.Metadata["ecosystem"])
	assert.Equal(t, "requests", pkg.Metadata["package_name"])
	assert.Equal(t, "true", pkg.System["auto_created"])
	assert.Equal(t, "dependency_processing", pkg.System["source"])

	version, err := store.GetEntity(ctx, "external_dependency_version", "external://pypi/requests/2.31.0")
	require.NoError(t, err)
	require.NotNil(t, version)
	assert.Equal(t, "2.31.0", version.Metadata["version"])

	pkgRels, err := store.GetEntityRelationships(ctx, "external_dependency_package", "external://pypi/requests")
	require.NoError(t, err)
	require.Len(t, pkgRels, 1)
	assert.Equal(t, "has_version", pkgRels[0].Name)
	require.Len(t, pkgRels[0].TargetEntities, 1)
	assert.Equal(t, "external://pypi/requests/2.31.0", pkgRels[0].TargetEntities[0].EntityID)

	repoRels, err := store.GetEntityRelationships(ctx, "repository", "platform/api-service")
	require.NoError(t, err)
	require.Len(t, repoRels, 1)
	assert.Equal(t, "depends_on", repoRels[0].Name)
	require.Len(t, repoRels[0].TargetEntities, 1)
	assert.Equal(t, storage.TargetEntity{
		EntityType: "external_dependency_version",
		EntityID:   "external://pypi/requests/2.31.0",
	}, repoRels[0].TargetEntities[0])
}

func TestApplyTwiceIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := memstore.NewStore()
	engine := apply.NewEngine(store, applyCatalog(t))

	_, err := engine.Apply(ctx, "services.yaml", []byte(requestsDescriptor))
	require.NoError(t, err)

	result, err := engine.Apply(ctx, "services.yaml", []byte(requestsDescriptor))
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Equal(t, 1, result.Updated)

	// Same node count, same edge count: nothing duplicated.
	metrics, err := store.GetSystemMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.TotalEntities)
	assert.Equal(t, 2, metrics.TotalRelationships)
}

func TestApplyReplacesRelationshipEdges(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := memstore.NewStore()
	engine := apply.NewEngine(store, applyCatalog(t))

	_, err := engine.Apply(ctx, "services.yaml", []byte(requestsDescriptor))
	require.NoError(t, err)

	// Same entity, dependency bumped to a new version.
	bumped := `
schema_version: "1.0.0"
namespace: "platform"
entity:
  repository:
    - api-service:
        language: "python"
        depends_on:
          - "external://pypi/requests/2.32.0"
`

	result, err := engine.Apply(ctx, "services.yaml", []byte(bumped))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	rels, err := store.GetEntityRelationships(ctx, "repository", "platform/api-service")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Len(t, rels[0].TargetEntities, 1)
	assert.Equal(t, "external://pypi/requests/2.32.0", rels[0].TargetEntities[0].EntityID)

	// The old version entity survives; only the repository's edge moved.
	old, err := store.GetEntity(ctx, "external_dependency_version", "external://pypi/requests/2.31.0")
	require.NoError(t, err)
	assert.NotNil(t, old)
}

func TestApplyEmptiesDeclaredRelationshipWhenOmitted(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := memstore.NewStore()
	engine := apply.NewEngine(store, applyCatalog(t))

	_, err := engine.Apply(ctx, "services.yaml", []byte(requestsDescriptor))
	require.NoError(t, err)

	noDeps := `
schema_version: "1.0.0"
namespace: "platform"
entity:
  repository:
    - api-service:
        language: "python"
`

	_, err = engine.Apply(ctx, "services.yaml", []byte(noDeps))
	require.NoError(t, err)

	rels, err := store.GetEntityRelationships(ctx, "repository", "platform/api-service")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestApplyInternalReference(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := memstore.NewStore()
	engine := apply.NewEngine(store, applyCatalog(t))

	// The existence layer requires internal targets to resolve.
	_, err := store.StoreEntity(ctx, "repository", "platform/billing", nil, nil)
	require.NoError(t, err)

	descriptor := `
schema_version: "1.0.0"
namespace: "platform"
entity:
  repository:
    - api-service:
        relationships:
          depends_on:
            - "internal://platform/billing"
`

	result, err := engine.Apply(ctx, "services.yaml", []byte(descriptor))
	require.NoError(t, err)
	require.True(t, result.Validation.Valid)

	rels, err := store.GetEntityRelationships(ctx, "repository", "platform/api-service")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, storage.TargetEntity{
		EntityType: "repository",
		EntityID:   "internal://platform/billing",
	}, rels[0].TargetEntities[0])
}

func TestApplyRejectsInvalidDescriptorWithoutWrites(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := memstore.NewStore()
	engine := apply.NewEngine(store, applyCatalog(t))

	invalid := `
schema_version: "1.0.0"
namespace: "platform"
entity:
  repository:
    - api-service:
        depends_on:
          - "external://rubygems/rails/7.0.0"
`

	result, err := engine.Apply(ctx, "services.yaml", []byte(invalid))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Validation.Valid)
	assert.Empty(t, result.Entities)

	metrics, err := store.GetSystemMetrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, metrics.TotalEntities)
}

func TestApplyDryRun(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := memstore.NewStore()

	_, err := store.StoreEntity(ctx, "repository", "platform/api-service", nil, nil)
	require.NoError(t, err)

	engine := apply.NewEngine(store, applyCatalog(t), apply.WithDryRun(true))

	descriptor := `
schema_version: "1.0.0"
namespace: "platform"
entity:
  repository:
    - api-service:
        language: "python"
    - web:
        language: "go"
`

	result, err := engine.Apply(ctx, "services.yaml", []byte(descriptor))
	require.NoError(t, err)
	require.NotNil(t, result.DryRun)
	assert.Equal(t, []string{"platform/web"}, result.DryRun.WouldCreate)
	assert.Equal(t, []string{"platform/api-service"}, result.DryRun.WouldUpdate)

	// Dry run leaves the pre-existing entity untouched and creates nothing.
	metrics, err := store.GetSystemMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.TotalEntities)
}

func TestApplyStrictPromotesWarnings(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := memstore.NewStore()
	engine := apply.NewEngine(store, applyCatalog(t), apply.WithStrict(true))

	multiDomain := `
schema_version: "1.0.0"
namespace: "platform"
entity:
  repository:
    - api-service:
        owners: ["a@example.com", "b@other.org"]
`

	result, err := engine.Apply(ctx, "services.yaml", []byte(multiDomain))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Validation.Valid)
	assert.Empty(t, result.Entities)

	metrics, err := store.GetSystemMetrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, metrics.TotalEntities)
}

func TestExtract(t *testing.T) {
	t.Parallel()

	catalog := applyCatalog(t)

	descriptor := `
schema_version: "1.0.0"
namespace: "platform"
entity:
  repository:
    - api-service:
        language: "go"
        depends_on:
          - "external://npm/react/18.2.0"
        relationships:
          depends_on:
            - "external://npm/react/18.2.0"
            - "external://pypi/requests/2.31.0"
`

	pipeline := validate.NewPipeline(catalog)
	validation := pipeline.ValidateSync([]byte(descriptor))
	require.True(t, validation.Valid, "%v", validation.Errors)

	records := apply.Extract(*validation.Model, "services.yaml")
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "repository", record.EntityType)
	assert.Equal(t, "platform/api-service", record.EntityID)
	assert.Equal(t, "go", record.Metadata["language"])
	// The relationships section is lifted out of metadata; the legacy
	// inline depends_on key stays.
	assert.NotContains(t, record.Metadata, "relationships")
	assert.Contains(t, record.Metadata, "depends_on")
	assert.Equal(t, map[string]any{
		"namespace":   "platform",
		"source_name": "services.yaml",
	}, record.SystemMetadata)

	// Inline and nested spellings merge, deduplicated.
	assert.Equal(t, []string{
		"external://npm/react/18.2.0",
		"external://pypi/requests/2.31.0",
	}, record.Relationships["depends_on"])
}
