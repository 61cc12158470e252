package validate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/kgraph/kgschema"
	"go.jacobcolvin.com/kgraph/validate"
)

func intPtr(i int) *int { return &i }

// testCatalog mirrors the shape of the production repository/owner
// schemas.
func testCatalog(t *testing.T) *kgschema.Catalog {
	t.Helper()

	catalog, err := kgschema.NewCatalog(
		&kgschema.EntitySchema{
			EntityType:    "repository",
			SchemaVersion: "1.0.0",
			BackingType:   "Repository",
			Required: []kgschema.FieldDefinition{
				{Name: "owners", Type: kgschema.TypeArray, Items: kgschema.TypeString, Required: true, MinItems: intPtr(1)},
				{Name: "git_repo_url", Type: kgschema.TypeString, Validation: "url", Required: true},
			},
			Optional: []kgschema.FieldDefinition{
				{Name: "language", Type: kgschema.TypeString, Validation: "enum", AllowedValues: []string{"go", "python"}},
				{Name: "stars", Type: kgschema.TypeInteger},
				{Name: "archived", Type: kgschema.TypeBoolean},
				{Name: "depends_on", Type: kgschema.TypeArray, Items: kgschema.TypeString},
			},
			Relationships: []kgschema.RelationshipDefinition{
				{
					Name:        "depends_on_entities",
					TargetTypes: []string{"repository", "external_dependency_version"},
					Cardinality: kgschema.OneToMany,
					Direction:   kgschema.Outbound,
				},
			},
		},
		&kgschema.EntitySchema{
			EntityType:    "owner",
			SchemaVersion: "1.0.0",
			BackingType:   "Owner",
			Required: []kgschema.FieldDefinition{
				{Name: "email", Type: kgschema.TypeString, Validation: "email", Required: true},
			},
		},
		&kgschema.EntitySchema{
			EntityType:    "external_dependency_version",
			SchemaVersion: "1.0.0",
			BackingType:   "ExternalDependencyVersion",
		},
	)
	require.NoError(t, err)

	return catalog
}

const validDescriptor = `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "https://github.com/x/r1"
`

func errorTypes(diags []validate.Diagnostic) []string {
	types := make([]string, 0, len(diags))
	for _, d := range diags {
		types = append(types, d.Type)
	}

	return types
}

func TestPipelineValidDescriptor(t *testing.T) {
	t.Parallel()

	p := validate.NewPipeline(testCatalog(t))

	result := p.ValidateSync([]byte(validDescriptor))

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	require.NotNil(t, result.Model)
	assert.Equal(t, "demo", result.Model.Namespace)
	require.Len(t, result.Model.Groups, 1)
	assert.Equal(t, "repository", result.Model.Groups[0].Type)
	require.Len(t, result.Model.Groups[0].Entities, 1)
	assert.Equal(t, "r1", result.Model.Groups[0].Entities[0].Name)
}

func TestPipelineDiagnostics(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input     string
		errors    []string
		warnings  []string
		wantModel bool
	}{
		"syntax error": {
			input:  "entity: [unclosed",
			errors: []string{validate.TypeYAMLSyntax},
		},
		"empty document": {
			input:  "   \n",
			errors: []string{validate.TypeEmptyYAML},
		},
		"unsupported schema version": {
			input: `
schema_version: "2.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "https://github.com/x/r1"
`,
			errors: []string{validate.TypeUnsupportedSchemaVersion},
		},
		"invalid namespace": {
			input: `
schema_version: "1.0.0"
namespace: "Invalid_NS"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "https://github.com/x/r1"
`,
			errors: []string{validate.TypeInvalidNamespaceFormat},
		},
		"missing namespace and entity": {
			input: `schema_version: "1.0.0"`,
			errors: []string{
				validate.TypeMissingRequiredField,
				validate.TypeMissingRequiredField,
			},
		},
		"unknown entity type": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  service:
    - s1: {}
`,
			errors: []string{validate.TypeUnknownEntityType},
		},
		"missing required field in body": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
`,
			errors: []string{validate.TypeMissingRequiredField},
		},
		"wrong field type": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: "a@x.com"
        git_repo_url: "https://github.com/x/r1"
`,
			errors: []string{validate.TypeInvalidFieldType},
		},
		"empty required array": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: []
        git_repo_url: "https://github.com/x/r1"
`,
			errors: []string{
				validate.TypeEmptyRequiredArray,
				validate.TypeInvalidFieldType, // min_items: 1
			},
		},
		"enum violation": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "https://github.com/x/r1"
        language: "cobol"
`,
			errors: []string{validate.TypeInvalidFieldType},
		},
		"url violation": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "ftp://github.com/x/r1"
`,
			errors: []string{validate.TypeInvalidFieldType},
		},
		"email violation": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  owner:
    - alice:
        email: "not-an-email"
`,
			errors: []string{validate.TypeInvalidFieldType},
		},
		"unknown field": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "https://github.com/x/r1"
        favorite_color: "blue"
`,
			errors: []string{validate.TypeExtraForbidden},
		},
		"duplicate entity name": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "https://github.com/x/r1"
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "https://github.com/x/r2"
`,
			errors:    []string{validate.TypeDuplicateEntityName},
			wantModel: true,
		},
		"dependency reference grammar": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "https://github.com/x/r1"
        depends_on:
          - "requests"
          - "external://pypi/requests"
          - "external://maven/org.apache/commons/3.0"
          - "internal://Bad_NS/api"
          - "internal://demo"
`,
			errors: []string{
				validate.TypeInvalidDependencyRef,
				validate.TypeInvalidExternalDep,
				validate.TypeUnsupportedEcosystem,
				validate.TypeInvalidInternalNamespace,
				validate.TypeInvalidInternalDep,
			},
			wantModel: true,
		},
		"multiple owner domains warn": {
			input: `
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com", "b@y.org"]
        git_repo_url: "https://github.com/x/r1"
`,
			warnings:  []string{validate.TypeMultipleOwnerDomains},
			wantModel: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := validate.NewPipeline(testCatalog(t))

			result := p.ValidateSync([]byte(tc.input))

			assert.ElementsMatch(t, tc.errors, errorTypes(result.Errors))
			assert.ElementsMatch(t, tc.warnings, errorTypes(result.Warnings))
			assert.Equal(t, len(tc.errors) == 0, result.Valid)

			if tc.wantModel {
				assert.NotNil(t, result.Model)
			} else {
				assert.Nil(t, result.Model)
			}
		})
	}
}

func TestPipelineSyntaxErrorPosition(t *testing.T) {
	t.Parallel()

	p := validate.NewPipeline(testCatalog(t))

	result := p.ValidateSync([]byte("schema_version: \"1.0.0\"\nnamespace: [unclosed"))

	require.Len(t, result.Errors, 1)
	assert.Equal(t, validate.TypeYAMLSyntax, result.Errors[0].Type)
	assert.Positive(t, result.Errors[0].Line)
}

func TestPipelineEarlyExitOnCriticalStructure(t *testing.T) {
	t.Parallel()

	p := validate.NewPipeline(testCatalog(t))

	// The unknown entity type must not be reported: the missing namespace
	// terminates the run after the structure layer.
	result := p.ValidateSync([]byte(`
schema_version: "1.0.0"
entity:
  service:
    - s1: {}
`))

	assert.Equal(t, []string{validate.TypeMissingRequiredField}, errorTypes(result.Errors))
}

func TestPipelineStrictPromotesWarnings(t *testing.T) {
	t.Parallel()

	input := []byte(`
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com", "b@y.org"]
        git_repo_url: "https://github.com/x/r1"
`)

	relaxed := validate.NewPipeline(testCatalog(t)).ValidateSync(input)
	strict := validate.NewPipeline(testCatalog(t), validate.WithStrict(true)).ValidateSync(input)

	require.True(t, relaxed.Valid)
	require.Len(t, relaxed.Warnings, 1)

	assert.False(t, strict.Valid)
	assert.Empty(t, strict.Warnings)
	assert.ElementsMatch(t,
		append(errorTypes(relaxed.Errors), errorTypes(relaxed.Warnings)...),
		errorTypes(strict.Errors))
}

func TestPipelineSyncMatchesAsyncWithoutChecker(t *testing.T) {
	t.Parallel()

	inputs := []string{
		validDescriptor,
		`schema_version: "2.0.0"`,
		"entity: [unclosed",
	}

	for _, input := range inputs {
		p := validate.NewPipeline(testCatalog(t))

		syncResult := p.ValidateSync([]byte(input))

		asyncResult, err := p.Validate(t.Context(), []byte(input))
		require.NoError(t, err)

		assert.Equal(t, syncResult.Valid, asyncResult.Valid)
		assert.Equal(t, errorTypes(syncResult.Errors), errorTypes(asyncResult.Errors))
		assert.Equal(t, errorTypes(syncResult.Warnings), errorTypes(asyncResult.Warnings))
	}
}

type fakeChecker struct {
	existing map[string]bool
	err      error
}

func (f fakeChecker) EntityExists(_ context.Context, entityID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}

	return f.existing[entityID], nil
}

func TestPipelineReferenceExistence(t *testing.T) {
	t.Parallel()

	input := []byte(`
schema_version: "1.0.0"
namespace: "demo"
entity:
  repository:
    - r1:
        owners: ["a@x.com"]
        git_repo_url: "https://github.com/x/r1"
        depends_on:
          - "internal://demo/known"
          - "internal://demo/missing"
`)

	t.Run("missing reference reported", func(t *testing.T) {
		t.Parallel()

		p := validate.NewPipeline(testCatalog(t),
			validate.WithReferenceChecker(fakeChecker{existing: map[string]bool{"demo/known": true}}))

		result, err := p.Validate(t.Context(), input)
		require.NoError(t, err)

		require.Len(t, result.Errors, 1)
		assert.Equal(t, validate.TypeReferenceNotFound, result.Errors[0].Type)
		assert.Contains(t, result.Errors[0].Message, "internal://demo/missing")
	})

	t.Run("all references resolve", func(t *testing.T) {
		t.Parallel()

		p := validate.NewPipeline(testCatalog(t),
			validate.WithReferenceChecker(fakeChecker{existing: map[string]bool{
				"demo/known":   true,
				"demo/missing": true,
			}}))

		result, err := p.Validate(t.Context(), input)
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})

	t.Run("storage failure surfaces as error", func(t *testing.T) {
		t.Parallel()

		storageErr := errors.New("backend down")

		p := validate.NewPipeline(testCatalog(t),
			validate.WithReferenceChecker(fakeChecker{err: storageErr}))

		_, err := p.Validate(t.Context(), input)
		require.ErrorIs(t, err, storageErr)
	})
}
