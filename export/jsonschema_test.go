package export_test

import (
	"encoding/json"
	"flag"
	"os"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/kgraph/export"
	"go.jacobcolvin.com/kgraph/kgschema"
)

var update = flag.Bool("update", false, "update golden files")

func intPtr(i int) *int { return &i }

func exportCatalog(t *testing.T) *kgschema.Catalog {
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
			},
			Readonly: []kgschema.FieldDefinition{
				{Name: "created_at", Type: kgschema.TypeDatetime},
			},
			Relationships: []kgschema.RelationshipDefinition{
				{
					Name:        "depends_on",
					TargetTypes: []string{"repository"},
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
	)
	require.NoError(t, err)

	return catalog
}

// assertGolden compares the JSON-marshaled schema against a golden file.
// When -update is set, it writes the golden file instead. Comparison is
// semantic (JSON equality) to tolerate formatter differences.
func assertGolden(t *testing.T, goldenPath string, schema *jsonschema.Schema) {
	t.Helper()

	got, err := json.MarshalIndent(schema, "", "  ")
	require.NoError(t, err)

	got = append(got, '\n')

	if *update {
		require.NoError(t, os.WriteFile(goldenPath, got, 0o644))

		return
	}

	want, err := os.ReadFile(goldenPath)
	require.NoError(t, err, "golden file %s not found; run with -update to create", goldenPath)

	assert.JSONEq(t, string(want), string(got))
}

func TestGenerateGolden(t *testing.T) {
	t.Parallel()

	assertGolden(t, "testdata/descriptor.schema.json", export.Generate(exportCatalog(t)))
}

func TestGenerateShape(t *testing.T) {
	t.Parallel()

	schema := export.Generate(exportCatalog(t))

	assert.Equal(t, []string{"namespace", "entity"}, schema.Required)
	require.Contains(t, schema.Properties, "namespace")
	assert.NotEmpty(t, schema.Properties["namespace"].Pattern)
	require.Contains(t, schema.Defs, "externalReference")
	require.Contains(t, schema.Defs, "internalReference")

	entity := schema.Properties["entity"]
	require.Contains(t, entity.Properties, "repository")
	require.Contains(t, entity.Properties, "owner")

	repoList := entity.Properties["repository"]
	assert.Equal(t, "array", repoList.Type)
	require.NotNil(t, repoList.Items)
	require.NotNil(t, repoList.Items.MinProperties)
	assert.Equal(t, 1, *repoList.Items.MinProperties)
	require.NotNil(t, repoList.Items.MaxProperties)
	assert.Equal(t, 1, *repoList.Items.MaxProperties)

	body := repoList.Items.PatternProperties["^.+$"]
	require.NotNil(t, body)
	assert.Equal(t, []string{"owners", "git_repo_url"}, body.Required)
	assert.Contains(t, body.Properties, "relationships")
	assert.Contains(t, body.Properties, "depends_on")

	// Readonly fields are not authored in descriptors.
	assert.NotContains(t, body.Properties, "created_at")
}

func TestUpdateEditorConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	settingsPath := dir + "/settings.json"

	// Creating from scratch.
	err := export.UpdateEditorConfig(settingsPath, "schemas/descriptor.schema.json", []string{"**/*.kg.yaml"})
	require.NoError(t, err)

	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)

	var settings map[string]any
	require.NoError(t, json.Unmarshal(data, &settings))

	schemas, ok := settings["yaml.schemas"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "**/*.kg.yaml", schemas["schemas/descriptor.schema.json"])

	// Unrelated settings survive a re-export.
	settings["editor.tabSize"] = float64(2)
	data, err = json.Marshal(settings)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(settingsPath, data, 0o644))

	err = export.UpdateEditorConfig(settingsPath, "schemas/descriptor.schema.json",
		[]string{"descriptors/*.yaml", "**/*.kg.yaml"})
	require.NoError(t, err)

	data, err = os.ReadFile(settingsPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &settings))

	assert.Equal(t, float64(2), settings["editor.tabSize"])

	schemas, ok = settings["yaml.schemas"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t,
		[]any{"descriptors/*.yaml", "**/*.kg.yaml"},
		schemas["schemas/descriptor.schema.json"])
}

func TestWriteJSONSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := dir + "/schemas/descriptor.schema.json"

	require.NoError(t, export.WriteJSONSchema(exportCatalog(t), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", doc["$schema"])
}
