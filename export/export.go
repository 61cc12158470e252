package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.jacobcolvin.com/kgraph/kgschema"
)

// ErrExport wraps failures writing schema or editor configuration files.
var ErrExport = errors.New("export failed")

// WriteJSONSchema generates the descriptor schema for the catalog and
// writes it to path as indented JSON.
func WriteJSONSchema(catalog *kgschema.Catalog, path string) error {
	schema := Generate(catalog)

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal schema: %w", ErrExport, err)
	}

	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %q: %w", ErrExport, dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("%w: write %q: %w", ErrExport, path, err)
	}

	return nil
}

// UpdateEditorConfig associates the exported schema with descriptor-file
// globs in a VS Code style settings file, under the yaml.schemas key used
// by the YAML language server. Other settings in the file are preserved;
// a missing file is created.
func UpdateEditorConfig(settingsPath, schemaPath string, globs []string) error {
	settings := make(map[string]any)

	data, err := os.ReadFile(settingsPath) //nolint:gosec
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First export; start from an empty settings object.
	case err != nil:
		return fmt.Errorf("%w: read %q: %w", ErrExport, settingsPath, err)
	default:
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("%w: parse %q: %w", ErrExport, settingsPath, err)
		}
	}

	schemas, ok := settings["yaml.schemas"].(map[string]any)
	if !ok {
		schemas = make(map[string]any)
	}

	switch len(globs) {
	case 0:
		delete(schemas, schemaPath)
	case 1:
		schemas[schemaPath] = globs[0]
	default:
		value := make([]any, len(globs))
		for i, g := range globs {
			value[i] = g
		}

		schemas[schemaPath] = value
	}

	settings["yaml.schemas"] = schemas

	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %q: %w", ErrExport, settingsPath, err)
	}

	out = append(out, '\n')

	if dir := filepath.Dir(settingsPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %q: %w", ErrExport, dir, err)
		}
	}

	if err := os.WriteFile(settingsPath, out, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("%w: write %q: %w", ErrExport, settingsPath, err)
	}

	return nil
}
