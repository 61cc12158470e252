package kgschema

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-yaml"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"
)

// baseDirName is the directory holding base schemas, one subdirectory per
// base name with semver-named files.
const baseDirName = "_base"

// Loader reads a versioned schema directory and produces catalogs.
//
// The directory layout is:
//
//	_base/<base_name>/<semver>.yaml
//	<entity_type>/<semver>.yaml
//
// For each schema, the file with the highest semver name is loaded.
type Loader struct {
	logger  *slog.Logger
	dir     string
	current atomic.Pointer[Catalog]
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used during load and watch.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader for the given schema directory.
func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{
		dir:    dir,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Catalog returns the most recently loaded catalog, or nil before the first
// successful [Loader.Load].
func (l *Loader) Catalog() *Catalog {
	return l.current.Load()
}

// Load reads every schema file, resolves inheritance, validates catalog
// consistency, and atomically publishes the new catalog. On failure the
// previously published catalog remains in place.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	catalog, err := l.build(ctx)
	if err != nil {
		return nil, err
	}

	l.current.Store(catalog)
	l.logger.Debug("schema catalog loaded",
		slog.String("dir", l.dir),
		slog.Int("entity_types", catalog.Len()),
	)

	return catalog, nil
}

// Reload is Load under a different name, for call sites reacting to
// directory changes.
func (l *Loader) Reload(ctx context.Context) (*Catalog, error) {
	return l.Load(ctx)
}

func (l *Loader) build(ctx context.Context) (*Catalog, error) {
	basePaths, entityPaths, err := l.discover()
	if err != nil {
		return nil, err
	}

	bases, entities, err := l.readAll(ctx, basePaths, entityPaths)
	if err != nil {
		return nil, err
	}

	catalog := &Catalog{
		schemas:  make(map[string]*EntitySchema, len(entities)),
		loadedAt: time.Now().UTC(),
	}

	for _, ent := range entities {
		schema, buildErr := buildSchema(ent, bases)
		if buildErr != nil {
			return nil, buildErr
		}

		catalog.schemas[schema.EntityType] = schema

		if schema.Extends != "" {
			catalog.baseDerived = append(catalog.baseDerived, schema.EntityType)
		} else {
			catalog.standalone = append(catalog.standalone, schema.EntityType)
		}
	}

	slices.Sort(catalog.baseDerived)
	slices.Sort(catalog.standalone)

	if problems := catalog.validate(); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	return catalog, nil
}

// discover walks the directory layout and selects the highest-versioned
// file for every base and entity schema.
func (l *Loader) discover() (map[string]string, map[string]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	basePaths := make(map[string]string)
	entityPaths := make(map[string]string)

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		if entry.Name() == baseDirName {
			baseEntries, baseErr := os.ReadDir(filepath.Join(l.dir, baseDirName))
			if baseErr != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrLoad, baseErr)
			}

			for _, base := range baseEntries {
				if !base.IsDir() {
					continue
				}

				path, pickErr := l.pickVersion(filepath.Join(l.dir, baseDirName, base.Name()))
				if pickErr != nil {
					return nil, nil, pickErr
				}

				if path != "" {
					basePaths[base.Name()] = path
				}
			}

			continue
		}

		path, pickErr := l.pickVersion(filepath.Join(l.dir, entry.Name()))
		if pickErr != nil {
			return nil, nil, pickErr
		}

		if path != "" {
			entityPaths[entry.Name()] = path
		}
	}

	return basePaths, entityPaths, nil
}

// pickVersion returns the schema file with the highest semver filename in
// dir, or "" when the directory holds no versioned files.
func (l *Loader) pickVersion(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLoad, err)
	}

	var (
		bestFile    string
		bestVersion string
	)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		v := strings.TrimSuffix(name, ".yaml")
		if !strings.HasPrefix(v, "v") {
			v = "v" + v
		}

		if !semver.IsValid(v) {
			l.logger.Warn("ignoring non-semver schema file",
				slog.String("file", filepath.Join(dir, name)))

			continue
		}

		if bestVersion == "" || semver.Compare(v, bestVersion) > 0 {
			bestVersion = v
			bestFile = name
		}
	}

	if bestFile == "" {
		return "", nil
	}

	return filepath.Join(dir, bestFile), nil
}

// readAll parses every selected file, reading concurrently.
func (l *Loader) readAll(
	ctx context.Context,
	basePaths, entityPaths map[string]string,
) (map[string]rawBase, []rawEntity, error) {
	var mu sync.Mutex

	bases := make(map[string]rawBase, len(basePaths))
	entities := make([]rawEntity, 0, len(entityPaths))

	g, ctx := errgroup.WithContext(ctx)

	for name, path := range basePaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var raw rawBase

			if err := readYAML(path, &raw); err != nil {
				return err
			}

			mu.Lock()
			bases[name] = raw
			mu.Unlock()

			return nil
		})
	}

	for dirName, path := range entityPaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var raw rawEntity

			if err := readYAML(path, &raw); err != nil {
				return err
			}

			raw.sourcePath = path
			raw.dirName = dirName

			mu.Lock()
			entities = append(entities, raw)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Deterministic build order regardless of read completion order.
	slices.SortFunc(entities, func(a, b rawEntity) int {
		return strings.Compare(a.dirName, b.dirName)
	})

	return bases, entities, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path) //nolint:gosec // Schema dir comes from configuration.
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	return nil
}
