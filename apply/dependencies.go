package apply

import (
	"context"
	"fmt"
	"log/slog"

	"go.jacobcolvin.com/kgraph/depref"
	"go.jacobcolvin.com/kgraph/storage"
)

const (
	packageEntityType = "external_dependency_package"
	versionEntityType = "external_dependency_version"
)

// dependencyProcessor materializes external dependency references as graph
// entities. For every external URI an entity depends on it upserts a package
// node and a version node and links them with a has_version edge. The seen
// set keeps one apply from re-upserting a dependency shared by many
// entities.
type dependencyProcessor struct {
	store  storage.Storage
	logger *slog.Logger
	seen   map[string]struct{}
}

func newDependencyProcessor(store storage.Storage, logger *slog.Logger) *dependencyProcessor {
	return &dependencyProcessor{
		store:  store,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

func (p *dependencyProcessor) process(ctx context.Context, record storage.EntityRecord) (int, error) {
	processed := 0

	for _, targetID := range record.Relationships["depends_on"] {
		if !depref.IsExternal(targetID) {
			continue
		}

		ext, err := depref.ParseExternal(targetID)
		if err != nil {
			// Layer 4 already rejected malformed references; a parse failure
			// here means the descriptor bypassed validation.
			return processed, fmt.Errorf("parse dependency %q: %w", targetID, err)
		}

		if _, ok := p.seen[ext.VersionID()]; ok {
			continue
		}

		if err := p.upsert(ctx, ext); err != nil {
			return processed, err
		}

		p.seen[ext.VersionID()] = struct{}{}
		processed++
	}

	return processed, nil
}

func (p *dependencyProcessor) upsert(ctx context.Context, ext depref.External) error {
	system := map[string]any{
		"auto_created": "true",
		"source":       "dependency_processing",
	}

	_, err := p.store.StoreEntity(ctx, packageEntityType, ext.PackageID(),
		map[string]any{
			"ecosystem":    ext.Ecosystem,
			"package_name": ext.Package,
		}, system)
	if err != nil {
		return fmt.Errorf("store package %q: %w", ext.PackageID(), err)
	}

	_, err = p.store.StoreEntity(ctx, versionEntityType, ext.VersionID(),
		map[string]any{
			"ecosystem":    ext.Ecosystem,
			"package_name": ext.Package,
			"version":      ext.Version,
		}, system)
	if err != nil {
		return fmt.Errorf("store version %q: %w", ext.VersionID(), err)
	}

	_, err = p.store.CreateRelationship(ctx,
		packageEntityType, ext.PackageID(), "has_version",
		versionEntityType, ext.VersionID())
	if err != nil {
		return fmt.Errorf("link %q -> %q: %w", ext.PackageID(), ext.VersionID(), err)
	}

	p.logger.Debug("materialized dependency",
		slog.String("package", ext.PackageID()),
		slog.String("version", ext.Version),
	)

	return nil
}
