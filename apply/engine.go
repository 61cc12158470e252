package apply

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go.jacobcolvin.com/kgraph/kgschema"
	"go.jacobcolvin.com/kgraph/storage"
	"go.jacobcolvin.com/kgraph/validate"
)

// Operation names what the apply did to one entity.
type Operation string

const (
	OperationCreated Operation = "created"
	OperationUpdated Operation = "updated"
)

// EntityOutcome records the fate of one descriptor entity.
type EntityOutcome struct {
	EntityType string
	EntityID   string
	Operation  Operation
}

// Result summarizes one apply run.
type Result struct {
	CorrelationID string
	Source        string
	Validation    validate.Result
	Entities      []EntityOutcome
	DryRun        *storage.DryRunResult
	// FailedEntity is the id of the first entity whose write failed, if any.
	FailedEntity          string
	Created               int
	Updated               int
	DependenciesProcessed int
	ValidationTime        time.Duration
	StorageTime           time.Duration
	Success               bool
}

// Engine runs descriptors through validation and into a storage backend.
type Engine struct {
	store    storage.Storage
	catalog  *kgschema.Catalog
	pipeline *validate.Pipeline
	logger   *slog.Logger
	dryRun   bool
	strict   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStrict makes validation warnings fatal.
func WithStrict(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// WithDryRun classifies what an apply would do without writing anything.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// NewEngine creates an apply engine over the given backend and catalog. The
// backend doubles as the reference checker for the validation pipeline's
// existence layer.
func NewEngine(store storage.Storage, catalog *kgschema.Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		catalog: catalog,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.pipeline = validate.NewPipeline(catalog,
		validate.WithStrict(e.strict),
		validate.WithReferenceChecker(store),
		validate.WithLogger(e.logger),
	)

	return e
}

// Apply validates the descriptor content and writes it to storage. A result
// is always returned; the error is non-nil only for infrastructure
// failures (pipeline reference checks or storage writes), never for
// validation findings, which the result carries.
//
// Validation failures produce no storage writes. A write failure stops the
// run at the first failing entity; earlier writes are not undone.
func (e *Engine) Apply(ctx context.Context, source string, content []byte) (*Result, error) {
	result := &Result{
		CorrelationID: uuid.NewString(),
		Source:        source,
	}

	logger := e.logger.With(
		slog.String("correlation_id", result.CorrelationID),
		slog.String("source", source),
	)

	validationStart := time.Now()

	validation, err := e.pipeline.Validate(ctx, content)
	result.ValidationTime = time.Since(validationStart)
	result.Validation = validation

	if err != nil {
		return result, fmt.Errorf("validate %s: %w", source, err)
	}

	if !validation.Valid {
		logger.Info("descriptor rejected",
			slog.Int("errors", len(validation.Errors)),
			slog.Int("warnings", len(validation.Warnings)),
		)

		return result, nil
	}

	records := Extract(*validation.Model, source)

	storageStart := time.Now()
	defer func() { result.StorageTime = time.Since(storageStart) }()

	if e.dryRun {
		dryRun, err := e.store.DryRunApply(ctx, records)
		if err != nil {
			return result, fmt.Errorf("dry-run apply %s: %w", source, err)
		}

		result.DryRun = dryRun
		result.Success = true

		return result, nil
	}

	deps := newDependencyProcessor(e.store, logger)

	for _, record := range records {
		if err := e.applyRecord(ctx, record, deps, result); err != nil {
			result.FailedEntity = record.EntityID

			logger.Error("apply failed",
				slog.String("entity", record.EntityID),
				slog.Any("error", err),
			)

			return result, err
		}
	}

	result.Success = true

	logger.Info("apply complete",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("dependencies", result.DependenciesProcessed),
		slog.Duration("validation_time", result.ValidationTime),
	)

	return result, nil
}

func (e *Engine) applyRecord(
	ctx context.Context,
	record storage.EntityRecord,
	deps *dependencyProcessor,
	result *Result,
) error {
	existing, err := e.store.GetEntity(ctx, record.EntityType, record.EntityID)
	if err != nil {
		return fmt.Errorf("look up %q: %w", record.EntityID, err)
	}

	_, err = e.store.StoreEntity(ctx, record.EntityType, record.EntityID,
		record.Metadata, record.SystemMetadata)
	if err != nil {
		return fmt.Errorf("store %q: %w", record.EntityID, err)
	}

	processed, err := deps.process(ctx, record)
	result.DependenciesProcessed += processed

	if err != nil {
		return err
	}

	if schema, ok := e.catalog.Schema(record.EntityType); ok {
		if err := syncRelationships(ctx, e.store, schema, record, e.logger); err != nil {
			return err
		}
	}

	outcome := EntityOutcome{
		EntityType: record.EntityType,
		EntityID:   record.EntityID,
		Operation:  OperationCreated,
	}

	if existing != nil {
		outcome.Operation = OperationUpdated
		result.Updated++
	} else {
		result.Created++
	}

	result.Entities = append(result.Entities, outcome)

	return nil
}
