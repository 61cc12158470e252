package main

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/kgraph/apply"
	"go.jacobcolvin.com/kgraph/storage"
	"go.jacobcolvin.com/kgraph/stringtest"
	"go.jacobcolvin.com/kgraph/validate"
)

func TestCheckFormat(t *testing.T) {
	t.Parallel()

	for _, format := range allFormats() {
		assert.NoError(t, checkFormat(format))
	}

	err := checkFormat("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "xml"`)
}

func TestRenderValidation(t *testing.T) {
	t.Parallel()

	invalid := validate.Result{
		Valid: false,
		Errors: []validate.Diagnostic{{
			Type:    "unknown_field",
			Message: "field language is not defined",
			Field:   "language",
			Entity:  "platform/api-service",
			Help:    "remove the field or add it to the schema",
		}},
		Warnings: []validate.Diagnostic{{
			Type:    "multiple_owner_domains",
			Message: "owners span 2 email domains",
			Entity:  "platform/api-service",
		}},
	}

	tests := map[string]struct {
		result validate.Result
		format string
		want   string
	}{
		"valid table short-circuits": {
			result: validate.Result{Valid: true},
			format: formatTable,
			want:   "app.kg.yaml: valid\n",
		},
		"compact lists errors then warnings": {
			result: invalid,
			format: formatCompact,
			want: stringtest.JoinLF(
				"error unknown_field field language is not defined",
				"warning multiple_owner_domains owners span 2 email domains",
				"",
			),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var sb strings.Builder

			require.NoError(t, renderValidation(&sb, tc.format, "app.kg.yaml", tc.result))
			assert.Equal(t, tc.want, sb.String())
		})
	}
}

func TestRenderValidationTable(t *testing.T) {
	t.Parallel()

	result := validate.Result{
		Valid: false,
		Errors: []validate.Diagnostic{{
			Type:    "missing_required_field",
			Message: "email is required",
			Field:   "email",
			Entity:  "platform/alice",
			Help:    "add the email field",
		}},
	}

	var sb strings.Builder

	require.NoError(t, renderValidation(&sb, formatTable, "owners.kg.yaml", result))

	got := sb.String()
	assert.Contains(t, got, "SEVERITY")
	assert.Contains(t, got, "missing_required_field")
	assert.Contains(t, got, "owners.kg.yaml: 1 error(s), 0 warning(s)")
	assert.Contains(t, got, "hint (missing_required_field): add the email field")
}

func TestRenderValidationJSON(t *testing.T) {
	t.Parallel()

	result := validate.Result{
		Valid: false,
		Errors: []validate.Diagnostic{{
			Type:    "yaml_syntax",
			Message: "unexpected mapping",
			Line:    3,
			Column:  5,
		}},
	}

	var sb strings.Builder

	require.NoError(t, renderValidation(&sb, formatJSON, "bad.kg.yaml", result))
	assert.JSONEq(t, `{
		"source": "bad.kg.yaml",
		"valid": false,
		"errors": [{
			"type": "yaml_syntax",
			"message": "unexpected mapping",
			"line": 3,
			"column": 5
		}]
	}`, sb.String())
}

func TestRenderApply(t *testing.T) {
	t.Parallel()

	applied := &apply.Result{
		CorrelationID: "c-1",
		Source:        "app.kg.yaml",
		Entities: []apply.EntityOutcome{
			{EntityType: "repository", EntityID: "platform/api-service", Operation: apply.OperationCreated},
			{EntityType: "owner", EntityID: "platform/alice", Operation: apply.OperationUpdated},
		},
		Created:               1,
		Updated:               1,
		DependenciesProcessed: 2,
		ValidationTime:        12 * time.Millisecond,
		StorageTime:           3 * time.Millisecond,
		Success:               true,
	}

	dryRun := &apply.Result{
		CorrelationID: "c-2",
		Source:        "app.kg.yaml",
		DryRun: &storage.DryRunResult{
			WouldCreate: []string{"platform/api-service"},
			WouldUpdate: []string{"platform/alice"},
			Summary:     "1 to create, 1 to update",
		},
		Success: true,
	}

	tests := map[string]struct {
		result *apply.Result
		format string
		want   string
	}{
		"compact summary": {
			result: applied,
			format: formatCompact,
			want:   "applied app.kg.yaml: 1 created, 1 updated, 2 dependencies\n",
		},
		"compact dry run": {
			result: dryRun,
			format: formatCompact,
			want:   "dry-run 1 to create, 1 to update\n",
		},
		"table dry run lists entities": {
			result: dryRun,
			format: formatTable,
			want: stringtest.JoinLF(
				"app.kg.yaml: dry run (1 to create, 1 to update)",
				"  create platform/api-service",
				"  update platform/alice",
				"",
			),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var sb strings.Builder

			require.NoError(t, renderApply(&sb, tc.format, tc.result))
			assert.Equal(t, tc.want, sb.String())
		})
	}
}

func TestRenderApplyTable(t *testing.T) {
	t.Parallel()

	result := &apply.Result{
		Source: "app.kg.yaml",
		Entities: []apply.EntityOutcome{
			{EntityType: "repository", EntityID: "platform/api-service", Operation: apply.OperationCreated},
		},
		Created:        1,
		ValidationTime: 10 * time.Millisecond,
		Success:        true,
	}

	var sb strings.Builder

	require.NoError(t, renderApply(&sb, formatTable, result))

	got := sb.String()
	assert.Contains(t, got, "OPERATION")
	assert.Contains(t, got, "platform/api-service")
	assert.Contains(t, got, "app.kg.yaml: 1 created, 0 updated, 0 dependencies (validation 10ms, storage 0ms)")
}

func TestRenderApplyJSON(t *testing.T) {
	t.Parallel()

	result := &apply.Result{
		CorrelationID:  "c-3",
		Source:         "app.kg.yaml",
		Created:        1,
		ValidationTime: 5 * time.Millisecond,
		Success:        true,
	}

	var sb strings.Builder

	require.NoError(t, renderApply(&sb, formatJSON, result))
	assert.JSONEq(t, `{
		"correlation_id": "c-3",
		"source": "app.kg.yaml",
		"created": 1,
		"updated": 0,
		"dependencies": 0,
		"validation_ms": 5,
		"storage_ms": 0,
		"success": true
	}`, sb.String())
}

func TestCodedErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		wrap func(error) error
		code int
	}{
		"usage":    {wrap: usageErr, code: exitUsage},
		"invalid":  {wrap: invalidErr, code: exitInvalid},
		"storage":  {wrap: storageErr, code: exitStorage},
		"internal": {wrap: internalErr, code: exitInternal},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cause := errors.New("boom")
			err := tc.wrap(cause)

			var coded *codedError
			require.ErrorAs(t, err, &coded)
			assert.Equal(t, tc.code, coded.code)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	cfg := storage.NewConfig()
	logger := slog.Default()

	store, err := newStore(cfg, logger)
	require.NoError(t, err)
	assert.NotNil(t, store)

	cfg.BackendType = "sqlite"
	cfg.Endpoint = ":memory:"

	store, err = newStore(cfg, logger)
	require.NoError(t, err)
	assert.NotNil(t, store)

	cfg.BackendType = "dgraph"

	_, err = newStore(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown storage backend "dgraph"`)
}
