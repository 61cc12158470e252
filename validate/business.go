package validate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.jacobcolvin.com/kgraph/depref"
)

// checkBusiness is the business-logic layer: dependency reference
// well-formedness, entity-name uniqueness, and owner-domain consistency.
// All findings here are errors except multiple_owner_domains, which is the
// pipeline's only warning.
func (p *Pipeline) checkBusiness(model *Descriptor, result *Result) {
	domains := map[string]bool{}

	for _, group := range model.Groups {
		seen := map[string]bool{}

		for _, entity := range group.Entities {
			if seen[entity.Name] {
				result.addError(Diagnostic{
					Type:    TypeDuplicateEntityName,
					Message: fmt.Sprintf("entity name %q appears more than once under %q", entity.Name, group.Type),
					Entity:  entity.Name,
					Help:    "Entity names must be unique per entity type.",
				})
			}

			seen[entity.Name] = true

			for _, ref := range entity.DependsOn() {
				if diag := checkDependencyRef(entity.Name, ref); diag != nil {
					result.addError(*diag)
				}
			}

			collectOwnerDomains(entity, domains)
		}
	}

	if len(domains) > 1 {
		names := make([]string, 0, len(domains))
		for d := range domains {
			names = append(names, d)
		}

		result.addWarning(Diagnostic{
			Type:    TypeMultipleOwnerDomains,
			Message: fmt.Sprintf("owners span multiple email domains: %s", strings.Join(sorted(names), ", ")),
			Field:   "owners",
			Help:    "Verify that cross-domain ownership is intentional.",
		})
	}
}

// checkDependencyRef classifies one depends_on reference and maps parse
// failures to typed diagnostics.
func checkDependencyRef(entityName, ref string) *Diagnostic {
	diag := func(typ, message, help string) *Diagnostic {
		return &Diagnostic{
			Type:    typ,
			Message: message,
			Field:   "depends_on",
			Entity:  entityName,
			Help:    help,
		}
	}

	switch {
	case depref.IsExternal(ref):
		ext, err := depref.ParseExternal(ref)

		switch {
		case errors.Is(err, depref.ErrEmptyPackage):
			return diag(TypeEmptyPackageName,
				fmt.Sprintf("external reference %q has an empty package name", ref),
				"Use external://<ecosystem>/<package>/<version>.")

		case errors.Is(err, depref.ErrEmptyVersion):
			return diag(TypeEmptyVersion,
				fmt.Sprintf("external reference %q has an empty version", ref),
				"Use external://<ecosystem>/<package>/<version>.")

		case errors.Is(err, depref.ErrUnknownEcosystem):
			return diag(TypeUnsupportedEcosystem,
				fmt.Sprintf("external reference %q names an unsupported ecosystem", ref),
				supportedEcosystemsHelp())

		case err != nil:
			return diag(TypeInvalidExternalDep,
				fmt.Sprintf("external reference %q is malformed", ref),
				"Use external://<ecosystem>/<package>/<version>.")
		}

		if !SupportedEcosystems[ext.Ecosystem] {
			return diag(TypeUnsupportedEcosystem,
				fmt.Sprintf("ecosystem %q is not supported", ext.Ecosystem),
				supportedEcosystemsHelp())
		}

	case depref.IsInternal(ref):
		_, err := depref.ParseInternal(ref)

		switch {
		case errors.Is(err, depref.ErrBadNamespace):
			return diag(TypeInvalidInternalNamespace,
				fmt.Sprintf("internal reference %q has an invalid namespace", ref),
				"Namespaces are lowercase with hyphens or underscores, starting with a letter.")

		case errors.Is(err, depref.ErrEmptyEntityName):
			return diag(TypeEmptyEntityName,
				fmt.Sprintf("internal reference %q has an empty entity name", ref),
				"Use internal://<namespace>/<entity-name>.")

		case err != nil:
			return diag(TypeInvalidInternalDep,
				fmt.Sprintf("internal reference %q is malformed", ref),
				"Use internal://<namespace>/<entity-name>.")
		}

	default:
		return diag(TypeInvalidDependencyRef,
			fmt.Sprintf("dependency reference %q is not recognized", ref),
			"Must start with 'external://' or 'internal://'.")
	}

	return nil
}

func supportedEcosystemsHelp() string {
	names := make([]string, 0, len(SupportedEcosystems))
	for e := range SupportedEcosystems {
		names = append(names, e)
	}

	return fmt.Sprintf("Supported ecosystems: %s.", strings.Join(sorted(names), ", "))
}

// collectOwnerDomains records the email domains seen in an entity's owners
// field.
func collectOwnerDomains(entity Entity, domains map[string]bool) {
	owners, ok := entity.Body["owners"].([]any)
	if !ok {
		return
	}

	for _, owner := range owners {
		email, ok := owner.(string)
		if !ok {
			continue
		}

		if _, domain, found := strings.Cut(email, "@"); found {
			domains[strings.ToLower(domain)] = true
		}
	}
}

// checkReferences is the reference-existence layer. Every internal
// reference in the model must resolve to a known entity id in the backend.
// Storage failures and cancellation surface as errors, not diagnostics.
func (p *Pipeline) checkReferences(
	ctx context.Context,
	model *Descriptor,
	checker ReferenceChecker,
	result *Result,
) error {
	checked := map[string]bool{}

	for _, group := range model.Groups {
		for _, entity := range group.Entities {
			refs := entity.DependsOn()
			for _, targets := range entity.Relationships() {
				refs = append(refs, targets...)
			}

			for _, ref := range refs {
				if !depref.IsInternal(ref) {
					continue
				}

				internal, err := depref.ParseInternal(ref)
				if err != nil {
					// Layer 4 already reported the malformed reference.
					continue
				}

				id := internal.EntityID()
				if checked[id] {
					continue
				}

				checked[id] = true

				exists, err := checker.EntityExists(ctx, id)
				if err != nil {
					return fmt.Errorf("checking reference %q: %w", ref, err)
				}

				if !exists {
					result.addError(Diagnostic{
						Type:    TypeReferenceNotFound,
						Message: fmt.Sprintf("internal reference %q does not resolve to a known entity", ref),
						Field:   "depends_on",
						Entity:  entity.Name,
						Help:    "Apply the referenced entity first, or fix the reference.",
					})
				}
			}
		}
	}

	return nil
}

func sorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)

	return out
}
