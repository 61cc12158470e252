package evolution

import (
	"fmt"
	"slices"
)

// ViolationType names one way a change set breaks additive-only evolution.
type ViolationType string

// Additive-evolution violation types.
const (
	FieldRemoved               ViolationType = "FIELD_REMOVED"
	RequiredFieldAdded         ViolationType = "REQUIRED_FIELD_ADDED"
	FieldTypeChanged           ViolationType = "FIELD_TYPE_CHANGED"
	FieldMadeRequired          ViolationType = "FIELD_MADE_REQUIRED"
	RelationshipRemoved        ViolationType = "RELATIONSHIP_REMOVED"
	RelationshipTargetsRemoved ViolationType = "RELATIONSHIP_TARGETS_REMOVED"
	EntityTypeRemoved          ViolationType = "ENTITY_TYPE_REMOVED"
)

// Violation is one additive-evolution rule broken by a change set.
type Violation struct {
	Type       ViolationType
	EntityType string
	Name       string
	Message    string
}

// ValidateAdditive checks a change set against the additive-only policy.
// Additions (new optional fields, relationships, entity types, relationship
// targets) are always allowed; removals, type changes, and the promotion of
// optional to required are not. An empty result means the change set is
// additive.
func ValidateAdditive(changes ChangeSet) []Violation {
	var violations []Violation

	for _, etc := range changes.EntityTypes {
		if etc.Kind == Removed {
			violations = append(violations, Violation{
				Type:       EntityTypeRemoved,
				EntityType: etc.EntityType,
				Message: fmt.Sprintf(
					"entity type %q was removed; deprecate it instead", etc.EntityType),
			})
		}
	}

	for _, fc := range changes.Fields {
		violations = append(violations, fieldViolations(fc)...)
	}

	for _, rc := range changes.Relationships {
		violations = append(violations, relationshipViolations(rc)...)
	}

	return violations
}

func fieldViolations(fc FieldChange) []Violation {
	switch fc.Kind {
	case Removed:
		return []Violation{{
			Type:       FieldRemoved,
			EntityType: fc.EntityType,
			Name:       fc.FieldName,
			Message: fmt.Sprintf(
				"field %q on %q was removed; deprecate it instead", fc.FieldName, fc.EntityType),
		}}

	case Added:
		if fc.New != nil && fc.New.Required {
			return []Violation{{
				Type:       RequiredFieldAdded,
				EntityType: fc.EntityType,
				Name:       fc.FieldName,
				Message: fmt.Sprintf(
					"field %q on %q is new and required; new fields must be optional",
					fc.FieldName, fc.EntityType),
			}}
		}

	case Modified:
		var violations []Violation

		if fc.Old.Type != fc.New.Type {
			violations = append(violations, Violation{
				Type:       FieldTypeChanged,
				EntityType: fc.EntityType,
				Name:       fc.FieldName,
				Message: fmt.Sprintf(
					"field %q on %q changed type from %s to %s",
					fc.FieldName, fc.EntityType, fc.Old.Type, fc.New.Type),
			})
		}

		if !fc.Old.Required && fc.New.Required {
			violations = append(violations, Violation{
				Type:       FieldMadeRequired,
				EntityType: fc.EntityType,
				Name:       fc.FieldName,
				Message: fmt.Sprintf(
					"field %q on %q was optional and is now required",
					fc.FieldName, fc.EntityType),
			})
		}

		return violations
	}

	return nil
}

func relationshipViolations(rc RelationshipChange) []Violation {
	switch rc.Kind {
	case Removed:
		return []Violation{{
			Type:       RelationshipRemoved,
			EntityType: rc.EntityType,
			Name:       rc.RelationshipName,
			Message: fmt.Sprintf(
				"relationship %q on %q was removed; deprecate it instead",
				rc.RelationshipName, rc.EntityType),
		}}

	case Modified:
		var lost []string

		for _, target := range rc.Old.TargetTypes {
			if !slices.Contains(rc.New.TargetTypes, target) {
				lost = append(lost, target)
			}
		}

		if len(lost) > 0 {
			return []Violation{{
				Type:       RelationshipTargetsRemoved,
				EntityType: rc.EntityType,
				Name:       rc.RelationshipName,
				Message: fmt.Sprintf(
					"relationship %q on %q no longer targets %v",
					rc.RelationshipName, rc.EntityType, lost),
			}}
		}

	case Added:
	}

	return nil
}
