package policy

import (
	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/metamodel"
)

// archimateAllowed is the ArchiMate-mode relationship subset: structural
// decomposition, cross-layer realization, generic dependency, hosting and
// impact. Everything else is rejected while the framework is active.
var archimateAllowed = map[domain.RelationshipType]struct{}{
	domain.RelContains:   {},
	domain.RelRealizedBy: {},
	domain.RelDependsOn:  {},
	domain.RelHostedOn:   {},
	domain.RelImpacts:    {},
}

// IsRelationshipTypeAllowedForReferenceFramework reports whether the
// framework permits the relationship type at all. An empty allow-list means
// the framework imposes no restriction.
func IsRelationshipTypeAllowedForReferenceFramework(framework domain.ReferenceFramework, relType domain.RelationshipType) bool {
	if framework != domain.FrameworkArchiMate {
		return true
	}
	_, ok := archimateAllowed[relType]
	return ok
}

// ValidateRelationshipForFramework layers the framework allow-list over the
// metamodel endpoint check. The endpoint re-check is deliberate: a framework
// switch must also catch type drift that slipped past an earlier validator.
func ValidateRelationshipForFramework(framework domain.ReferenceFramework, relType domain.RelationshipType, fromType, toType domain.ObjectType) error {
	if !IsRelationshipTypeAllowedForReferenceFramework(framework, relType) {
		return domain.Errorf(domain.CodePolicyViolation,
			"relationship type %s is not allowed under the %s reference framework", relType, framework)
	}
	if !metamodel.EndpointsAllowed(relType, fromType, toType) {
		return domain.Errorf(domain.CodeInvalidEndpoints,
			"%s cannot connect %s to %s under the active metamodel", relType, fromType, toType)
	}
	return nil
}
