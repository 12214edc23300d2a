// Package policy maps an architecture scope and a reference framework to
// write restrictions layered on top of the metamodel. Everything here is a
// pure predicate over type tables; structural checks that need a whole
// repository snapshot live in the orchestrator.
package policy

import (
	"fmt"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/metamodel"
)

var domainScopeWritable = map[domain.ObjectType]struct{}{
	domain.ObjectCapability:         {},
	domain.ObjectBusinessService:    {},
	domain.ObjectApplication:        {},
	domain.ObjectApplicationService: {},
}

var programmeScopeWritable = map[domain.ObjectType]struct{}{
	domain.ObjectProgramme:   {},
	domain.ObjectProject:     {},
	domain.ObjectCapability:  {},
	domain.ObjectApplication: {},
}

func IsObjectTypeWritableForScope(scope domain.ArchitectureScope, objectType domain.ObjectType) bool {
	switch scope {
	case domain.ScopeBusinessUnit:
		layer, ok := metamodel.LayerOf(objectType)
		if !ok {
			return false
		}
		return layer == domain.LayerBusiness || layer == domain.LayerApplication || layer == domain.LayerTechnology
	case domain.ScopeDomain:
		_, ok := domainScopeWritable[objectType]
		return ok
	case domain.ScopeProgramme:
		_, ok := programmeScopeWritable[objectType]
		return ok
	default:
		// Enterprise scope (and anything unscoped) leaves everything writable.
		return true
	}
}

// ReadOnlyReason returns a user-facing explanation when the type is not
// writable under the scope, or "" when it is writable.
func ReadOnlyReason(scope domain.ArchitectureScope, objectType domain.ObjectType) string {
	if IsObjectTypeWritableForScope(scope, objectType) {
		return ""
	}
	switch scope {
	case domain.ScopeBusinessUnit:
		return fmt.Sprintf("%s is read-only in a business-unit architecture: only business, application and technology layer elements are editable", objectType)
	case domain.ScopeDomain:
		return fmt.Sprintf("%s is read-only in a domain architecture: only capabilities, business services, applications and application services are editable", objectType)
	case domain.ScopeProgramme:
		return fmt.Sprintf("%s is read-only in a programme architecture: only programmes, projects, capabilities and applications are editable", objectType)
	default:
		return fmt.Sprintf("%s is read-only in this architecture scope", objectType)
	}
}
