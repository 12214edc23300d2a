package policy

import (
	"testing"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
)

func TestScopeWritability(t *testing.T) {
	cases := []struct {
		scope      domain.ArchitectureScope
		objectType domain.ObjectType
		want       bool
	}{
		{domain.ScopeEnterprise, domain.ObjectEnterprise, true},
		{domain.ScopeEnterprise, domain.ObjectTechnologyService, true},
		{domain.ScopeBusinessUnit, domain.ObjectApplication, true},
		{domain.ScopeBusinessUnit, domain.ObjectTechnology, true},
		{domain.ScopeBusinessUnit, domain.ObjectEnterprise, false},
		{domain.ScopeBusinessUnit, domain.ObjectCapability, false},
		{domain.ScopeDomain, domain.ObjectCapability, true},
		{domain.ScopeDomain, domain.ObjectApplicationService, true},
		{domain.ScopeDomain, domain.ObjectTechnology, false},
		{domain.ScopeProgramme, domain.ObjectProgramme, true},
		{domain.ScopeProgramme, domain.ObjectProject, true},
		{domain.ScopeProgramme, domain.ObjectBusinessService, false},
	}
	for _, tc := range cases {
		if got := IsObjectTypeWritableForScope(tc.scope, tc.objectType); got != tc.want {
			t.Fatalf("writable(%s, %s) = %v, want %v", tc.scope, tc.objectType, got, tc.want)
		}
	}
}

func TestReadOnlyReason(t *testing.T) {
	if reason := ReadOnlyReason(domain.ScopeDomain, domain.ObjectCapability); reason != "" {
		t.Fatalf("writable type should have no reason, got %q", reason)
	}
	if reason := ReadOnlyReason(domain.ScopeBusinessUnit, domain.ObjectEnterprise); reason == "" {
		t.Fatalf("expected a read-only reason for Enterprise under business-unit scope")
	}
}

func TestArchiMateAllowList(t *testing.T) {
	allowed := []domain.RelationshipType{
		domain.RelContains, domain.RelRealizedBy, domain.RelDependsOn, domain.RelHostedOn, domain.RelImpacts,
	}
	for _, relType := range allowed {
		if !IsRelationshipTypeAllowedForReferenceFramework(domain.FrameworkArchiMate, relType) {
			t.Fatalf("%s should be allowed under archimate", relType)
		}
	}
	rejected := []domain.RelationshipType{domain.RelOwns, domain.RelSupportedBy, domain.RelDelivers, domain.RelUses}
	for _, relType := range rejected {
		if IsRelationshipTypeAllowedForReferenceFramework(domain.FrameworkArchiMate, relType) {
			t.Fatalf("%s should be rejected under archimate", relType)
		}
	}
	for _, relType := range append(allowed, rejected...) {
		if !IsRelationshipTypeAllowedForReferenceFramework(domain.FrameworkNone, relType) {
			t.Fatalf("%s should be unrestricted without a framework", relType)
		}
	}
}

func TestValidateRelationshipForFramework(t *testing.T) {
	err := ValidateRelationshipForFramework(domain.FrameworkArchiMate, domain.RelOwns, domain.ObjectEnterprise, domain.ObjectBusinessUnit)
	if !domain.IsCode(err, domain.CodePolicyViolation) {
		t.Fatalf("expected PolicyViolation for OWNS under archimate, got %v", err)
	}

	// The endpoint re-check catches type drift even for an allowed type.
	err = ValidateRelationshipForFramework(domain.FrameworkArchiMate, domain.RelHostedOn, domain.ObjectTechnology, domain.ObjectApplication)
	if !domain.IsCode(err, domain.CodeInvalidEndpoints) {
		t.Fatalf("expected InvalidEndpoints for reversed hosting, got %v", err)
	}

	if err := ValidateRelationshipForFramework(domain.FrameworkArchiMate, domain.RelHostedOn, domain.ObjectApplication, domain.ObjectTechnology); err != nil {
		t.Fatalf("valid hosting rejected: %v", err)
	}
}
