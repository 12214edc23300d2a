package metamodel

import (
	"testing"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
)

func TestEveryObjectTypeHasLayer(t *testing.T) {
	for _, objectType := range ObjectTypes() {
		if _, ok := LayerOf(objectType); !ok {
			t.Fatalf("object type %s has no layer", objectType)
		}
	}
	if _, ok := LayerOf("Mainframe"); ok {
		t.Fatalf("unknown object type should have no layer")
	}
}

func TestEndpointRulesReferenceKnownTypes(t *testing.T) {
	for _, relType := range RelationshipTypes() {
		rule, ok := RuleFor(relType)
		if !ok {
			t.Fatalf("rule missing for %s", relType)
		}
		if len(rule.From) == 0 || len(rule.To) == 0 {
			t.Fatalf("rule for %s has an empty endpoint set", relType)
		}
		for _, objectType := range append(append([]domain.ObjectType{}, rule.From...), rule.To...) {
			if !IsValidObjectType(objectType) {
				t.Fatalf("rule for %s references unknown object type %s", relType, objectType)
			}
		}
	}
}

func TestEndpointsAllowed(t *testing.T) {
	cases := []struct {
		rel  domain.RelationshipType
		from domain.ObjectType
		to   domain.ObjectType
		want bool
	}{
		{domain.RelOwns, domain.ObjectEnterprise, domain.ObjectBusinessUnit, true},
		{domain.RelOwns, domain.ObjectEnterprise, domain.ObjectEnterprise, true},
		{domain.RelOwns, domain.ObjectCapability, domain.ObjectBusinessUnit, false},
		{domain.RelRealizedBy, domain.ObjectCapability, domain.ObjectBusinessService, true},
		{domain.RelRealizedBy, domain.ObjectCapability, domain.ObjectCapability, false},
		{domain.RelHostedOn, domain.ObjectApplication, domain.ObjectTechnology, true},
		{domain.RelHostedOn, domain.ObjectTechnology, domain.ObjectApplication, false},
		{domain.RelDelivers, domain.ObjectProgramme, domain.ObjectProject, true},
		{"MERGED_WITH", domain.ObjectApplication, domain.ObjectApplication, false},
	}
	for _, tc := range cases {
		if got := EndpointsAllowed(tc.rel, tc.from, tc.to); got != tc.want {
			t.Fatalf("EndpointsAllowed(%s, %s, %s) = %v, want %v", tc.rel, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDefinitionDerivedFromRules(t *testing.T) {
	def, ok := Definition(domain.ObjectCapability)
	if !ok {
		t.Fatalf("capability definition missing")
	}
	if def.Layer != domain.LayerStrategy {
		t.Fatalf("capability layer = %s", def.Layer)
	}
	var seenRealizedBy bool
	for _, rel := range def.Outgoing {
		if rel == domain.RelRealizedBy {
			seenRealizedBy = true
		}
	}
	if !seenRealizedBy {
		t.Fatalf("capability should be an allowed REALIZED_BY source: %v", def.Outgoing)
	}
	if _, ok := Definition("Mainframe"); ok {
		t.Fatalf("unknown type should have no definition")
	}
}
