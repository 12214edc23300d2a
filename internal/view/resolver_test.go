package view

import (
	"reflect"
	"testing"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/repository"
)

func impactRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo := repository.New()
	add := func(id string, objectType domain.ObjectType) {
		t.Helper()
		if err := repo.AddObject(id, objectType, map[string]string{"name": id, "owner": "ea"}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	connect := func(from, to string, relType domain.RelationshipType) {
		t.Helper()
		if err := repo.AddRelationship(from, to, relType, nil); err != nil {
			t.Fatalf("connect %s -> %s: %v", from, to, err)
		}
	}

	add("prog-1", domain.ObjectProgramme)
	add("cap-1", domain.ObjectCapability)
	add("app-1", domain.ObjectApplication)
	add("app-2", domain.ObjectApplication)
	add("app-3", domain.ObjectApplication)
	connect("prog-1", "cap-1", domain.RelImpacts)
	connect("cap-1", "app-1", domain.RelDependsOn)
	connect("app-1", "app-2", domain.RelDependsOn)
	connect("app-2", "app-3", domain.RelDependsOn)
	return repo
}

func impactDefinition(maxDepth int) Definition {
	return Definition{
		ID:       "v-impact",
		Name:     "Programme Impact",
		ViewType: ImpactView,
		AllowedElementTypes: []domain.ObjectType{
			domain.ObjectProgramme, domain.ObjectCapability, domain.ObjectApplication,
		},
		AllowedRelationshipTypes: []domain.RelationshipType{domain.RelImpacts, domain.RelDependsOn},
		RootElementID:            "prog-1",
		MaxDepth:                 maxDepth,
	}
}

func TestResolveFiltersTypesAndDeleted(t *testing.T) {
	repo := repository.New()
	if err := repo.AddObject("cap-1", domain.ObjectCapability, map[string]string{"name": "Billing"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddObject("svc-1", domain.ObjectBusinessService, map[string]string{"name": "Invoicing"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddObject("svc-2", domain.ObjectBusinessService, map[string]string{"name": "Hidden", domain.HiddenAttributeKey: "true"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddObject("tech-1", domain.ObjectTechnology, map[string]string{"name": "K8s"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddRelationship("cap-1", "svc-1", domain.RelRealizedBy, nil); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := repo.DeleteObject("svc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	def := Definition{
		ID:                       "v-1",
		Name:                     "Caps",
		ViewType:                 CapabilityMap,
		AllowedElementTypes:      []domain.ObjectType{domain.ObjectCapability, domain.ObjectBusinessService},
		AllowedRelationshipTypes: []domain.RelationshipType{domain.RelRealizedBy},
	}
	resolved := Resolve(def, repo, domain.CoverageBaseline)
	if len(resolved.Nodes) != 1 || resolved.Nodes[0].ID != "cap-1" {
		t.Fatalf("nodes: %+v", resolved.Nodes)
	}
	// svc-1 is soft-deleted, so the edge loses its endpoint.
	if len(resolved.Edges) != 0 {
		t.Fatalf("edges: %+v", resolved.Edges)
	}
}

func TestResolveLifecycleVisibility(t *testing.T) {
	repo := repository.New()
	add := func(id, tag string) {
		t.Helper()
		attrs := map[string]string{"name": id, "owner": "ea"}
		if tag != "" {
			attrs[domain.LifecycleAttributeKey] = tag
		}
		if err := repo.AddObject(id, domain.ObjectApplication, attrs); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	add("app-base", domain.LifecycleBaseline)
	add("app-target", domain.LifecycleTarget)
	add("app-untagged", "")

	def := Definition{
		ID:                  "v-1",
		Name:                "Apps",
		ViewType:            ApplicationDependency,
		AllowedElementTypes: []domain.ObjectType{domain.ObjectApplication},
	}

	baseline := Resolve(def, repo, domain.CoverageBaseline)
	if len(baseline.Nodes) != 2 {
		t.Fatalf("baseline nodes: %+v", baseline.Nodes)
	}
	target := Resolve(def, repo, domain.CoverageTarget)
	if len(target.Nodes) != 2 {
		t.Fatalf("target nodes: %+v", target.Nodes)
	}
	both := Resolve(def, repo, domain.CoverageBoth)
	if len(both.Nodes) != 3 {
		t.Fatalf("both nodes: %+v", both.Nodes)
	}
}

func TestResolveImpactDepthBound(t *testing.T) {
	repo := impactRepo(t)

	shallow := Resolve(impactDefinition(2), repo, domain.CoverageBoth)
	ids := nodeIDs(shallow)
	want := []string{"app-1", "cap-1", "prog-1"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("depth 2 nodes = %v, want %v", ids, want)
	}

	deep := Resolve(impactDefinition(4), repo, domain.CoverageBoth)
	if len(deep.Nodes) != 5 {
		t.Fatalf("depth 4 nodes = %v", nodeIDs(deep))
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	repo := impactRepo(t)
	def := impactDefinition(3)
	first := Resolve(def, repo, domain.CoverageBoth)
	second := Resolve(def, repo, domain.CoverageBoth)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolution not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestResolveImpactMissingRoot(t *testing.T) {
	repo := impactRepo(t)
	def := impactDefinition(3)
	def.RootElementID = "ghost"
	resolved := Resolve(def, repo, domain.CoverageBoth)
	if len(resolved.Nodes) != 0 || len(resolved.Edges) != 0 {
		t.Fatalf("missing root should resolve empty: %+v", resolved)
	}
}

func nodeIDs(r Resolved) []string {
	ids := make([]string, len(r.Nodes))
	for i, node := range r.Nodes {
		ids[i] = node.ID
	}
	return ids
}
