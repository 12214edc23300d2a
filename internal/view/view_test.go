package view

import (
	"strings"
	"testing"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
)

func validCapabilityMap(id, name string) Definition {
	return Definition{
		ID:       id,
		Name:     name,
		ViewType: CapabilityMap,
		AllowedElementTypes: []domain.ObjectType{
			domain.ObjectCapability, domain.ObjectBusinessService,
		},
		AllowedRelationshipTypes: []domain.RelationshipType{domain.RelRealizedBy},
	}
}

func TestCreateNormalizesAndStoresCopy(t *testing.T) {
	store := NewStore("p-1")
	def := validCapabilityMap("v-1", "  Capability Overview  ")
	def.AllowedRelationshipTypes = []domain.RelationshipType{
		domain.RelRealizedBy, domain.RelRealizedBy, domain.RelContains,
	}
	def.AllowedElementTypes = []domain.ObjectType{
		domain.ObjectBusinessService, domain.ObjectCapability, domain.ObjectCapability, domain.ObjectBusinessUnit,
	}

	stored, err := store.Create(def)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if stored.Name != "Capability Overview" {
		t.Fatalf("name not trimmed: %q", stored.Name)
	}
	if len(stored.AllowedElementTypes) != 3 {
		t.Fatalf("element types not deduplicated: %v", stored.AllowedElementTypes)
	}
	if len(stored.AllowedRelationshipTypes) != 2 {
		t.Fatalf("relationship types not deduplicated: %v", stored.AllowedRelationshipTypes)
	}
	if stored.LayoutType != LayoutHierarchical || stored.ApprovalStatus != ApprovalDraft {
		t.Fatalf("defaults not applied: %+v", stored)
	}

	// Mutating the caller's slices must not affect the stored copy.
	def.AllowedElementTypes[0] = "Mainframe"
	fetched, _ := store.ByID("v-1")
	for _, elementType := range fetched.AllowedElementTypes {
		if elementType == "Mainframe" {
			t.Fatalf("stored view aliases caller slice")
		}
	}
}

func TestCreateRejections(t *testing.T) {
	store := NewStore("p-1")
	if _, err := store.Create(validCapabilityMap("v-1", "Base")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	blankID := validCapabilityMap("  ", "Other")
	if _, err := store.Create(blankID); !domain.IsCode(err, domain.CodeMissingField) {
		t.Fatalf("blank id: %v", err)
	}

	dupID := validCapabilityMap("v-1", "Other")
	if _, err := store.Create(dupID); !domain.IsCode(err, domain.CodeDuplicateID) {
		t.Fatalf("duplicate id: %v", err)
	}

	dupName := validCapabilityMap("v-2", "bAsE")
	if _, err := store.Create(dupName); !domain.IsCode(err, domain.CodeDuplicateID) {
		t.Fatalf("case-insensitive name collision: %v", err)
	}

	badType := validCapabilityMap("v-3", "Bad Type")
	badType.ViewType = "HeatMap"
	if _, err := store.Create(badType); !domain.IsCode(err, domain.CodeInvalidType) {
		t.Fatalf("unknown view type: %v", err)
	}

	empty := validCapabilityMap("v-4", "Empty")
	empty.AllowedElementTypes = nil
	if _, err := store.Create(empty); !domain.IsCode(err, domain.CodeMissingField) {
		t.Fatalf("empty element allow-list: %v", err)
	}

	outsideList := validCapabilityMap("v-5", "Outside")
	outsideList.AllowedElementTypes = append(outsideList.AllowedElementTypes, domain.ObjectTechnology)
	if _, err := store.Create(outsideList); !domain.IsCode(err, domain.CodePolicyViolation) {
		t.Fatalf("element outside view-type allow-list: %v", err)
	}
}

func TestCreateRequiresEndpointSufficiency(t *testing.T) {
	store := NewStore("p-1")
	def := Definition{
		ID:                       "v-1",
		Name:                     "Capabilities Only",
		ViewType:                 CapabilityMap,
		AllowedElementTypes:      []domain.ObjectType{domain.ObjectCapability},
		AllowedRelationshipTypes: []domain.RelationshipType{domain.RelRealizedBy},
	}
	_, err := store.Create(def)
	if !domain.IsCode(err, domain.CodePolicyViolation) {
		t.Fatalf("expected PolicyViolation, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "REALIZED_BY requires endpoint types") ||
		!strings.Contains(msg, "BusinessService") {
		t.Fatalf("error must name the missing endpoint types: %q", msg)
	}
}

func TestCheckEmbeddedPayload(t *testing.T) {
	good := []byte(`{"id":"v-1","name":"Ok","viewType":"CapabilityMap"}`)
	if err := CheckEmbeddedPayload(good); err != nil {
		t.Fatalf("clean payload rejected: %v", err)
	}
	for _, key := range []string{"elements", "relationships", "positions", "layout", "nodes", "edges"} {
		payload := []byte(`{"id":"v-1","name":"Bad","` + key + `":[]}`)
		if err := CheckEmbeddedPayload(payload); !domain.IsCode(err, domain.CodeEmbeddedPayload) {
			t.Fatalf("payload with %q: got %v", key, err)
		}
	}
}

func TestListingOrder(t *testing.T) {
	store := NewStore("p-1")
	mustCreate := func(def Definition) {
		t.Helper()
		if _, err := store.Create(def); err != nil {
			t.Fatalf("create %s: %v", def.ID, err)
		}
	}
	mustCreate(validCapabilityMap("v-b", "Beta"))
	mustCreate(validCapabilityMap("v-a", "Alpha"))
	impact := Definition{
		ID:                       "v-i",
		Name:                     "Impact",
		ViewType:                 ImpactView,
		AllowedElementTypes:      []domain.ObjectType{domain.ObjectProgramme, domain.ObjectApplication},
		AllowedRelationshipTypes: []domain.RelationshipType{domain.RelImpacts},
	}
	mustCreate(impact)

	byType := store.ByType(CapabilityMap)
	if len(byType) != 2 || byType[0].Name != "Alpha" || byType[1].Name != "Beta" {
		t.Fatalf("ByType order: %+v", byType)
	}

	all := store.List()
	if len(all) != 3 {
		t.Fatalf("List count = %d", len(all))
	}
	if all[0].ViewType != CapabilityMap || all[2].ViewType != ImpactView {
		t.Fatalf("List order: %+v", all)
	}

	if err := store.Delete("v-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete("v-a"); !domain.IsCode(err, domain.CodeUnknownReference) {
		t.Fatalf("double delete: %v", err)
	}
}
