package repository

import (
	"bytes"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/metamodel"
)

func TestAddObjectValidation(t *testing.T) {
	repo := New()

	if err := repo.AddObject("", domain.ObjectCapability, nil); !domain.IsCode(err, domain.CodeMissingField) {
		t.Fatalf("blank id: got %v", err)
	}
	if err := repo.AddObject("cap-1", "Mainframe", nil); !domain.IsCode(err, domain.CodeInvalidType) {
		t.Fatalf("unknown type: got %v", err)
	}
	if err := repo.AddObject("cap-1", domain.ObjectCapability, map[string]string{"name": "Billing"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddObject("cap-1", domain.ObjectCapability, nil); !domain.IsCode(err, domain.CodeDuplicateID) {
		t.Fatalf("first duplicate: got %v", err)
	}
	// Rejection is idempotent: the second attempt fails the same way.
	if err := repo.AddObject("cap-1", domain.ObjectApplication, nil); !domain.IsCode(err, domain.CodeDuplicateID) {
		t.Fatalf("second duplicate: got %v", err)
	}
	if repo.ObjectCount() != 1 {
		t.Fatalf("object count = %d", repo.ObjectCount())
	}
}

func TestAddRelationshipValidationOrder(t *testing.T) {
	repo := New()
	if err := repo.AddObject("cap-1", domain.ObjectCapability, nil); err != nil {
		t.Fatalf("add cap: %v", err)
	}
	if err := repo.AddObject("svc-1", domain.ObjectBusinessService, nil); err != nil {
		t.Fatalf("add svc: %v", err)
	}

	if err := repo.AddRelationship("", "svc-1", domain.RelRealizedBy, nil); !domain.IsCode(err, domain.CodeMissingField) {
		t.Fatalf("blank from: got %v", err)
	}
	if err := repo.AddRelationship("cap-1", "svc-1", "MERGED_WITH", nil); !domain.IsCode(err, domain.CodeInvalidType) {
		t.Fatalf("unknown type: got %v", err)
	}
	if err := repo.AddRelationship("cap-1", "ghost", domain.RelRealizedBy, nil); !domain.IsCode(err, domain.CodeUnknownReference) {
		t.Fatalf("missing endpoint: got %v", err)
	}
	if err := repo.AddRelationship("svc-1", "cap-1", domain.RelRealizedBy, nil); !domain.IsCode(err, domain.CodeInvalidEndpoints) {
		t.Fatalf("reversed endpoints: got %v", err)
	}
	if repo.RelationshipCount() != 0 {
		t.Fatalf("failed inserts must not append, count = %d", repo.RelationshipCount())
	}

	if err := repo.AddRelationship("cap-1", "svc-1", domain.RelRealizedBy, nil); err != nil {
		t.Fatalf("valid insert: %v", err)
	}
	if repo.RelationshipCount() != 1 {
		t.Fatalf("count = %d", repo.RelationshipCount())
	}
}

func TestEndpointRuleTableDrivesInserts(t *testing.T) {
	for _, relType := range metamodel.RelationshipTypes() {
		rule, _ := metamodel.RuleFor(relType)
		for _, fromType := range metamodel.ObjectTypes() {
			for _, toType := range metamodel.ObjectTypes() {
				repo := New()
				if err := repo.AddObject("from", fromType, nil); err != nil {
					t.Fatalf("add from: %v", err)
				}
				if err := repo.AddObject("to", toType, nil); err != nil {
					t.Fatalf("add to: %v", err)
				}
				err := repo.AddRelationship("from", "to", relType, nil)
				valid := containsObjectType(rule.From, fromType) && containsObjectType(rule.To, toType)
				if valid && err != nil {
					t.Fatalf("%s %s -> %s should succeed: %v", relType, fromType, toType, err)
				}
				if !valid && !domain.IsCode(err, domain.CodeInvalidEndpoints) {
					t.Fatalf("%s %s -> %s should fail with InvalidEndpoints, got %v", relType, fromType, toType, err)
				}
			}
		}
	}
}

func TestUpdateObjectAttributes(t *testing.T) {
	repo := New()
	if err := repo.AddObject("app-1", domain.ObjectApplication, map[string]string{"name": "CRM", "owner": "sales"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := repo.UpdateObjectAttributes("ghost", nil, UpdateMerge); !domain.IsCode(err, domain.CodeUnknownReference) {
		t.Fatalf("unknown id: got %v", err)
	}

	if err := repo.UpdateObjectAttributes("app-1", map[string]string{"owner": "it", "tier": "gold"}, UpdateMerge); err != nil {
		t.Fatalf("merge: %v", err)
	}
	obj, _ := repo.Object("app-1")
	if obj.Attributes["name"] != "CRM" || obj.Attributes["owner"] != "it" || obj.Attributes["tier"] != "gold" {
		t.Fatalf("merge result: %v", obj.Attributes)
	}

	if err := repo.UpdateObjectAttributes("app-1", map[string]string{"name": "CRM"}, UpdateReplace); err != nil {
		t.Fatalf("replace: %v", err)
	}
	obj, _ = repo.Object("app-1")
	if len(obj.Attributes) != 1 || obj.Attributes["name"] != "CRM" {
		t.Fatalf("replace result: %v", obj.Attributes)
	}
}

func TestCloneIsolation(t *testing.T) {
	repo := New()
	if err := repo.AddObject("cap-1", domain.ObjectCapability, map[string]string{"name": "Billing"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	clone := repo.Clone()
	if err := clone.AddObject("cap-2", domain.ObjectCapability, nil); err != nil {
		t.Fatalf("clone add: %v", err)
	}
	if err := clone.UpdateObjectAttributes("cap-1", map[string]string{"name": "Invoicing"}, UpdateMerge); err != nil {
		t.Fatalf("clone update: %v", err)
	}

	if repo.HasObject("cap-2") {
		t.Fatalf("clone insert leaked into original")
	}
	obj, _ := repo.Object("cap-1")
	if obj.Attributes["name"] != "Billing" {
		t.Fatalf("clone attribute write leaked: %v", obj.Attributes)
	}
}

func TestSoftDeleteKeepsRelationships(t *testing.T) {
	repo := New()
	if err := repo.AddObject("cap-1", domain.ObjectCapability, nil); err != nil {
		t.Fatalf("add cap: %v", err)
	}
	if err := repo.AddObject("svc-1", domain.ObjectBusinessService, nil); err != nil {
		t.Fatalf("add svc: %v", err)
	}
	if err := repo.AddRelationship("cap-1", "svc-1", domain.RelRealizedBy, nil); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := repo.DeleteObject("svc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if repo.RelationshipCount() != 1 {
		t.Fatalf("soft delete must not remove relationships")
	}
	if got := len(repo.ActiveObjects()); got != 1 {
		t.Fatalf("active objects = %d", got)
	}
	if err := repo.RestoreObject("svc-1"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := len(repo.ActiveObjects()); got != 2 {
		t.Fatalf("active objects after restore = %d", got)
	}
}

func TestEncodeDecodeRoundTripIsByteIdentical(t *testing.T) {
	repo := New()
	if err := repo.AddObject("ent-1", domain.ObjectEnterprise, map[string]string{"name": "Acme"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddObject("bu-1", domain.ObjectBusinessUnit, map[string]string{"name": "Retail"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddRelationship("ent-1", "bu-1", domain.RelOwns, map[string]string{"since": "2020"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := repo.DeleteObject("bu-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	meta := domain.Metadata{
		ProjectID:         "p-1",
		Name:              "Acme EA",
		Scope:             domain.ScopeEnterprise,
		Framework:         domain.FrameworkNone,
		EnforcementMode:   domain.EnforcementAdvisory,
		GovernanceMode:    domain.GovernanceAdvisory,
		LifecycleCoverage: domain.CoverageBaseline,
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	first, err := Encode(repo, meta, at)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, decodedMeta, decodedAt, err := Decode(first, domain.FrameworkNone)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decodedMeta.ProjectID != meta.ProjectID || !decodedAt.Equal(at) {
		t.Fatalf("metadata round trip: %+v at %v", decodedMeta, decodedAt)
	}
	second, err := Encode(decoded, decodedMeta, decodedAt)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("round trip not byte-identical:\n%s\n%s", first, second)
	}
}

func TestDecodeRejectsTightenedFramework(t *testing.T) {
	repo := New()
	if err := repo.AddObject("ent-1", domain.ObjectEnterprise, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddObject("bu-1", domain.ObjectBusinessUnit, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddRelationship("ent-1", "bu-1", domain.RelOwns, nil); err != nil {
		t.Fatalf("connect: %v", err)
	}
	payload, err := Encode(repo, domain.Metadata{ProjectID: "p-1"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, _, _, err := Decode(payload, domain.FrameworkNone); err != nil {
		t.Fatalf("unrestricted decode: %v", err)
	}
	_, _, _, err = Decode(payload, domain.FrameworkArchiMate)
	if !domain.IsCode(err, domain.CodePolicyViolation) {
		t.Fatalf("expected PolicyViolation under archimate, got %v", err)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	if _, _, _, err := Decode([]byte("{not json"), domain.FrameworkNone); !domain.IsCode(err, domain.CodeInvalidType) {
		t.Fatalf("malformed payload: got %v", err)
	}
	if _, _, _, err := Decode([]byte(`{"version":9}`), domain.FrameworkNone); !domain.IsCode(err, domain.CodeInvalidType) {
		t.Fatalf("bad version: got %v", err)
	}
}

func containsObjectType(list []domain.ObjectType, t domain.ObjectType) bool {
	for _, candidate := range list {
		if candidate == t {
			return true
		}
	}
	return false
}
