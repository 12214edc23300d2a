package governance

import (
	"testing"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/repository"
)

func buildRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo := repository.New()
	if err := repo.AddObject("cap-1", domain.ObjectCapability, map[string]string{"name": "Billing", "owner": "finance"}); err != nil {
		t.Fatalf("add cap: %v", err)
	}
	if err := repo.AddObject("svc-1", domain.ObjectBusinessService, map[string]string{"name": "Invoicing", "owner": "finance"}); err != nil {
		t.Fatalf("add svc: %v", err)
	}
	if err := repo.AddRelationship("cap-1", "svc-1", domain.RelRealizedBy, nil); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return repo
}

func TestEvaluateCleanRepository(t *testing.T) {
	report := Evaluate(buildRepo(t), domain.CoverageBaseline, 0, time.Now())
	if total := report.Signature().Total(); total != 0 {
		t.Fatalf("clean repo has debt %d: %+v", total, report)
	}
}

func TestEvaluateMandatoryAttributeFindings(t *testing.T) {
	repo := buildRepo(t)
	if err := repo.AddObject("app-1", domain.ObjectApplication, map[string]string{"name": "  "}); err != nil {
		t.Fatalf("add app: %v", err)
	}
	report := Evaluate(repo, domain.CoverageBaseline, 0, time.Now())
	// Blank name and missing owner are two findings.
	if len(report.MandatoryFindings) != 2 {
		t.Fatalf("mandatory findings = %d: %+v", len(report.MandatoryFindings), report.MandatoryFindings)
	}

	if err := repo.DeleteObject("app-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	report = Evaluate(repo, domain.CoverageBaseline, 0, time.Now())
	if len(report.MandatoryFindings) != 0 {
		t.Fatalf("deleted elements must not produce findings: %+v", report.MandatoryFindings)
	}
}

func TestEvaluateRelationshipErrorsAndWarnings(t *testing.T) {
	repo := buildRepo(t)
	if err := repo.DeleteObject("svc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	report := Evaluate(repo, domain.CoverageBaseline, 0, time.Now())
	if len(report.RelationshipErrors) != 1 {
		t.Fatalf("dangling relationship should be an error: %+v", report.RelationshipErrors)
	}

	repo = buildRepo(t)
	if err := repo.AddRelationship("cap-1", "svc-1", domain.RelRealizedBy, nil); err != nil {
		t.Fatalf("dup connect: %v", err)
	}
	report = Evaluate(repo, domain.CoverageBaseline, 0, time.Now())
	if len(report.RelationshipWarnings) != 1 {
		t.Fatalf("duplicate relationship should warn once: %+v", report.RelationshipWarnings)
	}
	if len(report.RelationshipErrors) != 0 {
		t.Fatalf("duplicates are warnings, not errors: %+v", report.RelationshipErrors)
	}
}

func TestEvaluateLifecycleCoverage(t *testing.T) {
	repo := buildRepo(t)
	report := Evaluate(repo, domain.CoverageBaseline, 0, time.Now())
	if len(report.LifecycleTagMissing) != 0 {
		t.Fatalf("lifecycle findings only apply under both-coverage: %+v", report.LifecycleTagMissing)
	}

	report = Evaluate(repo, domain.CoverageBoth, 0, time.Now())
	if len(report.LifecycleTagMissing) != 2 {
		t.Fatalf("expected 2 untagged elements, got %d", len(report.LifecycleTagMissing))
	}

	if err := repo.UpdateObjectAttributes("cap-1", map[string]string{domain.LifecycleAttributeKey: domain.LifecycleBaseline}, repository.UpdateMerge); err != nil {
		t.Fatalf("tag: %v", err)
	}
	report = Evaluate(repo, domain.CoverageBoth, 0, time.Now())
	if len(report.LifecycleTagMissing) != 1 {
		t.Fatalf("expected 1 untagged element, got %d", len(report.LifecycleTagMissing))
	}
}

func TestTrackerStrictBlockAndSingleUnblock(t *testing.T) {
	repo := buildRepo(t)
	if err := repo.AddObject("app-1", domain.ObjectApplication, map[string]string{"name": "CRM"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	tracker := NewTracker()

	report := Evaluate(repo, domain.CoverageBaseline, 0, time.Now())
	decision := tracker.Observe(report, domain.GovernanceStrict)
	if !decision.SaveBlocked || !decision.Blocked {
		t.Fatalf("expected block transition: %+v", decision)
	}

	// Same debt again: still blocked, no repeated announcement.
	decision = tracker.Observe(report, domain.GovernanceStrict)
	if !decision.SaveBlocked || decision.Blocked {
		t.Fatalf("expected silent re-block: %+v", decision)
	}

	if err := repo.UpdateObjectAttributes("app-1", map[string]string{"owner": "it"}, repository.UpdateMerge); err != nil {
		t.Fatalf("patch: %v", err)
	}
	report = Evaluate(repo, domain.CoverageBaseline, 0, time.Now())
	decision = tracker.Observe(report, domain.GovernanceStrict)
	if decision.SaveBlocked || !decision.Unblocked {
		t.Fatalf("expected unblock transition: %+v", decision)
	}

	// Success fires exactly once.
	decision = tracker.Observe(report, domain.GovernanceStrict)
	if decision.Unblocked || decision.SaveBlocked {
		t.Fatalf("expected steady state: %+v", decision)
	}
}

func TestTrackerAdvisoryWarnsOncePerSignature(t *testing.T) {
	repo := buildRepo(t)
	if err := repo.AddObject("app-1", domain.ObjectApplication, map[string]string{"name": "CRM"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	tracker := NewTracker()

	report := Evaluate(repo, domain.CoverageBaseline, 0, time.Now())
	if decision := tracker.Observe(report, domain.GovernanceAdvisory); !decision.Warn || decision.SaveBlocked {
		t.Fatalf("expected one warning, never a block: %+v", decision)
	}
	if decision := tracker.Observe(report, domain.GovernanceAdvisory); decision.Warn {
		t.Fatalf("same signature must not warn twice")
	}

	// New distinct signature warns again.
	if err := repo.AddObject("tech-1", domain.ObjectTechnology, map[string]string{"name": "K8s"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	report = Evaluate(repo, domain.CoverageBaseline, 0, time.Now())
	if decision := tracker.Observe(report, domain.GovernanceAdvisory); !decision.Warn {
		t.Fatalf("changed signature should warn")
	}
}
