package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/governance"
	"github.com/atvirokodosprendimai/archmap/internal/policy"
	"github.com/atvirokodosprendimai/archmap/internal/repository"
	"github.com/atvirokodosprendimai/archmap/internal/view"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const historyLimit = 50

// repoState is one undo/redo entry: a full deep copy of the graph plus the
// rejected-insert counter that travels with it.
type repoState struct {
	repo           *repository.Repository
	invalidInserts int
}

// Service owns the single live repository instance. Every mutation goes
// through the same commit path: clone, mutate the clone, gate it, swap.
type Service struct {
	mu sync.Mutex

	logger *zap.Logger
	store  domain.SnapshotStore
	access domain.AccessStore

	repo           *repository.Repository
	meta           domain.Metadata
	loaded         bool
	revision       uint64
	invalidInserts int

	undo []repoState
	redo []repoState

	views   *view.Store
	tracker *governance.Tracker

	observers []domain.CommitObserver
}

func NewService(logger *zap.Logger, store domain.SnapshotStore, access domain.AccessStore) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:  logger,
		store:   store,
		access:  access,
		tracker: governance.NewTracker(),
	}
}

// NewProject replaces whatever is loaded with a fresh empty repository.
func (s *Service) NewProject(ctx context.Context, name string, meta domain.Metadata) (domain.Metadata, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Metadata{}, domain.Errorf(domain.CodeMissingField, "project name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta.ProjectID = uuid.NewString()
	meta.Name = strings.TrimSpace(name)
	meta.CreatedAt = time.Now().UTC()
	if meta.Scope == "" {
		meta.Scope = domain.ScopeEnterprise
	}
	if meta.Framework == "" {
		meta.Framework = domain.FrameworkNone
	}
	if meta.EnforcementMode == "" {
		meta.EnforcementMode = domain.EnforcementAdvisory
	}
	if meta.GovernanceMode == "" {
		meta.GovernanceMode = domain.GovernanceAdvisory
	}
	if meta.LifecycleCoverage == "" {
		meta.LifecycleCoverage = domain.CoverageBaseline
	}

	s.repo = repository.New()
	s.meta = meta
	s.loaded = true
	s.revision = 0
	s.invalidInserts = 0
	s.undo = nil
	s.redo = nil
	s.views = view.NewStore(meta.ProjectID)
	s.tracker.Reset()

	s.writeAudit(ctx, nil, "project.create", "project", meta.ProjectID, meta.Name)
	s.logger.Info("project created",
		zap.String("project_id", meta.ProjectID),
		zap.String("scope", string(meta.Scope)),
		zap.String("framework", string(meta.Framework)))
	return meta, nil
}

// ClearProject drops the in-memory state entirely.
func (s *Service) ClearProject(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	projectID := s.meta.ProjectID
	s.repo = nil
	s.meta = domain.Metadata{}
	s.loaded = false
	s.revision = 0
	s.invalidInserts = 0
	s.undo = nil
	s.redo = nil
	s.views = nil
	s.tracker.Reset()
	if projectID != "" {
		s.writeAudit(ctx, nil, "project.clear", "project", projectID, "")
	}
}

// ReplaceMetadata swaps the per-project configuration wholesale. Metadata is
// immutable otherwise.
func (s *Service) ReplaceMetadata(ctx context.Context, meta domain.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	meta.ProjectID = s.meta.ProjectID
	meta.CreatedAt = s.meta.CreatedAt
	s.meta = meta
	s.writeAudit(ctx, nil, "project.metadata.replace", "project", meta.ProjectID, "")
	return nil
}

func (s *Service) Metadata() (domain.Metadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta, s.loaded
}

func (s *Service) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

func (s *Service) Subscribe(observer domain.CommitObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// commit runs the shared pipeline. mutate is applied to a clone; the clone
// replaces the live state only if mutation, policy and structural checks all
// pass. On any failure the clone is discarded and prior state is untouched.
func (s *Service) commit(ctx context.Context, action string, mutate func(clone *repository.Repository) error) error {
	if !s.loaded {
		return domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}

	clone := s.repo.Clone()
	if err := mutate(clone); err != nil {
		return err
	}
	if err := s.checkStructuralInvariants(clone); err != nil {
		s.logger.Warn("mutation rejected by scope policy",
			zap.String("action", action), zap.String("reason", err.Error()))
		return err
	}

	s.pushUndo(repoState{repo: s.repo, invalidInserts: s.invalidInserts})
	s.redo = nil
	s.repo = clone
	s.revision++
	s.notifyLocked()
	s.evaluateGovernanceLocked()
	s.writeAudit(ctx, actorFromContext(ctx), action, "repository", s.meta.ProjectID, "")
	return nil
}

func (s *Service) AddObject(ctx context.Context, id string, objectType domain.ObjectType, attributes map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, "graph.object.add", func(clone *repository.Repository) error {
		if err := clone.AddObject(id, objectType, attributes); err != nil {
			return err
		}
		if reason := policy.ReadOnlyReason(s.meta.Scope, objectType); reason != "" {
			return domain.Errorf(domain.CodePolicyViolation, "%s", reason)
		}
		return nil
	})
}

func (s *Service) AddRelationship(ctx context.Context, fromID, toID string, relType domain.RelationshipType, attributes map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.commit(ctx, "graph.relationship.add", func(clone *repository.Repository) error {
		if err := clone.AddRelationship(fromID, toID, relType, attributes); err != nil {
			return err
		}
		from, _ := clone.Object(fromID)
		to, _ := clone.Object(toID)
		return policy.ValidateRelationshipForFramework(s.meta.Framework, relType, from.Type, to.Type)
	})
	if s.loaded && (domain.IsCode(err, domain.CodeInvalidEndpoints) || domain.IsCode(err, domain.CodeUnknownReference)) {
		// Rejected inserts are governance debt in their own right. The
		// loaded guard keeps "no repository loaded" out of the count.
		s.invalidInserts++
	}
	return err
}

func (s *Service) UpdateObjectAttributes(ctx context.Context, id string, patch map[string]string, mode repository.UpdateMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, "graph.object.update", func(clone *repository.Repository) error {
		obj, ok := clone.Object(id)
		if ok {
			if reason := policy.ReadOnlyReason(s.meta.Scope, obj.Type); reason != "" {
				return domain.Errorf(domain.CodePolicyViolation, "%s", reason)
			}
		}
		return clone.UpdateObjectAttributes(id, patch, mode)
	})
}

func (s *Service) DeleteObject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, "graph.object.delete", func(clone *repository.Repository) error {
		obj, ok := clone.Object(id)
		if ok {
			if reason := policy.ReadOnlyReason(s.meta.Scope, obj.Type); reason != "" {
				return domain.Errorf(domain.CodePolicyViolation, "%s", reason)
			}
		}
		return clone.DeleteObject(id)
	})
}

func (s *Service) RestoreObject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, "graph.object.restore", func(clone *repository.Repository) error {
		return clone.RestoreObject(id)
	})
}

func (s *Service) DeleteRelationship(ctx context.Context, fromID, toID string, relType domain.RelationshipType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, "graph.relationship.delete", func(clone *repository.Repository) error {
		return clone.DeleteRelationship(fromID, toID, relType)
	})
}

// Undo restores the previous accepted state. Structural gates do not re-run:
// a state that was accepted once stays acceptable.
func (s *Service) Undo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	if len(s.undo) == 0 {
		return domain.Errorf(domain.CodeUnknownReference, "nothing to undo")
	}
	prior := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = appendBounded(s.redo, repoState{repo: s.repo, invalidInserts: s.invalidInserts})
	s.repo = prior.repo
	s.invalidInserts = prior.invalidInserts
	s.revision++
	s.notifyLocked()
	s.evaluateGovernanceLocked()
	s.writeAudit(ctx, actorFromContext(ctx), "history.undo", "repository", s.meta.ProjectID, "")
	return nil
}

func (s *Service) Redo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	if len(s.redo) == 0 {
		return domain.Errorf(domain.CodeUnknownReference, "nothing to redo")
	}
	next := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = appendBounded(s.undo, repoState{repo: s.repo, invalidInserts: s.invalidInserts})
	s.repo = next.repo
	s.invalidInserts = next.invalidInserts
	s.revision++
	s.notifyLocked()
	s.evaluateGovernanceLocked()
	s.writeAudit(ctx, actorFromContext(ctx), "history.redo", "repository", s.meta.ProjectID, "")
	return nil
}

func (s *Service) HistoryDepth() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo), len(s.redo)
}

func (s *Service) pushUndo(state repoState) {
	s.undo = appendBounded(s.undo, state)
}

func appendBounded(stack []repoState, state repoState) []repoState {
	stack = append(stack, state)
	if len(stack) > historyLimit {
		stack = stack[1:]
	}
	return stack
}

func (s *Service) notifyLocked() {
	for _, observer := range s.observers {
		observer.RepositoryChanged(s.revision)
	}
}

func (s *Service) evaluateGovernanceLocked() governance.Decision {
	report := governance.Evaluate(s.repo, s.meta.LifecycleCoverage, s.invalidInserts, time.Now())
	decision := s.tracker.Observe(report, s.meta.GovernanceMode)
	switch {
	case decision.Blocked:
		s.logger.Warn("governance debt blocks saving",
			zap.Int("mandatory", decision.Signature.Mandatory),
			zap.Int("relationship_errors", decision.Signature.RelErrors),
			zap.Int("invalid_inserts", decision.Signature.InvalidInserts),
			zap.Int("lifecycle_missing", decision.Signature.LifecycleMissing))
	case decision.Unblocked:
		s.logger.Info("governance debt cleared, saving unblocked")
	case decision.Warn:
		s.logger.Warn("governance findings present",
			zap.Int("total", decision.Signature.Total()))
	}
	return decision
}

// GovernanceReport recomputes the debt report for the current state.
func (s *Service) GovernanceReport() (governance.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return governance.Report{}, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	return governance.Evaluate(s.repo, s.meta.LifecycleCoverage, s.invalidInserts, time.Now()), nil
}

// checkStructuralInvariants evaluates the scope rules that need a whole
// snapshot rather than a single type lookup.
func (s *Service) checkStructuralInvariants(candidate *repository.Repository) error {
	switch s.meta.Scope {
	case domain.ScopeBusinessUnit:
		return s.checkBusinessUnitInvariants(candidate)
	case domain.ScopeDomain:
		return checkDomainInvariants(candidate)
	case domain.ScopeProgramme:
		return checkProgrammeInvariants(candidate)
	default:
		return nil
	}
}

func (s *Service) checkBusinessUnitInvariants(candidate *repository.Repository) error {
	liveEnterprises := make(map[string]struct{})
	for _, obj := range candidate.ActiveObjects() {
		if obj.Type == domain.ObjectEnterprise {
			liveEnterprises[obj.ID] = struct{}{}
		}
	}
	for _, rel := range candidate.Relationships() {
		if rel.Type != domain.RelOwns {
			continue
		}
		_, fromEnterprise := liveEnterprises[rel.FromID]
		_, toEnterprise := liveEnterprises[rel.ToID]
		if fromEnterprise && toEnterprise {
			return domain.Errorf(domain.CodePolicyViolation,
				"enterprise-to-enterprise ownership is disabled in a business-unit architecture")
		}
	}
	// The root-count rule gates changes to the Enterprise set itself;
	// a pre-existing imbalance does not block unrelated edits.
	currentCount := countLiveEnterprises(s.repo)
	if candidateCount := len(liveEnterprises); candidateCount != currentCount && candidateCount != 1 {
		return domain.Errorf(domain.CodePolicyViolation,
			"a business-unit architecture requires exactly one live Enterprise root (found %d)", candidateCount)
	}
	return nil
}

func countLiveEnterprises(repo *repository.Repository) int {
	if repo == nil {
		return 0
	}
	count := 0
	for _, obj := range repo.ActiveObjects() {
		if obj.Type == domain.ObjectEnterprise {
			count++
		}
	}
	return count
}

func checkDomainInvariants(candidate *repository.Repository) error {
	byID := make(map[string]domain.EaObject)
	for _, obj := range candidate.Objects() {
		byID[obj.ID] = obj
	}
	for _, rel := range candidate.Relationships() {
		from := normalizeDomainID(byID[rel.FromID])
		to := normalizeDomainID(byID[rel.ToID])
		if from != to {
			return domain.Errorf(domain.CodePolicyViolation,
				"a domain architecture forbids relationships across domains (%s is in %q, %s is in %q)",
				rel.FromID, from, rel.ToID, to)
		}
	}
	return nil
}

func normalizeDomainID(obj domain.EaObject) string {
	return strings.ToLower(strings.TrimSpace(obj.Attributes[domain.DomainIDAttributeKey]))
}

func checkProgrammeInvariants(candidate *repository.Repository) error {
	programmes := 0
	others := 0
	for _, obj := range candidate.ActiveObjects() {
		if obj.Type == domain.ObjectProgramme {
			programmes++
		} else {
			others++
		}
	}
	if programmes == 0 && others > 0 {
		return domain.Errorf(domain.CodePolicyViolation,
			"a programme architecture requires a live Programme element before any other element")
	}
	return nil
}

// Objects returns all elements, soft-deleted included.
func (s *Service) Objects() ([]domain.EaObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	return s.repo.Objects(), nil
}

func (s *Service) Object(id string) (domain.EaObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.EaObject{}, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	obj, ok := s.repo.Object(id)
	if !ok {
		return domain.EaObject{}, domain.Errorf(domain.CodeUnknownReference, "object %q does not exist", id)
	}
	return obj, nil
}

func (s *Service) Relationships() ([]domain.EaRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	return s.repo.Relationships(), nil
}

// SaveSnapshot persists the current state through the storage collaborator.
// In strict governance mode, nonzero blocking debt refuses the save.
func (s *Service) SaveSnapshot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	report := governance.Evaluate(s.repo, s.meta.LifecycleCoverage, s.invalidInserts, time.Now())
	if s.meta.GovernanceMode == domain.GovernanceStrict {
		if debt := report.Signature().BlockingDebt(); debt > 0 {
			return domain.Errorf(domain.CodeGovernanceBlock,
				"save blocked: %d outstanding governance findings must be resolved first", debt)
		}
	}

	payload, err := repository.Encode(s.repo, s.meta, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := s.store.SaveSnapshot(ctx, s.meta.ProjectID, s.revision, payload); err != nil {
		return err
	}
	// An accepted save settles the invalid-insert debt ledger.
	s.invalidInserts = 0
	s.writeAudit(ctx, actorFromContext(ctx), "snapshot.save", "project", s.meta.ProjectID, fmt.Sprintf("revision %d", s.revision))
	s.logger.Info("snapshot saved",
		zap.String("project_id", s.meta.ProjectID), zap.Uint64("revision", s.revision))
	return nil
}

// LoadSnapshot replaces the live state from storage. A malformed or
// framework-rejected snapshot leaves the service with no repository loaded.
func (s *Service) LoadSnapshot(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, revision, err := s.store.LoadSnapshot(ctx, projectID)
	if err != nil {
		return err
	}

	var env repository.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.dropStateLocked()
		return domain.Errorf(domain.CodeInvalidType, "malformed snapshot payload: %v", err)
	}
	repo, meta, _, err := repository.Decode(payload, env.Metadata.Framework)
	if err != nil {
		s.dropStateLocked()
		s.logger.Warn("snapshot rejected on load",
			zap.String("project_id", projectID), zap.String("reason", err.Error()))
		return err
	}

	s.repo = repo
	s.meta = meta
	s.loaded = true
	s.revision = revision
	s.invalidInserts = 0
	s.undo = nil
	s.redo = nil
	s.tracker.Reset()
	s.views = view.NewStore(meta.ProjectID)
	if err := s.loadViewsLocked(ctx); err != nil {
		s.logger.Warn("stored views skipped", zap.String("reason", err.Error()))
	}

	s.writeAudit(ctx, actorFromContext(ctx), "snapshot.load", "project", projectID, "")
	s.logger.Info("snapshot loaded",
		zap.String("project_id", projectID), zap.Uint64("revision", revision),
		zap.Int("objects", repo.ObjectCount()), zap.Int("relationships", repo.RelationshipCount()))
	return nil
}

func (s *Service) dropStateLocked() {
	s.repo = nil
	s.meta = domain.Metadata{}
	s.loaded = false
	s.views = nil
	s.undo = nil
	s.redo = nil
	s.invalidInserts = 0
	s.tracker.Reset()
}

func (s *Service) loadViewsLocked(ctx context.Context) error {
	payloads, err := s.store.ListStoredViews(ctx, s.meta.ProjectID)
	if err != nil {
		return err
	}
	for _, payload := range payloads {
		var def view.Definition
		if err := json.Unmarshal(payload, &def); err != nil {
			s.logger.Warn("stored view payload skipped", zap.String("reason", err.Error()))
			continue
		}
		if _, err := s.views.Create(def); err != nil {
			s.logger.Warn("stored view rejected", zap.String("view_id", def.ID), zap.String("reason", err.Error()))
		}
	}
	return nil
}

// CreateView validates a raw view payload and stores the normalized copy,
// persisting it alongside the project.
func (s *Service) CreateView(ctx context.Context, payload []byte) (view.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return view.Definition{}, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	if err := view.CheckEmbeddedPayload(payload); err != nil {
		return view.Definition{}, err
	}
	var def view.Definition
	if err := json.Unmarshal(payload, &def); err != nil {
		return view.Definition{}, domain.Errorf(domain.CodeInvalidType, "malformed view payload: %v", err)
	}
	if canonical, ok := view.CanonicalViewType(def.ViewType); ok {
		def.ViewType = canonical
	}
	applyViewTemplateDefaults(&def, payload)
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.LastModifiedAt = now

	stored, err := s.views.Create(def)
	if err != nil {
		return view.Definition{}, err
	}
	if data, marshalErr := json.Marshal(stored); marshalErr == nil {
		if err := s.store.UpsertStoredView(ctx, s.meta.ProjectID, stored.ID, data); err != nil {
			s.logger.Warn("view persistence failed", zap.String("view_id", stored.ID), zap.String("reason", err.Error()))
		}
	}
	s.writeAudit(ctx, actorFromContext(ctx), "view.create", "view", stored.ID, stored.Name)
	return stored, nil
}

// applyViewTemplateDefaults fills allow-lists the payload omitted from the
// view-type template. A key the payload spells out stays as given, so an
// explicitly empty list is still rejected downstream.
func applyViewTemplateDefaults(def *view.Definition, payload []byte) {
	elements, relationships, ok := view.DefaultAllowLists(def.ViewType)
	if !ok {
		return
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err != nil {
		return
	}
	if _, present := keys["allowedElementTypes"]; !present {
		def.AllowedElementTypes = elements
	}
	if _, present := keys["allowedRelationshipTypes"]; !present {
		def.AllowedRelationshipTypes = relationships
	}
}

func (s *Service) DeleteView(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	if err := s.views.Delete(id); err != nil {
		return err
	}
	if err := s.store.DeleteStoredView(ctx, s.meta.ProjectID, id); err != nil {
		s.logger.Warn("stored view delete failed", zap.String("view_id", id), zap.String("reason", err.Error()))
	}
	s.writeAudit(ctx, actorFromContext(ctx), "view.delete", "view", id, "")
	return nil
}

func (s *Service) ViewByID(id string) (view.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return view.Definition{}, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	def, ok := s.views.ByID(id)
	if !ok {
		return view.Definition{}, domain.Errorf(domain.CodeUnknownReference, "view %q does not exist", id)
	}
	return def, nil
}

func (s *Service) ViewsByType(viewType view.ViewType) ([]view.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	return s.views.ByType(viewType), nil
}

func (s *Service) ListViews() ([]view.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	return s.views.List(), nil
}

// ResolveView projects the live repository through a stored view.
func (s *Service) ResolveView(id string) (view.Resolved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return view.Resolved{}, domain.Errorf(domain.CodeUnknownReference, "no repository loaded")
	}
	def, ok := s.views.ByID(id)
	if !ok {
		return view.Resolved{}, domain.Errorf(domain.CodeUnknownReference, "view %q does not exist", id)
	}
	return view.Resolve(def, s.repo, s.meta.LifecycleCoverage), nil
}

type actorKey struct{}

// WithActor tags the context with the acting user for audit records.
func WithActor(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func actorFromContext(ctx context.Context) *uint {
	if ctx == nil {
		return nil
	}
	if id, ok := ctx.Value(actorKey{}).(uint); ok {
		return &id
	}
	return nil
}

func (s *Service) writeAudit(ctx context.Context, actorUserID *uint, action, targetType, targetID, metadata string) {
	if s.access == nil {
		return
	}
	_ = s.access.CreateAuditLog(ctx, domain.AuditLog{
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metadata,
	})
}
