// Package governance scans repository snapshots for compliance debt and
// decides whether persistence is gated.
package governance

import (
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/metamodel"
	"github.com/atvirokodosprendimai/archmap/internal/repository"
)

// mandatoryAttributes lists required attribute keys per object type. "name"
// is required everywhere; ownership applies to the types governance boards
// actually chase owners for.
var ownerRequired = map[domain.ObjectType]struct{}{
	domain.ObjectCapability:      {},
	domain.ObjectApplication:     {},
	domain.ObjectBusinessService: {},
	domain.ObjectTechnology:      {},
	domain.ObjectProgramme:       {},
}

func MandatoryAttributesFor(objectType domain.ObjectType) []string {
	keys := []string{"name"}
	if _, ok := ownerRequired[objectType]; ok {
		keys = append(keys, "owner")
	}
	return keys
}

type Finding struct {
	ObjectID string `json:"objectId,omitempty"`
	Message  string `json:"message"`
}

// Report aggregates the independent finding categories for one snapshot.
type Report struct {
	MandatoryFindings    []Finding `json:"mandatoryFindings"`
	RelationshipErrors   []Finding `json:"relationshipErrors"`
	RelationshipWarnings []Finding `json:"relationshipWarnings"`
	InvalidInsertCount   int       `json:"invalidRelationshipInsertCount"`
	LifecycleTagMissing  []Finding `json:"lifecycleTagMissing"`
	AsOf                 time.Time `json:"asOf"`
}

// Signature is the composed key of the five category counts, used to dedup
// warn/block notifications across repeated evaluations.
type Signature struct {
	Mandatory        int `json:"mandatoryFindingCount"`
	RelErrors        int `json:"relationshipErrorCount"`
	RelWarnings      int `json:"relationshipWarningCount"`
	InvalidInserts   int `json:"invalidRelationshipInsertCount"`
	LifecycleMissing int `json:"lifecycleTagMissingCount"`
}

func (r Report) Signature() Signature {
	return Signature{
		Mandatory:        len(r.MandatoryFindings),
		RelErrors:        len(r.RelationshipErrors),
		RelWarnings:      len(r.RelationshipWarnings),
		InvalidInserts:   r.InvalidInsertCount,
		LifecycleMissing: len(r.LifecycleTagMissing),
	}
}

func (s Signature) Total() int {
	return s.Mandatory + s.RelErrors + s.RelWarnings + s.InvalidInserts + s.LifecycleMissing
}

// BlockingDebt excludes relationship warnings: quality issues warn, they do
// not gate saves.
func (s Signature) BlockingDebt() int {
	return s.Mandatory + s.RelErrors + s.InvalidInserts + s.LifecycleMissing
}

// Evaluate scans the snapshot. invalidInserts is the orchestrator's count of
// rejected relationship inserts since the last accepted save; the engine
// itself never mutates anything.
func Evaluate(repo *repository.Repository, coverage domain.LifecycleCoverage, invalidInserts int, asOf time.Time) Report {
	report := Report{InvalidInsertCount: invalidInserts, AsOf: asOf.UTC()}

	byID := make(map[string]domain.EaObject)
	for _, obj := range repo.Objects() {
		byID[obj.ID] = obj
	}

	for _, obj := range repo.ActiveObjects() {
		for _, key := range MandatoryAttributesFor(obj.Type) {
			if isBlank(obj.Attributes[key]) {
				report.MandatoryFindings = append(report.MandatoryFindings, Finding{
					ObjectID: obj.ID,
					Message:  fmt.Sprintf("%s %s is missing mandatory attribute %q", obj.Type, obj.ID, key),
				})
			}
		}
		if coverage == domain.CoverageBoth {
			tag := obj.Attributes[domain.LifecycleAttributeKey]
			if tag != domain.LifecycleBaseline && tag != domain.LifecycleTarget {
				report.LifecycleTagMissing = append(report.LifecycleTagMissing, Finding{
					ObjectID: obj.ID,
					Message:  fmt.Sprintf("%s %s has no baseline/target lifecycle tag", obj.Type, obj.ID),
				})
			}
		}
	}

	seen := make(map[string]int)
	for _, rel := range repo.Relationships() {
		from, fromOK := byID[rel.FromID]
		to, toOK := byID[rel.ToID]
		switch {
		case !fromOK || !toOK:
			report.RelationshipErrors = append(report.RelationshipErrors, Finding{
				Message: fmt.Sprintf("%s %s -> %s references a missing element", rel.Type, rel.FromID, rel.ToID),
			})
			continue
		case from.Deleted || to.Deleted:
			report.RelationshipErrors = append(report.RelationshipErrors, Finding{
				Message: fmt.Sprintf("%s %s -> %s references a deleted element", rel.Type, rel.FromID, rel.ToID),
			})
			continue
		case !metamodel.EndpointsAllowed(rel.Type, from.Type, to.Type):
			report.RelationshipErrors = append(report.RelationshipErrors, Finding{
				Message: fmt.Sprintf("%s may not connect %s to %s", rel.Type, from.Type, to.Type),
			})
			continue
		}

		if rel.FromID == rel.ToID {
			report.RelationshipWarnings = append(report.RelationshipWarnings, Finding{
				ObjectID: rel.FromID,
				Message:  fmt.Sprintf("%s self-reference on %s", rel.Type, rel.FromID),
			})
		}
		key := rel.FromID + "\x00" + rel.ToID + "\x00" + string(rel.Type)
		seen[key]++
		if seen[key] == 2 {
			report.RelationshipWarnings = append(report.RelationshipWarnings, Finding{
				Message: fmt.Sprintf("duplicate %s relationship %s -> %s", rel.Type, rel.FromID, rel.ToID),
			})
		}
	}

	return report
}

func isBlank(value string) bool {
	for _, r := range value {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
