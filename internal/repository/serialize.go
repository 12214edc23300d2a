package repository

import (
	"encoding/json"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/policy"
)

const EnvelopeVersion = 1

// Envelope is the persistence contract shared with the storage collaborator.
// Objects are sorted by id and attribute maps marshal with sorted keys, so
// encoding the same state twice yields identical bytes.
type Envelope struct {
	Version       int                     `json:"version"`
	Metadata      domain.Metadata         `json:"metadata"`
	Objects       []domain.EaObject       `json:"objects"`
	Relationships []domain.EaRelationship `json:"relationships"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

func Encode(r *Repository, metadata domain.Metadata, updatedAt time.Time) ([]byte, error) {
	env := Envelope{
		Version:       EnvelopeVersion,
		Metadata:      metadata,
		Objects:       r.Objects(),
		Relationships: r.Relationships(),
		UpdatedAt:     updatedAt.UTC(),
	}
	if env.Relationships == nil {
		env.Relationships = []domain.EaRelationship{}
	}
	if env.Objects == nil {
		env.Objects = []domain.EaObject{}
	}
	return json.Marshal(env)
}

// Decode rebuilds a repository from a persisted envelope, re-running every
// metamodel check and the active reference-framework allow-list. A snapshot
// that was valid when written can still be rejected here if the framework
// has tightened since.
func Decode(payload []byte, framework domain.ReferenceFramework) (*Repository, domain.Metadata, time.Time, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.Metadata{}, time.Time{}, domain.Errorf(domain.CodeInvalidType, "malformed snapshot payload: %v", err)
	}
	if env.Version != EnvelopeVersion {
		return nil, domain.Metadata{}, time.Time{}, domain.Errorf(domain.CodeInvalidType, "unsupported snapshot version %d", env.Version)
	}

	repo := New()
	for _, obj := range env.Objects {
		if err := repo.AddObject(obj.ID, obj.Type, obj.Attributes); err != nil {
			return nil, domain.Metadata{}, time.Time{}, err
		}
		if obj.Deleted {
			if err := repo.DeleteObject(obj.ID); err != nil {
				return nil, domain.Metadata{}, time.Time{}, err
			}
		}
	}
	for _, rel := range env.Relationships {
		if !policy.IsRelationshipTypeAllowedForReferenceFramework(framework, rel.Type) {
			return nil, domain.Metadata{}, time.Time{}, domain.Errorf(domain.CodePolicyViolation,
				"snapshot relationship type %s is not allowed under framework %s", rel.Type, framework)
		}
		if err := repo.AddRelationship(rel.FromID, rel.ToID, rel.Type, rel.Attributes); err != nil {
			return nil, domain.Metadata{}, time.Time{}, err
		}
	}
	return repo, env.Metadata, env.UpdatedAt, nil
}
