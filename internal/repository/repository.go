// Package repository holds the in-memory architecture graph. Every mutation
// validates synchronously against the metamodel and either fully applies or
// leaves the repository untouched.
package repository

import (
	"sort"
	"strings"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/metamodel"
)

type UpdateMode string

const (
	UpdateMerge   UpdateMode = "merge"
	UpdateReplace UpdateMode = "replace"
)

type Repository struct {
	objects       map[string]*domain.EaObject
	relationships []domain.EaRelationship
}

func New() *Repository {
	return &Repository{objects: make(map[string]*domain.EaObject)}
}

func (r *Repository) AddObject(id string, objectType domain.ObjectType, attributes map[string]string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Errorf(domain.CodeMissingField, "object id is required")
	}
	if !metamodel.IsValidObjectType(objectType) {
		return domain.Errorf(domain.CodeInvalidType, "unknown object type %q", objectType)
	}
	if _, exists := r.objects[id]; exists {
		return domain.Errorf(domain.CodeDuplicateID, "object %q already exists", id)
	}
	r.objects[id] = &domain.EaObject{ID: id, Type: objectType, Attributes: copyAttributes(attributes)}
	return nil
}

// AddRelationship validates in a fixed order so callers get the most
// actionable failure first: blank ids, unknown type, unresolved endpoints,
// endpoint-type mismatch.
func (r *Repository) AddRelationship(fromID, toID string, relType domain.RelationshipType, attributes map[string]string) error {
	if strings.TrimSpace(fromID) == "" {
		return domain.Errorf(domain.CodeMissingField, "relationship fromId is required")
	}
	if strings.TrimSpace(toID) == "" {
		return domain.Errorf(domain.CodeMissingField, "relationship toId is required")
	}
	if !metamodel.IsValidRelationshipType(relType) {
		return domain.Errorf(domain.CodeInvalidType, "unknown relationship type %q", relType)
	}
	from, ok := r.objects[fromID]
	if !ok {
		return domain.Errorf(domain.CodeUnknownReference, "relationship endpoint %q does not exist", fromID)
	}
	to, ok := r.objects[toID]
	if !ok {
		return domain.Errorf(domain.CodeUnknownReference, "relationship endpoint %q does not exist", toID)
	}
	if !metamodel.EndpointsAllowed(relType, from.Type, to.Type) {
		rule, _ := metamodel.RuleFor(relType)
		return domain.Errorf(domain.CodeInvalidEndpoints,
			"%s cannot connect %s to %s (allowed: %s to %s)",
			relType, from.Type, to.Type, joinTypes(rule.From), joinTypes(rule.To))
	}
	r.relationships = append(r.relationships, domain.EaRelationship{
		FromID:     fromID,
		ToID:       toID,
		Type:       relType,
		Attributes: copyAttributes(attributes),
	})
	return nil
}

func (r *Repository) UpdateObjectAttributes(id string, patch map[string]string, mode UpdateMode) error {
	obj, ok := r.objects[id]
	if !ok {
		return domain.Errorf(domain.CodeUnknownReference, "object %q does not exist", id)
	}
	switch mode {
	case UpdateMerge:
		if obj.Attributes == nil {
			obj.Attributes = make(map[string]string, len(patch))
		}
		for key, value := range patch {
			obj.Attributes[key] = value
		}
	case UpdateReplace:
		obj.Attributes = copyAttributes(patch)
	default:
		return domain.Errorf(domain.CodeInvalidType, "unknown attribute update mode %q", mode)
	}
	return nil
}

// DeleteObject marks the element deleted. Relationships keep their endpoint
// references; readers filter on the flag.
func (r *Repository) DeleteObject(id string) error {
	obj, ok := r.objects[id]
	if !ok {
		return domain.Errorf(domain.CodeUnknownReference, "object %q does not exist", id)
	}
	obj.Deleted = true
	return nil
}

func (r *Repository) RestoreObject(id string) error {
	obj, ok := r.objects[id]
	if !ok {
		return domain.Errorf(domain.CodeUnknownReference, "object %q does not exist", id)
	}
	obj.Deleted = false
	return nil
}

// DeleteRelationship removes every exact (from, to, type) match.
func (r *Repository) DeleteRelationship(fromID, toID string, relType domain.RelationshipType) error {
	kept := r.relationships[:0]
	removed := 0
	for _, rel := range r.relationships {
		if rel.FromID == fromID && rel.ToID == toID && rel.Type == relType {
			removed++
			continue
		}
		kept = append(kept, rel)
	}
	r.relationships = kept
	if removed == 0 {
		return domain.Errorf(domain.CodeUnknownReference, "relationship %s %s %s does not exist", fromID, relType, toID)
	}
	return nil
}

func (r *Repository) HasObject(id string) bool {
	_, ok := r.objects[id]
	return ok
}

// Object returns a copy; callers cannot mutate stored state by accident.
func (r *Repository) Object(id string) (domain.EaObject, bool) {
	obj, ok := r.objects[id]
	if !ok {
		return domain.EaObject{}, false
	}
	out := *obj
	out.Attributes = copyAttributes(obj.Attributes)
	return out, true
}

// Objects returns every element sorted by id, soft-deleted included.
func (r *Repository) Objects() []domain.EaObject {
	out := make([]domain.EaObject, 0, len(r.objects))
	for _, obj := range r.objects {
		copied := *obj
		copied.Attributes = copyAttributes(obj.Attributes)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveObjects excludes soft-deleted elements.
func (r *Repository) ActiveObjects() []domain.EaObject {
	all := r.Objects()
	out := all[:0]
	for _, obj := range all {
		if !obj.Deleted {
			out = append(out, obj)
		}
	}
	return out
}

// Relationships returns the relationship list in insertion order.
func (r *Repository) Relationships() []domain.EaRelationship {
	out := make([]domain.EaRelationship, len(r.relationships))
	for i, rel := range r.relationships {
		out[i] = rel
		out[i].Attributes = copyAttributes(rel.Attributes)
	}
	return out
}

func (r *Repository) ObjectCount() int       { return len(r.objects) }
func (r *Repository) RelationshipCount() int { return len(r.relationships) }

// Clone deep-copies the repository, including every attribute map, so the
// orchestrator can mutate the copy without touching the live state.
func (r *Repository) Clone() *Repository {
	clone := &Repository{
		objects:       make(map[string]*domain.EaObject, len(r.objects)),
		relationships: make([]domain.EaRelationship, len(r.relationships)),
	}
	for id, obj := range r.objects {
		copied := *obj
		copied.Attributes = copyAttributes(obj.Attributes)
		clone.objects[id] = &copied
	}
	for i, rel := range r.relationships {
		clone.relationships[i] = rel
		clone.relationships[i].Attributes = copyAttributes(rel.Attributes)
	}
	return clone
}

func copyAttributes(attributes map[string]string) map[string]string {
	if attributes == nil {
		return nil
	}
	out := make(map[string]string, len(attributes))
	for key, value := range attributes {
		out[key] = value
	}
	return out
}

func joinTypes(types []domain.ObjectType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}
