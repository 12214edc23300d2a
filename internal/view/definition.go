// Package view validates, stores and resolves view definitions. A view is a
// named query over the repository; it never embeds rendered graph data.
package view

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/metamodel"
)

type ViewType string

const (
	CapabilityMap         ViewType = "CapabilityMap"
	ApplicationDependency ViewType = "ApplicationDependency"
	ApplicationLandscape  ViewType = "ApplicationLandscape"
	TechnologyLandscape   ViewType = "TechnologyLandscape"
	ImpactView            ViewType = "ImpactView"
)

type LayoutType string

const (
	LayoutHierarchical LayoutType = "hierarchical"
	LayoutForce        LayoutType = "force"
	LayoutGrid         LayoutType = "grid"
)

type Orientation string

const (
	OrientationTopDown     Orientation = "top-down"
	OrientationLeftRight   Orientation = "left-right"
	OrientationUnspecified Orientation = ""
)

type ApprovalStatus string

const (
	ApprovalDraft    ApprovalStatus = "draft"
	ApprovalReview   ApprovalStatus = "review"
	ApprovalApproved ApprovalStatus = "approved"
)

type Definition struct {
	ID                       string                    `json:"id"`
	Name                     string                    `json:"name"`
	ViewType                 ViewType                  `json:"viewType"`
	AllowedElementTypes      []domain.ObjectType       `json:"allowedElementTypes"`
	AllowedRelationshipTypes []domain.RelationshipType `json:"allowedRelationshipTypes"`
	RootElementID            string                    `json:"rootElementId,omitempty"`
	RootElementType          domain.ObjectType         `json:"rootElementType,omitempty"`
	MaxDepth                 int                       `json:"maxDepth,omitempty"`
	LayoutType               LayoutType                `json:"layoutType"`
	Orientation              Orientation               `json:"orientation,omitempty"`
	ApprovalStatus           ApprovalStatus            `json:"approvalStatus"`
	CreatedBy                string                    `json:"createdBy,omitempty"`
	CreatedAt                time.Time                 `json:"createdAt"`
	LastModifiedAt           time.Time                 `json:"lastModifiedAt"`
}

// allowLists is the static per-view-type catalogue of permitted element and
// relationship types.
type allowList struct {
	elements      []domain.ObjectType
	relationships []domain.RelationshipType
}

var allowLists = map[ViewType]allowList{
	CapabilityMap: {
		elements: []domain.ObjectType{
			domain.ObjectEnterprise, domain.ObjectBusinessUnit, domain.ObjectCapability, domain.ObjectBusinessService,
		},
		relationships: []domain.RelationshipType{domain.RelOwns, domain.RelContains, domain.RelRealizedBy},
	},
	ApplicationDependency: {
		elements: []domain.ObjectType{
			domain.ObjectApplication, domain.ObjectApplicationService, domain.ObjectDataObject,
		},
		relationships: []domain.RelationshipType{domain.RelDependsOn, domain.RelUses, domain.RelContains},
	},
	ApplicationLandscape: {
		elements: []domain.ObjectType{
			domain.ObjectBusinessUnit, domain.ObjectBusinessService, domain.ObjectBusinessProcess,
			domain.ObjectApplication, domain.ObjectApplicationService,
		},
		relationships: []domain.RelationshipType{
			domain.RelContains, domain.RelSupportedBy, domain.RelDependsOn, domain.RelUses, domain.RelRealizedBy,
		},
	},
	TechnologyLandscape: {
		elements: []domain.ObjectType{
			domain.ObjectApplication, domain.ObjectApplicationService, domain.ObjectTechnology, domain.ObjectTechnologyService,
		},
		relationships: []domain.RelationshipType{domain.RelHostedOn, domain.RelContains, domain.RelDependsOn},
	},
	ImpactView: {
		elements: []domain.ObjectType{
			domain.ObjectProgramme, domain.ObjectProject, domain.ObjectCapability, domain.ObjectApplication,
			domain.ObjectBusinessService, domain.ObjectBusinessProcess, domain.ObjectTechnology,
		},
		relationships: []domain.RelationshipType{domain.RelImpacts, domain.RelDelivers, domain.RelDependsOn},
	},
}

func IsValidViewType(viewType ViewType) bool {
	_, ok := allowLists[viewType]
	return ok
}

// CanonicalViewType maps a case-variant spelling ("applicationDependency",
// "capabilitymap") onto the catalogue constant. Unknown types are returned
// unchanged so normalize reports them by the caller's spelling.
func CanonicalViewType(viewType ViewType) (ViewType, bool) {
	if _, ok := allowLists[viewType]; ok {
		return viewType, true
	}
	lowered := strings.ToLower(string(viewType))
	for candidate := range allowLists {
		if strings.ToLower(string(candidate)) == lowered {
			return candidate, true
		}
	}
	return viewType, false
}

func ViewTypes() []ViewType {
	out := make([]ViewType, 0, len(allowLists))
	for viewType := range allowLists {
		out = append(out, viewType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultAllowLists returns the full static allow-list for a view type, used
// as template defaults when instantiating a new view.
func DefaultAllowLists(viewType ViewType) ([]domain.ObjectType, []domain.RelationshipType, bool) {
	list, ok := allowLists[viewType]
	if !ok {
		return nil, nil, false
	}
	elements := append([]domain.ObjectType(nil), list.elements...)
	relationships := append([]domain.RelationshipType(nil), list.relationships...)
	return elements, relationships, true
}

// forbiddenPayloadKeys are snapshot/render keys that must never appear in a
// view definition payload.
var forbiddenPayloadKeys = []string{
	"elements", "relationships", "nodes", "edges", "positions", "layout", "cells", "graph", "renderedGraph",
}

// CheckEmbeddedPayload inspects a raw JSON view payload for embedded graph or
// render data before it is decoded into a Definition.
func CheckEmbeddedPayload(payload []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err != nil {
		return domain.Errorf(domain.CodeInvalidType, "malformed view payload: %v", err)
	}
	for _, forbidden := range forbiddenPayloadKeys {
		if _, ok := keys[forbidden]; ok {
			return domain.Errorf(domain.CodeEmbeddedPayload,
				"view definitions are queries, not snapshots: remove embedded %q data", forbidden)
		}
	}
	return nil
}

// normalize validates a definition and returns the copy that gets stored:
// trimmed name, deduplicated sorted type lists. The caller's value is never
// stored directly.
func normalize(def Definition) (Definition, error) {
	if strings.TrimSpace(def.ID) == "" {
		return Definition{}, domain.Errorf(domain.CodeMissingField, "view id is required")
	}
	if strings.TrimSpace(def.Name) == "" {
		return Definition{}, domain.Errorf(domain.CodeMissingField, "view name is required")
	}
	list, ok := allowLists[def.ViewType]
	if !ok {
		return Definition{}, domain.Errorf(domain.CodeInvalidType, "unknown view type %q", def.ViewType)
	}

	elements := dedupElementTypes(def.AllowedElementTypes)
	if len(elements) == 0 {
		return Definition{}, domain.Errorf(domain.CodeMissingField, "view requires at least one allowed element type")
	}
	for _, elementType := range elements {
		if !metamodel.IsValidObjectType(elementType) {
			return Definition{}, domain.Errorf(domain.CodeInvalidType, "unknown element type %q", elementType)
		}
		if !containsElement(list.elements, elementType) {
			return Definition{}, domain.Errorf(domain.CodePolicyViolation,
				"element type %s is not allowed in a %s view", elementType, def.ViewType)
		}
	}

	relationships := dedupRelationshipTypes(def.AllowedRelationshipTypes)
	for _, relType := range relationships {
		if !metamodel.IsValidRelationshipType(relType) {
			return Definition{}, domain.Errorf(domain.CodeInvalidType, "unknown relationship type %q", relType)
		}
		if !containsRelationship(list.relationships, relType) {
			return Definition{}, domain.Errorf(domain.CodePolicyViolation,
				"relationship type %s is not allowed in a %s view", relType, def.ViewType)
		}
		if err := checkEndpointSufficiency(relType, elements); err != nil {
			return Definition{}, err
		}
	}

	normalized := def
	normalized.ID = strings.TrimSpace(def.ID)
	normalized.Name = strings.TrimSpace(def.Name)
	normalized.AllowedElementTypes = elements
	normalized.AllowedRelationshipTypes = relationships
	if normalized.LayoutType == "" {
		normalized.LayoutType = LayoutHierarchical
	}
	if normalized.ApprovalStatus == "" {
		normalized.ApprovalStatus = ApprovalDraft
	}
	if normalized.RootElementID != "" && normalized.MaxDepth <= 0 {
		normalized.MaxDepth = 3
	}
	return normalized, nil
}

// checkEndpointSufficiency requires the element allow-list to contain at
// least one valid source AND one valid target for the relationship type.
func checkEndpointSufficiency(relType domain.RelationshipType, elements []domain.ObjectType) error {
	rule, ok := metamodel.RuleFor(relType)
	if !ok {
		return domain.Errorf(domain.CodeInvalidType, "unknown relationship type %q", relType)
	}
	hasFrom := false
	hasTo := false
	for _, elementType := range elements {
		if containsElement(rule.From, elementType) {
			hasFrom = true
		}
		if containsElement(rule.To, elementType) {
			hasTo = true
		}
	}
	if !hasFrom || !hasTo {
		return domain.Errorf(domain.CodePolicyViolation,
			"%s requires endpoint types %s -> %s in the element allow-list",
			relType, joinObjectTypes(rule.From), joinObjectTypes(rule.To))
	}
	return nil
}

func dedupElementTypes(types []domain.ObjectType) []domain.ObjectType {
	seen := make(map[domain.ObjectType]struct{}, len(types))
	out := make([]domain.ObjectType, 0, len(types))
	for _, t := range types {
		trimmed := domain.ObjectType(strings.TrimSpace(string(t)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupRelationshipTypes(types []domain.RelationshipType) []domain.RelationshipType {
	seen := make(map[domain.RelationshipType]struct{}, len(types))
	out := make([]domain.RelationshipType, 0, len(types))
	for _, t := range types {
		trimmed := domain.RelationshipType(strings.TrimSpace(string(t)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func containsElement(list []domain.ObjectType, t domain.ObjectType) bool {
	for _, candidate := range list {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsRelationship(list []domain.RelationshipType, t domain.RelationshipType) bool {
	for _, candidate := range list {
		if candidate == t {
			return true
		}
	}
	return false
}

func joinObjectTypes(types []domain.ObjectType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}
