// Package metamodel is the static catalogue of element and relationship
// types. All tables are immutable after init; lookups have no side effects.
package metamodel

import (
	"sort"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
)

// EndpointRule names the object types a relationship type may connect.
type EndpointRule struct {
	From []domain.ObjectType
	To   []domain.ObjectType
}

// ObjectTypeDefinition is advisory metadata for pickers and palettes. The
// endpoint rule table, not this, is the enforcement gate.
type ObjectTypeDefinition struct {
	Type     domain.ObjectType
	Layer    domain.Layer
	Outgoing []domain.RelationshipType
	Incoming []domain.RelationshipType
}

var objectLayers = map[domain.ObjectType]domain.Layer{
	domain.ObjectEnterprise:         domain.LayerStrategy,
	domain.ObjectProgramme:          domain.LayerStrategy,
	domain.ObjectProject:            domain.LayerStrategy,
	domain.ObjectCapability:         domain.LayerStrategy,
	domain.ObjectBusinessUnit:       domain.LayerBusiness,
	domain.ObjectBusinessService:    domain.LayerBusiness,
	domain.ObjectBusinessProcess:    domain.LayerBusiness,
	domain.ObjectApplication:        domain.LayerApplication,
	domain.ObjectApplicationService: domain.LayerApplication,
	domain.ObjectDataObject:         domain.LayerApplication,
	domain.ObjectTechnology:         domain.LayerTechnology,
	domain.ObjectTechnologyService:  domain.LayerTechnology,
}

// endpointRules is the single authoritative table. The historical split into
// a "canonical" rule table and a parallel relationship-type-definition table
// invited drift between validators, so both read sides derive from this map.
var endpointRules = map[domain.RelationshipType]EndpointRule{
	domain.RelOwns: {
		From: []domain.ObjectType{domain.ObjectEnterprise, domain.ObjectBusinessUnit},
		To: []domain.ObjectType{
			domain.ObjectEnterprise, domain.ObjectBusinessUnit, domain.ObjectCapability,
			domain.ObjectProgramme, domain.ObjectApplication,
		},
	},
	domain.RelContains: {
		From: []domain.ObjectType{
			domain.ObjectEnterprise, domain.ObjectBusinessUnit, domain.ObjectCapability,
			domain.ObjectBusinessProcess, domain.ObjectApplication, domain.ObjectTechnology,
		},
		To: []domain.ObjectType{
			domain.ObjectBusinessUnit, domain.ObjectCapability, domain.ObjectBusinessService,
			domain.ObjectBusinessProcess, domain.ObjectApplication, domain.ObjectApplicationService,
			domain.ObjectTechnology, domain.ObjectTechnologyService,
		},
	},
	domain.RelRealizedBy: {
		From: []domain.ObjectType{domain.ObjectCapability, domain.ObjectBusinessProcess},
		To:   []domain.ObjectType{domain.ObjectBusinessService, domain.ObjectApplicationService},
	},
	domain.RelSupportedBy: {
		From: []domain.ObjectType{domain.ObjectBusinessService, domain.ObjectBusinessProcess, domain.ObjectCapability},
		To:   []domain.ObjectType{domain.ObjectApplication, domain.ObjectApplicationService},
	},
	domain.RelDependsOn: {
		From: []domain.ObjectType{
			domain.ObjectApplication, domain.ObjectApplicationService, domain.ObjectBusinessProcess,
			domain.ObjectCapability, domain.ObjectTechnology,
		},
		To: []domain.ObjectType{
			domain.ObjectApplication, domain.ObjectApplicationService, domain.ObjectBusinessService,
			domain.ObjectTechnology, domain.ObjectTechnologyService, domain.ObjectDataObject,
		},
	},
	domain.RelHostedOn: {
		From: []domain.ObjectType{domain.ObjectApplication, domain.ObjectApplicationService},
		To:   []domain.ObjectType{domain.ObjectTechnology, domain.ObjectTechnologyService},
	},
	domain.RelImpacts: {
		From: []domain.ObjectType{domain.ObjectProgramme, domain.ObjectProject},
		To: []domain.ObjectType{
			domain.ObjectCapability, domain.ObjectApplication, domain.ObjectBusinessService,
			domain.ObjectBusinessProcess, domain.ObjectTechnology,
		},
	},
	domain.RelDelivers: {
		From: []domain.ObjectType{domain.ObjectProgramme},
		To:   []domain.ObjectType{domain.ObjectProject},
	},
	domain.RelUses: {
		From: []domain.ObjectType{domain.ObjectApplication, domain.ObjectApplicationService, domain.ObjectBusinessProcess},
		To:   []domain.ObjectType{domain.ObjectApplicationService, domain.ObjectDataObject},
	},
}

func IsValidObjectType(t domain.ObjectType) bool {
	_, ok := objectLayers[t]
	return ok
}

func IsValidRelationshipType(t domain.RelationshipType) bool {
	_, ok := endpointRules[t]
	return ok
}

func LayerOf(t domain.ObjectType) (domain.Layer, bool) {
	layer, ok := objectLayers[t]
	return layer, ok
}

// EndpointRule returns the allowed endpoint types for a relationship type.
func RuleFor(t domain.RelationshipType) (EndpointRule, bool) {
	rule, ok := endpointRules[t]
	return rule, ok
}

// EndpointsAllowed reports whether a concrete (from, to) pairing satisfies
// the rule for the given relationship type.
func EndpointsAllowed(t domain.RelationshipType, from, to domain.ObjectType) bool {
	rule, ok := endpointRules[t]
	if !ok {
		return false
	}
	return containsType(rule.From, from) && containsType(rule.To, to)
}

// ObjectTypes lists every known object type in stable order.
func ObjectTypes() []domain.ObjectType {
	out := make([]domain.ObjectType, 0, len(objectLayers))
	for t := range objectLayers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RelationshipTypes lists every known relationship type in stable order.
func RelationshipTypes() []domain.RelationshipType {
	out := make([]domain.RelationshipType, 0, len(endpointRules))
	for t := range endpointRules {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Definition assembles the advisory per-object-type view (layer plus the
// relationship types it may source or receive), derived from the rule table.
func Definition(t domain.ObjectType) (ObjectTypeDefinition, bool) {
	layer, ok := objectLayers[t]
	if !ok {
		return ObjectTypeDefinition{}, false
	}
	def := ObjectTypeDefinition{Type: t, Layer: layer}
	for _, rel := range RelationshipTypes() {
		rule := endpointRules[rel]
		if containsType(rule.From, t) {
			def.Outgoing = append(def.Outgoing, rel)
		}
		if containsType(rule.To, t) {
			def.Incoming = append(def.Incoming, rel)
		}
	}
	return def, true
}

func containsType(list []domain.ObjectType, t domain.ObjectType) bool {
	for _, candidate := range list {
		if candidate == t {
			return true
		}
	}
	return false
}
