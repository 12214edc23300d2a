package view

import (
	"sort"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/repository"
)

// Resolved is the renderable projection of one view over one repository
// state. Nodes are sorted by id; edges keep repository insertion order.
type Resolved struct {
	ViewID string                  `json:"viewId"`
	Nodes  []domain.EaObject       `json:"nodes"`
	Edges  []domain.EaRelationship `json:"edges"`
}

// Resolve projects the repository through the view definition. It is a pure
// function of its inputs: unchanged inputs yield an identical node/edge set.
func Resolve(def Definition, repo *repository.Repository, coverage domain.LifecycleCoverage) Resolved {
	allowedElements := make(map[domain.ObjectType]struct{}, len(def.AllowedElementTypes))
	for _, t := range def.AllowedElementTypes {
		allowedElements[t] = struct{}{}
	}
	allowedRelationships := make(map[domain.RelationshipType]struct{}, len(def.AllowedRelationshipTypes))
	for _, t := range def.AllowedRelationshipTypes {
		allowedRelationships[t] = struct{}{}
	}

	nodes := make(map[string]domain.EaObject)
	for _, obj := range repo.ActiveObjects() {
		if _, ok := allowedElements[obj.Type]; !ok {
			continue
		}
		if obj.Attributes[domain.HiddenAttributeKey] == "true" {
			continue
		}
		if !lifecycleVisible(obj, coverage) {
			continue
		}
		nodes[obj.ID] = obj
	}

	edges := make([]domain.EaRelationship, 0)
	for _, rel := range repo.Relationships() {
		if _, ok := allowedRelationships[rel.Type]; !ok {
			continue
		}
		if _, ok := nodes[rel.FromID]; !ok {
			continue
		}
		if _, ok := nodes[rel.ToID]; !ok {
			continue
		}
		edges = append(edges, rel)
	}

	if def.ViewType == ImpactView && def.RootElementID != "" {
		nodes, edges = expandImpact(def, nodes, edges)
	}

	out := Resolved{ViewID: def.ID, Nodes: make([]domain.EaObject, 0, len(nodes)), Edges: edges}
	for _, obj := range nodes {
		out.Nodes = append(out.Nodes, obj)
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	return out
}

// expandImpact walks outgoing edges only, breadth-first, up to MaxDepth hops
// from the root, deduplicating visited nodes.
func expandImpact(def Definition, nodes map[string]domain.EaObject, edges []domain.EaRelationship) (map[string]domain.EaObject, []domain.EaRelationship) {
	root, ok := nodes[def.RootElementID]
	if !ok {
		return map[string]domain.EaObject{}, nil
	}

	outgoing := make(map[string][]domain.EaRelationship)
	for _, rel := range edges {
		outgoing[rel.FromID] = append(outgoing[rel.FromID], rel)
	}

	visited := map[string]struct{}{root.ID: {}}
	reachedEdges := make([]domain.EaRelationship, 0)
	frontier := []string{root.ID}
	for depth := 0; depth < def.MaxDepth && len(frontier) > 0; depth++ {
		next := make([]string, 0)
		for _, id := range frontier {
			for _, rel := range outgoing[id] {
				reachedEdges = append(reachedEdges, rel)
				if _, seen := visited[rel.ToID]; seen {
					continue
				}
				visited[rel.ToID] = struct{}{}
				next = append(next, rel.ToID)
			}
		}
		frontier = next
	}

	reachedNodes := make(map[string]domain.EaObject, len(visited))
	for id := range visited {
		reachedNodes[id] = nodes[id]
	}
	// Drop edges whose target fell outside the depth bound.
	kept := reachedEdges[:0]
	for _, rel := range reachedEdges {
		if _, ok := reachedNodes[rel.ToID]; ok {
			kept = append(kept, rel)
		}
	}
	return reachedNodes, kept
}

func lifecycleVisible(obj domain.EaObject, coverage domain.LifecycleCoverage) bool {
	tag := obj.Attributes[domain.LifecycleAttributeKey]
	switch coverage {
	case domain.CoverageBaseline:
		return tag == "" || tag == domain.LifecycleBaseline
	case domain.CoverageTarget:
		return tag == "" || tag == domain.LifecycleTarget
	default:
		return true
	}
}
