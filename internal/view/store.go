package view

import (
	"sort"
	"strings"

	"github.com/atvirokodosprendimai/archmap/internal/domain"
)

// Store holds the view definitions of one project. Swapping projects
// invalidates the store; the orchestrator creates a fresh one.
type Store struct {
	projectID string
	views     map[string]Definition
}

func NewStore(projectID string) *Store {
	return &Store{projectID: projectID, views: make(map[string]Definition)}
}

func (s *Store) ProjectID() string { return s.projectID }

// Create validates, normalizes and stores a view definition. The stored copy
// is the normalized one, never the caller's original.
func (s *Store) Create(def Definition) (Definition, error) {
	normalized, err := normalize(def)
	if err != nil {
		return Definition{}, err
	}
	if _, exists := s.views[normalized.ID]; exists {
		return Definition{}, domain.Errorf(domain.CodeDuplicateID, "view %q already exists", normalized.ID)
	}
	lowerName := strings.ToLower(normalized.Name)
	for _, existing := range s.views {
		if strings.ToLower(existing.Name) == lowerName {
			return Definition{}, domain.Errorf(domain.CodeDuplicateID,
				"view name %q collides with existing view %q", normalized.Name, existing.ID)
		}
	}
	s.views[normalized.ID] = normalized
	return normalized, nil
}

func (s *Store) Delete(id string) error {
	if _, ok := s.views[id]; !ok {
		return domain.Errorf(domain.CodeUnknownReference, "view %q does not exist", id)
	}
	delete(s.views, id)
	return nil
}

func (s *Store) ByID(id string) (Definition, bool) {
	def, ok := s.views[id]
	return def, ok
}

// ByType returns views of one type sorted by name, then id.
func (s *Store) ByType(viewType ViewType) []Definition {
	out := make([]Definition, 0)
	for _, def := range s.views {
		if def.ViewType == viewType {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// List returns every view sorted by view type, name, id.
func (s *Store) List() []Definition {
	out := make([]Definition, 0, len(s.views))
	for _, def := range s.views {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ViewType != out[j].ViewType {
			return out[i].ViewType < out[j].ViewType
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Count() int { return len(s.views) }
