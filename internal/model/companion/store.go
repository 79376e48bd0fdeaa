package companion

// Store exposes companion retrieval for services and HTTP handlers.
type Store interface {
	List() []Companion
	FindByID(id string) (Companion, bool)
}

// MemoryStore is a read-only Store indexed by companion id. Companions handed out are
// detached copies, so callers cannot edit the catalog through Focus.
type MemoryStore struct {
	order []string
	byID  map[string]Companion
}

// NewMemoryStore indexes items. A later entry with a duplicate id replaces the earlier one
// but keeps its position.
func NewMemoryStore(items []Companion) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]Companion, len(items))}
	for _, item := range items {
		if _, seen := s.byID[item.ID]; !seen {
			s.order = append(s.order, item.ID)
		}
		s.byID[item.ID] = item.clone()
	}
	return s
}

// List returns every companion in seed order.
func (s *MemoryStore) List() []Companion {
	out := make([]Companion, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].clone())
	}
	return out
}

// FindByID returns the companion with id.
func (s *MemoryStore) FindByID(id string) (Companion, bool) {
	c, ok := s.byID[id]
	if !ok {
		return Companion{}, false
	}
	return c.clone(), true
}

func (c Companion) clone() Companion {
	c.Focus = append([]string(nil), c.Focus...)
	return c
}
