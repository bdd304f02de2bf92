package mode

import "github.com/zhouzirui/codetutor/backend/internal/model/chat"

// Store exposes profile retrieval for HTTP handlers and the client.
type Store interface {
	List() []Profile
	Find(m chat.Mode) (Profile, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Profile
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items []Profile) *MemoryStore {
	return &MemoryStore{items: append([]Profile(nil), items...)}
}

// List returns the profiles in display order.
func (s *MemoryStore) List() []Profile {
	return append([]Profile(nil), s.items...)
}

// Find looks up the profile of m.
func (s *MemoryStore) Find(m chat.Mode) (Profile, bool) {
	for _, item := range s.items {
		if item.Mode == m {
			return item, true
		}
	}
	return Profile{}, false
}
