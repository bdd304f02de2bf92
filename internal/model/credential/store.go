package credential

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/codetutor/backend/internal/model/broker"
)

const defaultDisplayName = "User"

// Record is what the store keeps per caller identity.
type Record struct {
	Identity    string
	DisplayName string
	Credential  string
	UpdatedAt   time.Time
}

// Store exposes credential lookup for the token broker and HTTP handlers.
type Store interface {
	HasCredential(identity string) bool
	SaveCredential(identity, displayName, credential string) error
	Lookup(identity string) (Record, bool)
}

// MemoryStore implements Store with a mutex-guarded map. Entries live for the
// process lifetime; losing them only forces callers to resubmit.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// HasCredential reports whether a credential was saved for identity.
func (s *MemoryStore) HasCredential(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[identity]
	return ok && record.Credential != ""
}

// SaveCredential upserts the credential for identity.
func (s *MemoryStore) SaveCredential(identity, displayName, credential string) error {
	identity = strings.TrimSpace(identity)
	credential = strings.TrimSpace(credential)
	if identity == "" || credential == "" {
		return fmt.Errorf("%w: identity and credential are required", broker.ErrInvalidArgument)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = defaultDisplayName
	}

	s.mu.Lock()
	s.records[identity] = Record{
		Identity:    identity,
		DisplayName: displayName,
		Credential:  credential,
		UpdatedAt:   time.Now().UTC(),
	}
	s.mu.Unlock()
	return nil
}

// Lookup returns the stored record for identity.
func (s *MemoryStore) Lookup(identity string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[identity]
	return record, ok
}

// Len returns the number of identities with a stored credential.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
