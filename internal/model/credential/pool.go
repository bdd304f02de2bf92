package credential

import (
	"errors"
	"strings"
	"sync/atomic"
)

// ErrPoolEmpty is returned by Next when no shared credentials are configured.
var ErrPoolEmpty = errors.New("shared credential pool is empty")

// Pool hands out a fixed set of shared credentials round-robin. Composition
// is fixed at construction.
type Pool struct {
	credentials []string
	cursor      atomic.Uint64
}

// NewPool builds a pool from the non-blank entries of credentials, keeping
// their order.
func NewPool(credentials []string) *Pool {
	items := make([]string, 0, len(credentials))
	for _, c := range credentials {
		if c = strings.TrimSpace(c); c != "" {
			items = append(items, c)
		}
	}
	return &Pool{credentials: items}
}

// Next returns the credential under the cursor and advances it. The
// read-and-advance is a single atomic add, so concurrent callers always land
// on distinct consecutive slots.
func (p *Pool) Next() (string, error) {
	if len(p.credentials) == 0 {
		return "", ErrPoolEmpty
	}
	slot := p.cursor.Add(1) - 1
	return p.credentials[slot%uint64(len(p.credentials))], nil
}

// Size returns the number of pool slots.
func (p *Pool) Size() int {
	return len(p.credentials)
}
