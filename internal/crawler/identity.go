package crawler

import (
	"sync/atomic"

	"math/rand/v2"

	apperrors "apatel341/fabricworker/pkg/errors"
)

// IdentityRotator hands out browser identities round-robin over a pool
// shuffled once at startup, so consecutive requests never share a user
// agent but the full pool is still cycled evenly.
type IdentityRotator struct {
	userAgents []string
	next       atomic.Uint64
}

// NewIdentityRotator shuffles the given pool and returns a rotator over it.
func NewIdentityRotator(userAgents []string) (*IdentityRotator, error) {
	if len(userAgents) == 0 {
		return nil, apperrors.NewConfiguration("identity pool must not be empty", nil)
	}
	pool := make([]string, len(userAgents))
	copy(pool, userAgents)
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return &IdentityRotator{userAgents: pool}, nil
}

// Next returns the user agent for the next request.
func (r *IdentityRotator) Next() string {
	n := r.next.Add(1) - 1
	return r.userAgents[n%uint64(len(r.userAgents))]
}
