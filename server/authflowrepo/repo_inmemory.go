package authflowrepo

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL is how long a user has to finish the provider's consent screen
const DefaultTTL = 10 * time.Minute

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.Mutex
	states  map[string]*AuthFlowState
	ttl     time.Duration
	nowTime func() time.Time
}

// InMemoryRepoOption defines a function type to modify the InMemoryRepo instance.
type InMemoryRepoOption func(*InMemoryRepo)

// WithTTL sets how long a stored state stays redeemable
func WithTTL(ttl time.Duration) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.ttl = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(options ...InMemoryRepoOption) *InMemoryRepo {
	r := &InMemoryRepo{
		states:  make(map[string]*AuthFlowState),
		ttl:     DefaultTTL,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to prevent external modifications
	stored := *authState
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.nowTime()
	}
	r.states[state] = &stored
	return nil
}

// Take retrieves an auth flow state and deletes it
func (r *InMemoryRepo) Take(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	authState, exists := r.states[state]
	if !exists {
		return nil, ErrStateNotFound
	}
	delete(r.states, state)

	if r.nowTime().Sub(authState.CreatedAt) > r.ttl {
		return nil, ErrStateExpired
	}
	taken := *authState
	return &taken, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}

var _ Repo = (*InMemoryRepo)(nil)
