package repository

import (
	"context"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/blake2b"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

// MemoryLocalStorage is the in-process LocalStorage used in development and tests.
type MemoryLocalStorage struct {
	mu    sync.RWMutex
	items map[string]map[string]string
}

// NewMemoryLocalStorage returns an empty MemoryLocalStorage.
func NewMemoryLocalStorage() *MemoryLocalStorage {
	return &MemoryLocalStorage{items: make(map[string]map[string]string)}
}

var _ domain.LocalStorage = (*MemoryLocalStorage)(nil)

// GetItem returns the value of key in scope and whether it was set.
func (s *MemoryLocalStorage) GetItem(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[scope][key]
	return v, ok, nil
}

// SetItem stores value under key in scope.
func (s *MemoryLocalStorage) SetItem(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items[scope] == nil {
		s.items[scope] = make(map[string]string)
	}
	s.items[scope][key] = value
	return nil
}

// RemoveItem deletes key from scope, dropping the scope once empty.
func (s *MemoryLocalStorage) RemoveItem(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items[scope], key)
	if len(s.items[scope]) == 0 {
		delete(s.items, scope)
	}
	return nil
}

// MemoryDeviceTokenRepository keeps device tokens in a map keyed by token.
type MemoryDeviceTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]domain.DeviceToken
	now    func() time.Time
}

// NewMemoryDeviceTokenRepository returns an empty repository.
func NewMemoryDeviceTokenRepository() *MemoryDeviceTokenRepository {
	return &MemoryDeviceTokenRepository{
		tokens: make(map[string]domain.DeviceToken),
		now:    time.Now,
	}
}

var _ domain.DeviceTokenRepository = (*MemoryDeviceTokenRepository)(nil)

// Upsert stores t, keeping CreatedAt of an existing registration.
func (r *MemoryDeviceTokenRepository) Upsert(_ context.Context, t domain.DeviceToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	if existing, ok := r.tokens[t.Token]; ok {
		t.CreatedAt = existing.CreatedAt
	} else {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	r.tokens[t.Token] = t
	return nil
}

// ListByUser returns the tokens of userID, most recently updated first.
func (r *MemoryDeviceTokenRepository) ListByUser(_ context.Context, userID string) ([]domain.DeviceToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.DeviceToken
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Delete removes token. Unknown tokens are not an error.
func (r *MemoryDeviceTokenRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

// DefaultProfileCacheSize bounds MemoryProfileCache when no size is given.
const DefaultProfileCacheSize = 1024

// MemoryProfileCache is a size-bounded LRU of profiles. Entries expire at the
// TTL passed to Set, and are purged no later than the cache-wide maxTTL.
type MemoryProfileCache struct {
	entries *expirable.LRU[string, profileEntry]
	now     func() time.Time
}

type profileEntry struct {
	user      domain.User
	expiresAt time.Time
}

// NewMemoryProfileCache holds at most size profiles, evicting the least
// recently used one when full. size <= 0 uses DefaultProfileCacheSize and
// maxTTL <= 0 leaves purging to the per-entry expiry.
func NewMemoryProfileCache(size int, maxTTL time.Duration) *MemoryProfileCache {
	if size <= 0 {
		size = DefaultProfileCacheSize
	}
	return &MemoryProfileCache{
		entries: expirable.NewLRU[string, profileEntry](size, nil, maxTTL),
		now:     time.Now,
	}
}

var _ domain.ProfileCache = (*MemoryProfileCache)(nil)

// Get returns the cached profile for token, or nil on a miss.
func (c *MemoryProfileCache) Get(_ context.Context, token string) (*domain.User, error) {
	key := profileCacheKey(token)
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.entries.Remove(key)
		return nil, nil
	}
	user := e.user
	return &user, nil
}

// Set caches user for ttl. A nil user or a non-positive ttl is ignored.
func (c *MemoryProfileCache) Set(_ context.Context, token string, user *domain.User, ttl time.Duration) error {
	if user == nil || ttl <= 0 {
		return nil
	}
	c.entries.Add(profileCacheKey(token), profileEntry{user: *user, expiresAt: c.now().Add(ttl)})
	return nil
}

// Delete drops the profile cached for token.
func (c *MemoryProfileCache) Delete(_ context.Context, token string) error {
	c.entries.Remove(profileCacheKey(token))
	return nil
}

// Len reports the number of cached profiles, expired ones included until
// they are purged.
func (c *MemoryProfileCache) Len() int {
	return c.entries.Len()
}

// profileCacheKey never stores the raw bearer token.
func profileCacheKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return "console:profile:" + hex.EncodeToString(sum[:])
}
