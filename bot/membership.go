package bot

import (
	"sync"
	"time"
)

// membershipCache remembers which channels a user has already been confirmed
// to have joined, so the gate does not repeat membership lookups on every
// update. Entries live for the configured TTL (zero = no expiry) and are
// dropped for a channel when that channel leaves the mandatory list.
type membershipCache struct {
	mu     sync.RWMutex
	ttl    time.Duration
	joined map[int64]map[string]time.Time
}

func newMembershipCache(ttl time.Duration) *membershipCache {
	return &membershipCache{
		ttl:    ttl,
		joined: make(map[int64]map[string]time.Time),
	}
}

func (c *membershipCache) Has(userId int64, channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels, ok := c.joined[userId]
	if !ok {
		return false
	}
	at, ok := channels[channel]
	if !ok {
		return false
	}
	if c.ttl > 0 && time.Since(at) > c.ttl {
		return false
	}
	return true
}

func (c *membershipCache) Add(userId int64, channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	channels, ok := c.joined[userId]
	if !ok {
		channels = make(map[string]time.Time)
		c.joined[userId] = channels
	}
	channels[channel] = time.Now()
}

// InvalidateChannel forgets a channel for every user. Called when a channel
// is evicted from the mandatory list, so dead entries do not accumulate.
func (c *membershipCache) InvalidateChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for userId, channels := range c.joined {
		delete(channels, channel)
		if len(channels) == 0 {
			delete(c.joined, userId)
		}
	}
}
