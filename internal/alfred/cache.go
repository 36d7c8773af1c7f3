package alfred

import (
	"bytes"
	"sync"
	"time"
)

// Cache is the keyed (source_mac, type) -> dataset store. It is safe for
// concurrent use: the receive loops and the scheduler's sweep mutate it,
// and the status HTTP surface reads it, each from its own goroutine.
type Cache struct {
	mu      sync.RWMutex
	entries map[DatasetKey]*Dataset

	// onChanged, when set, is invoked (outside the lock) whenever an
	// upsert creates a new entry or mutates an existing payload.
	onChanged func(dataType uint8)
	metrics   *Metrics
}

// NewCache builds an empty dataset cache. onChanged, if set, is the
// core's hook for reacting to a changed data type.
func NewCache(onChanged func(dataType uint8), metrics *Metrics) *Cache {
	return &Cache{
		entries:   make(map[DatasetKey]*Dataset),
		onChanged: onChanged,
		metrics:   metrics,
	}
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// UpsertRemote applies one record received over the wire. senderMAC is the
// hardware address the packet actually arrived from, which may differ from
// sourceMAC when the record was relayed (SYNCED) rather than originated
// (FIRST_HAND). It reports whether the entry was newly created or changed.
func (c *Cache) UpsertRemote(sourceMAC MAC, dataType, version uint8, payload []byte, senderMAC MAC, now time.Time) bool {
	key := DatasetKey{SourceMAC: sourceMAC, Type: dataType}

	c.mu.Lock()
	existing, ok := c.entries[key]
	if ok && existing.Source == SourceLocal {
		// Don't overwrite our own data: incoming record ignored entirely.
		c.mu.Unlock()
		return false
	}

	source := SourceSynced
	if sourceMAC == senderMAC {
		source = SourceFirstHand
	}

	changed := !ok
	if ok && (len(existing.Payload) != len(payload) || !bytes.Equal(existing.Payload, payload)) {
		changed = true
	}

	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)

	c.entries[key] = &Dataset{
		SourceMAC: sourceMAC,
		Type:      dataType,
		Version:   version,
		Payload:   payloadCopy,
		Source:    source,
		LastSeen:  now,
	}
	c.mu.Unlock()

	if changed {
		c.metrics.cacheEntryChanged(dataType)
		if c.onChanged != nil {
			c.onChanged(dataType)
		}
	}
	return changed
}

// UpsertLocal stores a local client submission. LOCAL entries are exempt
// from remote overwrite and from TTL eviction.
func (c *Cache) UpsertLocal(sourceMAC MAC, dataType, version uint8, payload []byte, now time.Time) {
	key := DatasetKey{SourceMAC: sourceMAC, Type: dataType}
	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)

	c.mu.Lock()
	c.entries[key] = &Dataset{
		SourceMAC: sourceMAC,
		Type:      dataType,
		Version:   version,
		Payload:   payloadCopy,
		Source:    SourceLocal,
		LastSeen:  now,
	}
	c.mu.Unlock()
}

// Iterate returns a snapshot of every cache entry. Ordering is
// unspecified; callers must not assume it is stable across calls.
func (c *Cache) Iterate() []Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Dataset, 0, len(c.entries))
	for _, d := range c.entries {
		out = append(out, *d)
	}
	return out
}

// Sweep removes non-LOCAL entries whose age exceeds ttl.
func (c *Cache) Sweep(now time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, d := range c.entries {
		if d.Source == SourceLocal {
			continue
		}
		if now.Sub(d.LastSeen) > ttl {
			delete(c.entries, key)
		}
	}
}
