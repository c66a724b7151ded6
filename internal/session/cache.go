package session

import (
	"github.com/cornelk/hashmap"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/uuids"
)

// handleCache holds the handles resolved on one physical connection.
// It is never cleared in place; invalidation swaps in a fresh instance.
type handleCache struct {
	services        *hashmap.Map[string, device.Service]
	characteristics *hashmap.Map[string, device.Characteristic]
	descriptors     *hashmap.Map[string, device.Descriptor]
}

func newHandleCache() *handleCache {
	return &handleCache{
		services:        hashmap.New[string, device.Service](),
		characteristics: hashmap.New[string, device.Characteristic](),
		descriptors:     hashmap.New[string, device.Descriptor](),
	}
}

// cacheKey builds the composite (parent..., id) key from normalized UUIDs
func cacheKey(ids ...string) string {
	key := ""
	for i, id := range ids {
		if i > 0 {
			key += "/"
		}
		key += uuids.Normalize(id)
	}
	return key
}

// Stats reports how many handles of each kind are cached
type Stats struct {
	Services        int
	Characteristics int
	Descriptors     int
}

func (c *handleCache) stats() Stats {
	return Stats{
		Services:        c.services.Len(),
		Characteristics: c.characteristics.Len(),
		Descriptors:     c.descriptors.Len(),
	}
}
