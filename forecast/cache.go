package forecast

import (
	"fmt"
	"sync"
	"time"

	"github.com/devskill-org/pvforecast/series"
)

// forecastCache is a single-slot, age-gated cache of the normalized weather
// series. Once loaded, the stored series is returned for any request until it
// is older than refreshInterval or cleared.
//
// Callers pass the location generation their request was built from. A
// newer generation drops the stored series; an older one is loaded but never
// stored, so a request racing a location change cannot repopulate the slot
// with data for the previous site.
//
// The lock is held across the load, so concurrent misses cause one
// provider call.
type forecastCache struct {
	mu              sync.Mutex
	enabled         bool
	refreshInterval time.Duration
	now             func() time.Time

	data       *series.Series
	loadedAt   time.Time
	generation uint64

	hits   uint64
	misses uint64
}

// CacheStats reports cache activity.
type CacheStats struct {
	Enabled  bool      `json:"enabled"`
	Loaded   bool      `json:"loaded"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	Hits     uint64    `json:"hits"`
	Misses   uint64    `json:"misses"`
}

func newForecastCache(enabled bool, refreshInterval time.Duration, now func() time.Time) *forecastCache {
	return &forecastCache{
		enabled:         enabled,
		refreshInterval: refreshInterval,
		now:             now,
	}
}

// get returns the cached series or calls load. The second result reports a
// cache hit. Failed loads are not stored.
func (c *forecastCache) get(generation uint64, load func() (*series.Series, error)) (*series.Series, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		s, err := load()
		return s, false, err
	}

	switch {
	case generation < c.generation:
		c.misses++
		s, err := load()
		return s, false, err
	case generation > c.generation:
		c.generation = generation
		c.data = nil
		c.loadedAt = time.Time{}
	}

	now := c.now()
	switch {
	case c.data == nil && c.loadedAt.IsZero():
		// empty
	case c.data != nil && !c.loadedAt.IsZero():
		if now.Sub(c.loadedAt) <= c.refreshInterval {
			c.hits++
			return c.data, true, nil
		}
	default:
		panic(fmt.Sprintf("forecast cache is inconsistent: loaded at %v, data present: %t", c.loadedAt, c.data != nil))
	}

	c.misses++
	s, err := load()
	if err != nil {
		return nil, false, err
	}
	c.data = s
	c.loadedAt = now
	return s, false, nil
}

func (c *forecastCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.loadedAt = time.Time{}
}

// invalidate drops the stored series and rejects later stores from requests
// older than generation.
func (c *forecastCache) invalidate(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.loadedAt = time.Time{}
	if generation > c.generation {
		c.generation = generation
	}
}

// setEnabled toggles caching. Disabling drops the stored series.
func (c *forecastCache) setEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.data = nil
		c.loadedAt = time.Time{}
	}
}

func (c *forecastCache) setRefreshInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshInterval = d
}

func (c *forecastCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Enabled:  c.enabled,
		Loaded:   c.data != nil,
		LoadedAt: c.loadedAt,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}
