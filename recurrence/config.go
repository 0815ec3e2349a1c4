package recurrence

import "time"

// EngineConfig holds configuration options for the recurrence engine.
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxOccurrences caps how many occurrences one expansion emits, so a
	// sub-daily rule without COUNT or UNTIL stays bounded even inside a
	// finite range. 0 means no cap.
	MaxOccurrences int

	// LargeRangeThreshold marks ranges that get a limited probe in
	// HasOccurrenceInRange; LargeRangeLimit is the probe window size.
	LargeRangeThreshold time.Duration
	LargeRangeLimit     time.Duration
}

// DefaultEngineConfig provides sensible defaults for production use.
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxOccurrences:      1000,
	LargeRangeThreshold: 90 * 24 * time.Hour,
	LargeRangeLimit:     90 * 24 * time.Hour,
}

// HighPerformanceConfig is optimized for high-traffic scenarios.
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},

	MaxOccurrences:      500,
	LargeRangeThreshold: 30 * 24 * time.Hour,
	LargeRangeLimit:     30 * 24 * time.Hour,
}

// LowMemoryConfig is optimized for memory-constrained environments.
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 2 * time.Minute,
	},

	MaxOccurrences:      1000,
	LargeRangeThreshold: 180 * 24 * time.Hour,
	LargeRangeLimit:     180 * 24 * time.Hour,
}

// DisabledCacheConfig turns off caching entirely.
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
	CacheConfig:  CacheConfig{},

	MaxOccurrences:      2000,
	LargeRangeThreshold: 365 * 24 * time.Hour,
	LargeRangeLimit:     365 * 24 * time.Hour,
}
