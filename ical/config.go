package ical

import (
	"sync"
	"time"
)

// Config holds the process-wide parser configuration. It is established at
// most once, before the first parse, and never altered afterward; every
// parse call after that observes the same settings.
type Config struct {
	// LocationResolver maps a TZID to a concrete location. The default
	// consults the system IANA database via time.LoadLocation.
	LocationResolver func(tzid string) (*time.Location, error)

	// RelaxedParsing tolerates content lines that fail to tokenize by
	// skipping them instead of failing the whole parse.
	RelaxedParsing bool

	// CacheLocations memoizes resolver lookups per TZID.
	CacheLocations bool
}

// DefaultConfig is applied on first use when Configure was never called.
var DefaultConfig = Config{
	LocationResolver: time.LoadLocation,
	RelaxedParsing:   false,
	CacheLocations:   true,
}

var (
	configOnce sync.Once
	config     Config

	locCacheMu sync.Mutex
	locCache   map[string]*time.Location
)

// Configure installs the parser configuration. Only the first call takes
// effect; later calls (including the implicit default installation done by
// the first parse) are no-ops. It reports whether cfg was applied.
func Configure(cfg Config) bool {
	applied := false
	configOnce.Do(func() {
		config = withDefaults(cfg)
		applied = true
	})
	return applied
}

// activeConfig returns the installed configuration, lazily installing the
// defaults through the same once-guard Configure uses.
func activeConfig() Config {
	configOnce.Do(func() {
		config = withDefaults(DefaultConfig)
	})
	return config
}

func withDefaults(cfg Config) Config {
	if cfg.LocationResolver == nil {
		cfg.LocationResolver = time.LoadLocation
	}
	return cfg
}

// resolveLocation maps a TZID to a location. An unresolvable TZID falls
// back to UTC rather than failing the event; the original TZID text still
// round-trips through the zoned DateTime.
func resolveLocation(tzid string) *time.Location {
	cfg := activeConfig()

	if cfg.CacheLocations {
		locCacheMu.Lock()
		if loc, ok := locCache[tzid]; ok {
			locCacheMu.Unlock()
			return loc
		}
		locCacheMu.Unlock()
	}

	loc, err := cfg.LocationResolver(tzid)
	if err != nil || loc == nil {
		loc = time.UTC
	}

	if cfg.CacheLocations {
		locCacheMu.Lock()
		if locCache == nil {
			locCache = make(map[string]*time.Location)
		}
		locCache[tzid] = loc
		locCacheMu.Unlock()
	}
	return loc
}
