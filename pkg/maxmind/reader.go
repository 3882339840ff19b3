// Package maxmind serves IP geolocation from local GeoLite2 databases.
// Database files are swapped in place by an external updater; the reader
// notices newer files and reloads them without a restart.
package maxmind

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oschwald/geoip2-golang/v2"

	"github.com/benedict-erwin/geo-gateway/config"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
)

// ErrNoDatabase is returned by Health when nothing could be loaded
var ErrNoDatabase = errors.New("no GeoIP databases loaded")

// cacheEntry wraps cached data with expiration time and the database generation it came from
type cacheEntry[T any] struct {
	Data       T
	ExpiresAt  time.Time
	Generation uint64
}

func (e *cacheEntry[T]) isExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Reader gives concurrent access to the City and ASN databases.
// A nil *Reader behaves as a disabled reader.
type Reader struct {
	mu         sync.RWMutex
	cityReader *geoip2.Reader
	asnReader  *geoip2.Reader
	cityPath   string
	asnPath    string
	cityMod    time.Time
	asnMod     time.Time
	info       DatabaseInfo
	generation uint64 // bumped on every load

	cityCache *lru.Cache[netip.Addr, *cacheEntry[*GeoLocation]]
	cacheTTL  time.Duration

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	log      *logger.ScopedLogger
}

// New opens the configured databases. It returns nil when MaxMind is disabled.
// Missing files are not an error: lookups miss until the files appear.
func New(cfg config.MaxMindConfig) (*Reader, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid maxmind.check_interval %q: %w", cfg.CheckInterval, err)
	}

	r := &Reader{
		cityPath: filepath.Join(cfg.StoragePath, cfg.Databases.City+".mmdb"),
		asnPath:  filepath.Join(cfg.StoragePath, cfg.Databases.ASN+".mmdb"),
		interval: interval,
		stopCh:   make(chan struct{}),
		info:     DatabaseInfo{Enabled: true},
		log:      logger.WithScope("maxmind"),
	}

	if cfg.Cache.Enabled {
		ttl, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid maxmind.cache.ttl %q: %w", cfg.Cache.TTL, err)
		}
		cache, err := lru.New[netip.Addr, *cacheEntry[*GeoLocation]](cfg.Cache.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("failed to create city cache: %w", err)
		}
		r.cityCache = cache
		r.cacheTTL = ttl
	}

	r.load()
	r.startChecker()

	r.log.Info().
		Str("city_db", r.cityPath).
		Str("asn_db", r.asnPath).
		Bool("cache", r.cityCache != nil).
		Dur("check_interval", interval).
		Msg("MaxMind reader initialized")
	return r, nil
}

// open returns a reader for path and its modification time; nil when absent or unreadable
func (r *Reader) open(path string) (*geoip2.Reader, time.Time, int64) {
	stat, err := os.Stat(path)
	if err != nil {
		r.log.Warn().Str("path", path).Msg("GeoIP database file not found")
		return nil, time.Time{}, 0
	}
	db, err := geoip2.Open(path)
	if err != nil {
		r.log.Error().Err(err).Str("path", path).Msg("Failed to open GeoIP database")
		return nil, stat.ModTime(), stat.Size()
	}
	return db, stat.ModTime(), stat.Size()
}

// load (re)opens both databases and swaps them in atomically
func (r *Reader) load() {
	city, cityMod, citySize := r.open(r.cityPath)
	asn, asnMod, asnSize := r.open(r.asnPath)

	r.mu.Lock()
	oldCity, oldASN := r.cityReader, r.asnReader
	r.cityReader, r.asnReader = city, asn
	r.cityMod, r.asnMod = cityMod, asnMod

	r.info.CityDBPath, r.info.CityDBModTime, r.info.CityDBSize, r.info.CityLoaded = r.cityPath, cityMod, citySize, city != nil
	r.info.ASNDBPath, r.info.ASNDBModTime, r.info.ASNDBSize, r.info.ASNLoaded = r.asnPath, asnMod, asnSize, asn != nil
	r.info.LoadedAt = time.Now()
	r.info.ReloadCount++
	r.generation++

	if r.cityCache != nil {
		r.cityCache.Purge()
	}
	r.mu.Unlock()

	// in-flight lookups may still hold the old readers
	for _, old := range []*geoip2.Reader{oldCity, oldASN} {
		if old != nil {
			old := old
			time.AfterFunc(5*time.Second, func() { old.Close() })
		}
	}

	r.log.Debug().Bool("city_loaded", city != nil).Bool("asn_loaded", asn != nil).Msg("GeoIP databases loaded")
}

// needsReload reports whether either file is newer than the loaded copy
func (r *Reader) needsReload() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if stat, err := os.Stat(r.cityPath); err == nil && stat.ModTime().After(r.cityMod) {
		return true
	}
	if stat, err := os.Stat(r.asnPath); err == nil && stat.ModTime().After(r.asnMod) {
		return true
	}
	return false
}

func (r *Reader) startChecker() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if r.needsReload() {
					r.log.Info().Msg("GeoIP database files changed, reloading")
					r.load()
				}
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Lookup returns the City answer for addr, enriched with ASN data when available.
// ok is false when the reader is disabled, the database is missing or it has no record.
func (r *Reader) Lookup(addr netip.Addr) (*GeoLocation, bool) {
	if r == nil || !addr.IsValid() {
		return nil, false
	}
	addr = addr.Unmap()

	r.mu.RLock()
	cityDB, asnDB, generation := r.cityReader, r.asnReader, r.generation
	r.mu.RUnlock()

	if r.cityCache != nil {
		if cached, found := r.cityCache.Get(addr); found && !cached.isExpired() && cached.Generation == generation {
			return cached.Data, true
		}
	}

	if cityDB == nil {
		return nil, false
	}

	record, err := cityDB.City(addr)
	if err != nil {
		r.log.Debug().Err(err).Str("ip", addr.String()).Msg("City lookup failed")
		return nil, false
	}
	if record.Country.ISOCode == "" && record.Location.Latitude == nil {
		return nil, false
	}

	result := &GeoLocation{
		IP:          addr.String(),
		Country:     record.Country.Names.English,
		CountryCode: record.Country.ISOCode,
		City:        record.City.Names.English,
		PostalCode:  record.Postal.Code,
		Timezone:    record.Location.TimeZone,
		Source:      SourceMaxMind,
		LookedUpAt:  time.Now().UTC(),
	}
	if len(record.Subdivisions) > 0 {
		result.Region = record.Subdivisions[0].Names.English
	}
	if record.Location.Latitude != nil {
		result.Latitude = *record.Location.Latitude
	}
	if record.Location.Longitude != nil {
		result.Longitude = *record.Location.Longitude
	}

	if asnDB != nil {
		if asn, err := asnDB.ASN(addr); err == nil {
			result.ASN = asn.AutonomousSystemNumber
			result.Org = asn.AutonomousSystemOrganization
		}
	}

	r.remember(addr, result, generation)
	return result, true
}

// remember caches result unless the databases were reloaded since it was read
func (r *Reader) remember(addr netip.Addr, result *GeoLocation, generation uint64) {
	if r.cityCache == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if generation != r.generation {
		return
	}
	r.cityCache.Add(addr, &cacheEntry[*GeoLocation]{
		Data:       result,
		ExpiresAt:  time.Now().Add(r.cacheTTL),
		Generation: generation,
	})
}

// LookupASN returns the ASN record for addr
func (r *Reader) LookupASN(addr netip.Addr) (*ASNInfo, bool) {
	if r == nil || !addr.IsValid() {
		return nil, false
	}
	addr = addr.Unmap()

	r.mu.RLock()
	asnDB := r.asnReader
	r.mu.RUnlock()
	if asnDB == nil {
		return nil, false
	}

	record, err := asnDB.ASN(addr)
	if err != nil || record.AutonomousSystemNumber == 0 {
		return nil, false
	}
	return &ASNInfo{
		IP:           addr.String(),
		ASN:          record.AutonomousSystemNumber,
		Organization: record.AutonomousSystemOrganization,
		LookedUpAt:   time.Now().UTC(),
	}, true
}

// Info returns a copy of the current database state
func (r *Reader) Info() DatabaseInfo {
	if r == nil {
		return DatabaseInfo{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

// Reload reopens the databases immediately, e.g. on SIGHUP after an update
func (r *Reader) Reload() {
	if r != nil {
		r.load()
	}
}

// Health fails only when enabled and no database is loaded
func (r *Reader) Health() error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cityReader == nil && r.asnReader == nil {
		return ErrNoDatabase
	}
	return nil
}

// Close stops the file checker and releases the databases
func (r *Reader) Close() error {
	if r == nil {
		return nil
	}
	close(r.stopCh)
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.cityReader != nil {
		errs = append(errs, r.cityReader.Close())
		r.cityReader = nil
	}
	if r.asnReader != nil {
		errs = append(errs, r.asnReader.Close())
		r.asnReader = nil
	}
	if r.cityCache != nil {
		r.cityCache.Purge()
	}
	return errors.Join(errs...)
}
