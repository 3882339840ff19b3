package utils

import (
	"fmt"
	"sync"
	"time"
)

var (
	appLocation = time.UTC
	locationMu  sync.RWMutex
)

// InitTimezone sets the zone used by Now; an empty name keeps UTC
func InitTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	locationMu.Lock()
	appLocation = loc
	locationMu.Unlock()
	return nil
}

// Now returns current time in application timezone
func Now() time.Time {
	return time.Now().In(GetLocation())
}

// FormatTime formats t in the application timezone as RFC3339
func FormatTime(t time.Time) string {
	return t.In(GetLocation()).Format(time.RFC3339)
}

// GetLocation returns the current application location
func GetLocation() *time.Location {
	locationMu.RLock()
	defer locationMu.RUnlock()
	return appLocation
}
