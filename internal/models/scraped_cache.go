package models

import "time"

// ScrapedCacheEntry is a memoized scrape result keyed by source URL
type ScrapedCacheEntry struct {
	URL       string    `json:"url" db:"url"`
	Content   string    `json:"content" db:"content"`
	CachedAt  time.Time `json:"cachedAt" db:"cached_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// Live reports whether the entry may be served at now. An entry read at
// exactly its expiry instant is a miss.
func (e *ScrapedCacheEntry) Live(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}
