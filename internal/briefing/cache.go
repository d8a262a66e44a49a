package briefing

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Cache provides file-based caching for generated briefings.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// NewCache creates a briefing cache in dir. Entries older than a day are
// regenerated.
func NewCache(dir string) *Cache {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("briefing: could not create cache directory: %v", err)
	}
	return &Cache{
		dir:    dir,
		maxAge: 24 * time.Hour,
	}
}

// CacheKey identifies a briefing by city and calendar date.
func CacheKey(city string, date time.Time) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == ' ' || r == '-' || r == '_':
			return '-'
		}
		return -1
	}, strings.TrimSpace(city))
	return slug + "_" + date.Format("2006-01-02")
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, "briefing_"+key+".txt")
}

// Get retrieves a cached briefing if it exists and is not stale.
func (c *Cache) Get(key string) (string, bool) {
	path := c.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set stores a briefing in the cache.
func (c *Cache) Set(key, text string) error {
	return os.WriteFile(c.path(key), []byte(text), 0644)
}
