package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/poldna/internal/model"
)

const keyPrefix = "poldna:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// NormalizeTitle folds case and whitespace so trivially different renderings
// of the same vote title share one cache entry
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// CacheKey generates a cache key from a vote title
func CacheKey(title string) string {
	hash := sha256.Sum256([]byte(NormalizeTitle(title)))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// GetCategorization looks up a cached categorization for title.
// Entries that no longer decode, or that carry no axis, are treated as misses.
func GetCategorization(c Cache, title string) (model.Categorization, bool) {
	data, ok := c.Get(CacheKey(title))
	if !ok {
		return model.Categorization{}, false
	}
	var cat model.Categorization
	if err := json.Unmarshal(data, &cat); err != nil {
		return model.Categorization{}, false
	}
	if !cat.Category.IsAxis() {
		return model.Categorization{}, false
	}
	cat.Source = "cache"
	return cat, true
}

// PutCategorization stores a real-axis categorization. Other is never cached
// so it gets retried on the next pass.
func PutCategorization(c Cache, title string, cat model.Categorization, ttl time.Duration) error {
	if !cat.Category.IsAxis() {
		return nil
	}
	data, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("marshal categorization: %w", err)
	}
	return c.Set(CacheKey(title), data, ttl)
}
