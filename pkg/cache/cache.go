// Package cache stores finished search results so that rerunning a search
// with the same inputs returns immediately.
//
// Three backends implement [Cache]: [FileCache] for the CLI (one JSON file
// per entry under the user cache directory), [RedisCache] for shared
// deployments, and [NullCache] when caching is disabled. Keys come from a
// [Keyer]; the default keyer hashes the alignment, the starting tree and
// the search options into one key.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// TTLs for cached entries.
const (
	// ResultTTL is how long a finished search result stays cached.
	ResultTTL = 30 * 24 * time.Hour

	// RenderTTL is how long a rendered tree drawing stays cached.
	RenderTTL = 7 * 24 * time.Hour
)

// Keyer derives cache keys.
type Keyer interface {
	// ResultKey identifies a search result by the hash of its alignment,
	// the hash of its starting tree (empty for a generated start) and the
	// hash of its options, seed included.
	ResultKey(alignmentHash, startHash, optionsHash string) string

	// RenderKey identifies a rendered drawing of a tree.
	RenderKey(newickHash string, opts RenderKeyOpts) string
}

// RenderKeyOpts are the rendering options that change the output.
type RenderKeyOpts struct {
	Format  string `json:"format"`
	Lengths bool   `json:"lengths"`
	Layout  string `json:"layout"`
}

// DefaultKeyer builds keys of the form "<kind>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ResultKey implements Keyer.
func (DefaultKeyer) ResultKey(alignmentHash, startHash, optionsHash string) string {
	return hashKey("result", alignmentHash, startHash, optionsHash)
}

// RenderKey implements Keyer.
func (DefaultKeyer) RenderKey(newickHash string, opts RenderKeyOpts) string {
	return hashKey("render", newickHash, opts)
}
