// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about tree searches and cache operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the search packages
// never import a metrics backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetSearchHooks(&mySearchHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Search().OnSearchStart(ctx, taxa, patterns)
//	// ... iterate ...
//	observability.Search().OnSearchComplete(ctx, iterations, best, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Search Hooks
// =============================================================================

// SearchHooks receives events from the tree search driver.
type SearchHooks interface {
	// OnSearchStart is called once the starting tree is optimized.
	OnSearchStart(ctx context.Context, taxa, patterns int, logl float64)

	// OnIteration is called after every perturb-and-climb iteration.
	OnIteration(ctx context.Context, iter int, logl, best float64, duration time.Duration)

	// OnNNISearch reports one hill climb: steps taken, moves applied and
	// whether the climb was abandoned as hopeless.
	OnNNISearch(ctx context.Context, iter, steps, applied int, skipped bool)

	// OnNewBest is called when an iteration improves on the best tree.
	OnNewBest(ctx context.Context, iter int, logl float64)

	// OnRollback is called when an iteration is discarded and the best
	// tree restored.
	OnRollback(ctx context.Context, iter int, logl, best float64)

	// OnSearchComplete is called when the search ends, with err set for a
	// fatal failure.
	OnSearchComplete(ctx context.Context, iterations int, best float64, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopSearchHooks is a no-op implementation of SearchHooks.
type NoopSearchHooks struct{}

func (NoopSearchHooks) OnSearchStart(context.Context, int, int, float64)                    {}
func (NoopSearchHooks) OnIteration(context.Context, int, float64, float64, time.Duration)   {}
func (NoopSearchHooks) OnNNISearch(context.Context, int, int, int, bool)                    {}
func (NoopSearchHooks) OnNewBest(context.Context, int, float64)                             {}
func (NoopSearchHooks) OnRollback(context.Context, int, float64, float64)                   {}
func (NoopSearchHooks) OnSearchComplete(context.Context, int, float64, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	searchHooks SearchHooks = NoopSearchHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetSearchHooks registers custom search hooks.
// This should be called once at application startup before any search runs.
func SetSearchHooks(h SearchHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		searchHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Search returns the registered search hooks.
func Search() SearchHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return searchHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	searchHooks = NoopSearchHooks{}
	cacheHooks = NoopCacheHooks{}
}
