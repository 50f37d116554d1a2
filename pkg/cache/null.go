package cache

import (
	"context"
	"time"
)

// NullCache backs --no-cache runs: search results and rendered drawings are
// recomputed every time and nothing is written.
type NullCache struct{}

// NewNullCache returns a cache that misses on every key.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }

var _ Cache = NullCache{}
