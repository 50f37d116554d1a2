package cache

// ScopedKeyer wraps a Keyer with a prefix so that several projects, or
// several users of one Redis instance, keep separate namespaces.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "iqpnni:lab42:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ResultKey generates a prefixed key for a search result.
func (k *ScopedKeyer) ResultKey(alignmentHash, startHash, optionsHash string) string {
	return k.prefix + k.inner.ResultKey(alignmentHash, startHash, optionsHash)
}

// RenderKey generates a prefixed key for a rendered tree.
func (k *ScopedKeyer) RenderKey(newickHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(newickHash, opts)
}
