// Package cli implements the iqpnni command-line interface.
//
// # Commands
//
//   - search: run the NNI + IQP tree search on an alignment
//   - draw: render a tree as SVG, DOT, PDF or PNG
//   - candidates: list or pick the candidate trees of a search result
//   - cache: manage the local result cache
//   - completion: generate shell completion scripts
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/iqpnni/pkg/buildinfo"
	"github.com/matzehuels/iqpnni/pkg/cache"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "iqpnni"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "iqpnni searches for maximum-likelihood phylogenetic trees",
		Long:         `iqpnni reconstructs phylogenetic trees from DNA alignments by alternating important quartet puzzling (IQP) perturbations with nearest neighbour interchange (NNI) hill climbing.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.searchCommand())
	root.AddCommand(c.drawCommand())
	root.AddCommand(c.candidatesCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Cache Factory
// =============================================================================

// cacheOpts selects the result cache backend.
type cacheOpts struct {
	noCache   bool
	redisURL  string
	namespace string // key prefix, for Redis instances shared by several users
}

// newCache returns the cache selected by opts: none, Redis, or the file
// cache in the user cache directory.
func newCache(ctx context.Context, opts cacheOpts) (cache.Cache, error) {
	switch {
	case opts.noCache:
		return cache.NewNullCache(), nil
	case opts.redisURL != "":
		return cache.NewRedisCache(ctx, opts.redisURL)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newKeyer returns the cache keyer selected by opts.
func newKeyer(opts cacheOpts) cache.Keyer {
	if opts.namespace == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(nil, appName+":"+opts.namespace+":")
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/iqpnni/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
