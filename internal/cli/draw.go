package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/iqpnni/pkg/errors"
	"github.com/matzehuels/iqpnni/pkg/render"
)

// drawOpts holds the command-line flags of the draw command.
type drawOpts struct {
	output  string
	format  string
	layout  string
	lengths bool
	cache   cacheOpts
}

// drawCommand creates the draw command.
func (c *CLI) drawCommand() *cobra.Command {
	var opts drawOpts

	cmd := &cobra.Command{
		Use:   "draw <tree>",
		Short: "Render a tree as SVG, DOT, PDF or PNG",
		Long: `Draw renders a Newick tree file, or the best tree of a search result
(.result.json), with Graphviz. PDF and PNG output needs rsvg-convert.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDraw(cmd.Context(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file (default: input path with the format extension)")
	f.StringVarP(&opts.format, "format", "f", render.FormatSVG, "output format: "+strings.Join(render.Formats, ", "))
	f.StringVar(&opts.layout, "layout", render.LayoutNeato, "layout: neato (unrooted), dot (rooted)")
	f.BoolVar(&opts.lengths, "lengths", false, "label edges with branch lengths")
	f.BoolVar(&opts.cache.noCache, "no-cache", false, "disable the render cache")
	f.StringVar(&opts.cache.redisURL, "redis", "", "cache drawings in Redis at this URL")
	f.StringVar(&opts.cache.namespace, "cache-namespace", "", "prefix cache keys with this namespace")

	return cmd
}

func (c *CLI) runDraw(ctx context.Context, path string, opts drawOpts) error {
	nwk, err := readTree(path)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = drawPath(path, opts.format)
	}

	store, err := newCache(ctx, opts.cache)
	if err != nil {
		return err
	}
	defer store.Close()

	spin := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", opts.format))
	spin.Start()
	data, cached, err := render.Draw(ctx, store, newKeyer(opts.cache), nwk, opts.format, render.Options{
		Layout:  opts.layout,
		Lengths: opts.lengths,
	})
	spin.Stop()
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, data, 0644); err != nil {
		return err
	}
	if cached {
		printSuccess("Drawing %s", styleCached.Render(iconCached))
	} else {
		printSuccess("Drawing %s", styleComputed.Render(iconFresh))
	}
	printFile(output)
	return nil
}

// readTree returns the Newick string in a tree file or the best tree of a
// search result file.
func readTree(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFileNotFound, err, "read tree")
	}
	if filepath.Ext(path) == ".json" {
		res, err := decodeResult(data)
		if err != nil {
			return "", err
		}
		return res.Newick, nil
	}
	nwk := strings.TrimSpace(string(data))
	if nwk == "" {
		return "", errors.New(errors.ErrCodeInvalidTree, "%s is empty", path)
	}
	// Tree lists hold one tree per line; draw the first.
	if i := strings.IndexByte(nwk, '\n'); i >= 0 {
		nwk = strings.TrimSpace(nwk[:i])
	}
	return nwk, nil
}

// decodeResult parses a search result file.
func decodeResult(data []byte) (*resultFile, error) {
	var res resultFile
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse result file")
	}
	if res.Result == nil || res.Newick == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "result file has no tree")
	}
	return &res, nil
}

// drawPath replaces the extension of path with format, keeping the prefix
// a search wrote its files under.
func drawPath(path, format string) string {
	base := path
	for _, suffix := range []string{suffixResult, suffixTree} {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			return base + "." + format
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + format
}
