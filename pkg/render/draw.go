package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"

	"github.com/matzehuels/iqpnni/pkg/cache"
	"github.com/matzehuels/iqpnni/pkg/errors"
	"github.com/matzehuels/iqpnni/pkg/newick"
	"github.com/matzehuels/iqpnni/pkg/observability"
)

// Output formats.
const (
	FormatSVG = "svg"
	FormatDOT = "dot"
	FormatPDF = "pdf"
	FormatPNG = "png"
)

// Formats lists the supported output formats.
var Formats = []string{FormatSVG, FormatDOT, FormatPDF, FormatPNG}

// pngScale renders PNGs at twice the SVG resolution.
const pngScale = 2.0

// Draw renders a Newick tree in format and reports whether the drawing came
// from c. Leaf labels are taken from the Newick string itself. A nil cache
// disables caching.
func Draw(ctx context.Context, c cache.Cache, k cache.Keyer, nwk, format string, opts Options) ([]byte, bool, error) {
	if !slices.Contains(Formats, format) {
		return nil, false, errors.New(errors.ErrCodeUnsupported, "unknown format %q (want one of %v)", format, Formats)
	}
	if opts.Layout == "" {
		opts.Layout = LayoutNeato
	}
	if opts.Layout != LayoutNeato && opts.Layout != LayoutDot {
		return nil, false, errors.New(errors.ErrCodeInvalidInput, "unknown layout %q (want %s or %s)", opts.Layout, LayoutNeato, LayoutDot)
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if k == nil {
		k = cache.NewDefaultKeyer()
	}

	key := k.RenderKey(cache.Hash([]byte(nwk)), cache.RenderKeyOpts{
		Format:  format,
		Lengths: opts.Lengths,
		Layout:  opts.Layout,
	})
	hooks := observability.Cache()
	if data, hit, err := c.Get(ctx, key); err == nil && hit {
		hooks.OnCacheHit(ctx, key)
		return data, true, nil
	}
	hooks.OnCacheMiss(ctx, key)

	labels, err := newick.Labels(nwk)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidTree, err, "parse tree")
	}
	t, err := newick.Parse(nwk, labels)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidTree, err, "parse tree")
	}

	data := []byte(ToDOT(t, labels, opts))
	if format != FormatDOT {
		if data, err = RenderSVG(ctx, string(data), opts.Layout); err != nil {
			return nil, false, err
		}
		switch format {
		case FormatPDF:
			data, err = rsvgConvert(data, "pdf")
		case FormatPNG:
			data, err = rsvgConvert(data, "png", "-z", fmt.Sprintf("%.2f", pngScale))
		}
		if err != nil {
			return nil, false, err
		}
	}

	if err := c.Set(ctx, key, data, cache.RenderTTL); err == nil {
		hooks.OnCacheSet(ctx, key, len(data))
	}
	return data, false, nil
}

// rsvgConvert converts SVG to another format with the external
// rsvg-convert tool from librsvg.
func rsvgConvert(svg []byte, format string, extraArgs ...string) ([]byte, error) {
	if _, err := exec.LookPath("rsvg-convert"); err != nil {
		return nil, errors.New(errors.ErrCodeUnsupported,
			"%s export requires librsvg. Install with:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin", format)
	}

	args := append([]string{"-f", format}, extraArgs...)
	cmd := exec.Command("rsvg-convert", args...)
	cmd.Stdin = bytes.NewReader(svg)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rsvg-convert: %v: %s", err, errBuf.String())
	}
	return out.Bytes(), nil
}
