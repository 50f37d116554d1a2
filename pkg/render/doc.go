// Package render draws phylogenetic trees.
//
// A tree is first written as Graphviz DOT source by [ToDOT] and then laid
// out and rendered in-process by [RenderSVG], which uses
// [github.com/goccy/go-graphviz]. Two layouts are supported: "neato" draws
// the tree unrooted with edge lengths proportional to branch lengths, and
// "dot" draws it as a left-to-right cladogram rooted at the first taxon.
//
//	dot := render.ToDOT(t, names, render.Options{Layout: render.LayoutNeato})
//	svg, err := render.RenderSVG(ctx, dot, render.LayoutNeato)
//
// [Draw] ties the steps together behind a cache and also exports PDF and
// PNG through the external rsvg-convert tool (from librsvg).
package render
