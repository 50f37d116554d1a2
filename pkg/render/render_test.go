package render

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/iqpnni/pkg/cache"
	"github.com/matzehuels/iqpnni/pkg/errors"
	"github.com/matzehuels/iqpnni/pkg/newick"
)

const sample = "((A:0.1,B:0.2):0.05,(C:0.3,D:0.1):0.07,E:0.4);"

func TestToDOT(t *testing.T) {
	names, err := newick.Labels(sample)
	if err != nil {
		t.Fatal(err)
	}
	tr, err := newick.Parse(sample, names)
	if err != nil {
		t.Fatal(err)
	}

	dot := ToDOT(tr, names, Options{Lengths: true})
	for _, want := range []string{"graph T {", `label="A"`, `label="E"`, `label="0.4"`, "len="} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT lacks %q:\n%s", want, dot)
		}
	}
	if got := strings.Count(dot, " -- "); got != 7 {
		t.Errorf("%d edges, want 7", got)
	}

	dot = ToDOT(tr, nil, Options{Layout: LayoutDot})
	if !strings.Contains(dot, "rankdir=LR") || strings.Contains(dot, "len=") {
		t.Errorf("dot layout output:\n%s", dot)
	}
	if !strings.Contains(dot, `label="0"`) {
		t.Error("leaves without names should be labelled by id")
	}
}

func TestDrawCachesDOT(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	first, hit, err := Draw(ctx, c, nil, sample, FormatDOT, Options{})
	if err != nil || hit {
		t.Fatalf("first draw: hit=%v err=%v", hit, err)
	}
	second, hit, err := Draw(ctx, c, nil, sample, FormatDOT, Options{})
	if err != nil || !hit {
		t.Fatalf("second draw: hit=%v err=%v", hit, err)
	}
	if string(first) != string(second) {
		t.Error("cached drawing differs")
	}
	if _, hit, _ := Draw(ctx, c, nil, sample, FormatDOT, Options{Lengths: true}); hit {
		t.Error("different options hit the cache")
	}
}

func TestDrawRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	if _, _, err := Draw(ctx, nil, nil, sample, "gif", Options{}); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("format: err = %v", err)
	}
	if _, _, err := Draw(ctx, nil, nil, sample, FormatSVG, Options{Layout: "circo"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("layout: err = %v", err)
	}
	if _, _, err := Draw(ctx, nil, nil, "((A,B),(C,A),D);", FormatDOT, Options{}); !errors.Is(err, errors.ErrCodeInvalidTree) {
		t.Errorf("duplicate taxon: err = %v", err)
	}
}

func TestRenderSVG(t *testing.T) {
	ctx := context.Background()
	for _, layout := range []string{LayoutNeato, LayoutDot} {
		svg, _, err := Draw(ctx, nil, nil, sample, FormatSVG, Options{Layout: layout})
		if err != nil {
			t.Fatalf("%s: %v", layout, err)
		}
		s := string(svg)
		if !strings.Contains(s, "<svg") || !strings.Contains(s, "viewBox=\"0 0 ") {
			t.Errorf("%s: not a normalized SVG: %.200s", layout, s)
		}
	}
}
