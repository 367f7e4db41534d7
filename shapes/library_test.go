package shapes

import (
	"errors"
	"testing"

	"github.com/pthm-cable/tofu/field"
)

func TestBuiltinsRender(t *testing.T) {
	l := NewLibrary(48)
	names := l.Names()
	if len(names) < 20 {
		t.Fatalf("only %d shapes registered: %v", len(names), names)
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			g, err := l.Goal(name)
			if err != nil {
				t.Fatalf("Goal: %v", err)
			}
			if g.W != 48 || g.H != 48 {
				t.Fatalf("size %dx%d, want 48x48", g.W, g.H)
			}
			if g.Max() < 0.999 || g.Min() > 0.001 {
				t.Errorf("range [%f, %f], want normalized to [0,1]", g.Min(), g.Max())
			}
			for i, v := range g.Data {
				if v < 0 || v > 1 {
					t.Fatalf("cell %d = %f outside [0,1]", i, v)
				}
			}
			if frac := g.Sum() / float64(len(g.Data)); frac < 0.01 || frac > 0.8 {
				t.Errorf("mean density %f, expected a silhouette", frac)
			}
		})
	}
}

func TestGoalUnknown(t *testing.T) {
	l := NewLibrary(16)
	_, err := l.Goal("dodecahedron")
	if !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("err = %v, want ErrUnknownShape", err)
	}
	if l.Has("dodecahedron") {
		t.Error("Has reported an unknown shape")
	}
}

func TestGoalMemoized(t *testing.T) {
	l := NewLibrary(16)
	calls := 0
	l.Register("dot", 0, func(size int) *field.Grid {
		calls++
		g := field.New(size, size)
		g.Set(size/2, size/2, 1)
		return g
	})

	a, err := l.Goal("dot")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := l.Goal("dot")
	if a != b {
		t.Error("second Goal returned a different grid")
	}
	if calls != 1 {
		t.Errorf("generator ran %d times, want 1", calls)
	}
}

func TestShapeOrientation(t *testing.T) {
	l := NewLibrary(64)

	circle, _ := l.Goal("circle")
	if circle.At(32, 32) < 0.9 || circle.At(1, 1) > 0.1 {
		t.Errorf("circle: centre %f, corner %f", circle.At(32, 32), circle.At(1, 1))
	}

	// The top tip of star5 sits above the centre; straight below is a valley.
	star, _ := l.Goal("star5")
	above := star.At(32, 32-20)
	below := star.At(32, 32+20)
	if above <= below {
		t.Errorf("star5: above %f, below %f; tip should point up", above, below)
	}

	// The triangle's base is at the bottom, so a low row is wider.
	tri, _ := l.Goal("triangle")
	if tri.At(14, 46) <= tri.At(14, 16) {
		t.Errorf("triangle: low-left %f, high-left %f", tri.At(14, 46), tri.At(14, 16))
	}
}

func TestGlyphCentred(t *testing.T) {
	l := NewLibrary(64)
	g, err := l.Goal("O")
	if err != nil {
		t.Fatal(err)
	}
	var mx, my, m float64
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			v := float64(g.At(x, y))
			mx += v * (float64(x) + 0.5)
			my += v * (float64(y) + 0.5)
			m += v
		}
	}
	cx, cy := mx/m, my/m
	if cx < 28 || cx > 36 || cy < 28 || cy > 36 {
		t.Errorf("glyph centroid (%.1f, %.1f), want near (32, 32)", cx, cy)
	}
	// The counter of the O is hollow.
	if g.At(32, 32) > 0.5 {
		t.Errorf("centre of O = %f, want hollow", g.At(32, 32))
	}
}
