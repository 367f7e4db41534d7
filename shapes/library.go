// Package shapes generates goal density grids for named silhouettes.
//
// Every shape is a pure function of its name and the grid size, so the
// library memoizes results for the lifetime of the process. Grids returned
// by Goal are shared and must be treated as read-only.
package shapes

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"

	"github.com/anthonynsimon/bild/blur"

	"github.com/pthm-cable/tofu/field"
)

// ErrUnknownShape is returned for names that are not registered.
var ErrUnknownShape = errors.New("unknown shape")

// Generator renders a raw (unsoftened) silhouette on a size×size grid.
type Generator func(size int) *field.Grid

type entry struct {
	gen   Generator
	sigma float64 // Gaussian softening; 0 disables
}

// Library is a memoizing registry of shape generators.
type Library struct {
	size   int
	logger *slog.Logger

	mu    sync.Mutex
	gens  map[string]entry
	cache map[string]*field.Grid
}

// NewLibrary returns a library rendering size×size grids with every
// built-in shape registered.
func NewLibrary(size int) *Library {
	if size <= 0 {
		panic(fmt.Sprintf("shapes: invalid grid size %d", size))
	}
	l := &Library{
		size:   size,
		logger: slog.Default(),
		gens:   make(map[string]entry),
		cache:  make(map[string]*field.Grid),
	}
	registerBuiltins(l)
	return l
}

// SetLogger replaces the library's logger.
func (l *Library) SetLogger(logger *slog.Logger) {
	l.logger = logger
}

// Size returns the grid edge length.
func (l *Library) Size() int {
	return l.size
}

// Register adds or replaces a shape. sigma is the Gaussian blur applied
// before min-max normalization.
func (l *Library) Register(name string, sigma float64, gen Generator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gens[name] = entry{gen: gen, sigma: sigma}
	delete(l.cache, name)
}

// Has reports whether name is registered.
func (l *Library) Has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.gens[name]
	return ok
}

// Names returns the registered shape names, sorted.
func (l *Library) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.gens))
	for n := range l.gens {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Goal returns the density grid for name, generating it on first use.
func (l *Library) Goal(name string) (*field.Grid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if g, ok := l.cache[name]; ok {
		return g, nil
	}
	e, ok := l.gens[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownShape)
	}

	g := e.gen(l.size)
	if g.W != l.size || g.H != l.size {
		panic(fmt.Sprintf("shapes: %q rendered %dx%d, want %dx%d", name, g.W, g.H, l.size, l.size))
	}
	if e.sigma > 0 {
		g = soften(g, e.sigma)
	}
	g.Normalize()

	l.cache[name] = g
	l.logger.Debug("generated shape", "name", name, "size", l.size, "mass", g.Sum())
	return g, nil
}

// soften blurs g with a Gaussian of the given radius.
func soften(g *field.Grid, sigma float64) *field.Grid {
	img := toGray(g)
	blurred := blur.Gaussian(img, sigma)
	return fromImage(blurred, g.W, g.H)
}

// toGray quantizes a grid (values clamped to [0,1]) to an 8-bit image.
func toGray(g *field.Grid) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.W, g.H))
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			v := min(max(g.At(x, y), 0), 1)
			img.Pix[y*img.Stride+x] = uint8(v*255 + 0.5)
		}
	}
	return img
}

// fromImage reads the red channel of img into a w×h grid scaled to [0,1].
func fromImage(img image.Image, w, h int) *field.Grid {
	g := field.New(w, h)
	b := img.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Set(x, y, float32(r)/0xffff)
		}
	}
	return g
}
