package shapes

import (
	"fmt"
	"image"
	"sync"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/pthm-cable/tofu/field"
)

// glyphSupersample renders glyphs at this multiple of the grid size before
// downsampling, so edges carry fractional coverage.
const glyphSupersample = 4

var (
	boldOnce sync.Once
	boldFont *opentype.Font
	boldErr  error
)

func parsedBold() (*opentype.Font, error) {
	boldOnce.Do(func() {
		boldFont, boldErr = opentype.Parse(gobold.TTF)
	})
	return boldFont, boldErr
}

// glyph renders text centred on the grid in Go Bold, filling about three
// quarters of its height.
func glyph(text string) Generator {
	return func(size int) *field.Grid {
		img, err := renderGlyph(text, size*glyphSupersample)
		if err != nil {
			// The font is embedded; failure here is a build problem.
			panic(fmt.Sprintf("shapes: rendering %q: %v", text, err))
		}
		small := transform.Resize(img, size, size, transform.Linear)
		return fromImage(small, size, size)
	}
}

func renderGlyph(text string, canvas int) (*image.Gray, error) {
	f, err := parsedBold()
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(canvas) * 0.75,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	defer face.Close()

	img := image.NewGray(image.Rect(0, 0, canvas, canvas))
	bounds, _ := font.BoundString(face, text)
	mid := fixed.I(canvas / 2)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot: fixed.Point26_6{
			X: mid - (bounds.Min.X+bounds.Max.X)/2,
			Y: mid - (bounds.Min.Y+bounds.Max.Y)/2,
		},
	}
	d.DrawString(text)
	return img, nil
}
