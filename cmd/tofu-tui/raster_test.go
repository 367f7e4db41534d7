package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/tofu/palette"
)

func TestRasterPixelMapping(t *testing.T) {
	// 40 columns × 10 rows = 40×20 pixels; the square is 20 wide, centred.
	r := NewRaster(40, 10, palette.Default())

	testCases := []struct {
		name   string
		x, y   float32
		px, py int
		ok     bool
	}{
		{"top left", -1, 1, 10, 0, true},
		{"centre", 0, 0, 20, 10, true},
		{"just inside bottom right", 0.99, -0.99, 29, 19, true},
		{"right edge excluded", 1, 0, 0, 0, false},
		{"outside", -1.5, 0, 0, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			px, py, ok := r.pixel(tc.x, tc.y)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && (px != tc.px || py != tc.py) {
				t.Errorf("pixel = (%d, %d), want (%d, %d)", px, py, tc.px, tc.py)
			}
		})
	}
}

func TestRasterColorBrightensWithCount(t *testing.T) {
	r := NewRaster(10, 5, palette.Default())
	empty := r.Color(5, 5)

	r.Plot(0, 0, 0, 0.5)
	one := r.Color(5, 5)
	for i := 0; i < 10; i++ {
		r.Plot(0, 0, 0, 0.5)
	}
	many := r.Color(5, 5)

	lum := func(c [3]uint8) int { return int(c[0]) + int(c[1]) + int(c[2]) }
	e := lum([3]uint8{empty.R, empty.G, empty.B})
	o := lum([3]uint8{one.R, one.G, one.B})
	m := lum([3]uint8{many.R, many.G, many.B})
	if !(e < o && o < m) {
		t.Errorf("brightness not increasing: empty %d, one %d, many %d", e, o, m)
	}

	r.Clear()
	if got := r.Color(5, 5); got != empty {
		t.Errorf("after clear color = %v, want %v", got, empty)
	}
}

func TestRasterDraw(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	defer screen.Fini()
	screen.SetSize(20, 11)

	r := NewRaster(20, 10, palette.Default())
	// Pixel (10, 10) is the upper half of terminal row 5.
	r.Plot(0, 0, 0, 0.5)
	r.Draw(screen, 1)

	mainc, _, style, _ := screen.GetContent(10, 6)
	if mainc != '▀' {
		t.Fatalf("rune = %q, want upper half block", mainc)
	}
	fg, bg, _ := style.Decompose()
	if fg == bg {
		t.Error("lit pixel drawn in background color")
	}

	_, _, style, _ = screen.GetContent(0, 1)
	fg, bg, _ = style.Decompose()
	if fg != bg {
		t.Error("empty cell should have matching halves")
	}
}
