// Terminal viewer - follows a running hub over websocket and renders a
// spring-physics preview of the published targets with half-block pixels.
//
// Usage: go run ./cmd/tofu-tui -url ws://127.0.0.1:8765/ws
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/tofu/components"
	"github.com/pthm-cable/tofu/cycle"
	"github.com/pthm-cable/tofu/hub"
	"github.com/pthm-cable/tofu/palette"
	"github.com/pthm-cable/tofu/swarm"
)

const reconnectDelay = time.Second

// Viewer holds the terminal state.
type Viewer struct {
	screen tcell.Screen
	raster *Raster
	swarm  *swarm.Swarm
	rng    *rand.Rand

	url       string
	connected bool
	lastErr   error
	paused    bool
}

// update is sent by the reader goroutine.
type update struct {
	frame     *hub.Frame
	connected bool
	err       error
}

func NewViewer(screen tcell.Screen, url string, particles int, spring, damping float32) *Viewer {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	w, h := screen.Size()
	return &Viewer{
		screen: screen,
		raster: NewRaster(w, h-1, palette.Default()),
		swarm:  swarm.New(particles, spring, damping, rng),
		rng:    rng,
		url:    url,
	}
}

// apply feeds a received frame to the local swarm.
func (v *Viewer) apply(f *hub.Frame) {
	v.swarm.SetTargets(&cycle.Snapshot{
		Seq:      f.Info.Seq,
		Shape:    f.Info.Name,
		AttractK: f.Info.AttractK,
		Targets:  f.Targets,
	})
}

// handleInput returns false when the viewer should exit.
func (v *Viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				v.paused = !v.paused
			case 's':
				v.swarm.Scatter(v.rng)
			}
		}
	case *tcell.EventResize:
		w, h := v.screen.Size()
		v.raster.Resize(w, h-1)
		v.screen.Sync()
	}
	return true
}

func (v *Viewer) step() {
	if !v.paused {
		v.swarm.Step()
	}
}

func (v *Viewer) draw() {
	v.raster.Clear()
	v.swarm.Each(func(pos components.Position, speed, tint float32) {
		v.raster.Plot(pos.X, pos.Y, speed, tint)
	})
	v.raster.Draw(v.screen, 1)
	v.drawStatus()
	v.screen.Show()
}

func (v *Viewer) drawStatus() {
	w, _ := v.screen.Size()
	status := fmt.Sprintf(" %s | shape %q seq %d | %d particles | residual %.3f | [space] pause [s] scatter [q] quit",
		v.url, v.swarm.Shape(), v.swarm.Seq(), v.swarm.Len(), v.swarm.Residual())
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkSlateGray)
	if !v.connected {
		msg := "connecting"
		if v.lastErr != nil {
			msg = v.lastErr.Error()
		}
		status = fmt.Sprintf(" %s | %s", v.url, msg)
		style = style.Background(tcell.ColorMaroon)
	}
	col := 0
	for _, r := range status {
		if col >= w {
			break
		}
		v.screen.SetContent(col, 0, r, nil, style)
		col++
	}
	for ; col < w; col++ {
		v.screen.SetContent(col, 0, ' ', nil, style)
	}
}

// follow reads frames from the hub until ctx is cancelled, reconnecting
// after errors. Only the latest update is kept when the UI falls behind.
func follow(ctx context.Context, url string, out chan update) {
	send := func(u update) {
		for {
			select {
			case out <- u:
				return
			case <-out:
			case <-ctx.Done():
				return
			}
		}
	}

	for ctx.Err() == nil {
		if err := followOnce(ctx, url, send); err != nil {
			send(update{err: err})
		}
		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
	}
}

// followOnce holds one connection until it fails or ctx is cancelled.
func followOnce(ctx context.Context, url string, send func(update)) error {
	c, err := hub.Dial(ctx, url)
	if err != nil {
		return err
	}
	send(update{connected: true})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
			c.Close()
		}
	}()

	for {
		f, err := c.Next()
		if err != nil {
			return err
		}
		send(update{frame: f, connected: true})
	}
}

func main() {
	url := flag.String("url", "ws://127.0.0.1:8765/ws", "Hub websocket URL")
	particles := flag.Int("particles", 20000, "Local preview particles")
	spring := flag.Float64("spring", 0.08, "Spring constant at attract_k 1.5")
	damping := flag.Float64("damping", 0.85, "Velocity damping per tick")
	fps := flag.Int("fps", 30, "Frames per second")
	flag.Parse()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	v := NewViewer(screen, *url, *particles, float32(*spring), float32(*damping))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan update, 1)
	go follow(ctx, *url, updates)

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(max(*fps, 1)))
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			if !v.handleInput(ev) {
				return
			}
		case u := <-updates:
			v.connected = u.connected
			v.lastErr = u.err
			if u.frame != nil {
				v.apply(u.frame)
			}
		case <-ticker.C:
			v.step()
			v.draw()
		}
	}
}
