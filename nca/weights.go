package nca

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// Weights is the on-disk layout written by the training exporter:
// w1 is hidden×(3C+8), w2 is C×hidden. b2 may be omitted.
type Weights struct {
	Channels int         `json:"channels"`
	Hidden   int         `json:"hidden"`
	W1       [][]float32 `json:"w1"`
	B1       []float32   `json:"b1"`
	W2       [][]float32 `json:"w2"`
	B2       []float32   `json:"b2,omitempty"`
}

// Net converts the exported weights into an UpdateNet.
func (w *Weights) Net() (*UpdateNet, error) {
	if w.Channels <= 0 || w.Hidden <= 0 {
		return nil, fmt.Errorf("invalid dimensions channels=%d hidden=%d", w.Channels, w.Hidden)
	}
	in := InputSize(w.Channels)
	n := &UpdateNet{
		C:      w.Channels,
		Hidden: w.Hidden,
		In:     in,
		W1:     make([]float32, 0, w.Hidden*in),
		B1:     w.B1,
		W2:     make([]float32, 0, w.Channels*w.Hidden),
		B2:     w.B2,
	}
	if len(w.W1) != w.Hidden {
		return nil, fmt.Errorf("w1 has %d rows, want %d", len(w.W1), w.Hidden)
	}
	for i, row := range w.W1 {
		if len(row) != in {
			return nil, fmt.Errorf("w1 row %d has %d values, want %d", i, len(row), in)
		}
		n.W1 = append(n.W1, row...)
	}
	if len(w.W2) != w.Channels {
		return nil, fmt.Errorf("w2 has %d rows, want %d", len(w.W2), w.Channels)
	}
	for i, row := range w.W2 {
		if len(row) != w.Hidden {
			return nil, fmt.Errorf("w2 row %d has %d values, want %d", i, len(row), w.Hidden)
		}
		n.W2 = append(n.W2, row...)
	}
	if n.B2 == nil {
		n.B2 = make([]float32, w.Channels)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// LoadWeights reads pretrained weights from path. An empty path or a
// missing file is not an error: it returns (nil, nil) and the caller keeps
// the untrained identity network. A file that exists but cannot be parsed
// is an error.
func LoadWeights(path string) (*UpdateNet, error) {
	if path == "" {
		slog.Info("nca running in untrained mode")
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("no nca weights found, using untrained model", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}

	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing weights %s: %w", path, err)
	}
	n, err := w.Net()
	if err != nil {
		return nil, fmt.Errorf("weights %s: %w", path, err)
	}
	slog.Info("loaded nca weights", "path", path, "channels", n.C, "hidden", n.Hidden)
	return n, nil
}
