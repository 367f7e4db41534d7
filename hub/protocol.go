// Package hub fans published particle targets out to websocket clients.
//
// Each publication is sent as two messages: a JSON text frame describing
// the shape, then a binary frame of little-endian float32 pairs
// x0, y0, x1, y1, ... in [-1,1].
package hub

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pthm-cable/tofu/cycle"
)

// MsgShapeInfo is the type tag of the metadata frame.
const MsgShapeInfo = "shape_info"

// ShapeInfo precedes every binary target frame.
type ShapeInfo struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	AttractK float64 `json:"attract_k"`
	Count    int     `json:"count"`
	Seq      int64   `json:"seq"`
}

// Health is the body served on "/".
type Health struct {
	Status        string `json:"status"`
	Shape         string `json:"shape"`
	Clients       int    `json:"clients"`
	ParticleCount int    `json:"particle_count"`
}

// frames is one publication encoded for the wire. Encoded once, shared by
// every client.
type frames struct {
	info    []byte
	targets []byte
}

func encode(s *cycle.Snapshot) (*frames, error) {
	info, err := json.Marshal(ShapeInfo{
		Type:     MsgShapeInfo,
		Name:     s.Shape,
		AttractK: s.AttractK,
		Count:    s.Len(),
		Seq:      s.Seq,
	})
	if err != nil {
		return nil, err
	}
	return &frames{info: info, targets: EncodeTargets(s.Flat())}, nil
}

// EncodeTargets packs flat coordinates as little-endian float32.
func EncodeTargets(flat []float32) []byte {
	b := make([]byte, 4*len(flat))
	for i, v := range flat {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

// DecodeTargets is the inverse of EncodeTargets.
func DecodeTargets(b []byte) ([]float32, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("target frame of %d bytes is not a whole number of points", len(b))
	}
	flat := make([]float32, len(b)/4)
	for i := range flat {
		flat[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return flat, nil
}
