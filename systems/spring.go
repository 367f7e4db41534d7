// Package systems contains ECS systems for the swarm preview.
package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/tofu/components"
)

// ReferenceAttractK is the attraction constant at which Spring applies
// unscaled. Published snapshots carry their own constant and the spring
// stiffness scales linearly with it.
const ReferenceAttractK = 1.5

// maxStiffness keeps the explicit update stable for large attract_k.
const maxStiffness = 0.5

// SpringSystem pulls every particle toward its target:
//
//	v ← v·damping + (target − p)·stiffness
//	p ← p + v
type SpringSystem struct {
	filter  ecs.Filter3[components.Position, components.Velocity, components.Target]
	Spring  float32
	Damping float32
}

// NewSpringSystem creates a spring system over w.
func NewSpringSystem(w *ecs.World, spring, damping float32) *SpringSystem {
	return &SpringSystem{
		filter:  *ecs.NewFilter3[components.Position, components.Velocity, components.Target](w),
		Spring:  spring,
		Damping: damping,
	}
}

// Stiffness returns the effective spring constant for attractK.
func (s *SpringSystem) Stiffness(attractK float32) float32 {
	k := s.Spring * attractK / ReferenceAttractK
	if k > maxStiffness {
		k = maxStiffness
	}
	if k < 0 {
		k = 0
	}
	return k
}

// Update advances every particle by one tick and returns the mean speed.
func (s *SpringSystem) Update(attractK float32) float32 {
	k := s.Stiffness(attractK)

	var total float64
	var n int
	query := s.filter.Query()
	for query.Next() {
		pos, vel, tgt := query.Get()

		vel.X = vel.X*s.Damping + (tgt.X-pos.X)*k
		vel.Y = vel.Y*s.Damping + (tgt.Y-pos.Y)*k
		pos.X += vel.X
		pos.Y += vel.Y

		total += math.Sqrt(float64(vel.X*vel.X + vel.Y*vel.Y))
		n++
	}
	if n == 0 {
		return 0
	}
	return float32(total / float64(n))
}
