// Package swarm is a local preview of the particle swarm: an ECS world of
// spring-driven particles that follow the published target buffers.
package swarm

import (
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/tofu/components"
	"github.com/pthm-cable/tofu/cycle"
	"github.com/pthm-cable/tofu/systems"
)

// Swarm owns the preview world. It is not safe for concurrent use; the
// render loop drives it.
type Swarm struct {
	world    *ecs.World
	mapper   *ecs.Map4[components.Position, components.Velocity, components.Target, components.Particle]
	retarget *ecs.Filter2[components.Target, components.Particle]
	residual *ecs.Filter2[components.Position, components.Target]
	view     *ecs.Filter3[components.Position, components.Velocity, components.Particle]
	spring   *systems.SpringSystem

	count     int
	seq       int64
	shape     string
	attractK  float32
	meanSpeed float32
}

// New creates n particles scattered uniformly over [-1,1]², each resting
// on its own target. spring and damping are the base spring constants.
func New(n int, spring, damping float32, rng *rand.Rand) *Swarm {
	world := ecs.NewWorld()
	s := &Swarm{
		world:    world,
		mapper:   ecs.NewMap4[components.Position, components.Velocity, components.Target, components.Particle](world),
		retarget: ecs.NewFilter2[components.Target, components.Particle](world),
		residual: ecs.NewFilter2[components.Position, components.Target](world),
		view:     ecs.NewFilter3[components.Position, components.Velocity, components.Particle](world),
		spring:   systems.NewSpringSystem(world, spring, damping),
		count:    n,
		seq:      -1,
		attractK: systems.ReferenceAttractK,
	}

	for i := 0; i < n; i++ {
		x := float32(rng.Float64()*2 - 1)
		y := float32(rng.Float64()*2 - 1)
		pos := components.Position{X: x, Y: y}
		vel := components.Velocity{}
		tgt := components.Target{X: x, Y: y}
		part := components.Particle{Index: int32(i), Tint: rng.Float32()}
		s.mapper.NewEntity(&pos, &vel, &tgt, &part)
	}
	return s
}

// Len returns the number of preview particles.
func (s *Swarm) Len() int {
	return s.count
}

// Shape returns the name of the shape the swarm is heading for.
func (s *Swarm) Shape() string {
	return s.shape
}

// Seq returns the sequence number of the last applied snapshot, or -1.
func (s *Swarm) Seq() int64 {
	return s.seq
}

// MeanSpeed returns the mean particle speed of the last Step.
func (s *Swarm) MeanSpeed() float32 {
	return s.meanSpeed
}

// SetTargets retargets the swarm to snap. When the preview has fewer
// particles than the snapshot, particle i follows target ⌊i·N/n⌋ so the
// preview samples the whole buffer. A snapshot already applied is ignored.
// Returns true if the targets changed.
func (s *Swarm) SetTargets(snap *cycle.Snapshot) bool {
	if snap == nil || snap.Seq == s.seq || snap.Len() == 0 {
		return false
	}
	s.seq = snap.Seq
	s.shape = snap.Shape
	s.attractK = float32(snap.AttractK)

	n := snap.Len()
	query := s.retarget.Query()
	for query.Next() {
		tgt, part := query.Get()
		i := int(part.Index)
		if s.count > n {
			i %= n
		} else {
			i = i * n / s.count
		}
		p := snap.Targets[i]
		tgt.X = float32(p.X)
		tgt.Y = float32(p.Y)
	}
	return true
}

// SetSpring replaces the base spring constant and damping.
func (s *Swarm) SetSpring(spring, damping float32) {
	s.spring.Spring = spring
	s.spring.Damping = damping
}

// Scatter throws every particle to a uniformly random position at rest.
// Targets are kept, so the swarm reassembles on the next steps.
func (s *Swarm) Scatter(rng *rand.Rand) {
	query := s.view.Query()
	for query.Next() {
		pos, vel, _ := query.Get()
		pos.X = float32(rng.Float64()*2 - 1)
		pos.Y = float32(rng.Float64()*2 - 1)
		vel.X, vel.Y = 0, 0
	}
}

// Step advances the spring physics by one tick.
func (s *Swarm) Step() {
	s.meanSpeed = s.spring.Update(s.attractK)
}

// Each calls fn for every particle with its position, speed and tint.
func (s *Swarm) Each(fn func(pos components.Position, speed, tint float32)) {
	query := s.view.Query()
	for query.Next() {
		pos, vel, part := query.Get()
		speed := float32(math.Sqrt(float64(vel.X*vel.X + vel.Y*vel.Y)))
		fn(*pos, speed, part.Tint)
	}
}

// Residual returns the mean distance between particles and their targets.
func (s *Swarm) Residual() float64 {
	var total float64
	var n int
	query := s.residual.Query()
	for query.Next() {
		pos, tgt := query.Get()
		dx := float64(tgt.X - pos.X)
		dy := float64(tgt.Y - pos.Y)
		total += math.Sqrt(dx*dx + dy*dy)
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
