// Package components defines ECS components for the swarm preview.
package components

// Position is a particle's location in [-1,1]² (+y up).
type Position struct {
	X, Y float32
}

// Velocity is the per-tick displacement.
type Velocity struct {
	X, Y float32
}

// Target is where the particle's spring pulls it.
type Target struct {
	X, Y float32
}

// Particle holds per-particle identity.
type Particle struct {
	Index int32   // slot in the published target buffer
	Tint  float32 // hue offset in [0,1), fixed for the particle's life
}
