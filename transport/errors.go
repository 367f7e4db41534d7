// Package transport turns a grown density field into per-particle targets.
//
// The full N-particle problem is too large to solve directly, so both sides
// are reduced to K representatives: K particles drawn from the current
// targets and K points importance-sampled from the density. An exact
// assignment between the two sets is then extended back to all N particles
// through a nearest-representative lookup, with a little Gaussian jitter so
// particles sharing a representative do not stack on one point.
package transport

import "errors"

var (
	// ErrInsufficientSourcePoints is returned when more representatives are
	// requested than there are particles to draw from.
	ErrInsufficientSourcePoints = errors.New("insufficient source points")

	// ErrSolverNumerical is returned when the cost matrix cannot be solved,
	// e.g. because a coordinate is NaN or infinite. A fresh sample may
	// succeed.
	ErrSolverNumerical = errors.New("transport solver numerical failure")

	// ErrSizeMismatch is returned when the two representative sets differ
	// in length.
	ErrSizeMismatch = errors.New("representative set sizes differ")
)
