// Package rng provides the seeded random source and the priority-weighted
// selector shared by idle behavior, dialogue variation and battles.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"

	"github.com/nathoo/petcore/types"
)

// RNG wraps math/rand.Rand with deterministic position tracking.
// Position increments with every draw. Safe for concurrent use.
type RNG struct {
	mu   sync.Mutex
	seed int64
	src  *rand.Rand
	pos  int64
}

// NewRNG creates a new deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewSource(seed)),
	}
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a random integer in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos++
	return r.src.Intn(n)
}

// Float64 returns a random float in [0, 1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos++
	return r.src.Float64()
}

// WeightedIndex returns an index chosen by priority-weighted selection.
// Negative weights count as zero. When every weight is zero the choice is
// uniform. A single weight always yields 0. Returns -1 for an empty slice.
func (r *RNG) WeightedIndex(weights []float64) int {
	switch len(weights) {
	case 0:
		return -1
	case 1:
		return 0
	}

	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return r.Intn(len(weights))
	}

	roll := r.Float64() * total
	cumulative := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		last = i
		if cumulative > roll {
			return i
		}
	}
	// Float rounding can leave roll == total; the last weighted entry wins.
	return last
}

// Position returns the number of draws made since creation.
func (r *RNG) Position() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// Select picks one candidate by priority. The index is -1 when items is empty.
func Select[T types.Prioritized](r *RNG, items []T) (T, int) {
	var zero T
	weights := make([]float64, len(items))
	for i, it := range items {
		weights[i] = it.Weight()
	}
	idx := r.WeightedIndex(weights)
	if idx < 0 {
		return zero, -1
	}
	return items[idx], idx
}
