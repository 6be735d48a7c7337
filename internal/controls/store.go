// SPDX-License-Identifier: MIT
package controls

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store guards the live controls. Writers are the UI and network handlers;
// the renderer reads once per frame.
type Store struct {
	mu      sync.RWMutex
	c       Controls
	rng     *rand.Rand
	version uint64
}

// NewStore returns a Store holding initial. seed drives Randomize.
func NewStore(initial Controls, seed int64) *Store {
	initial.Clamp()
	return &Store{c: initial, rng: rand.New(rand.NewSource(seed))}
}

// Get returns a copy of the current controls.
func (s *Store) Get() Controls {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c
}

// Version increases on every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set replaces the controls, clamping them first.
func (s *Store) Set(c Controls) {
	c.Clamp()
	s.mu.Lock()
	s.c = c
	s.version++
	s.mu.Unlock()
}

// Update applies fn to the controls under the write lock and clamps the result.
func (s *Store) Update(fn func(*Controls)) Controls {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.c)
	s.c.Clamp()
	s.version++
	return s.c
}

// Merge applies a partial update by name.
func (s *Store) Merge(partial map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.c
	if err := next.Merge(partial); err != nil {
		return err
	}
	s.c = next
	s.version++
	return nil
}

// Randomize draws a new look from the store's generator.
func (s *Store) Randomize() Controls {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Randomize(s.rng)
	s.version++
	return s.c
}

// Reset restores the defaults.
func (s *Store) Reset() { s.Set(Defaults()) }

// LoadFile reads controls from a YAML file, starting from the defaults so the
// file may list only the controls it changes.
func LoadFile(path string) (Controls, error) {
	c := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read controls file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse controls file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid controls file: %w", err)
	}
	return c, nil
}

// SaveFile writes controls as YAML.
func SaveFile(path string, c Controls) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write controls file: %w", err)
	}
	return nil
}
