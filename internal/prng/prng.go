// Package prng provides the seedable generator and string hash that make
// spawn points reproducible per device.
//
// Neither function is suitable for anything that needs unpredictability:
// seeds are derived from public identifiers and the generator is trivially
// invertible. Use crypto/rand for tokens and secrets.
package prng

import "unicode/utf16"

// HashToSeed hashes s with the 31-multiplier string hash over its UTF-16 code
// units, wrapping at 32 bits, and returns the absolute value. The result is
// stable across platforms and runs.
func HashToSeed(s string) uint32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(u)
	}
	if h < 0 {
		// -MinInt32 overflows int32 but fits uint32.
		return uint32(-int64(h))
	}
	return uint32(h)
}

// Source is a mulberry32 generator. The Nth value is a pure function of the
// seed and N. A Source is not safe for concurrent use.
type Source struct {
	state uint32
}

// New returns a Source seeded with seed.
func New(seed uint32) *Source {
	return &Source{state: seed}
}

// Uint32 advances the generator and returns the next raw 32-bit value.
func (s *Source) Uint32() uint32 {
	s.state += 0x6D2B79F5
	t := s.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return t ^ t>>14
}

// Float64 returns the next value in [0, 1).
func (s *Source) Float64() float64 {
	return float64(s.Uint32()) / 4294967296
}

// Between returns the next value scaled into [min, max).
func (s *Source) Between(min, max float64) float64 {
	return s.Float64()*(max-min) + min
}
