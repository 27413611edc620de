// Package noise implements optional photographic-grain noise synthesis:
// the encoder records a small parameter set, and the decoder regenerates
// pseudo-random Gaussian samples deterministically from a seed via
// Box-Muller driven by a fast xorshift64*-like PRNG.
package noise

import (
	"math"

	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
)

// xorshiftMultiplier is the fixed state-multiplier constant for the
// xorshift64*-like generator the decoder uses to reconstruct noise
// deterministically from a seed.
const xorshiftMultiplier = 0x2545F4914F6CDD1D

// Params controls noise synthesis for a frame.
type Params struct {
	Amplitude    float64 // 0..1
	LumaStrength float64 // 0..2
	ChromaStrength float64 // 0..2
	Seed         uint64 // 0 means time-based seeding at the caller; unsuitable for reproducible output
}

// ErrInvalidParams is returned when Params fail validation.
var ErrInvalidParams = errors.New("noise: invalid parameters")

// Validate checks Params are within their documented ranges.
func (p Params) Validate() error {
	if p.Amplitude < 0 || p.Amplitude > 1 {
		return errors.Wrapf(ErrInvalidParams, "amplitude %v out of [0,1]", p.Amplitude)
	}
	if p.LumaStrength < 0 || p.LumaStrength > 2 {
		return errors.Wrapf(ErrInvalidParams, "luma strength %v out of [0,2]", p.LumaStrength)
	}
	if p.ChromaStrength < 0 || p.ChromaStrength > 2 {
		return errors.Wrapf(ErrInvalidParams, "chroma strength %v out of [0,2]", p.ChromaStrength)
	}
	return nil
}

// WriteParams writes p to w.
func WriteParams(w *bio.Writer, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := w.WriteBits(uint32(p.Amplitude*0xFFFF), 16); err != nil {
		return errors.Wrap(err, "write amplitude")
	}
	if err := w.WriteBits(uint32(p.LumaStrength/2*0xFFFF), 16); err != nil {
		return errors.Wrap(err, "write luma strength")
	}
	if err := w.WriteBits(uint32(p.ChromaStrength/2*0xFFFF), 16); err != nil {
		return errors.Wrap(err, "write chroma strength")
	}
	if err := w.WriteU32BE(uint32(p.Seed >> 32)); err != nil {
		return errors.Wrap(err, "write seed high")
	}
	if err := w.WriteU32BE(uint32(p.Seed)); err != nil {
		return errors.Wrap(err, "write seed low")
	}
	return nil
}

// ReadParams reads Params written by WriteParams.
func ReadParams(r *bio.Reader) (Params, error) {
	var p Params
	amp, err := r.ReadBits(16)
	if err != nil {
		return p, errors.Wrap(err, "read amplitude")
	}
	p.Amplitude = float64(amp) / 0xFFFF

	luma, err := r.ReadBits(16)
	if err != nil {
		return p, errors.Wrap(err, "read luma strength")
	}
	p.LumaStrength = float64(luma) / 0xFFFF * 2

	chroma, err := r.ReadBits(16)
	if err != nil {
		return p, errors.Wrap(err, "read chroma strength")
	}
	p.ChromaStrength = float64(chroma) / 0xFFFF * 2

	hi, err := r.ReadU32BE()
	if err != nil {
		return p, errors.Wrap(err, "read seed high")
	}
	lo, err := r.ReadU32BE()
	if err != nil {
		return p, errors.Wrap(err, "read seed low")
	}
	p.Seed = uint64(hi)<<32 | uint64(lo)
	return p, nil
}

// Generator produces deterministic pseudo-random Gaussian samples from a
// seed, via Box-Muller driven by xorshift64*.
type Generator struct {
	state uint64
	// spare holds the second of each Box-Muller pair so consecutive calls
	// to Next don't waste half the generated entropy.
	spare    float64
	hasSpare bool
}

// NewGenerator returns a Generator seeded with seed. A seed of 0 is
// replaced with a fixed nonzero fallback so the xorshift recurrence never
// gets stuck at the absorbing all-zero state; callers relying on
// reproducible output must supply a nonzero seed themselves (seed 0 is
// documented as time-based seeding at the caller).
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &Generator{state: seed}
}

func (g *Generator) nextUint64() uint64 {
	x := g.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	g.state = x
	return x * xorshiftMultiplier
}

func (g *Generator) nextUniform() float64 {
	// Use the top 53 bits for a uniform float in (0,1], avoiding the
	// asymmetric [0,1) range that would let Box-Muller take log(0).
	v := g.nextUint64() >> 11
	return (float64(v) + 1) / (1 << 53)
}

// Next returns the next standard-normal sample.
func (g *Generator) Next() float64 {
	if g.hasSpare {
		g.hasSpare = false
		return g.spare
	}
	u1 := g.nextUniform()
	u2 := g.nextUniform()
	r := math.Sqrt(-2 * math.Log(u1))
	theta := 2 * math.Pi * u2
	g.spare = r * math.Sin(theta)
	g.hasSpare = true
	return r * math.Cos(theta)
}

// Synthesize fills dst with amplitude-scaled Gaussian noise samples for one
// channel, using strength as the per-channel strength multiplier (luma or
// chroma).
func Synthesize(gen *Generator, dst []float32, amplitude, strength float64) {
	scale := amplitude * strength
	for i := range dst {
		dst[i] = float32(gen.Next() * scale)
	}
}
