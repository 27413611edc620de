package noise

import (
	"bytes"
	"math"
	"testing"

	"github.com/gojxl/jxl/internal/bio"
)

func TestParamsRoundTrip(t *testing.T) {
	p := Params{Amplitude: 0.5, LumaStrength: 1.25, ChromaStrength: 0.75, Seed: 123456789}
	var buf bytes.Buffer
	w := bio.NewWriter(&buf)
	if err := WriteParams(w, p); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := bio.NewReader(&buf)
	got, err := ReadParams(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Seed != p.Seed {
		t.Errorf("seed = %d, want %d", got.Seed, p.Seed)
	}
	if math.Abs(got.Amplitude-p.Amplitude) > 1e-4 {
		t.Errorf("amplitude = %v, want %v", got.Amplitude, p.Amplitude)
	}
	if math.Abs(got.LumaStrength-p.LumaStrength) > 1e-3 {
		t.Errorf("luma strength = %v, want %v", got.LumaStrength, p.LumaStrength)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	if err := (Params{Amplitude: 2}).Validate(); err == nil {
		t.Error("expected error for amplitude > 1")
	}
	if err := (Params{LumaStrength: 3}).Validate(); err == nil {
		t.Error("expected error for luma strength > 2")
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	g1 := NewGenerator(42)
	g2 := NewGenerator(42)
	for i := 0; i < 100; i++ {
		a, b := g1.Next(), g2.Next()
		if a != b {
			t.Fatalf("sample %d diverged: %v != %v", i, a, b)
		}
	}
}

func TestGeneratorDifferentSeedsDiverge(t *testing.T) {
	g1 := NewGenerator(1)
	g2 := NewGenerator(2)
	same := true
	for i := 0; i < 10; i++ {
		if g1.Next() != g2.Next() {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different seeds to produce different sequences")
	}
}

func TestGeneratorZeroSeedDoesNotStick(t *testing.T) {
	g := NewGenerator(0)
	v := g.Next()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		t.Fatalf("generator produced invalid sample from zero seed: %v", v)
	}
}

func TestSynthesizeScalesByAmplitudeAndStrength(t *testing.T) {
	gen := NewGenerator(7)
	dst := make([]float32, 1000)
	Synthesize(gen, dst, 0, 1)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0 for zero amplitude", i, v)
		}
	}
}

func TestGeneratorRoughlyStandardNormal(t *testing.T) {
	g := NewGenerator(99)
	var sum, sumSq float64
	const n = 20000
	for i := 0; i < n; i++ {
		v := g.Next()
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if math.Abs(mean) > 0.1 {
		t.Errorf("mean = %v, want close to 0", mean)
	}
	if math.Abs(variance-1) > 0.2 {
		t.Errorf("variance = %v, want close to 1", variance)
	}
}
