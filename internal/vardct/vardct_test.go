package vardct

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
)

func TestEncodeDecodeFrameRoundTripApprox(t *testing.T) {
	width, height := 16, 16
	opts := Options{Distance: 1.0, Width: width, Height: height}

	src := make([]float32, width*height)
	rng := rand.New(rand.NewSource(7))
	for i := range src {
		src[i] = float32(rng.Intn(256))
	}
	ch := Channel{Data: append([]float32{}, src...)}

	var buf rawBuffer
	w := bio.NewWriter(&buf)
	if err := EncodeFrame(w, []Channel{ch}, opts); err != nil {
		t.Fatalf("encode: %v", err)
	}
	w.FlushByte()

	out := Channel{Data: make([]float32, width*height)}
	r := bio.NewReader(&buf)
	if err := DecodeFrame(r, []Channel{out}, opts); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var maxDiff float32
	for i := range src {
		d := out.Data[i] - src[i]
		if d < 0 {
			d = -d
		}
		if d > maxDiff {
			maxDiff = d
		}
	}
	// A small distance (fine quantization) should keep reconstruction
	// close to the source; VarDCT is lossy so exact equality isn't
	// expected.
	if maxDiff > 40 {
		t.Errorf("max reconstruction diff = %v, want <= 40 at distance=1.0", maxDiff)
	}
}

func TestEncodeDecodeFrameAdaptiveQuant(t *testing.T) {
	width, height := 16, 8
	opts := Options{Distance: 1.0, Width: width, Height: height, AdaptiveQuant: true, AdaptiveK: 0.08}

	src := make([]float32, width*height)
	for i := range src {
		src[i] = float32((i * 7) % 256)
	}
	ch := Channel{Data: append([]float32{}, src...)}

	var buf rawBuffer
	w := bio.NewWriter(&buf)
	if err := EncodeFrame(w, []Channel{ch}, opts); err != nil {
		t.Fatalf("encode: %v", err)
	}
	w.FlushByte()

	out := Channel{Data: make([]float32, width*height)}
	r := bio.NewReader(&buf)
	if err := DecodeFrame(r, []Channel{out}, opts); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var maxDiff float32
	for i := range src {
		d := out.Data[i] - src[i]
		if d < 0 {
			d = -d
		}
		if d > maxDiff {
			maxDiff = d
		}
	}
	if maxDiff > 60 {
		t.Errorf("max reconstruction diff = %v, want <= 60", maxDiff)
	}
}

func TestScaleByteRoundTrip(t *testing.T) {
	for _, s := range []float32{0.5, 0.75, 1.0, 1.5, 2.0} {
		idx := quantizeScale(s)
		got := dequantizeScale(idx)
		if math.Abs(float64(got-s)) > 0.01 {
			t.Errorf("scale %v round trip got %v", s, got)
		}
	}
}

func TestEncodeDecodeFrameUseANS(t *testing.T) {
	width, height := 16, 16
	src := make([]float32, width*height)
	rng := rand.New(rand.NewSource(11))
	for i := range src {
		src[i] = float32(rng.Intn(256))
	}

	encodeWith := func(useANS bool) ([]byte, Channel) {
		opts := Options{Distance: 1.0, Width: width, Height: height, UseANS: useANS}
		ch := Channel{Data: append([]float32{}, src...)}

		var buf rawBuffer
		w := bio.NewWriter(&buf)
		if err := EncodeFrame(w, []Channel{ch}, opts); err != nil {
			t.Fatalf("encode (UseANS=%v): %v", useANS, err)
		}
		w.FlushByte()

		out := Channel{Data: make([]float32, width*height)}
		r := bio.NewReader(&buf)
		if err := DecodeFrame(r, []Channel{out}, opts); err != nil {
			t.Fatalf("decode (UseANS=%v): %v", useANS, err)
		}
		return buf.data, out
	}

	rleBytes, rleOut := encodeWith(false)
	ansBytes, ansOut := encodeWith(true)

	if bytesEqual(rleBytes, ansBytes) {
		t.Error("UseANS=true produced the same bitstream as UseANS=false")
	}

	var rleDiff, ansDiff float32
	for i := range src {
		if d := absF32(rleOut.Data[i] - src[i]); d > rleDiff {
			rleDiff = d
		}
		if d := absF32(ansOut.Data[i] - src[i]); d > ansDiff {
			ansDiff = d
		}
	}
	if rleDiff > 40 {
		t.Errorf("RLE path max reconstruction diff = %v, want <= 40", rleDiff)
	}
	if ansDiff > 40 {
		t.Errorf("ANS path max reconstruction diff = %v, want <= 40", ansDiff)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestROIWeightInsideVsOutside(t *testing.T) {
	roi := &ROI{X: 0, Y: 0, W: 16, H: 16, Boost: 50, FeatherRadius: 0}
	inside := roiWeight(0, 0, roi)
	outside := roiWeight(10, 10, roi)
	if inside >= outside {
		t.Errorf("inside weight %v should be smaller (finer) than outside %v", inside, outside)
	}
}

func TestExtractStoreBlockPartialEdge(t *testing.T) {
	width, height := 5, 5
	plane := make([]float32, width*height)
	for i := range plane {
		plane[i] = float32(i)
	}
	block := make([]float32, 64)
	extractBlock(plane, width, height, 0, 0, block)
	if block[4] != 4 {
		t.Errorf("block[4] = %v, want 4", block[4])
	}
	if block[5] != 0 {
		t.Errorf("block[5] (out of bounds column) = %v, want 0", block[5])
	}

	dst := make([]float32, width*height)
	storeBlock(block, dst, width, height, 0, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if dst[y*width+x] != plane[y*width+x] {
				t.Errorf("(%d,%d): got %v, want %v", x, y, dst[y*width+x], plane[y*width+x])
			}
		}
	}
}

// rawBuffer mirrors the minimal io.Reader/io.Writer byte buffer used
// across the internal packages for self-contained bitstream tests.
type rawBuffer struct {
	data []byte
	pos  int
}

func (b *rawBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *rawBuffer) Read(p []byte) (int, error) {
	n := copy(p, b.data[b.pos:])
	b.pos += n
	if n == 0 && len(p) > 0 {
		return 0, errors.New("vardct test: read past end of buffer")
	}
	return n, nil
}
