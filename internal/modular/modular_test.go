package modular

import (
	"math/rand"
	"testing"

	"github.com/gojxl/jxl/internal/bio"
)

func TestEncodeDecodeFrameSingleChannel(t *testing.T) {
	w, h := 6, 5
	src := make([]int32, w*h)
	rng := rand.New(rand.NewSource(1))
	for i := range src {
		src[i] = int32(rng.Intn(256))
	}

	enc := Channel{Width: w, Height: h, Data: append([]int32{}, src...)}
	var buf rawBuffer
	writer := bio.NewWriter(&buf)
	if err := EncodeFrame(writer, []Channel{enc}, Options{MaxSample: 255}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	writer.FlushByte()

	dec := Channel{Width: w, Height: h, Data: make([]int32, w*h)}
	reader := bio.NewReader(&buf)
	if err := DecodeFrame(reader, []Channel{dec}, Options{MaxSample: 255}); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for i := range src {
		if dec.Data[i] != src[i] {
			t.Errorf("sample %d: got %d, want %d", i, dec.Data[i], src[i])
		}
	}
}

func TestEncodeDecodeFrameWithRCT(t *testing.T) {
	w, h := 4, 4
	rng := rand.New(rand.NewSource(2))
	r := make([]int32, w*h)
	g := make([]int32, w*h)
	b := make([]int32, w*h)
	for i := range r {
		r[i] = int32(rng.Intn(65536))
		g[i] = int32(rng.Intn(65536))
		b[i] = int32(rng.Intn(65536))
	}
	origR, origG, origB := append([]int32{}, r...), append([]int32{}, g...), append([]int32{}, b...)

	channels := []Channel{
		{Width: w, Height: h, Data: append([]int32{}, r...)},
		{Width: w, Height: h, Data: append([]int32{}, g...)},
		{Width: w, Height: h, Data: append([]int32{}, b...)},
	}
	opts := Options{UseRCT: true, MaxSample: 65535}

	var buf rawBuffer
	writer := bio.NewWriter(&buf)
	if err := EncodeFrame(writer, channels, opts); err != nil {
		t.Fatalf("encode: %v", err)
	}
	writer.FlushByte()

	outChannels := []Channel{
		{Width: w, Height: h, Data: make([]int32, w*h)},
		{Width: w, Height: h, Data: make([]int32, w*h)},
		{Width: w, Height: h, Data: make([]int32, w*h)},
	}
	reader := bio.NewReader(&buf)
	if err := DecodeFrame(reader, outChannels, opts); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for i := range origR {
		if outChannels[0].Data[i] != origR[i] || outChannels[1].Data[i] != origG[i] || outChannels[2].Data[i] != origB[i] {
			t.Fatalf("pixel %d mismatch: got (%d,%d,%d) want (%d,%d,%d)", i,
				outChannels[0].Data[i], outChannels[1].Data[i], outChannels[2].Data[i],
				origR[i], origG[i], origB[i])
		}
	}
}

func TestEncodeDecodeFrameUseANS(t *testing.T) {
	w, h := 6, 5
	src := make([]int32, w*h)
	rng := rand.New(rand.NewSource(3))
	for i := range src {
		src[i] = int32(rng.Intn(256))
	}

	encodeWith := func(useANS bool) ([]byte, []int32) {
		opts := Options{MaxSample: 255, UseANS: useANS}
		enc := Channel{Width: w, Height: h, Data: append([]int32{}, src...)}

		var buf rawBuffer
		writer := bio.NewWriter(&buf)
		if err := EncodeFrame(writer, []Channel{enc}, opts); err != nil {
			t.Fatalf("encode (UseANS=%v): %v", useANS, err)
		}
		writer.FlushByte()

		dec := Channel{Width: w, Height: h, Data: make([]int32, w*h)}
		reader := bio.NewReader(&buf)
		if err := DecodeFrame(reader, []Channel{dec}, opts); err != nil {
			t.Fatalf("decode (UseANS=%v): %v", useANS, err)
		}
		return buf.data, dec.Data
	}

	flatBytes, flatOut := encodeWith(false)
	ansBytes, ansOut := encodeWith(true)

	if len(flatBytes) == len(ansBytes) {
		same := true
		for i := range flatBytes {
			if flatBytes[i] != ansBytes[i] {
				same = false
				break
			}
		}
		if same {
			t.Error("UseANS=true produced the same bitstream as UseANS=false")
		}
	}

	for i := range src {
		if flatOut[i] != src[i] {
			t.Errorf("flat path sample %d: got %d, want %d", i, flatOut[i], src[i])
		}
		if ansOut[i] != src[i] {
			t.Errorf("ans path sample %d: got %d, want %d", i, ansOut[i], src[i])
		}
	}
}

func TestMedResidualsZeroForConstantPlane(t *testing.T) {
	w, h := 4, 4
	plane := make([]int32, w*h)
	for i := range plane {
		plane[i] = 77
	}
	residuals := medResiduals(plane, w, h, 255)
	// Only the first pixel (predicted from 0) should be nonzero.
	for i, r := range residuals {
		if i == 0 {
			if r != 77 {
				t.Errorf("residual[0] = %d, want 77", r)
			}
			continue
		}
		if r != 0 {
			t.Errorf("residual[%d] = %d, want 0 for constant plane", i, r)
		}
	}
}
