package multiframe

import (
	"math/rand"
	"testing"

	"github.com/gojxl/jxl/internal/bio"
)

func constFrame(w, h int, channels int, val int32) Frame {
	f := Frame{Width: w, Height: h, Channels: make([][]int32, channels)}
	for c := range f.Channels {
		data := make([]int32, w*h)
		for i := range data {
			data[i] = val
		}
		f.Channels[c] = data
	}
	return f
}

func TestEncodeDecodeSequenceKeyframesOnly(t *testing.T) {
	opts := Options{
		MaxReferenceFrames:   2,
		SimilarityThreshold:  2, // unreachable score forces every frame to be a keyframe
		MaxSample:            255,
		FPS:                  30,
		TPSDenominator:       1,
	}
	frames := []Frame{
		constFrame(8, 8, 1, 10),
		constFrame(8, 8, 1, 200),
		constFrame(8, 8, 1, 50),
	}

	var buf rawBuffer
	w := bio.NewWriter(&buf)
	enc := NewEncoder(opts)
	if err := enc.EncodeSequence(w, frames); err != nil {
		t.Fatalf("encode: %v", err)
	}
	w.FlushByte()

	dec := NewEncoder(opts)
	r := bio.NewReader(&buf)
	got, err := dec.DecodeSequence(r, 8, 8, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(frames) {
		t.Fatalf("got %d frames, want %d", len(got), len(frames))
	}
	for i, f := range frames {
		for c, data := range f.Channels {
			for j, v := range data {
				if got[i].Channels[c][j] != v {
					t.Fatalf("frame %d channel %d sample %d = %d, want %d", i, c, j, got[i].Channels[c][j], v)
				}
			}
		}
	}
}

func TestEncodeDecodeSequenceWithDeltas(t *testing.T) {
	opts := Options{
		MaxReferenceFrames:  1,
		SimilarityThreshold: 0, // any non-negative similarity is acceptable, so repeats become deltas
		MaxSample:           255,
	}
	// Three identical frames: the first is a keyframe, the rest should
	// become zero-residual deltas against it.
	frames := []Frame{
		constFrame(8, 8, 1, 77),
		constFrame(8, 8, 1, 77),
		constFrame(8, 8, 1, 77),
	}

	var buf rawBuffer
	w := bio.NewWriter(&buf)
	enc := NewEncoder(opts)
	if err := enc.EncodeSequence(w, frames); err != nil {
		t.Fatalf("encode: %v", err)
	}
	w.FlushByte()

	dec := NewEncoder(opts)
	r := bio.NewReader(&buf)
	got, err := dec.DecodeSequence(r, 8, 8, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i, f := range frames {
		for c, data := range f.Channels {
			for j, v := range data {
				if got[i].Channels[c][j] != v {
					t.Fatalf("frame %d channel %d sample %d = %d, want %d", i, c, j, got[i].Channels[c][j], v)
				}
			}
		}
	}
}

func TestDecideFirstFrameIsAlwaysKeyframe(t *testing.T) {
	enc := NewEncoder(Options{MaxReferenceFrames: 1, SimilarityThreshold: 0, MaxSample: 255})
	keyframe, ref := enc.decide(0, constFrame(4, 4, 1, 1))
	if !keyframe || ref != -1 {
		t.Errorf("frame 0: keyframe=%v ref=%d, want true/-1", keyframe, ref)
	}
}

func TestDecideKeyframeIntervalForcesKeyframe(t *testing.T) {
	enc := NewEncoder(Options{
		MaxReferenceFrames:   1,
		SimilarityThreshold:  0,
		MaxSample:            255,
		KeyframeInterval:     2,
	})
	f := constFrame(4, 4, 1, 5)
	enc.slots[0] = slot{occupied: true, channels: f.Channels}
	enc.framesSinceKeyframe = 2
	keyframe, _ := enc.decide(1, f)
	if !keyframe {
		t.Error("expected keyframe once keyframeInterval elapsed")
	}
}

func TestDecideMaxDeltaFramesForcesKeyframe(t *testing.T) {
	enc := NewEncoder(Options{MaxReferenceFrames: 1, SimilarityThreshold: 0, MaxSample: 255, MaxDeltaFrames: 3})
	f := constFrame(4, 4, 1, 5)
	enc.slots[0] = slot{occupied: true, channels: f.Channels}
	enc.consecutiveDeltas = 3
	keyframe, _ := enc.decide(1, f)
	if !keyframe {
		t.Error("expected keyframe once maxDeltaFrames reached")
	}
}

func TestDecideLowSimilarityForcesKeyframe(t *testing.T) {
	enc := NewEncoder(Options{MaxReferenceFrames: 1, SimilarityThreshold: 0.99, MaxSample: 255})
	enc.slots[0] = slot{occupied: true, channels: constFrame(4, 4, 1, 0).Channels}
	keyframe, _ := enc.decide(1, constFrame(4, 4, 1, 255))
	if !keyframe {
		t.Error("expected keyframe when best slot similarity is below threshold")
	}
}

func TestDurationUsesOverrideThenFPS(t *testing.T) {
	enc := NewEncoder(Options{MaxReferenceFrames: 1, FPS: 25, FrameDurations: []uint32{0, 7}})
	if got := enc.duration(0); got != 40 { // 1000/25
		t.Errorf("duration(0) = %d, want 40", got)
	}
	if got := enc.duration(1); got != 7 {
		t.Errorf("duration(1) = %d, want 7 (explicit override)", got)
	}
}

func TestSimilarityIdenticalIsOne(t *testing.T) {
	a := []int32{1, 2, 3, 4}
	if got := similarity(a, a, 255); got != 1 {
		t.Errorf("similarity(a, a) = %v, want 1", got)
	}
}

func TestSimilarityMismatchedLengthIsZero(t *testing.T) {
	if got := similarity([]int32{1, 2}, []int32{1}, 255); got != 0 {
		t.Errorf("similarity of mismatched lengths = %v, want 0", got)
	}
}

func TestEncodeDecodeResponsiveLayersApprox(t *testing.T) {
	opts := Options{
		MaxReferenceFrames:  1,
		SimilarityThreshold: 2,
		MaxSample:           255,
		ResponsiveDistances: []float64{4.0, 1.0},
	}
	width, height := 16, 16
	rng := rand.New(rand.NewSource(3))
	f := Frame{Width: width, Height: height, Channels: [][]int32{make([]int32, width*height)}}
	for i := range f.Channels[0] {
		f.Channels[0][i] = int32(rng.Intn(256))
	}

	var buf rawBuffer
	w := bio.NewWriter(&buf)
	enc := NewEncoder(opts)
	if err := enc.EncodeSequence(w, []Frame{f}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	w.FlushByte()

	dec := NewEncoder(opts)
	r := bio.NewReader(&buf)
	got, err := dec.DecodeSequence(r, width, height, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}

	var maxDiff int32
	for i, v := range f.Channels[0] {
		d := got[0].Channels[0][i] - v
		if d < 0 {
			d = -d
		}
		if d > maxDiff {
			maxDiff = d
		}
	}
	if maxDiff > 60 {
		t.Errorf("max reconstruction diff = %d, want <= 60", maxDiff)
	}
}
