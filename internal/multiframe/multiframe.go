// Package multiframe sequences a run of ImageFrames into the animation /
// responsive codestream described by the frame header's Duration,
// ReferenceSlot and ProgressivePass fields (see internal/codestream). It
// decides, frame by frame, whether to emit a full keyframe or a delta
// against a held reference slot, and can additionally split a single
// frame into a sequence of increasing-quality responsive layers.
package multiframe

import (
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gojxl/jxl/internal/bio"
	"github.com/gojxl/jxl/internal/codestream"
	"github.com/gojxl/jxl/internal/modular"
	"github.com/gojxl/jxl/internal/vardct"
)

// Options controls keyframe/delta scheduling, timing and responsive
// layering across a sequence.
type Options struct {
	// MaxReferenceFrames bounds the number of held reference slots.
	MaxReferenceFrames int
	// KeyframeInterval forces a keyframe after this many frames have
	// elapsed since the previous one, regardless of similarity.
	KeyframeInterval int
	// MaxDeltaFrames forces a keyframe after this many consecutive
	// deltas, bounding worst-case decode reference-chain depth.
	MaxDeltaFrames int
	// SimilarityThreshold is the minimum normalized similarity (1.0 is
	// identical, 0.0 is maximally different) a slot must have against
	// the incoming frame to be eligible as a delta reference.
	SimilarityThreshold float64

	// FPS and TPSDenominator set the animation tick rate: fps /
	// tpsDenominator ticks per second. FPS <= 0 disables animation
	// timing (Duration is written as 0 for every frame).
	FPS            int
	TPSDenominator int
	// FrameDurations optionally overrides the duration (in ticks) of
	// frame i; a zero or missing entry falls back to 1000/FPS.
	FrameDurations []uint32

	// ResponsiveDistances, if non-empty, splits every frame into
	// len(ResponsiveDistances) VarDCT layers written in the given
	// order, which must already be decreasing (coarsest first). An
	// empty slice disables responsive layering: each frame is written
	// as a single modular (lossless) frame.
	ResponsiveDistances []float64
	MaxSample           int32
	// UseRCT applies the reversible color transform across channels 0-2
	// of the modular (non-responsive) coding path, mirroring
	// modular.Options.UseRCT.
	UseRCT bool
	// UseANS mirrors modular.Options.UseANS: rANS-compress each
	// channel's residual stream instead of writing flat zigzag varints.
	UseANS bool
}

// Frame is one input image to the sequence: Channels holds its
// color-transformed planes (e.g. YCbCr, or RCT'd RGB) at full frame
// resolution, all sharing Width x Height.
type Frame struct {
	Width, Height int
	Channels      [][]int32
}

// ErrNoChannels is returned when a Frame carries no channels.
var ErrNoChannels = errors.New("multiframe: frame has no channels")

type slot struct {
	occupied bool
	channels [][]int32
	lastUsed int // sequence index of last write, for LRU eviction
}

// Encoder schedules a sequence of Frames into keyframes and deltas
// against a fixed set of reference slots.
type Encoder struct {
	opts  Options
	slots []slot

	framesSinceKeyframe int
	consecutiveDeltas   int
}

// NewEncoder returns an Encoder configured by opts. MaxReferenceFrames
// <= 0 is treated as 1.
func NewEncoder(opts Options) *Encoder {
	n := opts.MaxReferenceFrames
	if n <= 0 {
		n = 1
	}
	return &Encoder{opts: opts, slots: make([]slot, n)}
}

// similarity returns a [0,1] score comparing a's and b's first channel by
// mean absolute difference normalized against MaxSample; 1 means
// identical. Channels of mismatched length are treated as maximally
// dissimilar.
func similarity(a, b []int32, maxSample int32) float64 {
	if len(a) != len(b) || len(a) == 0 || maxSample <= 0 {
		return 0
	}
	var sum int64
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	mean := float64(sum) / float64(len(a))
	score := 1 - mean/float64(maxSample)
	if score < 0 {
		score = 0
	}
	return score
}

// bestSlot returns the index of the occupied slot most similar to frame,
// and that similarity score. ok is false if no slot is occupied.
func (e *Encoder) bestSlot(frame Frame) (idx int, score float64, ok bool) {
	for i, s := range e.slots {
		if !s.occupied || len(s.channels) == 0 || len(frame.Channels) == 0 {
			continue
		}
		sc := similarity(frame.Channels[0], s.channels[0], e.opts.MaxSample)
		if !ok || sc > score {
			idx, score, ok = i, sc, true
		}
	}
	return idx, score, ok
}

// evictSlot returns the first unoccupied slot if there is one, otherwise
// the occupied slot with the smallest lastUsed (least recently written).
func (e *Encoder) evictSlot() int {
	best := 0
	for i, s := range e.slots {
		if !s.occupied {
			return i
		}
		if s.lastUsed < e.slots[best].lastUsed {
			best = i
		}
	}
	return best
}

// duration returns frame i's tick count.
func (e *Encoder) duration(i int) uint32 {
	if i < len(e.opts.FrameDurations) && e.opts.FrameDurations[i] != 0 {
		return e.opts.FrameDurations[i]
	}
	if e.opts.FPS <= 0 {
		return 0
	}
	return uint32(1000 / e.opts.FPS)
}

// EncodeSequence writes the full animation header, then one FrameHeader
// plus payload per frame in frames, deciding keyframe vs delta per
// §4.14's rules and applying responsive layering if configured.
func (e *Encoder) EncodeSequence(w *bio.Writer, frames []Frame) error {
	if err := e.writeAnimationHeader(w, len(frames)); err != nil {
		return err
	}
	for i, f := range frames {
		if len(f.Channels) == 0 {
			return errors.Wrapf(ErrNoChannels, "frame %d", i)
		}
		isLast := i == len(frames)-1
		if err := e.encodeOneFrame(w, f, i, isLast); err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
	}
	return codestream.WriteTerminator(w)
}

func (e *Encoder) writeAnimationHeader(w *bio.Writer, numFrames int) error {
	tps := e.opts.TPSDenominator
	if tps <= 0 {
		tps = 1
	}
	ticksPerSecond := uint32(0)
	if e.opts.FPS > 0 {
		ticksPerSecond = uint32(e.opts.FPS / tps)
	}
	if err := w.WriteVarint(uint64(ticksPerSecond)); err != nil {
		return errors.Wrap(err, "write ticks per second")
	}
	if err := w.WriteVarint(uint64(numFrames)); err != nil {
		return errors.Wrap(err, "write frame count")
	}
	return nil
}

// decide picks keyframe-vs-delta for frame i per §4.14's rules, returning
// the chosen reference slot index for a delta (or -1 for a keyframe).
func (e *Encoder) decide(i int, f Frame) (keyframe bool, refSlot int) {
	if i == 0 {
		return true, -1
	}
	if e.opts.KeyframeInterval > 0 && e.framesSinceKeyframe >= e.opts.KeyframeInterval {
		return true, -1
	}
	if e.opts.MaxDeltaFrames > 0 && e.consecutiveDeltas >= e.opts.MaxDeltaFrames {
		return true, -1
	}
	idx, score, ok := e.bestSlot(f)
	if !ok || score < e.opts.SimilarityThreshold {
		return true, -1
	}
	return false, idx
}

func (e *Encoder) encodeOneFrame(w *bio.Writer, f Frame, i int, isLast bool) error {
	keyframe, refSlot := e.decide(i, f)

	var storeSlot int
	if keyframe {
		storeSlot = e.evictSlot()
		if e.slots[storeSlot].occupied {
			log.Debug().Int("frame", i).Int("slot", storeSlot).Msg("multiframe: evicting reference slot for keyframe")
		}
		e.framesSinceKeyframe = 0
		e.consecutiveDeltas = 0
	} else {
		storeSlot = refSlot
		e.framesSinceKeyframe++
		e.consecutiveDeltas++
	}
	log.Debug().Int("frame", i).Bool("keyframe", keyframe).Int("slot", storeSlot).Msg("multiframe: keyframe/delta decision")

	payload, err := e.buildPayload(f, keyframe, refSlot)
	if err != nil {
		return err
	}

	hdr := codestream.FrameHeader{
		Mode:          modeFor(len(e.opts.ResponsiveDistances)),
		IsLast:        isLast,
		Duration:      e.duration(i),
		ReferenceSlot: storeSlot,
		IsDelta:       !keyframe,
		HasPatches:    false,
	}
	if len(e.opts.ResponsiveDistances) > 0 {
		hdr.ProgressivePass = len(e.opts.ResponsiveDistances)
	}
	if err := codestream.WriteFrameHeader(w, hdr); err != nil {
		return errors.Wrap(err, "write frame header")
	}
	if err := w.WriteVarint(uint64(len(payload))); err != nil {
		return errors.Wrap(err, "write frame payload length")
	}
	if err := w.WriteData(payload); err != nil {
		return errors.Wrap(err, "write frame payload")
	}

	e.slots[storeSlot] = slot{occupied: true, channels: cloneChannels(f.Channels), lastUsed: i}
	return nil
}

func modeFor(numLayers int) codestream.FrameMode {
	if numLayers > 0 {
		return codestream.FrameVarDCT
	}
	return codestream.FrameModular
}

func cloneChannels(src [][]int32) [][]int32 {
	out := make([][]int32, len(src))
	for i, ch := range src {
		out[i] = append([]int32(nil), ch...)
	}
	return out
}

// buildPayload encodes f's pixel data to an opaque byte payload: a
// residual-against-slot modular stream for a delta, a full modular
// stream for a lossless keyframe, or a sequence of VarDCT responsive
// layers when ResponsiveDistances is configured.
func (e *Encoder) buildPayload(f Frame, keyframe bool, refSlot int) ([]byte, error) {
	var buf rawBuffer
	bw := bio.NewWriter(&buf)

	if len(e.opts.ResponsiveDistances) > 0 {
		if err := e.encodeResponsiveLayers(bw, f); err != nil {
			return nil, err
		}
		if err := bw.FlushByte(); err != nil {
			return nil, err
		}
		return buf.data, nil
	}

	channels := modularChannels(f)
	if !keyframe {
		ref := e.slots[refSlot].channels
		channels = diffChannels(channels, ref)
	}
	opts := modular.Options{MaxSample: e.opts.MaxSample, UseRCT: e.opts.UseRCT, UseANS: e.opts.UseANS}
	if err := modular.EncodeFrame(bw, channels, opts); err != nil {
		return nil, errors.Wrap(err, "modular encode")
	}
	if err := bw.FlushByte(); err != nil {
		return nil, err
	}
	return buf.data, nil
}

func modularChannels(f Frame) []modular.Channel {
	out := make([]modular.Channel, len(f.Channels))
	for i, data := range f.Channels {
		out[i] = modular.Channel{Width: f.Width, Height: f.Height, Data: append([]int32(nil), data...)}
	}
	return out
}

// diffChannels returns a - ref elementwise, leaving a delta frame's
// residual signed enough to predict and entropy-code like any other
// modular channel.
func diffChannels(a []modular.Channel, ref [][]int32) []modular.Channel {
	out := make([]modular.Channel, len(a))
	for i, ch := range a {
		diff := make([]int32, len(ch.Data))
		if i < len(ref) && len(ref[i]) == len(ch.Data) {
			for j, v := range ch.Data {
				diff[j] = v - ref[i][j]
			}
		} else {
			copy(diff, ch.Data)
		}
		out[i] = modular.Channel{Width: ch.Width, Height: ch.Height, Data: diff}
	}
	return out
}

// encodeResponsiveLayers writes len(ResponsiveDistances) byte-aligned
// VarDCT layers in decreasing-distance (increasing-quality) order, layer
// 0 a full low-fidelity frame and subsequent layers progressively finer.
func (e *Encoder) encodeResponsiveLayers(w *bio.Writer, f Frame) error {
	for li, dist := range e.opts.ResponsiveDistances {
		channels := make([]vardct.Channel, len(f.Channels))
		for ci, data := range f.Channels {
			channels[ci] = vardct.Channel{Data: toFloat32(data), Chroma: ci > 0}
		}
		opts := vardct.Options{
			Distance:     dist,
			Width:        f.Width,
			Height:       f.Height,
			ChannelCount: len(f.Channels),
		}
		if err := vardct.EncodeFrame(w, channels, opts); err != nil {
			return errors.Wrapf(err, "responsive layer %d", li)
		}
		if err := w.FlushByte(); err != nil {
			return errors.Wrapf(err, "responsive layer %d alignment", li)
		}
	}
	return nil
}

func toFloat32(data []int32) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v)
	}
	return out
}

func fromFloat32(data []float32) []int32 {
	out := make([]int32, len(data))
	for i, v := range data {
		if v >= 0 {
			out[i] = int32(v + 0.5)
		} else {
			out[i] = int32(v - 0.5)
		}
	}
	return out
}

// DecodeSequence reads a stream written by EncodeSequence. Every frame in
// the sequence is assumed to share the canvas dimensions and channel
// count given here, mirroring a single-canvas JPEG XL animation;
// frames of differing sizes are not supported.
func (e *Encoder) DecodeSequence(r *bio.Reader, width, height, channelCount int) ([]Frame, error) {
	if _, err := r.ReadVarint(); err != nil {
		return nil, errors.Wrap(err, "read ticks per second")
	}
	numFrames, err := r.ReadVarint()
	if err != nil {
		return nil, errors.Wrap(err, "read frame count")
	}

	frames := make([]Frame, 0, numFrames)
	for i := 0; uint64(i) < numFrames; i++ {
		hdr, err := codestream.ReadFrameHeader(r)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d header", i)
		}
		n, err := r.ReadVarint()
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d payload length", i)
		}
		payload, err := r.ReadData(int(n))
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d payload", i)
		}

		f, err := e.decodeOneFrame(payload, hdr, width, height, channelCount)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
		frames = append(frames, f)

		if hdr.ReferenceSlot >= 0 && hdr.ReferenceSlot < len(e.slots) {
			e.slots[hdr.ReferenceSlot] = slot{occupied: true, channels: cloneChannels(f.Channels), lastUsed: i}
		}
		if hdr.IsLast {
			break
		}
	}

	if err := codestream.ReadTerminator(r); err != nil {
		return nil, errors.Wrap(err, "read terminator")
	}
	return frames, nil
}

func (e *Encoder) decodeOneFrame(payload []byte, hdr codestream.FrameHeader, width, height, channelCount int) (Frame, error) {
	buf := &rawBuffer{data: payload}
	br := bio.NewReader(buf)

	if hdr.Mode == codestream.FrameVarDCT {
		return e.decodeResponsiveLayers(br, width, height, channelCount)
	}

	channels := make([]modular.Channel, channelCount)
	for i := range channels {
		channels[i] = modular.Channel{Width: width, Height: height, Data: make([]int32, width*height)}
	}
	opts := modular.Options{MaxSample: e.opts.MaxSample, UseRCT: e.opts.UseRCT}
	if err := modular.DecodeFrame(br, channels, opts); err != nil {
		return Frame{}, errors.Wrap(err, "modular decode")
	}

	out := Frame{Width: width, Height: height, Channels: make([][]int32, channelCount)}
	for i, ch := range channels {
		out.Channels[i] = ch.Data
	}

	if hdr.IsDelta && hdr.ReferenceSlot >= 0 && hdr.ReferenceSlot < len(e.slots) {
		ref := e.slots[hdr.ReferenceSlot].channels
		for i := range out.Channels {
			if i < len(ref) && len(ref[i]) == len(out.Channels[i]) {
				for j := range out.Channels[i] {
					out.Channels[i][j] += ref[i][j]
				}
			}
		}
	}
	return out, nil
}

// decodeResponsiveLayers decodes each configured VarDCT layer in turn,
// returning the finest (last) layer's reconstruction as the frame's
// pixel data.
func (e *Encoder) decodeResponsiveLayers(r *bio.Reader, width, height, channelCount int) (Frame, error) {
	var channels []vardct.Channel
	for li, dist := range e.opts.ResponsiveDistances {
		channels = make([]vardct.Channel, channelCount)
		for ci := range channels {
			channels[ci] = vardct.Channel{Data: make([]float32, width*height), Chroma: ci > 0}
		}
		opts := vardct.Options{Distance: dist, Width: width, Height: height, ChannelCount: channelCount}
		if err := vardct.DecodeFrame(r, channels, opts); err != nil {
			return Frame{}, errors.Wrapf(err, "responsive layer %d", li)
		}
		r.SkipToByteAlignment()
	}

	out := Frame{Width: width, Height: height, Channels: make([][]int32, channelCount)}
	for i, ch := range channels {
		out.Channels[i] = fromFloat32(ch.Data)
	}
	return out, nil
}

// rawBuffer is a minimal growable byte sink/source, mirroring the
// analogous helper in internal/modular and internal/vardct tests: each
// frame's payload is built (or consumed) once in memory, sized exactly by
// the length varint framing it, so no streaming behavior is needed.
type rawBuffer struct {
	data []byte
	pos  int
}

func (b *rawBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *rawBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}
