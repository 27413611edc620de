package jxl

import (
	"bytes"
	"image"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
	"github.com/gojxl/jxl/internal/codestream"
	"github.com/gojxl/jxl/internal/multiframe"
	"github.com/gojxl/jxl/internal/pool"
)

// sequenceEncoder drives EncodeSequence: it writes the leading
// Signature/SizeHeader/ImageHeader once against the first frame's layout,
// then hands every frame's extracted channel planes to
// internal/multiframe.Encoder, which schedules keyframes, deltas and any
// responsive layering.
type sequenceEncoder struct {
	w      io.Writer
	frames []image.Image
	opts   *Options
}

func newSequenceEncoder(w io.Writer, frames []image.Image, opts *Options) *sequenceEncoder {
	return &sequenceEncoder{w: w, frames: frames, opts: opts}
}

func (e *sequenceEncoder) encode() (Stats, error) {
	start := time.Now()
	id := uuid.New()

	if err := e.opts.Validate(); err != nil {
		return Stats{}, err
	}
	if len(e.frames) == 0 {
		return Stats{}, errors.Wrap(ErrInvalidInput, "no frames given")
	}

	first, err := imageToFrame(e.frames[0], e.opts)
	if err != nil {
		return Stats{}, errors.Wrap(ErrInvalidInput, err.Error())
	}
	if err := first.Validate(); err != nil {
		return Stats{}, errors.Wrap(ErrInvalidInput, err.Error())
	}
	maxSample := maxSampleFor(first)

	// Per-frame extraction (color conversion to planar int32) is
	// independent work, unlike the keyframe/delta scheduling that follows
	// it, so it is fanned out across a worker pool rather than done
	// frame-by-frame on the calling goroutine.
	mfFrames := make([]multiframe.Frame, len(e.frames))
	mfFrames[0] = multiframe.Frame{Width: first.Width, Height: first.Height, Channels: channelsFromFrame(first)}

	extractErrs := make([]error, len(e.frames))
	wp := pool.New(0)
	for i := 1; i < len(e.frames); i++ {
		i := i
		wp.Submit(func() {
			f, err := imageToFrame(e.frames[i], e.opts)
			if err != nil {
				extractErrs[i] = err
				return
			}
			if f.Width != first.Width || f.Height != first.Height || f.Channels != first.Channels {
				extractErrs[i] = errors.Errorf("size/channel mismatch with frame 0")
				return
			}
			mfFrames[i] = multiframe.Frame{Width: f.Width, Height: f.Height, Channels: channelsFromFrame(f)}
		})
	}
	wp.WaitForAll()
	wp.Shutdown()
	for i, err := range extractErrs {
		if err != nil {
			return Stats{}, errors.Wrapf(ErrInvalidInput, "frame %d: %v", i, err)
		}
	}

	var body bytes.Buffer
	bw := bio.NewWriter(&body)
	if err := codestream.WriteSignature(bw); err != nil {
		return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
	}
	if err := codestream.WriteSizeHeader(bw, sizeHeaderFor(first)); err != nil {
		return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
	}
	ih := codestream.ImageHeader{Orientation: first.Orientation, ExtraChannelCount: len(first.ExtraChannels)}
	if err := codestream.WriteImageHeader(bw, ih); err != nil {
		return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
	}

	mf := multiframe.NewEncoder(multiframe.Options{
		MaxReferenceFrames:  e.opts.MaxReferenceFrames,
		KeyframeInterval:    e.opts.KeyframeInterval,
		MaxDeltaFrames:      e.opts.MaxDeltaFrames,
		SimilarityThreshold: e.opts.SimilarityThreshold,
		FPS:                 e.opts.FPS,
		TPSDenominator:      e.opts.TPSDenominator,
		FrameDurations:      e.opts.FrameDurations,
		ResponsiveDistances: e.opts.ResponsiveDistances,
		MaxSample:           maxSample,
		UseRCT:              e.opts.UseRCT,
		UseANS:              e.opts.UseANS,
	})
	if err := mf.EncodeSequence(bw, mfFrames); err != nil {
		return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
	}

	out := body.Bytes()
	if e.opts.Container {
		ce := &encoder{opts: e.opts}
		boxed, err := ce.wrapContainer(out)
		if err != nil {
			return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
		}
		out = boxed
	}
	if _, err := e.w.Write(out); err != nil {
		return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
	}

	stats := Stats{EncodeID: id, Mode: "sequence", OutputSize: len(out), Duration: int64(time.Since(start))}
	Logger.Info().
		Str("encode_id", id.String()).
		Int("frames", len(e.frames)).
		Int("output_bytes", stats.OutputSize).
		Dur("duration", time.Since(start)).
		Msg("jxl: sequence encode complete")
	return stats, nil
}
