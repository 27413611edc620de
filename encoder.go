package jxl

import (
	"bytes"
	"image"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
	"github.com/gojxl/jxl/internal/bufpool"
	"github.com/gojxl/jxl/internal/codestream"
	"github.com/gojxl/jxl/internal/colorxform"
	"github.com/gojxl/jxl/internal/container"
	"github.com/gojxl/jxl/internal/dispatch"
	"github.com/gojxl/jxl/internal/modular"
	"github.com/gojxl/jxl/internal/multiframe"
	"github.com/gojxl/jxl/internal/noise"
	"github.com/gojxl/jxl/internal/overlay"
	"github.com/gojxl/jxl/internal/pixbuf"
	"github.com/gojxl/jxl/internal/vardct"
)

// encoder drives a single Encode call: build the pixel planes, run the
// chosen coding path, frame the result and optionally box it.
type encoder struct {
	w    io.Writer
	img  image.Image
	opts *Options
}

func newEncoder(w io.Writer, img image.Image, opts *Options) *encoder {
	return &encoder{w: w, img: img, opts: opts}
}

func (e *encoder) encode() (Stats, error) {
	start := time.Now()
	id := uuid.New()

	if err := e.opts.Validate(); err != nil {
		return Stats{}, err
	}
	overlayRequested := len(e.opts.Patches) > 0 || len(e.opts.Splines) > 0 || e.opts.Noise != nil
	if overlayRequested && (e.opts.Lossless || len(e.opts.ResponsiveDistances) > 0) {
		return Stats{}, errors.Wrap(ErrNotSupported, "patches/splines/noise require the single-frame VarDCT path")
	}

	frame, err := imageToFrame(e.img, e.opts)
	if err != nil {
		return Stats{}, errors.Wrap(ErrInvalidInput, err.Error())
	}
	if err := frame.Validate(); err != nil {
		return Stats{}, errors.Wrap(ErrInvalidInput, err.Error())
	}

	channels := channelsFromFrame(frame)
	maxSample := maxSampleFor(frame)

	var body bytes.Buffer
	w := bio.NewWriter(&body)
	if err := codestream.WriteSignature(w); err != nil {
		return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
	}
	if err := codestream.WriteSizeHeader(w, sizeHeaderFor(frame)); err != nil {
		return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
	}
	ih := codestream.ImageHeader{Orientation: frame.Orientation, ExtraChannelCount: len(frame.ExtraChannels)}
	if err := codestream.WriteImageHeader(w, ih); err != nil {
		return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
	}

	var mode string
	switch {
	case len(e.opts.ResponsiveDistances) > 0:
		mode = "vardct"
		if err := e.encodeResponsive(w, frame, channels); err != nil {
			return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
		}
	case e.opts.Lossless:
		mode = "modular"
		if err := e.encodeModular(w, frame, channels, maxSample); err != nil {
			return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
		}
	default:
		mode = "vardct"
		if err := e.encodeVarDCT(w, frame, channels, maxSample); err != nil {
			return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
		}
	}

	out := body.Bytes()
	if e.opts.Container {
		boxed, err := e.wrapContainer(out)
		if err != nil {
			return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
		}
		out = boxed
	}
	if _, err := e.w.Write(out); err != nil {
		return Stats{}, errors.Wrap(ErrEncodingFailed, err.Error())
	}

	stats := Stats{EncodeID: id, Mode: mode, OutputSize: len(out), Duration: int64(time.Since(start))}
	Logger.Info().
		Str("encode_id", id.String()).
		Str("mode", mode).
		Int("width", frame.Width).
		Int("height", frame.Height).
		Int("output_bytes", stats.OutputSize).
		Str("backend", dispatch.Selected().String()).
		Dur("duration", time.Since(start)).
		Msg("jxl: encode complete")
	return stats, nil
}

// encodeModular writes a single lossless Modular frame.
func (e *encoder) encodeModular(w *bio.Writer, frame *pixbuf.ImageFrame, channels [][]int32, maxSample int32) error {
	useRCT := e.opts.UseRCT && frame.Channels >= 3 && frame.ColorSpace != pixbuf.ColorSpaceGrayscale

	modChannels := make([]modular.Channel, len(channels))
	for i, data := range channels {
		modChannels[i] = modular.Channel{Width: frame.Width, Height: frame.Height, Data: data}
	}

	var payload bytes.Buffer
	pw := bio.NewWriter(&payload)
	mopts := modular.Options{UseRCT: useRCT, SqueezeLevels: e.opts.SqueezeLevels, MaxSample: maxSample, UseANS: e.opts.UseANS}
	if err := modular.EncodeFrame(pw, modChannels, mopts); err != nil {
		return errors.Wrap(err, "modular encode")
	}
	if err := pw.FlushByte(); err != nil {
		return err
	}

	hdr := codestream.FrameHeader{Mode: codestream.FrameModular, IsLast: true, ReferenceSlot: -1}
	if err := codestream.WriteFrameHeader(w, hdr); err != nil {
		return errors.Wrap(err, "write frame header")
	}
	if err := writeModularCodecHeader(w, modularCodecHeader{UseRCT: useRCT, SqueezeLevels: e.opts.SqueezeLevels}); err != nil {
		return errors.Wrap(err, "write modular codec header")
	}
	if err := w.WriteVarint(uint64(payload.Len())); err != nil {
		return errors.Wrap(err, "write payload length")
	}
	if err := w.WriteData(payload.Bytes()); err != nil {
		return errors.Wrap(err, "write payload")
	}
	return codestream.WriteTerminator(w)
}

// encodeVarDCT writes a single lossy VarDCT frame, optionally carrying
// patches, splines and noise parameters.
func (e *encoder) encodeVarDCT(w *bio.Writer, frame *pixbuf.ImageFrame, channels [][]int32, maxSample int32) error {
	vChannels := e.colorTransformedChannels(frame, channels, maxSample)

	adaptiveK := e.opts.AdaptiveK
	if adaptiveK == 0 {
		adaptiveK = 0.08
	}
	var roi *vardct.ROI
	if e.opts.ROI != nil {
		roi = &vardct.ROI{X: e.opts.ROI.X, Y: e.opts.ROI.Y, W: e.opts.ROI.W, H: e.opts.ROI.H, Boost: e.opts.ROI.Boost, FeatherRadius: e.opts.ROI.FeatherRadius}
	}
	vopts := vardct.Options{
		Distance: e.opts.Distance, AdaptiveQuant: e.opts.AdaptiveQuant, AdaptiveK: adaptiveK,
		ROI: roi, UseANS: e.opts.UseANS, Width: frame.Width, Height: frame.Height, ChannelCount: frame.Channels,
	}

	var payload bytes.Buffer
	pw := bio.NewWriter(&payload)
	encodeErr := vardct.EncodeFrame(pw, vChannels, vopts)
	for _, c := range vChannels {
		planePool.Release(c.Data)
	}
	if encodeErr != nil {
		return errors.Wrap(encodeErr, "vardct encode")
	}
	if err := pw.FlushByte(); err != nil {
		return err
	}

	overlayBlob, hasOverlay, err := e.buildOverlayBlob()
	if err != nil {
		return err
	}
	var extraOps uint8
	if e.opts.Noise != nil {
		extraOps |= extraChannelOpsNoise
	}

	hdr := codestream.FrameHeader{Mode: codestream.FrameVarDCT, IsLast: true, ReferenceSlot: -1, HasPatches: hasOverlay, ExtraChannelOps: extraOps}
	if err := codestream.WriteFrameHeader(w, hdr); err != nil {
		return errors.Wrap(err, "write frame header")
	}
	var roiHeader ROI
	if e.opts.ROI != nil {
		roiHeader = *e.opts.ROI
	}
	codecHeader := vardctCodecHeader{
		ColorSpace: e.opts.ColorSpace, Distance: e.opts.Distance,
		AdaptiveQuant: e.opts.AdaptiveQuant, UseANS: e.opts.UseANS,
		HasROI: e.opts.ROI != nil, ROI: roiHeader,
	}
	if err := writeVardctCodecHeader(w, codecHeader); err != nil {
		return errors.Wrap(err, "write vardct codec header")
	}
	if err := w.WriteVarint(uint64(payload.Len())); err != nil {
		return errors.Wrap(err, "write payload length")
	}
	if err := w.WriteData(payload.Bytes()); err != nil {
		return errors.Wrap(err, "write payload")
	}
	if hasOverlay {
		if err := w.WriteVarint(uint64(len(overlayBlob))); err != nil {
			return errors.Wrap(err, "write overlay blob length")
		}
		if err := w.WriteData(overlayBlob); err != nil {
			return errors.Wrap(err, "write overlay blob")
		}
	}
	if e.opts.Noise != nil {
		if err := noise.WriteParams(w, *e.opts.Noise); err != nil {
			return errors.Wrap(err, "write noise params")
		}
	}
	return codestream.WriteTerminator(w)
}

// planePool recycles the per-call []float32 scratch planes
// colorTransformedChannels normalizes channel data into, since an
// image/animation encode allocates one per channel per frame.
var planePool = bufpool.New[float32](64)

// colorTransformedChannels normalizes channels to [0,1] and applies the
// configured cross-channel color transform to the first three planes
// (luma/chroma-style frames only; grayscale and extra channels such as
// alpha pass through unchanged).
func (e *encoder) colorTransformedChannels(frame *pixbuf.ImageFrame, channels [][]int32, maxSample int32) []vardct.Channel {
	norm := make([][]float32, len(channels))
	for i, data := range channels {
		plane := planePool.Acquire(len(data))[:len(data)]
		for j, v := range data {
			plane[j] = float32(v) / float32(maxSample)
		}
		norm[i] = plane
	}

	if frame.Channels >= 3 && frame.ColorSpace != pixbuf.ColorSpaceGrayscale {
		switch e.opts.ColorSpace {
		case ColorSpaceXYB:
			colorxform.ForwardXYB(norm[0], norm[1], norm[2])
		default:
			colorxform.ForwardYCbCr(norm[0], norm[1], norm[2])
		}
	}

	out := make([]vardct.Channel, len(norm))
	for i, plane := range norm {
		out[i] = vardct.Channel{Data: plane, Chroma: i == 1 || i == 2}
	}
	return out
}

func (e *encoder) buildOverlayBlob() ([]byte, bool, error) {
	if len(e.opts.Patches) == 0 && len(e.opts.Splines) == 0 {
		return nil, false, nil
	}
	blob, err := overlay.EncodePayload(e.opts.Patches, e.opts.Splines)
	if err != nil {
		return nil, false, errors.Wrap(err, "encode overlay payload")
	}
	return blob, true, nil
}

// encodeResponsive writes the image as a one-frame internal/multiframe
// sequence split into the configured responsive VarDCT layers.
func (e *encoder) encodeResponsive(w *bio.Writer, frame *pixbuf.ImageFrame, channels [][]int32) error {
	mf := multiframe.NewEncoder(multiframe.Options{
		MaxReferenceFrames:  1,
		ResponsiveDistances: e.opts.ResponsiveDistances,
		MaxSample:           maxSampleFor(frame),
	})
	seq := []multiframe.Frame{{Width: frame.Width, Height: frame.Height, Channels: channels}}
	return mf.EncodeSequence(w, seq)
}

func (e *encoder) wrapContainer(codestreamBytes []byte) ([]byte, error) {
	var buf bytes.Buffer
	cw := container.NewWriter(&buf)
	if err := cw.WriteSignature(); err != nil {
		return nil, errors.Wrap(err, "write container signature")
	}
	if len(e.opts.ICCProfile) > 0 {
		if err := cw.WriteColorProfile(e.opts.ICCProfile); err != nil {
			return nil, errors.Wrap(err, "write icc profile")
		}
	}
	if len(e.opts.Exif) > 0 {
		if err := cw.WriteExif(e.opts.Exif); err != nil {
			return nil, errors.Wrap(err, "write exif")
		}
	}
	if len(e.opts.XML) > 0 {
		if err := cw.WriteXML(e.opts.XML); err != nil {
			return nil, errors.Wrap(err, "write xml")
		}
	}
	if err := cw.WriteCodestreamBox(codestreamBytes); err != nil {
		return nil, errors.Wrap(err, "write codestream box")
	}
	return buf.Bytes(), nil
}
