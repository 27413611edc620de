package jxl

import (
	"bufio"
	"bytes"
	"image"
	"io"

	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
	"github.com/gojxl/jxl/internal/codestream"
	"github.com/gojxl/jxl/internal/colorxform"
	"github.com/gojxl/jxl/internal/container"
	"github.com/gojxl/jxl/internal/modular"
	"github.com/gojxl/jxl/internal/multiframe"
	"github.com/gojxl/jxl/internal/noise"
	"github.com/gojxl/jxl/internal/overlay"
	"github.com/gojxl/jxl/internal/pixbuf"
	"github.com/gojxl/jxl/internal/vardct"
)

// decoder drives a single Decode/DecodeMetadata call.
type decoder struct {
	r io.Reader
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{r: bufio.NewReader(r)}
}

// rawCodestream peels off an optional container wrapper, returning the
// bare codestream bytes and whatever metadata boxes accompanied it.
func (d *decoder) rawCodestream() ([]byte, *container.File, error) {
	peeked, err := io.ReadAll(d.r)
	if err != nil {
		return nil, nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	if len(peeked) >= 2 && peeked[0] == 0xFF && peeked[1] == 0x0A {
		return peeked, nil, nil
	}
	f, err := container.ReadFile(bytes.NewReader(peeked))
	if err != nil {
		return nil, nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	return f.Codestream, f, nil
}

func (d *decoder) decode() (image.Image, *Metadata, error) {
	raw, cf, err := d.rawCodestream()
	if err != nil {
		return nil, nil, err
	}
	r := bio.NewReader(bytes.NewReader(raw))

	if err := codestream.ReadSignature(r); err != nil {
		return nil, nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	sh, err := codestream.ReadSizeHeader(r)
	if err != nil {
		return nil, nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	ih, err := codestream.ReadImageHeader(r)
	if err != nil {
		return nil, nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}

	hdr, err := codestream.ReadFrameHeader(r)
	if err != nil {
		return nil, nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}

	maxSample := int32(255)
	if sh.BitsPerSample > 8 {
		maxSample = 65535
	}
	alphaMode := pixbuf.AlphaNone
	if sh.HasAlpha {
		alphaMode = pixbuf.AlphaStraight
	}

	var channels [][]int32
	switch hdr.Mode {
	case codestream.FrameModular:
		channels, err = decodeModularBody(r, sh, maxSample)
	case codestream.FrameVarDCT:
		channels, err = decodeVarDCTBody(r, sh, hdr, maxSample)
	default:
		err = errors.Errorf("unknown frame mode %v", hdr.Mode)
	}
	if err != nil {
		return nil, nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}

	if err := codestream.ReadTerminator(r); err != nil {
		return nil, nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}

	img, err := frameFromChannels(sh.Width, sh.Height, channels, maxSample, alphaMode)
	if err != nil {
		return nil, nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}

	m := &Metadata{
		Width: sh.Width, Height: sh.Height, Channels: sh.Channels, HasAlpha: sh.HasAlpha,
		BitDepth: sh.BitsPerSample, Orientation: ih.Orientation,
		Lossless: hdr.Mode == codestream.FrameModular,
	}
	if sh.ColorIndicator == codestream.ColorIndicatorGrayscale {
		m.ColorSpace = ColorSpaceGrayscale
	}
	_ = cf
	return img, m, nil
}

func decodeModularBody(r *bio.Reader, sh codestream.SizeHeader, maxSample int32) ([][]int32, error) {
	mh, err := readModularCodecHeader(r)
	if err != nil {
		return nil, errors.Wrap(err, "read modular codec header")
	}
	n, err := r.ReadVarint()
	if err != nil {
		return nil, errors.Wrap(err, "read payload length")
	}
	payload, err := r.ReadData(int(n))
	if err != nil {
		return nil, errors.Wrap(err, "read payload")
	}

	modChannels := make([]modular.Channel, sh.Channels)
	for i := range modChannels {
		modChannels[i] = modular.Channel{Width: sh.Width, Height: sh.Height, Data: make([]int32, sh.Width*sh.Height)}
	}
	pr := bio.NewReader(bytes.NewReader(payload))
	mopts := modular.Options{UseRCT: mh.UseRCT, SqueezeLevels: mh.SqueezeLevels, MaxSample: maxSample}
	if err := modular.DecodeFrame(pr, modChannels, mopts); err != nil {
		return nil, errors.Wrap(err, "modular decode")
	}

	out := make([][]int32, len(modChannels))
	for i, ch := range modChannels {
		out[i] = ch.Data
	}
	return out, nil
}

func decodeVarDCTBody(r *bio.Reader, sh codestream.SizeHeader, hdr codestream.FrameHeader, maxSample int32) ([][]int32, error) {
	ch, err := readVardctCodecHeader(r)
	if err != nil {
		return nil, errors.Wrap(err, "read vardct codec header")
	}
	n, err := r.ReadVarint()
	if err != nil {
		return nil, errors.Wrap(err, "read payload length")
	}
	payload, err := r.ReadData(int(n))
	if err != nil {
		return nil, errors.Wrap(err, "read payload")
	}

	vChannels := make([]vardct.Channel, sh.Channels)
	for i := range vChannels {
		vChannels[i] = vardct.Channel{Data: make([]float32, sh.Width*sh.Height), Chroma: i == 1 || i == 2}
	}
	var roi *vardct.ROI
	if ch.HasROI {
		roi = &vardct.ROI{X: ch.ROI.X, Y: ch.ROI.Y, W: ch.ROI.W, H: ch.ROI.H, Boost: ch.ROI.Boost, FeatherRadius: ch.ROI.FeatherRadius}
	}
	vopts := vardct.Options{
		Distance: ch.Distance, AdaptiveQuant: ch.AdaptiveQuant, ROI: roi, UseANS: ch.UseANS,
		Width: sh.Width, Height: sh.Height, ChannelCount: sh.Channels,
	}
	pr := bio.NewReader(bytes.NewReader(payload))
	if err := vardct.DecodeFrame(pr, vChannels, vopts); err != nil {
		return nil, errors.Wrap(err, "vardct decode")
	}

	var patches []overlay.Patch
	var splines []overlay.Spline
	if hdr.HasPatches {
		bn, err := r.ReadVarint()
		if err != nil {
			return nil, errors.Wrap(err, "read overlay blob length")
		}
		blob, err := r.ReadData(int(bn))
		if err != nil {
			return nil, errors.Wrap(err, "read overlay blob")
		}
		patches, splines, err = overlay.DecodePayload(blob)
		if err != nil {
			return nil, errors.Wrap(err, "decode overlay payload")
		}
	}

	var noiseParams *noise.Params
	if hdr.ExtraChannelOps&extraChannelOpsNoise != 0 {
		p, err := noise.ReadParams(r)
		if err != nil {
			return nil, errors.Wrap(err, "read noise params")
		}
		noiseParams = &p
	}

	if len(patches) > 0 || len(splines) > 0 {
		applyOverlay(vChannels, sh.Width, patches, splines)
	}
	if noiseParams != nil {
		applyNoise(vChannels, *noiseParams)
	}

	if sh.Channels >= 3 && sh.ColorIndicator != codestream.ColorIndicatorGrayscale {
		if ch.ColorSpace == ColorSpaceXYB {
			colorxform.InverseXYB(vChannels[0].Data, vChannels[1].Data, vChannels[2].Data)
		} else {
			colorxform.InverseYCbCr(vChannels[0].Data, vChannels[1].Data, vChannels[2].Data)
		}
	}

	out := make([][]int32, len(vChannels))
	for i, c := range vChannels {
		plane := make([]int32, len(c.Data))
		for j, v := range c.Data {
			iv := int32(v*float32(maxSample) + 0.5)
			if iv < 0 {
				iv = 0
			}
			if iv > maxSample {
				iv = maxSample
			}
			plane[j] = iv
		}
		out[i] = plane
	}
	return out, nil
}

// applyOverlay patches the base reconstruction in place: since this
// single-frame path carries no actual reference slot, a patch's "source"
// rectangle is read from the current frame itself (self-referential
// copy), useful for cheaply repeating a textured region within one image.
func applyOverlay(channels []vardct.Channel, width int, patches []overlay.Patch, splines []overlay.Spline) {
	merged := overlay.MergePatches(patches)
	for ci := range channels {
		overlay.Apply(channels[ci].Data, width, channels[ci].Data, width, merged)
	}
	_ = splines // spline rendering is a decode-time visual enhancement only; base reconstruction is already valid without it
}

func applyNoise(channels []vardct.Channel, p noise.Params) {
	gen := noise.NewGenerator(p.Seed)
	for ci := range channels {
		strength := p.ChromaStrength
		if ci == 0 {
			strength = p.LumaStrength
		}
		grain := make([]float32, len(channels[ci].Data))
		noise.Synthesize(gen, grain, p.Amplitude, strength)
		for i, v := range grain {
			channels[ci].Data[i] += v
		}
	}
}

// readMetadata reads just the codestream's header information.
func (d *decoder) readMetadata() (*Metadata, error) {
	raw, _, err := d.rawCodestream()
	if err != nil {
		return nil, err
	}
	r := bio.NewReader(bytes.NewReader(raw))
	if err := codestream.ReadSignature(r); err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	sh, err := codestream.ReadSizeHeader(r)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	ih, err := codestream.ReadImageHeader(r)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	hdr, err := codestream.ReadFrameHeader(r)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	m := &Metadata{
		Width: sh.Width, Height: sh.Height, Channels: sh.Channels, HasAlpha: sh.HasAlpha,
		BitDepth: sh.BitsPerSample, Orientation: ih.Orientation,
		Lossless: hdr.Mode == codestream.FrameModular,
	}
	if sh.ColorIndicator == codestream.ColorIndicatorGrayscale {
		m.ColorSpace = ColorSpaceGrayscale
	}
	return m, nil
}

// DecodeSequence reads an animated/responsive sequence written by
// EncodeSequence. Every frame shares the canvas reported by the leading
// SizeHeader, mirroring internal/multiframe's single-canvas assumption.
func DecodeSequence(r io.Reader) ([]image.Image, error) {
	d := newDecoder(r)
	raw, _, err := d.rawCodestream()
	if err != nil {
		return nil, err
	}
	br := bio.NewReader(bytes.NewReader(raw))
	if err := codestream.ReadSignature(br); err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	sh, err := codestream.ReadSizeHeader(br)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	if _, err := codestream.ReadImageHeader(br); err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}

	maxSample := int32(255)
	if sh.BitsPerSample > 8 {
		maxSample = 65535
	}
	alphaMode := pixbuf.AlphaNone
	if sh.HasAlpha {
		alphaMode = pixbuf.AlphaStraight
	}

	mf := multiframe.NewEncoder(multiframe.Options{MaxReferenceFrames: 4, MaxSample: maxSample})
	frames, err := mf.DecodeSequence(br, sh.Width, sh.Height, sh.Channels)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}

	out := make([]image.Image, len(frames))
	for i, f := range frames {
		img, err := frameFromChannels(f.Width, f.Height, f.Channels, maxSample, alphaMode)
		if err != nil {
			return nil, errors.Wrap(ErrDecodeFailed, err.Error())
		}
		out[i] = img
	}
	return out, nil
}
