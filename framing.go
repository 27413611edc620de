package jxl

import (
	"math"

	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
	"github.com/gojxl/jxl/internal/codestream"
	"github.com/gojxl/jxl/internal/pixbuf"
)

// sizeHeaderFor builds the codestream.SizeHeader describing frame's
// layout.
func sizeHeaderFor(f *pixbuf.ImageFrame) codestream.SizeHeader {
	return codestream.SizeHeader{
		Width: f.Width, Height: f.Height, Channels: f.Channels,
		BitsPerSample:  f.BitDepth,
		HasAlpha:       f.AlphaMode != pixbuf.AlphaNone,
		ColorIndicator: colorIndicatorFor(f),
	}
}

func colorIndicatorFor(f *pixbuf.ImageFrame) codestream.ColorSpaceIndicator {
	if f.ColorSpace == pixbuf.ColorSpaceGrayscale {
		return codestream.ColorIndicatorGrayscale
	}
	return codestream.ColorIndicatorSRGB
}

// modularCodecHeader precedes a Modular frame's payload, carrying the
// bitstream choices (RCT, squeeze depth) a decoder needs to mirror the
// encoder's per-channel pipeline; FrameHeader itself only distinguishes
// Modular from VarDCT, not these path-specific parameters.
type modularCodecHeader struct {
	UseRCT        bool
	SqueezeLevels int
}

func writeModularCodecHeader(w *bio.Writer, h modularCodecHeader) error {
	rct := uint32(0)
	if h.UseRCT {
		rct = 1
	}
	if err := w.WriteBits(rct, 1); err != nil {
		return errors.Wrap(err, "write use_rct")
	}
	return w.WriteVarint(uint64(h.SqueezeLevels))
}

func readModularCodecHeader(r *bio.Reader) (modularCodecHeader, error) {
	var h modularCodecHeader
	rct, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read use_rct")
	}
	h.UseRCT = rct == 1
	sq, err := r.ReadVarint()
	if err != nil {
		return h, errors.Wrap(err, "read squeeze levels")
	}
	h.SqueezeLevels = int(sq)
	return h, nil
}

// vardctCodecHeader precedes a VarDCT frame's payload (or each responsive
// layer's), carrying the quantization and color-transform choices.
type vardctCodecHeader struct {
	ColorSpace    ColorSpace
	Distance      float64
	AdaptiveQuant bool
	UseANS        bool
	HasROI        bool
	ROI           ROI
}

func writeVardctCodecHeader(w *bio.Writer, h vardctCodecHeader) error {
	cs := uint32(0)
	if h.ColorSpace == ColorSpaceXYB {
		cs = 1
	}
	if err := w.WriteBits(cs, 1); err != nil {
		return errors.Wrap(err, "write color space")
	}
	if err := w.WriteVarint(uint64(math.Round(h.Distance * 1000))); err != nil {
		return errors.Wrap(err, "write distance")
	}
	aq := uint32(0)
	if h.AdaptiveQuant {
		aq = 1
	}
	if err := w.WriteBits(aq, 1); err != nil {
		return errors.Wrap(err, "write adaptive quant flag")
	}
	ans := uint32(0)
	if h.UseANS {
		ans = 1
	}
	if err := w.WriteBits(ans, 1); err != nil {
		return errors.Wrap(err, "write ans flag")
	}
	hasROI := uint32(0)
	if h.HasROI {
		hasROI = 1
	}
	if err := w.WriteBits(hasROI, 1); err != nil {
		return errors.Wrap(err, "write roi flag")
	}
	if !h.HasROI {
		return nil
	}
	for _, v := range []int{h.ROI.X, h.ROI.Y, h.ROI.W, h.ROI.H, h.ROI.FeatherRadius} {
		if err := w.WriteVarint(uint64(v)); err != nil {
			return errors.Wrap(err, "write roi field")
		}
	}
	return w.WriteVarint(uint64(math.Round(h.ROI.Boost * 1000)))
}

func readVardctCodecHeader(r *bio.Reader) (vardctCodecHeader, error) {
	var h vardctCodecHeader
	cs, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read color space")
	}
	if cs == 1 {
		h.ColorSpace = ColorSpaceXYB
	} else {
		h.ColorSpace = ColorSpaceSRGB
	}
	dist, err := r.ReadVarint()
	if err != nil {
		return h, errors.Wrap(err, "read distance")
	}
	h.Distance = float64(dist) / 1000

	aq, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read adaptive quant flag")
	}
	h.AdaptiveQuant = aq == 1

	ans, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read ans flag")
	}
	h.UseANS = ans == 1

	hasROI, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read roi flag")
	}
	h.HasROI = hasROI == 1
	if !h.HasROI {
		return h, nil
	}
	fields := make([]int, 5)
	for i := range fields {
		v, err := r.ReadVarint()
		if err != nil {
			return h, errors.Wrap(err, "read roi field")
		}
		fields[i] = int(v)
	}
	h.ROI.X, h.ROI.Y, h.ROI.W, h.ROI.H, h.ROI.FeatherRadius = fields[0], fields[1], fields[2], fields[3], fields[4]
	boost, err := r.ReadVarint()
	if err != nil {
		return h, errors.Wrap(err, "read roi boost")
	}
	h.ROI.Boost = float64(boost) / 1000
	return h, nil
}

const extraChannelOpsNoise uint8 = 1 << 0
