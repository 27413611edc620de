// Package modular implements the lossless coding path: an optional
// reversible color transform across the three color channels, per-channel
// MED residual coding (with optional recursive squeeze for responsive
// layers), and entropy coding of the resulting residual stream.
//
// The per-channel pipeline mirrors the tile/component/band orchestration
// the VarDCT path also uses (see internal/vardct), generalized here to
// whole-plane, block-free processing since the lossless path predicts
// pixel-by-pixel rather than block-by-block.
package modular

import (
	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
	"github.com/gojxl/jxl/internal/colorxform"
	"github.com/gojxl/jxl/internal/entropy"
	"github.com/gojxl/jxl/internal/predict"
)

// Options controls a modular encode.
type Options struct {
	// UseRCT applies the reversible YCoCg-R transform across channels 0-2
	// before per-channel coding. Only meaningful for 3-channel (RGB-like)
	// frames.
	UseRCT bool
	// SqueezeLevels is the number of recursive horizontal+vertical squeeze
	// passes applied to each channel before residual coding (used for
	// responsive layering). 0 disables squeeze.
	SqueezeLevels int
	// MaxSample bounds the MED predictor's clamp range, derived from the
	// frame's bit depth (e.g. 255 for 8-bit, 65535 for 16-bit).
	MaxSample int32
	// UseANS additionally rANS-compresses each channel's zigzag-coded
	// residual stream via internal/entropy, the same entropy-coder
	// component VarDCT's Options.UseANS selects for coefficient blocks.
	// When false, residuals are written as flat zigzag varints only.
	UseANS bool
}

// Channel is one plane of int32 samples with its own width/height (which
// may shrink per recursive squeeze level, though the modular path here
// squeezes in place within a fixed-size buffer and tracks active extents
// instead of reallocating).
type Channel struct {
	Width, Height int
	Data          []int32
}

// EncodeFrame encodes channels (already color-transformed per Options, or
// about to be if UseRCT and len(channels)>=3) to w, writing a channel-start
// varint length marker ahead of each channel's residual stream so the
// decoder can skip to channel boundaries without fully parsing the entropy
// stream.
func EncodeFrame(w *bio.Writer, channels []Channel, opts Options) error {
	if opts.UseRCT && len(channels) >= 3 {
		r, g, b := channels[0].Data, channels[1].Data, channels[2].Data
		colorxform.ForwardRCT(r, g, b)
	}

	for ci, ch := range channels {
		width, height := ch.Width, ch.Height
		for level := 0; level < opts.SqueezeLevels; level++ {
			predict.SqueezeHorizontal(ch.Data, ch.Width, width, height)
			width = (width + 1) / 2
			predict.SqueezeVertical(ch.Data, ch.Width, ch.Width, height)
			height = (height + 1) / 2
		}

		residuals := medResiduals(ch.Data, ch.Width, ch.Height, opts.MaxSample)

		payload, err := encodeResiduals(residuals, opts.UseANS)
		if err != nil {
			return errors.Wrapf(err, "channel %d", ci)
		}
		if err := w.WriteVarint(uint64(len(payload))); err != nil {
			return errors.Wrapf(err, "channel %d start marker", ci)
		}
		if err := w.WriteData(payload); err != nil {
			return errors.Wrapf(err, "channel %d payload", ci)
		}
	}
	return nil
}

// DecodeFrame reads len(channels) channel streams written by EncodeFrame,
// reconstructing each channel's samples (including undoing squeeze and, if
// opts.UseRCT, the cross-channel color transform) into the pre-sized
// Channel.Data buffers.
func DecodeFrame(r *bio.Reader, channels []Channel, opts Options) error {
	for ci, ch := range channels {
		n, err := r.ReadVarint()
		if err != nil {
			return errors.Wrapf(err, "channel %d start marker", ci)
		}
		payload, err := r.ReadData(int(n))
		if err != nil {
			return errors.Wrapf(err, "channel %d payload", ci)
		}

		residuals, err := decodeResiduals(payload, ch.Width*ch.Height)
		if err != nil {
			return errors.Wrapf(err, "channel %d residuals", ci)
		}
		reconstructMED(residuals, ch.Data, ch.Width, ch.Height, opts.MaxSample)

		width, height := ch.Width, ch.Height
		levelWidths := make([]int, opts.SqueezeLevels)
		levelHeights := make([]int, opts.SqueezeLevels)
		for level := 0; level < opts.SqueezeLevels; level++ {
			levelWidths[level] = width
			levelHeights[level] = height
			width = (width + 1) / 2
			height = (height + 1) / 2
		}
		for level := opts.SqueezeLevels - 1; level >= 0; level-- {
			predict.UnsqueezeVertical(ch.Data, ch.Width, ch.Width, levelHeights[level])
			predict.UnsqueezeHorizontal(ch.Data, ch.Width, levelWidths[level], levelHeights[level])
		}
	}

	if opts.UseRCT && len(channels) >= 3 {
		r, g, b := channels[0].Data, channels[1].Data, channels[2].Data
		colorxform.InverseRCT(r, g, b)
	}
	return nil
}

// medResiduals computes the MED residual plane for a W x H region of plane
// (stored with stride == width), in raster order.
func medResiduals(plane []int32, width, height int, maxSample int32) []int32 {
	out := make([]int32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			n, w, nw := predict.MEDNeighbors(plane, width, x, y)
			pred := predict.MEDPredict(n, w, nw, maxSample)
			out[y*width+x] = predict.MEDResidual(plane[y*width+x], pred)
		}
	}
	return out
}

// reconstructMED inverts medResiduals in place into dst, which must
// already be sized width*height; reconstruction proceeds in raster order
// since each pixel's predictor depends only on already-reconstructed
// causal neighbors.
func reconstructMED(residuals []int32, dst []int32, width, height int, maxSample int32) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			n, w, nw := predict.MEDNeighbors(dst, width, x, y)
			pred := predict.MEDPredict(n, w, nw, maxSample)
			dst[y*width+x] = predict.MEDReconstruct(residuals[y*width+x], pred)
		}
	}
}

// encodeResiduals zigzag-maps each residual to a varint, the same mapping
// internal/entropy's fast path uses for VarDCT coefficients. When useANS
// is set, that varint stream is additionally rANS-compressed via
// entropy.EncodeBytesAdaptive instead of written flat; a leading flag byte
// records which framing decodeResiduals should expect.
func encodeResiduals(residuals []int32, useANS bool) ([]byte, error) {
	var inner rawBuffer
	iw := bio.NewWriter(&inner)
	for _, r := range residuals {
		if err := iw.WriteVarint(uint64(entropy.ZigzagEncode(r))); err != nil {
			return nil, err
		}
	}
	if err := iw.FlushByte(); err != nil {
		return nil, err
	}

	var out rawBuffer
	ow := bio.NewWriter(&out)
	flag := byte(0)
	if useANS {
		flag = 1
	}
	if err := ow.WriteByte(flag); err != nil {
		return nil, err
	}
	if !useANS {
		if err := ow.WriteData(inner.data); err != nil {
			return nil, err
		}
		return out.data, nil
	}
	if err := ow.WriteVarint(uint64(len(inner.data))); err != nil {
		return nil, err
	}
	if err := entropy.EncodeBytesAdaptive(ow, inner.data); err != nil {
		return nil, err
	}
	return out.data, nil
}

func decodeResiduals(payload []byte, n int) ([]int32, error) {
	buf := rawBuffer{data: payload}
	r := bio.NewReader(&buf)
	flag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	var inner []byte
	if flag == 0 {
		inner, err = r.ReadData(len(payload) - 1)
		if err != nil {
			return nil, err
		}
	} else {
		rawLen, err := r.ReadVarint()
		if err != nil {
			return nil, err
		}
		inner, err = entropy.DecodeBytesAdaptive(r, int(rawLen))
		if err != nil {
			return nil, err
		}
	}

	ir := bio.NewReader(&rawBuffer{data: inner})
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		v, err := ir.ReadVarint()
		if err != nil {
			return nil, err
		}
		out[i] = entropy.ZigzagDecode(uint32(v))
	}
	return out, nil
}

// rawBuffer is a minimal growable byte buffer implementing io.Writer and
// io.Reader, used to frame per-channel payloads independently of the
// parent bitstream so channel-start markers can record exact byte lengths.
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
		return 0, errors.New("modular: read past end of buffer")
	}
	return n, nil
}
