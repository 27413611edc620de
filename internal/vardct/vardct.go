// Package vardct implements the lossy coding path over planes the caller
// has already color-transformed (YCbCr or XYB; ColorMode names the
// choice): per-8x8-block forward DCT, (optionally adaptive, optionally
// ROI-adjusted) quantization, DC prediction against causal neighbors,
// zigzag scan, and entropy coding. Decode reverses each stage.
package vardct

import (
	"math"

	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
	"github.com/gojxl/jxl/internal/blockdct"
	"github.com/gojxl/jxl/internal/entropy"
	"github.com/gojxl/jxl/internal/predict"
)

// ColorMode selects the lossy color transform.
type ColorMode int

const (
	ColorYCbCr ColorMode = iota
	ColorXYB
)

// ROI is a region-of-interest quality boost: blocks whose center falls
// within (X, Y, W, H) get their quantization matrix scaled down (finer)
// by up to Boost quality points, feathered over FeatherRadius pixels at
// the boundary using a smoothstep falloff.
type ROI struct {
	X, Y, W, H    int
	Boost         float64 // quality points, 0..50
	FeatherRadius int
}

// Options controls a VarDCT encode.
type Options struct {
	Distance           float64 // base quantization distance
	AdaptiveQuant      bool
	AdaptiveK          float32 // variance->scale coefficient, spec default 0.08
	ROI                *ROI
	UseANS             bool
	Width, Height      int
	ChannelCount       int
}

// Channel is one color-transformed plane, stored row-major at full frame
// resolution.
type Channel struct {
	Data   []float32
	Chroma bool // scales the base quantization matrix by 1.5 per spec
}

// blocksPerRow returns ceil(width/8).
func blocksPerRow(width int) int {
	return (width + 7) / 8
}

func blocksPerCol(height int) int {
	return (height + 7) / 8
}

// roiWeight returns the quantization-scale multiplier for the block whose
// top-left spatial corner is (bx*8, by*8), given roi (nil means no ROI).
// Inside the region the matrix is scaled by 1/(1+boost/100); outside
// it is 1.0; within FeatherRadius of the boundary a smoothstep blends the
// two, per (1-cos(pi*t))/2.
func roiWeight(bx, by int, roi *ROI) float32 {
	if roi == nil {
		return 1.0
	}
	cx, cy := bx*8+4, by*8+4
	dx := distanceToRect(cx, roi.X, roi.X+roi.W)
	dy := distanceToRect(cy, roi.Y, roi.Y+roi.H)
	dist := math.Max(dx, dy)

	inner := 1.0 / (1.0 + roi.Boost/100.0)
	if dist <= 0 {
		return float32(inner)
	}
	if roi.FeatherRadius <= 0 || dist >= float64(roi.FeatherRadius) {
		return 1.0
	}
	t := dist / float64(roi.FeatherRadius)
	smooth := (1 - math.Cos(math.Pi*(1-t))) / 2
	return float32(inner + (1-inner)*(1-smooth))
}

// distanceToRect returns how far coordinate c is outside [lo, hi); 0 if
// inside.
func distanceToRect(c, lo, hi int) float64 {
	if c < lo {
		return float64(lo - c)
	}
	if c >= hi {
		return float64(c - hi + 1)
	}
	return 0
}

// EncodeFrame encodes channels to w. Each channel writes a per-channel
// end-of-channel token after its last block, per the spec's framing.
func EncodeFrame(w *bio.Writer, channels []Channel, opts Options) error {
	bw, bh := blocksPerRow(opts.Width), blocksPerCol(opts.Height)

	for ci, ch := range channels {
		base := blockdct.NewQuantMatrix(opts.Distance, ch.Chroma)

		dcPred := make([]float32, bw) // previous row's DC, for "above" neighbor
		var leftDC float32
		var hasLeftRow bool

		block := make([]float32, 64)
		q := make([]int16, 64)
		coeffsZZ := make([]int16, 64)

		for by := 0; by < bh; by++ {
			hasLeftRow = false
			for bx := 0; bx < bw; bx++ {
				extractBlock(ch.Data, opts.Width, opts.Height, bx, by, block)
				blockdct.ForwardDCT(block)

				m := base
				if opts.AdaptiveQuant {
					variance := blockdct.BlockVariance(block)
					idx := quantizeScale(blockdct.VarianceQuantScale(variance, opts.AdaptiveK))
					m = m.Scale(dequantizeScale(idx))
					if err := w.WriteVarint(uint64(idx)); err != nil {
						return errors.Wrapf(err, "channel %d block (%d,%d) scale", ci, bx, by)
					}
				}
				if opts.ROI != nil {
					m = m.Scale(roiWeight(bx, by, opts.ROI))
				}

				blockdct.Quantize(block, m, q)

				actualDC := float32(q[0])
				hasAbove := by > 0
				var above float32
				if hasAbove {
					above = dcPred[bx]
				}
				pred := predict.PredictDC(leftDC, above, hasLeftRow, hasAbove)
				residual := predict.DCResidual(actualDC, pred)
				dcPred[bx] = actualDC
				leftDC = actualDC
				hasLeftRow = true

				q[0] = int16(residual)
				blockdct.ZigzagInt(q, coeffsZZ)

				if opts.UseANS {
					if err := encodeBlockANS(w, coeffsZZ, ci); err != nil {
						return errors.Wrapf(err, "channel %d block (%d,%d)", ci, bx, by)
					}
				} else if err := entropy.EncodeBlockRLE(w, coeffsZZ); err != nil {
					return errors.Wrapf(err, "channel %d block (%d,%d)", ci, bx, by)
				}
			}
		}
		if err := w.WriteVarint(endOfChannel); err != nil {
			return errors.Wrapf(err, "channel %d end token", ci)
		}
	}
	return nil
}

const endOfChannel = 0xFFFFFF

// DecodeFrame reads len(channels) channel streams written by EncodeFrame
// back into channels[i].Data (pre-sized to opts.Width*opts.Height).
func DecodeFrame(r *bio.Reader, channels []Channel, opts Options) error {
	bw, bh := blocksPerRow(opts.Width), blocksPerCol(opts.Height)

	for ci, ch := range channels {
		base := blockdct.NewQuantMatrix(opts.Distance, ch.Chroma)

		dcPred := make([]float32, bw)
		var leftDC float32
		var hasLeftRow bool

		coeffsZZ := make([]int16, 64)
		q := make([]int16, 64)
		block := make([]float32, 64)

		for by := 0; by < bh; by++ {
			hasLeftRow = false
			for bx := 0; bx < bw; bx++ {
				m := base
				if opts.AdaptiveQuant {
					idx, err := r.ReadVarint()
					if err != nil {
						return errors.Wrapf(err, "channel %d block (%d,%d) scale", ci, bx, by)
					}
					m = m.Scale(dequantizeScale(uint8(idx)))
				}
				if opts.ROI != nil {
					m = m.Scale(roiWeight(bx, by, opts.ROI))
				}

				var err error
				if opts.UseANS {
					err = decodeBlockANS(r, coeffsZZ, ci)
				} else {
					err = entropy.DecodeBlockRLE(r, coeffsZZ)
				}
				if err != nil {
					return errors.Wrapf(err, "channel %d block (%d,%d)", ci, bx, by)
				}
				blockdct.InverseZigzagInt(coeffsZZ, q)

				hasAbove := by > 0
				var above float32
				if hasAbove {
					above = dcPred[bx]
				}
				pred := predict.PredictDC(leftDC, above, hasLeftRow, hasAbove)
				actualDC := predict.ReconstructDC(float32(q[0]), pred)
				dcPred[bx] = actualDC
				leftDC = actualDC
				hasLeftRow = true
				q[0] = int16(math.Round(float64(actualDC)))

				blockdct.Dequantize(q, m, block)
				blockdct.InverseDCT(block)
				storeBlock(block, ch.Data, opts.Width, opts.Height, bx, by)
			}
		}
		end, err := r.ReadVarint()
		if err != nil {
			return errors.Wrapf(err, "channel %d end token", ci)
		}
		if end != endOfChannel {
			return errors.Errorf("channel %d: expected end-of-channel token, got %d", ci, end)
		}
	}
	return nil
}

// quantizeScale/dequantizeScale carry an adaptive quantization scale
// factor (clamped to [0.5, 2.0] by blockdct.VarianceQuantScale) through a
// single byte, to within half of a 1.5/255 step. EncodeFrame quantizes
// with the byte-rounded scale, so the decoder can reapply the exact matrix
// the encoder used without recomputing variance from already-lossy
// dequantized samples.
const scaleMin, scaleMax = 0.5, 2.0

func quantizeScale(scale float32) uint8 {
	t := (scale - scaleMin) / (scaleMax - scaleMin)
	return uint8(math.Round(float64(t) * 255))
}

func dequantizeScale(idx uint8) float32 {
	t := float64(idx) / 255
	return float32(scaleMin + t*(scaleMax-scaleMin))
}

// rANS context layout for one block's coefficients: a small bank of
// per-channel DC models, one shared model for the run-length byte stream,
// and one model per (frequency band x previous-run bucket) combination for
// AC value bytes, per DESIGN.md's context-partitioning decision. Each
// model is rebuilt from that context's own byte histogram within the
// block and transmitted ahead of its coded stream, so encode/decode never
// depend on cross-block state.
const (
	numDCModels    = 4
	numACBands     = 3 // entropy.ContextLowFreq/MidFreq/HighFreq
	numRunBuckets  = 3
	runContextIdx  = numDCModels
	numANSContexts = numDCModels + 1 + numACBands*numRunBuckets
)

func dcContextIdx(channel int) int {
	return entropy.DCContext(channel) % numDCModels
}

func acValueContextIdx(band entropy.Context, runBucket int) int {
	return numDCModels + 1 + int(band)*numRunBuckets + runBucket
}

// encodeBlockANS rANS-codes a zigzag-ordered coefficient block: coeffs[0]
// is the DC residual, coeffs[1:] the AC coefficients. Unlike the RLE fast
// path, each field is routed to one of several context models (DC by
// channel, run lengths under one shared model, AC values by frequency
// band crossed with the preceding run-length bucket) before being rANS
// coded.
func encodeBlockANS(w *bio.Writer, coeffs []int16, channel int) error {
	var perContext [numANSContexts][]byte

	dc := entropy.ZigzagEncode(int32(coeffs[0]))
	count := 0
	run := 0
	for _, c := range coeffs[1:] {
		if c == 0 {
			run++
			continue
		}
		count++
		run = 0
	}

	ctxDC := dcContextIdx(channel)
	perContext[ctxDC] = append(perContext[ctxDC], byte(dc), byte(dc>>8), byte(count))

	run = 0
	for pos, c := range coeffs[1:] {
		if c == 0 {
			run++
			continue
		}
		perContext[runContextIdx] = append(perContext[runContextIdx], byte(run))

		band := entropy.ACBandContext(pos + 1)
		bucket := entropy.RunBucket(run)
		ctx := acValueContextIdx(band, bucket)
		zz := entropy.ZigzagEncode(int32(c))
		perContext[ctx] = append(perContext[ctx], byte(zz), byte(zz>>8))
		run = 0
	}

	for ctx := 0; ctx < numANSContexts; ctx++ {
		data := perContext[ctx]
		if err := w.WriteVarint(uint64(len(data))); err != nil {
			return errors.Wrapf(err, "ans context %d length", ctx)
		}
		if len(data) == 0 {
			continue
		}
		if err := entropy.EncodeBytesAdaptive(w, data); err != nil {
			return errors.Wrapf(err, "ans context %d data", ctx)
		}
	}
	return nil
}

// decodeBlockANS is the exact inverse of encodeBlockANS.
func decodeBlockANS(r *bio.Reader, coeffs []int16, channel int) error {
	for i := range coeffs {
		coeffs[i] = 0
	}

	perContext := make([][]byte, numANSContexts)
	for ctx := 0; ctx < numANSContexts; ctx++ {
		n, err := r.ReadVarint()
		if err != nil {
			return errors.Wrapf(err, "ans context %d length", ctx)
		}
		if n == 0 {
			continue
		}
		data, err := entropy.DecodeBytesAdaptive(r, int(n))
		if err != nil {
			return errors.Wrapf(err, "ans context %d data", ctx)
		}
		perContext[ctx] = data
	}

	ctxDC := dcContextIdx(channel)
	dcBytes := perContext[ctxDC]
	if len(dcBytes) < 3 {
		return errors.Wrap(entropy.ErrCorruptStream, "ans dc context truncated")
	}
	dc := uint32(dcBytes[0]) | uint32(dcBytes[1])<<8
	coeffs[0] = int16(entropy.ZigzagDecode(dc))
	count := int(dcBytes[2])

	runBytes := perContext[runContextIdx]
	if len(runBytes) < count {
		return errors.Wrap(entropy.ErrCorruptStream, "ans run context truncated")
	}

	cursor := make([]int, numACBands*numRunBuckets)
	pos := 1
	for i := 0; i < count; i++ {
		run := int(runBytes[i])
		pos += run
		if pos >= len(coeffs) {
			return errors.Wrap(entropy.ErrCorruptStream, "ans run overruns block")
		}

		band := entropy.ACBandContext(pos)
		bucket := entropy.RunBucket(run)
		ctx := acValueContextIdx(band, bucket)
		data := perContext[ctx]
		c := cursor[ctx-(numDCModels+1)]
		if c+2 > len(data) {
			return errors.Wrap(entropy.ErrCorruptStream, "ans value context truncated")
		}
		zz := uint32(data[c]) | uint32(data[c+1])<<8
		coeffs[pos] = int16(entropy.ZigzagDecode(zz))
		cursor[ctx-(numDCModels+1)] += 2
		pos++
	}
	return nil
}

// extractBlock copies the 8x8 spatial block at block coordinates (bx,by)
// from plane (row-major, width x height) into dst, zero-padding samples
// that fall outside the plane for a partial block at the right/bottom edge.
func extractBlock(plane []float32, width, height, bx, by int, dst []float32) {
	x0, y0 := bx*8, by*8
	for y := 0; y < 8; y++ {
		py := y0 + y
		for x := 0; x < 8; x++ {
			px := x0 + x
			if px < width && py < height {
				dst[y*8+x] = plane[py*width+px]
			} else {
				dst[y*8+x] = 0
			}
		}
	}
}

// storeBlock writes dst (8x8) back into plane at block coordinates
// (bx,by), clipping to the plane bounds for a partial edge block.
func storeBlock(block []float32, plane []float32, width, height, bx, by int) {
	x0, y0 := bx*8, by*8
	for y := 0; y < 8; y++ {
		py := y0 + y
		if py >= height {
			continue
		}
		for x := 0; x < 8; x++ {
			px := x0 + x
			if px >= width {
				continue
			}
			plane[py*width+px] = block[y*8+x]
		}
	}
}
