// Package entropy implements the two entropy-coding paths selectable by
// EncodingOptions.UseANS: a simplified RLE+Golomb-Rice fast path, and an
// rANS (Annex A) compression path with per-context quantized symbol
// tables.
//
// VarDCT consumes and produces zigzag-ordered int16 coefficient blocks
// through both paths (EncodeBlockRLE/DecodeBlockRLE, or a bank of
// per-context Models driven by EncodeBytes/DecodeBytes). Modular instead
// rANS-compresses its flat zigzag-varint residual stream as a single
// adaptive context via EncodeBytesAdaptive/DecodeBytesAdaptive. Either
// way, the choice of path is orthogonal to the color transform and the
// predictor stage upstream.
package entropy

import (
	"github.com/pkg/errors"
)

// ErrTruncatedStream is returned when a decode runs out of input before
// finding an end-of-block marker.
var ErrTruncatedStream = errors.New("entropy: truncated stream")

// ErrCorruptStream is returned when a decode encounters a structurally
// invalid symbol (e.g. an rANS state outside the renormalization range).
var ErrCorruptStream = errors.New("entropy: corrupt stream")

// endOfBlock is the sentinel that terminates a run-length encoded AC
// sequence, per the fast path's framing.
const endOfBlock = 0xFFFF

// ZigzagEncode maps a signed i32 to an unsigned code preserving sign
// order: non-negative v -> 2v, negative v -> -2v-1. This is the "map i32 x
// to u32 by (x<<1)^(x>>31)" transform from the modular-path residual
// coding rule, computed with that same shift-and-xor (no branch).
func ZigzagEncode(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

// ZigzagDecode inverts ZigzagEncode.
func ZigzagDecode(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}
