package entropy

import (
	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
)

// EncodeBlockRLE writes one zigzag-ordered, quantized 8x8 block (dc is
// coeffs[0], ac is coeffs[1:]) using the RLE+Golomb-Rice fast path: the DC
// coefficient as a signed varint, then the AC run as (run-length, value)
// varint pairs, terminated by the end-of-block sentinel.
func EncodeBlockRLE(w *bio.Writer, coeffs []int16) error {
	if len(coeffs) == 0 {
		return errors.Wrap(ErrCorruptStream, "empty block")
	}

	if err := w.WriteVarint(uint64(ZigzagEncode(int32(coeffs[0])))); err != nil {
		return errors.Wrap(err, "write dc")
	}

	run := 0
	for _, c := range coeffs[1:] {
		if c == 0 {
			run++
			continue
		}
		if err := w.WriteVarint(uint64(run)); err != nil {
			return errors.Wrap(err, "write run")
		}
		if err := w.WriteVarint(uint64(ZigzagEncode(int32(c)))); err != nil {
			return errors.Wrap(err, "write ac value")
		}
		run = 0
	}

	if err := w.WriteVarint(endOfBlock); err != nil {
		return errors.Wrap(err, "write end of block")
	}
	return nil
}

// DecodeBlockRLE reads one block encoded by EncodeBlockRLE into coeffs
// (len 64), zero-filling any trailing AC positions not explicitly coded.
func DecodeBlockRLE(r *bio.Reader, coeffs []int16) error {
	for i := range coeffs {
		coeffs[i] = 0
	}

	dc, err := r.ReadVarint()
	if err != nil {
		return errors.Wrap(err, "read dc")
	}
	coeffs[0] = int16(ZigzagDecode(uint32(dc)))

	pos := 1
	for {
		run, err := r.ReadVarint()
		if err != nil {
			return errors.Wrap(err, "read run")
		}
		if run == endOfBlock {
			return nil
		}

		pos += int(run)
		if pos >= len(coeffs) {
			return errors.Wrap(ErrCorruptStream, "run overruns block")
		}

		val, err := r.ReadVarint()
		if err != nil {
			return errors.Wrap(err, "read ac value")
		}
		coeffs[pos] = int16(ZigzagDecode(uint32(val)))
		pos++
	}
}
