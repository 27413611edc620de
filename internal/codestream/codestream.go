// Package codestream implements the bare JPEG XL codestream framing: the
// leading signature, the SizeHeader and ImageHeader, a sequence of Frame
// records, and the terminator. It does not wrap the codestream in an
// ISOBMFF container; see internal/container for that.
package codestream

import (
	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
)

// ErrBadSignature is returned when a stream does not begin with the JXL
// signature bytes.
var ErrBadSignature = errors.New("codestream: bad signature")

// ColorSpaceIndicator mirrors pixbuf.ColorSpaceTag but as a compact wire
// value, decoupling the codestream's encoding from the in-memory tag's
// representation.
type ColorSpaceIndicator uint8

const (
	ColorIndicatorSRGB ColorSpaceIndicator = iota
	ColorIndicatorLinearRGB
	ColorIndicatorGrayscale
	ColorIndicatorCMYK
	ColorIndicatorCustom
)

// SizeHeader records the frame dimensions and basic sample layout.
type SizeHeader struct {
	Width, Height  int
	Channels       int
	BitsPerSample  int
	HasAlpha       bool
	ColorIndicator ColorSpaceIndicator
}

// sizeClass selects the most compact of the three width/height encodings
// the spec allows, per dimension independently would waste bits when the
// two dimensions need different classes, so the header picks a single
// class sized for the larger of the two.
type sizeClass uint8

const (
	sizeClass9 sizeClass = iota // <= 256, 9 bits
	sizeClass13
	sizeClassFallback
)

func classify(v int) sizeClass {
	switch {
	case v <= 256:
		return sizeClass9
	case v <= 512:
		return sizeClass13
	default:
		return sizeClassFallback
	}
}

func writeDim(w *bio.Writer, v int, class sizeClass) error {
	switch class {
	case sizeClass9:
		return w.WriteBits(uint32(v), 9)
	case sizeClass13:
		return w.WriteBits(uint32(v), 13)
	default:
		// Arbitrary-length fallback: 2-bit size class (number of extra
		// bytes beyond 2, 0..3) followed by the raw bits.
		nbytes := byteLen(v)
		if nbytes < 2 {
			nbytes = 2
		}
		if nbytes > 5 {
			return errors.Errorf("dimension %d too large to encode", v)
		}
		if err := w.WriteBits(uint32(nbytes-2), 2); err != nil {
			return err
		}
		return w.WriteBits(uint32(v), uint(nbytes)*8)
	}
}

func byteLen(v int) int {
	n := 0
	for x := v; x > 0; x >>= 8 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

func readDim(r *bio.Reader, class sizeClass) (int, error) {
	switch class {
	case sizeClass9:
		v, err := r.ReadBits(9)
		return int(v), err
	case sizeClass13:
		v, err := r.ReadBits(13)
		return int(v), err
	default:
		extra, err := r.ReadBits(2)
		if err != nil {
			return 0, err
		}
		nbytes := int(extra) + 2
		v, err := r.ReadBits(uint(nbytes) * 8)
		return int(v), err
	}
}

// WriteSignature writes the two-byte JXL codestream signature.
func WriteSignature(w *bio.Writer) error {
	return w.JXLSignature()
}

// ReadSignature reads and validates the two-byte JXL codestream signature.
func ReadSignature(r *bio.Reader) error {
	b0, err := r.ReadByte()
	if err != nil {
		return errors.Wrap(err, "read signature byte 0")
	}
	b1, err := r.ReadByte()
	if err != nil {
		return errors.Wrap(err, "read signature byte 1")
	}
	if b0 != 0xFF || b1 != 0x0A {
		return errors.Wrapf(ErrBadSignature, "got %02x %02x", b0, b1)
	}
	return nil
}

// WriteSizeHeader writes h, selecting the most compact dimension class
// that fits both width and height.
func WriteSizeHeader(w *bio.Writer, h SizeHeader) error {
	class := classify(h.Width)
	if c := classify(h.Height); c > class {
		class = c
	}
	if err := w.WriteBits(uint32(class), 2); err != nil {
		return errors.Wrap(err, "write size class")
	}
	if err := writeDim(w, h.Width, class); err != nil {
		return errors.Wrap(err, "write width")
	}
	if err := writeDim(w, h.Height, class); err != nil {
		return errors.Wrap(err, "write height")
	}
	if err := w.WriteBits(uint32(h.Channels), 4); err != nil {
		return errors.Wrap(err, "write channel count")
	}
	if err := w.WriteBits(uint32(h.BitsPerSample), 6); err != nil {
		return errors.Wrap(err, "write bits per sample")
	}
	alpha := uint32(0)
	if h.HasAlpha {
		alpha = 1
	}
	if err := w.WriteBits(alpha, 1); err != nil {
		return errors.Wrap(err, "write alpha flag")
	}
	if err := w.WriteBits(uint32(h.ColorIndicator), 3); err != nil {
		return errors.Wrap(err, "write color indicator")
	}
	return nil
}

// ReadSizeHeader reads a SizeHeader written by WriteSizeHeader.
func ReadSizeHeader(r *bio.Reader) (SizeHeader, error) {
	var h SizeHeader
	classBits, err := r.ReadBits(2)
	if err != nil {
		return h, errors.Wrap(err, "read size class")
	}
	class := sizeClass(classBits)

	w, err := readDim(r, class)
	if err != nil {
		return h, errors.Wrap(err, "read width")
	}
	ht, err := readDim(r, class)
	if err != nil {
		return h, errors.Wrap(err, "read height")
	}
	h.Width, h.Height = w, ht

	ch, err := r.ReadBits(4)
	if err != nil {
		return h, errors.Wrap(err, "read channel count")
	}
	h.Channels = int(ch)

	bps, err := r.ReadBits(6)
	if err != nil {
		return h, errors.Wrap(err, "read bits per sample")
	}
	h.BitsPerSample = int(bps)

	alpha, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read alpha flag")
	}
	h.HasAlpha = alpha == 1

	ci, err := r.ReadBits(3)
	if err != nil {
		return h, errors.Wrap(err, "read color indicator")
	}
	h.ColorIndicator = ColorSpaceIndicator(ci)

	return h, nil
}

// ImageHeader carries the orientation and extra-channel count; extra
// channel descriptors themselves are carried per-frame by the caller
// (modular/vardct channel lists), not re-described here.
type ImageHeader struct {
	Orientation       int
	ExtraChannelCount int
}

// WriteImageHeader writes h.
func WriteImageHeader(w *bio.Writer, h ImageHeader) error {
	if err := w.WriteBits(uint32(h.Orientation), 4); err != nil {
		return errors.Wrap(err, "write orientation")
	}
	if err := w.WriteVarint(uint64(h.ExtraChannelCount)); err != nil {
		return errors.Wrap(err, "write extra channel count")
	}
	return nil
}

// ReadImageHeader reads an ImageHeader written by WriteImageHeader.
func ReadImageHeader(r *bio.Reader) (ImageHeader, error) {
	var h ImageHeader
	o, err := r.ReadBits(4)
	if err != nil {
		return h, errors.Wrap(err, "read orientation")
	}
	h.Orientation = int(o)

	n, err := r.ReadVarint()
	if err != nil {
		return h, errors.Wrap(err, "read extra channel count")
	}
	h.ExtraChannelCount = int(n)
	return h, nil
}

// FrameMode selects the coding path used by a frame.
type FrameMode uint8

const (
	FrameModular FrameMode = iota
	FrameVarDCT
)

// FrameHeader precedes each frame's coded payload.
type FrameHeader struct {
	Mode            FrameMode
	IsLast          bool
	Duration        uint32 // animation ticks; 0 if not animated
	ReferenceSlot   int    // -1 if this frame is not saved as a reference
	IsDelta         bool   // payload is a residual against ReferenceSlot's current content, not an absolute frame
	HasPatches      bool
	ProgressivePass int // number of progressive passes, 0 or 1 means single-pass
	ExtraChannelOps uint8
}

// WriteFrameHeader writes h.
func WriteFrameHeader(w *bio.Writer, h FrameHeader) error {
	mode := uint32(0)
	if h.Mode == FrameVarDCT {
		mode = 1
	}
	if err := w.WriteBits(mode, 1); err != nil {
		return errors.Wrap(err, "write mode")
	}
	last := uint32(0)
	if h.IsLast {
		last = 1
	}
	if err := w.WriteBits(last, 1); err != nil {
		return errors.Wrap(err, "write is_last")
	}
	if err := w.WriteVarint(uint64(h.Duration)); err != nil {
		return errors.Wrap(err, "write duration")
	}
	slot := h.ReferenceSlot
	hasSlot := uint32(0)
	if slot >= 0 {
		hasSlot = 1
	}
	if err := w.WriteBits(hasSlot, 1); err != nil {
		return errors.Wrap(err, "write has-slot flag")
	}
	if hasSlot == 1 {
		if err := w.WriteBits(uint32(slot), 3); err != nil {
			return errors.Wrap(err, "write reference slot")
		}
	}
	delta := uint32(0)
	if h.IsDelta {
		delta = 1
	}
	if err := w.WriteBits(delta, 1); err != nil {
		return errors.Wrap(err, "write is_delta flag")
	}
	patches := uint32(0)
	if h.HasPatches {
		patches = 1
	}
	if err := w.WriteBits(patches, 1); err != nil {
		return errors.Wrap(err, "write patch flag")
	}
	if err := w.WriteVarint(uint64(h.ProgressivePass)); err != nil {
		return errors.Wrap(err, "write progressive pass count")
	}
	if err := w.WriteBits(uint32(h.ExtraChannelOps), 8); err != nil {
		return errors.Wrap(err, "write extra channel ops")
	}
	return w.FlushByte()
}

// ReadFrameHeader reads a FrameHeader written by WriteFrameHeader.
func ReadFrameHeader(r *bio.Reader) (FrameHeader, error) {
	var h FrameHeader
	mode, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read mode")
	}
	if mode == 1 {
		h.Mode = FrameVarDCT
	} else {
		h.Mode = FrameModular
	}

	last, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read is_last")
	}
	h.IsLast = last == 1

	dur, err := r.ReadVarint()
	if err != nil {
		return h, errors.Wrap(err, "read duration")
	}
	h.Duration = uint32(dur)

	hasSlot, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read has-slot flag")
	}
	h.ReferenceSlot = -1
	if hasSlot == 1 {
		slot, err := r.ReadBits(3)
		if err != nil {
			return h, errors.Wrap(err, "read reference slot")
		}
		h.ReferenceSlot = int(slot)
	}

	delta, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read is_delta flag")
	}
	h.IsDelta = delta == 1

	patches, err := r.ReadBits(1)
	if err != nil {
		return h, errors.Wrap(err, "read patch flag")
	}
	h.HasPatches = patches == 1

	pass, err := r.ReadVarint()
	if err != nil {
		return h, errors.Wrap(err, "read progressive pass count")
	}
	h.ProgressivePass = int(pass)

	ops, err := r.ReadBits(8)
	if err != nil {
		return h, errors.Wrap(err, "read extra channel ops")
	}
	h.ExtraChannelOps = uint8(ops)

	r.SkipToByteAlignment()
	return h, nil
}

// terminator is the bit pattern closing the codestream: a varint of 0
// following the last frame's is_last=true header, distinguishing a clean
// end from a truncated stream.
const terminator = 0

// WriteTerminator writes the codestream terminator.
func WriteTerminator(w *bio.Writer) error {
	return w.WriteVarint(terminator)
}

// ReadTerminator reads and validates the codestream terminator.
func ReadTerminator(r *bio.Reader) error {
	v, err := r.ReadVarint()
	if err != nil {
		return errors.Wrap(err, "read terminator")
	}
	if v != terminator {
		return errors.Errorf("codestream: expected terminator, got %d", v)
	}
	return nil
}
