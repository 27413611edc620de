// Package pixbuf implements planar pixel storage for JPEG XL frames.
//
// ImageFrame holds a caller-constructed raster image plus its color
// metadata, its samples held in a planar byte slice; Buffer is a separate
// generic typed pixel plane with borrowable tiled views.
package pixbuf

import (
	"fmt"

	"github.com/pkg/errors"
)

// SampleType identifies the in-memory representation of one pixel sample.
type SampleType int

const (
	SampleU8 SampleType = iota
	SampleU16
	SampleI16
	SampleF32
)

// BytesPerSample returns the storage width of one sample of this type.
func (s SampleType) BytesPerSample() int {
	switch s {
	case SampleU8:
		return 1
	case SampleU16, SampleI16:
		return 2
	case SampleF32:
		return 4
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (s SampleType) String() string {
	switch s {
	case SampleU8:
		return "u8"
	case SampleU16:
		return "u16"
	case SampleI16:
		return "i16"
	case SampleF32:
		return "f32"
	default:
		return "unknown"
	}
}

// ColorSpaceTag identifies the color space a frame's samples live in.
type ColorSpaceTag int

const (
	ColorSpaceSRGB ColorSpaceTag = iota
	ColorSpaceLinearRGB
	ColorSpaceGrayscale
	ColorSpaceCMYK
	ColorSpaceCustom
)

// CustomColorSpace describes a non-standard primaries/transfer-function
// color space, used only when ColorSpaceTag is ColorSpaceCustom.
type CustomColorSpace struct {
	Primaries        string
	TransferFunction string
}

// AlphaMode describes whether and how an alpha channel is stored.
type AlphaMode int

const (
	AlphaNone AlphaMode = iota
	AlphaStraight
	AlphaPremultiplied
)

// ExtraChannel describes one extra (non-color, non-alpha) channel, such as
// a depth or spot-color plane.
type ExtraChannel struct {
	Type     string
	BitDepth int
	DimShift int // 0 = full resolution, 1 = half, etc.
	Name     string
	Data     []byte
}

// PlaneSize returns the byte length this channel occupies for a frame of
// the given base dimensions, honoring DimShift.
func (e ExtraChannel) PlaneSize(width, height int) int {
	w := (width + (1 << e.DimShift) - 1) >> e.DimShift
	h := (height + (1 << e.DimShift) - 1) >> e.DimShift
	return w * h * ((e.BitDepth + 7) / 8)
}

// ImageFrame is a caller-constructed raster image with color metadata. It
// is immutable during encode; the encoder only ever holds borrowed views
// of its planes.
type ImageFrame struct {
	Width, Height, Channels int
	Type                    SampleType
	ColorSpace              ColorSpaceTag
	Custom                  CustomColorSpace // valid iff ColorSpace == ColorSpaceCustom
	AlphaMode               AlphaMode
	BitDepth      int // independent of Type's storage width (e.g. 10/12-bit in u16)
	Orientation   int // EXIF-style, 1..8
	ExtraChannels []ExtraChannel
	Metadata      []byte // opaque EXIF/XMP/ICC bytes, passed through verbatim

	// Data holds Channels planes stored one after another, each plane
	// row-major: Data is logically [channel][y][x] with each sample
	// BytesPerSample() bytes wide.
	Data []byte
}

// Validate checks the ImageFrame invariants from spec §3.
func (f *ImageFrame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Wrapf(ErrInvalidInput, "non-positive dimensions %dx%d", f.Width, f.Height)
	}
	if f.Channels <= 0 {
		return errors.Wrapf(ErrInvalidInput, "non-positive channel count %d", f.Channels)
	}
	bps := f.Type.BytesPerSample()
	if bps == 0 {
		return errors.Wrapf(ErrInvalidInput, "unsupported sample type %v", f.Type)
	}
	want := f.Width * f.Height * f.Channels * bps
	if len(f.Data) != want {
		return errors.Wrapf(ErrInvalidInput, "data length %d, want %d", len(f.Data), want)
	}
	if f.AlphaMode == AlphaNone {
		// nothing further to check; alphaMode==none iff no alpha is the
		// caller's responsibility to keep consistent with Channels.
	}
	if f.Orientation < 1 || f.Orientation > 8 {
		return errors.Wrapf(ErrInvalidInput, "orientation %d out of [1,8]", f.Orientation)
	}
	for i, ec := range f.ExtraChannels {
		want := ec.PlaneSize(f.Width, f.Height)
		if len(ec.Data) != want {
			return errors.Wrapf(ErrInvalidInput, "extra channel %d (%s): data length %d, want %d", i, ec.Name, len(ec.Data), want)
		}
	}
	return nil
}

// ErrInvalidInput is the sentinel wrapped by Validate failures; callers can
// test with errors.Is.
var ErrInvalidInput = fmt.Errorf("invalid input")

// PlaneU8 returns channel c as a read-only []byte plane (SampleU8 frames
// only).
func (f *ImageFrame) PlaneU8(c int) []byte {
	n := f.Width * f.Height
	return f.Data[c*n : (c+1)*n]
}

// PlaneU16 returns channel c as a read-only []uint16 plane.
func (f *ImageFrame) PlaneU16(c int) []uint16 {
	n := f.Width * f.Height
	raw := f.Data[c*n*2 : (c+1)*n*2]
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return out
}
