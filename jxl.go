// Package jxl provides a pure Go encoder (and round-trip-test decoder) for
// the JPEG XL image format (ISO/IEC 18181).
//
// JPEG XL supports both lossless coding (the Modular path, a reversible
// color transform plus MED prediction and entropy coding) and lossy
// coding (the VarDCT path, an 8x8 block DCT with adaptive quantization),
// plus animation, responsive (progressive) layering, patches, splines and
// film-grain noise synthesis.
//
// Basic usage for encoding:
//
//	f, _ := os.Create("output.jxl")
//	_, err := jxl.Encode(f, img, jxl.DefaultOptions())
//
// Basic usage for decoding:
//
//	f, _ := os.Open("image.jxl")
//	img, err := jxl.Decode(f)
package jxl

import (
	"bytes"
	"image"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/noise"
	"github.com/gojxl/jxl/internal/overlay"
)

// ColorSpace selects the color model a frame is coded in.
type ColorSpace int

const (
	// ColorSpaceSRGB codes lossy frames in BT.601 YCbCr; lossless frames
	// are unaffected by ColorSpace (Modular always uses integer RGB or
	// its YCoCg-R RCT, see Options.UseRCT).
	ColorSpaceSRGB ColorSpace = iota
	// ColorSpaceXYB codes lossy frames in the perceptual XYB opsin space
	// libjxl itself defaults to.
	ColorSpaceXYB
	// ColorSpaceGrayscale marks a single-channel frame; no cross-channel
	// transform is applied regardless of Lossless.
	ColorSpaceGrayscale
)

// String implements fmt.Stringer.
func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceSRGB:
		return "sRGB/YCbCr"
	case ColorSpaceXYB:
		return "XYB"
	case ColorSpaceGrayscale:
		return "grayscale"
	default:
		return "unknown"
	}
}

// ROI is a region-of-interest quality boost for the VarDCT path; see
// internal/vardct.ROI, which this mirrors field-for-field at the public
// API boundary.
type ROI struct {
	X, Y, W, H    int
	Boost         float64
	FeatherRadius int
}

// Options holds the encoding options.
type Options struct {
	// Lossless selects the Modular coding path (reversible). When false,
	// the VarDCT coding path is used and Distance controls quality.
	Lossless bool

	// Distance is the VarDCT base quantization distance (roughly,
	// butteraugli distance: 0 is mathematically lossless-ish, 1.0 is
	// libjxl's default "visually lossless" target, larger is lower
	// quality). Only meaningful when Lossless is false.
	Distance float64

	// ColorSpace selects the lossy color transform (ignored when
	// Lossless, except that ColorSpaceGrayscale always suppresses any
	// cross-channel transform).
	ColorSpace ColorSpace

	// UseRCT applies the reversible YCoCg-R transform in the Modular
	// path for 3-channel frames.
	UseRCT bool

	// SqueezeLevels is the number of recursive squeeze passes the
	// Modular path applies before residual coding.
	SqueezeLevels int

	// AdaptiveQuant enables per-block variance-adaptive quantization in
	// the VarDCT path.
	AdaptiveQuant bool
	// AdaptiveK is the variance->scale coefficient for AdaptiveQuant.
	// Zero uses the default of 0.08, applied in encodeVarDCT.
	AdaptiveK float32
	// ROI optionally boosts quality within a rectangular region of a
	// VarDCT frame.
	ROI *ROI
	// UseANS selects the rANS entropy path over RLE+Golomb-Rice for
	// VarDCT block coefficients, and additionally rANS-compresses the
	// Modular path's residual stream when Lossless is set.
	UseANS bool

	// ResponsiveDistances, if non-empty, splits the image into
	// len(ResponsiveDistances) VarDCT layers of increasing quality
	// (decreasing distance), each independently decodable, via
	// internal/multiframe. Overrides Lossless/patches/splines/noise,
	// which the responsive path does not carry (see DESIGN.md).
	ResponsiveDistances []float64

	// Patches and Splines are caller-supplied overlay records applied on
	// top of the base frame; this package does not auto-detect them
	// (see spec Non-goals). Only honored on the non-animated,
	// non-responsive single-frame path.
	Patches []overlay.Patch
	Splines []overlay.Spline

	// Noise optionally synthesizes film-grain noise at decode time. Only
	// honored on the non-animated, non-responsive single-frame path.
	Noise *noise.Params

	// Orientation is the EXIF-style orientation tag, 1..8.
	Orientation int

	// Container wraps the codestream in the ISOBMFF-style box format
	// (internal/container) carrying ICCProfile/Exif/XML alongside it. If
	// false, Encode writes a bare codestream and ICCProfile/Exif/XML are
	// ignored.
	Container bool
	ICCProfile []byte
	Exif       []byte
	XML        []byte

	// Animation controls (EncodeSequence only).
	FPS                 int
	TPSDenominator      int
	FrameDurations      []uint32
	KeyframeInterval    int
	MaxDeltaFrames      int
	SimilarityThreshold float64
	MaxReferenceFrames  int
}

// DefaultOptions returns reasonable defaults: lossy VarDCT, XYB color,
// distance 1.0 (libjxl's "visually lossless" target), no container.
func DefaultOptions() *Options {
	return &Options{
		Lossless:           false,
		Distance:           1.0,
		ColorSpace:         ColorSpaceXYB,
		Orientation:        1,
		MaxReferenceFrames: 4,
	}
}

// Validate checks Options against the constraints spec §7 assigns to
// InvalidInput: a negative distance (lossy only), an orientation outside
// 1..8 (0 is accepted as unset), responsive distances not strictly
// decreasing, and splines that fail overlay.ValidateSpline. ROI bounds are
// not checked here, since Options carries no image size.
func (o *Options) Validate() error {
	if !o.Lossless && o.Distance < 0 {
		return errors.Wrapf(ErrInvalidInput, "distance %v must be >= 0", o.Distance)
	}
	if o.Orientation != 0 && (o.Orientation < 1 || o.Orientation > 8) {
		return errors.Wrapf(ErrInvalidInput, "orientation %d out of [1,8]", o.Orientation)
	}
	for i := 1; i < len(o.ResponsiveDistances); i++ {
		if o.ResponsiveDistances[i] >= o.ResponsiveDistances[i-1] {
			return errors.Wrapf(ErrInvalidInput, "responsive distances must strictly decrease, got %v", o.ResponsiveDistances)
		}
	}
	for i, s := range o.Splines {
		if err := overlay.ValidateSpline(s); err != nil {
			return errors.Wrapf(ErrInvalidInput, "spline %d: %v", i, err)
		}
	}
	return nil
}

// Metadata contains image metadata extracted without a full decode.
type Metadata struct {
	Width, Height int
	Channels      int
	HasAlpha      bool
	BitDepth      int
	ColorSpace    ColorSpace
	Lossless      bool
	Orientation   int
}

// Stats carries the per-call observability data SPEC_FULL's benchmark/
// report surface expects: an identifier correlating this call across a
// batch, which coding path was used, the resulting size and how long
// encoding took.
type Stats struct {
	EncodeID   uuid.UUID
	Mode       string // "modular", "vardct" (also for responsive) or "sequence"
	OutputSize int
	Duration   int64 // nanoseconds; avoids a time.Duration import at call sites that only log/serialize it
}

// EncodedImage is the validation-harness-facing result of an encode: the
// codestream (or container) bytes plus its Stats.
type EncodedImage struct {
	Data  []byte
	Stats Stats
}

// Decode reads a JPEG XL image from r and returns it as an image.Image.
func Decode(r io.Reader) (image.Image, error) {
	d := newDecoder(r)
	img, _, err := d.decode()
	return img, err
}

// DecodeConfig reads just enough of r to report the image dimensions.
func DecodeConfig(r io.Reader) (image.Config, error) {
	m, err := DecodeMetadata(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{Width: m.Width, Height: m.Height}, nil
}

// Encode writes m to w in JPEG XL format with the given options, returning
// its Stats alongside any error.
func Encode(w io.Writer, m image.Image, o *Options) (Stats, error) {
	if o == nil {
		o = DefaultOptions()
	}
	e := newEncoder(w, m, o)
	return e.encode()
}

// EncodeImage runs Encode into an in-memory buffer and returns the result
// as a single EncodedImage, the shape an external validation harness
// consumes: (image, options) -> (data, stats).
func EncodeImage(m image.Image, o *Options) (EncodedImage, error) {
	var buf bytes.Buffer
	stats, err := Encode(&buf, m, o)
	if err != nil {
		return EncodedImage{}, err
	}
	return EncodedImage{Data: buf.Bytes(), Stats: stats}, nil
}

// EncodeSequence writes an animated/responsive sequence of frames to w,
// using internal/multiframe to schedule keyframes, deltas and responsive
// layers.
func EncodeSequence(w io.Writer, frames []image.Image, o *Options) (Stats, error) {
	if o == nil {
		o = DefaultOptions()
	}
	e := newSequenceEncoder(w, frames, o)
	return e.encode()
}

// DecodeMetadata reads only the header information without decoding the
// image.
func DecodeMetadata(r io.Reader) (*Metadata, error) {
	d := newDecoder(r)
	return d.readMetadata()
}

// init registers the JPEG XL format with the stdlib image package.
func init() {
	image.RegisterFormat("jxl",
		"\xff\x0a",
		func(r io.Reader) (image.Image, error) {
			return Decode(r)
		},
		func(r io.Reader) (image.Config, error) {
			return DecodeConfig(r)
		})
}
