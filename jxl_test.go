package jxl

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/gojxl/jxl/internal/noise"
	"github.com/gojxl/jxl/internal/overlay"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts == nil {
		t.Fatal("DefaultOptions() returned nil")
	}
	if opts.Lossless {
		t.Error("Lossless = true, want false")
	}
	if opts.Distance != 1.0 {
		t.Errorf("Distance = %v, want 1.0", opts.Distance)
	}
	if opts.ColorSpace != ColorSpaceXYB {
		t.Errorf("ColorSpace = %v, want ColorSpaceXYB", opts.ColorSpace)
	}
	if opts.MaxReferenceFrames != 4 {
		t.Errorf("MaxReferenceFrames = %d, want 4", opts.MaxReferenceFrames)
	}
}

func TestColorSpace_String(t *testing.T) {
	tests := []struct {
		cs   ColorSpace
		want string
	}{
		{ColorSpaceSRGB, "sRGB/YCbCr"},
		{ColorSpaceXYB, "XYB"},
		{ColorSpaceGrayscale, "grayscale"},
		{ColorSpace(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.cs.String(); got != tt.want {
			t.Errorf("ColorSpace(%d).String() = %q, want %q", tt.cs, got, tt.want)
		}
	}
}

func makeGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*16 + y*16) % 256)})
		}
	}
	return img
}

func makeRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 32 % 256), G: uint8(y * 32 % 256), B: uint8((x + y) * 16 % 256), A: 255,
			})
		}
	}
	return img
}

func makeNRGBA(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 32 % 256), G: uint8(y * 32 % 256), B: uint8((x + y) * 16 % 256), A: uint8(128 + x%128),
			})
		}
	}
	return img
}

func TestEncodeGrayLossless(t *testing.T) {
	img := makeGray(8, 8)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Lossless = true

	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Encode() produced empty output")
	}
}

func TestEncodeRGBALossy(t *testing.T) {
	img := makeRGBA(8, 8)

	var buf bytes.Buffer
	opts := DefaultOptions()

	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Encode() produced empty output")
	}
}

func TestEncodeNilOptions(t *testing.T) {
	img := makeGray(8, 8)

	var buf bytes.Buffer
	if _, err := Encode(&buf, img, nil); err != nil {
		t.Fatalf("Encode() with nil options error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Encode() with nil options produced empty output")
	}
}

func TestEncodeSignature(t *testing.T) {
	img := makeGray(4, 4)

	var buf bytes.Buffer
	if _, err := Encode(&buf, img, DefaultOptions()); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0x0A {
		t.Error("bare codestream output should start with the 0xFF 0x0A signature")
	}
}

func TestEncodeContainer(t *testing.T) {
	img := makeGray(4, 4)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Container = true
	opts.Exif = []byte("fake-exif-payload")

	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 12 || data[4] != 'J' || data[5] != 'X' || data[6] != 'L' {
		t.Error("container output should start with the JXL signature box")
	}
}

func TestRoundtrip_Grayscale_Lossless(t *testing.T) {
	img := makeGray(16, 16)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Lossless = true
	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	out, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	b := out.Bounds()
	if b.Dx() != 16 || b.Dy() != 16 {
		t.Fatalf("decoded bounds = %v, want 16x16", b)
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			want := img.GrayAt(x, y).Y
			r, _, _, _ := out.At(x, y).RGBA()
			got := uint8(r >> 8)
			if got != want {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestRoundtrip_RGB_Lossless_RCT(t *testing.T) {
	img := makeRGBA(16, 16)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Lossless = true
	opts.UseRCT = true
	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	out, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	b := out.Bounds()
	if b.Dx() != 16 || b.Dy() != 16 {
		t.Fatalf("decoded bounds = %v, want 16x16", b)
	}
}

func TestRoundtrip_NRGBA_Lossless(t *testing.T) {
	img := makeNRGBA(12, 12)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Lossless = true
	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	out, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	b := out.Bounds()
	if b.Dx() != 12 || b.Dy() != 12 {
		t.Fatalf("decoded bounds = %v, want 12x12", b)
	}
}

func TestDecodeMetadata(t *testing.T) {
	img := makeRGBA(32, 20)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Orientation = 3
	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	m, err := DecodeMetadata(&buf)
	if err != nil {
		t.Fatalf("DecodeMetadata() error: %v", err)
	}
	if m.Width != 32 || m.Height != 20 {
		t.Errorf("Metadata size = %dx%d, want 32x20", m.Width, m.Height)
	}
	if m.Orientation != 3 {
		t.Errorf("Metadata.Orientation = %d, want 3", m.Orientation)
	}
	if m.Lossless {
		t.Error("Metadata.Lossless = true, want false")
	}
}

func TestImageDecode_Registration(t *testing.T) {
	img := makeGray(8, 8)

	var buf bytes.Buffer
	if _, err := Encode(&buf, img, DefaultOptions()); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("image.Decode() error: %v", err)
	}
	if format != "jxl" {
		t.Errorf("format = %q, want jxl", format)
	}
	if decoded.Bounds().Dx() != 8 {
		t.Errorf("decoded width = %d, want 8", decoded.Bounds().Dx())
	}
}

func TestImageDecodeConfig_Registration(t *testing.T) {
	img := makeGray(10, 6)

	var buf bytes.Buffer
	if _, err := Encode(&buf, img, DefaultOptions()); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("image.DecodeConfig() error: %v", err)
	}
	if format != "jxl" {
		t.Errorf("format = %q, want jxl", format)
	}
	if cfg.Width != 10 || cfg.Height != 6 {
		t.Errorf("config size = %dx%d, want 10x6", cfg.Width, cfg.Height)
	}
}

func TestEncodeImage_Stats(t *testing.T) {
	img := makeGray(8, 8)

	result, err := EncodeImage(img, DefaultOptions())
	if err != nil {
		t.Fatalf("EncodeImage() error: %v", err)
	}
	if len(result.Data) == 0 {
		t.Error("EncodeImage() produced no data")
	}
	if result.Stats.Mode != "vardct" {
		t.Errorf("Stats.Mode = %q, want vardct", result.Stats.Mode)
	}
	if result.Stats.OutputSize != len(result.Data) {
		t.Errorf("Stats.OutputSize = %d, want %d", result.Stats.OutputSize, len(result.Data))
	}
	var zero [16]byte
	if bytes.Equal(result.Stats.EncodeID[:], zero[:]) {
		t.Error("Stats.EncodeID is zero, want a generated UUID")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		o    *Options
		ok   bool
	}{
		{"default", DefaultOptions(), true},
		{"negative distance", &Options{Distance: -1}, false},
		{"bad orientation", &Options{Orientation: 9}, false},
		{"non-decreasing responsive distances", &Options{ResponsiveDistances: []float64{1, 1}}, false},
		{"decreasing responsive distances", &Options{ResponsiveDistances: []float64{4, 2, 1}}, true},
	}
	for _, tt := range tests {
		err := tt.o.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: Validate() error = %v, want ok=%v", tt.name, err, tt.ok)
		}
	}
}

func TestEncodeVarDCTWithROI(t *testing.T) {
	img := makeRGBA(32, 32)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.ROI = &ROI{X: 4, Y: 4, W: 8, H: 8, Boost: 0.5, FeatherRadius: 2}
	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	out, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out.Bounds().Dx() != 32 {
		t.Errorf("decoded width = %d, want 32", out.Bounds().Dx())
	}
}

func TestEncodeVarDCTWithNoise(t *testing.T) {
	img := makeRGBA(16, 16)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Noise = &noise.Params{Amplitude: 0.1, LumaStrength: 1, ChromaStrength: 0.5, Seed: 42}
	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	if _, err := Decode(&buf); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
}

func TestEncodeVarDCTWithPatches(t *testing.T) {
	img := makeRGBA(16, 16)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Patches = []overlay.Patch{{DestX: 0, DestY: 0, W: 4, H: 4, RefIndex: -1, SourceX: 8, SourceY: 8}}
	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	if _, err := Decode(&buf); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
}

func TestEncodeOverlayRejectedForLossless(t *testing.T) {
	img := makeRGBA(8, 8)

	opts := DefaultOptions()
	opts.Lossless = true
	opts.Noise = &noise.Params{Amplitude: 0.1, LumaStrength: 1, ChromaStrength: 1, Seed: 1}

	var buf bytes.Buffer
	_, err := Encode(&buf, img, opts)
	if err == nil {
		t.Fatal("expected error combining Lossless with Noise")
	}
}

func TestEncodeResponsive(t *testing.T) {
	img := makeRGBA(16, 16)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.ResponsiveDistances = []float64{4, 2, 1}
	if _, err := Encode(&buf, img, opts); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Encode() produced empty output")
	}
}

func TestEncodeSequence(t *testing.T) {
	frames := []image.Image{makeGray(8, 8), makeGray(8, 8), makeGray(8, 8)}

	var buf bytes.Buffer
	if _, err := EncodeSequence(&buf, frames, DefaultOptions()); err != nil {
		t.Fatalf("EncodeSequence() error: %v", err)
	}

	out, err := DecodeSequence(&buf)
	if err != nil {
		t.Fatalf("DecodeSequence() error: %v", err)
	}
	if len(out) != len(frames) {
		t.Fatalf("DecodeSequence() returned %d frames, want %d", len(out), len(frames))
	}
}

func TestEncodeSequenceMismatchedSizes(t *testing.T) {
	frames := []image.Image{makeGray(8, 8), makeGray(4, 4)}

	var buf bytes.Buffer
	_, err := EncodeSequence(&buf, frames, DefaultOptions())
	if err == nil {
		t.Fatal("expected error for mismatched frame sizes")
	}
}

func TestDecode_InvalidFormat(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0x00, 0x01, 0x02}))
	if err == nil {
		t.Fatal("expected error decoding invalid data")
	}
}

func TestDecode_TooShort(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected error decoding empty input")
	}
}
