package jxl

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/pixbuf"
)

// imageToFrame extracts img's pixel data into a pixbuf.ImageFrame, laid
// out channel-planar per pixbuf's contract. The type switch mirrors the
// common stdlib concrete image types directly for speed and falls back to
// the generic color.Color path (via At/RGBA) for anything else.
func imageToFrame(img image.Image, opts *Options) (*pixbuf.ImageFrame, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("empty image bounds %v", b)
	}
	orientation := opts.Orientation
	if orientation == 0 {
		orientation = 1
	}

	switch src := img.(type) {
	case *image.Gray:
		data := packU8(width, height, 1, func(x, y, c int) byte {
			return src.GrayAt(b.Min.X+x, b.Min.Y+y).Y
		})
		return &pixbuf.ImageFrame{
			Width: width, Height: height, Channels: 1, Type: pixbuf.SampleU8,
			ColorSpace: pixbuf.ColorSpaceGrayscale, BitDepth: 8, Orientation: orientation, Data: data,
		}, nil

	case *image.Gray16:
		data := packU16(width, height, 1, func(x, y, c int) uint16 {
			return src.Gray16At(b.Min.X+x, b.Min.Y+y).Y
		})
		return &pixbuf.ImageFrame{
			Width: width, Height: height, Channels: 1, Type: pixbuf.SampleU16,
			ColorSpace: pixbuf.ColorSpaceGrayscale, BitDepth: 16, Orientation: orientation, Data: data,
		}, nil

	case *image.RGBA:
		data := packU8(width, height, 3, func(x, y, c int) byte {
			p := src.RGBAAt(b.Min.X+x, b.Min.Y+y)
			return [3]byte{p.R, p.G, p.B}[c]
		})
		return &pixbuf.ImageFrame{
			Width: width, Height: height, Channels: 3, Type: pixbuf.SampleU8,
			ColorSpace: pixbuf.ColorSpaceSRGB, AlphaMode: pixbuf.AlphaNone, BitDepth: 8, Orientation: orientation, Data: data,
		}, nil

	case *image.RGBA64:
		data := packU16(width, height, 3, func(x, y, c int) uint16 {
			p := src.RGBA64At(b.Min.X+x, b.Min.Y+y)
			return [3]uint16{p.R, p.G, p.B}[c]
		})
		return &pixbuf.ImageFrame{
			Width: width, Height: height, Channels: 3, Type: pixbuf.SampleU16,
			ColorSpace: pixbuf.ColorSpaceSRGB, AlphaMode: pixbuf.AlphaNone, BitDepth: 16, Orientation: orientation, Data: data,
		}, nil

	case *image.NRGBA:
		data := packU8(width, height, 4, func(x, y, c int) byte {
			p := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			return [4]byte{p.R, p.G, p.B, p.A}[c]
		})
		return &pixbuf.ImageFrame{
			Width: width, Height: height, Channels: 4, Type: pixbuf.SampleU8,
			ColorSpace: pixbuf.ColorSpaceSRGB, AlphaMode: pixbuf.AlphaStraight, BitDepth: 8, Orientation: orientation, Data: data,
		}, nil

	case *image.NRGBA64:
		data := packU16(width, height, 4, func(x, y, c int) uint16 {
			p := src.NRGBA64At(b.Min.X+x, b.Min.Y+y)
			return [4]uint16{p.R, p.G, p.B, p.A}[c]
		})
		return &pixbuf.ImageFrame{
			Width: width, Height: height, Channels: 4, Type: pixbuf.SampleU16,
			ColorSpace: pixbuf.ColorSpaceSRGB, AlphaMode: pixbuf.AlphaStraight, BitDepth: 16, Orientation: orientation, Data: data,
		}, nil

	default:
		data := packU8(width, height, 3, func(x, y, c int) byte {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			return [3]byte{byte(r >> 8), byte(g >> 8), byte(bl >> 8)}[c]
		})
		return &pixbuf.ImageFrame{
			Width: width, Height: height, Channels: 3, Type: pixbuf.SampleU8,
			ColorSpace: pixbuf.ColorSpaceSRGB, AlphaMode: pixbuf.AlphaNone, BitDepth: 8, Orientation: orientation, Data: data,
		}, nil
	}
}

func packU8(width, height, channels int, get func(x, y, c int) byte) []byte {
	n := width * height
	data := make([]byte, n*channels)
	for c := 0; c < channels; c++ {
		base := c * n
		for y := 0; y < height; y++ {
			row := base + y*width
			for x := 0; x < width; x++ {
				data[row+x] = get(x, y, c)
			}
		}
	}
	return data
}

func packU16(width, height, channels int, get func(x, y, c int) uint16) []byte {
	n := width * height
	data := make([]byte, n*channels*2)
	for c := 0; c < channels; c++ {
		base := c * n * 2
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := get(x, y, c)
				idx := base + (y*width+x)*2
				data[idx], data[idx+1] = byte(v), byte(v>>8)
			}
		}
	}
	return data
}

// channelsFromFrame expands f's planes into one []int32 slice per channel.
func channelsFromFrame(f *pixbuf.ImageFrame) [][]int32 {
	out := make([][]int32, f.Channels)
	if f.Type == pixbuf.SampleU16 {
		for c := range out {
			plane := f.PlaneU16(c)
			ch := make([]int32, len(plane))
			for i, v := range plane {
				ch[i] = int32(v)
			}
			out[c] = ch
		}
		return out
	}
	for c := range out {
		plane := f.PlaneU8(c)
		ch := make([]int32, len(plane))
		for i, v := range plane {
			ch[i] = int32(v)
		}
		out[c] = ch
	}
	return out
}

// maxSampleFor returns the predictor clamp range implied by f's sample
// storage (8 or 16 bit; pixbuf's 10/12-bit-in-u16 BitDepth values still
// clamp to the full 16-bit range the storage allows).
func maxSampleFor(f *pixbuf.ImageFrame) int32 {
	if f.Type == pixbuf.SampleU16 {
		return 65535
	}
	return 255
}

// frameFromChannels reconstructs an image.Image from decoded integer
// channel planes, clamped to [0, maxSample] and packed back into the
// stdlib concrete type matching channel count and bit depth.
func frameFromChannels(width, height int, channels [][]int32, maxSample int32, alphaMode pixbuf.AlphaMode) (image.Image, error) {
	clamp := func(v int32) int32 {
		if v < 0 {
			return 0
		}
		if v > maxSample {
			return maxSample
		}
		return v
	}

	switch len(channels) {
	case 1:
		if maxSample > 255 {
			img := image.NewGray16(image.Rect(0, 0, width, height))
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					v := uint16(clamp(channels[0][y*width+x]))
					img.SetGray16(x, y, color.Gray16{Y: v})
				}
			}
			return img, nil
		}
		img := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := uint8(clamp(channels[0][y*width+x]))
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
		return img, nil

	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				idx := y*width + x
				r := uint8(clamp(channels[0][idx]))
				g := uint8(clamp(channels[1][idx]))
				bl := uint8(clamp(channels[2][idx]))
				img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: bl, A: 255})
			}
		}
		return img, nil

	case 4:
		if alphaMode == pixbuf.AlphaPremultiplied {
			img := image.NewRGBA(image.Rect(0, 0, width, height))
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					idx := y*width + x
					r := uint8(clamp(channels[0][idx]))
					g := uint8(clamp(channels[1][idx]))
					bl := uint8(clamp(channels[2][idx]))
					a := uint8(clamp(channels[3][idx]))
					img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: bl, A: a})
				}
			}
			return img, nil
		}
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				idx := y*width + x
				r := uint8(clamp(channels[0][idx]))
				g := uint8(clamp(channels[1][idx]))
				bl := uint8(clamp(channels[2][idx]))
				a := uint8(clamp(channels[3][idx]))
				img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: bl, A: a})
			}
		}
		return img, nil

	default:
		return nil, errors.Errorf("unsupported channel count %d", len(channels))
	}
}
