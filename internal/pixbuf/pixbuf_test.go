package pixbuf

import (
	"errors"
	"testing"
)

func TestValidateDimensions(t *testing.T) {
	f := &ImageFrame{Width: 0, Height: 4, Channels: 3, Type: SampleU8, Orientation: 1}
	if err := f.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestValidateDataLength(t *testing.T) {
	f := &ImageFrame{Width: 2, Height: 2, Channels: 3, Type: SampleU8, Orientation: 1, Data: make([]byte, 3)}
	if err := f.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestValidateOK(t *testing.T) {
	f := &ImageFrame{Width: 2, Height: 2, Channels: 3, Type: SampleU8, Orientation: 1, Data: make([]byte, 2*2*3)}
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateOrientationRange(t *testing.T) {
	f := &ImageFrame{Width: 1, Height: 1, Channels: 1, Type: SampleU8, Orientation: 9, Data: make([]byte, 1)}
	if err := f.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestValidateExtraChannel(t *testing.T) {
	f := &ImageFrame{
		Width: 2, Height: 2, Channels: 1, Type: SampleU8, Orientation: 1,
		Data:          make([]byte, 4),
		ExtraChannels: []ExtraChannel{{Type: "depth", BitDepth: 16, Name: "d", Data: make([]byte, 1)}},
	}
	if err := f.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestBufferTile(t *testing.T) {
	b := NewBuffer[int32](10, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			b.Set(x, y, int32(y*10+x))
		}
	}
	tile := b.Tile(8, 8, 8, 8) // clamps to 2x2
	if tile.W != 2 || tile.H != 2 {
		t.Fatalf("tile size = %dx%d, want 2x2", tile.W, tile.H)
	}
	if tile.At(0, 0) != 88 {
		t.Errorf("tile.At(0,0) = %d, want 88", tile.At(0, 0))
	}
	dst := make([]int32, 4)
	tile.CopyTo(dst)
	want := []int32{88, 89, 98, 99}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], want[i])
		}
	}
}
