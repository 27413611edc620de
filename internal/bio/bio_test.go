package bio

import (
	"bytes"
	"io"
	"testing"
)

func TestBitRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	bits := []int{1, 0, 1, 1, 0, 0, 1, 0, 1, 1}
	for _, b := range bits {
		if err := w.WriteBit(b); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.FlushByte(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	for i, want := range bits {
		got, err := r.ReadBit()
		if err != nil {
			t.Fatalf("bit %d: %v", i, err)
		}
		if got != want {
			t.Errorf("bit %d = %d, want %d", i, got, want)
		}
	}
}

func TestWriteBitsHighOrderFirst(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteBits(0b101, 3); err != nil {
		t.Fatal(err)
	}
	w.FlushByte()
	if buf.Bytes()[0] != 0b10100000 {
		t.Errorf("got %08b, want %08b", buf.Bytes()[0], 0b10100000)
	}
}

func TestWriteBitsRoundTrip(t *testing.T) {
	cases := []struct {
		v uint32
		n uint
	}{
		{0, 1}, {1, 1}, {0x7F, 7}, {0xFFFF, 16}, {0xFFFFFFFF, 32}, {12345, 20},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WriteBits(c.v, c.n); err != nil {
			t.Fatal(err)
		}
		w.FlushByte()
		r := NewReader(&buf)
		got, err := r.ReadBits(c.n)
		if err != nil {
			t.Fatal(err)
		}
		mask := uint32((uint64(1) << c.n) - 1)
		if got != c.v&mask {
			t.Errorf("WriteBits(%d,%d): got %d, want %d", c.v, c.n, got, c.v&mask)
		}
	}
}

func TestFlushByteAlignment(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBit(1)
	w.WriteBit(1)
	w.WriteBit(1)
	if err := w.FlushByte(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 1 {
		t.Fatalf("len = %d, want 1", buf.Len())
	}
	if buf.Bytes()[0] != 0b11100000 {
		t.Errorf("got %08b", buf.Bytes()[0])
	}
	// Flushing again with nothing pending must not emit a byte.
	if err := w.FlushByte(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 1 {
		t.Errorf("second FlushByte emitted a byte: len=%d", buf.Len())
	}
}

func TestWriteDataAutoAligns(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBit(1)
	if err := w.WriteData([]byte{0xAB, 0xCD}); err != nil {
		t.Fatal(err)
	}
	want := []byte{0b10000000, 0xAB, 0xCD}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got % X, want % X", buf.Bytes(), want)
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<35 + 7, ^uint64(0)}
	for _, v := range values {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WriteVarint(v); err != nil {
			t.Fatal(err)
		}
		r := NewReader(&buf)
		got, err := r.ReadVarint()
		if err != nil {
			t.Fatalf("v=%d: %v", v, err)
		}
		if got != v {
			t.Errorf("ReadVarint() = %d, want %d", got, v)
		}
	}
}

func TestJXLSignature(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.JXLSignature(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xFF, 0x0A}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got % X, want % X", buf.Bytes(), want)
	}
}

func TestSkipToByteAlignment(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(0b101, 3)
	w.WriteData([]byte{0x42})
	r := NewReader(&buf)
	r.ReadBit()
	r.SkipToByteAlignment()
	b, err := r.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if b != 0x42 {
		t.Errorf("got %#x, want 0x42", b)
	}
}

func TestReadPastEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	if _, err := r.ReadBit(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
