package overlay

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
)

// compressThreshold is the minimum serialized payload size, in bytes,
// worth paying DEFLATE's framing overhead for; small patch/spline lists
// are left verbatim.
const compressThreshold = 256

const (
	payloadRaw  byte = 0
	payloadZlib byte = 1
)

// EncodePayload serializes a frame's patches and splines into a single
// opaque byte blob (the side-stream carried alongside the main VarDCT
// payload), DEFLATE-compressing it when that's worthwhile.
func EncodePayload(patches []Patch, splines []Spline) ([]byte, error) {
	var buf rawBuffer
	w := bio.NewWriter(&buf)
	if err := WritePatchList(w, patches); err != nil {
		return nil, errors.Wrap(err, "encode patch list")
	}
	if err := WriteSplineList(w, splines); err != nil {
		return nil, errors.Wrap(err, "encode spline list")
	}
	if err := w.FlushByte(); err != nil {
		return nil, err
	}
	return compressBlob(buf.data)
}

// DecodePayload inverts EncodePayload.
func DecodePayload(blob []byte) ([]Patch, []Spline, error) {
	raw, err := decompressBlob(blob)
	if err != nil {
		return nil, nil, err
	}
	buf := &rawBuffer{data: raw}
	r := bio.NewReader(buf)
	patches, err := ReadPatchList(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode patch list")
	}
	splines, err := ReadSplineList(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode spline list")
	}
	return patches, splines, nil
}

func compressBlob(data []byte) ([]byte, error) {
	if len(data) < compressThreshold {
		return append([]byte{payloadRaw}, data...), nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Wrap(err, "compressing overlay payload")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "closing overlay payload compressor")
	}
	if buf.Len()+1 >= len(data) {
		return append([]byte{payloadRaw}, data...), nil
	}
	return append([]byte{payloadZlib}, buf.Bytes()...), nil
}

func decompressBlob(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	tag, body := data[0], data[1:]
	switch tag {
	case payloadRaw:
		return body, nil
	case payloadZlib:
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "opening overlay payload decompressor")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing overlay payload")
		}
		return out, nil
	default:
		return nil, errors.Errorf("overlay: unknown payload encoding tag %d", tag)
	}
}

// rawBuffer is a minimal growable byte sink/source, mirroring the
// analogous helper in internal/modular, internal/vardct and
// internal/multiframe.
type rawBuffer struct {
	data []byte
	pos  int
}

func (b *rawBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *rawBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}
