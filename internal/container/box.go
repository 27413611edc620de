// Package container implements the ISOBMFF-style box wrapper the spec
// allows around a bare JXL codestream: a sequence of {length, type,
// contents} boxes carrying the signature, the codestream itself, and
// optional EXIF/XMP/ICC metadata.
//
// The bare codestream path (internal/codestream) never nests inside this
// format on its own; wrapping is this package's job alone.
package container

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Box type codes, 4-byte ASCII identifiers per the JXL container spec.
const (
	TypeJXLSignature Type = 0x4A584C20 // "JXL " - container signature box
	TypeFileType     Type = 0x66747970 // "ftyp" - file type box
	TypeJXLLevel     Type = 0x6A786C6C // "jxll" - conformance level box
	TypeJXLCodestream Type = 0x6A786C63 // "jxlc" - contiguous codestream box
	TypeJXLPartial   Type = 0x6A786C70 // "jxlp" - partial codestream box (streamed encode)
	TypeExif         Type = 0x45786966 // "Exif" - EXIF metadata box
	TypeXML          Type = 0x786D6C20 // "xml " - XMP/XML metadata box
	TypeColorSpec    Type = 0x636F6C72 // "colr" - ICC color profile box
	TypeFrameIndex   Type = 0x6A786C66 // "jxlf" - frame index box (animation seek table)
)

// Type represents a 4-byte box type code.
type Type uint32

// String returns the 4-character type code.
func (t Type) String() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(t))
	return string(b)
}

// Box is a single ISOBMFF-style box: a length-prefixed, typed content
// region. Length 1 signals a 64-bit extended length follows the type.
type Box struct {
	Type     Type
	Length   uint64 // total box length including header
	Contents []byte
}

// Header returns the box header bytes (8 or 16 bytes, depending on
// whether Length needs the extended 64-bit form).
func (b *Box) Header() []byte {
	if b.Length <= 0xFFFFFFFF {
		header := make([]byte, 8)
		binary.BigEndian.PutUint32(header[0:4], uint32(b.Length))
		binary.BigEndian.PutUint32(header[4:8], uint32(b.Type))
		return header
	}
	header := make([]byte, 16)
	binary.BigEndian.PutUint32(header[0:4], 1)
	binary.BigEndian.PutUint32(header[4:8], uint32(b.Type))
	binary.BigEndian.PutUint64(header[8:16], b.Length)
	return header
}

// Bytes returns the complete box (header + contents).
func (b *Box) Bytes() []byte {
	header := b.Header()
	result := make([]byte, len(header)+len(b.Contents))
	copy(result, header)
	copy(result[len(header):], b.Contents)
	return result
}

// NewBox builds a Box around contents, computing Length from the header
// size that contents' length requires.
func NewBox(t Type, contents []byte) *Box {
	b := &Box{Type: t, Contents: contents}
	length := uint64(8 + len(contents))
	if length > 0xFFFFFFFF {
		length += 8
	}
	b.Length = length
	return b
}

const maxBoxSize = 1 << 30 // 1GB sanity limit against corrupt length fields

// Reader reads boxes sequentially from a stream.
type Reader struct {
	r      io.Reader
	offset int64
}

// NewReader creates a new box reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadBox reads the next box from the stream, returning io.EOF once the
// stream is exhausted on a box boundary.
func (r *Reader) ReadBox() (*Box, error) {
	header := make([]byte, 8)
	n, err := io.ReadFull(r.r, header)
	if err != nil {
		if err == io.EOF && n == 0 {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "reading box header")
	}
	r.offset += 8

	length := uint64(binary.BigEndian.Uint32(header[0:4]))
	boxType := Type(binary.BigEndian.Uint32(header[4:8]))

	headerLen := uint64(8)
	if length == 1 {
		extLen := make([]byte, 8)
		if _, err := io.ReadFull(r.r, extLen); err != nil {
			return nil, errors.Wrap(err, "reading extended length")
		}
		length = binary.BigEndian.Uint64(extLen)
		headerLen = 16
		r.offset += 8
	} else if length == 0 {
		return nil, errors.New("container: box extends to EOF, not supported")
	}

	if length < headerLen {
		return nil, errors.Errorf("container: invalid box length %d", length)
	}

	contentLen := length - headerLen
	if contentLen > maxBoxSize {
		return nil, errors.Errorf("container: box too large (%d bytes)", contentLen)
	}

	contents := make([]byte, contentLen)
	if _, err := io.ReadFull(r.r, contents); err != nil {
		return nil, errors.Wrap(err, "reading box contents")
	}
	r.offset += int64(contentLen)

	return &Box{Type: boxType, Length: length, Contents: contents}, nil
}

// Offset returns the current stream offset.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Writer writes boxes sequentially to a stream.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new box writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteBox writes a complete box to the stream.
func (w *Writer) WriteBox(b *Box) error {
	_, err := w.w.Write(b.Bytes())
	return err
}

// jxlSignature is the fixed 4-byte content of the 12-byte JXL container
// signature box,
// mirroring the JP2 signature box's role: a magic byte sequence that
// survives naive byte-oriented transport without being mistaken for text.
var jxlSignature = []byte{0x0D, 0x0A, 0x87, 0x0A}

// WriteSignature writes the container signature box.
func (w *Writer) WriteSignature() error {
	return w.WriteBox(NewBox(TypeJXLSignature, jxlSignature))
}

// WriteCodestreamBox wraps a complete bare codestream (signature through
// terminator, produced by internal/codestream) in a single jxlc box.
func (w *Writer) WriteCodestreamBox(codestream []byte) error {
	return w.WriteBox(NewBox(TypeJXLCodestream, codestream))
}

// Metadata blobs (EXIF/XMP/ICC) are opaque byte streams outside the
// bit-exact codestream, so they're DEFLATE-compressed with a one-byte tag
// ahead of the payload recording whether compression paid off.
const (
	metadataRaw  byte = 0
	metadataZlib byte = 1
)

// compressMetadata returns data prefixed with a metadataRaw/metadataZlib
// tag byte, using whichever encoding is smaller.
func compressMetadata(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Wrap(err, "compressing metadata")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "closing metadata compressor")
	}
	if buf.Len()+1 < len(data) {
		return append([]byte{metadataZlib}, buf.Bytes()...), nil
	}
	return append([]byte{metadataRaw}, data...), nil
}

// decompressMetadata inverts compressMetadata.
func decompressMetadata(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	tag, body := data[0], data[1:]
	switch tag {
	case metadataRaw:
		return body, nil
	case metadataZlib:
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "opening metadata decompressor")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing metadata")
		}
		return out, nil
	default:
		return nil, errors.Errorf("container: unknown metadata encoding tag %d", tag)
	}
}

// WriteExif wraps EXIF metadata bytes in an Exif box, DEFLATE-compressed.
func (w *Writer) WriteExif(data []byte) error {
	blob, err := compressMetadata(data)
	if err != nil {
		return err
	}
	return w.WriteBox(NewBox(TypeExif, blob))
}

// WriteXML wraps XMP/XML metadata bytes in an xml box, DEFLATE-compressed.
func (w *Writer) WriteXML(data []byte) error {
	blob, err := compressMetadata(data)
	if err != nil {
		return err
	}
	return w.WriteBox(NewBox(TypeXML, blob))
}

// WriteColorProfile wraps an ICC profile in a colr box, DEFLATE-compressed.
func (w *Writer) WriteColorProfile(data []byte) error {
	blob, err := compressMetadata(data)
	if err != nil {
		return err
	}
	return w.WriteBox(NewBox(TypeColorSpec, blob))
}

// File is a parsed container: the codestream payload plus whichever
// optional metadata boxes were present.
type File struct {
	Codestream   []byte
	Exif         []byte
	XML          []byte
	ColorProfile []byte
}

// ErrMissingSignature is returned when a stream's first box is not the
// JXL container signature.
var ErrMissingSignature = errors.New("container: missing JXL signature box")

// ErrMissingCodestream is returned when no jxlc (or jxlp sequence) box was
// found before the stream ended.
var ErrMissingCodestream = errors.New("container: missing codestream box")

// ReadFile parses a full container stream into a File. Partial codestream
// boxes (jxlp) are concatenated in the order encountered.
func ReadFile(r io.Reader) (*File, error) {
	br := NewReader(r)
	f := &File{}

	first, err := br.ReadBox()
	if err != nil {
		return nil, errors.Wrap(err, "reading first box")
	}
	if first.Type != TypeJXLSignature {
		return nil, ErrMissingSignature
	}

	for {
		b, err := br.ReadBox()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading box")
		}
		switch b.Type {
		case TypeJXLCodestream, TypeJXLPartial:
			f.Codestream = append(f.Codestream, b.Contents...)
		case TypeExif:
			if f.Exif, err = decompressMetadata(b.Contents); err != nil {
				return nil, errors.Wrap(err, "exif box")
			}
		case TypeXML:
			if f.XML, err = decompressMetadata(b.Contents); err != nil {
				return nil, errors.Wrap(err, "xml box")
			}
		case TypeColorSpec:
			if f.ColorProfile, err = decompressMetadata(b.Contents); err != nil {
				return nil, errors.Wrap(err, "colr box")
			}
		}
	}

	if f.Codestream == nil {
		return nil, ErrMissingCodestream
	}
	return f, nil
}
