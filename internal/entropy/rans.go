package entropy

import (
	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
)

// rANS precision: symbol frequencies are quantized to sum to 2^Precision.
// ISO/IEC 18181-1 Annex A permits 12 or 14; 12 keeps the cumulative-
// frequency table small while leaving enough headroom for skewed
// coefficient distributions.
const Precision = 12

const ransM = 1 << Precision

// renormLow (L) and renormBase (b) bound the rANS state to [L, L*b) between
// symbol codings, per the spec's renormalization rule. b = 2^16: each
// renormalization step emits one 16-bit unit.
const renormLow = 1 << 16
const renormBase = 1 << 16

// Model holds a context's quantized symbol frequency table: freq[s] is
// symbol s's frequency, cum[s] its cumulative frequency (cum[s] = sum of
// freq[0:s]), with sum(freq) == 2^Precision.
type Model struct {
	freq [256]uint32
	cum  [256]uint32
	// symbolAt maps a cumulative-frequency slot to its owning symbol,
	// built once so decoding is an O(1) array lookup rather than a
	// binary search over cum.
	symbolAt [ransM]byte
}

// NewModel quantizes raw symbol counts into a Model with frequencies
// summing to 2^Precision. Every symbol with a nonzero count is guaranteed
// at least frequency 1 so the decoder never meets a zero-width interval
// for a symbol that can occur.
func NewModel(counts [256]uint64) Model {
	var total uint64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		// Degenerate (empty) alphabet: give symbol 0 the entire table so
		// encode/decode of an all-zero context still round-trips.
		total = 1
		counts[0] = 1
	}

	var m Model
	var assigned uint32
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}

	for s, c := range counts {
		if c == 0 {
			continue
		}
		f := uint32(c * ransM / total)
		if f == 0 {
			f = 1
		}
		m.freq[s] = f
		assigned += f
	}

	// Redistribute rounding error onto the highest-frequency symbol so the
	// table sums exactly to ransM; guaranteed possible since every
	// nonzero symbol holds at least 1 and nonzero <= ransM.
	if assigned != ransM {
		best := 0
		for s := 1; s < 256; s++ {
			if m.freq[s] > m.freq[best] {
				best = s
			}
		}
		diff := int64(ransM) - int64(assigned)
		m.freq[best] = uint32(int64(m.freq[best]) + diff)
	}

	var c uint32
	for s := 0; s < 256; s++ {
		m.cum[s] = c
		for i := uint32(0); i < m.freq[s]; i++ {
			m.symbolAt[c+i] = byte(s)
		}
		c += m.freq[s]
	}
	return m
}

// Encoder performs reverse-order rANS encoding into an in-memory byte
// buffer; callers must encode symbols in the reverse of their intended
// decode order and flush the final state, then write the buffer
// out (LSB-first, per the spec) ahead of the encoded symbol stream.
type Encoder struct {
	state uint32
	out   []byte // renormalization bytes, in emission order (reverse of read order)
}

// NewEncoder returns an Encoder initialized to the renormalization floor.
func NewEncoder() *Encoder {
	return &Encoder{state: renormLow}
}

// Encode codes one symbol under model m. Call in reverse of decode order.
func (e *Encoder) Encode(m *Model, symbol byte) {
	freq := m.freq[symbol]
	start := m.cum[symbol]

	// Renormalize before coding so state stays within [L, L*b) after.
	for uint64(e.state) >= uint64(renormLow/ransM)*renormBase*uint64(freq) {
		e.out = append(e.out, byte(e.state), byte(e.state>>8))
		e.state >>= 16
	}
	e.state = (e.state/freq)*ransM + start + (e.state % freq)
}

// Finish returns the final encoder state and the renormalization byte
// stream in the order it must be consumed during decode (i.e. reversed
// relative to emission order, since encoding proceeds back-to-front).
func (e *Encoder) Finish() (state uint32, stream []byte) {
	stream = make([]byte, len(e.out))
	for i, b := range e.out {
		stream[len(e.out)-1-i] = b
	}
	return e.state, stream
}

// Decoder performs forward rANS decoding, mirroring Encoder.
type Decoder struct {
	state  uint32
	stream []byte
	pos    int
}

// NewDecoder constructs a Decoder from the final encoder state and the
// renormalization byte stream produced by Encoder.Finish.
func NewDecoder(state uint32, stream []byte) *Decoder {
	return &Decoder{state: state, stream: stream}
}

// Decode returns the next symbol coded under model m.
func (d *Decoder) Decode(m *Model) (byte, error) {
	slot := d.state % ransM
	symbol := m.symbolAt[slot]
	freq := m.freq[symbol]
	start := m.cum[symbol]

	d.state = freq*(d.state/ransM) + slot - start

	for d.state < renormLow {
		if d.pos+2 > len(d.stream) {
			return 0, errors.Wrap(ErrTruncatedStream, "rans renormalize")
		}
		// Finish reversed the emitted bytes, so each 16-bit unit now reads
		// high byte first.
		hi := uint32(d.stream[d.pos])
		lo := uint32(d.stream[d.pos+1])
		d.pos += 2
		d.state = (d.state << 16) | (lo | hi<<8)
	}

	return symbol, nil
}

// EncodeBytes encodes data (a byte slice, most often the varint-coded RLE
// representation of a block) under a single static model and writes the
// final state followed by the renormalization stream to w.
func EncodeBytes(w *bio.Writer, m *Model, data []byte) error {
	enc := NewEncoder()
	for i := len(data) - 1; i >= 0; i-- {
		enc.Encode(m, data[i])
	}
	state, stream := enc.Finish()

	if err := w.WriteU32BE(state); err != nil {
		return errors.Wrap(err, "write rans state")
	}
	if err := w.WriteVarint(uint64(len(stream))); err != nil {
		return errors.Wrap(err, "write rans stream length")
	}
	if err := w.WriteData(stream); err != nil {
		return errors.Wrap(err, "write rans stream")
	}
	return nil
}

// DecodeBytes reads n symbols coded by EncodeBytes back into dst (len n).
func DecodeBytes(r *bio.Reader, m *Model, n int, dst []byte) error {
	state, err := r.ReadU32BE()
	if err != nil {
		return errors.Wrap(err, "read rans state")
	}
	streamLen, err := r.ReadVarint()
	if err != nil {
		return errors.Wrap(err, "read rans stream length")
	}
	stream, err := r.ReadData(int(streamLen))
	if err != nil {
		return errors.Wrap(err, "read rans stream")
	}

	dec := NewDecoder(state, stream)
	for i := 0; i < n; i++ {
		sym, err := dec.Decode(m)
		if err != nil {
			return errors.Wrapf(err, "decode symbol %d", i)
		}
		dst[i] = sym
	}
	return nil
}

// EncodeBytesAdaptive builds a single Model from data's own byte
// histogram, writes that histogram followed by the rANS-coded stream.
// This is the whole-stream counterpart to EncodeBytes for callers (such as
// internal/modular) that don't partition their data into per-context
// symbol streams the way VarDCT's banded AC coding does.
func EncodeBytesAdaptive(w *bio.Writer, data []byte) error {
	var counts [256]uint64
	for _, b := range data {
		counts[b]++
	}
	model := NewModel(counts)
	if err := writeHistogram(w, counts); err != nil {
		return errors.Wrap(err, "write histogram")
	}
	return EncodeBytes(w, &model, data)
}

// DecodeBytesAdaptive reads a histogram and n rANS-coded symbols written by
// EncodeBytesAdaptive.
func DecodeBytesAdaptive(r *bio.Reader, n int) ([]byte, error) {
	counts, err := readHistogram(r)
	if err != nil {
		return nil, errors.Wrap(err, "read histogram")
	}
	model := NewModel(counts)
	dst := make([]byte, n)
	if err := DecodeBytes(r, &model, n, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// writeHistogram/readHistogram transmit a sparse byte histogram ahead of
// an adaptively-modeled rANS stream: a count of nonzero entries followed
// by (symbol, count) varint pairs.
func writeHistogram(w *bio.Writer, counts [256]uint64) error {
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}
	if err := w.WriteVarint(uint64(nonzero)); err != nil {
		return err
	}
	for s, c := range counts {
		if c == 0 {
			continue
		}
		if err := w.WriteVarint(uint64(s)); err != nil {
			return err
		}
		if err := w.WriteVarint(c); err != nil {
			return err
		}
	}
	return nil
}

func readHistogram(r *bio.Reader) ([256]uint64, error) {
	var counts [256]uint64
	n, err := r.ReadVarint()
	if err != nil {
		return counts, err
	}
	for i := uint64(0); i < n; i++ {
		s, err := r.ReadVarint()
		if err != nil {
			return counts, err
		}
		c, err := r.ReadVarint()
		if err != nil {
			return counts, err
		}
		if s >= 256 {
			return counts, errors.Wrap(ErrCorruptStream, "histogram symbol out of range")
		}
		counts[s] = c
	}
	return counts, nil
}

// Context selects the per-symbol frequency model used for an AC
// coefficient: a coarse band (low/mid/high frequency, by zigzag position)
// crossed with a bucket of the previous nonzero run length. DC coefficients
// use a distinct context per channel instead (see DCContext).
type Context int

const (
	ContextLowFreq Context = iota
	ContextMidFreq
	ContextHighFreq
	contextCount
)

// ACBandContext returns the frequency-band context for a zigzag position
// (0-based, 0 is DC and never passed here).
func ACBandContext(zigzagPos int) Context {
	switch {
	case zigzagPos < 8:
		return ContextLowFreq
	case zigzagPos < 32:
		return ContextMidFreq
	default:
		return ContextHighFreq
	}
}

// RunBucket coarsens a previous nonzero run length into one of 3 buckets,
// combined with the frequency band to select an AC model.
func RunBucket(run int) int {
	switch {
	case run == 0:
		return 0
	case run < 4:
		return 1
	default:
		return 2
	}
}

// DCContext returns the per-channel DC model index.
func DCContext(channel int) int {
	return channel
}
