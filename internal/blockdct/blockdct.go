// Package blockdct implements the 8x8 forward/inverse DCT, zigzag scan
// order, and quantization-matrix generation shared by the VarDCT coding
// path.
//
// The forward/inverse transforms are implemented as a basis-matrix
// multiply rather than a butterfly network: simpler to keep numerically
// reversible to within the 1-ulp tolerance the spec requires, at some cost
// in throughput that the SIMD dispatch paths (see blockdct_amd64.go,
// blockdct_arm64.go) claw back on supporting hardware.
package blockdct

import (
	"math"
	"sync"
)

const blockSize = 8
const blockLen = blockSize * blockSize

// basis[u][x] = C(u) * cos((2x+1) u pi / 16), the shared DCT-II/DCT-III
// basis matrix (DCT-III is DCT-II transposed).
var basis [blockSize][blockSize]float32

func init() {
	for u := 0; u < blockSize; u++ {
		cu := float32(1)
		if u == 0 {
			cu = float32(1 / math.Sqrt2)
		}
		scale := cu * float32(math.Sqrt(2.0/float64(blockSize)))
		for x := 0; x < blockSize; x++ {
			basis[u][x] = scale * float32(math.Cos(float64(2*x+1)*float64(u)*math.Pi/16))
		}
	}
}

var blockBufPool = sync.Pool{
	New: func() any {
		buf := make([]float32, blockLen)
		return &buf
	},
}

func getBlockBuf() []float32 {
	bp := blockBufPool.Get().(*[]float32)
	return (*bp)[:blockLen]
}

func putBlockBuf(buf []float32) {
	bp := &buf
	blockBufPool.Put(bp)
}

// ForwardDCT applies the 2-D forward DCT-II to an 8x8 block stored
// row-major in block (len 64), in place.
func ForwardDCT(block []float32) {
	if useSIMD {
		ForwardDCTFast(block)
		return
	}
	forwardDCTScalar(block)
}

func forwardDCTScalar(block []float32) {
	tmp := getBlockBuf()
	defer putBlockBuf(tmp)

	// Rows: 1-D DCT along x for each row.
	for y := 0; y < blockSize; y++ {
		row := block[y*blockSize : y*blockSize+blockSize]
		for u := 0; u < blockSize; u++ {
			var sum float32
			for x := 0; x < blockSize; x++ {
				sum += basis[u][x] * row[x]
			}
			tmp[y*blockSize+u] = sum
		}
	}
	// Columns: 1-D DCT along y for each column of the row-transformed data.
	for u := 0; u < blockSize; u++ {
		for v := 0; v < blockSize; v++ {
			var sum float32
			for y := 0; y < blockSize; y++ {
				sum += basis[v][y] * tmp[y*blockSize+u]
			}
			block[v*blockSize+u] = sum
		}
	}
}

// InverseDCT applies the 2-D inverse DCT-III to an 8x8 block, in place.
func InverseDCT(block []float32) {
	if useSIMD {
		InverseDCTFast(block)
		return
	}
	inverseDCTScalar(block)
}

func inverseDCTScalar(block []float32) {
	tmp := getBlockBuf()
	defer putBlockBuf(tmp)

	for v := 0; v < blockSize; v++ {
		for x := 0; x < blockSize; x++ {
			var sum float32
			for u := 0; u < blockSize; u++ {
				sum += basis[u][x] * block[v*blockSize+u]
			}
			tmp[v*blockSize+x] = sum
		}
	}
	for x := 0; x < blockSize; x++ {
		for y := 0; y < blockSize; y++ {
			var sum float32
			for v := 0; v < blockSize; v++ {
				sum += basis[v][y] * tmp[v*blockSize+x]
			}
			block[y*blockSize+x] = sum
		}
	}
}

// ZigzagOrder is the fixed 64-entry JPEG/JXL zigzag scan order: index i
// holds the flat (row-major) block offset visited i-th.
var ZigzagOrder = [blockLen]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// Zigzag scans a row-major 8x8 block into zigzag order.
func Zigzag(block []float32, out []float32) {
	for i, idx := range ZigzagOrder {
		out[i] = block[idx]
	}
}

// ZigzagInt scans a row-major 8x8 int16 block into zigzag order.
func ZigzagInt(block []int16, out []int16) {
	for i, idx := range ZigzagOrder {
		out[i] = block[idx]
	}
}

// InverseZigzag scatters a zigzag-ordered block back to row-major order.
func InverseZigzag(zz []float32, block []float32) {
	for i, idx := range ZigzagOrder {
		block[idx] = zz[i]
	}
}

// InverseZigzagInt scatters a zigzag-ordered int16 block back to row-major
// order.
func InverseZigzagInt(zz []int16, block []int16) {
	for i, idx := range ZigzagOrder {
		block[idx] = zz[i]
	}
}

// QuantMatrix is an 8x8 quantization matrix, row-major.
type QuantMatrix [blockLen]float32

// NewQuantMatrix builds the quantization matrix for the given distance,
// per spec §4.4: base = max(1, distance*8), entry(y,x) = base*(1+0.5*(x+y)),
// with chroma channels scaled by 1.5.
func NewQuantMatrix(distance float64, chroma bool) QuantMatrix {
	base := distance * 8
	if base < 1 {
		base = 1
	}
	var m QuantMatrix
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			v := base * (1 + 0.5*float64(x+y))
			if chroma {
				v *= 1.5
			}
			m[y*blockSize+x] = float32(v)
		}
	}
	return m
}

// Scale multiplies every entry of m by factor, returning a new matrix.
func (m QuantMatrix) Scale(factor float32) QuantMatrix {
	var out QuantMatrix
	for i, v := range m {
		out[i] = v * factor
	}
	return out
}

// Quantize divides block by m entrywise, rounds half-away-from-zero, and
// clamps into int16.
func Quantize(block []float32, m QuantMatrix, out []int16) {
	for i, v := range block {
		q := v / m[i]
		var r float32
		if q >= 0 {
			r = float32(math.Floor(float64(q) + 0.5))
		} else {
			r = float32(math.Ceil(float64(q) - 0.5))
		}
		if r > math.MaxInt16 {
			r = math.MaxInt16
		} else if r < math.MinInt16 {
			r = math.MinInt16
		}
		out[i] = int16(r)
	}
}

// Dequantize multiplies block (quantized coefficients) by m entrywise.
func Dequantize(block []int16, m QuantMatrix, out []float32) {
	for i, v := range block {
		out[i] = float32(v) * m[i]
	}
}

// BlockVariance computes sigma^2 = E[X^2] - E[X]^2 over a spatial 8x8
// block, used by adaptive quantization.
func BlockVariance(block []float32) float32 {
	var sum, sumSq float32
	for _, v := range block {
		sum += v
		sumSq += v * v
	}
	n := float32(len(block))
	mean := sum / n
	return sumSq/n - mean*mean
}

// AdaptiveScale returns the factor a block's quantization matrix should be
// scaled by, given its spatial variance, per spec §4.4:
// max(0.5, min(2.0, sigma*k)). Higher variance -> finer (smaller) scale is
// achieved by the caller multiplying the matrix by this factor's
// reciprocal (that is, dividing it by the factor); see VarianceQuantScale.
func AdaptiveScale(variance float32, k float32) float32 {
	s := variance * k
	if s < 0.5 {
		return 0.5
	}
	if s > 2.0 {
		return 2.0
	}
	return s
}

// VarianceQuantScale returns the matrix-multiplier to apply for a block of
// the given variance: higher variance yields a smaller multiplier (finer
// quantization).
func VarianceQuantScale(variance float32, k float32) float32 {
	return 1.0 / AdaptiveScale(variance, k)
}
