// Package predict implements the spatial and inter-block predictors used by
// both coding paths: DC prediction across blocks, the MED spatial predictor
// for per-pixel lossless coding, and the Haar-like squeeze transform used
// for responsive/progressive layering.
package predict

// PredictDC predicts a block's DC coefficient from its causal raster
// neighbors, per the rule: (left+above)/2 if both exist, else the single
// available neighbor, else 0. hasLeft/hasAbove indicate whether those
// neighbors exist (false at the first column/row respectively).
func PredictDC(left, above float32, hasLeft, hasAbove bool) float32 {
	switch {
	case hasLeft && hasAbove:
		return (left + above) / 2
	case hasLeft:
		return left
	case hasAbove:
		return above
	default:
		return 0
	}
}

// DCResidual returns actual - predicted.
func DCResidual(actual, predicted float32) float32 {
	return actual - predicted
}

// ReconstructDC inverts DCResidual given the same predicted value.
func ReconstructDC(residual, predicted float32) float32 {
	return residual + predicted
}

// MEDPredict computes the gradient (MED) predictor for the pixel with
// causal neighbors above (n), left (w), and above-left (nw):
// clamp(n + w - nw, 0, maxSample). The caller supplies the boundary-adjusted
// neighbor values directly (see MEDNeighbors).
func MEDPredict(n, w, nw, maxSample int32) int32 {
	p := n + w - nw
	if p < 0 {
		return 0
	}
	if p > maxSample {
		return maxSample
	}
	return p
}

// MEDNeighbors resolves the N, W, NW neighbor values for pixel (x, y) in a
// row-major plane of the given width, applying the spec's boundary rules:
// the first pixel predicts from 0, the first row predicts from the left
// neighbor only, the first column predicts from the above neighbor only.
func MEDNeighbors(plane []int32, width, x, y int) (n, w, nw int32) {
	idx := func(px, py int) int32 { return plane[py*width+px] }

	switch {
	case x == 0 && y == 0:
		return 0, 0, 0
	case y == 0:
		// First row: predict from left only.
		left := idx(x-1, y)
		return left, left, left
	case x == 0:
		// First column: predict from above only.
		above := idx(x, y-1)
		return above, above, above
	default:
		return idx(x, y-1), idx(x-1, y), idx(x-1, y-1)
	}
}

// MEDResidual returns actual - predicted.
func MEDResidual(actual, predicted int32) int32 {
	return actual - predicted
}

// MEDReconstruct inverts MEDResidual given the same predicted value.
func MEDReconstruct(residual, predicted int32) int32 {
	return residual + predicted
}

func floorDiv2(v int32) int32 {
	// Arithmetic right shift rounds toward negative infinity for two's
	// complement, matching the spec's floor_div2_towards_neg_inf.
	return v >> 1
}

// SqueezeHorizontal performs one in-place horizontal Haar-like squeeze pass
// over a W-wide, H-tall active region of a plane with row stride S: for each
// row, the first ceil(W/2) output samples become avg(even,odd) and the next
// floor(W/2) become (even-odd); a trailing unpaired column is copied
// verbatim into the last average slot.
func SqueezeHorizontal(plane []int32, stride, w, h int) {
	row := make([]int32, w)
	half := (w + 1) / 2
	for y := 0; y < h; y++ {
		base := y * stride
		copy(row, plane[base:base+w])

		pairs := w / 2
		for i := 0; i < pairs; i++ {
			even, odd := row[2*i], row[2*i+1]
			plane[base+i] = floorDiv2(even + odd)
			plane[base+half+i] = even - odd
		}
		if w%2 == 1 {
			plane[base+half-1] = row[w-1]
		}
	}
}

// SqueezeVertical performs one in-place vertical Haar-like squeeze pass,
// mirroring SqueezeHorizontal along columns.
func SqueezeVertical(plane []int32, stride, w, h int) {
	col := make([]int32, h)
	half := (h + 1) / 2
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = plane[y*stride+x]
		}

		pairs := h / 2
		for i := 0; i < pairs; i++ {
			even, odd := col[2*i], col[2*i+1]
			plane[i*stride+x] = floorDiv2(even + odd)
			plane[(half+i)*stride+x] = even - odd
		}
		if h%2 == 1 {
			plane[(half-1)*stride+x] = col[h-1]
		}
	}
}

// UnsqueezeHorizontal inverts SqueezeHorizontal for any w; for an odd w
// the trailing unpaired sample is restored from the last average slot.
func UnsqueezeHorizontal(plane []int32, stride, w, h int) {
	half := (w + 1) / 2
	pairs := w / 2
	row := make([]int32, w)
	for y := 0; y < h; y++ {
		base := y * stride
		copy(row, plane[base:base+w])
		for i := 0; i < pairs; i++ {
			avg, diff := row[i], row[half+i]
			// even + odd = 2*avg + (diff&1) when diff is odd, recovered
			// exactly via: odd = avg - floorDiv2(diff) ... (even = odd+diff)
			even := avg + ((diff + 1) >> 1)
			odd := even - diff
			plane[base+2*i] = even
			plane[base+2*i+1] = odd
		}
		if w%2 == 1 {
			plane[base+w-1] = row[half-1]
		}
	}
}

// UnsqueezeVertical inverts SqueezeVertical, mirroring UnsqueezeHorizontal
// along columns.
func UnsqueezeVertical(plane []int32, stride, w, h int) {
	half := (h + 1) / 2
	pairs := h / 2
	col := make([]int32, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = plane[y*stride+x]
		}
		for i := 0; i < pairs; i++ {
			avg, diff := col[i], col[half+i]
			even := avg + ((diff + 1) >> 1)
			odd := even - diff
			plane[(2*i)*stride+x] = even
			plane[(2*i+1)*stride+x] = odd
		}
		if h%2 == 1 {
			plane[(h-1)*stride+x] = col[half-1]
		}
	}
}
