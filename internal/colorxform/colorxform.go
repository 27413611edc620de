// Package colorxform implements the color transforms used by the two
// coding paths: the lossy VarDCT path's RGB->YCbCr and RGB->XYB (opsin)
// transforms, and the lossless Modular path's reversible YCoCg-R transform.
package colorxform

import "math"

// ForwardYCbCr converts normalized [0,1] RGB to YCbCr using the BT.601
// coefficients. Operates in place; r, g, b must have equal length.
func ForwardYCbCr(r, g, b []float32) {
	for i := range r {
		rr, gg, bb := r[i], g[i], b[i]
		y := 0.299*rr + 0.587*gg + 0.114*bb
		cb := -0.168736*rr - 0.331264*gg + 0.5*bb + 0.5
		cr := 0.5*rr - 0.418688*gg - 0.081312*bb + 0.5
		r[i], g[i], b[i] = y, cb, cr
	}
}

// InverseYCbCr converts BT.601 YCbCr back to normalized [0,1] RGB in place.
func InverseYCbCr(y, cb, cr []float32) {
	for i := range y {
		yy, c1, c2 := y[i], cb[i]-0.5, cr[i]-0.5
		r := yy + 1.402*c2
		g := yy - 0.344136*c1 - 0.714136*c2
		b := yy + 1.772*c1
		y[i], cb[i], cr[i] = r, g, b
	}
}

// opsinAbsorbance is the fixed 3x3 matrix mapping linear RGB to the LMS-like
// opsin absorbance space, ahead of the cube-root transfer.
var opsinAbsorbance = [3][3]float32{
	{0.30, 0.622, 0.078},
	{0.23, 0.692, 0.095},
	{0.24337, 0.20417, 0.33334},
}

// opsinAbsorbanceInverse is the matrix inverse of opsinAbsorbance.
var opsinAbsorbanceInverse = invert3x3(opsinAbsorbance)

// opsinBias is the bias added under the cube root in the opsin transfer
// function, keeping t(x) finite and monotonic near x=0.
const opsinBias = 0.0037930734

var opsinBiasCbrt = float32(math.Cbrt(opsinBias))

func transfer(x float32) float32 {
	if x < 0 {
		x = 0
	}
	return float32(math.Cbrt(float64(x+opsinBias))) - opsinBiasCbrt
}

func transferInverse(t float32) float32 {
	v := t + opsinBiasCbrt
	return v*v*v - opsinBias
}

// ForwardXYB converts normalized [0,1] linear RGB to the perceptual XYB
// opsin color space, in place.
func ForwardXYB(r, g, b []float32) {
	m := opsinAbsorbance
	for i := range r {
		rr, gg, bb := r[i], g[i], b[i]
		l := m[0][0]*rr + m[0][1]*gg + m[0][2]*bb
		mm := m[1][0]*rr + m[1][1]*gg + m[1][2]*bb
		s := m[2][0]*rr + m[2][1]*gg + m[2][2]*bb

		lp, mp, sp := transfer(l), transfer(mm), transfer(s)

		r[i] = (lp - mp) / 2
		g[i] = (lp + mp) / 2
		b[i] = sp
	}
}

// InverseXYB converts XYB back to normalized [0,1] linear RGB, in place.
func InverseXYB(x, y, bb []float32) {
	m := opsinAbsorbanceInverse
	for i := range x {
		lp := y[i] + x[i]
		mp := y[i] - x[i]
		sp := bb[i]

		l := transferInverse(lp)
		mm := transferInverse(mp)
		s := transferInverse(sp)

		x[i] = m[0][0]*l + m[0][1]*mm + m[0][2]*s
		y[i] = m[1][0]*l + m[1][1]*mm + m[1][2]*s
		bb[i] = m[2][0]*l + m[2][1]*mm + m[2][2]*s
	}
}

// ForwardRCT applies the reversible YCoCg-R color transform to integer RGB
// samples, in place. Lossless: InverseRCT recovers the input exactly.
func ForwardRCT(r, g, b []int32) {
	for i := range r {
		rr, gg, bb := r[i], g[i], b[i]
		co := rr - bb
		t := bb + (co >> 1)
		cg := gg - t
		y := t + (cg >> 1)
		r[i], g[i], b[i] = y, co, cg
	}
}

// InverseRCT inverts ForwardRCT, in place.
func InverseRCT(y, co, cg []int32) {
	for i := range y {
		yy, c1, c2 := y[i], co[i], cg[i]
		t := yy - (c2 >> 1)
		g := c2 + t
		b := t - (c1 >> 1)
		r := c1 + b
		y[i], co[i], cg[i] = r, g, b
	}
}

// invert3x3 computes the inverse of a 3x3 matrix via the cofactor formula.
func invert3x3(a [3][3]float32) [3][3]float32 {
	det := a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
	invDet := 1 / det

	var inv [3][3]float32
	inv[0][0] = (a[1][1]*a[2][2] - a[1][2]*a[2][1]) * invDet
	inv[0][1] = (a[0][2]*a[2][1] - a[0][1]*a[2][2]) * invDet
	inv[0][2] = (a[0][1]*a[1][2] - a[0][2]*a[1][1]) * invDet
	inv[1][0] = (a[1][2]*a[2][0] - a[1][0]*a[2][2]) * invDet
	inv[1][1] = (a[0][0]*a[2][2] - a[0][2]*a[2][0]) * invDet
	inv[1][2] = (a[0][2]*a[1][0] - a[0][0]*a[1][2]) * invDet
	inv[2][0] = (a[1][0]*a[2][1] - a[1][1]*a[2][0]) * invDet
	inv[2][1] = (a[0][1]*a[2][0] - a[0][0]*a[2][1]) * invDet
	inv[2][2] = (a[0][0]*a[1][1] - a[0][1]*a[1][0]) * invDet
	return inv
}

// ClampFloat32 clamps v to [lo, hi].
func ClampFloat32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt32 clamps v to [lo, hi].
func ClampInt32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
