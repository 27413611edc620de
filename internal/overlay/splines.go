package overlay

import (
	"math"

	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
	"github.com/gojxl/jxl/internal/entropy"
)

const (
	maxSplinePoints = 1 << 20
	maxSplineCoord  = 1 << 23
	colorDCTLen     = 32
)

// ErrInvalidSpline is returned by ValidateSpline when a spline fails the
// spec's structural checks.
var ErrInvalidSpline = errors.New("overlay: invalid spline")

// Spline is a control polygon plus per-channel DCT-coded color and width
// (sigma) curves, rendered at decode time via Gaussian splatting along the
// cubic-Bezier evaluation of the polygon.
type Spline struct {
	// Points are absolute control-point coordinates, reconstructed from
	// the wire format's delta encoding.
	Points [][2]int32
	// ColorDCT holds colorDCTLen DCT coefficients per channel (3
	// channels), coding how color varies along the spline's arc length.
	ColorDCT [3][colorDCTLen]int32
	// SigmaDCT holds colorDCTLen DCT coefficients coding how the
	// splatting radius varies along arc length.
	SigmaDCT [colorDCTLen]int32
}

// ValidateSpline applies the spec's structural checks.
func ValidateSpline(s Spline) error {
	n := len(s.Points)
	if n < 2 {
		return errors.Wrapf(ErrInvalidSpline, "n_points=%d < 2", n)
	}
	if n > maxSplinePoints {
		return errors.Wrapf(ErrInvalidSpline, "n_points=%d > %d", n, maxSplinePoints)
	}
	for _, p := range s.Points {
		if abs32(p[0]) >= maxSplineCoord || abs32(p[1]) >= maxSplineCoord {
			return errors.Wrapf(ErrInvalidSpline, "coordinate (%d,%d) out of range", p[0], p[1])
		}
	}
	return nil
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// WriteSplineList writes varint(count) followed by each spline's encoded
// form.
func WriteSplineList(w *bio.Writer, splines []Spline) error {
	if err := w.WriteVarint(uint64(len(splines))); err != nil {
		return errors.Wrap(err, "write spline count")
	}
	for i, s := range splines {
		if err := ValidateSpline(s); err != nil {
			return errors.Wrapf(err, "spline %d", i)
		}
		if err := writeSpline(w, s); err != nil {
			return errors.Wrapf(err, "spline %d", i)
		}
	}
	return nil
}

func writeSignedVarint(w *bio.Writer, v int32) error {
	return w.WriteVarint(uint64(entropy.ZigzagEncode(v)))
}

func readSignedVarint(r *bio.Reader) (int32, error) {
	v, err := r.ReadVarint()
	if err != nil {
		return 0, err
	}
	return entropy.ZigzagDecode(uint32(v)), nil
}

func writeSpline(w *bio.Writer, s Spline) error {
	if err := w.WriteVarint(uint64(len(s.Points))); err != nil {
		return errors.Wrap(err, "n_points")
	}

	prev := [2]int32{0, 0}
	for i, p := range s.Points {
		dx, dy := p[0]-prev[0], p[1]-prev[1]
		if err := writeSignedVarint(w, dx); err != nil {
			return errors.Wrapf(err, "point %d dx", i)
		}
		if err := writeSignedVarint(w, dy); err != nil {
			return errors.Wrapf(err, "point %d dy", i)
		}
		prev = p
	}

	for c := 0; c < 3; c++ {
		for i, coeff := range s.ColorDCT[c] {
			if err := writeSignedVarint(w, coeff); err != nil {
				return errors.Wrapf(err, "color channel %d coeff %d", c, i)
			}
		}
	}
	for i, coeff := range s.SigmaDCT {
		if err := writeSignedVarint(w, coeff); err != nil {
			return errors.Wrapf(err, "sigma coeff %d", i)
		}
	}
	return nil
}

// ReadSplineList reads a spline list written by WriteSplineList.
func ReadSplineList(r *bio.Reader) ([]Spline, error) {
	count, err := r.ReadVarint()
	if err != nil {
		return nil, errors.Wrap(err, "read spline count")
	}
	splines := make([]Spline, count)
	for i := range splines {
		s, err := readSpline(r)
		if err != nil {
			return nil, errors.Wrapf(err, "spline %d", i)
		}
		if err := ValidateSpline(s); err != nil {
			return nil, errors.Wrapf(err, "spline %d", i)
		}
		splines[i] = s
	}
	return splines, nil
}

func readSpline(r *bio.Reader) (Spline, error) {
	var s Spline
	n, err := r.ReadVarint()
	if err != nil {
		return s, errors.Wrap(err, "n_points")
	}
	if n < 2 || n > maxSplinePoints {
		return s, errors.Wrapf(ErrInvalidSpline, "n_points=%d", n)
	}

	points := make([][2]int32, n)
	prev := [2]int32{0, 0}
	for i := range points {
		dx, err := readSignedVarint(r)
		if err != nil {
			return s, errors.Wrapf(err, "point %d dx", i)
		}
		dy, err := readSignedVarint(r)
		if err != nil {
			return s, errors.Wrapf(err, "point %d dy", i)
		}
		prev = [2]int32{prev[0] + dx, prev[1] + dy}
		points[i] = prev
	}
	s.Points = points

	for c := 0; c < 3; c++ {
		for i := range s.ColorDCT[c] {
			v, err := readSignedVarint(r)
			if err != nil {
				return s, errors.Wrapf(err, "color channel %d coeff %d", c, i)
			}
			s.ColorDCT[c][i] = v
		}
	}
	for i := range s.SigmaDCT {
		v, err := readSignedVarint(r)
		if err != nil {
			return s, errors.Wrapf(err, "sigma coeff %d", i)
		}
		s.SigmaDCT[i] = v
	}
	return s, nil
}

// EvaluateBezier evaluates the cubic-Bezier interpolation of the spline's
// control polygon at parameter t in [0,1]. Control points beyond 4 are
// treated as a chain of consecutive cubic segments, mirroring how a
// rendering decoder walks an arbitrarily long control polygon.
func EvaluateBezier(points [][2]int32, t float64) (float64, float64) {
	n := len(points)
	if n < 2 {
		if n == 1 {
			return float64(points[0][0]), float64(points[0][1])
		}
		return 0, 0
	}
	segments := (n - 1) / 3
	if segments < 1 {
		segments = 1
	}
	segT := t * float64(segments)
	seg := int(segT)
	if seg >= segments {
		seg = segments - 1
	}
	localT := segT - float64(seg)

	base := seg * 3
	p0 := pointAt(points, base)
	p1 := pointAt(points, base+1)
	p2 := pointAt(points, base+2)
	p3 := pointAt(points, base+3)

	u := 1 - localT
	x := u*u*u*p0[0] + 3*u*u*localT*p1[0] + 3*u*localT*localT*p2[0] + localT*localT*localT*p3[0]
	y := u*u*u*p0[1] + 3*u*u*localT*p1[1] + 3*u*localT*localT*p2[1] + localT*localT*localT*p3[1]
	return x, y
}

func pointAt(points [][2]int32, idx int) [2]float64 {
	if idx >= len(points) {
		idx = len(points) - 1
	}
	return [2]float64{float64(points[idx][0]), float64(points[idx][1])}
}

// EvaluateDCT inverse-transforms a 32-coefficient DCT curve at arc-length
// parameter t in [0,1], returning the interpolated scalar value (color
// channel intensity or splatting sigma).
func EvaluateDCT(coeffs [colorDCTLen]int32, t float64) float64 {
	var sum float64
	for k := 0; k < colorDCTLen; k++ {
		ck := 1.0
		if k == 0 {
			ck = 1 / math.Sqrt2
		}
		sum += ck * float64(coeffs[k]) * math.Cos(math.Pi*(2*t*float64(colorDCTLen)+1)*float64(k)/(2*colorDCTLen))
	}
	return sum * math.Sqrt(2.0/colorDCTLen)
}
