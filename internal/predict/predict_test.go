package predict

import "testing"

func TestPredictDCBothNeighbors(t *testing.T) {
	if got := PredictDC(10, 20, true, true); got != 15 {
		t.Errorf("got %v, want 15", got)
	}
}

func TestPredictDCOnlyLeft(t *testing.T) {
	if got := PredictDC(10, 0, true, false); got != 10 {
		t.Errorf("got %v, want 10", got)
	}
}

func TestPredictDCOnlyAbove(t *testing.T) {
	if got := PredictDC(0, 20, false, true); got != 20 {
		t.Errorf("got %v, want 20", got)
	}
}

func TestPredictDCNoNeighbors(t *testing.T) {
	if got := PredictDC(0, 0, false, false); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestDCResidualRoundTrip(t *testing.T) {
	pred := PredictDC(10, 20, true, true)
	r := DCResidual(42, pred)
	if got := ReconstructDC(r, pred); got != 42 {
		t.Errorf("got %v, want 42", got)
	}
}

func TestMEDPredictFirstPixel(t *testing.T) {
	plane := []int32{5, 1, 2, 3}
	n, w, nw := MEDNeighbors(plane, 2, 0, 0)
	if got := MEDPredict(n, w, nw, 255); got != 0 {
		t.Errorf("first pixel predictor = %v, want 0", got)
	}
}

func TestMEDPredictFirstRow(t *testing.T) {
	// width 4: row 0 is [10, 20, 30, 40]
	plane := []int32{10, 20, 30, 40}
	n, w, nw := MEDNeighbors(plane, 4, 2, 0)
	if got := MEDPredict(n, w, nw, 255); got != 20 {
		t.Errorf("first-row predictor at x=2 = %v, want 20 (left)", got)
	}
}

func TestMEDPredictFirstColumn(t *testing.T) {
	plane := []int32{10, 0, 20, 0, 30, 0}
	n, w, nw := MEDNeighbors(plane, 2, 0, 1)
	if got := MEDPredict(n, w, nw, 255); got != 10 {
		t.Errorf("first-column predictor at y=1 = %v, want 10 (above)", got)
	}
}

func TestMEDPredictInterior(t *testing.T) {
	// 3x3 plane:
	// 10 20 30
	// 40 50 60
	// 70 80 90
	plane := []int32{10, 20, 30, 40, 50, 60, 70, 80, 90}
	n, w, nw := MEDNeighbors(plane, 3, 1, 1)
	got := MEDPredict(n, w, nw, 255)
	want := n + w - nw // 20 + 40 - 10 = 50
	if got != want {
		t.Errorf("interior predictor = %v, want %v", got, want)
	}
}

func TestMEDPredictClamps(t *testing.T) {
	if got := MEDPredict(200, 200, 0, 255); got != 255 {
		t.Errorf("got %v, want clamp to 255", got)
	}
	if got := MEDPredict(0, 0, 200, 255); got != 0 {
		t.Errorf("got %v, want clamp to 0", got)
	}
}

func TestMEDResidualRoundTrip(t *testing.T) {
	pred := int32(42)
	r := MEDResidual(100, pred)
	if got := MEDReconstruct(r, pred); got != 100 {
		t.Errorf("got %v, want 100", got)
	}
}

func TestSqueezeHorizontalRoundTripEven(t *testing.T) {
	w, h := 8, 1
	orig := []int32{10, 12, 20, 16, 30, 34, 8, 10}
	plane := append([]int32{}, orig...)

	SqueezeHorizontal(plane, w, w, h)
	UnsqueezeHorizontal(plane, w, w, h)

	for i := range orig {
		if plane[i] != orig[i] {
			t.Errorf("index %d: got %v, want %v", i, plane[i], orig[i])
		}
	}
}

func TestSqueezeHorizontalOddTrailingColumn(t *testing.T) {
	w, h := 5, 1
	plane := []int32{10, 12, 20, 16, 99}
	SqueezeHorizontal(plane, w, w, h)
	// last average slot holds the trailing unpaired column verbatim.
	half := (w + 1) / 2
	if plane[half-1] != 99 {
		t.Errorf("trailing column = %v, want 99", plane[half-1])
	}
}

func TestSqueezeVerticalRoundTrip(t *testing.T) {
	w, h := 1, 8
	orig := []int32{10, 12, 20, 16, 30, 34, 8, 10}
	plane := append([]int32{}, orig...)

	SqueezeVertical(plane, w, w, h)
	UnsqueezeVertical(plane, w, w, h)

	for i := range orig {
		if plane[i] != orig[i] {
			t.Errorf("index %d: got %v, want %v", i, plane[i], orig[i])
		}
	}
}

func TestSqueezeHorizontalNegativeValues(t *testing.T) {
	w, h := 6, 1
	orig := []int32{-10, 12, -20, -16, 30, -34}
	plane := append([]int32{}, orig...)

	SqueezeHorizontal(plane, w, w, h)
	UnsqueezeHorizontal(plane, w, w, h)

	for i := range orig {
		if plane[i] != orig[i] {
			t.Errorf("index %d: got %v, want %v", i, plane[i], orig[i])
		}
	}
}
