// Package overlay implements the two overlay record kinds a frame may
// carry after its main encoding: patches (rectangle copies from a
// reference slot) and splines (Gaussian-splatted Bezier curves).
package overlay

import (
	"github.com/pkg/errors"

	"github.com/gojxl/jxl/internal/bio"
)

// Patch copies a w x h rectangle from (sourceX, sourceY) in reference slot
// RefIndex into (destX, destY) of the current frame.
type Patch struct {
	DestX, DestY     int
	W, H             int
	RefIndex         int
	SourceX, SourceY int
}

// WritePatchList writes varint(count) followed by each patch's fields as
// varints.
func WritePatchList(w *bio.Writer, patches []Patch) error {
	if err := w.WriteVarint(uint64(len(patches))); err != nil {
		return errors.Wrap(err, "write patch count")
	}
	for i, p := range patches {
		fields := []int{p.DestX, p.DestY, p.W, p.H, p.RefIndex, p.SourceX, p.SourceY}
		for _, f := range fields {
			if err := w.WriteVarint(uint64(f)); err != nil {
				return errors.Wrapf(err, "patch %d", i)
			}
		}
	}
	return nil
}

// ReadPatchList reads a patch list written by WritePatchList.
func ReadPatchList(r *bio.Reader) ([]Patch, error) {
	count, err := r.ReadVarint()
	if err != nil {
		return nil, errors.Wrap(err, "read patch count")
	}
	patches := make([]Patch, count)
	for i := range patches {
		vals := make([]int, 7)
		for j := range vals {
			v, err := r.ReadVarint()
			if err != nil {
				return nil, errors.Wrapf(err, "patch %d field %d", i, j)
			}
			vals[j] = int(v)
		}
		patches[i] = Patch{
			DestX: vals[0], DestY: vals[1], W: vals[2], H: vals[3],
			RefIndex: vals[4], SourceX: vals[5], SourceY: vals[6],
		}
	}
	return patches, nil
}

// adjacentHorizontal reports whether b starts exactly where a ends along
// x, sharing the same y-range and reference/source alignment needed for
// horizontal fusion.
func adjacentHorizontal(a, b Patch) bool {
	return a.RefIndex == b.RefIndex &&
		a.DestY == b.DestY && a.H == b.H &&
		a.SourceY == b.SourceY &&
		a.DestX+a.W == b.DestX &&
		a.SourceX+a.W == b.SourceX
}

// adjacentVertical mirrors adjacentHorizontal along y.
func adjacentVertical(a, b Patch) bool {
	return a.RefIndex == b.RefIndex &&
		a.DestX == b.DestX && a.W == b.W &&
		a.SourceX == b.SourceX &&
		a.DestY+a.H == b.DestY &&
		a.SourceY+a.H == b.SourceY
}

func mergeHorizontal(a, b Patch) Patch {
	a.W += b.W
	return a
}

func mergeVertical(a, b Patch) Patch {
	a.H += b.H
	return a
}

// MergePatches iteratively fuses edge-adjacent patches sharing a reference
// slot and identical source/dest range along the non-merging axis, per the
// spec's patch-merging rule, until no further fusion applies.
func MergePatches(patches []Patch) []Patch {
	cur := append([]Patch{}, patches...)
	for {
		merged, changed := mergeOnePass(cur)
		cur = merged
		if !changed {
			return cur
		}
	}
}

func mergeOnePass(patches []Patch) ([]Patch, bool) {
	used := make([]bool, len(patches))
	var out []Patch
	changed := false

	for i := range patches {
		if used[i] {
			continue
		}
		p := patches[i]
		for j := i + 1; j < len(patches); j++ {
			if used[j] {
				continue
			}
			q := patches[j]
			if adjacentHorizontal(p, q) {
				p = mergeHorizontal(p, q)
				used[j] = true
				changed = true
			} else if adjacentHorizontal(q, p) {
				p = mergeHorizontal(q, p)
				used[j] = true
				changed = true
			} else if adjacentVertical(p, q) {
				p = mergeVertical(p, q)
				used[j] = true
				changed = true
			} else if adjacentVertical(q, p) {
				p = mergeVertical(q, p)
				used[j] = true
				changed = true
			}
		}
		used[i] = true
		out = append(out, p)
	}
	return out, changed
}

// Apply copies each patch's source rectangle from ref (a full-frame plane
// of refStride) into dst (dstStride), for one channel.
func Apply(dst []float32, dstStride int, ref []float32, refStride int, patches []Patch) {
	for _, p := range patches {
		for y := 0; y < p.H; y++ {
			srcRow := ref[(p.SourceY+y)*refStride+p.SourceX : (p.SourceY+y)*refStride+p.SourceX+p.W]
			dstRow := dst[(p.DestY+y)*dstStride+p.DestX : (p.DestY+y)*dstStride+p.DestX+p.W]
			copy(dstRow, srcRow)
		}
	}
}
