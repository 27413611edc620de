package pixbuf

// Buffer is a generic typed pixel plane of W x H samples with borrowable
// tiled views.
type Buffer[T any] struct {
	W, H   int
	Stride int // samples per row; Stride >= W
	Data   []T
}

// NewBuffer allocates a zeroed buffer of the given dimensions with a tight
// stride.
func NewBuffer[T any](w, h int) *Buffer[T] {
	return &Buffer[T]{W: w, H: h, Stride: w, Data: make([]T, w*h)}
}

// At returns the sample at (x, y).
func (b *Buffer[T]) At(x, y int) T {
	return b.Data[y*b.Stride+x]
}

// Set stores the sample at (x, y).
func (b *Buffer[T]) Set(x, y int, v T) {
	b.Data[y*b.Stride+x] = v
}

// Row returns the backing slice for row y, Stride samples wide (only the
// first W are meaningful).
func (b *Buffer[T]) Row(y int) []T {
	return b.Data[y*b.Stride : y*b.Stride+b.Stride]
}

// Tile is a borrowed, non-owning view onto a rectangular region of a
// Buffer. It shares the parent's backing array.
type Tile[T any] struct {
	OriginX, OriginY int
	W, H             int
	stride           int
	data             []T
}

// Tile returns a borrowed view of the w x h rectangle at (originX, originY).
// The rectangle is clamped to the buffer bounds.
func (b *Buffer[T]) Tile(originX, originY, w, h int) Tile[T] {
	if originX+w > b.W {
		w = b.W - originX
	}
	if originY+h > b.H {
		h = b.H - originY
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return Tile[T]{
		OriginX: originX, OriginY: originY,
		W: w, H: h,
		stride: b.Stride,
		data:   b.Data,
	}
}

// At returns the sample at tile-local coordinates (x, y).
func (t Tile[T]) At(x, y int) T {
	return t.data[(t.OriginY+y)*t.stride+t.OriginX+x]
}

// Set stores the sample at tile-local coordinates (x, y).
func (t Tile[T]) Set(x, y int, v T) {
	t.data[(t.OriginY+y)*t.stride+t.OriginX+x] = v
}

// CopyTo copies the tile's content into dst (row-major, tight W*H).
func (t Tile[T]) CopyTo(dst []T) {
	for y := 0; y < t.H; y++ {
		copy(dst[y*t.W:(y+1)*t.W], t.data[(t.OriginY+y)*t.stride+t.OriginX:(t.OriginY+y)*t.stride+t.OriginX+t.W])
	}
}
