package marshal

// Float64Buffer is a row-major Rows×Cols matrix of float64.
type Float64Buffer struct {
	Data []float64
	Rows int
	Cols int
}

func NewFloat64Buffer(rows, cols int) Float64Buffer {
	return Float64Buffer{Data: make([]float64, rows*cols), Rows: rows, Cols: cols}
}

func (b Float64Buffer) At(row, col int) float64 { return b.Data[row*b.Cols+col] }

func (b Float64Buffer) Set(row, col int, v float64) { b.Data[row*b.Cols+col] = v }

// Row returns a view of one row. The view aliases b.
func (b Float64Buffer) Row(row int) []float64 { return b.Data[row*b.Cols : (row+1)*b.Cols] }

// Int32Buffer is a row-major Rows×Cols matrix of int32.
type Int32Buffer struct {
	Data []int32
	Rows int
	Cols int
}

func NewInt32Buffer(rows, cols int) Int32Buffer {
	return Int32Buffer{Data: make([]int32, rows*cols), Rows: rows, Cols: cols}
}

func (b Int32Buffer) At(row, col int) int32 { return b.Data[row*b.Cols+col] }

func (b Int32Buffer) Row(row int) []int32 { return b.Data[row*b.Cols : (row+1)*b.Cols] }

// Optional holds a value that may be absent. The zero value is absent.
type Optional[T any] struct {
	value   T
	present bool
}

func Some[T any](v T) Optional[T] { return Optional[T]{value: v, present: true} }

func None[T any]() Optional[T] { return Optional[T]{} }

func (o Optional[T]) Present() bool { return o.present }

func (o Optional[T]) Get() (T, bool) { return o.value, o.present }

// MustGet panics when the value is absent.
func (o Optional[T]) MustGet() T {
	if !o.present {
		panic("marshal: value not present")
	}
	return o.value
}
