package nn

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ArrayNames lists the named arrays every model file must contain, in layer order.
var ArrayNames = []string{"W1", "b1", "W2", "b2", "W3", "b3"}

// ErrMissingArray is returned when a model file lacks one of ArrayNames.
var ErrMissingArray = errors.New("missing array")

// LoadError reports a model file that could not be turned into Parameters.
type LoadError struct {
	Path  string
	Array string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Array != "" {
		return fmt.Sprintf("failed to load model %s: array %s: %v", e.Path, e.Array, e.Err)
	}
	return fmt.Sprintf("failed to load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ShapeError reports parameters whose layer widths do not line up.
type ShapeError struct {
	Array string
	Got   int
	Want  int
	What  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s has %d %s, want %d", e.Array, e.Got, e.What, e.Want)
}

type layer struct {
	weights *mat.Dense
	bias    []float64
}

// Parameters holds the weights and biases of the three dense layers.
// A Parameters value is never modified after construction, so it can be
// shared by any number of goroutines.
type Parameters struct {
	layers [3]layer
}

// NewParameters copies and validates the six arrays of a 3-layer network.
func NewParameters(w1 *mat.Dense, b1 []float64, w2 *mat.Dense, b2 []float64, w3 *mat.Dense, b3 []float64) (*Parameters, error) {
	weights := []*mat.Dense{w1, w2, w3}
	biases := [][]float64{b1, b2, b3}

	p := &Parameters{}
	for i := range p.layers {
		wName := ArrayNames[2*i]
		bName := ArrayNames[2*i+1]
		if weights[i] == nil || weights[i].IsEmpty() {
			return nil, fmt.Errorf("%s: %w", wName, ErrMissingArray)
		}
		if len(biases[i]) == 0 {
			return nil, fmt.Errorf("%s: %w", bName, ErrMissingArray)
		}

		rows, cols := weights[i].Dims()
		if len(biases[i]) != cols {
			return nil, &ShapeError{Array: bName, Got: len(biases[i]), Want: cols, What: "values"}
		}
		if i > 0 {
			_, prevCols := p.layers[i-1].weights.Dims()
			if rows != prevCols {
				return nil, &ShapeError{Array: wName, Got: rows, Want: prevCols, What: "rows"}
			}
		}

		p.layers[i] = layer{
			weights: mat.DenseCopyOf(weights[i]),
			bias:    append([]float64(nil), biases[i]...),
		}
	}
	return p, nil
}

// Dims returns the input width, both hidden widths and the number of classes.
func (p *Parameters) Dims() (features, hidden1, hidden2, classes int) {
	features, hidden1 = p.layers[0].weights.Dims()
	_, hidden2 = p.layers[1].weights.Dims()
	_, classes = p.layers[2].weights.Dims()
	return features, hidden1, hidden2, classes
}

// Load reads model parameters from path. NumPy archives (.npz) and SQLite
// model packs (.db, .sqlite, .mpk) are supported. Every failure is a *LoadError.
func Load(path string) (*Parameters, error) {
	var (
		arrays map[string]array
		err    error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".npz":
		arrays, err = readNPZ(path)
	case ".db", ".sqlite", ".mpk":
		arrays, err = readModelPack(path)
	default:
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unsupported model format %q", filepath.Ext(path))}
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	return fromArrays(path, arrays)
}

// array is a decoded named array before it is assigned to a layer.
type array struct {
	shape []int
	data  []float64
}

func fromArrays(path string, arrays map[string]array) (*Parameters, error) {
	for _, name := range ArrayNames {
		if _, ok := arrays[name]; !ok {
			return nil, &LoadError{Path: path, Array: name, Err: ErrMissingArray}
		}
	}

	weights := make([]*mat.Dense, 3)
	biases := make([][]float64, 3)
	for i := 0; i < 3; i++ {
		wName, bName := ArrayNames[2*i], ArrayNames[2*i+1]

		w := arrays[wName]
		if len(w.shape) != 2 {
			return nil, &LoadError{Path: path, Array: wName, Err: fmt.Errorf("expected a 2-D array, got shape %v", w.shape)}
		}
		if w.shape[0]*w.shape[1] != len(w.data) || len(w.data) == 0 {
			return nil, &LoadError{Path: path, Array: wName, Err: fmt.Errorf("shape %v does not match %d values", w.shape, len(w.data))}
		}
		weights[i] = mat.NewDense(w.shape[0], w.shape[1], w.data)

		b := arrays[bName]
		if !isVector(b.shape) {
			return nil, &LoadError{Path: path, Array: bName, Err: fmt.Errorf("expected a vector, got shape %v", b.shape)}
		}
		biases[i] = b.data
	}

	p, err := NewParameters(weights[0], biases[0], weights[1], biases[1], weights[2], biases[2])
	if err != nil {
		le := &LoadError{Path: path, Err: err}
		var se *ShapeError
		if errors.As(err, &se) {
			le.Array = se.Array
		}
		return nil, le
	}
	return p, nil
}

// isVector accepts (n,) and the (1, n) row vectors NumPy training code tends to save.
func isVector(shape []int) bool {
	switch len(shape) {
	case 1:
		return true
	case 2:
		return shape[0] == 1
	default:
		return false
	}
}
