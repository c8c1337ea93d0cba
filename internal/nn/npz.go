package nn

import (
	"fmt"
	"strings"

	"github.com/sbinet/npyio/npz"
)

// readNPZ decodes the model arrays stored in a NumPy .npz archive.
// Arrays that are not part of ArrayNames are ignored.
func readNPZ(path string) (map[string]array, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open npz archive: %w", err)
	}
	defer r.Close()

	wanted := make(map[string]bool, len(ArrayNames))
	for _, name := range ArrayNames {
		wanted[name] = true
	}

	arrays := make(map[string]array, len(ArrayNames))
	for _, key := range r.Keys() {
		name := strings.TrimSuffix(key, ".npy")
		if !wanted[name] {
			continue
		}

		hdr := r.Header(key)
		if hdr == nil {
			return nil, &LoadError{Array: name, Err: fmt.Errorf("no header for %s", key)}
		}
		shape := append([]int(nil), hdr.Descr.Shape...)

		var data []float64
		if err := r.Read(key, &data); err != nil {
			return nil, &LoadError{Array: name, Err: fmt.Errorf("failed to read array: %w", err)}
		}
		if hdr.Descr.Fortran && len(shape) == 2 {
			data = rowMajor(data, shape[0], shape[1])
		}

		arrays[name] = array{shape: shape, data: data}
	}
	return arrays, nil
}

// rowMajor reorders a column-major rows x cols buffer into row-major order.
func rowMajor(data []float64, rows, cols int) []float64 {
	if len(data) != rows*cols {
		return data
	}
	out := make([]float64, len(data))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = data[j*rows+i]
		}
	}
	return out
}
