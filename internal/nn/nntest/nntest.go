// Package nntest builds small deterministic networks and model files for tests.
package nntest

import (
	"database/sql"
	"math"
	"strings"
	"testing"

	"github.com/kartoza/stunting-predictor/internal/nn"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"
)

// Layer widths of the fixture network: 3 features, two hidden layers, 4 classes.
const (
	Features = 3
	Hidden1  = 5
	Hidden2  = 4
	Classes  = 4
)

// Arrays returns the fixture arrays keyed by name. Biases are 1 x n matrices.
func Arrays() map[string]*mat.Dense {
	return map[string]*mat.Dense{
		"W1": fill(Features, Hidden1, 1),
		"b1": fill(1, Hidden1, 2),
		"W2": fill(Hidden1, Hidden2, 3),
		"b2": fill(1, Hidden2, 4),
		"W3": fill(Hidden2, Classes, 5),
		"b3": fill(1, Classes, 6),
	}
}

// Parameters returns the fixture network.
func Parameters(tb testing.TB) *nn.Parameters {
	tb.Helper()
	return FromArrays(tb, Arrays())
}

// FromArrays builds parameters from arrays shaped like the ones Arrays returns.
func FromArrays(tb testing.TB, a map[string]*mat.Dense) *nn.Parameters {
	tb.Helper()
	p, err := nn.NewParameters(
		a["W1"], a["b1"].RawRowView(0),
		a["W2"], a["b2"].RawRowView(0),
		a["W3"], a["b3"].RawRowView(0),
	)
	if err != nil {
		tb.Fatalf("failed to build parameters: %v", err)
	}
	return p
}

// WriteNPZ writes arrays to a NumPy archive at path, leaving out any name in skip.
// Biases are written as 1-D arrays.
func WriteNPZ(tb testing.TB, path string, arrays map[string]*mat.Dense, skip ...string) {
	tb.Helper()

	w, err := npz.Create(path)
	if err != nil {
		tb.Fatalf("failed to create npz: %v", err)
	}
	for _, name := range nn.ArrayNames {
		m, ok := arrays[name]
		if !ok || contains(skip, name) {
			continue
		}
		var v interface{} = m
		if strings.HasPrefix(name, "b") {
			v = append([]float64(nil), m.RawRowView(0)...)
		}
		if err := w.Write(name, v); err != nil {
			tb.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("failed to close npz: %v", err)
	}
}

// WriteModelPack writes arrays to a SQLite model pack at path, leaving out any name in skip.
func WriteModelPack(tb testing.TB, path string, arrays map[string]*mat.Dense, skip ...string) {
	tb.Helper()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		tb.Fatalf("failed to create model pack: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(nn.ModelPackSchema); err != nil {
		tb.Fatalf("failed to create schema: %v", err)
	}
	for _, name := range nn.ArrayNames {
		m, ok := arrays[name]
		if !ok || contains(skip, name) {
			continue
		}
		rows, cols := m.Dims()
		_, err := db.Exec("INSERT INTO arrays (name, rows, cols, data) VALUES (?, ?, ?, ?)",
			name, rows, cols, nn.EncodeFloats(mat.DenseCopyOf(m).RawMatrix().Data))
		if err != nil {
			tb.Fatalf("failed to insert %s: %v", name, err)
		}
	}
}

// fill returns a rows x cols matrix of small, distinct, reproducible values.
func fill(rows, cols int, seed float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = 0.8 * math.Sin(seed*1.7+float64(i)*0.9)
	}
	return mat.NewDense(rows, cols, data)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
