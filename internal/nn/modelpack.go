package nn

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

// ModelPackSchema creates the single table a SQLite model pack consists of.
// data holds rows*cols little-endian float64 values in row-major order.
const ModelPackSchema = `CREATE TABLE arrays (
	name TEXT PRIMARY KEY,
	rows INTEGER NOT NULL,
	cols INTEGER NOT NULL,
	data BLOB NOT NULL
)`

// readModelPack decodes the model arrays stored in a SQLite model pack.
func readModelPack(path string) (map[string]array, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open model pack: %w", err)
	}
	defer db.Close()

	// Verify it's a model pack before querying it
	var count int
	err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'arrays'").Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to read model pack: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("not a model pack: no arrays table")
	}

	rows, err := db.Query("SELECT name, rows, cols, data FROM arrays")
	if err != nil {
		return nil, fmt.Errorf("failed to query arrays: %w", err)
	}
	defer rows.Close()

	arrays := make(map[string]array, len(ArrayNames))
	for rows.Next() {
		var (
			name       string
			nrow, ncol int
			blob       []byte
		)
		if err := rows.Scan(&name, &nrow, &ncol, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan array: %w", err)
		}
		data, err := decodeFloats(blob)
		if err != nil {
			return nil, &LoadError{Array: name, Err: err}
		}
		if nrow*ncol != len(data) {
			return nil, &LoadError{Array: name, Err: fmt.Errorf("%dx%d array holds %d values", nrow, ncol, len(data))}
		}
		arrays[name] = array{shape: []int{nrow, ncol}, data: data}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read arrays: %w", err)
	}

	return arrays, nil
}

// EncodeFloats packs values the way the arrays.data column stores them.
func EncodeFloats(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeFloats(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return values, nil
}
