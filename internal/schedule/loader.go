package schedule

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"lottodispatch/internal/types"
)

//go:embed schedules.json
var defaultTable []byte

// document is the on-disk shape of a schedule table.
type document struct {
	Schedules []types.Schedule `json:"schedules"`
}

// Decode reads a schedule table document. Unknown fields are rejected so a
// typo in authored configuration cannot silently drop a setting.
func Decode(r io.Reader) ([]types.Schedule, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigMalformedTable, "failed to decode schedule table", err)
	}
	if len(doc.Schedules) == 0 {
		return nil, types.NewAppError(types.ErrCodeConfigMalformedTable, "schedule table is empty", nil)
	}
	return doc.Schedules, nil
}

// Default builds the table compiled into the binary.
func Default(opts ...Option) (*Table, error) {
	schedules, err := Decode(bytes.NewReader(defaultTable))
	if err != nil {
		return nil, fmt.Errorf("embedded schedule table: %w", err)
	}
	return NewTable(schedules, opts...)
}

// LoadFile builds a table from a JSON document on disk.
func LoadFile(path string, opts ...Option) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigMalformedTable, fmt.Sprintf("failed to open schedule table %s", path), err)
	}
	defer f.Close()

	schedules, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("schedule table %s: %w", path, err)
	}
	return NewTable(schedules, opts...)
}

// Load returns the table at path, or the embedded default when path is empty.
func Load(path string, opts ...Option) (*Table, error) {
	if path == "" {
		return Default(opts...)
	}
	return LoadFile(path, opts...)
}
