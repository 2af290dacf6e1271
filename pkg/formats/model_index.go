// Model index file: { "models": { "Display Name": "relative/path.json", ... } }.
package formats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidModelIndex is returned when the index has no models object.
var ErrInvalidModelIndex = errors.New("invalid model index")

// ModelIndexEntry names one model file.
type ModelIndexEntry struct {
	Name string
	Path string
}

// ModelIndex lists the selectable models in file order.
type ModelIndex struct {
	Entries []ModelIndexEntry
}

// Find returns the entry with the given display name.
func (idx *ModelIndex) Find(name string) (ModelIndexEntry, bool) {
	for _, e := range idx.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return ModelIndexEntry{}, false
}

// ParseModelIndex parses a model index file.
// The models object is read token by token so entries keep their file order.
func ParseModelIndex(data []byte) (*ModelIndex, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parsing model index: %w", err)
	}
	raw, ok := top["models"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("%w: missing models object", ErrInvalidModelIndex)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing model index: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: models must be an object", ErrInvalidModelIndex)
	}

	idx := &ModelIndex{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing model index: %w", err)
		}
		name, _ := keyTok.(string)

		var path string
		if err := dec.Decode(&path); err != nil {
			return nil, fmt.Errorf("%w: model %q: %v", ErrInvalidModelIndex, name, err)
		}
		idx.Entries = append(idx.Entries, ModelIndexEntry{Name: name, Path: path})
	}
	return idx, nil
}
