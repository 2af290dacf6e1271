// Package session saves and restores an editing session: both shader sources
// and the user uniforms.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/shaderbench/internal/uniform"
)

// DefaultName is used when a session has no name.
const DefaultName = "shader"

// ErrInvalidState is returned for session files missing a required field.
var ErrInvalidState = errors.New("invalid session state")

// UniformState is one saved user uniform. Value is the raw value as the user
// entered it: a string, a number or a list of numbers.
type UniformState struct {
	Name  string       `json:"name"`
	Type  uniform.Type `json:"type"`
	Value any          `json:"value"`
}

// State is a saved session.
type State struct {
	Name     string         `json:"name"`
	VS       string         `json:"vs"`
	FS       string         `json:"fs"`
	Uniforms []UniformState `json:"uniforms"`
}

// FileName returns the file name the session is saved under.
func (s State) FileName() string {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = DefaultName
	}
	return filepath.Base(name) + ".json"
}

// Capture snapshots the sources and the mutable uniforms of a registry.
// Built-ins are never saved.
func Capture(name, vs, fs string, reg *uniform.Registry) State {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	st := State{Name: name, VS: vs, FS: fs, Uniforms: []UniformState{}}
	for _, u := range reg.Mutable() {
		st.Uniforms = append(st.Uniforms, UniformState{Name: u.Name(), Type: u.Type(), Value: u.Raw()})
	}
	return st
}

// Apply resets the registry, which rebuilds the built-ins, and adds every
// saved uniform. Uniforms whose value no longer converts are still added;
// their conversion errors are returned joined.
func (s State) Apply(reg *uniform.Registry) error {
	reg.Reset()
	var errs []error
	for _, us := range s.Uniforms {
		u, err := reg.Add(us.Name, us.Type, us.Value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if u.Err() != nil {
			errs = append(errs, fmt.Errorf("uniform %s: %w", us.Name, u.Err()))
		}
	}
	return errors.Join(errs...)
}

// Marshal encodes a session as tab-indented JSON.
func Marshal(s State) ([]byte, error) {
	if s.Uniforms == nil {
		s.Uniforms = []UniformState{}
	}
	data, err := json.MarshalIndent(s, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// wireState detects missing fields; an empty string is still present.
type wireState struct {
	Name     *string            `json:"name"`
	VS       *string            `json:"vs"`
	FS       *string            `json:"fs"`
	Uniforms *[]json.RawMessage `json:"uniforms"`
}

type wireUniform struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Unmarshal decodes a session. All four top-level fields are required.
func Unmarshal(data []byte) (State, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	var missing []string
	if w.Name == nil {
		missing = append(missing, "name")
	}
	if w.VS == nil {
		missing = append(missing, "vs")
	}
	if w.FS == nil {
		missing = append(missing, "fs")
	}
	if w.Uniforms == nil {
		missing = append(missing, "uniforms")
	}
	if len(missing) > 0 {
		return State{}, fmt.Errorf("%w: missing %s", ErrInvalidState, strings.Join(missing, ", "))
	}

	st := State{Name: *w.Name, VS: *w.VS, FS: *w.FS, Uniforms: make([]UniformState, 0, len(*w.Uniforms))}
	for i, raw := range *w.Uniforms {
		var wu wireUniform
		if err := json.Unmarshal(raw, &wu); err != nil {
			return State{}, fmt.Errorf("%w: uniform %d: %v", ErrInvalidState, i, err)
		}
		t, err := uniform.ParseType(wu.Type)
		if err != nil {
			return State{}, fmt.Errorf("%w: uniform %d: %w", ErrInvalidState, i, err)
		}
		value, err := decodeValue(wu.Value)
		if err != nil {
			return State{}, fmt.Errorf("%w: uniform %d: %v", ErrInvalidState, i, err)
		}
		st.Uniforms = append(st.Uniforms, UniformState{Name: wu.Name, Type: t, Value: value})
	}
	return st, nil
}

// decodeValue keeps strings as strings and turns numbers and number lists
// into float64 and []float64.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing value")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case string, float64:
		return t, nil
	case []any:
		out := make([]float64, len(t))
		for i, e := range t {
			switch n := e.(type) {
			case float64:
				out[i] = n
			case string:
				// older files stored display strings such as "1.00"
				var f float64
				if _, err := fmt.Sscan(n, &f); err != nil {
					return nil, fmt.Errorf("value component %d: %q is not a number", i, n)
				}
				out[i] = f
			default:
				return nil, fmt.Errorf("value component %d is not a number", i)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value %s", raw)
}
