// Package uniform holds the typed uniform values the frame renderer pushes to
// the active shader program, together with their string conversions.
package uniform

import (
	"errors"
	"fmt"
)

// Type is a GLSL uniform type.
type Type int

const (
	Float Type = iota
	Vec2
	Vec3
	Vec4
	Mat2
	Mat3
	Mat4
)

// ErrUnknownType is returned for type names outside the supported set.
var ErrUnknownType = errors.New("unknown uniform type")

var typeNames = [...]string{"float", "vec2", "vec3", "vec4", "mat2", "mat3", "mat4"}

// Types lists every supported type in display order.
func Types() []Type {
	return []Type{Float, Vec2, Vec3, Vec4, Mat2, Mat3, Mat4}
}

// ParseType parses a GLSL type name.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	return t >= Float && t <= Mat4
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Components returns the number of floats a value of this type holds.
func (t Type) Components() int {
	switch t {
	case Float:
		return 1
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Vec4, Mat2:
		return 4
	case Mat3:
		return 9
	case Mat4:
		return 16
	}
	return 0
}

// IsMatrix reports whether t is a square matrix type.
func (t Type) IsMatrix() bool {
	return t == Mat2 || t == Mat3 || t == Mat4
}

// Dim returns the vector length, or the side of a matrix.
func (t Type) Dim() int {
	switch t {
	case Mat2:
		return 2
	case Mat3:
		return 3
	case Mat4:
		return 4
	}
	return t.Components()
}

// MarshalText encodes the type as its GLSL name.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(typeNames[t]), nil
}

// UnmarshalText decodes a GLSL type name.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
