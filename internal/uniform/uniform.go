package uniform

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrImmutableUniform is returned when editing or removing a built-in.
	ErrImmutableUniform = errors.New("uniform is immutable")
	// ErrUnknownUniform is returned when removing a uniform the registry does not hold.
	ErrUnknownUniform = errors.New("uniform not in registry")
)

// Built-in uniform names.
const (
	ProjectionMatrix = "projectionMatrix"
	ModelViewMatrix  = "modelViewMatrix"
	NormalMatrix     = "normalMatrix"
)

// DefaultName is the base of synthesized uniform names.
const DefaultName = "newUniform"

// Bindings supplies the live transforms behind the built-in uniforms.
type Bindings interface {
	ProjectionMatrix() mgl32.Mat4
	ModelViewMatrix() mgl32.Mat4
	NormalMatrix() mgl32.Mat3
}

// StaticBindings is a Bindings with fixed matrices.
type StaticBindings struct {
	Projection mgl32.Mat4
	ModelView  mgl32.Mat4
	Normal     mgl32.Mat3
}

func (b StaticBindings) ProjectionMatrix() mgl32.Mat4 { return b.Projection }
func (b StaticBindings) ModelViewMatrix() mgl32.Mat4  { return b.ModelView }
func (b StaticBindings) NormalMatrix() mgl32.Mat3     { return b.Normal }

// IdentityBindings returns static bindings holding identity matrices.
func IdentityBindings() StaticBindings {
	return StaticBindings{Projection: mgl32.Ident4(), ModelView: mgl32.Ident4(), Normal: mgl32.Ident3()}
}

// Uniform is one named, typed shader input.
//
// User uniforms recompute their passable value on every SetRaw. Built-ins
// pull theirs from the registry bindings on every read.
type Uniform struct {
	name     string
	typ      Type
	raw      any
	passable Value
	err      error
	mutable  bool
	pull     func() Value
}

func (u *Uniform) Name() string  { return u.name }
func (u *Uniform) Type() Type    { return u.typ }
func (u *Uniform) Raw() any      { return u.raw }
func (u *Uniform) Mutable() bool { return u.mutable }

// Err returns the conversion error of the last SetRaw, if any.
func (u *Uniform) Err() error { return u.err }

// Value returns the GPU-ready value, or nil when the raw value did not
// convert.
func (u *Uniform) Value() Value {
	if u.pull != nil {
		return u.pull()
	}
	return u.passable
}

// SetRaw stores a new raw value and recomputes the passable value.
func (u *Uniform) SetRaw(raw any) error {
	if !u.mutable {
		return fmt.Errorf("set %s: %w", u.name, ErrImmutableUniform)
	}
	u.raw = raw
	u.passable, u.err = ToPassableValue(raw, u.typ)
	return u.err
}

// Rename changes the uniform name.
func (u *Uniform) Rename(name string) error {
	if !u.mutable {
		return fmt.Errorf("rename %s: %w", u.name, ErrImmutableUniform)
	}
	u.name = name
	return nil
}

// Readable returns the value in display form, rounded to two decimals.
func (u *Uniform) Readable() string {
	v := u.Value()
	if v == nil {
		return ""
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', 2, 32)
	}
	return layout(parts, u.typ)
}

// Registry is the ordered set of uniforms pushed each frame. Order only
// matters for display.
type Registry struct {
	uniforms []*Uniform
	bindings Bindings
}

// NewRegistry creates a registry holding only the built-ins. A nil bindings
// uses identity matrices.
func NewRegistry(b Bindings) *Registry {
	if b == nil {
		b = IdentityBindings()
	}
	r := &Registry{bindings: b}
	r.Reset()
	return r
}

// Reset drops every uniform and re-creates the built-ins.
func (r *Registry) Reset() {
	r.uniforms = r.uniforms[:0]
	r.addBuiltin(ProjectionMatrix, Mat4, func() Value {
		m := r.bindings.ProjectionMatrix()
		return Value(m[:])
	})
	r.addBuiltin(ModelViewMatrix, Mat4, func() Value {
		m := r.bindings.ModelViewMatrix()
		return Value(m[:])
	})
	r.addBuiltin(NormalMatrix, Mat3, func() Value {
		m := r.bindings.NormalMatrix()
		return Value(m[:])
	})
}

func (r *Registry) addBuiltin(name string, t Type, pull func() Value) {
	r.uniforms = append(r.uniforms, &Uniform{name: name, typ: t, pull: pull})
}

// Add appends a user uniform. An empty name is replaced by FindName. A raw
// value that does not convert is kept and reported through Uniform.Err, so
// the uniform stays editable; only an invalid type is rejected.
func (r *Registry) Add(name string, t Type, raw any) (*Uniform, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("add %q: %w: %d", name, ErrUnknownType, int(t))
	}
	if name == "" {
		name = r.FindName()
	}
	u := &Uniform{name: name, typ: t, mutable: true}
	_ = u.SetRaw(raw)
	r.uniforms = append(r.uniforms, u)
	return u, nil
}

// AddDefault appends an auto-named float uniform with value 0.
func (r *Registry) AddDefault() *Uniform {
	u, _ := r.Add("", Float, 0.0)
	return u
}

// Remove deletes a user uniform.
func (r *Registry) Remove(u *Uniform) error {
	if !u.mutable {
		return fmt.Errorf("remove %s: %w", u.name, ErrImmutableUniform)
	}
	for i, have := range r.uniforms {
		if have == u {
			r.uniforms = append(r.uniforms[:i], r.uniforms[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove %s: %w", u.name, ErrUnknownUniform)
}

// Replace swaps a user uniform for a new one at the same position. It is how
// a uniform changes type.
func (r *Registry) Replace(old *Uniform, name string, t Type, raw any) (*Uniform, error) {
	if !old.mutable {
		return nil, fmt.Errorf("replace %s: %w", old.name, ErrImmutableUniform)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("replace %s: %w: %d", old.name, ErrUnknownType, int(t))
	}
	for i, have := range r.uniforms {
		if have == old {
			u := &Uniform{name: name, typ: t, mutable: true}
			_ = u.SetRaw(raw)
			r.uniforms[i] = u
			return u, nil
		}
	}
	return nil, fmt.Errorf("replace %s: %w", old.name, ErrUnknownUniform)
}

// FindName returns the first of newUniform, newUniform1, newUniform2, ...
// that no uniform uses. The scan restarts from the beginning after every
// collision.
func (r *Registry) FindName() string {
	name := DefaultName
	n := 0
	for i := 0; i < len(r.uniforms); i++ {
		if r.uniforms[i].name == name {
			n++
			name = DefaultName + strconv.Itoa(n)
			i = -1
		}
	}
	return name
}

// Lookup returns the first uniform with the given name.
func (r *Registry) Lookup(name string) (*Uniform, bool) {
	for _, u := range r.uniforms {
		if u.name == name {
			return u, true
		}
	}
	return nil, false
}

// All returns every uniform in insertion order.
func (r *Registry) All() []*Uniform {
	return append([]*Uniform(nil), r.uniforms...)
}

// Mutable returns the user uniforms in insertion order.
func (r *Registry) Mutable() []*Uniform {
	var out []*Uniform
	for _, u := range r.uniforms {
		if u.mutable {
			out = append(out, u)
		}
	}
	return out
}

// Len returns the number of uniforms, built-ins included.
func (r *Registry) Len() int {
	return len(r.uniforms)
}
