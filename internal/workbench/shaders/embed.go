// Package shaders provides the embedded workspace defaults written out when a
// workspace file does not exist yet.
package shaders

import _ "embed"

// VertexShader is the default vertex shader.
//
//go:embed default.vert
var VertexShader string

// FragmentShader is the default fragment shader.
//
//go:embed default.frag
var FragmentShader string

// UniformSheet is the default uniform sheet.
//
//go:embed uniforms.yaml
var UniformSheet string
