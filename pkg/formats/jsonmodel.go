// JSON model format 3.1 parser (the three.js "JSON Model format 3" layout).
package formats

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ModelFormatVersion is the only accepted metadata.formatVersion.
const ModelFormatVersion = 3.1

// MaxModelVertices is the largest expanded vertex count uint16 indices can address.
const MaxModelVertices = 1 << 16

// JSON model format errors.
var (
	ErrUnsupportedModelVersion = errors.New("unsupported model format version")
	ErrModelIndexOutOfRange    = errors.New("model index out of range")
	ErrTruncatedModelData      = errors.New("truncated model data")
	ErrTooManyModelVertices    = errors.New("too many model vertices for 16-bit indices")
)

// ModelMetadata is the metadata block of a model document.
type ModelMetadata struct {
	FormatVersion float64 `json:"formatVersion"`
}

// ModelMaterial is a material entry. Only the diffuse map is used.
type ModelMaterial struct {
	MapDiffuse string `json:"mapDiffuse,omitempty"`
}

// ModelDocument is the raw JSON model document.
type ModelDocument struct {
	Metadata  *ModelMetadata  `json:"metadata"`
	Vertices  []float32       `json:"vertices"`
	Normals   []float32       `json:"normals"`
	Colors    []float32       `json:"colors"`
	UVs       [][]float32     `json:"uvs"`
	Faces     []int           `json:"faces"`
	Materials []ModelMaterial `json:"materials"`
}

// FaceFlags are the eight layout flags packed into a face type value.
type FaceFlags struct {
	IsQuad          bool // bit 0
	HasMaterial     bool // bit 1
	HasFaceUV       bool // bit 2
	HasVertexUV     bool // bit 3
	HasFaceNormal   bool // bit 4
	HasVertexNormal bool // bit 5
	HasFaceColor    bool // bit 6
	HasVertexColor  bool // bit 7
}

// ParseFaceFlags decodes a face type value.
func ParseFaceFlags(typ int) FaceFlags {
	bit := func(pos uint) bool { return typ&(1<<pos) != 0 }
	return FaceFlags{
		IsQuad:          bit(0),
		HasMaterial:     bit(1),
		HasFaceUV:       bit(2),
		HasVertexUV:     bit(3),
		HasFaceNormal:   bit(4),
		HasVertexNormal: bit(5),
		HasFaceColor:    bit(6),
		HasVertexColor:  bit(7),
	}
}

// VertexCount returns the number of vertices the face spans.
func (f FaceFlags) VertexCount() int {
	if f.IsQuad {
		return 4
	}
	return 3
}

// DecodedModel holds flat, GPU-ready buffers. Every face vertex is expanded
// into its own slot; nothing is shared between faces.
type DecodedModel struct {
	Vertices []float32 // 3 per vertex
	Indices  []uint16  // 3 per triangle, 6 per quad
	Colors   []float32 // 4 per vertex, nil when HasColors is false
	Normals  []float32 // 3 per vertex, nil when HasNormals is false
	UVs      []float32 // 2 per vertex per layer, layers concatenated

	HasColors  bool
	HasNormals bool
	HasUV      bool
	UVLayers   int

	TextureFile string // first material's diffuse map, only when HasUV
}

// VertexCount returns the number of expanded vertices.
func (m *DecodedModel) VertexCount() int {
	return len(m.Vertices) / 3
}

// UVLayer returns the texture coordinates of one layer.
func (m *DecodedModel) UVLayer(layer int) []float32 {
	n := 2 * m.VertexCount()
	if layer < 0 || layer >= m.UVLayers || len(m.UVs) < (layer+1)*n {
		return nil
	}
	return m.UVs[layer*n : (layer+1)*n]
}

// ParseModel parses and decodes a JSON model file.
func ParseModel(data []byte) (*DecodedModel, error) {
	var doc ModelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing model json: %w", err)
	}
	return DecodeModel(&doc)
}

// DecodeModel expands a model document into flat buffers.
func DecodeModel(doc *ModelDocument) (*DecodedModel, error) {
	if doc.Metadata == nil || doc.Metadata.FormatVersion != ModelFormatVersion {
		return nil, ErrUnsupportedModelVersion
	}

	m := &DecodedModel{
		HasNormals: len(doc.Normals) > 0,
		HasColors:  len(doc.Colors) > 0,
		HasUV:      len(doc.UVs) > 0 && len(doc.UVs[0]) > 0,
	}

	vertices, err := slicePoints3(doc.Vertices, "vertices")
	if err != nil {
		return nil, err
	}
	normals, err := slicePoints3(doc.Normals, "normals")
	if err != nil {
		return nil, err
	}
	colors, err := slicePoints4(doc.Colors)
	if err != nil {
		return nil, err
	}

	var layers [][]mgl32.Vec2
	for i, raw := range doc.UVs {
		if len(raw) == 0 {
			continue
		}
		layer, err := slicePoints2(raw, i)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	if m.HasUV {
		m.UVLayers = len(layers)
	}

	d := &faceDecoder{
		faces:    doc.Faces,
		vertices: vertices,
		normals:  normals,
		colors:   colors,
		layers:   layers,
		model:    m,
	}
	if err := d.decode(); err != nil {
		return nil, err
	}

	if m.HasUV && len(doc.Materials) > 0 {
		m.TextureFile = doc.Materials[0].MapDiffuse
	}
	return m, nil
}

func slicePoints3(raw []float32, kind string) ([]mgl32.Vec3, error) {
	if len(raw)%3 != 0 {
		return nil, fmt.Errorf("%w: %s length %d is not a multiple of 3", ErrTruncatedModelData, kind, len(raw))
	}
	points := make([]mgl32.Vec3, 0, len(raw)/3)
	for i := 0; i < len(raw); i += 3 {
		points = append(points, mgl32.Vec3{raw[i], raw[i+1], raw[i+2]})
	}
	return points, nil
}

func slicePoints4(raw []float32) ([]mgl32.Vec4, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: colors length %d is not a multiple of 4", ErrTruncatedModelData, len(raw))
	}
	points := make([]mgl32.Vec4, 0, len(raw)/4)
	for i := 0; i < len(raw); i += 4 {
		points = append(points, mgl32.Vec4{raw[i], raw[i+1], raw[i+2], raw[i+3]})
	}
	return points, nil
}

func slicePoints2(raw []float32, layer int) ([]mgl32.Vec2, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: uv layer %d length %d is not a multiple of 2", ErrTruncatedModelData, layer, len(raw))
	}
	points := make([]mgl32.Vec2, 0, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		points = append(points, mgl32.Vec2{raw[i], raw[i+1]})
	}
	return points, nil
}

// faceDecoder walks the face stream once.
type faceDecoder struct {
	faces  []int
	offset int

	vertices []mgl32.Vec3
	normals  []mgl32.Vec3
	colors   []mgl32.Vec4
	layers   [][]mgl32.Vec2

	model *DecodedModel
	total int // expanded vertices so far
}

func (d *faceDecoder) next() (int, error) {
	if d.offset >= len(d.faces) {
		return 0, fmt.Errorf("%w: face stream ends at offset %d", ErrTruncatedModelData, d.offset)
	}
	v := d.faces[d.offset]
	d.offset++
	return v, nil
}

func (d *faceDecoder) nextIndex(kind string, size int) (int, error) {
	idx, err := d.next()
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= size {
		return 0, fmt.Errorf("%w: %s index %d (have %d) at offset %d", ErrModelIndexOutOfRange, kind, idx, size, d.offset-1)
	}
	return idx, nil
}

// skip consumes n indices without looking them up.
func (d *faceDecoder) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := d.next(); err != nil {
			return err
		}
	}
	return nil
}

func (d *faceDecoder) decode() error {
	m := d.model
	if m.HasColors {
		m.Colors = []float32{}
	}
	if m.HasNormals {
		m.Normals = []float32{}
	}
	if m.HasUV {
		m.UVs = []float32{}
	}

	// UVs are gathered per layer and concatenated at the end.
	var layerUVs [][]float32
	if m.HasUV {
		layerUVs = make([][]float32, len(d.layers))
	}

	for d.offset < len(d.faces) {
		typ, _ := d.next()
		flags := ParseFaceFlags(typ)
		n := flags.VertexCount()

		if d.total+n > MaxModelVertices {
			return fmt.Errorf("%w: more than %d vertices", ErrTooManyModelVertices, MaxModelVertices)
		}

		base := uint16(d.total)
		if flags.IsQuad {
			m.Indices = append(m.Indices, base, base+1, base+2, base+2, base+3, base)
		} else {
			m.Indices = append(m.Indices, base, base+1, base+2)
		}
		d.total += n

		for i := 0; i < n; i++ {
			idx, err := d.nextIndex("vertex", len(d.vertices))
			if err != nil {
				return err
			}
			v := d.vertices[idx]
			m.Vertices = append(m.Vertices, v[0], v[1], v[2])
		}

		if flags.HasMaterial {
			if _, err := d.next(); err != nil {
				return err
			}
		}

		if err := d.decodeUVs(flags, n, layerUVs); err != nil {
			return err
		}
		if err := d.decodeNormals(flags, n); err != nil {
			return err
		}
		if err := d.decodeColors(flags, n); err != nil {
			return err
		}
	}

	for _, uvs := range layerUVs {
		m.UVs = append(m.UVs, uvs...)
	}
	return nil
}

func (d *faceDecoder) decodeUVs(flags FaceFlags, n int, layerUVs [][]float32) error {
	if !d.model.HasUV {
		count := 0
		if flags.HasFaceUV {
			count += len(d.layers)
		}
		if flags.HasVertexUV {
			count += len(d.layers) * n
		}
		return d.skip(count)
	}

	switch {
	case flags.HasFaceUV:
		for l, layer := range d.layers {
			idx, err := d.nextIndex("uv", len(layer))
			if err != nil {
				return err
			}
			uv := layer[idx]
			for i := 0; i < n; i++ {
				layerUVs[l] = append(layerUVs[l], uv[0], uv[1])
			}
		}
		// The face value wins; per-vertex indices that follow are dropped.
		if flags.HasVertexUV {
			return d.skip(len(d.layers) * n)
		}
	case flags.HasVertexUV:
		for l, layer := range d.layers {
			for i := 0; i < n; i++ {
				idx, err := d.nextIndex("uv", len(layer))
				if err != nil {
					return err
				}
				uv := layer[idx]
				layerUVs[l] = append(layerUVs[l], uv[0], uv[1])
			}
		}
	default:
		for l := range d.layers {
			for i := 0; i < n; i++ {
				layerUVs[l] = append(layerUVs[l], 0, 0)
			}
		}
	}
	return nil
}

func (d *faceDecoder) decodeNormals(flags FaceFlags, n int) error {
	m := d.model
	if !m.HasNormals {
		return d.skip(countIndices(flags.HasFaceNormal, flags.HasVertexNormal, n))
	}

	switch {
	case flags.HasFaceNormal:
		idx, err := d.nextIndex("normal", len(d.normals))
		if err != nil {
			return err
		}
		nv := d.normals[idx]
		for i := 0; i < n; i++ {
			m.Normals = append(m.Normals, nv[0], nv[1], nv[2])
		}
	case flags.HasVertexNormal:
		for i := 0; i < n; i++ {
			idx, err := d.nextIndex("normal", len(d.normals))
			if err != nil {
				return err
			}
			nv := d.normals[idx]
			m.Normals = append(m.Normals, nv[0], nv[1], nv[2])
		}
	default:
		for i := 0; i < n; i++ {
			m.Normals = append(m.Normals, 0, 0, 0)
		}
	}
	return nil
}

func (d *faceDecoder) decodeColors(flags FaceFlags, n int) error {
	m := d.model
	if !m.HasColors {
		return d.skip(countIndices(flags.HasFaceColor, flags.HasVertexColor, n))
	}

	switch {
	case flags.HasFaceColor:
		idx, err := d.nextIndex("color", len(d.colors))
		if err != nil {
			return err
		}
		c := d.colors[idx]
		for i := 0; i < n; i++ {
			m.Colors = append(m.Colors, c[0], c[1], c[2], c[3])
		}
	case flags.HasVertexColor:
		for i := 0; i < n; i++ {
			idx, err := d.nextIndex("color", len(d.colors))
			if err != nil {
				return err
			}
			c := d.colors[idx]
			m.Colors = append(m.Colors, c[0], c[1], c[2], c[3])
		}
	default:
		for i := 0; i < n; i++ {
			m.Colors = append(m.Colors, 1, 1, 1, 1)
		}
	}
	return nil
}

// countIndices returns how many stream entries a face/vertex attribute pair occupies.
func countIndices(perFace, perVertex bool, n int) int {
	switch {
	case perFace:
		return 1
	case perVertex:
		return n
	}
	return 0
}
