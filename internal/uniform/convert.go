package uniform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrConversion is wrapped by every ConversionError.
var ErrConversion = errors.New("uniform conversion failed")

// Value is a GPU-ready uniform value: one float, a vector, or a column-major
// matrix.
type Value []float32

// ConversionError reports a raw value that does not fit its uniform type.
type ConversionError struct {
	Type   Type
	Raw    any
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %v to %s: %s", e.Raw, e.Type, e.Reason)
}

func (e *ConversionError) Unwrap() error {
	return ErrConversion
}

var rawStripper = strings.NewReplacer("[", "", "]", "", `"`, "", "'", "")

// splitRaw strips brackets and quotes and splits on commas and whitespace.
func splitRaw(s string) []string {
	return strings.FieldsFunc(rawStripper.Replace(s), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// ToPassableValue converts a raw value into the float slice uploaded to the
// GPU. raw may be a string as typed by the user or any numeric form found in
// config and session files.
func ToPassableValue(raw any, t Type) (Value, error) {
	if !t.Valid() {
		return nil, &ConversionError{Type: t, Raw: raw, Reason: "unknown type"}
	}

	comps, err := components(raw)
	if err != nil {
		return nil, &ConversionError{Type: t, Raw: raw, Reason: err.Error()}
	}
	if len(comps) != t.Components() {
		return nil, &ConversionError{
			Type:   t,
			Raw:    raw,
			Reason: fmt.Sprintf("want %d components, got %d", t.Components(), len(comps)),
		}
	}
	return comps, nil
}

func components(raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		return parseFields(splitRaw(v))
	case Value:
		return append(Value(nil), v...), nil
	case []float32:
		return append(Value(nil), v...), nil
	case []float64:
		out := make(Value, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case []int:
		out := make(Value, len(v))
		for i, n := range v {
			out[i] = float32(n)
		}
		return out, nil
	case []string:
		return parseFields(v)
	case []any:
		out := make(Value, len(v))
		for i, e := range v {
			c, err := components(e)
			if err != nil {
				return nil, err
			}
			if len(c) != 1 {
				return nil, fmt.Errorf("component %d is not a scalar", i)
			}
			out[i] = c[0]
		}
		return out, nil
	case float32:
		return Value{v}, nil
	case float64:
		return Value{float32(v)}, nil
	case int:
		return Value{float32(v)}, nil
	case int64:
		return Value{float32(v)}, nil
	case nil:
		return nil, errors.New("no value")
	}
	return nil, fmt.Errorf("unsupported value type %T", raw)
}

func parseFields(fields []string) (Value, error) {
	out := make(Value, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("bad component %q", f)
		}
		out = append(out, float32(n))
	}
	return out, nil
}

// ToDisplayValue converts raw like ToPassableValue and formats every
// component with two decimals.
func ToDisplayValue(raw any, t Type) ([]string, error) {
	v, err := ToPassableValue(raw, t)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(v))
	for i, f := range v {
		out[i] = strconv.FormatFloat(float64(f), 'f', 2, 32)
	}
	return out, nil
}

// ToReadable renders a value for display: vectors one component per line,
// matrices one row per line with components separated by two spaces.
// Components are printed at full precision so the text parses back to v.
func ToReadable(v Value, t Type) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return layout(parts, t)
}

func layout(parts []string, t Type) string {
	if t == Float {
		if len(parts) == 0 {
			return ""
		}
		return parts[0]
	}
	if !t.IsMatrix() {
		return strings.Join(parts, "\n")
	}

	n := t.Dim()
	var sb strings.Builder
	for row := 0; row+n <= len(parts); row += n {
		sb.WriteString(strings.Join(parts[row:row+n], "  "))
		sb.WriteByte('\n')
	}
	return sb.String()
}
