package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelIndex_KeepsFileOrder(t *testing.T) {
	data := []byte(`{
		"models": {
			"Teapot": "teapot.json",
			"Cube": "cube/cube.json",
			"Android": "android.json"
		}
	}`)

	idx, err := ParseModelIndex(data)
	require.NoError(t, err)
	assert.Equal(t, []ModelIndexEntry{
		{Name: "Teapot", Path: "teapot.json"},
		{Name: "Cube", Path: "cube/cube.json"},
		{Name: "Android", Path: "android.json"},
	}, idx.Entries)

	e, ok := idx.Find("Cube")
	assert.True(t, ok)
	assert.Equal(t, "cube/cube.json", e.Path)
	_, ok = idx.Find("Missing")
	assert.False(t, ok)
}

func TestParseModelIndex_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no models", `{"other": {}}`},
		{"null models", `{"models": null}`},
		{"models not object", `{"models": ["a.json"]}`},
		{"path not string", `{"models": {"A": 3}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModelIndex([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidModelIndex)
		})
	}

	_, err := ParseModelIndex([]byte("not json"))
	assert.Error(t, err)
}
