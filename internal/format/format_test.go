package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToAuto(t *testing.T) {
	f, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, f)
}

func TestParseRejectsUnknown(t *testing.T) {
	_, err := Parse("yaml")
	assert.Error(t, err)
}

func TestJSONRendererProducesValidJSON(t *testing.T) {
	r := NewJSONRenderer()
	out, err := r.Render(map[string]string{"key": "value"})
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "value"`)
	assert.Equal(t, "application/json", r.ContentType())
}

func TestTOONRendererPrimitives(t *testing.T) {
	r := NewTOONRenderer()

	out, err := r.Render(42)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = r.Render("hello world")
	require.NoError(t, err)
	assert.Equal(t, "\"hello world\"\n", out)

	out, err = r.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)
}

func TestTOONRendererEmptyArray(t *testing.T) {
	out, err := NewTOONRenderer().Render([]string{})
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestTOONRendererPrimitiveArrayInline(t *testing.T) {
	out, err := NewTOONRenderer().Render([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Contains(t, out, "[3]:")
}

func TestTOONRendererObjectArrayIsTabular(t *testing.T) {
	payload := []map[string]any{
		{"id": 1, "name": "Alice"},
		{"id": 2, "name": "Bob"},
	}
	out, err := NewTOONRenderer().Render(payload)
	require.NoError(t, err)
	assert.Contains(t, out, "[2]{id,name}:")
}

func TestTOONRendererDeterministicFieldOrder(t *testing.T) {
	r := NewTOONRenderer()
	payload := map[string]int{"zebra": 1, "apple": 2, "banana": 3}
	first, err := r.Render(payload)
	require.NoError(t, err)
	second, err := r.Render(payload)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.Index(first, "apple") < strings.Index(first, "zebra"))
}

func TestRenderFallsBackToJSONForAutoAndUnknown(t *testing.T) {
	payload := map[string]string{"message": "hello"}

	out, err := Render(payload, FormatAuto)
	require.NoError(t, err)
	assert.Contains(t, out, `"message"`)

	out, err = Render(payload, OutputFormat("unknown"))
	require.NoError(t, err)
	assert.Contains(t, out, `"message"`)
}

func TestGetContentType(t *testing.T) {
	assert.Equal(t, "application/json", GetContentType(FormatJSON))
	assert.Equal(t, "text/x-toon", GetContentType(FormatTOON))
	assert.Equal(t, "application/json", GetContentType(FormatAuto))
}
