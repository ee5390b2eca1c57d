package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embedPayload struct {
	Model string    `json:"model"`
	Input []string  `json:"input"`
	Score []float32 `json:"score,omitempty"`
}

func TestMarshal_OmitEmpty(t *testing.T) {
	data, err := Marshal(embedPayload{Model: "m", Input: []string{"a"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"m","input":["a"]}`, string(data))
}

func TestDecoder_Stream(t *testing.T) {
	var got embedPayload
	err := NewDecoder(bytes.NewBufferString(`{"model":"x","input":["q","r"],"score":[0.5]}`)).Decode(&got)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Model)
	assert.Equal(t, []string{"q", "r"}, got.Input)
	assert.InDelta(t, 0.5, got.Score[0], 1e-6)
}

// TestMarshalIndent 测试运行结果输出格式。
func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]int{"clusters": 3}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"clusters\": 3\n}", string(data))
}

func TestEncoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(embedPayload{Model: "m", Input: []string{"x"}}))

	var got embedPayload
	require.NoError(t, Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "m", got.Model)
}
