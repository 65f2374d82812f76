package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArguments_String(t *testing.T) {
	args := Arguments{"host": "example.com", "null": nil, "number": 3}

	value, ok, err := args.String("host")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "example.com", value)

	_, ok, err = args.String("null")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = args.String("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = args.String("number")
	assert.Error(t, err)
}

func TestArguments_Bytes(t *testing.T) {
	args := Arguments{
		"raw":     []byte{1, 2},
		"encoded": "AQID",
		"empty":   "",
		"broken":  "not base64!",
		"wrong":   42,
	}

	value, ok, err := args.Bytes("raw")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, value)

	value, ok, err = args.Bytes("encoded")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, value)

	_, ok, err = args.Bytes("empty")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = args.Bytes("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = args.Bytes("broken")
	assert.Error(t, err)
	_, _, err = args.Bytes("wrong")
	assert.Error(t, err)
}

func TestArguments_Int(t *testing.T) {
	var decoded Arguments
	require.NoError(t, json.Unmarshal([]byte(`{"rate":44100,"half":1.5,"text":"x"}`), &decoded))

	n, err := decoded.Int("rate", 0)
	require.NoError(t, err)
	assert.Equal(t, 44100, n)

	n, err = decoded.Int("missing", 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, n)

	_, err = decoded.Int("half", 0)
	assert.Error(t, err)
	_, err = decoded.Int("text", 0)
	assert.Error(t, err)

	n, err = Arguments{"n": json.Number("7")}.Int("n", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
