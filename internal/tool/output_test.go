package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutput(t *testing.T) {
	output := []byte(`noise{probe delimiter}{"environ": {"MYENV": "hello"}}`)

	result, err := ParseOutput(output)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"MYENV": "hello"}, result.Environ)
}

func TestParseOutputMultilineNoise(t *testing.T) {
	output := []byte("T: connecting\nT: proxy up\n{probe delimiter}{\"environ\": {\"A\": \"1\", \"B\": \"2\"}}")

	result, err := ParseOutput(output)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, result.Environ)
}

func TestParseOutputMissingDelimiter(t *testing.T) {
	_, err := ParseOutput([]byte(`{"environ": {}}`))
	require.Error(t, err)

	parseErr := &ParseError{}
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Error(), "missing delimiter")
	assert.Contains(t, parseErr.Error(), `{"environ": {}}`, "raw output must be carried for diagnosis")
}

func TestParseOutputInvalidJSON(t *testing.T) {
	_, err := ParseOutput([]byte(`noise{probe delimiter}not json at all`))
	require.Error(t, err)

	parseErr := &ParseError{}
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Error(), "invalid JSON")
	assert.Contains(t, parseErr.Error(), "not json at all")
}
