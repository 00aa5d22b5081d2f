package util

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-05", " 2024/03/05 ", "2024-03-05T17:30:00Z", "2024-03-05 08:15:00"} {
		got, err := ParseDate(in)
		if assert.NoError(t, err, "ParseDate(%q)", in) {
			assert.True(t, got.Equal(want), "ParseDate(%q) = %v", in, got)
		}
	}
	for _, in := range []string{"", "5", "03/05/2024", "2024-13-01"} {
		_, err := ParseDate(in)
		assert.Error(t, err, "ParseDate(%q)", in)
	}
}

func TestIsNA(t *testing.T) {
	for _, s := range []string{"", " ", ".", "NA", "na", "NaN", "null"} {
		assert.True(t, IsNA(s), "IsNA(%q)", s)
	}
	for _, s := range []string{"0", "N/A", "none"} {
		assert.False(t, IsNA(s), "IsNA(%q)", s)
	}
}

func TestParseValue(t *testing.T) {
	v, ok := ParseValue(" 3.25 ")
	assert.True(t, ok)
	assert.Equal(t, 3.25, v)

	v, ok = ParseValue("NA")
	assert.True(t, ok)
	assert.True(t, math.IsNaN(v), "NA should parse to NaN, got %v", v)

	_, ok = ParseValue("High")
	assert.False(t, ok, "text should not parse")
}

func TestMultiError(t *testing.T) {
	var m MultiError
	m.Add(nil)
	require.NoError(t, m.Err())

	m.Add(errors.New("acute: must be > 0"))
	m.Add(errors.New("format: unknown"))
	require.Error(t, m.Err())
	assert.EqualError(t, m.Err(), "acute: must be > 0; format: unknown")

	sentinel := errors.New("window")
	m.Add(fmt.Errorf("chronic: %w", sentinel))
	assert.ErrorIs(t, m.Err(), sentinel, "MultiError should unwrap to every collected error")
}
