package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionValueAccessors(t *testing.T) {
	s := StringValue("gpt-4")
	str, ok := s.String()
	require.True(t, ok)
	require.Equal(t, "gpt-4", str)
	require.True(t, s.IsString())
	require.False(t, s.IsNumber())

	n := NumberValue(0.7)
	num, ok := n.Number()
	require.True(t, ok)
	require.Equal(t, 0.7, num)

	b := BoolValue(true)
	flag, ok := b.Bool()
	require.True(t, ok)
	require.True(t, flag)

	m := MapValue(map[string]OptionValue{"nested": StringValue("x")})
	nested, ok := m.Map()
	require.True(t, ok)
	require.Equal(t, "x", nested["nested"].Raw())
}

func TestOptionValueWrongAccessorReturnsFalse(t *testing.T) {
	s := StringValue("x")
	_, ok := s.Number()
	require.False(t, ok)
	_, ok = s.Bool()
	require.False(t, ok)
	_, ok = s.Map()
	require.False(t, ok)
}

func TestOptionValueMarshalJSON(t *testing.T) {
	s := StringValue("hello")
	b, err := s.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"hello"`, string(b))

	n := NumberValue(42)
	b, err = n.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, "42", string(b))
}
