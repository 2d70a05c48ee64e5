package digit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBytesRoundTrip(t *testing.T) {
	samples := [][]byte{
		nil,
		{0},
		{255},
		[]byte("Kolibri"),
		[]byte("привет"),
		{0, 1, 2, 127, 128, 254, 255},
	}
	for _, in := range samples {
		digits := EncodeBytes(in)
		require.Len(t, digits, len(in)*3)
		out, err := DecodeBytes(digits)
		require.NoError(t, err)
		assert.Equal(t, append([]byte{}, in...), out)
	}
}

func TestEncodeTextIsDigitsOnly(t *testing.T) {
	enc := EncodeText("Kolibri")
	require.Len(t, enc, 21)
	for i := 0; i < len(enc); i++ {
		assert.True(t, enc[i] >= '0' && enc[i] <= '9')
	}
	dec, err := DecodeText(enc)
	require.NoError(t, err)
	assert.Equal(t, "Kolibri", dec)
}

func TestDecodeTextRejectsMalformed(t *testing.T) {
	_, err := DecodeText("12")
	assert.ErrorIs(t, err, ErrBadLength)

	_, err = DecodeText("12a")
	assert.ErrorIs(t, err, ErrBadDigit)

	// 999 would decode to byte value 999
	_, err = DecodeText("999")
	assert.Error(t, err)
}

func TestInt64RoundTrip(t *testing.T) {
	values := []int64{
		0, 1, -1, 7, -42, 1000, -1000,
		math.MaxInt64, math.MinInt64, math.MinInt64 + 1, math.MaxInt64 - 1,
	}
	for _, v := range values {
		digits := EncodeInt64(v)
		got, err := DecodeInt64(digits)
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
	}
}

func TestDecodeInt64Malformed(t *testing.T) {
	_, err := DecodeInt64([]uint8{0, 0})
	assert.Error(t, err)

	// length digit says 5 but only 1 magnitude digit present
	_, err = DecodeInt64([]uint8{0, 0, 5, 1})
	assert.Error(t, err)

	// sign digit out of range
	_, err = DecodeInt64([]uint8{3, 0, 1, 1})
	assert.Error(t, err)
}

func TestStreamBounds(t *testing.T) {
	s := NewStream(3)
	require.NoError(t, s.Push(1))
	require.NoError(t, s.Push(2))
	require.NoError(t, s.Push(3))
	assert.ErrorIs(t, s.Push(4), ErrStreamFull)
	assert.ErrorIs(t, s.Push(10), ErrBadDigit)

	assert.Equal(t, 3, s.Remaining())
	d, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, uint8(1), d)
	assert.Equal(t, 2, s.Remaining())

	s.Rewind()
	assert.Equal(t, 3, s.Remaining())

	s.Reset()
	assert.Equal(t, 0, s.Len())
	_, ok = s.Read()
	assert.False(t, ok)
}
