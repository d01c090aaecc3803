package price

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntegers(t *testing.T) {
	v, err := Parse("100")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000_000), v)

	v, err = Parse("1")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), v)

	v, err = Parse("0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestParseDecimals(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"100.5", 10_050_000_000},
		{"0.00001234", 1_234},
		{"12345.6789", 1_234_567_890_000},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseRounding(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0.000000004", 0},
		{"0.123456784", 12_345_678},
		{"0.000000005", 1},
		{"0.123456785", 12_345_679},
		{"0.000000009", 1},
		{"0.123456789", 12_345_679},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseEdgeCases(t *testing.T) {
	v, err := Parse("42")
	require.NoError(t, err)
	assert.Equal(t, int64(4_200_000_000), v)

	v, err = Parse("100.00000000")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000_000), v)

	v, err = Parse("0.00000001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = Parse("0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), v)

	// Whitespace is trimmed.
	v, err = Parse("  100.5  ")
	require.NoError(t, err)
	assert.Equal(t, int64(10_050_000_000), v)
}

func TestParseRealCryptoPrices(t *testing.T) {
	v, err := Parse("43567.89")
	require.NoError(t, err)
	assert.Equal(t, int64(4_356_789_000_000), v)

	v, err = Parse("2345.67")
	require.NoError(t, err)
	assert.Equal(t, int64(234_567_000_000), v)

	v, err = Parse("0.00012345")
	require.NoError(t, err)
	assert.Equal(t, int64(12_345), v)
}

func TestParseLargeNumbers(t *testing.T) {
	v, err := Parse("999999.99999999")
	require.NoError(t, err)
	assert.Equal(t, int64(99_999_999_999_999), v)
}

func TestParseIgnoresTrailingGarbageAfterNinthFractionalDigit(t *testing.T) {
	v, err := Parse("1.0000000009abc")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), v)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse("   ")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse("abc")
	assert.ErrorIs(t, err, ErrInvalidDigit)

	_, err = Parse("12a")
	assert.ErrorIs(t, err, ErrInvalidDigit)

	_, err = Parse("1.2.3")
	assert.ErrorIs(t, err, ErrMultipleDecimalPoints)

	_, err = Parse("12.34.56")
	assert.ErrorIs(t, err, ErrMultipleDecimalPoints)
}

func TestParseOverflow(t *testing.T) {
	_, err := Parse("99999999999999999999999999")
	assert.ErrorIs(t, err, ErrOverflow)
}
