package encoding

import (
	"math/big"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeBig_Roundtrip(t *testing.T) {
	t.Parallel()

	values := []string{
		"0",
		"1",
		"255",
		"18446744073709551615",
		"115792089237316195423570985008687907853269984665640564039457584007913129639935", // 2^256-1
	}

	for _, v := range values {
		n, ok := new(big.Int).SetString(v, 10)
		require.True(t, ok)

		encoded, err := EncodeBig(n)
		require.NoError(t, err)
		require.Len(t, encoded, Width)

		decoded, err := DecodeBig(encoded)
		require.NoError(t, err)
		require.Equal(t, 0, n.Cmp(decoded))
	}
}

func TestEncodeBig_LexicographicOrder(t *testing.T) {
	t.Parallel()

	numeric := []uint64{0, 1, 9, 10, 99, 100, 1000000, 18446744073709551615}

	encoded := make([]string, len(numeric))
	for i, n := range numeric {
		encoded[i] = EncodeUint64(n)
	}

	// Numeric order must survive a lexicographic sort
	shuffled := append([]string{}, encoded...)
	sort.Sort(sort.Reverse(sort.StringSlice(shuffled)))
	sort.Strings(shuffled)
	require.Equal(t, encoded, shuffled)
}

func TestEncodeBig_Overflow(t *testing.T) {
	t.Parallel()

	_, err := EncodeBig(big.NewInt(-1))
	require.ErrorIs(t, err, ErrEncodeOverflow)

	tooBig := new(big.Int).Exp(big.NewInt(10), big.NewInt(Width), nil) // 10^Width
	_, err = EncodeBig(tooBig)
	require.ErrorIs(t, err, ErrEncodeOverflow)

	_, err = EncodeBig(nil)
	require.ErrorIs(t, err, ErrEncodeOverflow)
}

func TestDecodeUint64(t *testing.T) {
	t.Parallel()

	for _, n := range []uint64{0, 1, 42, 18446744073709551615} {
		decoded, err := DecodeUint64(EncodeUint64(n))
		require.NoError(t, err)
		require.Equal(t, n, decoded)
	}
}
