package encoding

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Width is the fixed width of an encoded big integer. 79 decimal digits
// are enough to hold any unsigned 256-bit value (max is 78 digits).
const Width = 79

// ErrEncodeOverflow is returned when a value cannot be represented in the
// fixed-width text encoding (negative, or wider than Width digits).
var ErrEncodeOverflow = errors.New("value out of range for fixed-width text encoding")

// EncodeBig encodes a non-negative big integer as its decimal representation,
// left-padded with '0' to Width characters. Lexicographic order of encoded
// values equals numeric order, which makes the encoding safe to use in
// string-typed, index-ordered database columns.
func EncodeBig(n *big.Int) (string, error) {
	if n == nil {
		return "", fmt.Errorf("%w: nil value", ErrEncodeOverflow)
	}
	if n.Sign() < 0 {
		return "", fmt.Errorf("%w: negative value %s", ErrEncodeOverflow, n.String())
	}

	s := n.String()
	if len(s) > Width {
		return "", fmt.Errorf("%w: %s has %d digits, max %d", ErrEncodeOverflow, s, len(s), Width)
	}

	return strings.Repeat("0", Width-len(s)) + s, nil
}

// DecodeBig strips the zero padding and parses the decimal value back
// into a big integer.
func DecodeBig(s string) (*big.Int, error) {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return big.NewInt(0), nil
	}

	n, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid encoded value %q", s)
	}

	return n, nil
}

// EncodeUint64 encodes a uint64 using the same fixed-width convention.
// A uint64 always fits, so no error is possible.
func EncodeUint64(n uint64) string {
	s := strconv.FormatUint(n, 10)
	return strings.Repeat("0", Width-len(s)) + s
}

// DecodeUint64 parses an encoded value that is known to fit in a uint64,
// such as a block number.
func DecodeUint64(s string) (uint64, error) {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}

	return strconv.ParseUint(trimmed, 10, 64)
}
