package shared

import (
	"fmt"
	"math/big"
)

// IntToBytes encodes v as a big-endian unsigned integer.
// A zero width selects the minimal encoding. A width larger than the minimal
// encoding is left-padded with zeros; a smaller one fails with ErrOverflow.
func IntToBytes(v *big.Int, width int) ([]byte, error) {
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s", ErrOverflow, v)
	}
	minimal := v.Bytes()
	if width == 0 {
		return minimal, nil
	}
	if width < len(minimal) {
		return nil, fmt.Errorf("%w: %d bytes required, %d requested", ErrOverflow, len(minimal), width)
	}
	out := make([]byte, width)
	v.FillBytes(out)
	return out, nil
}

// Uint64ToBytes is IntToBytes for uint64 values.
func Uint64ToBytes(v uint64, width int) ([]byte, error) {
	return IntToBytes(new(big.Int).SetUint64(v), width)
}
