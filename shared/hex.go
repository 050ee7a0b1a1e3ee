package shared

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// OwnerReadWrite is the file mode for files holding key material.
const OwnerReadWrite = 0o600

// HexToBytes decodes a hex string. The "0x" prefix is optional and the input is
// case-insensitive. An odd-length string is read as if it had a leading zero nibble.
func HexToBytes(s string) ([]byte, error) {
	s = Strip0x(s)
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return b, nil
}

// BytesToHex encodes b as lowercase hex without prefix.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// BytesToHex0x encodes b as lowercase hex prefixed with "0x".
func BytesToHex0x(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// Strip0x removes a leading "0x" or "0X".
func Strip0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// BytesToInt interprets b as a big-endian unsigned integer.
func BytesToInt(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// HexToInt decodes a hex string into a big-endian unsigned integer.
func HexToInt(s string) (*big.Int, error) {
	b, err := HexToBytes(s)
	if err != nil {
		return nil, err
	}
	return BytesToInt(b), nil
}
