package shared

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// RandomBytes returns n bytes read from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrRange, n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("reading entropy: %w", err)
	}
	return b, nil
}

// RandomHex returns n random lowercase hex characters, prepended by prefix.
func RandomHex(n int, prefix string) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("%w: %d", ErrRange, n)
	}
	b, err := RandomBytes((n + 1) / 2)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(len(prefix) + n)
	sb.WriteString(prefix)
	sb.WriteString(BytesToHex(b)[:n])
	return sb.String(), nil
}
