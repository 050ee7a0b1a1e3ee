// Package keys reads and writes the file holding the node identities.
//
// The file has one `<public-hex> <private-hex>` record per line.
package keys

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/natefinch/atomic"

	"github.com/powsim/nodesim/identity"
	"github.com/powsim/nodesim/shared"
)

var (
	ErrKeysFileMissing = errors.New("keys file not found, run keygen first")
	ErrNotEnoughKeys   = errors.New("not enough keys")
)

// Load reads all key pairs from path. Every malformed line is reported.
func Load(path string) ([]*identity.KeyPair, error) {
	f, err := os.Open(path) //#nosec G304
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrKeysFileMissing, path)
	case err != nil:
		return nil, fmt.Errorf("opening keys file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads key pairs from r.
func Parse(r io.Reader) ([]*identity.KeyPair, error) {
	var (
		keys   []*identity.KeyPair
		result *multierror.Error
	)
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		record := strings.TrimSpace(scanner.Text())
		if record == "" {
			continue
		}
		fields := strings.Fields(record)
		if len(fields) != 2 {
			result = multierror.Append(result, fmt.Errorf("line %d: expected 2 fields, got %d", line, len(fields)))
			continue
		}
		key, err := identity.FromPair(fields[0], fields[1])
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		result = multierror.Append(result, fmt.Errorf("reading keys: %w", err))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Generate creates n fresh key pairs.
func Generate(n int) ([]*identity.KeyPair, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: cannot generate %d keys", shared.ErrRange, n)
	}
	keys := make([]*identity.KeyPair, 0, n)
	for i := 0; i < n; i++ {
		key, err := identity.Generate()
		if err != nil {
			return nil, fmt.Errorf("generating key %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Save atomically replaces the file at path with keys.
func Save(path string, keys []*identity.KeyPair) error {
	var buf bytes.Buffer
	for _, key := range keys {
		if !key.CanSign() {
			return fmt.Errorf("saving %s: %w", key.Address(), identity.ErrNoPrivateKey)
		}
		fmt.Fprintf(&buf, "%s %s\n", key.PublicHex(), key.PrivateHex())
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing keys file: %w", err)
	}
	if err := os.Chmod(path, shared.OwnerReadWrite); err != nil {
		return fmt.Errorf("restricting keys file: %w", err)
	}
	return nil
}

// Sample picks n distinct keys at random.
func Sample(keys []*identity.KeyPair, n int, rnd *rand.Rand) ([]*identity.KeyPair, error) {
	if n > len(keys) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughKeys, n, len(keys))
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: cannot sample %d keys", shared.ErrRange, n)
	}
	picked := make([]*identity.KeyPair, 0, n)
	for _, i := range rnd.Perm(len(keys))[:n] {
		picked = append(picked, keys[i])
	}
	return picked, nil
}
