package keys_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/powsim/nodesim/identity"
	"github.com/powsim/nodesim/keys"
	"github.com/powsim/nodesim/shared"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.keys")
	generated, err := keys.Generate(4)
	require.NoError(t, err)
	require.NoError(t, keys.Save(path, generated))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(shared.OwnerReadWrite), info.Mode().Perm())

	loaded, err := keys.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	for i := range generated {
		require.True(t, generated[i].Equal(loaded[i]))
		require.True(t, loaded[i].CanSign())
	}
}

func TestSaveReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.keys")
	first, err := keys.Generate(3)
	require.NoError(t, err)
	require.NoError(t, keys.Save(path, first))
	second, err := keys.Generate(1)
	require.NoError(t, err)
	require.NoError(t, keys.Save(path, second))

	loaded, err := keys.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.True(t, second[0].Equal(loaded[0]))
}

func TestSaveRejectsPublicOnly(t *testing.T) {
	key, err := identity.Generate()
	require.NoError(t, err)
	pub, err := identity.FromPublicBytes(key.PublicKey())
	require.NoError(t, err)

	err = keys.Save(filepath.Join(t.TempDir(), "nodes.keys"), []*identity.KeyPair{pub})
	require.ErrorIs(t, err, identity.ErrNoPrivateKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := keys.Load(filepath.Join(t.TempDir(), "missing.keys"))
	require.ErrorIs(t, err, keys.ErrKeysFileMissing)
}

func TestParseReportsEveryBadLine(t *testing.T) {
	good, err := identity.Generate()
	require.NoError(t, err)
	other, err := identity.Generate()
	require.NoError(t, err)

	input := strings.Join([]string{
		good.PublicHex() + " " + good.PrivateHex(),
		"",
		"lonely-field",
		good.PublicHex() + " " + other.PrivateHex(),
		"   ",
	}, "\n")
	_, err = keys.Parse(strings.NewReader(input))
	require.Error(t, err)
	require.ErrorContains(t, err, "line 3")
	require.ErrorContains(t, err, "line 4")
	require.ErrorIs(t, err, identity.ErrInvariantViolation)
}

func TestParseSkipsBlankLines(t *testing.T) {
	key, err := identity.Generate()
	require.NoError(t, err)
	loaded, err := keys.Parse(strings.NewReader("\n" + key.PublicHex() + "  " + key.PrivateHex() + "\n\n"))
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func TestGenerateRange(t *testing.T) {
	_, err := keys.Generate(0)
	require.ErrorIs(t, err, shared.ErrRange)
}

func TestSample(t *testing.T) {
	all, err := keys.Generate(5)
	require.NoError(t, err)
	rnd := rand.New(rand.NewSource(1))

	picked, err := keys.Sample(all, 3, rnd)
	require.NoError(t, err)
	require.Len(t, picked, 3)
	seen := make(map[string]struct{})
	for _, k := range picked {
		seen[k.Address()] = struct{}{}
	}
	require.Len(t, seen, 3)

	_, err = keys.Sample(all, 6, rnd)
	require.ErrorIs(t, err, keys.ErrNotEnoughKeys)
}
