package shared_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/powsim/nodesim/shared"
)

func TestRandomBytes(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 11, 999} {
		b, err := shared.RandomBytes(n)
		require.NoError(t, err)
		require.Len(t, b, n)
	}

	a, err := shared.RandomBytes(32)
	require.NoError(t, err)
	b, err := shared.RandomBytes(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	for n := -99; n < 1; n++ {
		_, err := shared.RandomBytes(n)
		require.ErrorIs(t, err, shared.ErrRange)
	}
}

func TestRandomHex(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 2, 11, 999, 1000} {
		s, err := shared.RandomHex(n, "")
		require.NoError(t, err)
		require.Len(t, s, n)
	}

	s, err := shared.RandomHex(999, "0x")
	require.NoError(t, err)
	require.Len(t, s, 999+2)
	require.True(t, strings.HasPrefix(s, "0x"))

	a, err := shared.RandomHex(16, "")
	require.NoError(t, err)
	b, err := shared.RandomHex(16, "")
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	for n := -99; n < 1; n++ {
		_, err := shared.RandomHex(n, "0x")
		require.ErrorIs(t, err, shared.ErrRange)
	}
}

func TestHex(t *testing.T) {
	t.Parallel()
	b, err := shared.HexToBytes("DEADBEEF")
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)
	require.Equal(t, "deadbeef", shared.BytesToHex(b))
	require.Equal(t, "0xdeadbeef", shared.BytesToHex0x(b))

	b, err = shared.HexToBytes("0xdeadbee")
	require.NoError(t, err)
	require.Equal(t, []byte{0x0d, 0xea, 0xdb, 0xee}, b)

	v, err := shared.HexToInt("deadbee")
	require.NoError(t, err)
	require.Equal(t, int64(0xdeadbee), v.Int64())
	require.Equal(t, int64(0xdeadbeef), shared.BytesToInt([]byte{0xde, 0xad, 0xbe, 0xef}).Int64())

	_, err = shared.HexToBytes("xyz0")
	require.ErrorIs(t, err, shared.ErrDecode)
}

func TestHexRoundTrip(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "00", "AbCdEf", "0123456789abcdef"} {
		b, err := shared.HexToBytes(s)
		require.NoError(t, err)
		require.Equal(t, strings.ToLower(s), shared.BytesToHex(b))
	}
}

func TestIntToBytes(t *testing.T) {
	t.Parallel()
	deadBeef := big.NewInt(0xdeadbeef)

	b, err := shared.IntToBytes(deadBeef, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)

	for width := 1; width < 4; width++ {
		_, err := shared.IntToBytes(deadBeef, width)
		require.ErrorIs(t, err, shared.ErrOverflow)
	}

	for width := 4; width < 130; width++ {
		b, err := shared.IntToBytes(deadBeef, width)
		require.NoError(t, err)
		require.Len(t, b, width)
		require.Zero(t, deadBeef.Cmp(shared.BytesToInt(b)))
	}

	b, err = shared.Uint64ToBytes(7, 8)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 7}, b)

	_, err = shared.IntToBytes(big.NewInt(-1), 8)
	require.ErrorIs(t, err, shared.ErrOverflow)
}
