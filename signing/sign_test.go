package signing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/powsim/nodesim/difficulty"
	"github.com/powsim/nodesim/identity"
	"github.com/powsim/nodesim/shared"
	"github.com/powsim/nodesim/signing"
)

func newWorkRequest(t *testing.T, key *identity.KeyPair) signing.WorkRequest {
	t.Helper()
	header, err := shared.RandomBytes(signing.HeaderSize)
	require.NoError(t, err)

	var req signing.WorkRequest
	copy(req.PubKey[:], key.PublicKey())
	copy(req.Header[:], header)
	copy(req.Boundary[:], difficulty.ToBoundary(10))
	req.BlockNum = 42
	req.Timeout = 120
	return req
}

func TestWorkRequestParams(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	key, err := identity.Generate()
	require.NoError(err)

	req := newWorkRequest(t, key)
	signed, err := signing.Sign(req, key)
	require.NoError(err)
	require.Equal(req, *signed.Data())

	params := signed.Params()
	require.Len(params, 6)
	widths := []int{33, 32, 8, 32, 4, 64}
	for i, p := range params {
		require.True(strings.HasPrefix(p, "0x"), p)
		require.Len(p, 2+2*widths[i])
	}
	require.Len(shared.Strip0x(params[5]), 128)
	require.Equal("0x000000000000002a", params[2])
	require.Equal("0x00000078", params[4])
	require.Equal(shared.BytesToHex0x(key.PublicKey()), params[0])
}

func TestSignatureCoversFieldConcatenation(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	key, err := identity.Generate()
	require.NoError(err)

	req := newWorkRequest(t, key)
	signed, err := signing.Sign(req, key)
	require.NoError(err)

	params := signed.Params()
	var payload []byte
	for _, p := range params[:len(params)-1] {
		b, err := shared.HexToBytes(p)
		require.NoError(err)
		payload = append(payload, b...)
	}
	require.Len(payload, 33+32*2+8+4)
	require.True(key.Verify(signed.Signature(), payload))
}

func TestNewFromParams(t *testing.T) {
	t.Parallel()
	key, err := identity.Generate()
	require.NoError(t, err)
	header, err := shared.RandomBytes(signing.HeaderSize)
	require.NoError(t, err)

	t.Run("work request", func(t *testing.T) {
		t.Parallel()
		req := newWorkRequest(t, key)
		signed, err := signing.Sign(req, key)
		require.NoError(t, err)

		decoded, err := signing.NewFromParams[signing.WorkRequest](signed.Params())
		require.NoError(t, err)
		require.Equal(t, req, *decoded.Data())
	})
	t.Run("status request", func(t *testing.T) {
		t.Parallel()
		var req signing.StatusRequest
		copy(req.PubKey[:], key.PublicKey())
		copy(req.Header[:], header)
		copy(req.Boundary[:], difficulty.ToBoundary(20))

		signed, err := signing.Sign(req, key)
		require.NoError(t, err)
		params := signed.Params()
		require.Len(t, params, 4)

		decoded, err := signing.NewFromParams[signing.StatusRequest](params)
		require.NoError(t, err)
		require.Equal(t, req, *decoded.Data())
	})
	t.Run("verify request", func(t *testing.T) {
		t.Parallel()
		req := signing.VerifyRequest{Verified: true}
		copy(req.PubKey[:], key.PublicKey())
		copy(req.Header[:], header)
		copy(req.Boundary[:], difficulty.ToBoundary(20))

		signed, err := signing.Sign(req, key)
		require.NoError(t, err)
		params := signed.Params()
		require.Len(t, params, 5)
		require.Equal(t, "0x01", params[1])

		decoded, err := signing.NewFromParams[signing.VerifyRequest](params)
		require.NoError(t, err)
		require.True(t, decoded.Data().Verified)
	})
}

func TestNewFromParamsRejectsTampering(t *testing.T) {
	t.Parallel()
	key, err := identity.Generate()
	require.NoError(t, err)

	req := newWorkRequest(t, key)
	signed, err := signing.Sign(req, key)
	require.NoError(t, err)

	params := signed.Params()
	params[2] = "0x000000000000002b"
	_, err = signing.NewFromParams[signing.WorkRequest](params)
	require.ErrorIs(t, err, signing.ErrSignatureInvalid)

	params = signed.Params()
	params[3] = params[3][:len(params[3])-2]
	_, err = signing.NewFromParams[signing.WorkRequest](params)
	require.ErrorIs(t, err, signing.ErrInvalidParams)

	_, err = signing.NewFromParams[signing.WorkRequest](signed.Params()[:3])
	require.ErrorIs(t, err, signing.ErrInvalidParams)
}

func TestSignWithVerifyOnlyKey(t *testing.T) {
	t.Parallel()
	key, err := identity.Generate()
	require.NoError(t, err)
	verifier, err := identity.FromPublic(key.PublicHex())
	require.NoError(t, err)

	_, err = signing.Sign(newWorkRequest(t, key), verifier)
	require.ErrorIs(t, err, signing.ErrSigningFailed)
}
