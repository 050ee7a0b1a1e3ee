package identity

import (
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/minio/sha256-simd"
)

// SignatureSize is the size of a serialized signature: r || s.
const SignatureSize = 64

// schnorrSign signs msg with the EC-Schnorr scheme:
//
//	Q = k*G
//	r = H(Q || P || msg) mod n
//	s = k - r*d mod n
//
// where H is SHA-256 and points are compressed.
func schnorrSign(priv *btcec.PrivateKey, pub *btcec.PublicKey, msg []byte) ([]byte, error) {
	pubBytes := pub.SerializeCompressed()
	for {
		k, err := randomScalar()
		if err != nil {
			return nil, err
		}

		var q btcec.JacobianPoint
		btcec.ScalarBaseMultNonConst(k, &q)
		q.ToAffine()

		r := challenge(btcec.NewPublicKey(&q.X, &q.Y).SerializeCompressed(), pubBytes, msg)
		if r.IsZero() {
			continue
		}

		var s btcec.ModNScalar
		s.Mul2(r, &priv.Key).Negate().Add(k)
		k.Zero()
		if s.IsZero() {
			continue
		}

		sig := make([]byte, SignatureSize)
		r.PutBytesUnchecked(sig[:32])
		s.PutBytesUnchecked(sig[32:])
		return sig, nil
	}
}

func schnorrVerify(pub *btcec.PublicKey, sig, msg []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow || r.IsZero() {
		return false
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow || s.IsZero() {
		return false
	}

	// Q = s*G + r*P
	var p, sG, rP, q btcec.JacobianPoint
	pub.AsJacobian(&p)
	btcec.ScalarBaseMultNonConst(&s, &sG)
	btcec.ScalarMultNonConst(&r, &p, &rP)
	btcec.AddNonConst(&sG, &rP, &q)
	if (q.X.IsZero() && q.Y.IsZero()) || q.Z.IsZero() {
		return false
	}
	q.ToAffine()

	expected := challenge(btcec.NewPublicKey(&q.X, &q.Y).SerializeCompressed(), pub.SerializeCompressed(), msg)
	return expected.Equals(&r)
}

func challenge(q, pub, msg []byte) *btcec.ModNScalar {
	h := sha256.New()
	h.Write(q)
	h.Write(pub)
	h.Write(msg)

	var r btcec.ModNScalar
	r.SetByteSlice(h.Sum(nil))
	return &r
}

func randomScalar() (*btcec.ModNScalar, error) {
	var buf [32]byte
	var k btcec.ModNScalar
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, fmt.Errorf("reading nonce entropy: %w", err)
		}
		if overflow := k.SetBytes(&buf); overflow == 0 && !k.IsZero() {
			return &k, nil
		}
	}
}
