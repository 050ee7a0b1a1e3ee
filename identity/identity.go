// Package identity implements node identities: secp256k1 key pairs,
// address derivation and EC-Schnorr signatures as verified by the mining proxy.
package identity

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/minio/sha256-simd"

	"github.com/powsim/nodesim/shared"
)

const (
	// PublicKeySize is the size of a compressed public key.
	PublicKeySize = 33
	// PrivateKeySize is the size of a serialized private scalar.
	PrivateKeySize = 32
	// AddressSize is the size of a raw address.
	AddressSize = 20
)

var (
	ErrInvariantViolation = errors.New("public key does not match private key")
	ErrInvalidKey         = errors.New("invalid key")
	ErrNoPrivateKey       = errors.New("identity has no private key")
)

// KeyPair is a node identity. A KeyPair created from a public key only can
// verify signatures and derive its address but cannot sign.
type KeyPair struct {
	priv *btcec.PrivateKey
	pub  *btcec.PublicKey
}

// Generate creates a KeyPair with a random private scalar.
func Generate() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating private key: %w", err)
	}
	return &KeyPair{priv: priv, pub: priv.PubKey()}, nil
}

// FromPrivate creates a KeyPair from a hex encoded private scalar.
func FromPrivate(privHex string) (*KeyPair, error) {
	priv, err := parsePrivateKey(privHex)
	if err != nil {
		return nil, err
	}
	return &KeyPair{priv: priv, pub: priv.PubKey()}, nil
}

// FromPublic creates a verify-only KeyPair from a hex encoded public key,
// compressed or uncompressed.
func FromPublic(pubHex string) (*KeyPair, error) {
	pub, err := parsePublicKey(pubHex)
	if err != nil {
		return nil, err
	}
	return &KeyPair{pub: pub}, nil
}

// FromPair creates a KeyPair from both halves and checks that pub == priv*G.
func FromPair(pubHex, privHex string) (*KeyPair, error) {
	pub, err := parsePublicKey(pubHex)
	if err != nil {
		return nil, err
	}
	priv, err := parsePrivateKey(privHex)
	if err != nil {
		return nil, err
	}
	if !priv.PubKey().IsEqual(pub) {
		return nil, fmt.Errorf("%w: %s", ErrInvariantViolation, shared.BytesToHex(pub.SerializeCompressed()))
	}
	return &KeyPair{priv: priv, pub: pub}, nil
}

// FromPublicBytes creates a verify-only KeyPair from a serialized public key.
func FromPublicBytes(pub []byte) (*KeyPair, error) {
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrInvalidKey, err)
	}
	return &KeyPair{pub: key}, nil
}

func parsePrivateKey(privHex string) (*btcec.PrivateKey, error) {
	b, err := shared.HexToBytes(privHex)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if len(b) > PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes", ErrInvalidKey, len(b))
	}
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("%w: private scalar out of range", ErrInvalidKey)
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return priv, nil
}

func parsePublicKey(pubHex string) (*btcec.PublicKey, error) {
	b, err := shared.HexToBytes(pubHex)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrInvalidKey, err)
	}
	return pub, nil
}

// PublicKey returns the compressed public key.
func (k *KeyPair) PublicKey() []byte {
	return k.pub.SerializeCompressed()
}

// PublicHex returns the compressed public key as lowercase hex.
func (k *KeyPair) PublicHex() string {
	return shared.BytesToHex(k.PublicKey())
}

// PrivateHex returns the private scalar as lowercase hex, or an empty string
// for verify-only identities.
func (k *KeyPair) PrivateHex() string {
	if k.priv == nil {
		return ""
	}
	return shared.BytesToHex(k.priv.Serialize())
}

// CanSign reports whether the KeyPair holds a private key.
func (k *KeyPair) CanSign() bool {
	return k.priv != nil
}

// Address returns the address of the identity.
func (k *KeyPair) Address() string {
	return addressFromPublic(k.pub)
}

// Equal reports whether both identities have the same public key.
func (k *KeyPair) Equal(other *KeyPair) bool {
	if k == nil || other == nil {
		return k == other
	}
	return bytes.Equal(k.PublicKey(), other.PublicKey())
}

// Sign produces a 64 bytes signature over msg.
func (k *KeyPair) Sign(msg []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, ErrNoPrivateKey
	}
	return schnorrSign(k.priv, k.pub, msg)
}

// Verify reports whether sig is a valid signature over msg by this identity.
func (k *KeyPair) Verify(sig, msg []byte) bool {
	return schnorrVerify(k.pub, sig, msg)
}

// String implements fmt.Stringer.
func (k *KeyPair) String() string {
	return k.Address()
}

// AddressFromPublicKey derives the address of a hex encoded public key.
func AddressFromPublicKey(pubHex string) (string, error) {
	pub, err := parsePublicKey(pubHex)
	if err != nil {
		return "", err
	}
	return addressFromPublic(pub), nil
}

// AddressFromPrivateKey derives the address of a hex encoded private key.
func AddressFromPrivateKey(privHex string) (string, error) {
	priv, err := parsePrivateKey(privHex)
	if err != nil {
		return "", err
	}
	return addressFromPublic(priv.PubKey()), nil
}

func addressFromPublic(pub *btcec.PublicKey) string {
	digest := sha256.Sum256(pub.SerializeCompressed())
	return shared.BytesToHex(digest[len(digest)-AddressSize:])
}
