package signing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/powsim/nodesim/identity"
	"github.com/powsim/nodesim/shared"
)

var (
	ErrSigningFailed    = errors.New("couldn't sign")
	ErrSignatureInvalid = errors.New("signature is invalid")
	ErrInvalidParams    = errors.New("invalid request params")
)

// Signer signs raw bytes and exposes its compressed public key.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() []byte
}

// Signed represents a signed T data.
// It provides a read-only access to it.
type Signed[T any] interface {
	// Data retrieves the underlying data.
	// The received data is READ ONLY.
	Data() *T
	Signature() []byte
	// Params renders the fields and the signature as RPC params.
	Params() []string
}

// signedData is a holder of data T which is
// guaranteed to be signed. It implements Signed[T] interface.
type signedData[T any, M message[T]] struct {
	data      T
	signature []byte
}

func (d *signedData[T, M]) Data() *T {
	return &d.data
}

func (d *signedData[T, M]) Signature() []byte {
	return d.signature
}

func (d *signedData[T, M]) Params() []string {
	fields := M(&d.data).Fields()
	params := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		params = append(params, shared.BytesToHex0x(f))
	}
	return append(params, shared.BytesToHex0x(d.signature))
}

// message is a fixed layout request. Fields returns the raw fields in wire
// order and DecodeFields is its inverse.
type message[P any] interface {
	scale.Encodable
	Fields() [][]byte
	DecodeFields(fields [][]byte) error
	SignerPubKey() []byte
	*P
}

// Sign signs data with given signer.
// *T must implement the message constraint.
func Sign[T any, M message[T]](data T, signer Signer) (Signed[T], error) {
	payload, err := encode[T, M](&data)
	if err != nil {
		return nil, err
	}
	signature, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrSigningFailed, err)
	}
	return &signedData[T, M]{
		data:      data,
		signature: signature,
	}, nil
}

// NewFromParams rebuilds a Signed[T] from RPC params and verifies its
// signature against the public key carried in the message.
func NewFromParams[T any, M message[T]](params []string) (Signed[T], error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("%w: %d params", ErrInvalidParams, len(params))
	}
	fields := make([][]byte, len(params)-1)
	for i, p := range params[:len(params)-1] {
		b, err := shared.HexToBytes(p)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidParams, i, err)
		}
		fields[i] = b
	}
	signature, err := shared.HexToBytes(params[len(params)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrInvalidParams, err)
	}

	var data T
	if err := M(&data).DecodeFields(fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	payload, err := encode[T, M](&data)
	if err != nil {
		return nil, err
	}
	key, err := identity.FromPublicBytes(M(&data).SignerPubKey())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if !key.Verify(signature, payload) {
		return nil, ErrSignatureInvalid
	}

	return &signedData[T, M]{
		data:      data,
		signature: signature,
	}, nil
}

func encode[T any, M message[T]](data *T) ([]byte, error) {
	var dataBuf bytes.Buffer
	if _, err := M(data).EncodeScale(scale.NewEncoder(&dataBuf)); err != nil {
		return nil, fmt.Errorf("failed to serialize data (%w)", err)
	}
	return dataBuf.Bytes(), nil
}
