package signing

import (
	"encoding/binary"
	"fmt"

	"github.com/spacemeshos/go-scale"
)

// Field widths of the signed requests.
const (
	PubKeySize   = 33
	HeaderSize   = 32
	BlockNumSize = 8
	BoundarySize = 32
	TimeoutSize  = 4
	FlagSize     = 1
)

// WorkRequest asks the proxy to start proof of work on a header.
//
//	pubkey(33) | header(32) | block number(8) | boundary(32) | timeout(4)
type WorkRequest struct {
	PubKey   [PubKeySize]byte
	Header   [HeaderSize]byte
	BlockNum uint64
	Boundary [BoundarySize]byte
	// Timeout is the number of seconds left in the PoW window.
	Timeout uint32
}

func (r *WorkRequest) Fields() [][]byte {
	blockNum := make([]byte, BlockNumSize)
	binary.BigEndian.PutUint64(blockNum, r.BlockNum)
	timeout := make([]byte, TimeoutSize)
	binary.BigEndian.PutUint32(timeout, r.Timeout)
	return [][]byte{r.PubKey[:], r.Header[:], blockNum, r.Boundary[:], timeout}
}

func (r *WorkRequest) DecodeFields(fields [][]byte) error {
	if err := checkWidths(fields, PubKeySize, HeaderSize, BlockNumSize, BoundarySize, TimeoutSize); err != nil {
		return err
	}
	copy(r.PubKey[:], fields[0])
	copy(r.Header[:], fields[1])
	r.BlockNum = binary.BigEndian.Uint64(fields[2])
	copy(r.Boundary[:], fields[3])
	r.Timeout = binary.BigEndian.Uint32(fields[4])
	return nil
}

func (r *WorkRequest) EncodeScale(enc *scale.Encoder) (int, error) {
	return encodeFields(enc, r.Fields())
}

func (r *WorkRequest) SignerPubKey() []byte { return r.PubKey[:] }

// StatusRequest polls the proxy for the result of a work.
//
//	pubkey(33) | header(32) | boundary(32)
type StatusRequest struct {
	PubKey   [PubKeySize]byte
	Header   [HeaderSize]byte
	Boundary [BoundarySize]byte
}

func (r *StatusRequest) Fields() [][]byte {
	return [][]byte{r.PubKey[:], r.Header[:], r.Boundary[:]}
}

func (r *StatusRequest) DecodeFields(fields [][]byte) error {
	if err := checkWidths(fields, PubKeySize, HeaderSize, BoundarySize); err != nil {
		return err
	}
	copy(r.PubKey[:], fields[0])
	copy(r.Header[:], fields[1])
	copy(r.Boundary[:], fields[2])
	return nil
}

func (r *StatusRequest) EncodeScale(enc *scale.Encoder) (int, error) {
	return encodeFields(enc, r.Fields())
}

func (r *StatusRequest) SignerPubKey() []byte { return r.PubKey[:] }

// VerifyRequest reports to the proxy whether the submitted result is valid.
//
//	pubkey(33) | verify flag(1) | header(32) | boundary(32)
type VerifyRequest struct {
	PubKey   [PubKeySize]byte
	Verified bool
	Header   [HeaderSize]byte
	Boundary [BoundarySize]byte
}

func (r *VerifyRequest) Fields() [][]byte {
	flag := []byte{0x00}
	if r.Verified {
		flag[0] = 0x01
	}
	return [][]byte{r.PubKey[:], flag, r.Header[:], r.Boundary[:]}
}

func (r *VerifyRequest) DecodeFields(fields [][]byte) error {
	if err := checkWidths(fields, PubKeySize, FlagSize, HeaderSize, BoundarySize); err != nil {
		return err
	}
	copy(r.PubKey[:], fields[0])
	switch fields[1][0] {
	case 0x00:
		r.Verified = false
	case 0x01:
		r.Verified = true
	default:
		return fmt.Errorf("invalid verify flag %#x", fields[1][0])
	}
	copy(r.Header[:], fields[2])
	copy(r.Boundary[:], fields[3])
	return nil
}

func (r *VerifyRequest) EncodeScale(enc *scale.Encoder) (int, error) {
	return encodeFields(enc, r.Fields())
}

func (r *VerifyRequest) SignerPubKey() []byte { return r.PubKey[:] }

func encodeFields(enc *scale.Encoder, fields [][]byte) (int, error) {
	var total int
	for _, f := range fields {
		n, err := scale.EncodeByteArray(enc, f)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func checkWidths(fields [][]byte, widths ...int) error {
	if len(fields) != len(widths) {
		return fmt.Errorf("expected %d fields, got %d", len(widths), len(fields))
	}
	for i, w := range widths {
		if len(fields[i]) != w {
			return fmt.Errorf("field %d: expected %d bytes, got %d", i, w, len(fields[i]))
		}
	}
	return nil
}
