// Package difficulty converts proof of work difficulties into target boundaries.
//
// A difficulty d is the number of leading zero bits a PoW hash must have. The
// boundary is the largest 256-bit big-endian value with d leading zero bits, and
// a hash solves the work when it is lower or equal to the boundary.
package difficulty

import (
	"bytes"
	"math/big"
)

// BoundarySize is the size of a boundary in bytes.
const BoundarySize = 32

const (
	// divided difficulties start at this level
	dividedStart = 32
	// number of steps between two consecutive levels above dividedStart
	dividedSteps = 8
)

// ToBoundary returns the boundary for difficulty d.
func ToBoundary(d uint8) []byte {
	boundary := bytes.Repeat([]byte{0xff}, BoundarySize)
	zeroBytes := int(d / 8)
	for i := 0; i < zeroBytes; i++ {
		boundary[i] = 0
	}
	boundary[zeroBytes] = 0xff >> (d % 8)
	return boundary
}

// FromBoundary returns the number of leading zero bits of boundary.
func FromBoundary(boundary []byte) uint {
	var zeros uint
	for _, b := range boundary {
		if b == 0 {
			zeros += 8
			continue
		}
		for mask := byte(0x80); mask != 0 && b&mask == 0; mask >>= 1 {
			zeros++
		}
		break
	}
	return zeros
}

// ToBoundaryDivided returns the boundary for a divided difficulty.
// Below 32 it equals ToBoundary. Above, the range between two consecutive
// levels is split into 8 equal steps.
func ToBoundaryDivided(d uint8) []byte {
	if d < dividedStart {
		return ToBoundary(d)
	}
	level := dividedStart + (d-dividedStart)/dividedSteps
	step := (d - dividedStart) % dividedSteps

	current := new(big.Int).SetBytes(ToBoundary(level))
	next := new(big.Int).SetBytes(ToBoundary(level + 1))
	delta := new(big.Int).Sub(current, next)
	delta.Div(delta, big.NewInt(dividedSteps))
	current.Sub(current, delta.Mul(delta, big.NewInt(int64(step))))

	return current.FillBytes(make([]byte, BoundarySize))
}
