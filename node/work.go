package node

import "github.com/powsim/nodesim/shared"

// Work is the unit a node asks the proxy to solve during a round.
// It is created once per round and never modified.
type Work struct {
	Header   [32]byte
	BlockNum uint64
}

// NewWork creates a Work for block with a random header.
func NewWork(block uint64) (Work, error) {
	header, err := shared.RandomBytes(32)
	if err != nil {
		return Work{}, err
	}
	w := Work{BlockNum: block}
	copy(w.Header[:], header)
	return w, nil
}
