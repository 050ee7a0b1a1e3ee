package shared

import "errors"

var (
	// ErrRange is returned when a non-positive size is requested from a random source.
	ErrRange = errors.New("size out of range")
	// ErrOverflow is returned when a value does not fit into the requested byte width.
	ErrOverflow = errors.New("value overflows byte width")
	// ErrDecode is returned on malformed hex or byte input.
	ErrDecode = errors.New("malformed input")
)
