package instruction

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrShortWord is returned when fewer than four bytes are available for a word.
var ErrShortWord = errors.New("not enough bytes for a 32-bit word")

// Endian is the byte order of an input image.
type Endian int

const (
	EndianBig Endian = iota
	EndianLittle
	// EndianMiddle stores every 16-bit half in little endian order while
	// keeping the halves in big endian order (v64 style ROM dumps).
	EndianMiddle
)

// ParseEndian parses the textual endianness used by profiles and flags.
func ParseEndian(s string) (Endian, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "big":
		return EndianBig, nil
	case "little":
		return EndianLittle, nil
	case "middle":
		return EndianMiddle, nil
	}
	return EndianBig, fmt.Errorf("unknown endianness %q", s)
}

func (e Endian) String() string {
	switch e {
	case EndianLittle:
		return "little"
	case EndianMiddle:
		return "middle"
	default:
		return "big"
	}
}

// Word reads the first four bytes of b as a 32-bit word.
func (e Endian) Word(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrShortWord
	}
	switch e {
	case EndianLittle:
		return binary.LittleEndian.Uint32(b), nil
	case EndianMiddle:
		return uint32(b[1])<<24 | uint32(b[0])<<16 | uint32(b[3])<<8 | uint32(b[2]), nil
	default:
		return binary.BigEndian.Uint32(b), nil
	}
}

// Normalize returns a copy of b in which middle endian data has been
// rearranged into big endian order. Big and little endian data is copied
// unchanged, together with the endianness to use for reading it.
func (e Endian) Normalize(b []byte) ([]byte, Endian) {
	out := make([]byte, len(b))
	copy(out, b)
	if e != EndianMiddle {
		return out, e
	}
	for i := 0; i+1 < len(out); i += 2 {
		out[i], out[i+1] = out[i+1], out[i]
	}
	return out, EndianBig
}
