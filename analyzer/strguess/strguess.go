// Package strguess classifies data byte runs as strings or floating point
// constants.
package strguess

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"

	"github.com/ChainSafe/mipsrecover/instruction"
	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/symbols"
)

// Exponent bounds accepted for float constants (unbiased).
const (
	minExponent = -64
	maxExponent = 64
)

// Guess is the outcome of inspecting a byte run.
type Guess struct {
	Type symbols.Type
	// Size is the length of the string including its terminator, or the
	// number of float bytes. Zero when Type is TypeUnknown.
	Size uint32
}

// Guesser inspects data symbols.
type Guesser struct {
	minLength int
	encoding  encoding.Encoding
	order     binary.ByteOrder
}

// NewGuesser returns a guesser configured by prof.
func NewGuesser(prof *profile.Profile) *Guesser {
	g := &Guesser{minLength: prof.MinStringLength, order: binary.BigEndian}
	if prof.ByteOrder() == instruction.EndianLittle {
		g.order = binary.LittleEndian
	}
	switch prof.StringEncoding {
	case "euc-jp":
		g.encoding = japanese.EUCJP
	case "shift-jis":
		g.encoding = japanese.ShiftJIS
	}
	return g
}

// Guess classifies the bytes of a symbol starting at addr. b holds the
// symbol bytes up to the next symbol.
func (g *Guesser) Guess(b []byte, addr uint32) Guess {
	if n, ok := g.stringLength(b); ok {
		return Guess{Type: symbols.TypeString, Size: n}
	}
	if len(b) == 8 && addr%8 == 0 && g.allDoubles(b) {
		return Guess{Type: symbols.TypeFloat64, Size: 8}
	}
	if len(b) >= 4 && addr%4 == 0 {
		n := len(b) &^ 3
		if g.allFloats(b[:n]) {
			return Guess{Type: symbols.TypeFloat32, Size: uint32(n)}
		}
	}
	return Guess{Type: symbols.TypeUnknown}
}

// stringLength returns the length of a null terminated run of text at the
// start of b, terminator included.
func (g *Guesser) stringLength(b []byte) (uint32, bool) {
	end := bytes.IndexByte(b, 0)
	if end < g.minLength || end <= 0 {
		return 0, false
	}
	run := b[:end]
	multibyte := false
	for _, c := range run {
		switch {
		case isText(c):
		case c >= 0x80 && g.encoding != nil:
			multibyte = true
		default:
			return 0, false
		}
	}
	if multibyte {
		decoded, err := g.encoding.NewDecoder().Bytes(run)
		if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
			return 0, false
		}
	}
	return uint32(end + 1), true
}

func isText(c byte) bool {
	switch c {
	case '\t', '\n', '\r', 0x0B, 0x0C, 0x1B:
		return true
	}
	return c >= 0x20 && c < 0x7F
}

func (g *Guesser) allFloats(b []byte) bool {
	for i := 0; i+4 <= len(b); i += 4 {
		if !IsPlausibleFloat32(g.order.Uint32(b[i:])) {
			return false
		}
	}
	return len(b) > 0
}

func (g *Guesser) allDoubles(b []byte) bool {
	for i := 0; i+8 <= len(b); i += 8 {
		if !IsPlausibleFloat64(g.order.Uint64(b[i:])) {
			return false
		}
	}
	return len(b) > 0
}

// IsPlausibleFloat32 reports a normalized single of reasonable magnitude.
func IsPlausibleFloat32(bits uint32) bool {
	exp := int((bits >> 23) & 0xFF)
	if exp == 0 || exp == 0xFF {
		return false
	}
	exp -= 127
	return exp >= minExponent && exp <= maxExponent
}

// IsPlausibleFloat64 reports a normalized double of reasonable magnitude.
func IsPlausibleFloat64(bits uint64) bool {
	exp := int((bits >> 52) & 0x7FF)
	if exp == 0 || exp == 0x7FF {
		return false
	}
	exp -= 1023
	return exp >= minExponent && exp <= maxExponent
}

// Float32 decodes a word as a single.
func Float32(bits uint32) float32 {
	return math.Float32frombits(bits)
}

// Float64 decodes two words as a double.
func Float64(bits uint64) float64 {
	return math.Float64frombits(bits)
}
