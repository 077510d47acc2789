package strguess

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/symbols"
)

func TestGuess(t *testing.T) {
	tests := []struct {
		name  string
		bytes []byte
		addr  uint32
		want  Guess
	}{
		{
			name:  "hello",
			bytes: []byte("HELLO\x00\x01\x02\xFF\xFE"),
			addr:  0x80000100,
			want:  Guess{Type: symbols.TypeString, Size: 6},
		},
		{
			name:  "escapes",
			bytes: []byte("a\tb\n\x1b[0m\x00"),
			addr:  0x80000100,
			want:  Guess{Type: symbols.TypeString, Size: 9},
		},
		{
			name:  "too short",
			bytes: []byte("A\x00"),
			addr:  0x80000100,
			want:  Guess{Type: symbols.TypeUnknown},
		},
		{
			name:  "no terminator",
			bytes: []byte{'H', 'I', 0x01, 0x00},
			addr:  0x80000101,
			want:  Guess{Type: symbols.TypeUnknown},
		},
		{
			name:  "float",
			bytes: []byte{0x3F, 0x80, 0x00, 0x00},
			addr:  0x80000100,
			want:  Guess{Type: symbols.TypeFloat32, Size: 4},
		},
		{
			name:  "float array",
			bytes: []byte{0x3F, 0x80, 0x00, 0x00, 0xC0, 0x49, 0x0F, 0xDB, 0x00},
			addr:  0x80000100,
			want:  Guess{Type: symbols.TypeFloat32, Size: 8},
		},
		{
			name:  "double",
			bytes: []byte{0x3F, 0xF0, 0, 0, 0, 0, 0, 0},
			addr:  0x80000100,
			want:  Guess{Type: symbols.TypeFloat64, Size: 8},
		},
		{
			name:  "zero is not a float",
			bytes: []byte{0, 0, 0, 0},
			addr:  0x80000100,
			want:  Guess{Type: symbols.TypeUnknown},
		},
		{
			name:  "pointer is not a float",
			bytes: []byte{0x80, 0x00, 0x12, 0x34},
			addr:  0x80000100,
			want:  Guess{Type: symbols.TypeUnknown},
		},
		{
			name:  "infinity",
			bytes: []byte{0x7F, 0x80, 0x00, 0x00},
			addr:  0x80000100,
			want:  Guess{Type: symbols.TypeUnknown},
		},
		{
			name:  "unaligned float",
			bytes: []byte{0x3F, 0x80, 0x00, 0x00},
			addr:  0x80000102,
			want:  Guess{Type: symbols.TypeUnknown},
		},
	}

	g := NewGuesser(profile.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Guess(tt.bytes, tt.addr))
		})
	}
}

func TestGuessEncodings(t *testing.T) {
	// "テスト" in Shift-JIS
	sjis := []byte{0x83, 0x65, 0x83, 0x58, 0x83, 0x67, 0x00, 0x00}

	prof := profile.Default()
	assert.Equal(t, symbols.TypeUnknown, NewGuesser(prof).Guess(sjis, 0x80000000).Type)

	prof.StringEncoding = "shift-jis"
	assert.Equal(t, Guess{Type: symbols.TypeString, Size: 7}, NewGuesser(prof).Guess(sjis, 0x80000000))

	prof.StringEncoding = "euc-jp"
	assert.Equal(t, symbols.TypeUnknown, NewGuesser(prof).Guess(sjis, 0x80000000).Type)

	// "テスト" in EUC-JP
	eucjp := []byte{0xA5, 0xC6, 0xA5, 0xB9, 0xA5, 0xC8, 0x00}
	assert.Equal(t, Guess{Type: symbols.TypeString, Size: 7}, NewGuesser(prof).Guess(eucjp, 0x80000000))
}

func TestGuessLittleEndianFloat(t *testing.T) {
	prof := profile.Default()
	prof.Endian = "little"
	g := NewGuesser(prof)
	assert.Equal(t, Guess{Type: symbols.TypeFloat32, Size: 4}, g.Guess([]byte{0x00, 0x00, 0x80, 0x3F}, 0x80000000))
	assert.Equal(t, Guess{Type: symbols.TypeFloat64, Size: 8}, g.Guess([]byte{0, 0, 0, 0, 0, 0, 0xF0, 0x3F}, 0x80000000))
}

func TestPlausibleFloats(t *testing.T) {
	assert.True(t, IsPlausibleFloat32(0x3F800000))
	assert.False(t, IsPlausibleFloat32(0x00000001), "denormal")
	assert.False(t, IsPlausibleFloat32(0x7FC00000), "nan")
	assert.False(t, IsPlausibleFloat32(0x7F000000), "huge")
	assert.True(t, IsPlausibleFloat64(0x400921FB54442D18))
	assert.False(t, IsPlausibleFloat64(0x7FF0000000000000))
	assert.Equal(t, float32(1), Float32(0x3F800000))
	assert.Equal(t, float64(1), Float64(0x3FF0000000000000))
}
