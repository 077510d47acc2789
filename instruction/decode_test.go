package instruction

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		word     uint32
		vram     uint32
		mnemonic Mnemonic
		fullName string
		typ      Type
		operands [3]Operand
	}{
		{
			name:     "lui",
			word:     0x3C088012,
			mnemonic: LUI,
			fullName: "lui",
			typ:      IType,
			operands: [3]Operand{gpr(8), imm(0x8012)},
		},
		{
			name:     "addiu negative",
			word:     0x27BDFFE8,
			mnemonic: ADDIU,
			fullName: "addiu",
			typ:      IType,
			operands: [3]Operand{gpr(RegSP), gpr(RegSP), imm(-0x18)},
		},
		{
			name:     "jr ra",
			word:     0x03E00008,
			mnemonic: JR,
			fullName: "jr",
			typ:      RType,
			operands: [3]Operand{gpr(RegRA)},
		},
		{
			name:     "jal",
			word:     0x0C000100,
			vram:     0x80000000,
			mnemonic: JAL,
			fullName: "jal",
			typ:      JType,
			operands: [3]Operand{{Kind: OperandTarget, Addr: 0x80000400}},
		},
		{
			name:     "nop",
			word:     0x00000000,
			mnemonic: NOP,
			fullName: "nop",
			typ:      RType,
		},
		{
			name:     "unconditional branch",
			word:     0x10000003,
			vram:     0x80000000,
			mnemonic: B,
			fullName: "b",
			typ:      IType,
			operands: [3]Operand{{Kind: OperandTarget, Addr: 0x80000010}},
		},
		{
			name:     "backwards beqz",
			word:     0x1080FFFF, // beq $a0, $zero, -1
			vram:     0x80000010,
			mnemonic: BEQZ,
			fullName: "beqz",
			typ:      IType,
			operands: [3]Operand{gpr(RegA0), {Kind: OperandTarget, Addr: 0x80000010}},
		},
		{
			name:     "move from or",
			word:     0x02002025,
			mnemonic: MOVE,
			fullName: "move",
			typ:      RType,
			operands: [3]Operand{gpr(RegA0), gpr(16)},
		},
		{
			name:     "lwc1",
			word:     0xC7A40010,
			mnemonic: LWC1,
			fullName: "lwc1",
			typ:      IType,
			operands: [3]Operand{fpr(4), {Kind: OperandMemory, Reg: RegSP, Imm: 0x10}},
		},
		{
			name:     "add.s",
			word:     0x46041000,
			mnemonic: ADD_F,
			fullName: "add.s",
			typ:      CopType,
			operands: [3]Operand{fpr(0), fpr(2), fpr(4)},
		},
		{
			name:     "c.lt.d",
			word:     0x462E603C,
			mnemonic: C_LT_F,
			fullName: "c.lt.d",
			typ:      CopType,
			operands: [3]Operand{fpr(12), fpr(14)},
		},
		{
			name:     "mfc0",
			word:     0x40086000,
			mnemonic: MFC0,
			fullName: "mfc0",
			typ:      CopType,
			operands: [3]Operand{gpr(8), {Kind: OperandCop0, Reg: 12}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ins := Decode(tt.word, tt.vram)
			assert.Equal(t, tt.mnemonic, ins.Mnemonic)
			assert.Equal(t, tt.fullName, ins.Name())
			assert.Equal(t, tt.typ, ins.Type)
			assert.Equal(t, tt.operands, ins.Operands)
			assert.Equal(t, tt.word, ins.Word)
			assert.False(t, ins.IsUnknown())
		})
	}
}

func TestDecodeUnknown(t *testing.T) {
	for _, word := range []uint32{
		0x48000000, // COP2
		0xEC000000, // opcode 0x3B
		0x00000001, // SPECIAL funct 0x01
		0x46000020, // cvt.s.s
		0x42000003, // COP0 CO funct 0x03
	} {
		ins := Decode(word, 0x80000000)
		assert.True(t, ins.IsUnknown(), "%08X", word)
		assert.Equal(t, word, ins.Word)
		assert.Equal(t, uint32(0x80000000), ins.Vram)
		assert.Equal(t, INVALID, ins.Mnemonic)
	}
}

func TestDecodeIsTotal(t *testing.T) {
	check := func(word uint32) {
		ins := Decode(word, 0x80000000)
		if ins.IsUnknown() {
			assert.Equal(t, INVALID, ins.Mnemonic)
			return
		}
		assert.NotEqual(t, "INVALID", ins.Mnemonic.String(), "%08X", word)
	}
	for op := uint32(0); op < 64; op++ {
		for sub := uint32(0); sub < 64; sub++ {
			for _, rs := range []uint32{0, 1, 8, 16, 17, 20, 21, 31} {
				check(op<<26 | rs<<21 | sub<<16 | sub)
			}
		}
	}
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 100000; i++ {
		check(r.Uint32())
	}
}

func TestInstructionPredicates(t *testing.T) {
	jr := Decode(0x03E00008, 0)
	assert.True(t, jr.IsReturn())
	assert.True(t, jr.HasDelaySlot())
	assert.False(t, jr.IsCall())

	jal := Decode(0x0C000100, 0x80000000)
	assert.True(t, jal.IsCall())
	dst, ok := jal.DestinationGPR()
	require.True(t, ok)
	assert.Equal(t, uint8(RegRA), dst)
	target, ok := jal.Target()
	require.True(t, ok)
	assert.Equal(t, uint32(0x80000400), target)

	beql := Decode(0x5080FFFF, 0x80000010) // beql $a0, $zero
	assert.Equal(t, BEQZL, beql.Mnemonic)
	assert.True(t, beql.IsBranchLikely())
	assert.True(t, beql.IsBranch())

	lw := Decode(0x8FA40010, 0) // lw $a0, 0x10($sp)
	assert.True(t, lw.IsLoad())
	assert.True(t, lw.IsLowPart())
	assert.Equal(t, 4, lw.AccessSize())
	base, ok := lw.BaseRegister()
	require.True(t, ok)
	assert.Equal(t, uint8(RegSP), base)

	nop := Decode(0, 0)
	_, ok = nop.DestinationGPR()
	assert.False(t, ok)
	assert.True(t, nop.IsNop())
}

func TestEndianWord(t *testing.T) {
	tests := []struct {
		endian Endian
		bytes  []byte
	}{
		{EndianBig, []byte{0x3C, 0x08, 0x80, 0x12}},
		{EndianLittle, []byte{0x12, 0x80, 0x08, 0x3C}},
		{EndianMiddle, []byte{0x08, 0x3C, 0x12, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.endian.String(), func(t *testing.T) {
			word, err := tt.endian.Word(tt.bytes)
			require.NoError(t, err)
			assert.Equal(t, uint32(0x3C088012), word)

			ins, err := DecodeBytes(tt.bytes, 0, tt.endian)
			require.NoError(t, err)
			assert.Equal(t, LUI, ins.Mnemonic)
		})
	}

	_, err := EndianBig.Word([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortWord)
}

func TestEndianNormalize(t *testing.T) {
	in := []byte{0x08, 0x3C, 0x12, 0x80}
	out, e := EndianMiddle.Normalize(in)
	assert.Equal(t, EndianBig, e)
	assert.Equal(t, []byte{0x3C, 0x08, 0x80, 0x12}, out)
	assert.Equal(t, []byte{0x08, 0x3C, 0x12, 0x80}, in, "input must not be modified")

	out, e = EndianLittle.Normalize(in)
	assert.Equal(t, EndianLittle, e)
	assert.Equal(t, in, out)
}

func TestParseEndian(t *testing.T) {
	for s, want := range map[string]Endian{"big": EndianBig, "": EndianBig, "Little": EndianLittle, "middle": EndianMiddle} {
		got, err := ParseEndian(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseEndian("sideways")
	assert.Error(t, err)
}
