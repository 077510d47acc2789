package renderer

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ChainSafe/mipsrecover/analyzer"
	"github.com/ChainSafe/mipsrecover/disassembler"
	"github.com/ChainSafe/mipsrecover/instruction"
	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/section"
	"github.com/ChainSafe/mipsrecover/symbols"
)

const base = 0x80000000

func words(ws ...uint32) []byte {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.BigEndian.PutUint32(b[i*4:], w)
	}
	return b
}

func sample(t *testing.T, prof *profile.Profile) *disassembler.Result {
	t.Helper()
	text := section.New(".text", section.KindText, base, words(
		0x3C088000, // lui $t0, 0x8000
		0x25080040, // addiu $t0, $t0, 0x40
		0x0C000008, // jal 0x80000020
		0x00000000, // nop
		0x1000FFFF, // b 0x80000010
		0x00000000, // nop
		0x03E00008, // jr $ra
		0x00000000, // nop

		0x3C098012, // lui $t1, 0x8012 (unpaired)
		0x03E00008, // jr $ra
		0xEC000000, // unknown in the delay slot
		0x00000000,
		0x00000000,
		0x00000000,
		0x00000000,
		0x00000000,
	), instruction.EndianBig)
	rodata := section.New(".rodata", section.KindRodata, base+0x40, []byte{
		'H', 'E', 'L', 'L', 'O', 0x00, 0x01, 0x02,
		0xFF, 0xFE, 0xFD, 0xFC, 0xFF, 0xFE, 0xFD, 0xFC,
	}, instruction.EndianBig)
	data := section.New(".data", section.KindData, base+0x50, words(base+0x20, 0x3F800000), instruction.EndianBig)
	bss := section.NewBss(".bss", base+0x60, 0x20)

	res, err := disassembler.New(prof, nil).Disassemble([]*section.Section{text, rodata, data, bss})
	require.NoError(t, err)
	return res
}

func emit(t *testing.T, prof *profile.Profile, res *disassembler.Result, idx int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewAsmEmitter(prof, res).Emit(res.Sections[idx], &buf))
	return buf.String()
}

func line(mnemonic, operands string) string {
	return fmt.Sprintf("%-11s %s", mnemonic, operands)
}

func TestEmitText(t *testing.T) {
	prof := profile.Default()
	res := sample(t, prof)
	out := emit(t, prof, res, 0)

	assert.Contains(t, out, ".section .text\n")
	assert.Contains(t, out, "glabel func_80000000 /* 8 instructions */\n")
	assert.Contains(t, out, "/* 000000 80000000 3C088000 */  "+line("lui", "$t0, %hi(STR_80000040)"))
	assert.Contains(t, out, line("addiu", "$t0, $t0, %lo(STR_80000040)"))
	assert.Contains(t, out, line("jal", "func_80000020"))
	assert.Contains(t, out, "\n.L80000010:\n")
	assert.Contains(t, out, line("b", ".L80000010"))
	assert.Contains(t, out, "*/  nop\n")
	assert.Contains(t, out, "glabel func_80000020")
	assert.Contains(t, out, line("lui", "$t1, 0x8012"))
	assert.Contains(t, out, "*/  .word 0xEC000000\n")

	// every word of the section is rendered once
	assert.Equal(t, 16, strings.Count(out, "*/  "))
}

func TestEmitTextFormatting(t *testing.T) {
	prof := profile.Default()
	prof.AsmComments = false
	prof.GlabelCount = false
	prof.AsmEntLabel = ".ent"
	prof.AsmEndLabel = ".end"
	prof.LineEnds = "\r\n"
	res := sample(t, prof)
	out := emit(t, prof, res, 0)

	assert.NotContains(t, out, "/*")
	assert.Contains(t, out, "glabel func_80000000\r\n.ent func_80000000\r\n")
	assert.Contains(t, out, ".end func_80000000\r\n")
	assert.Contains(t, out, ".end func_80000020\r\n")

	prof.FuncAsLabel = true
	out = emit(t, prof, res, 0)
	assert.Contains(t, out, "\r\nfunc_80000000:\r\n")
}

func TestEmitData(t *testing.T) {
	prof := profile.Default()
	res := sample(t, prof)

	rodata := emit(t, prof, res, 1)
	assert.Contains(t, rodata, "glabel STR_80000040\n.asciz \"HELLO\"\n.byte 0x01\n.byte 0x02\n")
	assert.Contains(t, rodata, "glabel R_80000048\n.word 0xFFFEFDFC\n.word 0xFFFEFDFC\n")

	data := emit(t, prof, res, 2)
	assert.Contains(t, data, ".word func_80000020\n")
	assert.Contains(t, data, ".word 0x3F800000\n")

	bss := emit(t, prof, res, 3)
	assert.Contains(t, bss, "glabel B_80000060\n.space 0x20\n")
}

func TestEmitRequiresFinalizedTable(t *testing.T) {
	text := section.New(".text", section.KindText, base, words(0), instruction.EndianBig)
	res := &disassembler.Result{
		Sections: []*section.Section{text},
		Table:    symbols.NewTable([]*section.Section{text}, symbols.Naming{}),
	}
	_, err := NewAsmEmitter(profile.Default(), res).Lines(text)
	assert.ErrorIs(t, err, symbols.ErrNotFinalized)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `say \"hi\"\n\\\033`, escape([]byte("say \"hi\"\n\\\x1b")))
}

func TestReportRenderers(t *testing.T) {
	prof := profile.Default()
	res := sample(t, prof)
	report := NewReport("game.z64", res, true)
	report.Trace = &analyzer.Source{Symbol: "func_80000020", Address: base + 0x20, Section: ".text",
		CallStack: &analyzer.Source{Symbol: "func_80000000", Address: base, Section: ".text"}}

	assert.Equal(t, 2, report.Functions)
	require.NotEmpty(t, report.Symbols)
	assert.Equal(t, "func_80000000", report.Symbols[0].Name)

	var buf bytes.Buffer
	r := NewTextRenderer(prof)
	assert.Equal(t, "text", r.Format())
	require.NoError(t, r.Render(report, &buf))
	text := buf.String()
	assert.Contains(t, text, "Image: game.z64")
	assert.Contains(t, text, "UnpairedRelocation")
	assert.Contains(t, text, "DecodeAmbiguous")
	assert.Contains(t, text, "-> 0x80000000 : (func_80000000) [.text]")
	assert.Contains(t, text, "STR_80000040")

	buf.Reset()
	require.NoError(t, NewJSONRenderer().Render(report, &buf))
	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.Symbols, decoded.Symbols)
	assert.Equal(t, len(report.Diagnostics), len(decoded.Diagnostics))

	buf.Reset()
	require.NoError(t, NewYAMLRenderer().Render(report, &buf))
	decoded = Report{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "game.z64", decoded.Image)
	assert.Equal(t, report.Sections, decoded.Sections)
}

func analyzeText(t *testing.T, prof *profile.Profile, text []uint32, others ...*section.Section) *disassembler.Result {
	t.Helper()
	sections := append([]*section.Section{
		section.New(".text", section.KindText, base, words(text...), instruction.EndianBig),
	}, others...)
	res, err := disassembler.New(prof, nil).Disassemble(sections)
	require.NoError(t, err)
	return res
}

func TestEmitAccessWidths(t *testing.T) {
	text := []uint32{
		0x3C088000, // lui $t0, 0x8000
		0x81090040, // lb $t1, 0x40($t0)
		0x850A0044, // lh $t2, 0x44($t0)
		0x03E00008, // jr $ra
		0x00000000, // nop
	}
	data := func() *section.Section {
		return section.New(".data", section.KindData, base+0x40, []byte{1, 2, 3, 4, 0, 5, 0, 6}, instruction.EndianBig)
	}

	prof := profile.Default()
	res := analyzeText(t, prof, text, data())
	bytesSym, ok := res.Table.Get(base + 0x40)
	require.True(t, ok)
	assert.Equal(t, 1, bytesSym.AccessSize())
	shortsSym, ok := res.Table.Get(base + 0x44)
	require.True(t, ok)
	assert.Equal(t, 2, shortsSym.AccessSize())

	out := emit(t, prof, res, 1)
	assert.Contains(t, out, ".byte 0x01\n.byte 0x02\n.byte 0x03\n.byte 0x04\n")
	assert.Contains(t, out, ".short 0x0005\n.short 0x0006\n")

	prof.UseDotByte = false
	prof.UseDotShort = false
	res = analyzeText(t, prof, text, data())
	out = emit(t, prof, res, 1)
	assert.NotContains(t, out, ".byte")
	assert.NotContains(t, out, ".short")
	assert.Contains(t, out, ".word 0x01020304\n")
	assert.Contains(t, out, ".word 0x00050006\n")
}

func TestEmitGpRelative(t *testing.T) {
	prof := profile.Default()
	gp := uint32(base + 0x8040)
	prof.GP = &gp
	data := section.New(".sdata", section.KindData, base+0x40, words(7), instruction.EndianBig)
	res := analyzeText(t, prof, []uint32{
		0x8F828000, // lw $v0, -0x8000($gp)
		0x03E00008, // jr $ra
		0x00000000, // nop
	}, data)

	sym, ok := res.Table.Get(base + 0x40)
	require.True(t, ok)
	out := emit(t, prof, res, 0)
	assert.Contains(t, out, line("lw", "$v0, %gp_rel("+sym.Name()+")($gp)"))
}

func TestEmitJalrCallee(t *testing.T) {
	prof := profile.Default()
	res := analyzeText(t, prof, []uint32{
		0x3C198000, // lui $t9, 0x8000
		0x27390010, // addiu $t9, $t9, 0x10
		0x0320F809, // jalr $t9
		0x00000000, // nop
		0x24080001, // addiu $t0, $zero, 1
		0x03E00008, // jr $ra
		0x00000000, // nop
	})

	out := emit(t, prof, res, 0)
	assert.Contains(t, out, "glabel func_80000000 /* 4 instructions */\n")
	assert.Contains(t, out, "glabel func_80000010 /* 3 instructions */\n")
	assert.Contains(t, out, line("lui", "$t9, %hi(func_80000010)"))
	assert.Contains(t, out, line("addiu", "$t9, $t9, %lo(func_80000010)"))
	assert.NotContains(t, out, ".L80000010")
}

func TestEmitFilteredConstants(t *testing.T) {
	prof := profile.Default()
	prof.FilteredAsHiLo = false
	prof.FilteredAsConstants = true
	res := analyzeText(t, prof, []uint32{
		0x3C081235, // lui $t0, 0x1235
		0x25088000, // addiu $t0, $t0, -0x8000
		0x3C051234, // lui $a1, 0x1234
		0x34A55678, // ori $a1, $a1, 0x5678
		0x03E00008, // jr $ra
		0x00000000, // nop
	})

	out := emit(t, prof, res, 0)
	assert.Contains(t, out, line("lui", "$t0, ((0x12348000 + 0x8000) >> 16)"))
	assert.Contains(t, out, line("addiu", "$t0, $t0, -0x8000"))
	assert.Contains(t, out, line("lui", "$a1, (0x12345678 >> 16)"))
	assert.Contains(t, out, line("ori", "$a1, $a1, (0x12345678 & 0xFFFF)"))

	prof.FilteredAsConstants = false
	res = analyzeText(t, prof, []uint32{0x3C081235, 0x25088000, 0x03E00008, 0x00000000})
	out = emit(t, prof, res, 0)
	assert.Contains(t, out, line("lui", "$t0, 0x1235"))
	assert.Contains(t, out, line("addiu", "$t0, $t0, -0x8000"))
}
