package renderer

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChainSafe/mipsrecover/analyzer/boundary"
	"github.com/ChainSafe/mipsrecover/analyzer/reloc"
	"github.com/ChainSafe/mipsrecover/analyzer/strguess"
	"github.com/ChainSafe/mipsrecover/disassembler"
	"github.com/ChainSafe/mipsrecover/instruction"
	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/section"
	"github.com/ChainSafe/mipsrecover/symbols"
)

const mnemonicWidth = 11

// AsmEmitter renders sections of an analysis result as assembly source. It
// only reads the result.
type AsmEmitter struct {
	prof *profile.Profile
	res  *disassembler.Result
}

// NewAsmEmitter returns an emitter for res formatted according to prof.
func NewAsmEmitter(prof *profile.Profile, res *disassembler.Result) *AsmEmitter {
	return &AsmEmitter{prof: prof, res: res}
}

// Emit writes the assembly of sec to output.
func (e *AsmEmitter) Emit(sec *section.Section, output io.Writer) error {
	lines, err := e.Lines(sec)
	if err != nil {
		return err
	}
	_, err = io.WriteString(output, strings.Join(lines, e.prof.LineEnds)+e.prof.LineEnds)
	return err
}

// Lines renders sec line by line.
func (e *AsmEmitter) Lines(sec *section.Section) ([]string, error) {
	if !e.res.Table.Finalized() {
		return nil, symbols.ErrNotFinalized
	}
	out := []string{
		".include \"macro.inc\"",
		"",
		".set noat",
		".set noreorder",
		"",
		".section " + sec.Name,
	}
	switch sec.Kind {
	case section.KindText:
		out = append(out, e.text(sec)...)
	case section.KindBss:
		out = append(out, e.bss(sec)...)
	default:
		out = append(out, e.data(sec)...)
	}
	return out, nil
}

func (e *AsmEmitter) text(sec *section.Section) []string {
	var out []string
	var current *boundary.Function
	for _, ins := range sec.Instructions() {
		if f, ok := e.res.FunctionAt(ins.Vram); ok {
			if current != nil {
				out = append(out, e.functionEnd(current)...)
			}
			current = f
			out = append(out, "")
			out = append(out, e.functionStart(f)...)
		} else if sym, ok := e.res.Table.Get(ins.Vram); ok {
			if sym.Type() == symbols.TypeLabel {
				out = append(out, sym.Name()+":")
			} else {
				out = append(out, e.label(e.prof.AsmTextLabel, sym.Name()))
			}
		}
		out = append(out, e.instruction(sec, ins))
	}
	if current != nil {
		out = append(out, e.functionEnd(current)...)
	}
	return out
}

func (e *AsmEmitter) functionStart(f *boundary.Function) []string {
	name := e.name(f.Start)
	var out []string
	if e.prof.FuncAsLabel {
		out = append(out, name+":")
	} else {
		line := e.label(e.prof.AsmTextLabel, name)
		if e.prof.GlabelCount {
			line += fmt.Sprintf(" /* %d instructions */", len(f.Instructions))
		}
		out = append(out, line)
	}
	if e.prof.AsmEntLabel != "" {
		out = append(out, fmt.Sprintf("%s %s", e.prof.AsmEntLabel, name))
	}
	return out
}

func (e *AsmEmitter) functionEnd(f *boundary.Function) []string {
	if e.prof.AsmEndLabel == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s %s", e.prof.AsmEndLabel, e.name(f.Start))}
}

func (e *AsmEmitter) label(keyword, name string) string {
	if keyword == "" {
		return name + ":"
	}
	return keyword + " " + name
}

func (e *AsmEmitter) instruction(sec *section.Section, ins instruction.Instruction) string {
	var b strings.Builder
	if e.prof.AsmComments {
		fmt.Fprintf(&b, "/* %06X %08X %08X */  ", sec.Offset(ins.Vram), ins.Vram, ins.Word)
	}
	if ins.IsUnknown() {
		fmt.Fprintf(&b, ".word 0x%08X", ins.Word)
		return b.String()
	}

	ops := e.operands(ins)
	if len(ops) == 0 {
		b.WriteString(ins.Name())
		return b.String()
	}
	fmt.Fprintf(&b, "%-*s %s", mnemonicWidth, ins.Name(), strings.Join(ops, ", "))
	return b.String()
}

func (e *AsmEmitter) operands(ins instruction.Instruction) []string {
	ref, hasRef := e.res.Refs[ins.Vram]
	var ops []string
	for _, op := range ins.Operands {
		switch op.Kind {
		case instruction.OperandNone:
			continue
		case instruction.OperandGPR:
			ops = append(ops, instruction.GPRName(op.Reg))
		case instruction.OperandFPR:
			ops = append(ops, instruction.FPRName(op.Reg))
		case instruction.OperandCop0:
			ops = append(ops, instruction.Cop0Name(op.Reg))
		case instruction.OperandCop1Control:
			ops = append(ops, fmt.Sprintf("$%d", op.Reg))
		case instruction.OperandImmediate:
			if hasRef {
				ops = append(ops, e.reference(ref))
			} else {
				ops = append(ops, immediate(ins, op.Imm))
			}
		case instruction.OperandMemory:
			offset := immediate(ins, op.Imm)
			if hasRef {
				offset = e.reference(ref)
			}
			ops = append(ops, fmt.Sprintf("%s(%s)", offset, instruction.GPRName(op.Reg)))
		case instruction.OperandTarget:
			ops = append(ops, e.symbolRef(op.Addr))
		}
	}
	return ops
}

func (e *AsmEmitter) reference(ref reloc.Reference) string {
	switch ref.Kind {
	case reloc.RefHi:
		return fmt.Sprintf("%%hi(%s)", e.symbolRef(ref.Target))
	case reloc.RefLo:
		return fmt.Sprintf("%%lo(%s)", e.symbolRef(ref.Target))
	case reloc.RefGpRel:
		return fmt.Sprintf("%%gp_rel(%s)", e.symbolRef(ref.Target))
	case reloc.RefConstHi:
		return fmt.Sprintf("(0x%X >> 16)", ref.Target)
	case reloc.RefConstLo:
		return fmt.Sprintf("(0x%X & 0xFFFF)", ref.Target)
	case reloc.RefConstHiCarry:
		return fmt.Sprintf("((0x%X + 0x8000) >> 16)", ref.Target)
	case reloc.RefFilteredHi:
		return fmt.Sprintf("%%hi(0x%X)", ref.Target)
	case reloc.RefFilteredLo:
		return fmt.Sprintf("%%lo(0x%X)", ref.Target)
	}
	return fmt.Sprintf("0x%X", ref.Target)
}

// symbolRef names addr by the symbol starting there or, when allowed, by
// the symbol containing it plus an offset.
func (e *AsmEmitter) symbolRef(addr uint32) string {
	if sym, ok := e.res.Table.Get(addr); ok {
		return sym.Name()
	}
	if e.prof.SymbolsPlusOffset {
		if sym, off, ok := e.res.Table.Lookup(addr); ok {
			return fmt.Sprintf("%s + 0x%X", sym.Name(), off)
		}
	}
	return fmt.Sprintf("0x%08X", addr)
}

func (e *AsmEmitter) name(addr uint32) string {
	if sym, ok := e.res.Table.Get(addr); ok {
		return sym.Name()
	}
	return fmt.Sprintf("func_%08X", addr)
}

func immediate(ins instruction.Instruction, v int32) string {
	switch ins.Mnemonic {
	case instruction.SLL, instruction.SRL, instruction.SRA,
		instruction.DSLL, instruction.DSRL, instruction.DSRA,
		instruction.DSLL32, instruction.DSRL32, instruction.DSRA32,
		instruction.SYSCALL, instruction.BREAK, instruction.CACHE:
		return strconv.Itoa(int(v))
	}
	if v < 0 {
		return fmt.Sprintf("-0x%X", -int64(v))
	}
	return fmt.Sprintf("0x%X", v)
}

func (e *AsmEmitter) bss(sec *section.Section) []string {
	var out []string
	for _, sym := range e.res.Table.SymbolsIn(sec) {
		if sym.Type() == symbols.TypeLabel {
			continue
		}
		size, _ := sym.Size()
		out = append(out, "", e.label(e.prof.AsmDataLabel, sym.Name()), fmt.Sprintf(".space 0x%X", size))
	}
	return out
}

func (e *AsmEmitter) data(sec *section.Section) []string {
	var out []string
	cursor := sec.Vram
	for _, sym := range e.res.Table.SymbolsIn(sec) {
		if sym.Type() == symbols.TypeLabel {
			continue
		}
		if sym.Address() > cursor {
			out = append(out, e.raw(sec, cursor, sym.Address())...)
		}
		out = append(out, "", e.label(e.prof.AsmDataLabel, sym.Name()))
		out = append(out, e.symbolData(sec, sym)...)
		cursor = sym.End()
	}
	if cursor < sec.End() {
		out = append(out, e.raw(sec, cursor, sec.End())...)
	}
	return out
}

func (e *AsmEmitter) symbolData(sec *section.Section, sym *symbols.Symbol) []string {
	start, end := sym.Address(), sym.End()
	b := sec.Bytes(start)
	if uint32(len(b)) > end-start {
		b = b[:end-start]
	}

	switch sym.Type() {
	case symbols.TypeString:
		if n := strings.IndexByte(string(b), 0); n >= 0 {
			lines := []string{fmt.Sprintf(".asciz \"%s\"", escape(b[:n]))}
			return append(lines, e.raw(sec, start+uint32(n)+1, end)...)
		}
	case symbols.TypeFloat32:
		var lines []string
		addr := start
		for ; addr+4 <= end; addr += 4 {
			bits, _ := sec.WordAt(addr)
			lines = append(lines, ".float "+strconv.FormatFloat(float64(strguess.Float32(bits)), 'g', -1, 32))
		}
		return append(lines, e.raw(sec, addr, end)...)
	case symbols.TypeFloat64:
		var lines []string
		addr := start
		for ; addr+8 <= end; addr += 8 {
			lines = append(lines, ".double "+strconv.FormatFloat(e.double(sec, addr), 'g', -1, 64))
		}
		return append(lines, e.raw(sec, addr, end)...)
	}

	switch {
	case sym.AccessSize() == 1 && e.prof.UseDotByte:
		return e.bytes(sec, start, end)
	case sym.AccessSize() == 2 && e.prof.UseDotShort:
		return e.shorts(sec, start, end)
	}
	return e.raw(sec, start, end)
}

// raw renders [start, end) as words where aligned, bytes elsewhere. Words
// recorded as pointers render as symbol references.
func (e *AsmEmitter) raw(sec *section.Section, start, end uint32) []string {
	var out []string
	addr := start
	for addr < end {
		if addr%4 == 0 && addr+4 <= end {
			if to, ok := e.res.Table.ReferenceAt(addr); ok {
				out = append(out, ".word "+e.symbolRef(to))
			} else {
				word, _ := sec.WordAt(addr)
				out = append(out, fmt.Sprintf(".word 0x%08X", word))
			}
			addr += 4
			continue
		}
		out = append(out, e.bytes(sec, addr, addr+1)...)
		addr++
	}
	return out
}

func (e *AsmEmitter) bytes(sec *section.Section, start, end uint32) []string {
	var out []string
	b := sec.Bytes(start)
	for i := uint32(0); i < end-start && int(i) < len(b); i++ {
		out = append(out, fmt.Sprintf(".byte 0x%02X", b[i]))
	}
	return out
}

func (e *AsmEmitter) shorts(sec *section.Section, start, end uint32) []string {
	var out []string
	addr := start
	for ; addr%2 == 0 && addr+2 <= end; addr += 2 {
		out = append(out, fmt.Sprintf(".short 0x%04X", e.order(sec).Uint16(sec.Bytes(addr))))
	}
	return append(out, e.raw(sec, addr, end)...)
}

func (e *AsmEmitter) double(sec *section.Section, addr uint32) float64 {
	return strguess.Float64(e.order(sec).Uint64(sec.Bytes(addr)))
}

func (e *AsmEmitter) order(sec *section.Section) binary.ByteOrder {
	if sec.Endian() == instruction.EndianLittle {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func escape(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString("\\n")
		case c == '\t':
			sb.WriteString("\\t")
		case c == '\r':
			sb.WriteString("\\r")
		case c >= 0x20 && c < 0x7F:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "\\%03o", c)
		}
	}
	return sb.String()
}
