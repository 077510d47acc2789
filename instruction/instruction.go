// Package instruction decodes 32-bit MIPS words into structured instructions.
package instruction

// Type defines MIPS instruction categories
type Type string

const (
	RType   Type = "R-Type"
	IType   Type = "I-Type"
	JType   Type = "J-Type"
	CopType Type = "COP-Type"
	// Unknown marks a word no decode rule matched.
	Unknown Type = "Unknown"
)

// OperandKind tells how an operand slot must be interpreted.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandGPR
	OperandFPR
	OperandCop0
	OperandCop1Control
	OperandImmediate
	OperandMemory // Imm(Reg)
	OperandTarget // absolute branch or jump destination in Addr
)

// Operand is one of the (up to three) operand slots of an instruction.
type Operand struct {
	Kind OperandKind
	Reg  uint8
	Imm  int32
	Addr uint32
}

// Instruction is an immutable decoded MIPS word.
type Instruction struct {
	Word     uint32
	Vram     uint32
	Mnemonic Mnemonic
	Type     Type
	Fmt      FloatFormat
	Operands [3]Operand
}

// Name returns the mnemonic, including the floating point format suffix.
func (i Instruction) Name() string {
	return i.Mnemonic.String() + i.Fmt.suffix()
}

// IsUnknown reports whether the word matched no decode rule.
func (i Instruction) IsUnknown() bool {
	return i.Type == Unknown
}

func (i Instruction) Opcode() uint32 { return i.Word >> 26 }
func (i Instruction) Rs() uint8      { return uint8((i.Word >> 21) & 0x1F) }
func (i Instruction) Rt() uint8      { return uint8((i.Word >> 16) & 0x1F) }
func (i Instruction) Rd() uint8      { return uint8((i.Word >> 11) & 0x1F) }
func (i Instruction) Sa() uint8      { return uint8((i.Word >> 6) & 0x1F) }
func (i Instruction) Funct() uint32  { return i.Word & 0x3F }
func (i Instruction) Imm() uint16    { return uint16(i.Word & 0xFFFF) }

// SignedImm returns the sign-extended 16-bit immediate field.
func (i Instruction) SignedImm() int32 {
	return int32(int16(i.Word & 0xFFFF))
}

func (i Instruction) IsNop() bool {
	return i.Mnemonic == NOP
}

// IsBranch reports PC-relative branches, likely forms included.
func (i Instruction) IsBranch() bool {
	return isBranch(i.Mnemonic)
}

func (i Instruction) IsBranchLikely() bool {
	return isBranchLikely(i.Mnemonic)
}

// IsJump reports j, jal, jr and jalr.
func (i Instruction) IsJump() bool {
	switch i.Mnemonic {
	case J, JAL, JR, JALR:
		return true
	}
	return false
}

// IsCall reports instructions that link into $ra (or rd for jalr).
func (i Instruction) IsCall() bool {
	switch i.Mnemonic {
	case JAL, JALR, BAL, BGEZAL, BLTZAL, BGEZALL, BLTZALL:
		return true
	}
	return false
}

// IsReturn reports `jr $ra`.
func (i Instruction) IsReturn() bool {
	return i.Mnemonic == JR && i.Rs() == RegRA
}

// HasDelaySlot reports whether the following instruction is a delay slot.
func (i Instruction) HasDelaySlot() bool {
	return i.IsBranch() || i.IsJump()
}

// Target returns the absolute destination of a branch or j/jal.
func (i Instruction) Target() (uint32, bool) {
	for _, op := range i.Operands {
		if op.Kind == OperandTarget {
			return op.Addr, true
		}
	}
	return 0, false
}

// IsLoad reports memory loads into general purpose or floating point registers.
func (i Instruction) IsLoad() bool {
	switch i.Mnemonic {
	case LB, LBU, LH, LHU, LW, LWU, LWL, LWR, LD, LDL, LDR, LL, LLD, LWC1, LDC1:
		return true
	}
	return false
}

// IsStore reports memory stores.
func (i Instruction) IsStore() bool {
	switch i.Mnemonic {
	case SB, SH, SW, SWL, SWR, SD, SDL, SDR, SC, SCD, SWC1, SDC1:
		return true
	}
	return false
}

// AccessSize returns the width in bytes of a load or store.
func (i Instruction) AccessSize() int {
	switch i.Mnemonic {
	case LB, LBU, SB:
		return 1
	case LH, LHU, SH:
		return 2
	case LW, LWU, LWL, LWR, LL, SW, SWL, SWR, SC, LWC1, SWC1:
		return 4
	case LD, LDL, LDR, LLD, SD, SDL, SDR, SCD, LDC1, SDC1:
		return 8
	}
	return 0
}

// IsFloatAccess reports lwc1/swc1/ldc1/sdc1.
func (i Instruction) IsFloatAccess() bool {
	switch i.Mnemonic {
	case LWC1, SWC1, LDC1, SDC1:
		return true
	}
	return false
}

// IsHighPart reports whether the instruction loads the upper half of an address.
func (i Instruction) IsHighPart() bool {
	return i.Mnemonic == LUI
}

// IsLowPart reports instructions that can consume a %lo relocation: immediate
// arithmetic on a base register, ori constants and memory accesses.
func (i Instruction) IsLowPart() bool {
	switch i.Mnemonic {
	case ADDIU, ADDI, DADDIU, ORI:
		return true
	}
	return i.IsLoad() || i.IsStore()
}

// BaseRegister returns the register a low part instruction offsets from.
func (i Instruction) BaseRegister() (uint8, bool) {
	if !i.IsLowPart() {
		return 0, false
	}
	return i.Rs(), true
}

// DestinationGPR returns the general purpose register the instruction writes.
// Writes to $zero are not reported.
func (i Instruction) DestinationGPR() (uint8, bool) {
	var reg uint8
	switch i.Mnemonic {
	case SLL, SRL, SRA, SLLV, SRLV, SRAV, MOVZ, MOVN, MFHI, MFLO,
		DSLLV, DSRLV, DSRAV, ADD, ADDU, SUB, SUBU, AND, OR, XOR, NOR, SLT, SLTU,
		DADD, DADDU, DSUB, DSUBU, DSLL, DSRL, DSRA, DSLL32, DSRL32, DSRA32,
		JALR, MOVE, NEGU, NOT:
		reg = i.Rd()
	case ADDI, ADDIU, SLTI, SLTIU, ANDI, ORI, XORI, LUI, DADDI, DADDIU,
		LB, LBU, LH, LHU, LW, LWU, LWL, LWR, LD, LDL, LDR, LL, LLD, SC, SCD,
		MFC0, DMFC0, MFC1, DMFC1, CFC1:
		reg = i.Rt()
	case JAL, BAL, BGEZAL, BLTZAL, BGEZALL, BLTZALL:
		reg = RegRA
	default:
		return 0, false
	}
	if reg == RegZero {
		return 0, false
	}
	return reg, true
}
