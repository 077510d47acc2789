package instruction

//    6      5     5     5     5      6 bits
// [  op  |  rs |  rt |  rd |shamt| funct]  R-type
// [  op  |  rs |  rt | address/immediate]  I-type
// [  op  |        target address        ]  J-type

var special = [64]Mnemonic{
	0x00: SLL, 0x02: SRL, 0x03: SRA, 0x04: SLLV, 0x06: SRLV, 0x07: SRAV,
	0x08: JR, 0x09: JALR, 0x0A: MOVZ, 0x0B: MOVN, 0x0C: SYSCALL, 0x0D: BREAK, 0x0F: SYNC,
	0x10: MFHI, 0x11: MTHI, 0x12: MFLO, 0x13: MTLO, 0x14: DSLLV, 0x16: DSRLV, 0x17: DSRAV,
	0x18: MULT, 0x19: MULTU, 0x1A: DIV, 0x1B: DIVU, 0x1C: DMULT, 0x1D: DMULTU, 0x1E: DDIV, 0x1F: DDIVU,
	0x20: ADD, 0x21: ADDU, 0x22: SUB, 0x23: SUBU, 0x24: AND, 0x25: OR, 0x26: XOR, 0x27: NOR,
	0x2A: SLT, 0x2B: SLTU, 0x2C: DADD, 0x2D: DADDU, 0x2E: DSUB, 0x2F: DSUBU,
	0x30: TGE, 0x31: TGEU, 0x32: TLT, 0x33: TLTU, 0x34: TEQ, 0x36: TNE,
	0x38: DSLL, 0x3A: DSRL, 0x3B: DSRA, 0x3C: DSLL32, 0x3E: DSRL32, 0x3F: DSRA32,
}

var regimm = [32]Mnemonic{
	0x00: BLTZ, 0x01: BGEZ, 0x02: BLTZL, 0x03: BGEZL,
	0x08: TGEI, 0x09: TGEIU, 0x0A: TLTI, 0x0B: TLTIU, 0x0C: TEQI, 0x0E: TNEI,
	0x10: BLTZAL, 0x11: BGEZAL, 0x12: BLTZALL, 0x13: BGEZALL,
}

var primary = [64]Mnemonic{
	0x02: J, 0x03: JAL, 0x04: BEQ, 0x05: BNE, 0x06: BLEZ, 0x07: BGTZ,
	0x08: ADDI, 0x09: ADDIU, 0x0A: SLTI, 0x0B: SLTIU, 0x0C: ANDI, 0x0D: ORI, 0x0E: XORI, 0x0F: LUI,
	0x14: BEQL, 0x15: BNEL, 0x16: BLEZL, 0x17: BGTZL, 0x18: DADDI, 0x19: DADDIU, 0x1A: LDL, 0x1B: LDR,
	0x20: LB, 0x21: LH, 0x22: LWL, 0x23: LW, 0x24: LBU, 0x25: LHU, 0x26: LWR, 0x27: LWU,
	0x28: SB, 0x29: SH, 0x2A: SWL, 0x2B: SW, 0x2C: SDL, 0x2D: SDR, 0x2E: SWR, 0x2F: CACHE,
	0x30: LL, 0x31: LWC1, 0x34: LLD, 0x35: LDC1, 0x37: LD,
	0x38: SC, 0x39: SWC1, 0x3C: SCD, 0x3D: SDC1, 0x3F: SD,
}

var fpArith = [64]Mnemonic{
	0x00: ADD_F, 0x01: SUB_F, 0x02: MUL_F, 0x03: DIV_F, 0x04: SQRT_F, 0x05: ABS_F, 0x06: MOV_F, 0x07: NEG_F,
	0x08: ROUND_L_F, 0x09: TRUNC_L_F, 0x0A: CEIL_L_F, 0x0B: FLOOR_L_F,
	0x0C: ROUND_W_F, 0x0D: TRUNC_W_F, 0x0E: CEIL_W_F, 0x0F: FLOOR_W_F,
	0x20: CVT_S_F, 0x21: CVT_D_F, 0x24: CVT_W_F, 0x25: CVT_L_F,
}

// Decode turns a word located at vram into an Instruction. Decoding never
// fails: words that match no rule come back with Type Unknown.
func Decode(word, vram uint32) Instruction {
	ins := Instruction{Word: word, Vram: vram}
	opcode := word >> 26

	switch opcode {
	case 0x00:
		decodeSpecial(&ins)
	case 0x01:
		decodeRegimm(&ins)
	case 0x02, 0x03: // J-Type Instructions (Jump)
		ins.Mnemonic = primary[opcode]
		ins.Type = JType
		target := ((vram + 4) & 0xF0000000) | ((word & 0x03FFFFFF) << 2)
		ins.Operands[0] = Operand{Kind: OperandTarget, Addr: target}
	case 0x10:
		decodeCop0(&ins)
	case 0x11:
		decodeCop1(&ins)
	default:
		decodeImmediate(&ins, primary[opcode])
	}

	if ins.Mnemonic == INVALID {
		return Instruction{Word: word, Vram: vram, Type: Unknown}
	}
	simplify(&ins)
	return ins
}

// DecodeBytes reads one word from b using the given endianness and decodes it.
func DecodeBytes(b []byte, vram uint32, e Endian) (Instruction, error) {
	word, err := e.Word(b)
	if err != nil {
		return Instruction{}, err
	}
	return Decode(word, vram), nil
}

func gpr(reg uint8) Operand { return Operand{Kind: OperandGPR, Reg: reg} }
func fpr(reg uint8) Operand { return Operand{Kind: OperandFPR, Reg: reg} }
func imm(v int32) Operand   { return Operand{Kind: OperandImmediate, Imm: v} }

func branchTarget(ins *Instruction) Operand {
	return Operand{Kind: OperandTarget, Addr: ins.Vram + 4 + uint32(ins.SignedImm()<<2)}
}

func decodeSpecial(ins *Instruction) {
	ins.Mnemonic = special[ins.Funct()]
	ins.Type = RType
	rs, rt, rd, sa := ins.Rs(), ins.Rt(), ins.Rd(), ins.Sa()

	switch ins.Mnemonic {
	case SLL, SRL, SRA, DSLL, DSRL, DSRA, DSLL32, DSRL32, DSRA32:
		ins.Operands = [3]Operand{gpr(rd), gpr(rt), imm(int32(sa))}
	case SLLV, SRLV, SRAV, DSLLV, DSRLV, DSRAV:
		ins.Operands = [3]Operand{gpr(rd), gpr(rt), gpr(rs)}
	case JR:
		ins.Operands[0] = gpr(rs)
	case JALR:
		if rd == RegRA {
			ins.Operands[0] = gpr(rs)
		} else {
			ins.Operands = [3]Operand{gpr(rd), gpr(rs)}
		}
	case SYSCALL, BREAK:
		if code := (ins.Word >> 6) & 0xFFFFF; code != 0 {
			ins.Operands[0] = imm(int32(code))
		}
	case SYNC:
	case MFHI, MFLO:
		ins.Operands[0] = gpr(rd)
	case MTHI, MTLO:
		ins.Operands[0] = gpr(rs)
	case MULT, MULTU, DIV, DIVU, DMULT, DMULTU, DDIV, DDIVU, TGE, TGEU, TLT, TLTU, TEQ, TNE:
		ins.Operands = [3]Operand{gpr(rs), gpr(rt)}
	default:
		ins.Operands = [3]Operand{gpr(rd), gpr(rs), gpr(rt)}
	}
}

func decodeRegimm(ins *Instruction) {
	ins.Mnemonic = regimm[ins.Rt()]
	ins.Type = IType
	switch ins.Mnemonic {
	case TGEI, TGEIU, TLTI, TLTIU, TEQI, TNEI:
		ins.Operands = [3]Operand{gpr(ins.Rs()), imm(ins.SignedImm())}
	default:
		ins.Operands = [3]Operand{gpr(ins.Rs()), branchTarget(ins)}
	}
}

func decodeImmediate(ins *Instruction, m Mnemonic) {
	ins.Mnemonic = m
	ins.Type = IType
	rs, rt := ins.Rs(), ins.Rt()
	mem := Operand{Kind: OperandMemory, Reg: rs, Imm: ins.SignedImm()}

	switch m {
	case BEQ, BNE, BEQL, BNEL:
		ins.Operands = [3]Operand{gpr(rs), gpr(rt), branchTarget(ins)}
	case BLEZ, BGTZ, BLEZL, BGTZL:
		ins.Operands = [3]Operand{gpr(rs), branchTarget(ins)}
	case LUI:
		ins.Operands = [3]Operand{gpr(rt), imm(int32(ins.Imm()))}
	case ANDI, ORI, XORI:
		ins.Operands = [3]Operand{gpr(rt), gpr(rs), imm(int32(ins.Imm()))}
	case ADDI, ADDIU, SLTI, SLTIU, DADDI, DADDIU:
		ins.Operands = [3]Operand{gpr(rt), gpr(rs), imm(ins.SignedImm())}
	case LWC1, LDC1, SWC1, SDC1:
		ins.Operands = [3]Operand{fpr(rt), mem}
	case CACHE:
		ins.Operands = [3]Operand{imm(int32(rt)), mem}
	case INVALID:
	default: // loads and stores
		ins.Operands = [3]Operand{gpr(rt), mem}
	}
}

func decodeCop0(ins *Instruction) {
	ins.Type = CopType
	rs := ins.Rs()
	cop0 := Operand{Kind: OperandCop0, Reg: ins.Rd()}
	switch rs {
	case 0x00:
		ins.Mnemonic = MFC0
	case 0x01:
		ins.Mnemonic = DMFC0
	case 0x04:
		ins.Mnemonic = MTC0
	case 0x05:
		ins.Mnemonic = DMTC0
	case 0x10:
		switch ins.Funct() {
		case 0x01:
			ins.Mnemonic = TLBR
		case 0x02:
			ins.Mnemonic = TLBWI
		case 0x06:
			ins.Mnemonic = TLBWR
		case 0x08:
			ins.Mnemonic = TLBP
		case 0x18:
			ins.Mnemonic = ERET
		}
		return
	default:
		return
	}
	ins.Operands = [3]Operand{gpr(ins.Rt()), cop0}
}

func decodeCop1(ins *Instruction) {
	ins.Type = CopType
	ft, fs, fd := ins.Rt(), ins.Rd(), ins.Sa()

	switch ins.Rs() {
	case 0x00, 0x01, 0x04, 0x05:
		ins.Mnemonic = [8]Mnemonic{0x00: MFC1, 0x01: DMFC1, 0x04: MTC1, 0x05: DMTC1}[ins.Rs()]
		ins.Operands = [3]Operand{gpr(ins.Rt()), fpr(fs)}
	case 0x02, 0x06:
		ins.Mnemonic = CFC1
		if ins.Rs() == 0x06 {
			ins.Mnemonic = CTC1
		}
		ins.Operands = [3]Operand{gpr(ins.Rt()), {Kind: OperandCop1Control, Reg: fs}}
	case 0x08:
		ins.Mnemonic = [4]Mnemonic{BC1F, BC1T, BC1FL, BC1TL}[ins.Rt()&0x3]
		ins.Operands[0] = branchTarget(ins)
	case 0x10, 0x11:
		ins.Fmt = FmtS
		if ins.Rs() == 0x11 {
			ins.Fmt = FmtD
		}
		funct := ins.Funct()
		if funct >= 0x30 {
			ins.Mnemonic = fpCompare[funct&0xF]
			ins.Operands = [3]Operand{fpr(fs), fpr(ft)}
			return
		}
		m := fpArith[funct]
		// a conversion to the instruction's own format does not exist
		if (m == CVT_S_F && ins.Fmt == FmtS) || (m == CVT_D_F && ins.Fmt == FmtD) {
			return
		}
		ins.Mnemonic = m
		switch m {
		case ADD_F, SUB_F, MUL_F, DIV_F:
			ins.Operands = [3]Operand{fpr(fd), fpr(fs), fpr(ft)}
		case INVALID:
		default:
			ins.Operands = [3]Operand{fpr(fd), fpr(fs)}
		}
	case 0x14, 0x15:
		ins.Fmt = FmtW
		if ins.Rs() == 0x15 {
			ins.Fmt = FmtL
		}
		switch ins.Funct() {
		case 0x20:
			ins.Mnemonic = CVT_S_F
		case 0x21:
			ins.Mnemonic = CVT_D_F
		default:
			return
		}
		ins.Operands = [3]Operand{fpr(fd), fpr(fs)}
	}
}

// simplify rewrites canonical encodings into the pseudo-instructions
// assemblers accept.
func simplify(ins *Instruction) {
	rs, rt, rd := ins.Rs(), ins.Rt(), ins.Rd()
	switch ins.Mnemonic {
	case SLL:
		if ins.Word == 0 {
			ins.Mnemonic = NOP
			ins.Operands = [3]Operand{}
		}
	case ADDU, DADDU, OR:
		if rt == RegZero {
			ins.Mnemonic = MOVE
			ins.Operands = [3]Operand{gpr(rd), gpr(rs)}
		}
	case SUBU:
		if rs == RegZero {
			ins.Mnemonic = NEGU
			ins.Operands = [3]Operand{gpr(rd), gpr(rt)}
		}
	case NOR:
		if rt == RegZero {
			ins.Mnemonic = NOT
			ins.Operands = [3]Operand{gpr(rd), gpr(rs)}
		}
	case BEQ:
		switch {
		case rs == RegZero && rt == RegZero:
			ins.Mnemonic = B
			ins.Operands = [3]Operand{branchTarget(ins)}
		case rt == RegZero:
			ins.Mnemonic = BEQZ
			ins.Operands = [3]Operand{gpr(rs), branchTarget(ins)}
		}
	case BNE:
		if rt == RegZero {
			ins.Mnemonic = BNEZ
			ins.Operands = [3]Operand{gpr(rs), branchTarget(ins)}
		}
	case BEQL:
		if rt == RegZero {
			ins.Mnemonic = BEQZL
			ins.Operands = [3]Operand{gpr(rs), branchTarget(ins)}
		}
	case BNEL:
		if rt == RegZero {
			ins.Mnemonic = BNEZL
			ins.Operands = [3]Operand{gpr(rs), branchTarget(ins)}
		}
	case BGEZAL:
		if rs == RegZero {
			ins.Mnemonic = BAL
			ins.Operands = [3]Operand{branchTarget(ins)}
		}
	}
}
