package instruction

// Mnemonic is the closed set of operations the decoder can produce.
type Mnemonic int

//nolint:revive,stylecheck
const (
	INVALID Mnemonic = iota

	// SPECIAL
	SLL
	SRL
	SRA
	SLLV
	SRLV
	SRAV
	JR
	JALR
	MOVZ
	MOVN
	SYSCALL
	BREAK
	SYNC
	MFHI
	MTHI
	MFLO
	MTLO
	DSLLV
	DSRLV
	DSRAV
	MULT
	MULTU
	DIV
	DIVU
	DMULT
	DMULTU
	DDIV
	DDIVU
	ADD
	ADDU
	SUB
	SUBU
	AND
	OR
	XOR
	NOR
	SLT
	SLTU
	DADD
	DADDU
	DSUB
	DSUBU
	TGE
	TGEU
	TLT
	TLTU
	TEQ
	TNE
	DSLL
	DSRL
	DSRA
	DSLL32
	DSRL32
	DSRA32

	// REGIMM
	BLTZ
	BGEZ
	BLTZL
	BGEZL
	TGEI
	TGEIU
	TLTI
	TLTIU
	TEQI
	TNEI
	BLTZAL
	BGEZAL
	BLTZALL
	BGEZALL

	// primary opcodes
	J
	JAL
	BEQ
	BNE
	BLEZ
	BGTZ
	ADDI
	ADDIU
	SLTI
	SLTIU
	ANDI
	ORI
	XORI
	LUI
	BEQL
	BNEL
	BLEZL
	BGTZL
	DADDI
	DADDIU
	LDL
	LDR
	LB
	LH
	LWL
	LW
	LBU
	LHU
	LWR
	LWU
	SB
	SH
	SWL
	SW
	SDL
	SDR
	SWR
	CACHE
	LL
	LWC1
	LLD
	LDC1
	LD
	SC
	SWC1
	SCD
	SDC1
	SD

	// COP0
	MFC0
	DMFC0
	MTC0
	DMTC0
	TLBR
	TLBWI
	TLBWR
	TLBP
	ERET

	// COP1 moves and branches
	MFC1
	DMFC1
	CFC1
	MTC1
	DMTC1
	CTC1
	BC1F
	BC1T
	BC1FL
	BC1TL

	// COP1 arithmetic, rendered with the format suffix
	ADD_F
	SUB_F
	MUL_F
	DIV_F
	SQRT_F
	ABS_F
	MOV_F
	NEG_F
	ROUND_L_F
	TRUNC_L_F
	CEIL_L_F
	FLOOR_L_F
	ROUND_W_F
	TRUNC_W_F
	CEIL_W_F
	FLOOR_W_F
	CVT_S_F
	CVT_D_F
	CVT_W_F
	CVT_L_F
	C_F_F
	C_UN_F
	C_EQ_F
	C_UEQ_F
	C_OLT_F
	C_ULT_F
	C_OLE_F
	C_ULE_F
	C_SF_F
	C_NGLE_F
	C_SEQ_F
	C_NGL_F
	C_LT_F
	C_NGE_F
	C_LE_F
	C_NGT_F

	// pseudo-instructions
	NOP
	MOVE
	B
	BEQZ
	BNEZ
	BEQZL
	BNEZL
	BAL
	NEGU
	NOT

	mnemonicCount
)

var mnemonicNames = [mnemonicCount]string{
	INVALID: "INVALID",

	SLL: "sll", SRL: "srl", SRA: "sra", SLLV: "sllv", SRLV: "srlv", SRAV: "srav",
	JR: "jr", JALR: "jalr", MOVZ: "movz", MOVN: "movn", SYSCALL: "syscall", BREAK: "break", SYNC: "sync",
	MFHI: "mfhi", MTHI: "mthi", MFLO: "mflo", MTLO: "mtlo",
	DSLLV: "dsllv", DSRLV: "dsrlv", DSRAV: "dsrav",
	MULT: "mult", MULTU: "multu", DIV: "div", DIVU: "divu",
	DMULT: "dmult", DMULTU: "dmultu", DDIV: "ddiv", DDIVU: "ddivu",
	ADD: "add", ADDU: "addu", SUB: "sub", SUBU: "subu", AND: "and", OR: "or", XOR: "xor", NOR: "nor",
	SLT: "slt", SLTU: "sltu", DADD: "dadd", DADDU: "daddu", DSUB: "dsub", DSUBU: "dsubu",
	TGE: "tge", TGEU: "tgeu", TLT: "tlt", TLTU: "tltu", TEQ: "teq", TNE: "tne",
	DSLL: "dsll", DSRL: "dsrl", DSRA: "dsra", DSLL32: "dsll32", DSRL32: "dsrl32", DSRA32: "dsra32",

	BLTZ: "bltz", BGEZ: "bgez", BLTZL: "bltzl", BGEZL: "bgezl",
	TGEI: "tgei", TGEIU: "tgeiu", TLTI: "tlti", TLTIU: "tltiu", TEQI: "teqi", TNEI: "tnei",
	BLTZAL: "bltzal", BGEZAL: "bgezal", BLTZALL: "bltzall", BGEZALL: "bgezall",

	J: "j", JAL: "jal", BEQ: "beq", BNE: "bne", BLEZ: "blez", BGTZ: "bgtz",
	ADDI: "addi", ADDIU: "addiu", SLTI: "slti", SLTIU: "sltiu", ANDI: "andi", ORI: "ori", XORI: "xori", LUI: "lui",
	BEQL: "beql", BNEL: "bnel", BLEZL: "blezl", BGTZL: "bgtzl", DADDI: "daddi", DADDIU: "daddiu",
	LDL: "ldl", LDR: "ldr", LB: "lb", LH: "lh", LWL: "lwl", LW: "lw", LBU: "lbu", LHU: "lhu", LWR: "lwr", LWU: "lwu",
	SB: "sb", SH: "sh", SWL: "swl", SW: "sw", SDL: "sdl", SDR: "sdr", SWR: "swr", CACHE: "cache",
	LL: "ll", LWC1: "lwc1", LLD: "lld", LDC1: "ldc1", LD: "ld",
	SC: "sc", SWC1: "swc1", SCD: "scd", SDC1: "sdc1", SD: "sd",

	MFC0: "mfc0", DMFC0: "dmfc0", MTC0: "mtc0", DMTC0: "dmtc0",
	TLBR: "tlbr", TLBWI: "tlbwi", TLBWR: "tlbwr", TLBP: "tlbp", ERET: "eret",

	MFC1: "mfc1", DMFC1: "dmfc1", CFC1: "cfc1", MTC1: "mtc1", DMTC1: "dmtc1", CTC1: "ctc1",
	BC1F: "bc1f", BC1T: "bc1t", BC1FL: "bc1fl", BC1TL: "bc1tl",

	ADD_F: "add", SUB_F: "sub", MUL_F: "mul", DIV_F: "div", SQRT_F: "sqrt", ABS_F: "abs", MOV_F: "mov", NEG_F: "neg",
	ROUND_L_F: "round.l", TRUNC_L_F: "trunc.l", CEIL_L_F: "ceil.l", FLOOR_L_F: "floor.l",
	ROUND_W_F: "round.w", TRUNC_W_F: "trunc.w", CEIL_W_F: "ceil.w", FLOOR_W_F: "floor.w",
	CVT_S_F: "cvt.s", CVT_D_F: "cvt.d", CVT_W_F: "cvt.w", CVT_L_F: "cvt.l",
	C_F_F: "c.f", C_UN_F: "c.un", C_EQ_F: "c.eq", C_UEQ_F: "c.ueq",
	C_OLT_F: "c.olt", C_ULT_F: "c.ult", C_OLE_F: "c.ole", C_ULE_F: "c.ule",
	C_SF_F: "c.sf", C_NGLE_F: "c.ngle", C_SEQ_F: "c.seq", C_NGL_F: "c.ngl",
	C_LT_F: "c.lt", C_NGE_F: "c.nge", C_LE_F: "c.le", C_NGT_F: "c.ngt",

	NOP: "nop", MOVE: "move", B: "b", BEQZ: "beqz", BNEZ: "bnez", BEQZL: "beqzl", BNEZL: "bnezl",
	BAL: "bal", NEGU: "negu", NOT: "not",
}

func (m Mnemonic) String() string {
	if m < 0 || m >= mnemonicCount {
		return mnemonicNames[INVALID]
	}
	return mnemonicNames[m]
}

// FloatFormat is the fmt field of a COP1 arithmetic instruction.
type FloatFormat uint8

const (
	FmtNone FloatFormat = iota
	FmtS
	FmtD
	FmtW
	FmtL
)

func (f FloatFormat) suffix() string {
	switch f {
	case FmtS:
		return ".s"
	case FmtD:
		return ".d"
	case FmtW:
		return ".w"
	case FmtL:
		return ".l"
	default:
		return ""
	}
}

var fpCompare = [16]Mnemonic{
	C_F_F, C_UN_F, C_EQ_F, C_UEQ_F, C_OLT_F, C_ULT_F, C_OLE_F, C_ULE_F,
	C_SF_F, C_NGLE_F, C_SEQ_F, C_NGL_F, C_LT_F, C_NGE_F, C_LE_F, C_NGT_F,
}

func isBranchLikely(m Mnemonic) bool {
	switch m {
	case BEQL, BNEL, BLEZL, BGTZL, BLTZL, BGEZL, BLTZALL, BGEZALL, BC1FL, BC1TL, BEQZL, BNEZL:
		return true
	}
	return false
}

func isBranch(m Mnemonic) bool {
	switch m {
	case BEQ, BNE, BLEZ, BGTZ, BLTZ, BGEZ, BLTZAL, BGEZAL, BC1F, BC1T, B, BEQZ, BNEZ, BAL:
		return true
	}
	return isBranchLikely(m)
}
