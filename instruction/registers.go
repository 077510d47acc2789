package instruction

import "fmt"

// Constants defining MIPS register indexes.
const (
	RegZero = 0  // $zero register index in MIPS
	RegAT   = 1  // $at (assembler temporary)
	RegV0   = 2  // $v0 register index in MIPS
	RegA0   = 4  // $a0 (first argument)
	RegGP   = 28 // $gp (global pointer)
	RegSP   = 29 // $sp (Stack Pointer)
	RegFP   = 30 // $fp
	RegRA   = 31 // $ra (return address)
)

var gprNames = [32]string{
	"$zero", "$at", "$v0", "$v1", "$a0", "$a1", "$a2", "$a3",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7",
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t8", "$t9", "$k0", "$k1", "$gp", "$sp", "$fp", "$ra",
}

var cop0Names = [32]string{
	"Index", "Random", "EntryLo0", "EntryLo1", "Context", "PageMask", "Wired", "Reserved07",
	"BadVaddr", "Count", "EntryHi", "Compare", "Status", "Cause", "EPC", "PRevID",
	"Config", "LLAddr", "WatchLo", "WatchHi", "XContext", "Reserved21", "Reserved22", "Reserved23",
	"Reserved24", "Reserved25", "PErr", "CacheErr", "TagLo", "TagHi", "ErrorEPC", "Reserved31",
}

// GPRName returns the o32 name of a general purpose register.
func GPRName(reg uint8) string {
	return gprNames[reg&0x1F]
}

// FPRName returns the name of a floating point register.
func FPRName(reg uint8) string {
	return fmt.Sprintf("$f%d", reg&0x1F)
}

// Cop0Name returns the name of a system control coprocessor register.
func Cop0Name(reg uint8) string {
	return cop0Names[reg&0x1F]
}
