// Package reloc pairs LUI high parts with the low-part instructions that
// complete a 32-bit address or constant.
package reloc

import (
	"fmt"

	"github.com/apex/log"

	"github.com/ChainSafe/mipsrecover/instruction"
	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/symbols"
)

// RefKind tells the emitter how to render a relocated immediate.
type RefKind int

const (
	RefNone         RefKind = iota
	RefHi                   // %hi(sym)
	RefLo                   // %lo(sym)
	RefGpRel                // %gp_rel(sym)
	RefConstHi              // (0xVALUE >> 16)
	RefConstLo              // (0xVALUE & 0xFFFF)
	RefConstHiCarry         // ((0xVALUE + 0x8000) >> 16)
	RefFilteredHi           // %hi(0xVALUE)
	RefFilteredLo           // %lo(0xVALUE)
)

// Reference annotates one instruction with the value its immediate encodes.
type Reference struct {
	Kind   RefKind
	Target uint32
}

// Pair associates a high part with one of its low parts.
type Pair struct {
	High     uint32
	Low      uint32
	Register uint8
	Target   uint32
	// Primary marks the first low part of the high part.
	Primary bool
	// Hint is the data type implied by the low part access, if any.
	Hint symbols.Type
	// Access is the memory access width of the low part, 0 for arithmetic.
	Access int
}

// GpRef is a $gp relative access.
type GpRef struct {
	Address uint32
	Target  uint32
	Hint    symbols.Type
	Access  int
}

// Unpaired is a high part that never met a low part.
type Unpaired struct {
	Address  uint32
	Register uint8
	Imm      uint16
	Reason   string
}

// Call is a jalr through a register holding a paired address.
type Call struct {
	Address  uint32
	Register uint8
	Target   uint32
}

// Result is the output of tracking one function.
type Result struct {
	Pairs     []Pair
	Constants []Pair
	// Filtered holds address pairs whose target the address bounds exclude.
	Filtered []Pair
	GpRefs   []GpRef
	Unpaired []Unpaired
	Calls    []Call
	Refs     map[uint32]Reference
}

// Tracker pairs relocations inside a function.
type Tracker struct {
	prof *profile.Profile
}

// NewTracker returns a tracker configured by prof.
func NewTracker(prof *profile.Profile) *Tracker {
	return &Tracker{prof: prof}
}

type high struct {
	addr   uint32
	imm    uint16
	paired bool
}

// callerSaved lists the registers a call may clobber.
var callerSaved = []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 24, 25}

// Track scans the instructions of one function, in address order, and
// returns its pairs. Pairing never crosses the end of the slice.
func (t *Tracker) Track(instrs []instruction.Instruction) Result {
	res := Result{Refs: make(map[uint32]Reference)}
	var pending [32]*high
	// holds maps a register to the address a low part completed into it
	holds := make(map[uint8]uint32)
	clobberAfter := -1

	drop := func(reg uint8, reason string) {
		h := pending[reg]
		pending[reg] = nil
		if h == nil || h.paired {
			return
		}
		res.Unpaired = append(res.Unpaired, Unpaired{Address: h.addr, Register: reg, Imm: h.imm, Reason: reason})
		if t.prof.Debug.UnpairedLuis {
			log.WithFields(log.Fields{
				"address":  fmt.Sprintf("0x%08X", h.addr),
				"register": instruction.GPRName(reg),
				"reason":   reason,
			}).Debug("Unpaired lui")
		}
	}

	for i, ins := range instrs {
		if ins.IsUnknown() {
			continue
		}

		if ins.IsHighPart() {
			rt := ins.Rt()
			if rt != instruction.RegZero {
				drop(rt, "overwritten by another lui")
				delete(holds, rt)
				pending[rt] = &high{addr: ins.Vram, imm: ins.Imm()}
			}
		} else {
			var target uint32
			var isAddr bool
			if base, ok := ins.BaseRegister(); ok {
				if h := pending[base]; h != nil {
					target, isAddr = t.pairLow(&res, h, base, ins)
				} else if base == instruction.RegGP && t.prof.GP != nil && ins.Mnemonic != instruction.ORI {
					t.gpRel(&res, ins)
				}
			}
			if ins.Mnemonic == instruction.JALR {
				if to, ok := holds[ins.Rs()]; ok {
					res.Calls = append(res.Calls, Call{Address: ins.Vram, Register: ins.Rs(), Target: to})
				}
			}
			if dst, ok := ins.DestinationGPR(); ok {
				delete(holds, dst)
				if isAddr {
					holds[dst] = target
				}
				if pending[dst] != nil && !keepsHigh(ins, dst) {
					drop(dst, fmt.Sprintf("overwritten by %s", ins.Name()))
				}
			}
		}

		if i == clobberAfter {
			for _, reg := range callerSaved {
				drop(reg, "clobbered by call")
				delete(holds, reg)
			}
		}
		if ins.IsCall() {
			clobberAfter = i + 1
		}
	}

	for reg := range pending {
		drop(uint8(reg), "function end")
	}
	return res
}

// keepsHigh reports `addu hi, hi, rX` style indexing, which keeps the
// register usable as a high part.
func keepsHigh(ins instruction.Instruction, reg uint8) bool {
	if ins.Mnemonic != instruction.ADDU && ins.Mnemonic != instruction.DADDU {
		return false
	}
	return ins.Rd() == reg && (ins.Rs() == reg || ins.Rt() == reg)
}

// pairLow records the pair of h and ins. It returns the address the low part
// computes into its destination register, if it is an in-bounds address.
func (t *Tracker) pairLow(res *Result, h *high, base uint8, ins instruction.Instruction) (uint32, bool) {
	primary := !h.paired
	h.paired = true

	if ins.Mnemonic == instruction.ORI {
		value := uint32(h.imm)<<16 | uint32(ins.Imm())
		res.Constants = append(res.Constants, Pair{High: h.addr, Low: ins.Vram, Register: base, Target: value, Primary: primary})
		setHigh(res, h.addr, Reference{Kind: RefConstHi, Target: value})
		res.Refs[ins.Vram] = Reference{Kind: RefConstLo, Target: value}
		return 0, false
	}

	target := uint32(h.imm)<<16 + uint32(ins.SignedImm())
	pair := Pair{
		High:     h.addr,
		Low:      ins.Vram,
		Register: base,
		Target:   target,
		Primary:  primary,
		Hint:     accessHint(ins),
		Access:   ins.AccessSize(),
	}

	if t.prof.Filtered(target) {
		res.Filtered = append(res.Filtered, pair)
		switch {
		case t.prof.FilteredAsHiLo:
			setHigh(res, h.addr, Reference{Kind: RefFilteredHi, Target: target})
			res.Refs[ins.Vram] = Reference{Kind: RefFilteredLo, Target: target}
		case t.prof.FilteredAsConstants:
			// the low part sign-extends, so the high part carries and the
			// low part keeps its raw immediate
			setHigh(res, h.addr, Reference{Kind: RefConstHiCarry, Target: target})
		}
		return 0, false
	}

	res.Pairs = append(res.Pairs, pair)
	setHigh(res, h.addr, Reference{Kind: RefHi, Target: target})
	res.Refs[ins.Vram] = Reference{Kind: RefLo, Target: target}
	return target, ins.AccessSize() == 0
}

// setHigh keeps the reference of the primary pair on the high part.
func setHigh(res *Result, addr uint32, ref Reference) {
	if _, ok := res.Refs[addr]; !ok {
		res.Refs[addr] = ref
	}
}

func (t *Tracker) gpRel(res *Result, ins instruction.Instruction) {
	target := *t.prof.GP + uint32(ins.SignedImm())
	res.GpRefs = append(res.GpRefs, GpRef{Address: ins.Vram, Target: target, Hint: accessHint(ins), Access: ins.AccessSize()})
	res.Refs[ins.Vram] = Reference{Kind: RefGpRel, Target: target}
}

func accessHint(ins instruction.Instruction) symbols.Type {
	if !ins.IsFloatAccess() {
		return symbols.TypeUnknown
	}
	if ins.AccessSize() == 8 {
		return symbols.TypeFloat64
	}
	return symbols.TypeFloat32
}
