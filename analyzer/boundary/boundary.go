// Package boundary partitions text sections into functions.
package boundary

import (
	"errors"
	"fmt"
	"sort"

	"github.com/apex/log"

	"github.com/ChainSafe/mipsrecover/analyzer"
	"github.com/ChainSafe/mipsrecover/common/lifo"
	"github.com/ChainSafe/mipsrecover/instruction"
	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/section"
	"github.com/ChainSafe/mipsrecover/symbols"
)

// State is a state of the boundary machine.
type State int

const (
	// StateStart begins a new function at the current address.
	StateStart State = iota
	// StateBody accumulates instructions until a final return.
	StateBody
	// StateDelaySlot consumes the delay slot of the final return.
	StateDelaySlot
	// StatePadding absorbs alignment NOPs after a return.
	StatePadding
)

func (s State) String() string {
	return [...]string{"START", "BODY", "DELAY_SLOT", "PADDING"}[s]
}

// Reason tells why a function ended where it did.
type Reason string

const (
	ReasonReturn     Reason = "return"
	ReasonHint       Reason = "trusted hint"
	ReasonCall       Reason = "call target"
	ReasonSectionEnd Reason = "section end"
)

// Function is a span of a text section.
type Function struct {
	Start        uint32
	End          uint32
	Instructions []instruction.Instruction
	// Labels are interior branch targets, ascending.
	Labels    []uint32
	Truncated bool
	Reason    Reason
}

// Size returns the function size in bytes.
func (f *Function) Size() uint32 {
	return f.End - f.Start
}

// Contains reports whether addr is inside the function.
func (f *Function) Contains(addr uint32) bool {
	return addr >= f.Start && addr < f.End
}

// Result is the output of analyzing one section.
type Result struct {
	Functions      []*Function
	FileBoundaries []uint32
	Diagnostics    []analyzer.Diagnostic
}

// Analyzer splits text sections into functions and records control flow
// evidence in the symbol table.
type Analyzer struct {
	prof  *profile.Profile
	table *symbols.Table
}

// NewAnalyzer returns an analyzer feeding table.
func NewAnalyzer(prof *profile.Profile, table *symbols.Table) *Analyzer {
	return &Analyzer{prof: prof, table: table}
}

type machine struct {
	*Analyzer
	sec    *section.Section
	instrs []instruction.Instruction
	state  State

	start    int // index of the first instruction of the open function
	farthest uint32
	splits   map[uint32]Reason
	retro    lifo.Stack[uint32]
	res      Result
}

// Analyze runs the boundary state machine over the decoded instructions of
// sec, in address order. The returned functions partition the section.
func (a *Analyzer) Analyze(sec *section.Section, instrs []instruction.Instruction) Result {
	m := &machine{
		Analyzer: a,
		sec:      sec,
		instrs:   instrs,
		state:    StateStart,
		splits:   make(map[uint32]Reason),
	}
	if len(instrs) == 0 {
		return m.res
	}

	for i := range instrs {
		m.step(i)
	}
	m.closeAt(len(instrs), ReasonSectionEnd)

	for !m.retro.IsEmpty() {
		target, _ := m.retro.Pop()
		m.res.split(m.sec.Name, target)
	}
	m.finish()
	return m.res
}

func (m *machine) step(i int) {
	ins := m.instrs[i]
	addr := ins.Vram

	if m.state != StateStart && addr != m.instrs[m.start].Vram {
		if reason, ok := m.splitAt(addr); ok {
			m.closeAt(i, reason)
			m.transition(addr, StateStart)
		}
	}

	switch m.state {
	case StateStart:
		m.open(i)
	case StateDelaySlot:
		m.observe(ins)
		m.transition(addr, StatePadding)
		return
	case StatePadding:
		if ins.IsNop() && m.absorbPadding(i) {
			return
		}
		if ins.IsUnknown() {
			// not a plausible function start, the function goes on
			m.transition(addr, StateBody)
			break
		}
		m.closeAt(i, ReasonReturn)
		m.open(i)
	}

	m.observe(ins)
	if ins.IsReturn() && m.farthest < addr+8 {
		m.transition(addr, StateDelaySlot)
	}
}

// absorbPadding decides whether the NOP at index i still pads the previous
// function.
func (m *machine) absorbPadding(i int) bool {
	align := m.prof.Compiler.FunctionAlignment()
	addr := m.instrs[i].Vram
	if align <= 4 || addr%align != 0 {
		return true
	}
	j := i
	for j < len(m.instrs) && m.instrs[j].IsNop() {
		j++
	}
	if j == len(m.instrs) {
		return true
	}
	return m.instrs[j].Vram%profile.FileAlignment == 0
}

func (m *machine) splitAt(addr uint32) (Reason, bool) {
	if r, ok := m.splits[addr]; ok {
		return r, true
	}
	sym, ok := m.table.Get(addr)
	if !ok || sym.Type() != symbols.TypeFunction {
		return "", false
	}
	if sym.Trusted() {
		return ReasonHint, true
	}
	if m.prof.TrustJalFunctions && len(sym.References()) > 0 {
		return ReasonCall, true
	}
	return "", false
}

func (m *machine) open(i int) {
	m.start = i
	m.farthest = 0
	m.transition(m.instrs[i].Vram, StateBody)
}

func (m *machine) closeAt(i int, reason Reason) {
	end := m.sec.End()
	if i < len(m.instrs) {
		end = m.instrs[i].Vram
	}
	f := &Function{
		Start:        m.instrs[m.start].Vram,
		End:          end,
		Instructions: m.instrs[m.start:i],
		Reason:       reason,
	}
	if reason == ReasonSectionEnd {
		if m.state == StatePadding {
			f.Reason = ReasonReturn
		} else {
			f.Truncated = true
			m.res.Diagnostics = append(m.res.Diagnostics, analyzer.New(analyzer.TruncatedFunction, m.sec.Name, f.Start,
				"function at 0x%08X reaches the end of %s without a return", f.Start, m.sec.Name))
		}
	}

	if reason == ReasonReturn && m.state == StatePadding && i > m.start && end%profile.FileAlignment == 0 && m.instrs[i-1].IsNop() {
		m.res.FileBoundaries = append(m.res.FileBoundaries, end)
		if m.prof.PrintNewFileBoundaries {
			log.WithFields(log.Fields{
				"section": m.sec.Name,
				"address": fmt.Sprintf("0x%08X", end),
			}).Info("New file boundary")
		}
	}
	m.res.Functions = append(m.res.Functions, f)
}

// observe records the control flow evidence of one instruction.
func (m *machine) observe(ins instruction.Instruction) {
	target, ok := ins.Target()
	if !ok {
		return
	}

	if ins.IsCall() {
		if !m.prof.IgnoreBranches {
			m.call(ins.Vram, target)
		}
		return
	}
	if !m.sec.Contains(target) {
		return
	}
	if !m.prof.IgnoreBranches {
		if _, err := m.table.AddReference(ins.Vram, target, symbols.TypeLabel); err != nil && !errors.Is(err, symbols.ErrOutOfBounds) {
			log.WithError(err).Warn("Failed to record branch target")
		}
	}
	if target > m.farthest && (ins.IsBranch() || m.localJump(ins, target)) {
		m.farthest = target
	}
}

// localJump reports a j whose target is not a known function, so it stays
// inside the current function.
func (m *machine) localJump(ins instruction.Instruction, target uint32) bool {
	if ins.Mnemonic != instruction.J {
		return false
	}
	sym, ok := m.table.Get(target)
	return !ok || sym.Type() != symbols.TypeFunction
}

// call promotes a call target to a function. Targets ahead become split
// points, targets behind split already visited code once the pass ends.
func (m *machine) call(from, target uint32) {
	if _, err := m.table.AddReference(from, target, symbols.TypeFunction); err != nil {
		// calls out of the image are normal
		return
	}
	if !m.sec.Contains(target) || !m.prof.TrustJalFunctions {
		return
	}
	start := m.instrs[m.start].Vram
	switch {
	case target > from:
		if _, ok := m.splits[target]; !ok {
			m.splits[target] = ReasonCall
		}
	case target != start:
		m.retro.Push(target)
		if m.prof.Debug.FuncAnalysis {
			log.WithFields(log.Fields{
				"from":   fmt.Sprintf("0x%08X", from),
				"target": fmt.Sprintf("0x%08X", target),
			}).Debug("Backward call target")
		}
	}
}

// SplitAt makes target, a call target found after the sweep, the start of a
// new function of res. It reports whether a function was split.
func (a *Analyzer) SplitAt(sec *section.Section, res *Result, target uint32) bool {
	if !a.prof.TrustJalFunctions || !sec.Contains(target) || !res.split(sec.Name, target) {
		return false
	}
	if _, err := a.table.GetOrCreate(target, symbols.TypeFunction); err != nil {
		log.WithError(err).Warn("Failed to promote function start")
	}
	if a.prof.Debug.FuncAnalysis {
		log.WithField("target", fmt.Sprintf("0x%08X", target)).Debug("Late call target split")
	}
	return true
}

// split cuts the function containing target so that a new function begins
// there.
func (r *Result) split(secName string, target uint32) bool {
	fns := r.Functions
	idx := sort.Search(len(fns), func(i int) bool { return fns[i].End > target })
	if idx == len(fns) || fns[idx].Start == target || !fns[idx].Contains(target) {
		return false
	}
	f := fns[idx]
	n := int(target-f.Start) / 4
	tail := &Function{
		Start:        target,
		End:          f.End,
		Instructions: f.Instructions[n:],
		Truncated:    f.Truncated,
		Reason:       f.Reason,
	}
	f.End = target
	f.Instructions = f.Instructions[:n:n]
	f.Truncated = false
	f.Reason = ReasonCall

	labels := f.Labels
	f.Labels = nil
	for _, l := range labels {
		switch {
		case l < target:
			f.Labels = append(f.Labels, l)
		case l > target:
			tail.Labels = append(tail.Labels, l)
		}
	}

	r.Functions = append(fns[:idx+1], append([]*Function{tail}, fns[idx+1:]...)...)
	for k := range r.Diagnostics {
		d := &r.Diagnostics[k]
		if d.Kind == analyzer.TruncatedFunction && d.Address == f.Start {
			d.Address = tail.Start
			d.Message = fmt.Sprintf("function at 0x%08X reaches the end of %s without a return", tail.Start, secName)
		}
	}
	return true
}

// finish promotes every function start and collects interior labels.
func (m *machine) finish() {
	for _, f := range m.res.Functions {
		if _, err := m.table.GetOrCreate(f.Start, symbols.TypeFunction); err != nil {
			log.WithError(err).Warn("Failed to promote function start")
		}
	}
	fi := 0
	for _, sym := range m.table.SymbolsIn(m.sec) {
		if sym.Type() != symbols.TypeLabel {
			continue
		}
		for fi < len(m.res.Functions) && m.res.Functions[fi].End <= sym.Address() {
			fi++
		}
		if fi == len(m.res.Functions) {
			break
		}
		m.res.Functions[fi].Labels = append(m.res.Functions[fi].Labels, sym.Address())
	}
}

func (m *machine) transition(addr uint32, next State) {
	if m.prof.Debug.FuncAnalysis && next != m.state {
		log.WithFields(log.Fields{
			"address": fmt.Sprintf("0x%08X", addr),
			"from":    m.state,
			"to":      next,
		}).Debug("Function analysis")
	}
	m.state = next
}
