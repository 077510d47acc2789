// Package disassembler runs every analysis stage over the sections of one
// image and collects the recovered structure.
package disassembler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/apex/log"

	"github.com/ChainSafe/mipsrecover/analyzer"
	"github.com/ChainSafe/mipsrecover/analyzer/boundary"
	"github.com/ChainSafe/mipsrecover/analyzer/pointer"
	"github.com/ChainSafe/mipsrecover/analyzer/reloc"
	"github.com/ChainSafe/mipsrecover/analyzer/strguess"
	"github.com/ChainSafe/mipsrecover/instruction"
	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/section"
	"github.com/ChainSafe/mipsrecover/symbols"
	"github.com/ChainSafe/mipsrecover/symparser"
)

// ErrDecodeAmbiguous aborts a strict run that meets an unknown instruction.
var ErrDecodeAmbiguous = errors.New("unknown instruction")

// Disassembler recovers the structure of an image.
type Disassembler interface {
	Disassemble(sections []*section.Section) (*Result, error)
}

// Result is everything one analysis produced. The table is finalized.
type Result struct {
	Sections  []*section.Section
	Table     *symbols.Table
	Functions []*boundary.Function
	// Refs holds the relocation rendering of text instructions by address.
	Refs     map[uint32]reloc.Reference
	Pairs    []reloc.Pair
	GpRefs   []reloc.GpRef
	Unpaired []reloc.Unpaired
	// Externals are user symbols outside every section.
	Externals      []symparser.Entry
	FileBoundaries []uint32
	Diagnostics    []analyzer.Diagnostic
}

// FunctionAt returns the function starting at addr.
func (r *Result) FunctionAt(addr uint32) (*boundary.Function, bool) {
	idx := sort.Search(len(r.Functions), func(i int) bool { return r.Functions[i].Start >= addr })
	if idx < len(r.Functions) && r.Functions[idx].Start == addr {
		return r.Functions[idx], true
	}
	return nil, false
}

// Engine is the Disassembler implementation. It holds configuration only,
// so one Engine may analyze different images concurrently.
type Engine struct {
	prof    *profile.Profile
	entries []symparser.Entry
}

// New returns an engine configured by prof that seeds every analysis with
// the given user symbols.
func New(prof *profile.Profile, entries []symparser.Entry) *Engine {
	return &Engine{prof: prof, entries: entries}
}

type analysis struct {
	*Engine
	res      *Result
	pointers map[uint32]struct{}
}

// Disassemble analyzes sections, which must not overlap in vram.
func (e *Engine) Disassemble(sections []*section.Section) (*Result, error) {
	ordered := make([]*section.Section, len(sections))
	copy(ordered, sections)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Vram < ordered[j].Vram })

	table := symbols.NewTable(ordered, symbols.Naming{
		BySection: e.prof.NameVarsBySection,
		ByType:    e.prof.NameVarsByType,
	})
	a := &analysis{
		Engine:   e,
		res:      &Result{Sections: ordered, Table: table, Refs: make(map[uint32]reloc.Reference)},
		pointers: make(map[uint32]struct{}),
	}

	if err := a.seed(); err != nil {
		return nil, err
	}
	for _, sec := range ordered {
		if sec.Kind != section.KindText {
			continue
		}
		if err := a.text(sec); err != nil {
			return nil, err
		}
	}
	finder := pointer.NewFinder(e.prof, ordered)
	for _, sec := range ordered {
		a.scan(finder, sec)
	}
	if e.prof.StringGuesser {
		guesser := strguess.NewGuesser(e.prof)
		for _, sec := range ordered {
			if sec.Kind == section.KindData || sec.Kind == section.KindRodata {
				a.guess(guesser, sec)
			}
		}
	}

	for _, c := range table.Conflicts() {
		secName := ""
		if s := table.SectionOf(c.Address); s != nil {
			secName = s.Name
		}
		d := analyzer.New(analyzer.SymbolTypeConflict, secName, c.Address,
			"symbol at 0x%08X kept type %s over %s", c.Address, c.Kept, c.Rejected)
		if c.HasFrom {
			d = d.WithTarget(c.From)
		}
		a.res.Diagnostics = append(a.res.Diagnostics, d)
	}

	if err := table.Finalize(); err != nil {
		return nil, fmt.Errorf("failed to finalize symbol table: %w", err)
	}
	analyzer.Sort(a.res.Diagnostics)

	log.WithFields(log.Fields{
		"symbols":     table.Len(),
		"functions":   len(a.res.Functions),
		"diagnostics": len(a.res.Diagnostics),
	}).Debug("Analysis finished")
	return a.res, nil
}

// seed registers user symbols and one symbol at the start of every data
// section.
func (a *analysis) seed() error {
	table := a.res.Table
	for _, entry := range a.entries {
		_, err := table.AddUserSymbol(entry.Address, entry.Name, entry.Type, entry.Size, a.prof.TrustUserFunctions)
		if errors.Is(err, symbols.ErrOutOfBounds) {
			a.res.Externals = append(a.res.Externals, entry)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to add user symbol %s: %w", entry.Name, err)
		}
	}
	for _, sec := range a.res.Sections {
		if sec.Kind == section.KindText || sec.Size() == 0 {
			continue
		}
		if _, err := table.GetOrCreate(sec.Vram, symbols.TypeUnknown); err != nil {
			return fmt.Errorf("failed to add section symbol for %s: %w", sec.Name, err)
		}
	}
	return nil
}

func (a *analysis) text(sec *section.Section) error {
	instrs := sec.Instructions()
	for _, ins := range instrs {
		if !ins.IsUnknown() {
			continue
		}
		if !a.prof.DisasmUnknown {
			return fmt.Errorf("%w: word 0x%08X at 0x%08X in %s", ErrDecodeAmbiguous, ins.Word, ins.Vram, sec.Name)
		}
		a.res.Diagnostics = append(a.res.Diagnostics, analyzer.New(analyzer.DecodeAmbiguous, sec.Name, ins.Vram,
			"word 0x%08X does not decode to a known instruction", ins.Word))
	}

	ba := boundary.NewAnalyzer(a.prof, a.res.Table)
	br := ba.Analyze(sec, instrs)

	var calls []uint32
	tracker := reloc.NewTracker(a.prof)
	for _, f := range br.Functions {
		rr := tracker.Track(f.Instructions)
		for addr, ref := range rr.Refs {
			a.res.Refs[addr] = ref
		}
		for _, p := range rr.Pairs {
			sym, ok := a.reference(sec, p.Low, p.Target, p.Hint)
			if !ok {
				continue
			}
			if p.Primary {
				_, _ = a.res.Table.AddReference(p.High, p.Target, p.Hint)
			}
			if sym.Address() == p.Target {
				a.res.Table.NoteAccess(p.Target, p.Access)
			}
		}
		for _, g := range rr.GpRefs {
			if sym, ok := a.reference(sec, g.Address, g.Target, g.Hint); ok && sym.Address() == g.Target {
				a.res.Table.NoteAccess(g.Target, g.Access)
			}
		}
		for _, u := range rr.Unpaired {
			a.res.Diagnostics = append(a.res.Diagnostics, analyzer.New(analyzer.UnpairedRelocation, sec.Name, u.Address,
				"lui %s, 0x%04X has no low part: %s", instruction.GPRName(u.Register), u.Imm, u.Reason))
		}
		for _, c := range rr.Calls {
			// calls out of the image are normal
			if _, err := a.res.Table.AddReference(c.Address, c.Target, symbols.TypeFunction); err == nil {
				calls = append(calls, c.Target)
			}
		}
		a.res.Pairs = append(a.res.Pairs, rr.Pairs...)
		a.res.GpRefs = append(a.res.GpRefs, rr.GpRefs...)
		a.res.Unpaired = append(a.res.Unpaired, rr.Unpaired...)
	}

	for _, target := range calls {
		ba.SplitAt(sec, &br, target)
	}
	a.res.Functions = append(a.res.Functions, br.Functions...)
	a.res.FileBoundaries = append(a.res.FileBoundaries, br.FileBoundaries...)
	a.res.Diagnostics = append(a.res.Diagnostics, br.Diagnostics...)
	return nil
}

// reference records from -> to. Targets in text are labels unless the
// evidence says code. Targets outside every section become diagnostics.
func (a *analysis) reference(sec *section.Section, from, to uint32, hint symbols.Type) (*symbols.Symbol, bool) {
	if s := a.res.Table.SectionOf(to); s != nil && s.Kind == section.KindText && !hint.IsCode() {
		hint = symbols.TypeLabel
	}
	if !a.prof.AddNewSymbols && a.res.Table.SectionOf(to) != nil {
		if _, ok := a.res.Table.Get(to); !ok {
			return nil, false
		}
	}
	sym, err := a.res.Table.AddReference(from, to, hint)
	if errors.Is(err, symbols.ErrOutOfBounds) {
		a.res.Diagnostics = append(a.res.Diagnostics, analyzer.New(analyzer.BoundsViolation, sec.Name, from,
			"reference to 0x%08X is outside every section", to).WithTarget(to))
		return nil, false
	}
	if err != nil {
		log.WithError(err).WithField("address", fmt.Sprintf("0x%08X", from)).Warn("Failed to record reference")
		return nil, false
	}
	return sym, true
}

func (a *analysis) scan(finder *pointer.Finder, sec *section.Section) {
	pr := finder.Scan(sec)
	for _, w := range pr.Candidates {
		if _, ok := a.reference(sec, w.Address, w.Value, w.Hint()); ok {
			a.pointers[w.Address] = struct{}{}
		}
	}
	for _, w := range pr.Dangling {
		a.res.Diagnostics = append(a.res.Diagnostics, analyzer.New(analyzer.BoundsViolation, sec.Name, w.Address,
			"word 0x%08X looks like an address but is outside every section", w.Value).WithTarget(w.Value))
	}
}

// guess refines the data symbols of sec from their contents. A string that
// ends before the next symbol leaves a new symbol at the following word.
func (a *analysis) guess(g *strguess.Guesser, sec *section.Section) {
	table := a.res.Table
	var queue []uint32
	for _, sym := range table.SymbolsIn(sec) {
		queue = append(queue, sym.Address())
	}

	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]

		sym, ok := table.Get(addr)
		if !ok || !a.guessable(sym) {
			continue
		}
		bound := table.Bound(addr)
		b := sec.Bytes(addr)
		if b == nil || bound <= addr {
			continue
		}
		if span := bound - addr; uint32(len(b)) > span {
			b = b[:span]
		}
		if a.holdsPointer(addr, bound) {
			continue
		}

		res := g.Guess(b, addr)
		if res.Type == symbols.TypeUnknown {
			continue
		}
		if _, err := table.GetOrCreate(addr, res.Type); err != nil {
			log.WithError(err).Warn("Failed to refine symbol type")
			continue
		}
		if err := table.SetSize(addr, res.Size); err != nil {
			log.WithError(err).Warn("Failed to set symbol size")
			continue
		}

		next := (addr + res.Size + 3) &^ 3
		if res.Type != symbols.TypeString || next >= bound || next < addr || allZero(sec.Bytes(next)[:bound-next]) {
			continue
		}
		if _, err := table.GetOrCreate(next, symbols.TypeUnknown); err == nil {
			queue = append(queue, next)
		}
	}
}

func (a *analysis) guessable(sym *symbols.Symbol) bool {
	switch sym.Type() {
	case symbols.TypeFunction, symbols.TypeLabel, symbols.TypeString, symbols.TypeFloat32, symbols.TypeFloat64:
		return false
	}
	return true
}

func (a *analysis) holdsPointer(start, end uint32) bool {
	for addr := (start + 3) &^ 3; addr < end && addr >= start; addr += 4 {
		if _, ok := a.pointers[addr]; ok {
			return true
		}
	}
	return false
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
