// Package symbols holds the symbol table and cross-reference graph built
// during analysis.
package symbols

import (
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/dominikbraun/graph"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/ChainSafe/mipsrecover/section"
)

var (
	// ErrFinalized is returned when the table is mutated after Finalize.
	ErrFinalized = errors.New("symbol table is finalized")
	// ErrNotFinalized is returned when rendering needs a finalized table.
	ErrNotFinalized = errors.New("symbol table is not finalized")
	// ErrOutOfBounds is returned for addresses outside every known section.
	ErrOutOfBounds = errors.New("address outside all sections")
)

// Naming selects the autogenerated name prefixes.
type Naming struct {
	BySection bool
	ByType    bool
}

// Conflict records evidence that disagreed with a symbol's type.
type Conflict struct {
	Address  uint32
	From     uint32
	HasFrom  bool
	Kept     Type
	Rejected Type
}

// Table maps addresses to symbols. A Table belongs to one analysis and must
// not be mutated concurrently.
type Table struct {
	sections  []*section.Section
	naming    Naming
	index     *treemap.Map // uint32 -> *Symbol
	refsFrom  map[uint32]uint32
	conflicts []Conflict
	graph     graph.Graph[uint32, uint32]
	finalized bool
}

// NewTable creates an empty table over the given sections.
func NewTable(sections []*section.Section, naming Naming) *Table {
	return &Table{
		sections: sections,
		naming:   naming,
		index:    treemap.NewWith(utils.UInt32Comparator),
		refsFrom: make(map[uint32]uint32),
	}
}

// Sections returns the sections the table covers.
func (t *Table) Sections() []*section.Section {
	return t.sections
}

// SectionOf returns the section containing addr, or nil.
func (t *Table) SectionOf(addr uint32) *section.Section {
	for _, s := range t.sections {
		if s.Contains(addr) {
			return s
		}
	}
	return nil
}

// Finalized reports whether Finalize has run.
func (t *Table) Finalized() bool {
	return t.finalized
}

// Get returns the symbol starting exactly at addr.
func (t *Table) Get(addr uint32) (*Symbol, bool) {
	v, found := t.index.Get(addr)
	if !found {
		return nil, false
	}
	return v.(*Symbol), true
}

// Len returns the number of symbols.
func (t *Table) Len() int {
	return t.index.Size()
}

// GetOrCreate returns the symbol at addr, creating it with hint when absent.
// An existing symbol has its type refined through Merge. Calling it twice
// with the same evidence changes nothing.
func (t *Table) GetOrCreate(addr uint32, hint Type) (*Symbol, error) {
	return t.getOrCreate(addr, hint, 0, false)
}

func (t *Table) getOrCreate(addr uint32, hint Type, from uint32, hasFrom bool) (*Symbol, error) {
	if t.finalized {
		return nil, ErrFinalized
	}
	if sym, ok := t.Get(addr); ok {
		merged, conflict := Merge(sym.typ, hint)
		if conflict {
			t.conflicts = append(t.conflicts, Conflict{Address: addr, From: from, HasFrom: hasFrom, Kept: merged, Rejected: rejected(sym.typ, hint, merged)})
			log.WithFields(log.Fields{
				"address": fmt.Sprintf("0x%08X", addr),
				"current": sym.typ,
				"hint":    hint,
			}).Debug("Symbol type conflict")
		}
		sym.typ = merged
		return sym, nil
	}

	sec := t.SectionOf(addr)
	if sec == nil {
		return nil, fmt.Errorf("%w: 0x%08X", ErrOutOfBounds, addr)
	}
	sym := &Symbol{
		address: addr,
		typ:     hint,
		section: sec,
		refs:    make(map[uint32]struct{}),
	}
	t.index.Put(addr, sym)
	return sym, nil
}

func rejected(cur, ev, merged Type) Type {
	if merged == cur {
		return ev
	}
	return cur
}

// AddReference records that the instruction or word at from refers to to,
// creating the target symbol when absent. Targets outside every section
// yield ErrOutOfBounds and no symbol.
//
// A target inside a user data symbol of known size references that symbol
// instead of creating a new one.
func (t *Table) AddReference(from, to uint32, hint Type) (*Symbol, error) {
	if t.finalized {
		return nil, ErrFinalized
	}
	if _, exists := t.Get(to); !exists {
		if owner, off, ok := t.Lookup(to); ok && owner.user && owner.hasSize && !owner.typ.IsCode() && off < owner.size {
			owner.refs[from] = struct{}{}
			t.refsFrom[from] = to
			return owner, nil
		}
	}
	sym, err := t.getOrCreate(to, hint, from, true)
	if err != nil {
		return nil, err
	}
	sym.refs[from] = struct{}{}
	t.refsFrom[from] = to
	return sym, nil
}

// NoteAccess records a load/store width observed for the symbol at addr.
func (t *Table) NoteAccess(addr uint32, size int) {
	sym, ok := t.Get(addr)
	if !ok || size <= 0 || t.finalized {
		return
	}
	if sym.accessSize == 0 || size < sym.accessSize {
		sym.accessSize = size
	}
}

// SetSize records a size discovered by content analysis. User sizes win.
func (t *Table) SetSize(addr, size uint32) error {
	if t.finalized {
		return ErrFinalized
	}
	sym, ok := t.Get(addr)
	if !ok {
		return fmt.Errorf("%w: no symbol at 0x%08X", ErrOutOfBounds, addr)
	}
	if sym.user && sym.hasSize {
		return nil
	}
	sym.size, sym.hasSize = size, true
	return nil
}

// AddUserSymbol registers an externally supplied symbol. Functions are
// marked trusted when trust is set.
func (t *Table) AddUserSymbol(addr uint32, name string, typ Type, size uint32, trust bool) (*Symbol, error) {
	sym, err := t.GetOrCreate(addr, typ)
	if err != nil {
		return nil, err
	}
	sym.user = true
	if name != "" {
		sym.name = name
	}
	if size > 0 {
		sym.size, sym.hasSize = size, true
	}
	if sym.typ == TypeFunction && trust {
		sym.trusted = true
	}
	return sym, nil
}

// ReferenceAt returns the target recorded for a referencing address.
func (t *Table) ReferenceAt(from uint32) (uint32, bool) {
	to, ok := t.refsFrom[from]
	return to, ok
}

// Conflicts returns the type conflicts seen so far in the order they happened.
func (t *Table) Conflicts() []Conflict {
	return t.conflicts
}

// Symbols returns every symbol in ascending address order.
func (t *Table) Symbols() []*Symbol {
	out := make([]*Symbol, 0, t.index.Size())
	it := t.index.Iterator()
	for it.Next() {
		out = append(out, it.Value().(*Symbol))
	}
	return out
}

// SymbolsIn returns the symbols of one section in ascending address order.
func (t *Table) SymbolsIn(sec *section.Section) []*Symbol {
	var out []*Symbol
	_, v := t.index.Ceiling(sec.Vram)
	for v != nil {
		sym := v.(*Symbol)
		if !sec.Contains(sym.address) {
			break
		}
		out = append(out, sym)
		if sym.address == ^uint32(0) {
			break
		}
		_, v = t.index.Ceiling(sym.address + 1)
	}
	return out
}

// Lookup returns the nearest non-label symbol at or below addr in the same
// section and the offset of addr from its start.
func (t *Table) Lookup(addr uint32) (*Symbol, uint32, bool) {
	sec := t.SectionOf(addr)
	if sec == nil {
		return nil, 0, false
	}
	key := addr
	for {
		_, v := t.index.Floor(key)
		if v == nil {
			return nil, 0, false
		}
		sym := v.(*Symbol)
		if sym.section != sec {
			return nil, 0, false
		}
		if sym.typ != TypeLabel {
			return sym, addr - sym.address, true
		}
		if sym.address == 0 {
			return nil, 0, false
		}
		key = sym.address - 1
	}
}

// Bound returns the start of the next non-label symbol after addr in the
// same section, or the section end.
func (t *Table) Bound(addr uint32) uint32 {
	sec := t.SectionOf(addr)
	if sec == nil {
		return addr
	}
	key := addr
	for key < sec.End()-1 {
		_, v := t.index.Ceiling(key + 1)
		if v == nil {
			break
		}
		sym := v.(*Symbol)
		if sym.address >= sec.End() {
			break
		}
		if sym.typ != TypeLabel {
			return sym.address
		}
		key = sym.address
	}
	return sec.End()
}

// Finalize resolves pending types, computes sizes and names, builds the
// cross-reference graph and locks the table. Finalizing twice is a no-op.
func (t *Table) Finalize() error {
	if t.finalized {
		return nil
	}

	for _, sym := range t.Symbols() {
		if sym.typ == TypeUnknown {
			sym.typ = defaultType(sym.section.Kind)
		}
	}
	for _, sym := range t.Symbols() {
		if sym.typ == TypeLabel {
			sym.size, sym.hasSize = 0, true
		} else {
			bound := t.Bound(sym.address)
			if !sym.hasSize || sym.address+sym.size > bound {
				if sym.hasSize {
					log.WithFields(log.Fields{
						"symbol": fmt.Sprintf("0x%08X", sym.address),
						"size":   sym.size,
					}).Debug("Clipping symbol size to next symbol")
				}
				sym.size = bound - sym.address
			}
			sym.hasSize = true
		}
		if sym.name == "" {
			sym.name = t.autoName(sym)
		}
	}

	g := graph.New(func(addr uint32) uint32 { return addr }, graph.Directed())
	for _, sym := range t.Symbols() {
		if sym.typ == TypeLabel {
			continue
		}
		if err := g.AddVertex(sym.address); err != nil {
			return fmt.Errorf("failed to add vertex: %w", err)
		}
	}
	for from, to := range t.refsFrom {
		src, _, ok := t.Lookup(from)
		if !ok {
			continue
		}
		dst, _, ok := t.Lookup(to)
		if !ok || src == dst {
			continue
		}
		if err := g.AddEdge(src.address, dst.address); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return fmt.Errorf("failed to add edge: %w", err)
		}
	}
	t.graph = g
	t.finalized = true
	return nil
}

// Graph returns the symbol level cross-reference graph. Edges point from the
// referencing symbol to the referenced one. Nil before Finalize.
func (t *Table) Graph() graph.Graph[uint32, uint32] {
	return t.graph
}

// ParentsOf returns the symbols referencing the symbol at addr.
func (t *Table) ParentsOf(addr uint32) ([]*Symbol, error) {
	if !t.finalized {
		return nil, ErrNotFinalized
	}
	preds, err := t.graph.PredecessorMap()
	if err != nil {
		return nil, err
	}
	var out []*Symbol
	for p := range preds[addr] {
		if sym, ok := t.Get(p); ok {
			out = append(out, sym)
		}
	}
	sortByAddress(out)
	return out, nil
}

// ByName finds a symbol by its (finalized or user supplied) name.
func (t *Table) ByName(name string) (*Symbol, bool) {
	for _, sym := range t.Symbols() {
		if sym.name == name {
			return sym, true
		}
	}
	return nil, false
}

func defaultType(k section.Kind) Type {
	switch k {
	case section.KindText:
		return TypeTextData
	case section.KindRodata:
		return TypeRodata
	case section.KindBss:
		return TypeBss
	}
	return TypeGenericData
}

func (t *Table) autoName(sym *Symbol) string {
	switch sym.typ {
	case TypeFunction:
		return fmt.Sprintf("func_%08X", sym.address)
	case TypeLabel:
		return fmt.Sprintf(".L%08X", sym.address)
	}
	if t.naming.ByType {
		switch sym.typ {
		case TypeString:
			return fmt.Sprintf("STR_%08X", sym.address)
		case TypeFloat32:
			return fmt.Sprintf("FLT_%08X", sym.address)
		case TypeFloat64:
			return fmt.Sprintf("DBL_%08X", sym.address)
		}
	}
	if t.naming.BySection {
		switch sym.section.Kind {
		case section.KindRodata:
			return fmt.Sprintf("R_%08X", sym.address)
		case section.KindBss:
			return fmt.Sprintf("B_%08X", sym.address)
		}
	}
	return fmt.Sprintf("D_%08X", sym.address)
}
