package symbols

import (
	"sort"

	"github.com/ChainSafe/mipsrecover/section"
)

// Symbol is the table's record for one starting address. Symbols are only
// created and mutated through their Table.
type Symbol struct {
	address uint32
	typ     Type
	size    uint32
	hasSize bool
	name    string
	user    bool
	trusted bool
	section *section.Section
	refs    map[uint32]struct{}
	// width of the narrowest memory access seen through a reference, 0 if none
	accessSize int
}

func (s *Symbol) Address() uint32 { return s.address }
func (s *Symbol) Type() Type      { return s.typ }
func (s *Symbol) Name() string    { return s.name }

// Size returns the size in bytes and whether it is known.
func (s *Symbol) Size() (uint32, bool) {
	return s.size, s.hasSize
}

// End returns the exclusive end address. Symbols of unknown size end where they start.
func (s *Symbol) End() uint32 {
	return s.address + s.size
}

// Section returns the section that owns the symbol.
func (s *Symbol) Section() *section.Section {
	return s.section
}

// IsUser reports symbols that came from a user symbol file.
func (s *Symbol) IsUser() bool {
	return s.user
}

// Trusted reports a function start known rather than inferred.
func (s *Symbol) Trusted() bool {
	return s.trusted
}

// AccessSize returns the narrowest load/store width seen for the symbol.
func (s *Symbol) AccessSize() int {
	return s.accessSize
}

// References returns the addresses referencing this symbol, ascending.
func (s *Symbol) References() []uint32 {
	out := make([]uint32, 0, len(s.refs))
	for r := range s.refs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortByAddress(syms []*Symbol) {
	sort.Slice(syms, func(i, j int) bool { return syms[i].address < syms[j].address })
}
