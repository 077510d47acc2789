package common

import (
	"fmt"

	"github.com/ChainSafe/mipsrecover/analyzer"
	"github.com/ChainSafe/mipsrecover/symbols"
)

// TraceReferrers follows the referrers of the named symbol back to a symbol
// accepted by endCond. When no such chain exists it settles for a symbol
// nothing references. The returned chain starts at the named symbol.
func TraceReferrers(
	table *symbols.Table,
	name string,
	endCond func(string) bool,
) (*analyzer.Source, error) {
	sym, ok := table.ByName(name)
	if !ok {
		return nil, fmt.Errorf("could not find symbol %s", name)
	}
	for _, allowRoot := range []bool{false, true} {
		src, err := traceFrom(table, sym, endCond, allowRoot)
		if err != nil {
			return nil, err
		}
		if src != nil {
			return src, nil
		}
	}
	return nil, fmt.Errorf("no trace found to root for %s", name)
}

func traceFrom(table *symbols.Table, start *symbols.Symbol, endCond func(string) bool, allowRoot bool) (*analyzer.Source, error) {
	seen := make(map[uint32]bool)
	var visit func(sym *symbols.Symbol) (*analyzer.Source, error)

	visit = func(sym *symbols.Symbol) (*analyzer.Source, error) {
		if seen[sym.Address()] {
			return nil, nil
		}
		seen[sym.Address()] = true

		source := &analyzer.Source{
			Symbol:  sym.Name(),
			Address: sym.Address(),
		}
		if sym.Section() != nil {
			source.Section = sym.Section().Name
		}
		if endCond(source.Symbol) {
			return source, nil
		}
		parents, err := table.ParentsOf(sym.Address())
		if err != nil {
			return nil, err
		}
		if len(parents) == 0 && allowRoot {
			return source, nil
		}
		for _, parent := range parents {
			ch, err := visit(parent)
			if err != nil {
				return nil, err
			}
			if ch != nil {
				source.AddCallStack(ch)
				return source, nil
			}
		}
		return nil, nil
	}
	return visit(start)
}
