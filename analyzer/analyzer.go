// Package analyzer defines the diagnostics produced while recovering the
// structure of a MIPS image.
package analyzer

import (
	"fmt"
	"sort"
)

// Severity represents the severity level of a diagnostic.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// Kind names the recoverable condition a diagnostic reports.
type Kind string

const (
	// DecodeAmbiguous: a word matched no instruction encoding.
	DecodeAmbiguous Kind = "DecodeAmbiguous"
	// UnpairedRelocation: a LUI without a matching low part.
	UnpairedRelocation Kind = "UnpairedRelocation"
	// SymbolTypeConflict: type evidence disagreed with a symbol's type.
	SymbolTypeConflict Kind = "SymbolTypeConflict"
	// TruncatedFunction: a function ran into the section end without a return.
	TruncatedFunction Kind = "TruncatedFunction"
	// BoundsViolation: a reference resolved outside every section.
	BoundsViolation Kind = "BoundsViolation"
)

// Diagnostic is a single recoverable condition found during analysis.
type Diagnostic struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Severity Severity `json:"severity" yaml:"severity"`
	Section  string   `json:"section,omitempty" yaml:"section,omitempty"`
	Address  uint32   `json:"address" yaml:"address"`
	// Target is the resolved value involved, when there is one.
	Target  uint32 `json:"target,omitempty" yaml:"target,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// New builds a warning diagnostic.
func New(kind Kind, section string, addr uint32, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: SeverityWarning,
		Section:  section,
		Address:  addr,
		Message:  fmt.Sprintf(format, args...),
	}
}

// WithTarget returns a copy of d carrying a resolved target value.
func (d Diagnostic) WithTarget(target uint32) Diagnostic {
	d.Target = target
	return d
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s 0x%08X: %s", d.Severity, d.Kind, d.Address, d.Message)
}

// Sort orders diagnostics by address, then kind.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Address != diags[j].Address {
			return diags[i].Address < diags[j].Address
		}
		return diags[i].Kind < diags[j].Kind
	})
}

// Count returns the number of diagnostics per kind.
func Count(diags []Diagnostic) map[Kind]int {
	out := make(map[Kind]int)
	for _, d := range diags {
		out[d.Kind]++
	}
	return out
}

// Source represents a symbol in a chain of references.
type Source struct {
	Symbol    string  `json:"symbol" yaml:"symbol"`
	Address   uint32  `json:"address" yaml:"address"`
	Section   string  `json:"section" yaml:"section"`
	CallStack *Source `json:"callStack,omitempty" yaml:"callStack,omitempty"` // The chain of referrers leading to this source.
}

// Copy creates a deep copy of the Source.
func (src *Source) Copy() *Source {
	if src == nil {
		return nil
	}
	var copiedCallStack *Source
	if src.CallStack != nil {
		copiedCallStack = src.CallStack.Copy()
	}

	return &Source{
		Symbol:    src.Symbol,
		Address:   src.Address,
		Section:   src.Section,
		CallStack: copiedCallStack,
	}
}

// AddCallStack appends stack at the end of the chain.
func (src *Source) AddCallStack(stack *Source) {
	if src.CallStack == nil {
		src.CallStack = stack
		return
	}
	src.CallStack.AddCallStack(stack)
}

// Depth returns the number of entries in the chain.
func (src *Source) Depth() int {
	n := 0
	for s := src; s != nil; s = s.CallStack {
		n++
	}
	return n
}
