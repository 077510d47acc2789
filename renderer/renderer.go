// Package renderer turns analysis results into assembly source and reports.
package renderer

import (
	"io"
	"sort"

	"github.com/ChainSafe/mipsrecover/analyzer"
	"github.com/ChainSafe/mipsrecover/disassembler"
)

// Renderer defines the interface for rendering a report in different formats.
type Renderer interface {
	// Render writes the report in the desired format to the provided writer.
	Render(report *Report, output io.Writer) error

	// Format returns the name of the output format (e.g., "json", "text", "yaml").
	Format() string
}

// Report is the serializable summary of one analysis.
type Report struct {
	Image          string                `json:"image" yaml:"image"`
	Sections       []SectionInfo         `json:"sections" yaml:"sections"`
	Functions      int                   `json:"functions" yaml:"functions"`
	Symbols        []SymbolInfo          `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Externals      []string              `json:"externals,omitempty" yaml:"externals,omitempty"`
	FileBoundaries []uint32              `json:"fileBoundaries,omitempty" yaml:"fileBoundaries,omitempty"`
	Diagnostics    []analyzer.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Trace          *analyzer.Source      `json:"trace,omitempty" yaml:"trace,omitempty"`
}

// SectionInfo describes one section of the image.
type SectionInfo struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`
	Vram uint32 `json:"vram" yaml:"vram"`
	Size uint32 `json:"size" yaml:"size"`
}

// SymbolInfo is one finalized symbol.
type SymbolInfo struct {
	Address    uint32   `json:"address" yaml:"address"`
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type" yaml:"type"`
	Size       uint32   `json:"size" yaml:"size"`
	Section    string   `json:"section" yaml:"section"`
	User       bool     `json:"user,omitempty" yaml:"user,omitempty"`
	References []uint32 `json:"references,omitempty" yaml:"references,omitempty"`
}

// NewReport summarizes res. Symbols are included when withSymbols is set.
func NewReport(image string, res *disassembler.Result, withSymbols bool) *Report {
	r := &Report{
		Image:          image,
		Functions:      len(res.Functions),
		FileBoundaries: res.FileBoundaries,
		Diagnostics:    res.Diagnostics,
	}
	for _, sec := range res.Sections {
		r.Sections = append(r.Sections, SectionInfo{Name: sec.Name, Kind: sec.Kind.String(), Vram: sec.Vram, Size: sec.Size()})
	}
	for _, ext := range res.Externals {
		r.Externals = append(r.Externals, ext.Name)
	}
	sort.Strings(r.Externals)
	if !withSymbols {
		return r
	}
	for _, sym := range res.Table.Symbols() {
		size, _ := sym.Size()
		info := SymbolInfo{
			Address: sym.Address(),
			Name:    sym.Name(),
			Type:    sym.Type().String(),
			Size:    size,
			User:    sym.IsUser(),
		}
		if refs := sym.References(); len(refs) > 0 {
			info.References = refs
		}
		if sym.Section() != nil {
			info.Section = sym.Section().Name
		}
		r.Symbols = append(r.Symbols, info)
	}
	return r
}
