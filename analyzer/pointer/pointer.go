// Package pointer finds data words that look like addresses of known sections.
package pointer

import (
	"fmt"

	"github.com/apex/log"

	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/section"
	"github.com/ChainSafe/mipsrecover/symbols"
)

// Verdict is the classification of one word value.
type Verdict int

const (
	// NotPointer is a value that does not look like an address of the image.
	NotPointer Verdict = iota
	// Candidate is a value pointing into a known section.
	Candidate
	// Filtered is a value excluded by the address bounds.
	Filtered
	// Dangling is a value in the 16MB region of a section that misses every section.
	Dangling
)

func (v Verdict) String() string {
	switch v {
	case Candidate:
		return "candidate"
	case Filtered:
		return "filtered"
	case Dangling:
		return "dangling"
	}
	return "not-pointer"
}

// Word is a data word together with its classification.
type Word struct {
	Address uint32
	Value   uint32
	Verdict Verdict
	Target  *section.Section
}

// Hint returns the symbol type the target section implies.
func (w Word) Hint() symbols.Type {
	if w.Target == nil {
		return symbols.TypeUnknown
	}
	switch w.Target.Kind {
	case section.KindText:
		// may point into the middle of a function (jump tables)
		return symbols.TypeLabel
	case section.KindRodata:
		return symbols.TypeRodata
	case section.KindBss:
		return symbols.TypeBss
	}
	return symbols.TypeGenericData
}

// Result groups the words of one section by verdict.
type Result struct {
	Candidates []Word
	Filtered   []Word
	Dangling   []Word
}

// Finder scans data sections for pointer candidates.
type Finder struct {
	prof     *profile.Profile
	sections []*section.Section
}

// NewFinder returns a finder that knows about sections.
func NewFinder(prof *profile.Profile, sections []*section.Section) *Finder {
	return &Finder{prof: prof, sections: sections}
}

// Classify decides what a word value is.
func (f *Finder) Classify(value uint32) (Verdict, *section.Section) {
	if f.prof.IgnoredWord(value) {
		return NotPointer, nil
	}
	if f.prof.Filtered(value) {
		return Filtered, nil
	}
	for _, s := range f.sections {
		if s.Contains(value) {
			return Candidate, s
		}
	}
	for _, s := range f.sections {
		if s.Size() > 0 && (value>>24 == s.Vram>>24 || value>>24 == (s.End()-1)>>24) {
			return Dangling, nil
		}
	}
	return NotPointer, nil
}

// Scan classifies every aligned word of a data or rodata section. Zero words
// are skipped, they are padding far more often than null pointers.
func (f *Finder) Scan(sec *section.Section) Result {
	var res Result
	if sec.Kind == section.KindBss || sec.Kind == section.KindText {
		return res
	}

	start := (sec.Vram + 3) &^ 3
	for addr := start; addr+4 <= sec.End() && addr >= start; addr += 4 {
		value, err := sec.WordAt(addr)
		if err != nil || value == 0 {
			continue
		}
		verdict, target := f.Classify(value)
		w := Word{Address: addr, Value: value, Verdict: verdict, Target: target}
		switch verdict {
		case Candidate:
			res.Candidates = append(res.Candidates, w)
		case Filtered:
			res.Filtered = append(res.Filtered, w)
		case Dangling:
			res.Dangling = append(res.Dangling, w)
		}
		if f.prof.Debug.SymbolFinder {
			log.WithFields(log.Fields{
				"address": fmt.Sprintf("0x%08X", addr),
				"value":   fmt.Sprintf("0x%08X", value),
				"verdict": verdict,
			}).Debug("Pointer scan")
		}
	}
	return res
}
