// Package section models the contiguous byte ranges an image is split into.
package section

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ChainSafe/mipsrecover/instruction"
)

// ErrInvalidSpec is returned when a section description does not fit the image.
var ErrInvalidSpec = errors.New("invalid section spec")

// Kind tags what a Section holds.
type Kind int

const (
	KindText Kind = iota
	KindData
	KindRodata
	KindBss
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindData:
		return "data"
	case KindRodata:
		return "rodata"
	case KindBss:
		return "bss"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the kind names used by profiles, with or without a leading dot.
func ParseKind(s string) (Kind, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "text":
		return KindText, nil
	case "data":
		return KindData, nil
	case "rodata", "rdata":
		return KindRodata, nil
	case "bss":
		return KindBss, nil
	}
	return KindText, fmt.Errorf("%w: unknown section kind %q", ErrInvalidSpec, s)
}

// Spec describes where a Section lives inside a raw image.
type Spec struct {
	Name   string `yaml:"name" json:"name"`
	Kind   string `yaml:"kind" json:"kind"`
	Offset uint32 `yaml:"offset" json:"offset"`
	Size   uint32 `yaml:"size" json:"size"`
	Vram   uint32 `yaml:"vram" json:"vram"`
}

// Section is a contiguous byte range with a base virtual address. Bss
// sections have a size but no bytes.
type Section struct {
	Name string
	Kind Kind
	Vram uint32

	data   []byte
	size   uint32
	endian instruction.Endian
}

// New builds a Section over a private copy of data. Middle endian data is
// rearranged into big endian order on construction.
func New(name string, kind Kind, vram uint32, data []byte, endian instruction.Endian) *Section {
	b, e := endian.Normalize(data)
	return &Section{
		Name:   name,
		Kind:   kind,
		Vram:   vram,
		data:   b,
		size:   uint32(len(b)),
		endian: e,
	}
}

// NewBss builds a zero-initialized Section of the given size.
func NewBss(name string, vram, size uint32) *Section {
	return &Section{Name: name, Kind: KindBss, Vram: vram, size: size}
}

// Split cuts image into Sections following specs. With no specs the whole
// image becomes one text section at vram 0.
func Split(image []byte, specs []Spec, endian instruction.Endian) ([]*Section, error) {
	if len(specs) == 0 {
		return []*Section{New(".text", KindText, 0, image, endian)}, nil
	}

	sections := make([]*Section, 0, len(specs))
	for i, s := range specs {
		kind, err := ParseKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		name := s.Name
		if name == "" {
			name = "." + kind.String()
		}
		if kind == KindBss {
			sections = append(sections, NewBss(name, s.Vram, s.Size))
			continue
		}
		end := uint64(s.Offset) + uint64(s.Size)
		if end > uint64(len(image)) {
			return nil, fmt.Errorf("%w: %s [0x%X, 0x%X) exceeds image size 0x%X", ErrInvalidSpec, name, s.Offset, end, len(image))
		}
		if kind == KindText && s.Size%4 != 0 {
			return nil, fmt.Errorf("%w: text section %s size 0x%X is not a multiple of 4", ErrInvalidSpec, name, s.Size)
		}
		sections = append(sections, New(name, kind, s.Vram, image[s.Offset:end], endian))
	}

	for i := range sections {
		for j := i + 1; j < len(sections); j++ {
			a, b := sections[i], sections[j]
			if a.Size() > 0 && b.Size() > 0 && a.Vram < b.End() && b.Vram < a.End() {
				return nil, fmt.Errorf("%w: %s and %s overlap in vram", ErrInvalidSpec, a.Name, b.Name)
			}
		}
	}
	return sections, nil
}

// Size returns the length of the section in bytes.
func (s *Section) Size() uint32 {
	return s.size
}

// End returns the exclusive upper vram bound.
func (s *Section) End() uint32 {
	return s.Vram + s.size
}

// Contains reports whether addr is inside the section.
func (s *Section) Contains(addr uint32) bool {
	return addr >= s.Vram && addr-s.Vram < s.size
}

// Offset converts a vram address into an offset from the section start.
func (s *Section) Offset(addr uint32) uint32 {
	return addr - s.Vram
}

// Bytes returns the section bytes starting at addr. Bss sections and
// addresses outside the section yield nil.
func (s *Section) Bytes(addr uint32) []byte {
	if !s.Contains(addr) || s.data == nil {
		return nil
	}
	return s.data[addr-s.Vram:]
}

// Endian returns the byte order of the (normalized) section bytes.
func (s *Section) Endian() instruction.Endian {
	return s.endian
}

// WordAt reads the 32-bit word at addr.
func (s *Section) WordAt(addr uint32) (uint32, error) {
	return s.endian.Word(s.Bytes(addr))
}

// Instructions decodes every word of the section in address order. A
// trailing partial word is ignored.
func (s *Section) Instructions() []instruction.Instruction {
	n := len(s.data) / 4
	out := make([]instruction.Instruction, 0, n)
	for i := 0; i < n; i++ {
		word, _ := s.endian.Word(s.data[i*4:])
		out = append(out, instruction.Decode(word, s.Vram+uint32(i*4)))
	}
	return out
}

func (s *Section) String() string {
	return fmt.Sprintf("%s (%s) [0x%08X, 0x%08X)", s.Name, s.Kind, s.Vram, s.End())
}
