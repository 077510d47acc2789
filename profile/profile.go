// Package profile holds the configuration value threaded through an analysis.
package profile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChainSafe/mipsrecover/instruction"
	"github.com/ChainSafe/mipsrecover/section"
)

// ErrInvalidProfile is returned for profiles with unknown enumerated values.
var ErrInvalidProfile = errors.New("invalid profile")

// Compiler selects toolchain specific heuristics.
type Compiler string

const (
	CompilerIDO  Compiler = "IDO"
	CompilerGCC  Compiler = "GCC"
	CompilerSN64 Compiler = "SN64"
)

// FileAlignment is the alignment object files are padded to when linked.
const FileAlignment = 16

// FunctionAlignment returns the alignment the compiler pads functions to.
func (c Compiler) FunctionAlignment() uint32 {
	switch c {
	case CompilerGCC, CompilerSN64:
		return 8
	}
	return 4
}

// Debug gates debug level logs of individual components.
type Debug struct {
	FuncAnalysis bool `yaml:"func_analysis"`
	SymbolFinder bool `yaml:"symbol_finder"`
	UnpairedLuis bool `yaml:"unpaired_luis"`
}

// Profile represents the configuration of one analysis run.
type Profile struct {
	Compiler Compiler `yaml:"compiler"`
	Endian   string   `yaml:"endian"`
	// GP is the value of $gp for resolving gp-relative accesses, if known.
	GP *uint32 `yaml:"gp,omitempty"`

	FilterLowAddresses  bool   `yaml:"filter_low_addresses"`
	FilterHighAddresses bool   `yaml:"filter_high_addresses"`
	LowBound            uint32 `yaml:"low_bound"`
	HighBound           uint32 `yaml:"high_bound"`
	FilteredAsConstants bool   `yaml:"filtered_addresses_as_constants"`
	FilteredAsHiLo      bool   `yaml:"filtered_addresses_as_hilo"`

	// IgnoreWordList holds top bytes of words never taken as pointers.
	IgnoreWordList []uint32 `yaml:"ignore_word_list"`

	// AddNewSymbols lets references create symbols. When unset, relocations
	// and pointers only attach to symbols that already exist.
	AddNewSymbols      bool `yaml:"add_new_symbols"`
	TrustUserFunctions bool `yaml:"trust_user_functions"`
	TrustJalFunctions  bool `yaml:"trust_jal_functions"`
	// IgnoreBranches keeps branch, jump and call targets out of the table.
	IgnoreBranches bool `yaml:"ignore_branches"`
	DisasmUnknown  bool `yaml:"disasm_unknown"`

	StringGuesser   bool   `yaml:"string_guesser"`
	MinStringLength int    `yaml:"min_string_length"`
	StringEncoding  string `yaml:"string_encoding"`

	NameVarsBySection bool `yaml:"name_vars_by_section"`
	NameVarsByType    bool `yaml:"name_vars_by_type"`
	SymbolsPlusOffset bool `yaml:"produce_symbols_plus_offset"`

	UseDotByte   bool   `yaml:"use_dot_byte"`
	UseDotShort  bool   `yaml:"use_dot_short"`
	AsmComments  bool   `yaml:"asm_comments"`
	GlabelCount  bool   `yaml:"glabel_count"`
	AsmTextLabel string `yaml:"asm_text_label"`
	AsmDataLabel string `yaml:"asm_data_label"`
	AsmEntLabel  string `yaml:"asm_ent_label"`
	AsmEndLabel  string `yaml:"asm_end_label"`
	FuncAsLabel  bool   `yaml:"asm_func_as_label"`
	LineEnds     string `yaml:"line_ends"`

	// WriteBinary writes the bytes of every section next to its assembly.
	WriteBinary            bool  `yaml:"write_binary"`
	PrintNewFileBoundaries bool  `yaml:"print_new_file_boundaries"`
	Debug                  Debug `yaml:"debug"`

	Entrypoints []string       `yaml:"entrypoints"`
	Sections    []section.Spec `yaml:"sections"`
	SymbolsFile string         `yaml:"symbols_file"`
}

// Default returns the profile used when no file is given.
func Default() *Profile {
	return &Profile{
		Compiler:            CompilerIDO,
		Endian:              "big",
		FilterLowAddresses:  true,
		FilterHighAddresses: true,
		LowBound:            0x40000000,
		HighBound:           0xC0000000,
		FilteredAsConstants: true,
		FilteredAsHiLo:      true,
		AddNewSymbols:       true,
		TrustUserFunctions:  true,
		TrustJalFunctions:   true,
		DisasmUnknown:       true,
		StringGuesser:       true,
		MinStringLength:     2,
		StringEncoding:      "ascii",
		NameVarsBySection:   true,
		NameVarsByType:      true,
		SymbolsPlusOffset:   true,
		UseDotByte:          true,
		UseDotShort:         true,
		AsmComments:         true,
		GlabelCount:         true,
		AsmTextLabel:        "glabel",
		AsmDataLabel:        "glabel",
		LineEnds:            "\n",
		Entrypoints:         []string{"main", "entrypoint"},
	}
}

// LoadProfile loads a profile from a YAML file on top of the defaults.
func LoadProfile(filename string) (*Profile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate normalizes enumerated fields and rejects unknown values.
func (p *Profile) Validate() error {
	p.Compiler = Compiler(strings.ToUpper(string(p.Compiler)))
	switch p.Compiler {
	case CompilerIDO, CompilerGCC, CompilerSN64:
	case "":
		p.Compiler = CompilerIDO
	default:
		return fmt.Errorf("%w: unknown compiler %q", ErrInvalidProfile, p.Compiler)
	}
	if _, err := instruction.ParseEndian(p.Endian); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	p.StringEncoding = strings.ToLower(p.StringEncoding)
	switch p.StringEncoding {
	case "ascii", "euc-jp", "shift-jis":
	case "":
		p.StringEncoding = "ascii"
	default:
		return fmt.Errorf("%w: unknown string encoding %q", ErrInvalidProfile, p.StringEncoding)
	}
	if p.MinStringLength < 1 {
		return fmt.Errorf("%w: min_string_length must be positive", ErrInvalidProfile)
	}
	if p.FilterLowAddresses && p.FilterHighAddresses && p.LowBound >= p.HighBound {
		return fmt.Errorf("%w: low_bound 0x%X is not below high_bound 0x%X", ErrInvalidProfile, p.LowBound, p.HighBound)
	}
	for _, top := range p.IgnoreWordList {
		if top > 0xFF {
			return fmt.Errorf("%w: ignore_word_list entry 0x%X is not a byte", ErrInvalidProfile, top)
		}
	}
	for _, s := range p.Sections {
		if _, err := section.ParseKind(s.Kind); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
	}
	return nil
}

// ByteOrder returns the parsed endianness.
func (p *Profile) ByteOrder() instruction.Endian {
	e, _ := instruction.ParseEndian(p.Endian)
	return e
}

// Filtered reports whether addr is excluded from symbol creation by the
// address bounds.
func (p *Profile) Filtered(addr uint32) bool {
	if p.FilterLowAddresses && addr < p.LowBound {
		return true
	}
	return p.FilterHighAddresses && addr >= p.HighBound
}

// IgnoredWord reports whether the top byte of value is in the ignore list.
func (p *Profile) IgnoredWord(value uint32) bool {
	for _, top := range p.IgnoreWordList {
		if value>>24 == top&0xFF {
			return true
		}
	}
	return false
}
