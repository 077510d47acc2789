// Package symparser reads user symbol files of the form
//
//	name = 0x80001234; // type:func size:0x40
package symparser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChainSafe/mipsrecover/symbols"
)

var (
	symbolRegex    = regexp.MustCompile(`^([A-Za-z_.$][\w.$]*)\s*=\s*(0[xX][0-9a-fA-F]+|[0-9]+)\s*;?\s*(?://(.*))?$`)
	attributeRegex = regexp.MustCompile(`(\w+):(\S+)`)
)

// Entry is one user supplied symbol.
type Entry struct {
	Name    string
	Address uint32
	Type    symbols.Type
	// Size is zero when the file does not give one.
	Size uint32
	Line int
}

// ParseFile reads a symbol file from disk.
func ParseFile(path string) ([]Entry, error) {
	fpath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("error resolving absolute filepath: %w", err)
	}
	f, err := os.Open(fpath)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f)
}

// Parse reads symbol entries. Blank lines and lines starting with // or #
// are ignored.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		entry.Line = lineNum
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading symbols: %w", err)
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	matches := symbolRegex.FindStringSubmatch(line)
	if matches == nil {
		return Entry{}, fmt.Errorf("failed to parse symbol: %s", line)
	}
	addr, err := strconv.ParseUint(matches[2], 0, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid symbol address: %w", err)
	}
	entry := Entry{Name: matches[1], Address: uint32(addr)}

	for _, attr := range attributeRegex.FindAllStringSubmatch(matches[3], -1) {
		switch attr[1] {
		case "type":
			typ, ok := symbols.ParseType(attr[2])
			if !ok {
				return Entry{}, fmt.Errorf("unknown symbol type %q", attr[2])
			}
			entry.Type = typ
		case "size":
			size, err := strconv.ParseUint(attr[2], 0, 32)
			if err != nil {
				return Entry{}, fmt.Errorf("invalid symbol size: %w", err)
			}
			entry.Size = uint32(size)
		}
	}
	return entry, nil
}
