// Package common holds helpers shared by the commands.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProfileFileName is the profile looked up next to an image when none is given.
const ProfileFileName = "mipsrecover.yaml"

// FindProfile finds the closest profile by searching for ProfileFileName
// from the directory of target upwards.
func FindProfile(target string) (string, error) {
	dir := filepath.Dir(target)
	for {
		candidate := filepath.Join(dir, ProfileFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil // Found a profile, use it
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached the root directory
		}
		dir = parent
	}
	return "", fmt.Errorf("no %s found for target: %s", ProfileFileName, target)
}

// ParseHex parses a 32-bit address written with or without a 0x prefix.
func ParseHex(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}
