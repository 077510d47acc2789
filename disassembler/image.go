package disassembler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"

	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/section"
)

// LoadImage reads a raw image and splits it into the sections prof
// describes.
func LoadImage(path string, prof *profile.Profile) ([]*section.Section, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to determine absolute path: %w", err)
	}
	image, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read image: %w", err)
	}
	sections, err := section.Split(image, prof.Sections, prof.ByteOrder())
	if err != nil {
		return nil, fmt.Errorf("unable to split %s: %w", filepath.Base(absPath), err)
	}

	log.WithFields(log.Fields{
		"image":    filepath.Base(absPath),
		"size":     humanize.Bytes(uint64(len(image))),
		"sections": len(sections),
	}).Info("Loaded image")
	for _, sec := range sections {
		log.WithFields(log.Fields{
			"section": sec.Name,
			"kind":    sec.Kind,
			"vram":    fmt.Sprintf("0x%08X", sec.Vram),
			"size":    humanize.Bytes(uint64(sec.Size())),
		}).Debug("Section")
	}
	return sections, nil
}
