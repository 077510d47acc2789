package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/renderer"
	"github.com/ChainSafe/mipsrecover/section"
)

func writeAsm(emitter *renderer.AsmEmitter, sec *section.Section, path string) error {
	output, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to open output file: %w", err)
	}
	defer func() {
		_ = output.Close()
	}()
	if err := emitter.Emit(sec, output); err != nil {
		return fmt.Errorf("error emitting %s: %w", sec.Name, err)
	}
	return nil
}

// writeReport outputs the reports in the specified format.
func writeReport(reports []*renderer.Report, format, outputPath string, prof *profile.Profile) error {
	var output *os.File
	if outputPath == "" {
		output = os.Stdout
	} else {
		absPath, err := filepath.Abs(outputPath)
		if err != nil {
			return fmt.Errorf("unable to determine absolute path: %w", err)
		}
		output, err = os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("unable to open output file: %w", err)
		}
		defer func() {
			_ = output.Close()
		}()
	}

	var rendererInstance renderer.Renderer
	switch format {
	case "text":
		rendererInstance = renderer.NewTextRenderer(prof)
	case "json":
		rendererInstance = renderer.NewJSONRenderer()
	case "yaml":
		rendererInstance = renderer.NewYAMLRenderer()
	default:
		return fmt.Errorf("invalid format: %s", format)
	}

	for _, report := range reports {
		if err := rendererInstance.Render(report, output); err != nil {
			return err
		}
	}
	return nil
}
