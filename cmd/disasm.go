package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/renderer"
	"github.com/ChainSafe/mipsrecover/section"
)

var (
	OutputDirFlag = &cli.PathFlag{
		Name:     "output-dir",
		Usage:    "directory to write one assembly file per section into. Default: stdout",
		Required: false,
	}
	WriteBinaryFlag = &cli.BoolFlag{
		Name:  "write-binary",
		Usage: "also write the bytes of every section to the output directory",
	}
)

func CreateDisasmCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "disasm",
		Usage:       "Recovers functions and data from raw MIPS images and writes assembly",
		Description: "Recovers functions, symbols and data types from raw MIPS images and writes reassemblable assembly per section",
		ArgsUsage:   "<image>...",
		Action:      action,
		Flags: append(analysisFlags(),
			OutputDirFlag,
			WriteBinaryFlag,
			FormatFlag,
			ReportOutputPathFlag,
		),
	}
}

var DisasmCommand = CreateDisasmCommand(DisassembleImages)

type disasmOutput struct {
	prof   *profile.Profile
	report *renderer.Report
	asm    []byte
}

// DisassembleImages analyzes every image argument in parallel, each with
// its own engine state.
func DisassembleImages(ctx *cli.Context) error {
	images := ctx.Args().Slice()
	if len(images) == 0 {
		return fmt.Errorf("no image given")
	}
	outputDir := ctx.Path(OutputDirFlag.Name)
	format := ctx.String(FormatFlag.Name)
	reportOutputPath := ctx.Path(ReportOutputPathFlag.Name)

	outputs := make([]*disasmOutput, len(images))
	g, _ := errgroup.WithContext(ctx.Context)
	for i, image := range images {
		i, image := i, image
		g.Go(func() error {
			out, err := disassembleImage(ctx, image, outputDir)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range outputs {
		if len(out.asm) > 0 {
			if _, err := os.Stdout.Write(out.asm); err != nil {
				return err
			}
		}
	}
	reports := make([]*renderer.Report, len(outputs))
	for i, out := range outputs {
		reports[i] = out.report
	}
	if err := writeReport(reports, format, reportOutputPath, outputs[0].prof); err != nil {
		return fmt.Errorf("unable to write report: %w", err)
	}
	return nil
}

// disassembleImage runs one image. Assembly goes to outputDir, or is
// returned for printing when outputDir is empty.
func disassembleImage(ctx *cli.Context, image, outputDir string) (*disasmOutput, error) {
	prof, res, err := analyzeImage(ctx, image)
	if err != nil {
		return nil, err
	}
	emitter := renderer.NewAsmEmitter(prof, res)
	out := &disasmOutput{prof: prof, report: renderer.NewReport(filepath.Base(image), res, false)}

	if outputDir == "" {
		var buf bytes.Buffer
		for _, sec := range res.Sections {
			if err := emitter.Emit(sec, &buf); err != nil {
				return nil, fmt.Errorf("error emitting %s: %w", sec.Name, err)
			}
		}
		out.asm = buf.Bytes()
		return out, nil
	}

	dir := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(image), filepath.Ext(image)))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create output directory: %w", err)
	}
	for _, sec := range res.Sections {
		path := filepath.Join(dir, strings.TrimPrefix(sec.Name, ".")+".s")
		if err := writeAsm(emitter, sec, path); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{"section": sec.Name, "path": path}).Debug("Wrote assembly")
		if !prof.WriteBinary || sec.Kind == section.KindBss {
			continue
		}
		path = filepath.Join(dir, strings.TrimPrefix(sec.Name, ".")+".bin")
		if err := os.WriteFile(path, sec.Bytes(sec.Vram), 0644); err != nil {
			return nil, fmt.Errorf("unable to write %s: %w", path, err)
		}
	}
	log.WithFields(log.Fields{
		"image":     filepath.Base(image),
		"functions": len(res.Functions),
		"symbols":   res.Table.Len(),
	}).Info("Disassembled image")
	return out, nil
}
