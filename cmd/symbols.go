package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ChainSafe/mipsrecover/renderer"
)

func CreateSymbolsCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "symbols",
		Usage:       "Dumps the recovered symbol table of an image",
		Description: "Runs the analysis and dumps every finalized symbol with its type, size and references",
		ArgsUsage:   "<image>",
		Action:      action,
		Flags: append(analysisFlags(),
			FormatFlag,
			ReportOutputPathFlag,
		),
	}
}

var SymbolsCommand = CreateSymbolsCommand(DumpSymbols)

func DumpSymbols(ctx *cli.Context) error {
	image := ctx.Args().First()
	if image == "" {
		return fmt.Errorf("no image given")
	}
	prof, res, err := analyzeImage(ctx, image)
	if err != nil {
		return err
	}
	report := renderer.NewReport(filepath.Base(image), res, true)
	if err := writeReport([]*renderer.Report{report}, ctx.String(FormatFlag.Name), ctx.Path(ReportOutputPathFlag.Name), prof); err != nil {
		return fmt.Errorf("unable to write report: %w", err)
	}
	return nil
}
