package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/ChainSafe/mipsrecover/analyzer"
	"github.com/ChainSafe/mipsrecover/common"
)

var SymbolNameFlag = &cli.StringFlag{
	Name:     "symbol",
	Usage:    "Name of the symbol to trace. Ex: func_80001234",
	Required: true,
}

func CreateXrefCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "xref",
		Usage:       "Prints the chain of referrers of a symbol",
		Description: "Prints the chain of referrers leading from a symbol back to an entrypoint",
		ArgsUsage:   "<image>",
		Action:      action,
		Flags:       append(analysisFlags(), SymbolNameFlag),
	}
}

var XrefCommand = CreateXrefCommand(TraceReferrers)

func TraceReferrers(ctx *cli.Context) error {
	image := ctx.Args().First()
	if image == "" {
		return fmt.Errorf("no image given")
	}
	prof, res, err := analyzeImage(ctx, image)
	if err != nil {
		return err
	}

	name := ctx.String(SymbolNameFlag.Name)
	callStack, err := common.TraceReferrers(res.Table, name, common.ProgramEntrypoint(prof.Entrypoints))
	if err != nil {
		return err
	}
	log.WithField("depth", callStack.Depth()).Debugf("Traced referrers of %s", name)
	str := printCallStack(callStack, "")
	_, err = os.Stdout.WriteString(str + "\n")
	return err
}

func printCallStack(source *analyzer.Source, str string) string {
	addr := color.New(color.FgHiBlue).Sprintf("0x%08X", source.Address)
	str = strings.Join(
		[]string{str, fmt.Sprintf("-> %s : (%s) %s", addr, source.Symbol, source.Section)}, "\n")
	if source.CallStack != nil {
		return printCallStack(source.CallStack, str)
	}
	return str
}
