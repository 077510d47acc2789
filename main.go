package main

import (
	"context"
	"os"

	"github.com/apex/log"
	"github.com/urfave/cli/v2"

	"github.com/ChainSafe/mipsrecover/cmd"
)

func main() {
	app := cli.NewApp()
	app.Name = "mipsrecover"
	app.Usage = "MIPS binary structure recovery"
	app.Description = "Recovers functions, symbols and data from raw MIPS images and renders them as assembly"
	app.Flags = []cli.Flag{
		cmd.VerboseFlag,
		cmd.QuietFlag,
	}
	app.Before = cmd.SetupLogging
	app.Commands = []*cli.Command{
		cmd.DisasmCommand,
		cmd.SymbolsCommand,
		cmd.XrefCommand,
	}
	err := app.RunContext(context.Background(), os.Args)
	if err != nil {
		log.WithError(err).Fatal("mipsrecover failed")
	}
}
