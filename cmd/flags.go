// Package cmd defines all the commands for the cli
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/urfave/cli/v2"

	"github.com/ChainSafe/mipsrecover/common"
	"github.com/ChainSafe/mipsrecover/disassembler"
	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/symparser"
)

var (
	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"V"},
		Usage:   "enable debug logging",
	}
	QuietFlag = &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "only log warnings and errors",
	}
	ProfileFlag = &cli.PathFlag{
		Name:     "profile",
		Usage:    "Path to the analysis profile. Default: closest " + common.ProfileFileName + " or built-in defaults",
		Required: false,
	}
	SymbolsFileFlag = &cli.PathFlag{
		Name:  "symbols",
		Usage: "Path to a user symbol file",
	}
	CompilerFlag = &cli.StringFlag{
		Name:  "compiler",
		Usage: "Compiler that built the image. Options: IDO, GCC, SN64",
	}
	EndianFlag = &cli.StringFlag{
		Name:  "endian",
		Usage: "Byte order of the image. Options: big, little, middle",
	}
	GPFlag = &cli.StringFlag{
		Name:  "gp",
		Usage: "Value of $gp in hex, enables $gp relative references",
	}
	StrictFlag = &cli.BoolFlag{
		Name:  "strict",
		Usage: "abort on words that do not decode",
	}
	StringGuesserFlag = &cli.BoolFlag{
		Name:  "string-guesser",
		Usage: "classify data symbols as strings and floats",
	}
	MinStringLengthFlag = &cli.IntFlag{
		Name:  "min-string-length",
		Usage: "shortest run of text accepted as a string",
	}
	StringEncodingFlag = &cli.StringFlag{
		Name:  "string-encoding",
		Usage: "Encoding of strings. Options: ascii, euc-jp, shift-jis",
	}
	FilterLowFlag = &cli.BoolFlag{
		Name:  "filter-low-addresses",
		Usage: "ignore address candidates below the low bound",
	}
	FilterHighFlag = &cli.BoolFlag{
		Name:  "filter-high-addresses",
		Usage: "ignore address candidates at or above the high bound",
	}
	TrustJalFlag = &cli.BoolFlag{
		Name:  "trust-jal-functions",
		Usage: "split functions at call targets",
	}
	TrustUserFlag = &cli.BoolFlag{
		Name:  "trust-user-functions",
		Usage: "split functions at user symbols of type func",
	}
	AddNewSymbolsFlag = &cli.BoolFlag{
		Name:  "add-new-symbols",
		Usage: "create symbols for referenced addresses that have none",
	}
	IgnoreBranchesFlag = &cli.BoolFlag{
		Name:  "ignore-branches",
		Usage: "do not record branch, jump and call targets as symbols",
	}
	NameBySectionFlag = &cli.BoolFlag{
		Name:  "name-vars-by-section",
		Usage: "prefix autogenerated data names by section",
	}
	NameByTypeFlag = &cli.BoolFlag{
		Name:  "name-vars-by-type",
		Usage: "prefix autogenerated data names by type",
	}
	DebugFuncAnalysisFlag = &cli.BoolFlag{
		Name:  "debug-func-analysis",
		Usage: "log function boundary state transitions",
	}
	DebugSymbolFinderFlag = &cli.BoolFlag{
		Name:  "debug-symbol-finder",
		Usage: "log pointer finder verdicts",
	}
	DebugUnpairedLuisFlag = &cli.BoolFlag{
		Name:  "debug-unpaired-luis",
		Usage: "log every unpaired lui",
	}
	FileBoundariesFlag = &cli.BoolFlag{
		Name:  "print-new-file-boundaries",
		Usage: "log the file boundaries found between functions",
	}
	FormatFlag = &cli.StringFlag{
		Name:        "format",
		Usage:       "format of the output. Options: text, json, yaml",
		Required:    false,
		Value:       "text",
		DefaultText: "text",
	}
	ReportOutputPathFlag = &cli.PathFlag{
		Name:     "report-output-path",
		Usage:    "output file path for report. Default: stdout",
		Required: false,
	}
)

// analysisFlags are the flags every command that analyzes an image takes.
func analysisFlags() []cli.Flag {
	return []cli.Flag{
		ProfileFlag,
		SymbolsFileFlag,
		CompilerFlag,
		EndianFlag,
		GPFlag,
		StrictFlag,
		StringGuesserFlag,
		MinStringLengthFlag,
		StringEncodingFlag,
		FilterLowFlag,
		FilterHighFlag,
		TrustJalFlag,
		TrustUserFlag,
		AddNewSymbolsFlag,
		IgnoreBranchesFlag,
		NameBySectionFlag,
		NameByTypeFlag,
		DebugFuncAnalysisFlag,
		DebugSymbolFinderFlag,
		DebugUnpairedLuisFlag,
		FileBoundariesFlag,
	}
}

// SetupLogging installs the cli log handler at the requested level.
func SetupLogging(ctx *cli.Context) error {
	log.SetHandler(clihandler.Default)
	switch {
	case ctx.Bool(VerboseFlag.Name):
		log.SetLevel(log.DebugLevel)
	case ctx.Bool(QuietFlag.Name):
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	return nil
}

// loadProfile resolves the profile for image and applies the flags that
// were set explicitly.
func loadProfile(ctx *cli.Context, image string) (*profile.Profile, error) {
	path := ctx.Path(ProfileFlag.Name)
	if path == "" {
		if found, err := common.FindProfile(image); err == nil {
			path = found
		}
	}

	prof := profile.Default()
	if path != "" {
		var err error
		prof, err = profile.LoadProfile(path)
		if err != nil {
			return nil, fmt.Errorf("error loading profile: %w", err)
		}
		log.WithField("profile", path).Debug("Loaded profile")
	}

	if ctx.IsSet(SymbolsFileFlag.Name) {
		prof.SymbolsFile = ctx.Path(SymbolsFileFlag.Name)
	} else if prof.SymbolsFile != "" && path != "" && !filepath.IsAbs(prof.SymbolsFile) {
		prof.SymbolsFile = filepath.Join(filepath.Dir(path), prof.SymbolsFile)
	}
	if ctx.IsSet(CompilerFlag.Name) {
		prof.Compiler = profile.Compiler(ctx.String(CompilerFlag.Name))
	}
	if ctx.IsSet(EndianFlag.Name) {
		prof.Endian = ctx.String(EndianFlag.Name)
	}
	if ctx.IsSet(GPFlag.Name) {
		gp, err := common.ParseHex(ctx.String(GPFlag.Name))
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", GPFlag.Name, err)
		}
		prof.GP = &gp
	}
	if ctx.IsSet(StrictFlag.Name) {
		prof.DisasmUnknown = !ctx.Bool(StrictFlag.Name)
	}
	if ctx.IsSet(MinStringLengthFlag.Name) {
		prof.MinStringLength = ctx.Int(MinStringLengthFlag.Name)
	}
	if ctx.IsSet(StringEncodingFlag.Name) {
		prof.StringEncoding = ctx.String(StringEncodingFlag.Name)
	}
	for flag, field := range map[*cli.BoolFlag]*bool{
		StringGuesserFlag:     &prof.StringGuesser,
		FilterLowFlag:         &prof.FilterLowAddresses,
		FilterHighFlag:        &prof.FilterHighAddresses,
		TrustJalFlag:          &prof.TrustJalFunctions,
		TrustUserFlag:         &prof.TrustUserFunctions,
		AddNewSymbolsFlag:     &prof.AddNewSymbols,
		IgnoreBranchesFlag:    &prof.IgnoreBranches,
		WriteBinaryFlag:       &prof.WriteBinary,
		NameBySectionFlag:     &prof.NameVarsBySection,
		NameByTypeFlag:        &prof.NameVarsByType,
		DebugFuncAnalysisFlag: &prof.Debug.FuncAnalysis,
		DebugSymbolFinderFlag: &prof.Debug.SymbolFinder,
		DebugUnpairedLuisFlag: &prof.Debug.UnpairedLuis,
		FileBoundariesFlag:    &prof.PrintNewFileBoundaries,
	} {
		if ctx.IsSet(flag.Name) {
			*field = ctx.Bool(flag.Name)
		}
	}

	if err := prof.Validate(); err != nil {
		return nil, err
	}
	return prof, nil
}

// analyzeImage loads image with its profile and user symbols and runs the
// engine over it.
func analyzeImage(ctx *cli.Context, image string) (*profile.Profile, *disassembler.Result, error) {
	prof, err := loadProfile(ctx, image)
	if err != nil {
		return nil, nil, err
	}
	var entries []symparser.Entry
	if prof.SymbolsFile != "" {
		entries, err = symparser.ParseFile(prof.SymbolsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading symbols: %w", err)
		}
		log.WithFields(log.Fields{"file": prof.SymbolsFile, "symbols": len(entries)}).Debug("Loaded user symbols")
	}

	sections, err := disassembler.LoadImage(image, prof)
	if err != nil {
		return nil, nil, err
	}
	res, err := disassembler.New(prof, entries).Disassemble(sections)
	if err != nil {
		return nil, nil, fmt.Errorf("analysis of %s failed: %w", image, err)
	}
	return prof, res, nil
}
