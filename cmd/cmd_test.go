package cmd

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ChainSafe/mipsrecover/profile"
	"github.com/ChainSafe/mipsrecover/renderer"
)

const testProfile = `compiler: ido
endian: big
symbols_file: game.sym
sections:
  - name: .text
    kind: text
    offset: 0x0
    size: 0x30
    vram: 0x80000000
  - name: .rodata
    kind: rodata
    offset: 0x30
    size: 0x10
    vram: 0x80000030
  - name: .bss
    kind: bss
    size: 0x10
    vram: 0x80000040
`

const testSymbols = `main = 0x80000000; // type:func
`

func testImage() []byte {
	words := []uint32{
		0x27BDFFE8, // addiu $sp, $sp, -0x18
		0xAFBF0014, // sw $ra, 0x14($sp)
		0x0C000008, // jal 0x80000020
		0x00000000, // nop
		0x8FBF0014, // lw $ra, 0x14($sp)
		0x03E00008, // jr $ra
		0x27BD0018, // addiu $sp, $sp, 0x18
		0x00000000, // nop

		0x3C028000, // lui $v0, 0x8000
		0x03E00008, // jr $ra
		0x24420030, // addiu $v0, $v0, 0x30
		0x00000000, // nop
	}
	b := make([]byte, 0x40)
	for i, w := range words {
		binary.BigEndian.PutUint32(b[i*4:], w)
	}
	copy(b[0x30:], "OK\x00")
	return b
}

func setup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	image := filepath.Join(dir, "game.bin")
	require.NoError(t, os.WriteFile(image, testImage(), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mipsrecover.yaml"), []byte(testProfile), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.sym"), []byte(testSymbols), 0600))
	return dir, image
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	app := cli.NewApp()
	app.Flags = []cli.Flag{VerboseFlag, QuietFlag}
	app.Before = SetupLogging
	app.Commands = []*cli.Command{DisasmCommand, SymbolsCommand, XrefCommand}
	return app.Run(append([]string{"mipsrecover", "-q"}, args...))
}

func TestDisasmCommand(t *testing.T) {
	dir, image := setup(t)
	outDir := filepath.Join(dir, "asm")
	reportPath := filepath.Join(dir, "report.json")

	require.NoError(t, run(t, "disasm", "--output-dir", outDir, "--format", "json", "--report-output-path", reportPath, image))

	text, err := os.ReadFile(filepath.Join(outDir, "game", "text.s"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "glabel main")
	assert.Contains(t, string(text), "glabel func_80000020")
	assert.Contains(t, string(text), "%hi(STR_80000030)")

	rodata, err := os.ReadFile(filepath.Join(outDir, "game", "rodata.s"))
	require.NoError(t, err)
	assert.Contains(t, string(rodata), `.asciz "OK"`)

	_, err = os.Stat(filepath.Join(outDir, "game", "bss.s"))
	assert.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report renderer.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "game.bin", report.Image)
	assert.Equal(t, 2, report.Functions)
	assert.Len(t, report.Sections, 3)
	assert.Empty(t, report.Symbols)
}

func TestDisasmWriteBinary(t *testing.T) {
	dir, image := setup(t)
	outDir := filepath.Join(dir, "asm")
	require.NoError(t, run(t, "disasm", "--output-dir", outDir, "--write-binary", "--report-output-path", filepath.Join(dir, "report.txt"), image))

	text, err := os.ReadFile(filepath.Join(outDir, "game", "text.bin"))
	require.NoError(t, err)
	assert.Equal(t, testImage()[:0x30], text)
	rodata, err := os.ReadFile(filepath.Join(outDir, "game", "rodata.bin"))
	require.NoError(t, err)
	assert.Equal(t, testImage()[0x30:0x40], rodata)
	_, err = os.Stat(filepath.Join(outDir, "game", "bss.bin"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, run(t, "disasm", "--output-dir", filepath.Join(dir, "plain"), "--report-output-path", filepath.Join(dir, "report2.txt"), image))
	_, err = os.Stat(filepath.Join(dir, "plain", "game", "text.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestSymbolsCommand(t *testing.T) {
	dir, image := setup(t)
	reportPath := filepath.Join(dir, "symbols.json")

	require.NoError(t, run(t, "symbols", "--format", "json", "--report-output-path", reportPath, "--name-vars-by-type=false", image))

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report renderer.Report
	require.NoError(t, json.Unmarshal(data, &report))

	names := make(map[uint32]string)
	for _, sym := range report.Symbols {
		names[sym.Address] = sym.Name
	}
	assert.Equal(t, "main", names[0x80000000])
	assert.Equal(t, "func_80000020", names[0x80000020])
	assert.Equal(t, "R_80000030", names[0x80000030], "by-type naming disabled by flag")
	assert.Equal(t, "B_80000040", names[0x80000040])
}

func TestXrefCommand(t *testing.T) {
	_, image := setup(t)
	require.NoError(t, run(t, "xref", "--symbol", "func_80000020", image))
	assert.Error(t, run(t, "xref", "--symbol", "nothing", image))
}

func TestCommandErrors(t *testing.T) {
	dir, image := setup(t)
	assert.Error(t, run(t, "disasm"))
	assert.Error(t, run(t, "disasm", "--compiler", "msvc", image))
	assert.Error(t, run(t, "disasm", "--gp", "zz", image))
	assert.Error(t, run(t, "disasm", "--format", "xml", "--output-dir", filepath.Join(dir, "asm"), image))
	assert.Error(t, run(t, "symbols", "--profile", filepath.Join(dir, "missing.yaml"), image))
}

func TestFlagsOverrideProfile(t *testing.T) {
	_, image := setup(t)
	app := cli.NewApp()
	var got *profile.Profile
	app.Commands = []*cli.Command{{
		Name:  "load",
		Flags: analysisFlags(),
		Action: func(ctx *cli.Context) error {
			var err error
			got, err = loadProfile(ctx, ctx.Args().First())
			return err
		},
	}}
	require.NoError(t, app.Run([]string{"mipsrecover", "load", "--compiler", "gcc", "--gp", "0x80100000", "--strict", "--string-guesser=false",
		"--add-new-symbols=false", "--ignore-branches", image}))

	assert.Equal(t, profile.CompilerGCC, got.Compiler)
	require.NotNil(t, got.GP)
	assert.Equal(t, uint32(0x80100000), *got.GP)
	assert.False(t, got.DisasmUnknown)
	assert.False(t, got.StringGuesser)
	assert.False(t, got.AddNewSymbols)
	assert.True(t, got.IgnoreBranches)
	assert.True(t, got.TrustJalFunctions, "unset flags keep the profile value")
	assert.Len(t, got.Sections, 3)
	assert.Equal(t, filepath.Join(filepath.Dir(image), "game.sym"), got.SymbolsFile)
}
