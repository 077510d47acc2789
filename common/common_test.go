package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChainSafe/mipsrecover/instruction"
	"github.com/ChainSafe/mipsrecover/section"
	"github.com/ChainSafe/mipsrecover/symbols"
)

func TestParseHex(t *testing.T) {
	for in, want := range map[string]uint32{
		"0x80001234": 0x80001234,
		"0X10":       0x10,
		"ffffffff":   0xFFFFFFFF,
		" 801A0000 ": 0x801A0000,
	} {
		got, err := ParseHex(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "0x", "0x100000000", "zz"} {
		_, err := ParseHex(in)
		assert.Error(t, err, in)
	}
}

func TestFindProfile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "roms", "us")
	require.NoError(t, os.MkdirAll(nested, 0755))
	image := filepath.Join(nested, "game.z64")

	_, err := FindProfile(image)
	assert.Error(t, err)

	want := filepath.Join(root, ProfileFileName)
	require.NoError(t, os.WriteFile(want, []byte("compiler: GCC\n"), 0600))
	got, err := FindProfile(image)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestProgramEntrypoint(t *testing.T) {
	match := ProgramEntrypoint([]string{"main", "boot_*"})
	assert.True(t, match("main"))
	assert.True(t, match("boot_entry"))
	assert.False(t, match("mainLoop"))
	assert.False(t, match("func_80000000"))

	assert.False(t, ProgramEntrypoint(nil)("main"))
}

// callChain builds main -> func_80000020 -> func_80000040 and an
// unreferenced orphan -> func_80000040.
func callChain(t *testing.T) *symbols.Table {
	t.Helper()
	text := section.New(".text", section.KindText, 0x80000000, make([]byte, 0x80), instruction.EndianBig)
	tbl := symbols.NewTable([]*section.Section{text}, symbols.Naming{})
	_, err := tbl.AddUserSymbol(0x80000000, "main", symbols.TypeFunction, 0, true)
	require.NoError(t, err)
	_, err = tbl.GetOrCreate(0x80000060, symbols.TypeFunction)
	require.NoError(t, err)
	_, err = tbl.AddReference(0x80000008, 0x80000020, symbols.TypeFunction)
	require.NoError(t, err)
	_, err = tbl.AddReference(0x80000028, 0x80000040, symbols.TypeFunction)
	require.NoError(t, err)
	_, err = tbl.AddReference(0x80000064, 0x80000040, symbols.TypeFunction)
	require.NoError(t, err)
	require.NoError(t, tbl.Finalize())
	return tbl
}

func TestTraceReferrers(t *testing.T) {
	tbl := callChain(t)

	src, err := TraceReferrers(tbl, "func_80000040", ProgramEntrypoint([]string{"main"}))
	require.NoError(t, err)
	assert.Equal(t, 3, src.Depth())
	assert.Equal(t, "func_80000040", src.Symbol)
	assert.Equal(t, "func_80000020", src.CallStack.Symbol)
	assert.Equal(t, "main", src.CallStack.CallStack.Symbol)
	assert.Equal(t, ".text", src.CallStack.CallStack.Section)

	// without a matching entrypoint the first unreferenced root wins
	src, err = TraceReferrers(tbl, "func_80000040", ProgramEntrypoint(nil))
	require.NoError(t, err)
	assert.Equal(t, "main", src.CallStack.CallStack.Symbol)

	_, err = TraceReferrers(tbl, "missing", ProgramEntrypoint(nil))
	assert.Error(t, err)
}
