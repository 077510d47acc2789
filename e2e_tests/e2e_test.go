//go:build integration

package e2etest

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChainSafe/mipsrecover/analyzer"
	"github.com/ChainSafe/mipsrecover/renderer"
)

const cliBinary = "../bin/mipsrecover"

type testcase struct {
	words       []uint32
	functions   int
	diagnostics map[analyzer.Kind]int
}

func writeImage(t *testing.T, words []uint32) string {
	t.Helper()
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint32(b[i*4:], w)
	}
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, os.WriteFile(path, b, 0600))
	return path
}

func runTest(t *testing.T, cases map[string]testcase) {
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			image := writeImage(t, tc.words)
			cmd := exec.Command(cliBinary, "-q", "disasm", "--output-dir", t.TempDir(), "--format", "json", image)

			var out bytes.Buffer
			var errOut bytes.Buffer
			cmd.Stdout = &out
			cmd.Stderr = &errOut
			err := cmd.Run()
			if err != nil {
				t.Fatalf("Failed to run CLI: %v. errorOutput: %s", err, errOut.String())
			}

			var report renderer.Report
			require.NoError(t, json.Unmarshal(out.Bytes(), &report))
			assert.Equal(t, tc.functions, report.Functions)
			assert.Equal(t, tc.diagnostics, analyzer.Count(report.Diagnostics))
		})
	}
}

func TestDisasm(t *testing.T) {
	cases := map[string]testcase{
		"two_functions": {
			words: []uint32{
				0x27BDFFE8, 0xAFBF0014, 0x8FBF0014, 0x03E00008, 0x27BD0018, 0x00000000,
				0x27BDFFE8, 0x03E00008, 0x27BD0018, 0x00000000,
			},
			functions:   2,
			diagnostics: map[analyzer.Kind]int{},
		},
		"truncated": {
			words:       []uint32{0x27BDFFE8, 0xAFBF0014, 0x24020001},
			functions:   1,
			diagnostics: map[analyzer.Kind]int{analyzer.TruncatedFunction: 1},
		},
		"unknown_and_unpaired": {
			words:     []uint32{0x3C088012, 0xEC000000, 0x03E00008, 0x00000000},
			functions: 1,
			diagnostics: map[analyzer.Kind]int{
				analyzer.DecodeAmbiguous:    1,
				analyzer.UnpairedRelocation: 1,
			},
		},
	}
	runTest(t, cases)
}

func TestStrictMode(t *testing.T) {
	image := writeImage(t, []uint32{0xEC000000, 0x03E00008, 0x00000000})
	cmd := exec.Command(cliBinary, "-q", "disasm", "--strict", "--output-dir", t.TempDir(), image)
	assert.Error(t, cmd.Run())
}
