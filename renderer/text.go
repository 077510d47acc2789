package renderer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/ChainSafe/mipsrecover/analyzer"
	"github.com/ChainSafe/mipsrecover/profile"
)

// TextRenderer formats the analysis report in a structured text format.
type TextRenderer struct {
	profile *profile.Profile
}

// NewTextRenderer creates a new instance of TextRenderer.
func NewTextRenderer(profile *profile.Profile) Renderer {
	return &TextRenderer{profile: profile}
}

// Render formats and writes the report. Colors are only used on stdout.
func (r *TextRenderer) Render(report *Report, output io.Writer) error {
	critical := color.New(color.FgRed, color.Bold)
	warning := color.New(color.FgYellow)
	faint := color.New(color.Faint)
	if output != os.Stdout {
		critical.DisableColor()
		warning.DisableColor()
		faint.DisableColor()
	}

	var buf strings.Builder
	w := &buf

	// Header Section
	w.WriteString("==============================\n")
	w.WriteString("MIPS Structure Recovery Report\n")
	w.WriteString("==============================\n\n")
	fmt.Fprintf(w, "Image: %s\n", report.Image)
	fmt.Fprintf(w, "Compiler: %s\n", r.profile.Compiler)
	fmt.Fprintf(w, "Endian: %s\n", r.profile.Endian)
	fmt.Fprintf(w, "Timestamp: %s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))

	w.WriteString("------------------------------\n")
	w.WriteString("Sections\n")
	w.WriteString("------------------------------\n")
	for _, sec := range report.Sections {
		fmt.Fprintf(w, " %-10s %-7s 0x%08X %s\n", sec.Name, sec.Kind, sec.Vram, humanize.Bytes(uint64(sec.Size)))
	}
	fmt.Fprintf(w, " Functions: %s\n", humanize.Comma(int64(report.Functions)))
	if len(report.Externals) > 0 {
		fmt.Fprintf(w, " External symbols: %s\n", strings.Join(report.Externals, ", "))
	}
	w.WriteString("\n")

	if len(report.Symbols) > 0 {
		w.WriteString("------------------------------\n")
		w.WriteString("Symbols\n")
		w.WriteString("------------------------------\n")
		for _, sym := range report.Symbols {
			fmt.Fprintf(w, " 0x%08X %-9s 0x%-6X %s", sym.Address, sym.Type, sym.Size, sym.Name)
			if n := len(sym.References); n > 0 {
				w.WriteString(faint.Sprintf(" (%d refs)", n))
			}
			w.WriteString("\n")
		}
		w.WriteString("\n")
	}

	if report.Trace != nil {
		w.WriteString("------------------------------\n")
		w.WriteString("Referrers\n")
		w.WriteString("------------------------------")
		w.WriteString(buildCallStack(report.Trace, ""))
		w.WriteString("\n\n")
	}

	// Summary Section
	counts := analyzer.Count(report.Diagnostics)
	numOfCritical := 0
	for _, d := range report.Diagnostics {
		if d.Severity == analyzer.SeverityCritical {
			numOfCritical++
		}
	}
	w.WriteString("------------------------------\n")
	w.WriteString("Summary of Diagnostics\n")
	w.WriteString("------------------------------\n")
	fmt.Fprintf(w, " Critical: %d\n", numOfCritical)
	fmt.Fprintf(w, " Warnings: %d\n", len(report.Diagnostics)-numOfCritical)
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "   %-20s %d\n", k, counts[analyzer.Kind(k)])
	}
	w.WriteString("\n")

	if len(report.Diagnostics) > 0 {
		w.WriteString("------------------------------\n")
		w.WriteString("Detailed Diagnostics\n")
		w.WriteString("------------------------------\n")
		for i, d := range report.Diagnostics {
			sev := warning
			if d.Severity == analyzer.SeverityCritical {
				sev = critical
			}
			fmt.Fprintf(w, "%d. %s %s 0x%08X", i+1, sev.Sprintf("[%s]", d.Severity), d.Kind, d.Address)
			if d.Section != "" {
				fmt.Fprintf(w, " (%s)", d.Section)
			}
			fmt.Fprintf(w, ": %s\n", d.Message)
		}
		w.WriteString("\n")
	}
	w.WriteString("End of Report\n")

	// Print the complete report at once
	_, err := output.Write([]byte(buf.String()))
	return err
}

func buildCallStack(source *analyzer.Source, str string) string {
	str = strings.Join([]string{str, fmt.Sprintf("-> 0x%08X : (%s) [%s]", source.Address, source.Symbol, source.Section)}, "\n")
	if source.CallStack != nil {
		return buildCallStack(source.CallStack, str)
	}
	return str
}

func (r *TextRenderer) Format() string {
	return "text"
}
