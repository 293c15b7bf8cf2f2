// Package main implements the texsvg CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"texsvg/internal/errs"
	"texsvg/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "texsvg",
	Short: "Compile TeX and typst snippets into re-editable SVG nodes",
	Long: `texsvg renders TeX and typst source into SVG drawings and keeps the
source embedded in the output, so every node stays re-editable.`,
	SilenceUsage: true,
}

func main() {
	// version for the automatic --version flag
	rootCmd.Version = version.Version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(enginesCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "append JSON logs to a file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(errs.ExitCode(err))
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
