package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "statext",
		Short: "Regulatory statement extractor",
		Long: `Statext turns dense regulatory documents into an editable table of
discrete statements.

It segments documents along their hierarchical section numbering,
classifies each statement by modality, and supports reviewer edits:
  - Split a statement into parts
  - Merge statements into one
  - Group statements under a heading
  - Reorder, annotate and delete statements
  - Export the result as CSV`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("library", ".statext", "Library directory")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(documentsCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(splitCmd())
	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(groupCmd())
	rootCmd.AddCommand(moveCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(setCmd())
	rootCmd.AddCommand(columnsCmd())
	rootCmd.AddCommand(templatesCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the CLI logger. Debug level when --verbose is set,
// warnings only otherwise so command output stays clean.
func newLogger(cmd *cobra.Command) zerolog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
