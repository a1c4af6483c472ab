package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pdfscrub.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdfscrub",
		Short: "Remove active content from PDF documents",
		Long: `pdfscrub removes active content from PDF documents.

Every input is scanned for risky constructs, stripped of document and
page scripts, additional and open actions, the catalog name tree, forms
and annotations, rebuilt from its reachable objects and, when installed, normalized by qpdf, pdftk and Ghostscript.
The cleaned copy is written as <stem>_limpio.pdf in the output directory
(PDFs_limpios by default). The input is never modified.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCleanCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command. Usage, configuration and environment
// errors end the process with status 1. Files that fail to clean do not.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
