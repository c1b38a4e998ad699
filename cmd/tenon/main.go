package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagVerbose bool

	rootCmd = &cobra.Command{
		Use:   "tenon",
		Short: "Parametric CAM authoring and build tool",
		Long: `tenon evaluates a Lisp design file into a part tree, schedules its
machining operations across the configured shops, and renders the
artifacts through a content-addressed cache so unchanged parts are
never regenerated.`,
		SilenceUsage: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tenon:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable debug logging")
	rootCmd.AddCommand(buildCmd, checkCmd)
}
