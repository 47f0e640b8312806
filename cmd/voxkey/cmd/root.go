package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "voxkey",
	Short: "voxkey - push-to-talk dictation",
	Long: `voxkey is a push-to-talk dictation utility: hold a global hotkey,
speak, release, and the transcript is pasted into the previously
focused application.

Commands:
  run      - start the dictation agent
  devices  - list audio input devices
  history  - list stored recordings
  version  - show version information`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
