package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxkey/voxkey/internal/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := capture.ListInputDevices()
		if err != nil {
			printError("failed to list devices", err)
			return err
		}

		if len(devices) == 0 {
			fmt.Println("No input devices found")
			return nil
		}

		for _, d := range devices {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %-40s %d ch  %.0f Hz\n",
				marker, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		}
		fmt.Println("\n* default device")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
