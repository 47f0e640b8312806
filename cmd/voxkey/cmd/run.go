package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/voxkey/voxkey/internal/app"
)

var (
	runProvider string
	runDevice   string
	runLogLevel string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the dictation agent",
	Long: `Starts the dictation agent: registers the global hotkeys and waits
for push-to-talk input. Runs until interrupted.

Configuration is read from ~/.config/voxkey/config.yaml, persisted
settings from settings.json next to it, and API keys from the
environment or a .env file. Flags override file values.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runProvider, "provider", "", "transcription provider (custom, local, cloud)")
	runCmd.Flags().StringVar(&runDevice, "device", "", "audio input device name")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	// API keys may live in a .env next to the binary; absence is fine.
	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		printError("failed to load config", err)
		return err
	}
	if err := app.LoadSettings(&cfg); err != nil {
		printError("failed to load settings", err)
		return err
	}

	if runProvider != "" {
		cfg.Provider = runProvider
	}
	if runDevice != "" {
		cfg.InputDevice = runDevice
	}
	if runLogLevel != "" {
		cfg.LogLevel = runLogLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	a, err := app.New(cfg)
	if err != nil {
		printError("failed to start", err)
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("voxkey running (dictation: %s", cfg.DictationShortcut)
	if cfg.CommandShortcut != "" {
		fmt.Printf(", command: %s", cfg.CommandShortcut)
	}
	fmt.Println("), Ctrl+C to quit")

	return a.Run(ctx)
}
