package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxkey/voxkey/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List stored recordings",
	Long: `Lists the most recent recordings from the history store, newest
first. With an id argument, prints the full transcript of that
recording.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of recordings to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := history.NewSQLiteStore(history.DefaultConfig())
	if err != nil {
		printError("failed to open history store", err)
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	if len(args) == 1 {
		rec, err := store.GetRecording(ctx, args[0])
		if err != nil {
			printError("recording not found", err)
			return err
		}
		fmt.Printf("ID:       %s\n", rec.ID)
		fmt.Printf("Created:  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Mode:     %s\n", rec.Mode)
		fmt.Printf("Provider: %s\n", rec.Provider)
		fmt.Printf("Status:   %s\n", rec.Status)
		fmt.Printf("Duration: %s\n", rec.Duration.Round(10*time.Millisecond))
		fmt.Printf("Words:    %d\n", rec.WordCount)
		if rec.ErrorMessage != "" {
			fmt.Printf("Error:    %s\n", rec.ErrorMessage)
		}
		if rec.Text != "" {
			fmt.Printf("\n%s\n", rec.Text)
		}
		return nil
	}

	recs, err := store.ListRecordings(ctx, historyLimit)
	if err != nil {
		printError("failed to list recordings", err)
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No recordings yet")
		return nil
	}

	for _, rec := range recs {
		text := rec.Text
		if rec.Status == history.StatusFailed {
			text = "(failed: " + rec.ErrorMessage + ")"
		}
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		text = strings.ReplaceAll(text, "\n", " ")
		fmt.Printf("%s  %s  %-7s  %s\n",
			rec.ID[:8], rec.CreatedAt.Format("2006-01-02 15:04"), rec.Mode, text)
	}

	total, err := store.TotalWords(ctx)
	if err == nil {
		fmt.Printf("\n%d recordings shown, %d words dictated in total\n", len(recs), total)
	}
	return nil
}
