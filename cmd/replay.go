package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jprof/internal/tui"
)

var (
	replayFlags sessionFlags
	replayJSON  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Ingest an agent event log into a fresh session and print its inventory",
	Long: `Replay reads agent events, one JSON object per line, and applies them to a new
session in order. Registrations are applied one at a time; invocation,
allocation and loader updates in between run on a pool of workers.

Use "-" to read events from standard input.

Examples:
  jprof replay events.jsonl
  jprof replay --scheme eager --workers 8 events.jsonl
  jprof replay --json events.jsonl > session.json`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeEventLogs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := replayFlags.newSession()
		if err != nil {
			return err
		}

		f, err := openEvents(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		in := replayFlags.newIngester(s)
		if err := in.Run(cmd.Context(), f); err != nil {
			return fmt.Errorf("replay %s: %w", args[0], err)
		}

		stats := in.Stats()
		logger.Info().
			Str("session_id", s.ID()).
			Int64("events", stats.Events).
			Int64("cell_updates", stats.CellUpdates).
			Msg("replay finished")

		snap := s.Snapshot()
		if replayJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		fmt.Println(tui.BoxStyle.Render(tui.RenderSummary(snap)))
		fmt.Println()
		fmt.Println(tui.RenderClasses(snap, 100))
		fmt.Println()
		fmt.Println(tui.RenderMethods(snap, 100, false))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayFlags.register(replayCmd)
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print the final snapshot as JSON")
}
