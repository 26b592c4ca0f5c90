package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jprof/internal/agent"
	"github.com/mabhi256/jprof/internal/session"
	"github.com/mabhi256/jprof/internal/target"
	"github.com/mabhi256/jprof/internal/tui"
)

var (
	watchFlags sessionFlags
	watchPID   int
)

var watchCmd = &cobra.Command{
	Use:   "watch <events.jsonl>",
	Short: "Ingest an agent event log while watching the session live",
	Long: `Watch ingests agent events in the background while a terminal view polls
snapshots of the session, the way a profiler front end reads the inventory
while the agent keeps registering classes and methods.

With --pid the target JVM is described (JDK version, OS, JVM arguments, start
time) and the session is marked as attached.

Examples:
  jprof watch events.jsonl
  jprof watch --pid 1234 events.jsonl
  jprof watch --pid <TAB>                # Tab completion with PID and MainClass`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeEventLogs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := watchFlags.newSession()
		if err != nil {
			return err
		}

		title := args[0]
		if watchPID > 0 {
			desc, err := target.NewDescriber(logger).Describe(cmd.Context(), watchPID)
			if err != nil {
				return fmt.Errorf("unable to describe target: %w", err)
			}
			desc.Apply(s, true)
			title = fmt.Sprintf("%s (PID: %d)", args[0], watchPID)
		}
		s.SetTargetAppRunning(true)

		f, err := openEvents(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		in := watchFlags.newIngester(s)
		model := tui.New(s, tui.Config{
			Title:    title,
			Interval: cfg.Watch.Interval,
			Progress: func() int64 { return in.Stats().Events },
		})

		err = tui.StartTUI(cmd.Context(), model, ingestWhileRunning(s, in, f))
		if err != nil {
			return fmt.Errorf("watch %s: %w", args[0], err)
		}
		return nil
	},
}

// ingestWhileRunning drains r into the session and clears the running flag
// once the stream ends, fails or is cancelled.
func ingestWhileRunning(s *session.Status, in *agent.Ingester, r io.Reader) func(context.Context) error {
	return func(ctx context.Context) error {
		defer s.SetTargetAppRunning(false)
		return in.Run(ctx, r)
	}
}

func completeJavaPIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	processes, err := target.DiscoverJavaProcesses(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, proc := range processes {
		completions = append(completions, strconv.Itoa(proc.PID)+"\t"+proc.MainClass)
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags.register(watchCmd)
	watchCmd.Flags().IntVarP(&watchPID, "pid", "p", 0, "PID of the target JVM to describe")
	_ = watchCmd.RegisterFlagCompletionFunc("pid", completeJavaPIDs)
}
