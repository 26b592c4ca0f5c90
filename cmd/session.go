package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jprof/internal/agent"
	"github.com/mabhi256/jprof/internal/selection"
	"github.com/mabhi256/jprof/internal/session"
	"github.com/mabhi256/jprof/utils"
)

// Flags shared by the commands that build a session from an event log.
type sessionFlags struct {
	root    string
	scheme  string
	workers int
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.root, "root", "r", "", "Root selection token, e.g. \"[lines]com.acme.Foo,10,42\" or \"com.acme.Foo,run,()V\"")
	cmd.Flags().StringVarP(&f.scheme, "scheme", "s", "", "Instrumentation scheme: lazy, eager or total (overrides config)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Workers applying invocation and allocation updates (overrides config)")
}

// newSession creates a session armed with the configured scalars and the
// root selection, if any.
func (f *sessionFlags) newSession() (*session.Status, error) {
	s := session.New(logger)
	cfg.ApplyTo(s)

	if f.scheme != "" {
		scheme, err := session.ParseInstrScheme(f.scheme)
		if err != nil {
			return nil, err
		}
		s.SetInstrScheme(scheme)
	}

	if f.root != "" {
		sel, err := selection.Decode(f.root)
		if err != nil {
			return nil, fmt.Errorf("--root: %w", err)
		}
		applyRootSelection(s, sel)
	}

	return s, nil
}

func applyRootSelection(s *session.Status, sel selection.Selection) {
	in := s.Instrumentation()
	if sel.DefinedViaSourceLines() {
		in.Type = session.InstrCodeRegion
		in.StartLine = sel.StartLine
		in.EndLine = sel.EndLine
	} else {
		in.Type = session.InstrRecursiveFull
	}
	s.SetInstrumentation(in)

	logger.Debug().Stringer("root", sel).Stringer("type", in.Type).Msg("root selection armed")
}

func (f *sessionFlags) newIngester(s *session.Status) *agent.Ingester {
	workers := cfg.Ingest.Workers
	if f.workers > 0 {
		workers = f.workers
	}
	return agent.NewIngester(s, logger,
		agent.WithWorkers(workers),
		agent.WithPace(cfg.Ingest.Pace),
	)
}

func openEvents(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return f, nil
}

var completeEventLogs = utils.CompleteFilesByExtension([]string{".jsonl", ".ndjson"}, true)
