package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/jprof/internal/session"
)

// Ingester applies agent events to a session.
//
// Inside the profiled process instrumentation callbacks fire on whichever
// thread triggered them. Run reproduces that: registrations are applied in
// stream order, while invocation, allocation and loader updates between two
// registrations are spread over a pool of workers.
type Ingester struct {
	status  *session.Status
	logger  zerolog.Logger
	workers int
	pace    time.Duration

	applied atomic.Int64
	cells   atomic.Int64
}

type Option func(*Ingester)

// WithWorkers sets the size of the cell update pool.
func WithWorkers(n int) Option {
	return func(in *Ingester) {
		in.workers = max(n, 1)
	}
}

// WithPace sleeps between events, for live replays.
func WithPace(d time.Duration) Option {
	return func(in *Ingester) {
		in.pace = d
	}
}

func NewIngester(status *session.Status, logger zerolog.Logger, opts ...Option) *Ingester {
	in := &Ingester{
		status:  status,
		logger:  logger.With().Str("component", "ingest").Logger(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Stats reports how many events were applied so far.
type Stats struct {
	Events      int64
	CellUpdates int64
}

func (in *Ingester) Stats() Stats {
	return Stats{
		Events:      in.applied.Load(),
		CellUpdates: in.cells.Load(),
	}
}

// Apply maps one event onto the session.
func (in *Ingester) Apply(ev Event) error {
	s := in.status
	var err error

	switch ev.Kind {
	case KindClass:
		_, err = s.RegisterAllocatedClass(ev.Class)
	case KindClasses:
		_, err = s.RegisterAllocatedClasses(ev.Classes...)
	case KindClassesTotal:
		err = s.RegisterAllocatedClassesTotal(ev.Total)
	case KindMethodBatch:
		if ev.Batch == nil {
			return fmt.Errorf("%s: %w: no batch", ev, session.ErrMalformedBatch)
		}
		_, err = s.RegisterInstrumentedMethodBatch(*ev.Batch)
	case KindMethod:
		_, err = s.RegisterInstrumentedMethod(ev.Class, ev.LoaderID, ev.Method, ev.Signature)
	case KindInvoked:
		err = s.MarkMethodInvoked(ev.Index)
	case KindAllocation:
		err = s.RecordAllocations(ev.Index, ev.Delta)
	case KindLoaderID:
		err = s.SetClassLoaderID(ev.Index, ev.LoaderID)
	case KindTimers:
		s.SetTimerTypes(ev.Absolute, ev.ThreadCPU)
	case KindScheme:
		var scheme session.InstrScheme
		scheme, err = session.ParseInstrScheme(ev.Scheme)
		if err == nil {
			s.SetInstrScheme(scheme)
		}
	case KindRunning:
		s.SetTargetAppRunning(ev.Running)
	case KindReset:
		s.Reset()
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", ev, err)
	}

	in.applied.Add(1)
	if ev.cellUpdate() {
		in.cells.Add(1)
	}
	return nil
}

// Run decodes events from r until EOF and applies them. It stops at the first
// event that fails.
func (in *Ingester) Run(ctx context.Context, r io.Reader) error {
	dec := NewDecoder(r)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)

	for {
		if err := gctx.Err(); err != nil {
			break
		}

		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = g.Wait()
			return err
		}

		if ev.cellUpdate() {
			g.Go(func() error { return in.Apply(ev) })
		} else {
			// registrations and resets wait for pending cell updates
			if err := g.Wait(); err != nil {
				return err
			}
			g, gctx = errgroup.WithContext(ctx)
			g.SetLimit(in.workers)

			if err := in.Apply(ev); err != nil {
				return err
			}
		}

		if in.pace > 0 {
			select {
			case <-gctx.Done():
			case <-time.After(in.pace):
			}
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st := in.Stats()
	in.logger.Debug().
		Int64("events", st.Events).
		Int64("cell_updates", st.CellUpdates).
		Msg("event stream drained")
	return nil
}
