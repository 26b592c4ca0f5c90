// Package session holds the control state shared by the profiler controller
// and the instrumentation agent: the inventory of instrumented classes and
// methods, and the session-wide scalars.
//
// All access goes through a Status handle. Operations that touch more than one
// field run inside a Guard transaction, so a reader never observes a column
// mid-resize or two related scalars half-updated.
package session

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status is the profiling session's shared state. Create one per session with
// New and pass it explicitly to agent callbacks and controller polls.
type Status struct {
	id     string
	logger zerolog.Logger
	guard  Guard

	inv inventory

	timers           TimerCalibration
	absoluteTimerOn  bool
	threadCPUTimerOn bool
	instr            Instrumentation
	target           TargetInfo
	dumpAbsTimeStamp int64
	savedStats       *InternalStats

	targetAppRunning atomic.Bool
}

func New(logger zerolog.Logger) *Status {
	id := uuid.New().String()
	return &Status{
		id:     id,
		logger: logger.With().Str("component", "session").Str("session_id", id).Logger(),
	}
}

func (s *Status) ID() string {
	return s.id
}

// ---- agent-facing ingestion ----

// RegisterAllocatedClass appends one class to the allocation tracking columns
// and returns the number of tracked classes.
func (s *Status) RegisterAllocatedClass(name string) (int, error) {
	return s.RegisterAllocatedClasses(name)
}

// RegisterAllocatedClasses appends a delta of newly discovered classes.
func (s *Status) RegisterAllocatedClasses(names ...string) (int, error) {
	var n int
	err := s.guard.Update(func() error {
		var err error
		n, err = s.inv.addClasses(names...)
		return err
	})
	if err != nil {
		return n, err
	}

	s.logger.Trace().Int("added", len(names)).Int("classes", n).Msg("registered allocated classes")
	return n, nil
}

// RegisterAllocatedClassesTotal is used when the observing side already knows
// the number of classes. It grows the allocation columns to hold total
// classes and sets the count directly.
func (s *Status) RegisterAllocatedClassesTotal(total int) error {
	return s.guard.Update(func() error {
		return s.inv.setClassTotal(total)
	})
}

// RegisterInstrumentedMethodBatch appends a group of methods ordered by owning
// class and returns the id of the first one. The batch is validated before
// any column is touched. An empty batch is a no-op and returns the id the next
// method would get.
func (s *Status) RegisterInstrumentedMethodBatch(b MethodBatch) (int, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}

	var first int
	err := s.guard.Update(func() error {
		var err error
		first, err = s.inv.addMethodBatch(b, s.instr.Scheme)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug().
		Int("classes", len(b.Classes)).
		Int("methods", b.NumMethods()).
		Int("first_id", first).
		Msg("registered instrumented method batch")
	return first, nil
}

// RegisterInstrumentedMethod appends a single method and returns its id.
func (s *Status) RegisterInstrumentedMethod(class string, loaderID int, name, signature string) (int, error) {
	var idx int
	err := s.guard.Update(func() error {
		var err error
		idx, err = s.inv.addMethod(class, loaderID, name, signature, s.instr.Scheme)
		return err
	})
	return idx, err
}

// MarkMethodInvoked flips the invoked flag of a registered method.
func (s *Status) MarkMethodInvoked(id int) error {
	return s.guard.Update(func() error {
		if err := s.inv.checkMethod(id); err != nil {
			return err
		}
		s.inv.invoked.buf[id] = true
		return nil
	})
}

// SetClassLoaderID updates the loader id of a registered method.
func (s *Status) SetClassLoaderID(id, loaderID int) error {
	return s.guard.Update(func() error {
		if err := s.inv.checkMethod(id); err != nil {
			return err
		}
		s.inv.loaderIDs.buf[id] = loaderID
		return nil
	})
}

// RecordAllocations adds delta to the live instance count of a tracked class.
func (s *Status) RecordAllocations(classID, delta int) error {
	return s.guard.Update(func() error {
		if err := s.inv.checkClass(classID); err != nil {
			return err
		}
		s.inv.allocCounts.buf[classID] += delta
		return nil
	})
}

// Reset empties the inventory before the next instrumentation run is armed.
// Scalars describing the target and timers are kept.
func (s *Status) Reset() {
	_ = s.guard.Update(func() error {
		s.inv.reset()
		return nil
	})
	s.logger.Debug().Msg("reset instrumented class and method info")
}

// ---- controller-facing queries ----
//
// Column getters return the live column clipped to its logical length. The
// result is a point-in-time snapshot: later growth replaces the column and
// leaves it untouched, but in-place updates (invoked flags, loader ids,
// allocation counts) still show through it. Use Snapshot for an isolated copy.

func (s *Status) ClassNames() []string {
	var v []string
	s.guard.View(func() { v = s.inv.classNames.view(s.inv.nClasses) })
	return v
}

func (s *Status) AllocatedInstancesCount() []int {
	var v []int
	s.guard.View(func() { v = s.inv.allocCounts.view(s.inv.nClasses) })
	return v
}

func (s *Status) InstrMethodClasses() []string {
	var v []string
	s.guard.View(func() { v = s.inv.methodClasses.view(s.inv.nMethods) })
	return v
}

func (s *Status) ClassLoaderIDs() []int {
	var v []int
	s.guard.View(func() { v = s.inv.loaderIDs.view(s.inv.nMethods) })
	return v
}

func (s *Status) InstrMethodNames() []string {
	var v []string
	s.guard.View(func() { v = s.inv.methodNames.view(s.inv.nMethods) })
	return v
}

func (s *Status) InstrMethodSignatures() []string {
	var v []string
	s.guard.View(func() { v = s.inv.methodSigs.view(s.inv.nMethods) })
	return v
}

func (s *Status) InstrMethodInvoked() []bool {
	var v []bool
	s.guard.View(func() { v = s.inv.invoked.view(s.inv.nMethods) })
	return v
}

func (s *Status) NInstrClasses() int {
	var n int
	s.guard.View(func() { n = s.inv.nClasses })
	return n
}

// NInstrMethods counts the sentinel once any method is registered.
func (s *Status) NInstrMethods() int {
	var n int
	s.guard.View(func() { n = s.inv.nMethods })
	return n
}

// FirstInstrMethodID is the id of the first real method. Id 0 is never issued.
func (s *Status) FirstInstrMethodID() int {
	return SentinelMethodID + 1
}

// StartingMethodID is the id the next registered method will receive when the
// store is non-empty, and 1 otherwise.
func (s *Status) StartingMethodID() int {
	var n int
	s.guard.View(func() { n = s.inv.nMethods })
	if n > 0 {
		return n
	}
	return 1
}

// ---- session scalars ----

// SetTimerTypes switches both timer flags in one transaction.
func (s *Status) SetTimerTypes(absolute, threadCPU bool) {
	_ = s.guard.Update(func() error {
		s.absoluteTimerOn = absolute
		s.threadCPUTimerOn = threadCPU
		return nil
	})
}

func (s *Status) TimerTypes() (absolute, threadCPU bool) {
	s.guard.View(func() {
		absolute, threadCPU = s.absoluteTimerOn, s.threadCPUTimerOn
	})
	return absolute, threadCPU
}

// CollectingTwoTimeStamps reports whether both timers are on.
func (s *Status) CollectingTwoTimeStamps() bool {
	absolute, threadCPU := s.TimerTypes()
	return absolute && threadCPU
}

func (s *Status) SetTimerCalibration(tc TimerCalibration) {
	_ = s.guard.Update(func() error {
		s.timers = tc
		return nil
	})
}

func (s *Status) TimerCalibration() TimerCalibration {
	var tc TimerCalibration
	s.guard.View(func() { tc = s.timers })
	return tc
}

func (s *Status) SetInstrumentation(in Instrumentation) {
	_ = s.guard.Update(func() error {
		s.instr = in
		return nil
	})
}

func (s *Status) Instrumentation() Instrumentation {
	var in Instrumentation
	s.guard.View(func() { in = s.instr })
	return in
}

func (s *Status) SetInstrScheme(scheme InstrScheme) {
	_ = s.guard.Update(func() error {
		s.instr.Scheme = scheme
		return nil
	})
}

func (s *Status) InstrScheme() InstrScheme {
	var scheme InstrScheme
	s.guard.View(func() { scheme = s.instr.Scheme })
	return scheme
}

func (s *Status) SetTarget(t TargetInfo) {
	_ = s.guard.Update(func() error {
		s.target = t
		return nil
	})
	s.logger.Debug().
		Str("jdk", t.FullJDKVersion).
		Str("os", t.OSName).
		Msg("target descriptors set")
}

// UpdateTarget edits the target descriptors in place, in one transaction.
func (s *Status) UpdateTarget(fn func(t *TargetInfo)) {
	var t TargetInfo
	_ = s.guard.Update(func() error {
		fn(&s.target)
		t = s.target
		return nil
	})
	s.logger.Debug().
		Str("jdk", t.FullJDKVersion).
		Str("os", t.OSName).
		Msg("target descriptors updated")
}

func (s *Status) Target() TargetInfo {
	var t TargetInfo
	s.guard.View(func() { t = s.target })
	return t
}

// SetTargetAppRunning is updated continuously by the transport and does not
// take the guard.
func (s *Status) SetTargetAppRunning(running bool) {
	s.targetAppRunning.Store(running)
}

func (s *Status) TargetAppRunning() bool {
	return s.targetAppRunning.Load()
}

// SetDumpAbsTimeStamp records the target's timestamp at the moment a CPU
// results dump was requested.
func (s *Status) SetDumpAbsTimeStamp(ts int64) {
	_ = s.guard.Update(func() error {
		s.dumpAbsTimeStamp = ts
		return nil
	})
}

func (s *Status) DumpAbsTimeStamp() int64 {
	var ts int64
	s.guard.View(func() { ts = s.dumpAbsTimeStamp })
	return ts
}

// SaveInternalStats keeps the statistics received when the target terminated.
func (s *Status) SaveInternalStats(st InternalStats) {
	_ = s.guard.Update(func() error {
		s.savedStats = &st
		return nil
	})
}

func (s *Status) SavedInternalStats() (InternalStats, bool) {
	var (
		st InternalStats
		ok bool
	)
	s.guard.View(func() {
		if s.savedStats != nil {
			st, ok = *s.savedStats, true
		}
	})
	return st, ok
}
