package session

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jprof/internal/testutil"
)

func newTestStatus(t *testing.T) *Status {
	t.Helper()
	return New(testutil.NewTestLogger(t))
}

func fooBatch(methods ...string) MethodBatch {
	sigs := make([]string, len(methods))
	for i := range sigs {
		sigs[i] = "()V"
	}
	return MethodBatch{
		Classes:          []string{"Foo"},
		LoaderIDs:        []int{1},
		MethodCounts:     []int{len(methods)},
		MethodNames:      methods,
		MethodSignatures: sigs,
	}
}

func TestRegisterAllocatedClasses(t *testing.T) {
	s := newTestStatus(t)

	n, err := s.RegisterAllocatedClass("Foo")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.RegisterAllocatedClass("Bar")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"Foo", "Bar"}, s.ClassNames())
	assert.Equal(t, 2, s.NInstrClasses())
	assert.Equal(t, []int{0, 0}, s.AllocatedInstancesCount())
}

func TestRegisterAllocatedClasses_BatchDelta(t *testing.T) {
	s := newTestStatus(t)

	names := make([]string, 120)
	for i := range names {
		names[i] = fmt.Sprintf("C%d", i)
	}

	n, err := s.RegisterAllocatedClasses(names[:70]...)
	require.NoError(t, err)
	assert.Equal(t, 70, n)

	n, err = s.RegisterAllocatedClasses(names[70:]...)
	require.NoError(t, err)
	assert.Equal(t, 120, n)
	assert.Equal(t, names, s.ClassNames())

	n, err = s.RegisterAllocatedClasses()
	require.NoError(t, err)
	assert.Equal(t, 120, n)
}

func TestRegisterAllocatedClassesTotal(t *testing.T) {
	s := newTestStatus(t)

	_, err := s.RegisterAllocatedClasses("Foo", "Bar")
	require.NoError(t, err)
	require.NoError(t, s.RecordAllocations(1, 3))

	require.NoError(t, s.RegisterAllocatedClassesTotal(75))
	assert.Equal(t, 75, s.NInstrClasses())

	names := s.ClassNames()
	require.Len(t, names, 75)
	assert.Equal(t, "Foo", names[0])
	assert.Equal(t, "Bar", names[1])
	assert.Empty(t, names[2])

	counts := s.AllocatedInstancesCount()
	require.Len(t, counts, 75)
	assert.Equal(t, 3, counts[1])

	err = s.RegisterAllocatedClassesTotal(10)
	require.ErrorIs(t, err, ErrShrink)
	assert.Equal(t, 75, s.NInstrClasses())
}

func TestRecordAllocations(t *testing.T) {
	s := newTestStatus(t)
	_, err := s.RegisterAllocatedClasses("Foo")
	require.NoError(t, err)

	counts := s.AllocatedInstancesCount()
	require.NoError(t, s.RecordAllocations(0, 5))
	require.NoError(t, s.RecordAllocations(0, -2))

	// in-place updates show through an earlier reference
	assert.Equal(t, 3, counts[0])

	require.ErrorIs(t, s.RecordAllocations(1, 1), ErrIndexOutOfRange)
	require.ErrorIs(t, s.RecordAllocations(-1, 1), ErrIndexOutOfRange)
}

func TestRegisterMethodBatch_SentinelAndLayout(t *testing.T) {
	s := newTestStatus(t)
	assert.Equal(t, 1, s.StartingMethodID())

	first, err := s.RegisterInstrumentedMethodBatch(MethodBatch{
		Classes:          []string{"Foo", "Bar"},
		LoaderIDs:        []int{1, 2},
		MethodCounts:     []int{2, 1},
		MethodNames:      []string{"m1", "m2", "run"},
		MethodSignatures: []string{"()V", "(I)I", "()V"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 4, s.NInstrMethods())

	assert.Equal(t, []string{SentinelMethodClass, "Foo", "Foo", "Bar"}, s.InstrMethodClasses())
	assert.Equal(t, []int{0, 1, 1, 2}, s.ClassLoaderIDs())
	assert.Equal(t, []string{"", "m1", "m2", "run"}, s.InstrMethodNames())
	assert.Equal(t, []string{"", "()V", "(I)I", "()V"}, s.InstrMethodSignatures())
	assert.Equal(t, []bool{false, false, false, false}, s.InstrMethodInvoked())

	assert.Equal(t, 1, s.FirstInstrMethodID())
	assert.Equal(t, 4, s.StartingMethodID())

	// a second batch does not add another sentinel
	first, err = s.RegisterInstrumentedMethodBatch(fooBatch("m3"))
	require.NoError(t, err)
	assert.Equal(t, 4, first)
	assert.Equal(t, 5, s.NInstrMethods())
	assert.Equal(t, SentinelMethodClass, s.InstrMethodClasses()[0])
}

func TestRegisterMethodBatch_CountsAddUp(t *testing.T) {
	s := newTestStatus(t)

	total := 0
	for i := 1; i <= 30; i++ {
		methods := make([]string, i%7)
		for j := range methods {
			methods[j] = fmt.Sprintf("m%d_%d", i, j)
		}
		_, err := s.RegisterInstrumentedMethodBatch(fooBatch(methods...))
		require.NoError(t, err)
		total += len(methods)

		n := s.NInstrMethods()
		assert.Equal(t, total+1, n)
		assert.Equal(t, SentinelMethodClass, s.InstrMethodClasses()[0])
		assert.Empty(t, s.InstrMethodNames()[0])

		// parallel columns never diverge
		assert.Len(t, s.InstrMethodClasses(), n)
		assert.Len(t, s.ClassLoaderIDs(), n)
		assert.Len(t, s.InstrMethodNames(), n)
		assert.Len(t, s.InstrMethodSignatures(), n)
		assert.Len(t, s.InstrMethodInvoked(), n)
	}
}

func TestRegisterMethodBatch_GrowthPreservesCells(t *testing.T) {
	split := newTestStatus(t)
	_, err := split.RegisterInstrumentedMethodBatch(fooBatch("A", "B"))
	require.NoError(t, err)
	_, err = split.RegisterInstrumentedMethodBatch(fooBatch("C"))
	require.NoError(t, err)

	whole := newTestStatus(t)
	_, err = whole.RegisterInstrumentedMethodBatch(fooBatch("A", "B", "C"))
	require.NoError(t, err)

	assert.Equal(t, whole.InstrMethodNames(), split.InstrMethodNames())
	assert.Equal(t, whole.InstrMethodClasses(), split.InstrMethodClasses())
	assert.Equal(t, whole.ClassLoaderIDs(), split.ClassLoaderIDs())
}

func TestRegisterMethodBatch_GrowsPastSeed(t *testing.T) {
	s := newTestStatus(t)

	var want []string
	for i := 0; i < 5; i++ {
		methods := make([]string, 40)
		for j := range methods {
			methods[j] = fmt.Sprintf("m%d", i*40+j)
		}
		want = append(want, methods...)
		_, err := s.RegisterInstrumentedMethodBatch(fooBatch(methods...))
		require.NoError(t, err)
	}

	assert.Equal(t, append([]string{""}, want...), s.InstrMethodNames())
}

func TestRegisterMethodBatch_Eager(t *testing.T) {
	s := newTestStatus(t)
	s.SetInstrScheme(InstrSchemeEager)

	_, err := s.RegisterInstrumentedMethodBatch(fooBatch("m1", "m2"))
	require.NoError(t, err)

	invoked := s.InstrMethodInvoked()
	require.Len(t, invoked, 3)
	assert.True(t, invoked[1])
	assert.True(t, invoked[2])
}

func TestRegisterMethodBatch_EagerMarksSentinel(t *testing.T) {
	s := newTestStatus(t)
	s.SetInstrScheme(InstrSchemeEager)

	_, err := s.RegisterInstrumentedMethodBatch(fooBatch("m1"))
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true}, s.InstrMethodInvoked())
}

func TestRegisterMethodBatch_EagerOnlyMarksNewSlots(t *testing.T) {
	s := newTestStatus(t)

	_, err := s.RegisterInstrumentedMethodBatch(fooBatch("m1", "m2"))
	require.NoError(t, err)

	s.SetInstrScheme(InstrSchemeEager)
	first, err := s.RegisterInstrumentedMethodBatch(fooBatch("m3", "m4"))
	require.NoError(t, err)
	assert.Equal(t, 3, first)

	assert.Equal(t, []bool{false, false, false, true, true}, s.InstrMethodInvoked())
}

func TestRegisterInstrumentedMethod_Eager(t *testing.T) {
	s := newTestStatus(t)
	s.SetInstrScheme(InstrSchemeEager)

	id, err := s.RegisterInstrumentedMethod("Foo", 1, "m1", "()V")
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, []bool{true, true}, s.InstrMethodInvoked())

	s.SetInstrScheme(InstrSchemeLazy)
	id, err = s.RegisterInstrumentedMethod("Foo", 1, "m2", "()V")
	require.NoError(t, err)
	s.SetInstrScheme(InstrSchemeEager)
	_, err = s.RegisterInstrumentedMethod("Foo", 1, "m3", "()V")
	require.NoError(t, err)

	assert.Equal(t, 2, id)
	assert.Equal(t, []bool{true, true, false, true}, s.InstrMethodInvoked())
}

func TestRegisterMethodBatch_InvokedFlagsCopied(t *testing.T) {
	s := newTestStatus(t)

	b := fooBatch("m1", "m2", "m3")
	b.Invoked = []bool{true, false, true}
	_, err := s.RegisterInstrumentedMethodBatch(b)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, false, true}, s.InstrMethodInvoked())
}

func TestRegisterMethodBatch_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		batch MethodBatch
	}{
		{"loader ids", MethodBatch{Classes: []string{"A", "B"}, LoaderIDs: []int{1}, MethodCounts: []int{0, 0}}},
		{"method counts", MethodBatch{Classes: []string{"A"}, LoaderIDs: []int{1}, MethodCounts: []int{1, 1}}},
		{"negative count", MethodBatch{Classes: []string{"A"}, LoaderIDs: []int{1}, MethodCounts: []int{-1}}},
		{"names", MethodBatch{Classes: []string{"A"}, LoaderIDs: []int{1}, MethodCounts: []int{2}, MethodNames: []string{"m"}, MethodSignatures: []string{"()V", "()V"}}},
		{"signatures", MethodBatch{Classes: []string{"A"}, LoaderIDs: []int{1}, MethodCounts: []int{1}, MethodNames: []string{"m"}}},
		{"invoked", MethodBatch{Classes: []string{"A"}, LoaderIDs: []int{1}, MethodCounts: []int{1}, MethodNames: []string{"m"}, MethodSignatures: []string{"()V"}, Invoked: []bool{}}},
		{"counts overflow to one", MethodBatch{Classes: []string{"A", "B", "C"}, LoaderIDs: []int{1, 1, 1}, MethodCounts: []int{math.MaxInt, math.MaxInt, 3}, MethodNames: []string{"m"}, MethodSignatures: []string{"()V"}}},
		{"counts overflow to zero", MethodBatch{Classes: []string{"A", "B", "C"}, LoaderIDs: []int{1, 1, 1}, MethodCounts: []int{math.MaxInt, math.MaxInt, 2}}},
		{"counts past capacity", MethodBatch{Classes: []string{"A", "B"}, LoaderIDs: []int{1, 1}, MethodCounts: []int{math.MaxInt32, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStatus(t)
			_, err := s.RegisterInstrumentedMethodBatch(tt.batch)
			require.ErrorIs(t, err, ErrMalformedBatch)
			assert.Zero(t, s.NInstrMethods())
			assert.Empty(t, s.InstrMethodNames())
		})
	}
}

func TestRegisterMethodBatch_EmptyIsNoop(t *testing.T) {
	s := newTestStatus(t)

	first, err := s.RegisterInstrumentedMethodBatch(MethodBatch{})
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	first, err = s.RegisterInstrumentedMethodBatch(MethodBatch{
		Classes:      []string{"Foo"},
		LoaderIDs:    []int{1},
		MethodCounts: []int{0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	assert.Zero(t, s.NInstrMethods())
	assert.Empty(t, s.InstrMethodClasses())

	_, err = s.RegisterInstrumentedMethodBatch(fooBatch("m1", "m2"))
	require.NoError(t, err)
	first, err = s.RegisterInstrumentedMethodBatch(MethodBatch{})
	require.NoError(t, err)
	assert.Equal(t, s.NInstrMethods(), first)
	assert.Equal(t, 3, first)
}

func TestRegisterInstrumentedMethod_Incremental(t *testing.T) {
	s := newTestStatus(t)

	id, err := s.RegisterInstrumentedMethod("Foo", 3, "m1", "()V")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = s.RegisterInstrumentedMethod("Foo", 3, "m2", "(J)V")
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	assert.Equal(t, 3, s.NInstrMethods())
	assert.Equal(t, []string{SentinelMethodClass, "Foo", "Foo"}, s.InstrMethodClasses())
	assert.Equal(t, []int{0, 3, 3}, s.ClassLoaderIDs())
	assert.Equal(t, []string{"", "m1", "m2"}, s.InstrMethodNames())
	assert.Equal(t, []string{"", "()V", "(J)V"}, s.InstrMethodSignatures())

	// same layout as the batched form
	batched := newTestStatus(t)
	_, err = batched.RegisterInstrumentedMethodBatch(MethodBatch{
		Classes:          []string{"Foo"},
		LoaderIDs:        []int{3},
		MethodCounts:     []int{2},
		MethodNames:      []string{"m1", "m2"},
		MethodSignatures: []string{"()V", "(J)V"},
	})
	require.NoError(t, err)
	assert.Equal(t, batched.Snapshot().MethodNames, s.Snapshot().MethodNames)
}

func TestMarkMethodInvoked(t *testing.T) {
	s := newTestStatus(t)
	_, err := s.RegisterInstrumentedMethodBatch(fooBatch("m1", "m2"))
	require.NoError(t, err)

	invoked := s.InstrMethodInvoked()
	require.NoError(t, s.MarkMethodInvoked(2))
	assert.Equal(t, []bool{false, false, true}, invoked)

	require.ErrorIs(t, s.MarkMethodInvoked(0), ErrIndexOutOfRange)
	require.ErrorIs(t, s.MarkMethodInvoked(3), ErrIndexOutOfRange)

	require.NoError(t, s.SetClassLoaderID(1, 9))
	assert.Equal(t, 9, s.ClassLoaderIDs()[1])
}

func TestQuerySnapshotUnaffectedByLaterRegistration(t *testing.T) {
	s := newTestStatus(t)
	_, err := s.RegisterInstrumentedMethodBatch(fooBatch("m1"))
	require.NoError(t, err)

	names := s.InstrMethodNames()

	more := make([]string, 200)
	for i := range more {
		more[i] = fmt.Sprintf("x%d", i)
	}
	_, err = s.RegisterInstrumentedMethodBatch(fooBatch(more...))
	require.NoError(t, err)

	assert.Equal(t, []string{"", "m1"}, names)
	assert.Len(t, s.InstrMethodNames(), 202)
}

func TestReset_MatchesFreshStore(t *testing.T) {
	s := newTestStatus(t)

	for i := 0; i < 5; i++ {
		_, err := s.RegisterAllocatedClass(fmt.Sprintf("C%d", i))
		require.NoError(t, err)
	}
	_, err := s.RegisterInstrumentedMethodBatch(fooBatch("m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8", "m9"))
	require.NoError(t, err)
	require.Equal(t, 10, s.NInstrMethods())

	s.Reset()

	assert.Zero(t, s.NInstrClasses())
	assert.Zero(t, s.NInstrMethods())
	assert.Empty(t, s.ClassNames())
	assert.Empty(t, s.AllocatedInstancesCount())
	assert.Empty(t, s.InstrMethodClasses())
	assert.Empty(t, s.ClassLoaderIDs())
	assert.Empty(t, s.InstrMethodNames())
	assert.Empty(t, s.InstrMethodSignatures())
	assert.Empty(t, s.InstrMethodInvoked())
	assert.Equal(t, 1, s.StartingMethodID())

	fresh := newTestStatus(t)
	got, want := s.Snapshot(), fresh.Snapshot()
	got.SessionID, want.SessionID = "", ""
	assert.Equal(t, want, got)

	// the sentinel comes back on the next registration
	first, err := s.RegisterInstrumentedMethodBatch(fooBatch("again"))
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, SentinelMethodClass, s.InstrMethodClasses()[0])
}

func TestTimerTypes(t *testing.T) {
	s := newTestStatus(t)
	assert.False(t, s.CollectingTwoTimeStamps())

	s.SetTimerTypes(true, false)
	abs, cpu := s.TimerTypes()
	assert.True(t, abs)
	assert.False(t, cpu)
	assert.False(t, s.CollectingTwoTimeStamps())

	s.SetTimerTypes(true, true)
	assert.True(t, s.CollectingTwoTimeStamps())
}

func TestTimerTypes_ObservedTogether(t *testing.T) {
	s := newTestStatus(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			on := i%2 == 0
			s.SetTimerTypes(on, on)
		}
	}()

	for i := 0; i < 2000; i++ {
		abs, cpu := s.TimerTypes()
		require.Equal(t, abs, cpu, "timer flags observed half-updated")
	}
	wg.Wait()
}

func TestScalars(t *testing.T) {
	s := newTestStatus(t)

	var tc TimerCalibration
	tc.MethodEntryExitCallTime[TimerAbsolute] = 12.5
	tc.TimerCountsInSecond = [2]int64{1_000_000_000, 1_000_000_000}
	s.SetTimerCalibration(tc)
	assert.Equal(t, tc, s.TimerCalibration())

	target := TargetInfo{
		JDKVersion:        "jdk17",
		FullJDKVersion:    "17.0.9+9",
		OSName:            "Linux",
		JVMArguments:      "-Xmx1g",
		StartupTimeMillis: 1_700_000_000_000,
	}
	s.SetTarget(target)
	assert.Equal(t, target, s.Target())
	assert.Equal(t, int64(1_700_000_000_000), s.Target().StartupTime().UnixMilli())

	s.SetInstrumentation(Instrumentation{Scheme: InstrSchemeTotal, Type: InstrRecursiveFull, StartLine: 3, EndLine: 9})
	assert.Equal(t, InstrSchemeTotal, s.InstrScheme())
	assert.Equal(t, InstrRecursiveFull, s.Instrumentation().Type)

	s.SetTargetAppRunning(true)
	assert.True(t, s.TargetAppRunning())

	s.SetDumpAbsTimeStamp(42)
	assert.Equal(t, int64(42), s.DumpAbsTimeStamp())

	_, ok := s.SavedInternalStats()
	assert.False(t, ok)
	s.SaveInternalStats(InternalStats{TotalInstrMethods: 7})
	st, ok := s.SavedInternalStats()
	require.True(t, ok)
	assert.Equal(t, 7, st.TotalInstrMethods)

	// reset keeps scalars
	s.Reset()
	assert.Equal(t, target, s.Target())
}

func TestParseInstrScheme(t *testing.T) {
	for _, scheme := range []InstrScheme{InstrSchemeLazy, InstrSchemeEager, InstrSchemeTotal} {
		got, err := ParseInstrScheme(scheme.String())
		require.NoError(t, err)
		assert.Equal(t, scheme, got)
	}

	_, err := ParseInstrScheme("sometimes")
	assert.Error(t, err)
}

func TestSnapshotHelpers(t *testing.T) {
	s := newTestStatus(t)
	_, err := s.RegisterInstrumentedMethodBatch(MethodBatch{
		Classes:          []string{"Foo", "Bar"},
		LoaderIDs:        []int{1, 1},
		MethodCounts:     []int{2, 1},
		MethodNames:      []string{"a", "b", "c"},
		MethodSignatures: []string{"()V", "()V", "()V"},
	})
	require.NoError(t, err)
	require.NoError(t, s.MarkMethodInvoked(3))

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.RealMethods())
	assert.Equal(t, 1, snap.InvokedCount())
	assert.Equal(t, map[string][]int{"Foo": {1, 2}, "Bar": {3}}, snap.MethodsByClass())

	// the copy is isolated from later cell updates
	require.NoError(t, s.MarkMethodInvoked(1))
	assert.False(t, snap.MethodInvoked[1])
}
