package session

import (
	"fmt"
	"strings"
	"time"
)

// NTimerConstants is the number of timer configuration modes each calibration
// table carries a value for.
const NTimerConstants = 5

// TimerMode indexes the calibration tables.
type TimerMode int

const (
	TimerAbsolute TimerMode = iota
	TimerThreadCPU
	TimerBothAbsolute
	TimerBothThreadCPU
	TimerSampled
)

func (m TimerMode) String() string {
	switch m {
	case TimerAbsolute:
		return "absolute"
	case TimerThreadCPU:
		return "thread-cpu"
	case TimerBothAbsolute:
		return "both/absolute"
	case TimerBothThreadCPU:
		return "both/thread-cpu"
	case TimerSampled:
		return "sampled"
	default:
		return "unknown"
	}
}

// TimerCalibration holds the cost of the injected instrumentation, measured in
// absolute timer counts, one value per TimerMode.
type TimerCalibration struct {
	MethodEntryExitCallTime  [NTimerConstants]float64 `json:"method_entry_exit_call_time"`
	MethodEntryExitInnerTime [NTimerConstants]float64 `json:"method_entry_exit_inner_time"`
	MethodEntryExitOuterTime [NTimerConstants]float64 `json:"method_entry_exit_outer_time"`

	// counts per second of the absolute and the thread CPU timer
	TimerCountsInSecond [2]int64 `json:"timer_counts_in_second"`
}

type InstrScheme int

const (
	InstrSchemeLazy InstrScheme = iota
	InstrSchemeEager
	InstrSchemeTotal
)

func (s InstrScheme) String() string {
	switch s {
	case InstrSchemeLazy:
		return "lazy"
	case InstrSchemeEager:
		return "eager"
	case InstrSchemeTotal:
		return "total"
	default:
		return "unknown"
	}
}

func ParseInstrScheme(s string) (InstrScheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lazy":
		return InstrSchemeLazy, nil
	case "eager":
		return InstrSchemeEager, nil
	case "total":
		return InstrSchemeTotal, nil
	default:
		return InstrSchemeLazy, fmt.Errorf("unknown instrumentation scheme %q", s)
	}
}

type InstrType int

const (
	InstrNone InstrType = iota
	InstrCodeRegion
	InstrRecursiveFull
	InstrRecursiveSampled
	InstrObjectAllocations
	InstrObjectLiveness
)

func (t InstrType) String() string {
	switch t {
	case InstrNone:
		return "none"
	case InstrCodeRegion:
		return "code-region"
	case InstrRecursiveFull:
		return "cpu-full"
	case InstrRecursiveSampled:
		return "cpu-sampled"
	case InstrObjectAllocations:
		return "allocations"
	case InstrObjectLiveness:
		return "liveness"
	default:
		return "unknown"
	}
}

// Instrumentation describes the instrumentation run currently armed.
type Instrumentation struct {
	Scheme InstrScheme `json:"scheme"`
	Type   InstrType   `json:"type"`

	// Code region and method group instrumentation. For method groups this
	// is the root method's class loader.
	ClassLoaderName string `json:"class_loader_name,omitempty"`
	StartLine       int    `json:"start_line,omitempty"`
	EndLine         int    `json:"end_line,omitempty"`

	// set when profiling point handlers, not root method entry, mark the
	// thread as being in the call graph
	StartProfilingPointsActive bool `json:"start_profiling_points_active,omitempty"`
}

// TargetInfo describes the profiled JVM. It is populated once at session
// start from the attach layer's decoded output.
type TargetInfo struct {
	JDKVersion     string `json:"jdk_version"`
	FullJDKVersion string `json:"full_jdk_version"`
	OSName         string `json:"os_name"`
	JVMArguments   string `json:"jvm_arguments"`
	JavaCommand    string `json:"java_command"`

	MaxHeapSize         int64 `json:"max_heap_size"`
	StartupTimeMillis   int64 `json:"startup_time_millis"`
	StartupTimeInCounts int64 `json:"startup_time_in_counts"`

	CanInstrumentConstructor bool `json:"can_instrument_constructor"`
	RemoteProfiling          bool `json:"remote_profiling"`
	RunningInAttachedMode    bool `json:"running_in_attached_mode"`
}

// StartupTime converts StartupTimeMillis to a time.Time.
func (t TargetInfo) StartupTime() time.Time {
	if t.StartupTimeMillis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.StartupTimeMillis)
}

// InternalStats is the end-of-session statistics record kept after the
// target has terminated.
type InternalStats struct {
	TotalInstrMethods           int           `json:"total_instr_methods"`
	ClassLoads                  int           `json:"class_loads"`
	FirstMethodInvocations      int           `json:"first_method_invocations"`
	NonEmptyInstrMethodGroups   int           `json:"non_empty_instr_method_groups"`
	EmptyInstrMethodGroups      int           `json:"empty_instr_method_groups"`
	SingleMethodInstrGroups     int           `json:"single_method_instr_groups"`
	ClientInstrTime             time.Duration `json:"client_instr_time"`
	ClientDataProcTime          time.Duration `json:"client_data_proc_time"`
	TotalHotswappingTime        time.Duration `json:"total_hotswapping_time"`
	AverageHotswappingTime      time.Duration `json:"average_hotswapping_time"`
	MinHotswappingTime          time.Duration `json:"min_hotswapping_time"`
	MaxHotswappingTime          time.Duration `json:"max_hotswapping_time"`
	MethodEntryExitCallTimeAbs  float64       `json:"method_entry_exit_call_time_abs"`
	MethodEntryExitCallTimeCPU  float64       `json:"method_entry_exit_call_time_cpu"`
	MethodEntryExitCallTimeBoth float64       `json:"method_entry_exit_call_time_both"`
}
