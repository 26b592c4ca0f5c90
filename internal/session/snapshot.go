package session

import "slices"

// Snapshot is an isolated copy of the whole session state, taken in a single
// read transaction.
type Snapshot struct {
	SessionID string `json:"session_id"`

	NInstrClasses      int      `json:"n_instr_classes"`
	ClassNames         []string `json:"class_names"`
	AllocatedInstances []int    `json:"allocated_instances"`

	NInstrMethods    int      `json:"n_instr_methods"`
	MethodClasses    []string `json:"method_classes"`
	LoaderIDs        []int    `json:"loader_ids"`
	MethodNames      []string `json:"method_names"`
	MethodSignatures []string `json:"method_signatures"`
	MethodInvoked    []bool   `json:"method_invoked"`

	Timers           TimerCalibration `json:"timers"`
	AbsoluteTimerOn  bool             `json:"absolute_timer_on"`
	ThreadCPUTimerOn bool             `json:"thread_cpu_timer_on"`
	Instrumentation  Instrumentation  `json:"instrumentation"`
	Target           TargetInfo       `json:"target"`
	TargetAppRunning bool             `json:"target_app_running"`
}

func (s *Status) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:        s.id,
		TargetAppRunning: s.TargetAppRunning(),
	}

	s.guard.View(func() {
		inv := &s.inv
		snap.NInstrClasses = inv.nClasses
		snap.ClassNames = slices.Clone(inv.classNames.view(inv.nClasses))
		snap.AllocatedInstances = slices.Clone(inv.allocCounts.view(inv.nClasses))

		snap.NInstrMethods = inv.nMethods
		snap.MethodClasses = slices.Clone(inv.methodClasses.view(inv.nMethods))
		snap.LoaderIDs = slices.Clone(inv.loaderIDs.view(inv.nMethods))
		snap.MethodNames = slices.Clone(inv.methodNames.view(inv.nMethods))
		snap.MethodSignatures = slices.Clone(inv.methodSigs.view(inv.nMethods))
		snap.MethodInvoked = slices.Clone(inv.invoked.view(inv.nMethods))

		snap.Timers = s.timers
		snap.AbsoluteTimerOn = s.absoluteTimerOn
		snap.ThreadCPUTimerOn = s.threadCPUTimerOn
		snap.Instrumentation = s.instr
		snap.Target = s.target
	})

	return snap
}

// InvokedCount counts real methods flagged as invoked; the sentinel is skipped.
func (snap Snapshot) InvokedCount() int {
	n := 0
	for i := SentinelMethodID + 1; i < len(snap.MethodInvoked); i++ {
		if snap.MethodInvoked[i] {
			n++
		}
	}
	return n
}

// RealMethods is the number of registered methods excluding the sentinel.
func (snap Snapshot) RealMethods() int {
	return max(snap.NInstrMethods-1, 0)
}

// MethodsByClass groups real method ids by owning class name, in registration
// order.
func (snap Snapshot) MethodsByClass() map[string][]int {
	groups := make(map[string][]int)
	for i := SentinelMethodID + 1; i < snap.NInstrMethods; i++ {
		class := snap.MethodClasses[i]
		groups[class] = append(groups[class], i)
	}
	return groups
}
