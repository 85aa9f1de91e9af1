//
// Copyright 2019 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS-IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
//
package rtsl

// ProbeFunc is the signature a TracepointSource invokes a registered probe
// with: the CPU the event fired on, and a small slice of integer
// arguments whose meaning is probe-specific (e.g. a single 0/1 flag for
// irq_entry, or a vector number). Keeping the callback shape uniform lets
// the probe→handler binding table (spec.md §9, §4.10) be built as plain
// data rather than one bespoke registration call per probe.
type ProbeFunc func(cpu CPUID, args ...int64)

// TracepointSource is the out-of-scope host tracing framework: it owns
// the real tracepoints and calls back into whatever ProbeFunc was bound
// to each probe name, synchronously, on the CPU that raised the event.
type TracepointSource interface {
	// RegisterProbe binds fn to the named tracepoint. The returned
	// unregister func removes the binding; it is always non-nil when err
	// is nil.
	RegisterProbe(name string, fn ProbeFunc) (unregister func() error, err error)
}

// Host bundles every external collaborator spec.md §6 lists as consumed
// but out of scope: per-CPU clock, tracepoint registry, current-task
// query, pending-reschedule query, and IRQ-disabled query.
type Host struct {
	// Clock returns the current monotonic time on the calling CPU.
	Clock func(cpu CPUID) Timestamp
	// CurrentTask returns the task currently executing on cpu.
	CurrentTask func(cpu CPUID) TaskID
	// NeedResched reports whether cpu has a pending re-schedule request.
	NeedResched func(cpu CPUID) bool
	// IRQsDisabled reports whether interrupts are currently masked on cpu.
	IRQsDisabled func(cpu CPUID) bool
	// OnlineCPUs enumerates the CPUs to track. Read only at Enable.
	OnlineCPUs func() []CPUID
	// Tracepoints is the probe registry handlers are bound to at Enable.
	Tracepoints TracepointSource
}
