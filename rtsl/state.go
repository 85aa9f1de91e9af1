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

import "sync/atomic"

// irqScratch holds the state of the hardware interrupt currently executing
// on a CPU, if any. It embeds window so it can use the same
// setStart/closeWindow interference-safe primitives as the thread-visible
// windows, even though its own max is never used.
type irqScratch struct {
	window
	arrivalTime Timestamp
	wasPSD      bool
	vector      Vector
}

// nmiScratch holds the state of the NMI currently executing on a CPU, if
// any. NMIs don't preempt themselves, so unlike irqScratch they need no
// retry protocol of their own -- they're what other windows retry against.
type nmiScratch struct {
	start Timestamp
}

// poidWindow is POID: a window plus the two independent reasons it can be
// held open (preemption disabled by a thread, IRQs disabled by a
// thread). POID is open iff either is true; see spec.md §3 invariant 2.
type poidWindow struct {
	window
	pd bool
	id bool
}

// dstWindow is PSD's "delayed schedule tail": same shape as window, plus
// the task identifier the window is tracking the eventual switch-away of.
type dstWindow struct {
	window
	pid TaskID
}

// cpuState is the complete per-CPU latency-decomposition record. It is
// owned exclusively by the CPU it describes: every field is read and
// written only by handlers running on that CPU (or, for the zeroing at
// enable/disable, only while no handler can be running at all -- see
// Engine.Enable/Disable). No field needs a lock.
type cpuState struct {
	poid poidWindow
	paie window
	psd  window
	dst  dstWindow

	irq irqScratch
	nmi nmiScratch

	// intCounter is bumped by every IRQ vector entry and every NMI exit
	// observed on this CPU. It is the version stamp the optimistic retry protocol in
	// window.go reads before and after touching the clock.
	intCounter atomic.Uint64

	// running becomes true only once this CPU has reached its initial
	// condition (spec.md §4.9): a schedule-path preempt-disable event
	// observed with interrupts enabled and the engine globally enabled.
	running atomic.Bool
}

// newCPUState returns a freshly zeroed per-CPU state record, as installed
// at Enable and at Disable (spec.md §3 "Lifecycle").
func newCPUState() *cpuState {
	cs := &cpuState{}
	cs.irq.vector = UnknownVector
	return cs
}

// interfereIRQExit applies the just-finished IRQ's duration d to every
// window it could have interfered with: POID, DST and PAIE always, PSD
// only if the IRQ began while PSD was already open (spec.md §4.3,
// §9 "open question" on was_psd).
func (s *cpuState) interfereIRQExit(d Duration, wasPSD bool) {
	windows := []*window{&s.poid.window, &s.dst.window, &s.paie}
	if wasPSD {
		windows = append(windows, &s.psd)
	}
	addInterference(d, windows...)
}

// interfereNMIExit applies the just-finished NMI's duration d to every
// open window, including IRQ itself: NMIs bypass interrupt masking, so
// they can interrupt an in-progress IRQ too (spec.md §4.6).
func (s *cpuState) interfereNMIExit(d Duration) {
	windows := []*window{&s.poid.window, &s.psd, &s.dst.window, &s.paie, &s.irq.window}
	addInterference(d, windows...)
}
