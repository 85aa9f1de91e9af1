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

import "github.com/bristot/linux-rt-rtsl/rtsl/record"

// tracking reports whether handlers on cpu should do any work at all:
// the engine must be globally enabled and this CPU must have reached its
// initial condition (spec.md §4.9, §7). Every handler but the
// schedule-path preempt-disable handler -- which establishes the initial
// condition itself -- and IRQVectorEntry -- which checks only the CPU's
// running flag -- starts with this check.
func (e *Engine) tracking(cs *cpuState) bool {
	return e.enabled.Load() && cs != nil && cs.running.Load()
}

func (e *Engine) now(cpu CPUID) Timestamp {
	return e.host.Clock(cpu)
}

// emitPoid emits poid/max_poid for a just-closed POID window of duration
// d, filtering out the idle task (spec.md §4.3, §8 property 5).
func (e *Engine) emitPoid(cpu CPUID, cs *cpuState, d Duration, current TaskID) {
	if current == IdleTask {
		return
	}
	e.sink.Emit(record.Record{Kind: record.Poid, CPU: cpu, Duration: d})
	if cs.poid.recordMax(d) {
		e.sink.Emit(record.Record{Kind: record.MaxPoid, CPU: cpu, Duration: d})
	}
}

// paieClose closes an open PAIE window, emitting paie/max_paie
// (spec.md §4.5 paie_close()).
func (e *Engine) paieClose(cpu CPUID, cs *cpuState, current TaskID) {
	if !cs.paie.open() {
		return
	}
	d := closeWindow(&cs.paie, &cs.intCounter, func() Timestamp { return e.now(cpu) })
	if current == IdleTask {
		return
	}
	e.sink.Emit(record.Record{Kind: record.Paie, CPU: cpu, Duration: d})
	if cs.paie.recordMax(d) {
		e.sink.Emit(record.Record{Kind: record.MaxPaie, CPU: cpu, Duration: d})
	}
}

// IRQDisable handles the irq_disable probe (spec.md §4.2). entry
// distinguishes the hardware-IRQ-dispatch sub-case from a thread
// explicitly masking interrupts.
func (e *Engine) IRQDisable(cpu CPUID, entry bool) {
	cs := e.state(cpu)
	if !e.tracking(cs) {
		return
	}
	now := func() Timestamp { return e.now(cpu) }

	if entry {
		if cs.psd.open() {
			cs.irq.wasPSD = true
		}
		cs.irq.arrivalTime = e.now(cpu) // unsafe read: reporting only
		cs.irq.setStart(&cs.intCounter, now)
		return
	}

	// Normal sub-case: a thread is masking interrupts.
	if cs.psd.open() && cs.dst.pid == e.host.CurrentTask(cpu) {
		cs.dst.window.setStart(&cs.intCounter, now)
	}
	cs.poid.id = true
	if cs.poid.open() {
		return
	}
	cs.poid.window.setStart(&cs.intCounter, now)
}

// IRQEnable handles the irq_enable probe (spec.md §4.3). exit
// distinguishes the hardware-IRQ-return sub-case from a thread
// explicitly unmasking interrupts.
func (e *Engine) IRQEnable(cpu CPUID, exit bool) {
	cs := e.state(cpu)
	if !e.tracking(cs) {
		return
	}
	now := func() Timestamp { return e.now(cpu) }

	if exit {
		d := closeWindow(&cs.irq.window, &cs.intCounter, now)
		e.sink.Emit(record.Record{
			Kind:        record.IRQExecution,
			CPU:         cpu,
			Duration:    d,
			Vector:      cs.irq.vector,
			ArrivalTime: cs.irq.arrivalTime,
		})
		cs.interfereIRQExit(d, cs.irq.wasPSD)
		cs.irq.vector = UnknownVector
		cs.irq.wasPSD = false
		return
	}

	// Normal sub-case: a thread is unmasking interrupts.
	cs.poid.id = false
	if cs.poid.pd || cs.psd.open() {
		return
	}
	d := closeWindow(&cs.poid.window, &cs.intCounter, now)
	e.emitPoid(cpu, cs, d, e.host.CurrentTask(cpu))
	if e.host.NeedResched(cpu) {
		cs.paie.setStart(&cs.intCounter, now)
	}
}

// PreemptDisable handles the preempt_disable probe (spec.md §4.4).
// toSchedule distinguishes preemption disabled to run the scheduler from
// an ordinary preempt_disable().
func (e *Engine) PreemptDisable(cpu CPUID, toSchedule bool) {
	cs := e.state(cpu)

	if !toSchedule {
		if !e.tracking(cs) {
			return
		}
		now := func() Timestamp { return e.now(cpu) }
		if cs.irq.open() {
			return
		}
		cs.poid.pd = true
		if cs.poid.id {
			return
		}
		cs.poid.window.setStart(&cs.intCounter, now)
		return
	}

	// Schedule-path sub-case: also the initial-condition gate (spec.md
	// §4.9). If this CPU isn't running yet, it only starts now, and only
	// if the engine is enabled and interrupts are currently on; otherwise
	// this handler does nothing at all.
	if cs == nil {
		return
	}
	if !cs.running.Load() {
		if !e.enabled.Load() || e.host.IRQsDisabled(cpu) {
			return
		}
		cs.running.Store(true)
	} else if !e.enabled.Load() {
		return
	}

	now := func() Timestamp { return e.now(cpu) }
	current := e.host.CurrentTask(cpu)
	if e.host.NeedResched(cpu) && !cs.irq.open() && !cs.poid.id {
		e.paieClose(cpu, cs, current)
	}
	cs.paie.reset()
	cs.dst.pid = current
	cs.psd.setStart(&cs.intCounter, now)
}

// PreemptEnable handles the preempt_enable probe (spec.md §4.5).
// toSchedule distinguishes the scheduler's own re-enable of preemption
// from an ordinary preempt_enable().
func (e *Engine) PreemptEnable(cpu CPUID, toSchedule bool) {
	cs := e.state(cpu)
	if !e.tracking(cs) {
		return
	}
	now := func() Timestamp { return e.now(cpu) }
	current := e.host.CurrentTask(cpu)

	if !toSchedule {
		if cs.irq.open() {
			return
		}
		cs.poid.pd = false
		if cs.poid.id {
			return
		}
		d := closeWindow(&cs.poid.window, &cs.intCounter, now)
		e.emitPoid(cpu, cs, d, current)
		if e.host.NeedResched(cpu) {
			cs.paie.setStart(&cs.intCounter, now)
		}
		return
	}

	if cs.dst.window.open() {
		d := closeWindow(&cs.dst.window, &cs.intCounter, now)
		e.sink.Emit(record.Record{Kind: record.Dst, CPU: cpu, Duration: d})
		if cs.dst.window.recordMax(d) {
			e.sink.Emit(record.Record{Kind: record.MaxDst, CPU: cpu, Duration: d})
		}
	}
	d := closeWindow(&cs.psd, &cs.intCounter, now)
	e.sink.Emit(record.Record{Kind: record.Psd, CPU: cpu, Duration: d})
	if cs.psd.recordMax(d) {
		e.sink.Emit(record.Record{Kind: record.MaxPsd, CPU: cpu, Duration: d})
	}
	if e.host.NeedResched(cpu) {
		cs.paie.setStart(&cs.intCounter, now)
	}
}

// NMIEntry handles the nmi_entry probe (spec.md §4.6). NMIs don't
// preempt themselves, so this needs no retry protocol of its own.
func (e *Engine) NMIEntry(cpu CPUID) {
	cs := e.state(cpu)
	if !e.tracking(cs) {
		return
	}
	cs.nmi.start = e.now(cpu)
}

// NMIExit handles the nmi_exit probe (spec.md §4.6). It bumps
// intCounter so any close() in progress on this CPU retries, then pushes
// its own duration into every open window, including an in-progress IRQ.
func (e *Engine) NMIExit(cpu CPUID) {
	cs := e.state(cpu)
	if !e.tracking(cs) {
		return
	}
	d := Duration(e.now(cpu) - cs.nmi.start)
	e.sink.Emit(record.Record{Kind: record.NMIExecution, CPU: cpu, Duration: d, Start: cs.nmi.start})
	cs.intCounter.Add(1)
	cs.interfereNMIExit(d)
}

// IRQVectorEntry handles a vector-entry or generic irq_handler_entry
// probe (spec.md §4.7): it records which vector is executing so the
// eventual irq_execution record can name it.
func (e *Engine) IRQVectorEntry(cpu CPUID, vector Vector) {
	cs := e.state(cpu)
	if cs == nil || !cs.running.Load() {
		return
	}
	cs.irq.vector = vector
	cs.intCounter.Add(1)
}
