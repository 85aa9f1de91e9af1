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

import (
	"sync"
	"sync/atomic"

	log "github.com/golang/glog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bristot/linux-rt-rtsl/rtsl/record"
)

// probeBinding is one entry of the probe→handler table of spec.md §4.10:
// a tracepoint name and the ProbeFunc it should be bound to. Built fresh
// by bindings() on every Enable so the vector list can vary per Engine
// instance instead of being compiled in (spec.md §9).
type probeBinding struct {
	name string
	fn   ProbeFunc
}

// Engine is the per-process owner of every CPU's latency-decomposition
// state. One Engine tracks every CPU Host.OnlineCPUs names; handlers run
// synchronously on the CPU that raised the event and touch only that
// CPU's state.
type Engine struct {
	host Host
	sink record.Sink

	// vectors is the platform-specific IRQ vector probe list (spec.md
	// §4.10, §9): data, not a compiled-in switch.
	vectors []string

	mu      sync.Mutex // serializes Enable/Disable only; never held by a handler
	enabled atomic.Bool

	cpus       map[CPUID]*cpuState
	unregister []func() error
}

// NewEngine constructs an Engine against host, emitting records to sink,
// identifying hardware interrupts using the given platform vector probe
// names (spec.md §4.10; pass nil to rely solely on a generic
// irq_handler_entry probe).
func NewEngine(host Host, sink record.Sink, vectors []string) *Engine {
	if sink == nil {
		sink = record.Discard
	}
	return &Engine{
		host:    host,
		sink:    sink,
		vectors: vectors,
		cpus:    map[CPUID]*cpuState{},
	}
}

// Enabled reports whether the engine is currently tracking.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// state returns cpu's state record, or nil if Enable created none for
// cpu; it never creates one itself. Only called
// from Enable/Disable (holding mu) or from a handler running on cpu
// itself, so no lock is needed on the map once Enable has populated it
// for every online CPU; handlers for CPUs Enable didn't know about (e.g.
// hotplugged later) are simply dropped, matching the "no own threads,
// online-CPU iteration happens at enable" model of spec.md §5.
func (e *Engine) state(cpu CPUID) *cpuState {
	return e.cpus[cpu]
}

// Enable zeroes every CPU's state, registers every probe, and sets the
// global enable flag. If any probe fails to register, every probe
// registered so far in this call is unregistered and enabled is left
// false (spec.md §4.9, §7).
func (e *Engine) Enable() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.enabled.Load() {
		// Reset-on-reenable (spec.md §8 property 6): stop tracking, then
		// fall through to a clean enable, which rebuilds e.cpus from
		// scratch below -- no need to zero the old map first.
		e.stopTrackingLocked()
	}

	if e.host.OnlineCPUs == nil {
		return status.Error(codes.FailedPrecondition, "rtsl: host.OnlineCPUs is required")
	}
	cpus := e.host.OnlineCPUs()
	e.cpus = make(map[CPUID]*cpuState, len(cpus))
	for _, c := range cpus {
		e.cpus[c] = newCPUState()
	}

	var registered []func() error
	for _, b := range e.bindings() {
		unreg, err := e.host.Tracepoints.RegisterProbe(b.name, b.fn)
		if err != nil {
			for _, u := range registered {
				if uerr := u(); uerr != nil {
					log.Errorf("rtsl: rollback unregister of a probe failed: %s", uerr)
				}
			}
			return status.Errorf(codes.InvalidArgument, "rtsl: failed to register probe %q: %s", b.name, err)
		}
		registered = append(registered, unreg)
	}
	e.unregister = registered
	e.enabled.Store(true)
	return nil
}

// Disable clears the global enable flag, stops tracking on every CPU,
// unregisters every probe, and zeroes state.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTrackingLocked()
	for cpu := range e.cpus {
		e.cpus[cpu] = newCPUState()
	}
}

// stopTrackingLocked clears the global enable flag, stops tracking on
// every CPU, and unregisters every probe, without touching e.cpus itself
// -- callers decide separately whether the per-CPU map needs zeroing
// (Disable does; Enable's reset-on-reenable path doesn't, since it
// immediately rebuilds the map from a fresh OnlineCPUs call).
func (e *Engine) stopTrackingLocked() {
	e.enabled.Store(false)
	for _, cs := range e.cpus {
		cs.running.Store(false)
	}
	for _, u := range e.unregister {
		if err := u(); err != nil {
			log.Errorf("rtsl: unregister failed during disable: %s", err)
		}
	}
	e.unregister = nil
}

// bindings builds the probe→handler table of spec.md §4.10 from the
// engine's configured vector list.
func (e *Engine) bindings() []probeBinding {
	b := []probeBinding{
		{"nmi_entry", func(cpu CPUID, _ ...int64) { e.NMIEntry(cpu) }},
		{"nmi_exit", func(cpu CPUID, _ ...int64) { e.NMIExit(cpu) }},
		{"irq_disable", func(cpu CPUID, args ...int64) { e.IRQDisable(cpu, flag(args, 0)) }},
		{"irq_enable", func(cpu CPUID, args ...int64) { e.IRQEnable(cpu, flag(args, 0)) }},
		{"preempt_disable", func(cpu CPUID, args ...int64) { e.PreemptDisable(cpu, flag(args, 0)) }},
		{"preempt_enable", func(cpu CPUID, args ...int64) { e.PreemptEnable(cpu, flag(args, 0)) }},
	}
	if len(e.vectors) == 0 {
		b = append(b, probeBinding{"irq_handler_entry", func(cpu CPUID, args ...int64) {
			e.IRQVectorEntry(cpu, Vector(intArg(args, 0)))
		}})
		return b
	}
	for _, v := range e.vectors {
		name := v
		b = append(b, probeBinding{name, func(cpu CPUID, args ...int64) {
			e.IRQVectorEntry(cpu, Vector(intArg(args, 0)))
		}})
	}
	return b
}

func flag(args []int64, i int) bool {
	return intArg(args, i) != 0
}

func intArg(args []int64, i int) int64 {
	if i < len(args) {
		return args[i]
	}
	return 0
}
