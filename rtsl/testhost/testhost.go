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
// Package testhost provides a fake rtsl.Host and rtsl.TracepointSource
// for driving an rtsl.Engine from tests and from package replay, without
// a real kernel underneath.
package testhost

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bristot/linux-rt-rtsl/rtsl"
)

// Host is a fake rtsl.Host whose clock, current task, and other
// host-query state are all directly settable, and whose tracepoint
// registry dispatches synchronously to whatever was bound at Enable.
type Host struct {
	mu sync.Mutex

	cpus         []rtsl.CPUID
	clock        map[rtsl.CPUID]rtsl.Timestamp
	current      map[rtsl.CPUID]rtsl.TaskID
	needResched  map[rtsl.CPUID]bool
	irqsDisabled map[rtsl.CPUID]bool

	probes map[string]rtsl.ProbeFunc
}

// New returns a Host tracking the given CPUs, all initially at time 0,
// running TaskID 0 (the idle task), with no pending reschedule and
// interrupts enabled.
func New(cpus ...rtsl.CPUID) *Host {
	h := &Host{
		cpus:         append([]rtsl.CPUID(nil), cpus...),
		clock:        map[rtsl.CPUID]rtsl.Timestamp{},
		current:      map[rtsl.CPUID]rtsl.TaskID{},
		needResched:  map[rtsl.CPUID]bool{},
		irqsDisabled: map[rtsl.CPUID]bool{},
		probes:       map[string]rtsl.ProbeFunc{},
	}
	for _, c := range cpus {
		h.clock[c] = 0
		h.current[c] = rtsl.IdleTask
	}
	return h
}

// Host returns the rtsl.Host bundle backed by h.
func (h *Host) Host() rtsl.Host {
	return rtsl.Host{
		Clock:        h.Clock,
		CurrentTask:  h.CurrentTask,
		NeedResched:  h.NeedResched,
		IRQsDisabled: h.IRQsDisabled,
		OnlineCPUs:   h.OnlineCPUs,
		Tracepoints:  h,
	}
}

// SetTime sets cpu's clock, as read by the engine's next interference-safe
// read.
func (h *Host) SetTime(cpu rtsl.CPUID, t rtsl.Timestamp) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock[cpu] = t
}

// SetCurrentTask sets the task the engine will observe as running on cpu.
func (h *Host) SetCurrentTask(cpu rtsl.CPUID, pid rtsl.TaskID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current[cpu] = pid
}

// SetNeedResched sets whether cpu has a pending reschedule request.
func (h *Host) SetNeedResched(cpu rtsl.CPUID, v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.needResched[cpu] = v
}

// SetIRQsDisabled sets whether interrupts are currently masked on cpu.
func (h *Host) SetIRQsDisabled(cpu rtsl.CPUID, v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.irqsDisabled[cpu] = v
}

// Fire invokes the probe registered as name (if any) with cpu and args.
// It is the synchronous "tracepoint firing" entry point tests and replay
// drive the engine through.
func (h *Host) Fire(name string, cpu rtsl.CPUID, args ...int64) {
	h.mu.Lock()
	fn, ok := h.probes[name]
	h.mu.Unlock()
	if !ok {
		return
	}
	fn(cpu, args...)
}

// Clock implements the rtsl.Host.Clock query.
func (h *Host) Clock(cpu rtsl.CPUID) rtsl.Timestamp {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clock[cpu]
}

// CurrentTask implements the rtsl.Host.CurrentTask query.
func (h *Host) CurrentTask(cpu rtsl.CPUID) rtsl.TaskID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current[cpu]
}

// NeedResched implements the rtsl.Host.NeedResched query.
func (h *Host) NeedResched(cpu rtsl.CPUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.needResched[cpu]
}

// IRQsDisabled implements the rtsl.Host.IRQsDisabled query.
func (h *Host) IRQsDisabled(cpu rtsl.CPUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.irqsDisabled[cpu]
}

// OnlineCPUs implements the rtsl.Host.OnlineCPUs query.
func (h *Host) OnlineCPUs() []rtsl.CPUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := append([]rtsl.CPUID(nil), h.cpus...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RegisterProbe implements rtsl.TracepointSource.
func (h *Host) RegisterProbe(name string, fn rtsl.ProbeFunc) (func() error, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.probes[name]; exists {
		return nil, fmt.Errorf("testhost: probe %q already registered", name)
	}
	h.probes[name] = fn
	return func() error {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.probes, name)
		return nil
	}, nil
}
