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
// Package rtsl implements the per-CPU scheduling-latency decomposition
// state machine: POID, PAIE, PSD and DST window tracking with IRQ/NMI
// interference compensation.
package rtsl

import "fmt"

// Timestamp is a monotonic per-CPU clock reading, in nanoseconds. Zero is
// reserved to mean "no reading" / "window closed".
type Timestamp uint64

// Duration is a span of nanoseconds.
type Duration uint64

// CPUID identifies a logical CPU.
type CPUID int

// Valid reports whether c is a plausible CPU index.
func (c CPUID) Valid() bool {
	return c >= 0
}

func (c CPUID) String() string {
	return fmt.Sprintf("CPU %d", int(c))
}

// TaskID identifies a schedulable task (kernel thread, process, or the
// idle task).
type TaskID int64

// IdleTask is the sentinel TaskID of the per-CPU idle task. POID and PAIE
// windows closed while the current task is IdleTask are not emitted, per
// the idle filter; PSD and DST records are emitted regardless.
const IdleTask TaskID = 0

// Valid reports whether t is a plausible task identifier.
func (t TaskID) Valid() bool {
	return t >= 0
}

func (t TaskID) String() string {
	return fmt.Sprintf("task %d", int64(t))
}

// Vector identifies an interrupt vector or IRQ line.
type Vector int32

// UnknownVector marks an IRQ whose vector has not yet been identified by
// an IRQVectorEntry call (a vector-entry or irq_handler_entry probe).
const UnknownVector Vector = -1
