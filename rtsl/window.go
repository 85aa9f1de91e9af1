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

// window is one of the thread-visible time spans (POID, PAIE, PSD, DST)
// tracked per CPU. start is nanoseconds since some arbitrary per-CPU
// epoch; zero means the window is closed (invariant 1): the per-CPU clock
// this is read from is monotonic nanoseconds since boot, so an opened
// window's start is 0 only in the same vanishing instant the CPU itself
// booted.
type window struct {
	start Timestamp
	max   Duration
}

// open reports whether w is currently open.
func (w *window) open() bool {
	return w.start != 0
}

// setStart opens w at the current time, retrying if an interrupt mutates
// int_counter (and therefore possibly w.start itself, via addInterference)
// while the clock is being read. This is the same optimistic
// counter-then-clock-then-counter retry used by the runtime's netpoller to
// read a pollDesc racing against an interrupt-driven update: take a
// version stamp, do the unsynchronized read, and retry if the stamp
// changed underneath you.
func (w *window) setStart(counter *atomic.Uint64, now func() Timestamp) {
	for {
		c0 := counter.Load()
		t := now()
		if c0 == counter.Load() {
			w.start = t
			return
		}
	}
}

// closeWindow reads and zeroes w.start, returning the elapsed duration
// since it was set. Like setStart, it retries if an interrupt's
// addInterference races with the read.
func closeWindow(w *window, counter *atomic.Uint64, now func() Timestamp) Duration {
	var d Duration
	for {
		c0 := counter.Load()
		t := now()
		start := w.start
		d = Duration(t - start)
		if c0 == counter.Load() {
			break
		}
	}
	w.start = 0
	return d
}

// reset forcibly closes w without computing a duration, for the cases
// (spec.md §4.4's paie start clear) where a window is known to need
// clearing but no close record is wanted.
func (w *window) reset() {
	w.start = 0
}

// addInterference pushes every open window's start time forward by d,
// the duration of an interrupt or NMI that just ran while the window was
// open. This is what makes close() above report thread time net of
// interference, without ever subtracting anything explicitly: the
// window's own start keeps sliding later by exactly as much as the
// interrupt stole.
func addInterference(d Duration, windows ...*window) {
	if d == 0 {
		return
	}
	for _, w := range windows {
		if w != nil && w.open() {
			w.start += Timestamp(d)
		}
	}
}

// recordMax updates w.max if d is greater than or equal to it, reporting
// whether it did.
// Invariant 5 (spec.md §3): max is monotonically non-decreasing within a
// running epoch, so this is a plain ratchet, never reset except by the
// owning CPU's state being zeroed wholesale at enable/disable.
func (w *window) recordMax(d Duration) bool {
	if d >= w.max {
		w.max = d
		return true
	}
	return false
}
