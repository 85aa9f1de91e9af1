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
package rtsl_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bristot/linux-rt-rtsl/rtsl"
	"github.com/bristot/linux-rt-rtsl/rtsl/record"
	"github.com/bristot/linux-rt-rtsl/rtsl/testhost"
)

const cpu0 = rtsl.CPUID(0)

// newFixture builds a tracking engine on a single CPU, with task A (1)
// already current, ready to run the scenarios of spec.md §8.
func newFixture(t *testing.T) (*testhost.Host, *rtsl.Engine, *[]record.Record) {
	t.Helper()
	host := testhost.New(cpu0)
	var got []record.Record
	sink := record.SinkFunc(func(r record.Record) { got = append(got, r) })
	e := rtsl.NewEngine(host.Host(), sink, nil)
	if err := e.Enable(); err != nil {
		t.Fatalf("Enable() failed: %s", err)
	}
	host.SetCurrentTask(cpu0, 1)
	return host, e, &got
}

// establish brings cpu0 to its initial condition (spec.md §4.9) with a
// throwaway preempt_disable(to_sched=1)/preempt_enable(to_sched=1) pair,
// the way a real kernel's first schedule() call would, then clears the
// records this produced so scenario assertions start clean.
func establish(t *testing.T, host *testhost.Host, e *rtsl.Engine, got *[]record.Record) {
	t.Helper()
	host.SetTime(cpu0, 1)
	host.Fire("preempt_disable", cpu0, 1)
	host.Fire("preempt_enable", cpu0, 1)
	*got = nil
}

func filterKind(recs []record.Record, k record.Kind) []record.Record {
	var out []record.Record
	for _, r := range recs {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

func recordsEqual(t *testing.T, got []record.Record, want []record.Record) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records differ (-want +got):\n%s", diff)
	}
}

// TestS1PlainPoid is scenario S1 of spec.md §8.
func TestS1PlainPoid(t *testing.T) {
	host, e, got := newFixture(t)
	establish(t, host, e, got)

	host.SetTime(cpu0, 1000)
	host.Fire("preempt_disable", cpu0, 0)
	host.SetTime(cpu0, 3000)
	host.Fire("preempt_enable", cpu0, 0)

	want := []record.Record{
		{Kind: record.Poid, CPU: cpu0, Duration: 2000},
		{Kind: record.MaxPoid, CPU: cpu0, Duration: 2000},
	}
	recordsEqual(t, *got, want)
}

// TestS2IRQInsidePoid is scenario S2 of spec.md §8.
func TestS2IRQInsidePoid(t *testing.T) {
	host, e, got := newFixture(t)
	establish(t, host, e, got)

	host.SetTime(cpu0, 1000)
	host.Fire("preempt_disable", cpu0, 0)
	host.SetTime(cpu0, 1500)
	host.Fire("irq_disable", cpu0, 1)
	host.Fire("irq_handler_entry", cpu0, 42)
	host.SetTime(cpu0, 1800)
	host.Fire("irq_enable", cpu0, 1)
	host.SetTime(cpu0, 3000)
	host.Fire("preempt_enable", cpu0, 0)

	want := []record.Record{
		{Kind: record.IRQExecution, CPU: cpu0, Duration: 300, Vector: 42, ArrivalTime: 1500},
		{Kind: record.Poid, CPU: cpu0, Duration: 1700},
		{Kind: record.MaxPoid, CPU: cpu0, Duration: 1700},
	}
	recordsEqual(t, *got, want)
}

// TestS3NMIDuringPSD is scenario S3 of spec.md §8.
func TestS3NMIDuringPSD(t *testing.T) {
	host, e, got := newFixture(t)
	establish(t, host, e, got)

	host.SetTime(cpu0, 1000)
	host.Fire("preempt_disable", cpu0, 1)
	host.SetTime(cpu0, 1200)
	host.Fire("nmi_entry", cpu0)
	host.SetTime(cpu0, 1250)
	host.Fire("nmi_exit", cpu0)
	host.SetTime(cpu0, 2000)
	host.Fire("preempt_enable", cpu0, 1)

	want := []record.Record{
		{Kind: record.NMIExecution, CPU: cpu0, Duration: 50, Start: 1200},
		{Kind: record.Psd, CPU: cpu0, Duration: 950},
		{Kind: record.MaxPsd, CPU: cpu0, Duration: 950},
	}
	recordsEqual(t, *got, want)
}

// TestS4DSTWithContextSwitch is scenario S4 of spec.md §8.
func TestS4DSTWithContextSwitch(t *testing.T) {
	host, e, got := newFixture(t)
	establish(t, host, e, got)
	host.SetCurrentTask(cpu0, 1) // task A

	host.SetTime(cpu0, 1000)
	host.Fire("preempt_disable", cpu0, 1) // DST.pid = A, PSD starts
	host.SetTime(cpu0, 1100)
	host.Fire("irq_disable", cpu0, 0) // thread masks IRQs while A is still current: DST renewed to 1100
	host.SetCurrentTask(cpu0, 2)      // context switch: current becomes B
	host.SetTime(cpu0, 2000)
	host.Fire("preempt_enable", cpu0, 1)

	dst := filterKind(*got, record.Dst)
	if len(dst) != 1 || dst[0].Duration != 900 {
		t.Errorf("dst records = %+v, want a single dst{900}", dst)
	}
	psd := filterKind(*got, record.Psd)
	if len(psd) != 1 || psd[0].Duration != 1000 {
		t.Errorf("psd records = %+v, want a single psd{1000}", psd)
	}
}

// TestS5PAIE is scenario S5 of spec.md §8.
func TestS5PAIE(t *testing.T) {
	host, e, got := newFixture(t)
	establish(t, host, e, got)

	host.SetTime(cpu0, 1000)
	host.Fire("preempt_disable", cpu0, 0)
	host.SetTime(cpu0, 1500)
	host.SetNeedResched(cpu0, true)
	host.Fire("preempt_enable", cpu0, 0) // POID closes, PAIE opens
	host.SetTime(cpu0, 1700)
	host.Fire("preempt_disable", cpu0, 1) // PAIE closes into PSD

	poid := filterKind(*got, record.Poid)
	if len(poid) != 1 || poid[0].Duration != 500 {
		t.Errorf("poid records = %+v, want a single poid{500}", poid)
	}
	paie := filterKind(*got, record.Paie)
	if len(paie) != 1 || paie[0].Duration != 200 {
		t.Errorf("paie records = %+v, want a single paie{200}", paie)
	}
}

// TestS6IdleSuppression is scenario S6 of spec.md §8: same as S1, but
// the current task is the idle sentinel throughout, so no poid record
// (or its max) should be emitted.
func TestS6IdleSuppression(t *testing.T) {
	host, e, got := newFixture(t)
	establish(t, host, e, got)
	host.SetCurrentTask(cpu0, rtsl.IdleTask)

	host.SetTime(cpu0, 1000)
	host.Fire("preempt_disable", cpu0, 0)
	host.SetTime(cpu0, 3000)
	host.Fire("preempt_enable", cpu0, 0)

	if len(*got) != 0 {
		t.Errorf("records = %+v, want none (idle task suppressed)", *got)
	}
}

// TestMaxMonotonic verifies spec.md §8 property 4: successive max_poid
// values strictly increase within one enable epoch, and a smaller
// duration than the running max produces no max record at all.
func TestMaxMonotonic(t *testing.T) {
	host, e, got := newFixture(t)
	establish(t, host, e, got)

	run := func(start, end rtsl.Timestamp) {
		host.SetTime(cpu0, start)
		host.Fire("preempt_disable", cpu0, 0)
		host.SetTime(cpu0, end)
		host.Fire("preempt_enable", cpu0, 0)
	}
	run(0, 100)  // poid{100}, max_poid{100}
	run(200, 250) // poid{50}, no max
	run(300, 500) // poid{200}, max_poid{200}

	maxes := filterKind(*got, record.MaxPoid)
	var durations []rtsl.Duration
	for _, m := range maxes {
		durations = append(durations, m.Duration)
	}
	want := []rtsl.Duration{100, 200}
	if diff := cmp.Diff(want, durations); diff != "" {
		t.Errorf("max_poid durations differ (-want +got):\n%s", diff)
	}
}

// TestResetOnReenable verifies spec.md §8 property 6: re-enabling an
// already-enabled engine zeroes every CPU's max.
func TestResetOnReenable(t *testing.T) {
	host, e, got := newFixture(t)
	establish(t, host, e, got)

	host.SetTime(cpu0, 0)
	host.Fire("preempt_disable", cpu0, 0)
	host.SetTime(cpu0, 1000)
	host.Fire("preempt_enable", cpu0, 0)
	if len(filterKind(*got, record.MaxPoid)) != 1 {
		t.Fatalf("expected one max_poid before reset, got %+v", *got)
	}

	if err := e.Enable(); err != nil {
		t.Fatalf("re-Enable failed: %s", err)
	}
	host.SetCurrentTask(cpu0, 1)
	*got = nil
	establish(t, host, e, got)

	// A POID even shorter than the pre-reset max must still produce a
	// max_poid record, because the reset cleared it.
	host.SetTime(cpu0, 0)
	host.Fire("preempt_disable", cpu0, 0)
	host.SetTime(cpu0, 10)
	host.Fire("preempt_enable", cpu0, 0)

	if len(filterKind(*got, record.MaxPoid)) != 1 {
		t.Errorf("expected a fresh max_poid after reset, got %+v", *got)
	}
}

// TestNotTrackingBeforeInitialCondition verifies spec.md §8 property 7:
// events before the CPU reaches its initial condition produce no
// records at all.
func TestNotTrackingBeforeInitialCondition(t *testing.T) {
	host := testhost.New(cpu0)
	var got []record.Record
	e := rtsl.NewEngine(host.Host(), record.SinkFunc(func(r record.Record) { got = append(got, r) }), nil)
	if err := e.Enable(); err != nil {
		t.Fatalf("Enable() failed: %s", err)
	}
	host.SetCurrentTask(cpu0, 1)

	// A POID window opened and closed before any schedule-path
	// preempt_disable: the engine isn't running on this CPU yet.
	host.SetTime(cpu0, 0)
	host.Fire("preempt_disable", cpu0, 0)
	host.SetTime(cpu0, 100)
	host.Fire("preempt_enable", cpu0, 0)

	if len(got) != 0 {
		t.Errorf("records = %+v, want none before the initial condition is reached", got)
	}

	// Interrupts-disabled at the moment of the first schedule-path
	// preempt_disable also withholds the initial condition.
	host.SetIRQsDisabled(cpu0, true)
	host.Fire("preempt_disable", cpu0, 1)
	host.Fire("preempt_enable", cpu0, 1)
	if len(got) != 0 {
		t.Errorf("records = %+v, want none while IRQs are disabled at the gate", got)
	}

	host.SetIRQsDisabled(cpu0, false)
	host.Fire("preempt_disable", cpu0, 1)
	host.Fire("preempt_enable", cpu0, 1)
	if len(filterKind(got, record.Psd)) != 1 {
		t.Errorf("records = %+v, want exactly one psd record once the gate opens", got)
	}
}
