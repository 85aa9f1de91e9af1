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
package replay

import (
	"golang.org/x/sync/errgroup"

	"github.com/bristot/linux-rt-rtsl/rtsl"
	"github.com/bristot/linux-rt-rtsl/rtsl/testhost"
)

// Run drives events against host, one goroutine per CPU, exactly as
// spec.md §5 describes real hardware doing it: events on different CPUs
// are independent and may be applied concurrently, but a single CPU's
// events are applied strictly in the order given. This mirrors the way
// apiservice.GetPerThreadEventSeries fans work out per-PID with an
// errgroup rather than a shared worker pool.
func Run(host *testhost.Host, events []Event) error {
	byCPU := map[rtsl.CPUID][]Event{}
	for _, ev := range events {
		byCPU[ev.CPU] = append(byCPU[ev.CPU], ev)
	}

	var g errgroup.Group
	for _, cpuEvents := range byCPU {
		cpuEvents := cpuEvents
		g.Go(func() error {
			for _, ev := range cpuEvents {
				apply(host, ev)
			}
			return nil
		})
	}
	return g.Wait()
}

func apply(host *testhost.Host, ev Event) {
	host.SetTime(ev.CPU, ev.TS)
	switch ev.Kind {
	case rowCurrentTask:
		host.SetCurrentTask(ev.CPU, rtsl.TaskID(ev.Args[0]))
	case rowNeedResched:
		host.SetNeedResched(ev.CPU, ev.Args[0] != 0)
	case rowIRQsDisabled:
		host.SetIRQsDisabled(ev.CPU, ev.Args[0] != 0)
	case rowPreemptDisable:
		host.Fire("preempt_disable", ev.CPU, ev.Args...)
	case rowPreemptEnable:
		host.Fire("preempt_enable", ev.CPU, ev.Args...)
	case rowIRQDisable:
		host.Fire("irq_disable", ev.CPU, ev.Args...)
	case rowIRQEnable:
		host.Fire("irq_enable", ev.CPU, ev.Args...)
	case rowVectorEntry:
		host.Fire("irq_handler_entry", ev.CPU, ev.Args...)
	case rowNMIEntry:
		host.Fire("nmi_entry", ev.CPU)
	case rowNMIExit:
		host.Fire("nmi_exit", ev.CPU)
	}
}
