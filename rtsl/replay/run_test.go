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
package replay_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/bristot/linux-rt-rtsl/rtsl"
	"github.com/bristot/linux-rt-rtsl/rtsl/record"
	"github.com/bristot/linux-rt-rtsl/rtsl/replay"
	"github.com/bristot/linux-rt-rtsl/rtsl/testhost"
)

// TestRunDrivesEngineEndToEnd replays a plain-POID trace (spec.md §8
// scenario S1) on two CPUs at once, confirming Run's per-CPU fan-out
// reaches the engine the same way individual host.Fire calls would.
func TestRunDrivesEngineEndToEnd(t *testing.T) {
	host := testhost.New(0, 1)

	var mu sync.Mutex
	var got []record.Record
	sink := record.SinkFunc(func(r record.Record) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, r)
	})
	e := rtsl.NewEngine(host.Host(), sink, nil)
	if err := e.Enable(); err != nil {
		t.Fatalf("Enable() failed: %s", err)
	}
	host.SetCurrentTask(0, 1)
	host.SetCurrentTask(1, 1)

	const trace = `
CT:0:0:1
CT:0:1:1
PD:1:0:1
PE:2:0:1
PD:1:1:1
PE:2:1:1
PD:1000:0:0
PE:3000:0:0
PD:1000:1:0
PE:4000:1:0
`
	events, err := replay.Parse(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("Parse() failed: %s", err)
	}
	if err := replay.Run(host, events); err != nil {
		t.Fatalf("Run() failed: %s", err)
	}

	mu.Lock()
	defer mu.Unlock()
	byCPU := map[rtsl.CPUID]rtsl.Duration{}
	for _, r := range got {
		if r.Kind == record.Poid {
			byCPU[r.CPU] = r.Duration
		}
	}
	if byCPU[0] != 2000 {
		t.Errorf("cpu0 poid duration = %d, want 2000", byCPU[0])
	}
	if byCPU[1] != 3000 {
		t.Errorf("cpu1 poid duration = %d, want 3000", byCPU[1])
	}
}
