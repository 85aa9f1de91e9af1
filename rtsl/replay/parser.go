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
// Package replay parses and drives a synthetic per-CPU event stream
// against an rtsl.Engine, for the end-to-end scenarios of spec.md §8 and
// for ad-hoc simulation. Its row grammar is a direct descendant of the
// teacher's ebpf/schedbt text-trace format: one event per line, fields
// colon-separated, a short letter code naming the row type.
package replay

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bristot/linux-rt-rtsl/rtsl"
)

// Row type codes.
//
//	PD:<ts>:<cpu>:<to_schedule>        preempt_disable
//	PE:<ts>:<cpu>:<to_schedule>        preempt_enable
//	ID:<ts>:<cpu>:<entry>              irq_disable
//	IE:<ts>:<cpu>:<exit>               irq_enable
//	VE:<ts>:<cpu>:<vector>             irq vector/handler entry
//	NI:<ts>:<cpu>                      nmi_entry
//	NO:<ts>:<cpu>                      nmi_exit
//	CT:<ts>:<cpu>:<pid>                current task on cpu becomes pid
//	NR:<ts>:<cpu>:<0|1>                need_resched on cpu becomes this
//	IQ:<ts>:<cpu>:<0|1>                irqs_disabled on cpu becomes this
//
// All numeric fields are decimal. Timestamps are nanoseconds.
const (
	rowPreemptDisable = "PD"
	rowPreemptEnable  = "PE"
	rowIRQDisable     = "ID"
	rowIRQEnable      = "IE"
	rowVectorEntry    = "VE"
	rowNMIEntry       = "NI"
	rowNMIExit        = "NO"
	rowCurrentTask    = "CT"
	rowNeedResched    = "NR"
	rowIRQsDisabled   = "IQ"
)

// Event is one parsed row of a synthetic trace.
type Event struct {
	Kind string
	CPU  rtsl.CPUID
	TS   rtsl.Timestamp
	Args []int64
}

func badRow(row string) error {
	return status.Errorf(codes.InvalidArgument, "replay: failed to parse row %q", row)
}

// Parse reads a synthetic trace, one row per line, returning the parsed
// events in file order (which must already be non-decreasing in
// timestamp per CPU; Parse does not sort).
func Parse(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		row := strings.TrimSpace(scanner.Text())
		if row == "" || strings.HasPrefix(row, "#") {
			continue
		}
		ev, err := parseRow(row)
		if err != nil {
			return nil, status.Errorf(status.Code(err), "at line %d: %s", lineNum, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, status.Errorf(codes.Internal, "replay: scan failed: %s", err)
	}
	return events, nil
}

func parseRow(row string) (Event, error) {
	parts := strings.Split(row, ":")
	if len(parts) < 3 {
		return Event{}, badRow(row)
	}
	kind := parts[0]

	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Event{}, badRow(row)
	}
	cpu, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Event{}, badRow(row)
	}

	args := make([]int64, 0, len(parts)-3)
	for _, f := range parts[3:] {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return Event{}, badRow(row)
		}
		args = append(args, v)
	}

	switch kind {
	case rowPreemptDisable, rowPreemptEnable, rowIRQDisable, rowIRQEnable, rowVectorEntry, rowCurrentTask, rowNeedResched, rowIRQsDisabled:
		if len(args) != 1 {
			return Event{}, badRow(row)
		}
	case rowNMIEntry, rowNMIExit:
		if len(args) != 0 {
			return Event{}, badRow(row)
		}
	default:
		return Event{}, badRow(row)
	}

	return Event{
		Kind: kind,
		CPU:  rtsl.CPUID(cpu),
		TS:   rtsl.Timestamp(ts),
		Args: args,
	}, nil
}
