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
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bristot/linux-rt-rtsl/rtsl"
	"github.com/bristot/linux-rt-rtsl/rtsl/replay"
)

func TestParseValidTrace(t *testing.T) {
	const trace = `
# a comment row, and a blank line above are both skipped
PD:1000:0:1
NI:1200:0
NO:1250:0
PE:2000:0:1
CT:2000:1:7
`
	got, err := replay.Parse(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("Parse() failed: %s", err)
	}
	want := []replay.Event{
		{Kind: "PD", CPU: 0, TS: 1000, Args: []int64{1}},
		{Kind: "NI", CPU: 0, TS: 1200, Args: []int64{}},
		{Kind: "NO", CPU: 0, TS: 1250, Args: []int64{}},
		{Kind: "PE", CPU: 0, TS: 2000, Args: []int64{1}},
		{Kind: "CT", CPU: 1, TS: 2000, Args: []int64{7}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() differs (-want +got):\n%s", diff)
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := replay.Parse(strings.NewReader("ZZ:1000:0:1\n"))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Parse() code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestParseRejectsWrongArgCount(t *testing.T) {
	tests := []string{
		"PD:1000:0\n",     // preempt_disable needs exactly one arg
		"NI:1000:0:1\n",   // nmi_entry takes no args
		"PD:1000:0:1:2\n", // too many args
	}
	for _, trace := range tests {
		if _, err := replay.Parse(strings.NewReader(trace)); status.Code(err) != codes.InvalidArgument {
			t.Errorf("Parse(%q) code = %v, want InvalidArgument", trace, status.Code(err))
		}
	}
}

func TestParseRejectsTooFewFields(t *testing.T) {
	if _, err := replay.Parse(strings.NewReader("PD:1000\n")); status.Code(err) != codes.InvalidArgument {
		t.Errorf("Parse() code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestParseRejectsNonNumericField(t *testing.T) {
	if _, err := replay.Parse(strings.NewReader("PD:abc:0:1\n")); status.Code(err) != codes.InvalidArgument {
		t.Errorf("Parse() code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestParseEmptyInputYieldsNoEvents(t *testing.T) {
	got, err := replay.Parse(strings.NewReader("\n\n# nothing here\n"))
	if err != nil {
		t.Fatalf("Parse() failed: %s", err)
	}
	if len(got) != 0 {
		t.Errorf("Parse() = %v, want no events", got)
	}
}

func TestCPUIDValid(t *testing.T) {
	if !rtsl.CPUID(0).Valid() {
		t.Error("CPUID(0).Valid() = false, want true")
	}
	if rtsl.CPUID(-1).Valid() {
		t.Error("CPUID(-1).Valid() = true, want false")
	}
}
