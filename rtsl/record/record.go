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
// Package record defines the trace records emitted by the rtsl engine and
// the host sink interface they're emitted through. Unlike the teacher's
// tracedata.Event, which carries an open bag of named text/number
// properties for an arbitrary set of tracepoint formats, every record
// here has a fixed, known-at-compile-time shape: the engine only ever
// emits one of the ten kinds below.
package record

import (
	"encoding/json"

	"github.com/bristot/linux-rt-rtsl/rtsl"
)

// Kind identifies which of the fixed record shapes a Record carries.
type Kind int

const (
	// Poid is emitted when a POID window closes.
	Poid Kind = iota
	// Paie is emitted when a PAIE window closes.
	Paie
	// Psd is emitted when a PSD window closes.
	Psd
	// Dst is emitted when a DST window closes.
	Dst
	// IRQExecution is emitted every time a hardware interrupt finishes.
	IRQExecution
	// NMIExecution is emitted every time an NMI finishes.
	NMIExecution
	// MaxPoid is emitted when a new POID maximum is reached.
	MaxPoid
	// MaxPaie is emitted when a new PAIE maximum is reached.
	MaxPaie
	// MaxPsd is emitted when a new PSD maximum is reached.
	MaxPsd
	// MaxDst is emitted when a new DST maximum is reached.
	MaxDst
)

func (k Kind) String() string {
	switch k {
	case Poid:
		return "poid"
	case Paie:
		return "paie"
	case Psd:
		return "psd"
	case Dst:
		return "dst"
	case IRQExecution:
		return "irq_execution"
	case NMIExecution:
		return "nmi_execution"
	case MaxPoid:
		return "max_poid"
	case MaxPaie:
		return "max_paie"
	case MaxPsd:
		return "max_psd"
	case MaxDst:
		return "max_dst"
	default:
		return "unknown"
	}
}

// MarshalJSON renders Kind as its name rather than its numeric value, so
// a /rtsl/records response reads like "poid" instead of "0".
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Record is a single emitted event. Only the fields relevant to Kind are
// meaningful; the rest are zero. Durations are nanoseconds.
type Record struct {
	Kind Kind
	CPU  rtsl.CPUID

	Duration rtsl.Duration

	// Vector and ArrivalTime are only set for IRQExecution.
	Vector      rtsl.Vector
	ArrivalTime rtsl.Timestamp

	// Start is only set for NMIExecution (the NMI's own start time).
	Start rtsl.Timestamp
}

// Sink is the out-of-scope host trace sink records are pushed to.
// Implementations must not block: emission is fire-and-forget from a
// tracepoint handler that may itself be running inside an IRQ or NMI.
type Sink interface {
	Emit(Record)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Record)

// Emit implements Sink.
func (f SinkFunc) Emit(r Record) { f(r) }

// Discard is a Sink that drops every record; useful in tests exercising
// only the state machine's side effects via a custom Sink, or wherever a
// valid-but-uninteresting sink is needed.
var Discard Sink = SinkFunc(func(Record) {})
