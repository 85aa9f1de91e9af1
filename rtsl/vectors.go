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

// X86VectorProbes is the platform-specific list of per-vector tracepoint
// names spec.md §4.10 enumerates for x86_64. It is deliberately plain
// data, not a compiled-in switch (spec.md §9): callers pass whichever
// profile matches their platform to NewEngine, or nil to fall back to
// the single generic irq_handler_entry probe.
var X86VectorProbes = []string{
	"local_timer",
	"thermal",
	"deferred_error",
	"threshold",
	"call_function_single",
	"call_function",
	"reschedule",
	"irq_work",
	"platform_ipi",
	"error_apic",
	"spurious_apic",
	"external_interrupt",
}

// VectorProfiles maps a profile name to its probe list, for callers that
// select a platform by name (e.g. a -vector_profile flag).
var VectorProfiles = map[string][]string{
	"generic": nil,
	"x86_64":  X86VectorProbes,
}
