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
package record

import (
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/bristot/linux-rt-rtsl/rtsl"
)

// Ring is a bounded, in-process cache of the most recently emitted
// records for each CPU. The host trace sink is the system of record
// (spec.md §1 explicitly puts persistence out of scope); Ring exists only
// so that the reference daemon's control surface has something to show
// for "what just happened" without a real tracing pipeline behind it.
//
// Modeled on storageservice's use of an LRU to bound how many
// collections are held in memory at once: here the cache key is per-CPU
// insertion sequence rather than collection name, and eviction is by
// count per CPU rather than by a global cache size.
type Ring struct {
	mu       sync.Mutex
	perCPU   int
	cpus     map[rtsl.CPUID]*simplelru.LRU
	sequence map[rtsl.CPUID]uint64
}

// NewRing returns a Ring retaining up to perCPU records per CPU.
func NewRing(perCPU int) *Ring {
	if perCPU <= 0 {
		perCPU = 1
	}
	return &Ring{
		perCPU:   perCPU,
		cpus:     map[rtsl.CPUID]*simplelru.LRU{},
		sequence: map[rtsl.CPUID]uint64{},
	}
}

// Sink returns a record.Sink that feeds r, for wiring directly into an
// Engine as NewEngine's sink argument.
func (r *Ring) Sink() Sink {
	return SinkFunc(r.Emit)
}

// Emit implements Sink, recording rec into its CPU's ring.
func (r *Ring) Emit(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lru, ok := r.cpus[rec.CPU]
	if !ok {
		var err error
		lru, err = simplelru.NewLRU(r.perCPU, nil)
		if err != nil {
			// perCPU is always > 0 by construction; NewLRU only fails
			// on a non-positive size.
			return
		}
		r.cpus[rec.CPU] = lru
	}
	seq := r.sequence[rec.CPU]
	r.sequence[rec.CPU] = seq + 1
	lru.Add(seq, rec)
}

// Recent returns up to n most-recently-emitted records for cpu, oldest
// first. If n <= 0 or exceeds the ring's retained count, all retained
// records are returned.
func (r *Ring) Recent(cpu rtsl.CPUID, n int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	lru, ok := r.cpus[cpu]
	if !ok {
		return nil
	}
	keys := lru.Keys()
	if n > 0 && n < len(keys) {
		keys = keys[len(keys)-n:]
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		if v, ok := lru.Get(k); ok {
			out = append(out, v.(Record))
		}
	}
	return out
}
