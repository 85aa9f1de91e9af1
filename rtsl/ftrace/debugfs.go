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
// Package ftrace discovers real kernel tracing filesystem layout: where
// a host's debug/tracing mount lives, and which CPUs it has per-CPU
// tracing directories for. It is adapted from the teacher's
// traceparser.WalkPerCPUDir, which walked a raw trace_pipe_raw per-CPU
// directory tree; here the same "cpu\d+" matching discovers online CPUs
// (cmd/rtsl uses it to pick its simulated CPU set) instead of reading
// ring buffer contents (decoding those is out of scope -- spec.md §1
// treats the host tracing framework as an external collaborator).
package ftrace

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/bristot/linux-rt-rtsl/rtsl"
)

var cpuDirRe = regexp.MustCompile(`^cpu(\d+)$`)

// DefaultMounts lists the conventional locations of the tracefs/debugfs
// mount, checked in order by MountPoint.
var DefaultMounts = []string{
	"/sys/kernel/tracing",
	"/sys/kernel/debug/tracing",
}

// MountPoint returns the first of DefaultMounts that exists.
func MountPoint() (string, error) {
	for _, m := range DefaultMounts {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			return m, nil
		}
	}
	return "", fmt.Errorf("ftrace: no tracing mount found among %v", DefaultMounts)
}

// OnlineCPUs returns, in ascending order, the CPUs with a cpuN directory
// directly under perCPUDir (e.g. "<mount>/per_cpu"), suitable as an
// rtsl.Host.OnlineCPUs implementation when rtsl is wired to a real
// kernel's tracing filesystem rather than package testhost's fake host.
func OnlineCPUs(perCPUDir string) ([]rtsl.CPUID, error) {
	entries, err := os.ReadDir(perCPUDir)
	if err != nil {
		return nil, fmt.Errorf("ftrace: reading %s: %w", perCPUDir, err)
	}
	var cpus []rtsl.CPUID
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := cpuDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		cpus = append(cpus, rtsl.CPUID(n))
	}
	sort.Slice(cpus, func(i, j int) bool { return cpus[i] < cpus[j] })
	return cpus, nil
}

// ControlFilePath returns the debugfs path for the control file of
// spec.md §6, rooted at debugRoot (ordinarily a tracing mount point).
func ControlFilePath(debugRoot string) string {
	return path.Join(debugRoot, "rtsl", "enable")
}
