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
// Package control implements the single-boolean control surface of
// spec.md §6: a file at <debug-root>/rtsl/enable that reads back "0\n"
// or "1\n" and accepts a single '0' or '1' byte on write. Enable/Disable
// calls against the underlying engine are serialized by this package's
// mutex, which (per spec.md §5) is never held across a hot-path handler.
package control

import (
	"fmt"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Engine is the subset of *rtsl.Engine the control surface drives.
type Engine interface {
	Enable() error
	Disable()
	Enabled() bool
}

// File implements the read/write contract of the control file described
// in spec.md §6, independent of whatever actually exposes it (a real
// debugfs mount, an HTTP handler, or a test harness). It is safe for
// concurrent reads and writes.
type File struct {
	mu     sync.Mutex
	engine Engine
}

// NewFile returns a File driving engine.
func NewFile(engine Engine) *File {
	return &File{engine: engine}
}

// Read returns the current state as a single hex digit plus a trailing
// newline, e.g. "1\n".
func (f *File) Read() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.engine.Enabled() {
		return []byte("1\n")
	}
	return []byte("0\n")
}

// Write applies a control write. p must be 1-3 bytes (spec.md §6 length
// constraint, allowing for a trailing newline/NUL as most debugfs boolean
// files do); its first byte must be '0' or '1'.
//
//   - '1': if already enabled, disable then enable (a full reset, zeroing
//     every CPU's state and max -- spec.md §8 property 6).
//   - '0': disable.
//   - anything else: InvalidArgument.
func (f *File) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, status.Error(codes.InvalidArgument, "rtsl: zero-length write to control file")
	}
	if len(p) > 3 {
		return 0, status.Errorf(codes.InvalidArgument, "rtsl: control file write of %d bytes exceeds the 3-byte limit", len(p))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch p[0] {
	case '1':
		if err := f.engine.Enable(); err != nil {
			return 0, status.Errorf(codes.InvalidArgument, "rtsl: enable failed: %s", err)
		}
	case '0':
		f.engine.Disable()
	default:
		return 0, status.Errorf(codes.InvalidArgument, "rtsl: invalid control byte %q", p[0])
	}
	return len(p), nil
}

// String renders the current state for logging/debugging.
func (f *File) String() string {
	return fmt.Sprintf("rtsl enable=%s", f.Read()[:1])
}
