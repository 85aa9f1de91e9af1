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
// Command rtsl runs a reference rtsl daemon: it exposes the spec.md §6
// control file over HTTP, accepts synthetic event traces in the
// package replay format, and serves back the records each run produced.
// The real kernel tracepoint source (spec.md §1's "host tracing
// framework") is explicitly out of scope for this module, so this
// binary always drives the engine against package testhost's fake Host
// rather than a real kernel; it exists to exercise the engine,
// control surface and record plumbing end to end, not to run in
// production against a live kernel.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	log "github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/bristot/linux-rt-rtsl/rtsl"
	"github.com/bristot/linux-rt-rtsl/rtsl/control"
	"github.com/bristot/linux-rt-rtsl/rtsl/ftrace"
	"github.com/bristot/linux-rt-rtsl/rtsl/record"
	"github.com/bristot/linux-rt-rtsl/rtsl/replay"
	"github.com/bristot/linux-rt-rtsl/rtsl/testhost"
)

var (
	port          = flag.Int("port", 7403, "The rtsl HTTP port.")
	cpuList       = flag.String("cpus", "0,1,2,3", "Comma-separated list of simulated CPU IDs.")
	ringCapacity  = flag.Int("ring_capacity", 64, "Records retained per CPU for the /rtsl/records endpoint.")
	vectorProfile = flag.String("vector_profile", "generic", "Vector probe profile: one of generic, x86_64.")
	debugRoot     = flag.String("debug_root", "", "If set, lay the control file and CPU discovery out the way a real tracing mount would: simulated CPUs are discovered from <debug_root>/per_cpu instead of -cpus, and every control write is mirrored to <debug_root>/rtsl/enable. Pass \"auto\" to have ftrace.MountPoint locate a real mount.")
)

func parseCPUs(s string) ([]rtsl.CPUID, error) {
	var cpus []rtsl.CPUID
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		cpus = append(cpus, rtsl.CPUID(n))
	}
	return cpus, nil
}

func main() {
	flag.Parse()

	cpus, err := parseCPUs(*cpuList)
	if err != nil {
		log.Exitf("invalid -cpus: %s", err)
	}
	vectors, ok := rtsl.VectorProfiles[*vectorProfile]
	if !ok {
		log.Exitf("unknown -vector_profile %q", *vectorProfile)
	}

	var controlMirror string
	if *debugRoot != "" {
		root := *debugRoot
		if root == "auto" {
			m, err := ftrace.MountPoint()
			if err != nil {
				log.Exitf("-debug_root=auto: %s", err)
			}
			root = m
		}
		if discovered, err := ftrace.OnlineCPUs(path.Join(root, "per_cpu")); err != nil {
			log.Warningf("rtsl: -debug_root=%s: discovering online CPUs: %s; falling back to -cpus", root, err)
		} else {
			cpus = discovered
		}
		controlMirror = ftrace.ControlFilePath(root)
		if err := os.MkdirAll(path.Dir(controlMirror), 0755); err != nil {
			log.Exitf("rtsl: creating %s: %s", path.Dir(controlMirror), err)
		}
	}

	host := testhost.New(cpus...)
	ring := record.NewRing(*ringCapacity)
	engine := rtsl.NewEngine(host.Host(), ring.Sink(), vectors)
	cf := control.NewFile(engine)

	r := mux.NewRouter()
	if controlMirror != "" {
		mirrorControlFile(controlMirror, cf)
		r.HandleFunc("/rtsl/enable", handleMirroredControl(cf, controlMirror))
	} else {
		control.RegisterHTTP(r, "/rtsl/enable", cf)
	}
	r.HandleFunc("/rtsl/replay", handleReplay(host)).Methods(http.MethodPost)
	r.HandleFunc("/rtsl/records", handleRecords(ring)).Methods(http.MethodGet)

	log.Infof("rtsl listening on :%d (cpus=%v, vector_profile=%s, debug_root=%q)", *port, cpus, *vectorProfile, *debugRoot)
	log.Exit(http.ListenAndServe(":"+strconv.Itoa(*port), r))
}

// mirrorControlFile writes cf's current state to path, so a real debugfs
// reader sees the same value the HTTP control surface reports.
func mirrorControlFile(path string, cf *control.File) {
	if err := os.WriteFile(path, cf.Read(), 0644); err != nil {
		log.Errorf("rtsl: mirroring control file to %s failed: %s", path, err)
	}
}

// handleMirroredControl is control.RegisterHTTP's GET/PUT/POST contract,
// plus a mirrorControlFile call after every successful write, for a
// -debug_root deployment where external tools expect to read the control
// file's state directly off disk.
func handleMirroredControl(cf *control.File, mirrorPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			if _, err := w.Write(cf.Read()); err != nil {
				log.Errorf("rtsl: writing control file response failed: %s", err)
			}
		case http.MethodPut, http.MethodPost:
			body, err := io.ReadAll(io.LimitReader(req.Body, 4))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if _, err := cf.Write(body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			mirrorControlFile(mirrorPath, cf)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func handleReplay(host *testhost.Host) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		events, err := replay.Parse(req.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := replay.Run(host, events); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRecords(ring *record.Ring) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		cpu, err := strconv.Atoi(req.URL.Query().Get("cpu"))
		if err != nil {
			http.Error(w, "missing or invalid cpu query parameter", http.StatusBadRequest)
			return
		}
		recs := ring.Recent(rtsl.CPUID(cpu), 0)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(recs); err != nil {
			log.Errorf("rtsl: encoding records response failed: %s", err)
		}
	}
}
