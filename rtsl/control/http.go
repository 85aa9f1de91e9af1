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
package control

import (
	"io"
	"net/http"

	log "github.com/golang/glog"
	"github.com/gorilla/mux"
)

// RegisterHTTP mounts f at path on r: GET returns the control file's
// contents, PUT/POST bodies are forwarded to Write. This is an adapter
// for hosts without a real debugfs mount, matching the way
// server/server.go fronts its own control surface with a mux.Router
// rather than bare net/http.
func RegisterHTTP(r *mux.Router, path string, f *File) {
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			if _, err := w.Write(f.Read()); err != nil {
				log.Errorf("rtsl: writing control file response failed: %s", err)
			}
		case http.MethodPut, http.MethodPost:
			body, err := io.ReadAll(io.LimitReader(req.Body, 4))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if _, err := f.Write(body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
