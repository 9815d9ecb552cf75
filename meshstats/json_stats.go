/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package meshstats

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// JSONHandler serves a human-debuggable snapshot of Counters, mirroring the
// teacher's JSONStats root handler.
type JSONHandler struct {
	counters *Counters
}

// NewJSONHandler builds a JSONHandler bound to the given counters.
func NewJSONHandler(counters *Counters) *JSONHandler {
	return &JSONHandler{counters: counters}
}

// ServeHTTP writes the current counter snapshot as JSON.
func (h *JSONHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(h.counters.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(js); err != nil {
		log.Errorf("meshstats: failed to reply: %v", err)
	}
}
