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

// Package cloud implements mesh.CloudUploader over a plain HTTP endpoint.
// The pack carries no third-party HTTP client beyond the standard library
// (see ptp/sptp/stats.FetchStats, which also reaches for a bare
// http.Client), so this concern stays on net/http; see DESIGN.md.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldrelay/mesh"
)

// UploadTimeout bounds a single Upload call.
const UploadTimeout = 10 * time.Second

// Uploader posts packets to a cloud ingestion endpoint as JSON.
type Uploader struct {
	Endpoint string
	client   *http.Client
}

// NewUploader builds an Uploader targeting endpoint.
func NewUploader(endpoint string) *Uploader {
	return &Uploader{Endpoint: endpoint, client: &http.Client{Timeout: UploadTimeout}}
}

// Upload POSTs the packet to Endpoint as JSON. Non-2xx responses are
// returned as errors, like transport failures; retrying is left to the
// caller.
func (u *Uploader) Upload(ctx context.Context, p mesh.Packet) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cloud: marshal packet %s: %w", p.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cloud: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: upload %s: %w", p.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cloud: upload %s: unexpected status %d", p.ID, resp.StatusCode)
	}
	return nil
}
