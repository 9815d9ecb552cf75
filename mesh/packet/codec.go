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

// Package packet implements the canonical wire encoding for mesh.Packet:
// JSON marshal/unmarshal, an optional base64 wrapper for bandwidth-
// constrained transports, structural validation, and two integrity
// digests (a non-cryptographic additive checksum required by spec, and an
// xxhash fingerprint used only for log correlation).
package packet

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/fieldrelay/mesh"
)

// MalformedError is returned by Decode when the wire bytes don't parse as
// JSON, or parse but violate a structural invariant.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed packet: %s", e.Reason)
}

// Encode serializes p as canonical packet JSON. Callers that need the
// optional base64 wrapper for a bandwidth-constrained transport should call
// EncodeBase64 instead.
func Encode(p *mesh.Packet) ([]byte, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, mesh.Wrap(mesh.KindSerialization, "packet.Encode", err)
	}
	if len(b) > mesh.MaxPayloadBytes {
		return nil, &MalformedError{Reason: fmt.Sprintf("encoded size %d exceeds %d byte limit", len(b), mesh.MaxPayloadBytes)}
	}
	return b, nil
}

// EncodeBase64 is Encode wrapped in base64, for transports that prefer a
// plain-text payload.
func EncodeBase64(p *mesh.Packet) ([]byte, error) {
	raw, err := Encode(p)
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

// Decode parses wire bytes into a Packet and enforces every structural
// invariant from the data model before returning it. Any violation returns
// a *MalformedError.
func Decode(b []byte) (*mesh.Packet, error) {
	if len(b) > mesh.MaxPayloadBytes {
		return nil, &MalformedError{Reason: fmt.Sprintf("wire size %d exceeds %d byte limit", len(b), mesh.MaxPayloadBytes)}
	}
	raw := b
	if looksBase64(b) {
		decoded, err := base64.StdEncoding.DecodeString(string(b))
		if err == nil {
			raw = decoded
		}
	}
	var p mesh.Packet
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &MalformedError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// looksBase64 is a cheap heuristic: canonical wire JSON always starts with
// '{' once unwrapped, so anything else is assumed to be a base64 wrapper.
func looksBase64(b []byte) bool {
	for _, c := range b {
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		return c != '{'
	}
	return false
}

// Validate enforces the §3 structural invariants: non-empty id and
// originator, a well-formed trace with the originator first, no empty IDs
// and no duplicates, a TTL in range, a known packet type and a priority in
// 0..3. It does not serialize p, so it does not check the size limit;
// callers that need the size check should go through Encode.
func Validate(p *mesh.Packet) error {
	if p.ID == "" {
		return &MalformedError{Reason: "id is empty"}
	}
	if p.OriginatorID == "" {
		return &MalformedError{Reason: "originatorId is empty"}
	}
	if p.TTL < 0 || p.TTL > mesh.MaxTTL {
		return &MalformedError{Reason: fmt.Sprintf("ttl %d out of range [0,%d]", p.TTL, mesh.MaxTTL)}
	}
	if len(p.Trace) == 0 {
		return &MalformedError{Reason: "trace is empty"}
	}
	if p.Trace[0] != p.OriginatorID {
		return &MalformedError{Reason: fmt.Sprintf("trace[0]=%q does not match originatorId=%q", p.Trace[0], p.OriginatorID)}
	}
	seen := make(map[string]struct{}, len(p.Trace))
	for _, id := range p.Trace {
		if id == "" {
			return &MalformedError{Reason: "trace contains an empty node id"}
		}
		if _, dup := seen[id]; dup {
			return &MalformedError{Reason: fmt.Sprintf("trace contains duplicate node %q", id)}
		}
		seen[id] = struct{}{}
	}
	switch p.Type {
	case mesh.PacketSOS, mesh.PacketAck, mesh.PacketStatus, mesh.PacketData:
	default:
		return &MalformedError{Reason: fmt.Sprintf("unknown packetType %q", p.Type)}
	}
	if p.Priority < 0 || p.Priority > 3 {
		return &MalformedError{Reason: fmt.Sprintf("priority %d out of range [0,3]", p.Priority)}
	}
	return nil
}

// Checksum32 is a non-cryptographic 32-bit additive checksum over b, used
// only for integrity logging. It is NOT a security primitive: it detects
// accidental corruption, not tampering.
func Checksum32(b []byte) uint32 {
	var sum uint32
	for _, c := range b {
		sum += uint32(c)
	}
	return sum
}

// FastFingerprint returns a 64-bit xxhash digest of the encoded packet,
// used purely to correlate a packet across log lines written by different
// hops. It is never used for equality or duplicate-detection decisions;
// SeenCache keys strictly on Packet.ID for that.
func FastFingerprint(b []byte) uint64 {
	return xxhash.Sum64(b)
}
