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

package mesh

import (
	"errors"
	"fmt"
)

// Kind tags an Error with the taxonomy category it belongs to. Components
// never bubble raw transport/storage errors past their own boundary; they
// wrap them in an Error with the appropriate Kind instead.
type Kind string

const (
	KindNetwork       Kind = "network"
	KindP2P           Kind = "p2p"
	KindPermission    Kind = "permission"
	KindStorage       Kind = "storage"
	KindSerialization Kind = "serialization"
	KindValidation    Kind = "validation"
	KindTimeout       Kind = "timeout"
	KindLocation      Kind = "location"
	KindRouting       Kind = "routing"
	KindPacket        Kind = "packet"
	KindServer        Kind = "server"
)

// Error is the single error type that crosses component boundaries inside
// the engine. PacketID is set when the error concerns one specific packet
// (Kind == KindPacket).
type Error struct {
	Kind     Kind
	PacketID string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.PacketID != "" {
		return fmt.Sprintf("%s: %s [packet=%s]: %v", e.Op, e.Kind, e.PacketID, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an Error of the given kind for op, wrapping err. Returns nil
// if err is nil, so it's safe to use as `return mesh.Wrap(...)`.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WrapPacket is Wrap plus the offending packet ID, for Kind == KindPacket.
func WrapPacket(op, packetID string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindPacket, PacketID: packetID, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
