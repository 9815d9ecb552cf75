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

package outbox

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fieldrelay/mesh"
)

var bucketOutbox = []byte("outbox")

// Bolt is the durable Outbox, persisting outbox/{packet_id -> OutboxEntry}
// (JSON-encoded) in an embedded bbolt database. Crash recovery runs inside
// OpenBolt, before the store answers any query: every entry found with
// status in_progress is reset to pending, matching the teacher's
// init()-does-recovery-before-use convention in the sptp client, which
// replays any in-flight request state before the run loop starts.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (creating if absent) a durable Outbox at path and runs
// crash recovery. It returns the number of entries recovered.
func OpenBolt(path string) (*Bolt, int, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, 0, mesh.Wrap(mesh.KindStorage, "outbox.OpenBolt", err)
	}
	b := &Bolt{db: db}
	recovered := 0
	err = db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(bucketOutbox)
		if err != nil {
			return err
		}
		return bkt.ForEach(func(k, v []byte) error {
			var e mesh.OutboxEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Status == mesh.StatusInProgress {
				e.Status = mesh.StatusPending
				recovered++
				encoded, err := json.Marshal(e)
				if err != nil {
					return err
				}
				return bkt.Put(k, encoded)
			}
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, 0, mesh.Wrap(mesh.KindStorage, "outbox.OpenBolt", err)
	}
	return b, recovered, nil
}

// Close releases the underlying database handle.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) get(tx *bolt.Tx, id string) (mesh.OutboxEntry, bool, error) {
	v := tx.Bucket(bucketOutbox).Get([]byte(id))
	if v == nil {
		return mesh.OutboxEntry{}, false, nil
	}
	var e mesh.OutboxEntry
	if err := json.Unmarshal(v, &e); err != nil {
		return mesh.OutboxEntry{}, false, err
	}
	return e, true, nil
}

func (b *Bolt) put(tx *bolt.Tx, e mesh.OutboxEntry) error {
	encoded, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketOutbox).Put([]byte(e.Packet.ID), encoded)
}

// Enqueue implements Outbox.
func (b *Bolt) Enqueue(packet mesh.Packet) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		seq, err := tx.Bucket(bucketOutbox).NextSequence()
		if err != nil {
			return err
		}
		return b.put(tx, mesh.OutboxEntry{
			Packet:  packet,
			AddedAt: time.Now(),
			Status:  mesh.StatusPending,
			Seq:     seq,
		})
	})
}

// NextPending implements Outbox.
func (b *Bolt) NextPending() (mesh.OutboxEntry, bool) {
	var best *mesh.OutboxEntry
	_ = b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(_, v []byte) error {
			var e mesh.OutboxEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Status != mesh.StatusPending {
				return nil
			}
			if best == nil || betterCandidate(e, *best) {
				ec := e
				best = &ec
			}
			return nil
		})
	})
	if best == nil {
		return mesh.OutboxEntry{}, false
	}
	return *best, true
}

// MarkInProgress implements Outbox.
func (b *Bolt) MarkInProgress(id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		e, ok, err := b.get(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound
		}
		e.Status = mesh.StatusInProgress
		return b.put(tx, e)
	})
}

// MarkSent implements Outbox.
func (b *Bolt) MarkSent(id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		e, ok, err := b.get(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound
		}
		e.Status = mesh.StatusSent
		e.LastAttemptAt = time.Now()
		return b.put(tx, e)
	})
}

// MarkFailed implements Outbox.
func (b *Bolt) MarkFailed(id string, transient bool) (bool, error) {
	canRetry := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		e, ok, err := b.get(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound
		}

		if transient && e.Packet.IsSOSClass() {
			e.LastAttemptAt = time.Now()
			e.Status = mesh.StatusPending
			canRetry = true
			return b.put(tx, e)
		}

		e.RetryCount++
		e.LastAttemptAt = time.Now()
		if e.RetryCount >= maxRetriesFor(e) {
			e.Status = mesh.StatusFailed
			canRetry = false
		} else {
			e.Status = mesh.StatusPending
			canRetry = true
		}
		return b.put(tx, e)
	})
	if err != nil {
		return false, mesh.WrapPacket("outbox.MarkFailed", id, err)
	}
	return canRetry, nil
}

// Remove implements Outbox.
func (b *Bolt) Remove(id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOutbox).Delete([]byte(id))
	})
}

// AllEntries implements Outbox.
func (b *Bolt) AllEntries() ([]mesh.OutboxEntry, error) {
	var out []mesh.OutboxEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(_, v []byte) error {
			var e mesh.OutboxEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// Stats implements Outbox.
func (b *Bolt) Stats() (Stats, error) {
	var s Stats
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(_, v []byte) error {
			var e mesh.OutboxEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			switch e.Status {
			case mesh.StatusPending:
				s.Pending++
			case mesh.StatusInProgress:
				s.InProgress++
			case mesh.StatusSent:
				s.Sent++
			case mesh.StatusFailed:
				s.Failed++
			}
			return nil
		})
	})
	return s, err
}

// ExpirePending implements Outbox.
func (b *Bolt) ExpirePending(now time.Time) (int, error) {
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketOutbox)
		var toDelete [][]byte
		err := bkt.ForEach(func(k, v []byte) error {
			var e mesh.OutboxEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Status != mesh.StatusPending {
				return nil
			}
			if now.Sub(e.AddedAt) > ttlFor(e) {
				key := make([]byte, len(k))
				copy(key, k)
				toDelete = append(toDelete, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := bkt.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

var _ Outbox = (*Bolt)(nil)
