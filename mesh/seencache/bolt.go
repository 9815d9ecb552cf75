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

package seencache

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"github.com/fieldrelay/mesh"
)

var (
	bucketByID    = []byte("seen_cache")
	bucketByOrder = []byte("seen_order")
)

// Bolt is the durable SeenCache variant, persisting
// seen_cache/{packet_id -> insertion_epoch} in an embedded bbolt database so
// the "seen" set survives process restarts. Oldest-entry eviction is
// implemented with a monotonic sequence bucket that preserves true
// insertion order, which a bbolt key sorted by packet ID alone could not.
type Bolt struct {
	db       *bolt.DB
	capacity int
}

// OpenBolt opens (creating if absent) a durable SeenCache at path.
func OpenBolt(path string, capacity int) (*Bolt, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, mesh.Wrap(mesh.KindStorage, "seencache.OpenBolt", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketByID); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketByOrder)
		return err
	})
	if err != nil {
		db.Close()
		return nil, mesh.Wrap(mesh.KindStorage, "seencache.OpenBolt", err)
	}
	return &Bolt{db: db, capacity: capacity}, nil
}

// Close releases the underlying database handle.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// CheckAndInsert implements SeenCache.
func (b *Bolt) CheckAndInsert(id string) bool {
	inserted := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		byID := tx.Bucket(bucketByID)
		if byID.Get([]byte(id)) != nil {
			return nil // already seen
		}
		byOrder := tx.Bucket(bucketByOrder)
		seq, err := byOrder.NextSequence()
		if err != nil {
			return err
		}
		key := seqKey(seq)
		if err := byOrder.Put(key, []byte(id)); err != nil {
			return err
		}
		if err := byID.Put([]byte(id), seqKey(uint64(nowMillis()))); err != nil {
			return err
		}
		inserted = true
		return evictOldestIfOverCapacity(byID, byOrder, b.capacity)
	})
	if err != nil {
		// Storage failure: fail safe by treating the packet as new so it
		// is not silently dropped. The storage error itself is not
		// reported to the caller.
		return true
	}
	return inserted
}

// Len implements SeenCache.
func (b *Bolt) Len() int {
	n := 0
	_ = b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketByOrder).Stats().KeyN
		return nil
	})
	return n
}

func evictOldestIfOverCapacity(byID, byOrder *bolt.Bucket, capacity int) error {
	for byOrder.Stats().KeyN > capacity {
		c := byOrder.Cursor()
		oldestKey, oldestID := c.First()
		if oldestKey == nil {
			return nil
		}
		if err := byOrder.Delete(oldestKey); err != nil {
			return err
		}
		if err := byID.Delete(oldestID); err != nil {
			return err
		}
	}
	return nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

var _ SeenCache = (*Bolt)(nil)
