// Copyright (C) 2026  betanet mixnode authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package reputation

import (
	"bytes"
	"fmt"

	"github.com/coreos/bbolt"
	"github.com/ugorji/go/codec"
)

var cborHandle = &codec.CborHandle{}

const snapshotBucketName = "reputation"

// BoltSnapshotStore persists Manager snapshots to a single boltdb bucket,
// one CBOR-encoded NodeReputation per relay address key, following the
// single-bucket-per-dataset convention of the teacher's storage/db.go.
type BoltSnapshotStore struct {
	db *bolt.DB
}

// OpenBoltSnapshotStore opens (creating if necessary) a boltdb file at
// path for durable reputation persistence.
func OpenBoltSnapshotStore(path string) (*BoltSnapshotStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("reputation: open bolt store: %w", err)
	}
	return &BoltSnapshotStore{db: db}, nil
}

// Close closes the underlying boltdb handle.
func (s *BoltSnapshotStore) Close() error {
	return s.db.Close()
}

// Save writes every entry of snapshot into the reputation bucket,
// replacing any prior contents for the same addresses.
func (s *BoltSnapshotStore) Save(snapshot map[string]NodeReputation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(snapshotBucketName))
		if err != nil {
			return err
		}
		for addr, n := range snapshot {
			var buf bytes.Buffer
			enc := codec.NewEncoder(&buf, cborHandle)
			if err := enc.Encode(n); err != nil {
				return fmt.Errorf("reputation: encode %q: %w", addr, err)
			}
			if err := bucket.Put([]byte(addr), buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads every entry of the reputation bucket back into a snapshot
// map, returning an empty map if the bucket does not yet exist.
func (s *BoltSnapshotStore) Load() (map[string]NodeReputation, error) {
	out := make(map[string]NodeReputation)
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucketName))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var n NodeReputation
			dec := codec.NewDecoder(bytes.NewReader(v), cborHandle)
			if err := dec.Decode(&n); err != nil {
				return fmt.Errorf("reputation: decode %q: %w", k, err)
			}
			out[string(k)] = n
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
