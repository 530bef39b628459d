package storage

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"
)

// DefaultAttemptLimit caps how many audit rows a listing returns.
const DefaultAttemptLimit = 50

// attemptKey generates a BBolt key for an attempt record.
// Key format: {timestamp_ns}_{ulid} for natural chronological ordering.
func attemptKey(timestamp time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", timestamp.UnixNano(), id))
}

// SaveAttempt stores an OAuth attempt audit record.
func (b *BoltDB) SaveAttempt(record *AttemptRecord) error {
	if record == nil {
		return fmt.Errorf("attempt record cannot be nil")
	}

	if record.ID == "" {
		record.ID = ulid.Make().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(AttemptsBucket))
		data, err := record.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal attempt record: %w", err)
		}
		return bucket.Put(attemptKey(record.Timestamp, record.ID), data)
	})
}

// ListRecentAttempts returns up to limit audit rows, newest first.
func (b *BoltDB) ListRecentAttempts(limit int) ([]*AttemptRecord, error) {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}

	var records []*AttemptRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket([]byte(AttemptsBucket)).Cursor()
		for k, v := cursor.Last(); k != nil && len(records) < limit; k, v = cursor.Prev() {
			var record AttemptRecord
			if err := record.UnmarshalBinary(v); err != nil {
				continue
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
