package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Pending-authorization sentinel errors.
var (
	// ErrPendingNotFound indicates no live record exists for the state token.
	// A duplicate provider callback always lands here: the first delivery
	// consumed the record.
	ErrPendingNotFound = errors.New("pending authorization not found")

	// ErrPendingExpired indicates the record existed but its logical
	// lifetime had passed. The record is consumed regardless.
	ErrPendingExpired = errors.New("pending authorization expired")
)

// SavePendingAuthorization stores a pending-authorization record keyed by its
// state token. At most one live record exists per token; saving overwrites.
func (b *BoltDB) SavePendingAuthorization(record *PendingAuthorization) error {
	if record.StateToken == "" {
		return fmt.Errorf("state token cannot be empty")
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(PendingAuthBucket))
		data, err := record.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal pending authorization: %w", err)
		}
		return bucket.Put([]byte(record.StateToken), data)
	})
}

// TakePendingAuthorization looks up and deletes the record for stateToken in
// a single transaction, making "state validated" and "state consumed" the
// same event. Two concurrent deliveries of the same state cannot both
// succeed: bbolt serializes Update transactions, so the second one
// deterministically observes ErrPendingNotFound.
//
// Expiry is checked at read time against the record's own expires_at, so a
// stale row the sweeper has not yet evicted is still rejected. An expired
// record is deleted on the way out.
func (b *BoltDB) TakePendingAuthorization(stateToken string) (*PendingAuthorization, error) {
	var record PendingAuthorization
	// Logical failures (expired, unreadable) travel in takeErr instead of the
	// closure's return value: returning an error would roll the transaction
	// back and undelete the row.
	var takeErr error
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(PendingAuthBucket))
		data := bucket.Get([]byte(stateToken))
		if data == nil {
			takeErr = ErrPendingNotFound
			return nil
		}
		if err := bucket.Delete([]byte(stateToken)); err != nil {
			return fmt.Errorf("failed to consume pending authorization: %w", err)
		}
		if err := record.UnmarshalBinary(data); err != nil {
			// Unreadable rows are consumed too so they cannot wedge the token.
			takeErr = fmt.Errorf("failed to unmarshal pending authorization: %w", err)
			return nil
		}
		if record.Expired(time.Now()) {
			takeErr = ErrPendingExpired
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if takeErr != nil {
		return nil, takeErr
	}
	return &record, nil
}

// DeletePendingForUser removes all pending-authorization rows for a
// (user, platform) pair. Called as the cascade step of a disconnect so an
// in-flight reconnect attempt cannot silently succeed later.
func (b *BoltDB) DeletePendingForUser(userID, platformName string) (int, error) {
	deleted := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(PendingAuthBucket))
		var stale [][]byte
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var record PendingAuthorization
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			if record.UserID == userID && record.Platform == platformName {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// SweepExpiredPending physically evicts rows whose expires_at has passed.
// Logical expiry is enforced at read time either way; the sweeper only
// bounds storage growth.
func (b *BoltDB) SweepExpiredPending(now time.Time) (int, error) {
	evicted := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(PendingAuthBucket))
		var expired [][]byte
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var record PendingAuthorization
			if err := json.Unmarshal(v, &record); err != nil {
				expired = append(expired, append([]byte(nil), k...))
				continue
			}
			if record.Expired(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			evicted++
		}
		return nil
	})
	return evicted, err
}

// RunPendingSweeper evicts expired pending rows on a fixed interval until
// the context is cancelled.
func (b *BoltDB) RunPendingSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := b.SweepExpiredPending(time.Now())
			if err != nil {
				b.logger.Warnw("Pending-authorization sweep failed", "error", err)
				continue
			}
			if evicted > 0 {
				b.logger.Debugw("Evicted expired pending authorizations", "count", evicted)
			}
		}
	}
}

// CountPending returns the number of live pending-authorization rows.
func (b *BoltDB) CountPending() (int, error) {
	count := 0
	err := b.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(PendingAuthBucket)).Stats().KeyN
		return nil
	})
	return count, err
}
