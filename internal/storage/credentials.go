package storage

import (
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

// ErrCredentialNotFound indicates no credential exists for (user, platform).
var ErrCredentialNotFound = errors.New("credential not found")

// SaveCredential stores a credential record, fully overwriting any prior
// record for the same (user, platform). Stale fields from an earlier connect
// never survive a reconnect.
func (b *BoltDB) SaveCredential(record *Credential) error {
	if record.UserID == "" || record.Platform == "" {
		return fmt.Errorf("credential requires user_id and platform")
	}
	if record.Connected && record.AccessToken == "" {
		return fmt.Errorf("connected credential requires an access token")
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(CredentialsBucket))
		data, err := record.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}
		return bucket.Put(credentialKey(record.UserID, record.Platform), data)
	})
}

// GetCredential returns the credential for (user, platform), or
// ErrCredentialNotFound.
func (b *BoltDB) GetCredential(userID, platformName string) (*Credential, error) {
	var record Credential
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(CredentialsBucket))
		data := bucket.Get(credentialKey(userID, platformName))
		if data == nil {
			return ErrCredentialNotFound
		}
		return record.UnmarshalBinary(data)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteCredential removes the credential for (user, platform) and cascades
// to any pending-authorization rows for the same pair.
func (b *BoltDB) DeleteCredential(userID, platformName string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(CredentialsBucket))
		return bucket.Delete(credentialKey(userID, platformName))
	})
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	if stale, err := b.DeletePendingForUser(userID, platformName); err != nil {
		return fmt.Errorf("failed to cascade pending deletion: %w", err)
	} else if stale > 0 {
		b.logger.Debugw("Removed orphaned pending authorizations on disconnect",
			"user_id", userID, "platform", platformName, "count", stale)
	}
	return nil
}
