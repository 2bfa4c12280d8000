// Package store persists sessions, users and rooms in BadgerDB behind small
// repository interfaces. Values are JSON, keys are prefixed per entity.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

const (
	prefixSession = "session:"
	prefixUser    = "user:"
	prefixRoom    = "room:"
)

const (
	retryAttempts = 3
	retryBase     = 50 * time.Millisecond
)

type SessionRepo interface {
	Get(id domain.SessionID) (*domain.Session, error)
	Put(s *domain.Session) error
	DeleteAll() (bool, error)
}

type UserRepo interface {
	Get(id domain.UserID) (*domain.User, error)
	Put(u *domain.User) error
	DeleteAll() (bool, error)
}

type RoomRepo interface {
	Get(id domain.RoomID) (*domain.Room, error)
	Put(r *domain.Room) error
	Delete(id domain.RoomID) error
	DeleteAll() (bool, error)
}

func Open(dataDir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dataDir).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dataDir, err)
	}
	return db, nil
}

// mapErr folds badger errors into the shared taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}

// withRetry runs op up to retryAttempts times with doubling backoff. NotFound
// is terminal; only Unavailable-class failures are retried.
func withRetry(what string, op func() error) error {
	var err error
	delay := retryBase
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = op(); err == nil || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if attempt < retryAttempts {
			log.Warn().Str("module", "store").Str("op", what).Int("attempt", attempt).Err(err).Msg("retrying")
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

// dropPrefix deletes every key under the prefix and reports whether any
// existed. Collected first, deleted after, to keep the iterator valid.
func dropPrefix(db *badger.DB, prefix string) (bool, error) {
	var keys [][]byte
	err := db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, mapErr(err)
	}
	return len(keys) > 0, nil
}
