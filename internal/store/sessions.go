package store

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"parlor/internal/domain"
)

type SessionRepository struct {
	db *badger.DB
}

var _ SessionRepo = (*SessionRepository)(nil)

func NewSessionRepository(db *badger.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Get(id domain.SessionID) (*domain.Session, error) {
	var s domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixSession + string(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	s.Durable = true
	return &s, nil
}

func (r *SessionRepository) Put(s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return withRetry("session.put", func() error {
		return mapErr(r.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(prefixSession+string(s.ID)), data)
		}))
	})
}

func (r *SessionRepository) DeleteAll() (bool, error) {
	return dropPrefix(r.db, prefixSession)
}
